// Package design assembles the design matrix V[i][j] = prod_a phi_{alpha_j,a}(u_{i,a})
// of a tensor-product polynomial expansion over a sampling grid.
package design

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"math/big"

	"github.com/zeebo/blake3"
	"gonum.org/v1/gonum/mat"

	"github.com/tuneinsight/critpoint/basis"
	"github.com/tuneinsight/critpoint/grid"
	"github.com/tuneinsight/critpoint/support"
	"github.com/tuneinsight/critpoint/utils"
	"github.com/tuneinsight/critpoint/utils/bignum"
	"github.com/tuneinsight/critpoint/utils/concurrency"
)

// ErrDimensionMismatch is returned when the lengths of the grid points, the
// support exponents or the sample values are inconsistent.
var ErrDimensionMismatch = errors.New("dimension mismatch")

// Options configures [Build].
type Options struct {
	// Prec is the precision in bits. Above 53 the matrix is assembled in arbitrary precision.
	Prec uint
	// Workers is the number of goroutines assembling rows, runtime.NumCPU() if <= 0.
	Workers int
}

// Matrix is a design matrix together with its right-hand side.
// Coincident grid points are merged into a single row whose value is the mean of their samples.
type Matrix struct {
	// Dim is the ambient dimension n, i.e. the length of each point.
	Dim int
	// Rows is the number of distinct points.
	Rows int
	// Cols is the number of basis functions m.
	Cols int
	// Duplicates is the number of grid points merged into an earlier one.
	Duplicates int
	// Multiplicity[i] is the number of grid points merged into row i.
	Multiplicity []int

	// V and F are set at double precision.
	V *mat.Dense
	F []float64

	// VBig and FBig are set above 53 bits of precision.
	VBig [][]*big.Float
	FBig []*big.Float
}

// IsBig returns true if the matrix was assembled in arbitrary precision.
func (m *Matrix) IsBig() bool {
	return m.VBig != nil
}

// Build assembles the design matrix of the expansion in basis kind over the support s,
// evaluated at the points of g, with right-hand side values (or valuesBig if non-nil).
func Build(ctx context.Context, g *grid.Grid, values []float64, valuesBig []*big.Float, kind basis.Kind, s *support.Set, opts Options) (m *Matrix, err error) {

	if err = kind.Validate(); err != nil {
		return nil, fmt.Errorf("cannot Build: %w", err)
	}

	if s.Dim() != g.Dim() {
		return nil, fmt.Errorf("cannot Build: support dimension %d != grid dimension %d: %w", s.Dim(), g.Dim(), ErrDimensionMismatch)
	}

	if g.Len() == 0 {
		return nil, fmt.Errorf("cannot Build: empty grid: %w", grid.ErrUnderdetermined)
	}

	if valuesBig != nil {
		if len(valuesBig) != g.Len() {
			return nil, fmt.Errorf("cannot Build: %d values for %d rows: %w", len(valuesBig), g.Len(), ErrDimensionMismatch)
		}
	} else if len(values) != g.Len() {
		return nil, fmt.Errorf("cannot Build: %d values for %d rows: %w", len(values), g.Len(), ErrDimensionMismatch)
	}

	prec := opts.Prec
	if prec == 0 {
		prec = 53
	}

	if prec <= 53 {
		return buildDouble(ctx, g, values, kind, s, opts.Workers)
	}

	if valuesBig == nil {
		valuesBig = make([]*big.Float, len(values))
		for i := range values {
			valuesBig[i] = bignum.NewFloat(values[i], prec)
		}
	}

	return buildBig(ctx, g, valuesBig, kind, s, prec, opts.Workers)
}

// dedup returns, for each distinct point, the indexes of the grid points it merges.
// Identity is the full coordinate tuple.
func dedup(g *grid.Grid) (rows [][]int) {

	index := map[[32]byte]int{}

	buf := make([]byte, 8*g.Dim())

	for i := 0; i < g.Len(); i++ {

		h := blake3.New()

		if u := g.PointBig(i); u != nil {
			for _, ui := range u {
				h.Write([]byte(ui.Text('p', 0)))
				h.Write([]byte{0})
			}
		} else {
			for a, ui := range g.Point(i) {
				binary.LittleEndian.PutUint64(buf[8*a:], bits(ui))
			}
			h.Write(buf)
		}

		var key [32]byte
		copy(key[:], h.Sum(nil))

		if j, ok := index[key]; ok {
			rows[j] = append(rows[j], i)
		} else {
			index[key] = len(rows)
			rows = append(rows, []int{i})
		}
	}

	return
}

// bits returns the bit pattern of x with -0 mapped to +0.
func bits(x float64) uint64 {
	if x == 0 {
		return 0
	}
	return math.Float64bits(x)
}

func multiplicities(rows [][]int) (mult []int, duplicates int) {
	mult = make([]int, len(rows))
	for i := range rows {
		mult[i] = len(rows[i])
		duplicates += len(rows[i]) - 1
	}
	return
}

func buildDouble(ctx context.Context, g *grid.Grid, values []float64, kind basis.Kind, s *support.Set, workers int) (m *Matrix, err error) {

	dim := g.Dim()
	rows := dedup(g)
	cols := s.Len()
	maxDeg := s.MaxDegreePerAxis()

	// Tables keyed by the value of a single coordinate: each factor of a
	// basis function only depends on its own axis.
	tables := make([]map[uint64][]float64, dim)
	for a := range tables {
		tables[a] = map[uint64][]float64{}
	}

	F := make([]float64, len(rows))

	for r, idx := range rows {
		u := g.Point(idx[0])
		for a := 0; a < dim; a++ {
			k := bits(u[a])
			if _, ok := tables[a][k]; !ok {
				phi := make([]float64, maxDeg[a]+1)
				kind.Eval(u[a], phi)
				tables[a][k] = phi
			}
		}
		for _, i := range idx {
			F[r] += values[i]
		}
		F[r] /= float64(len(idx))
	}

	exps := s.Exponents()

	V := mat.NewDense(len(rows), cols, nil)

	workers = concurrency.Workers(workers)
	rm := concurrency.NewResourceManager(make([]struct{}, workers))

	for _, rng := range concurrency.Ranges(len(rows), workers) {
		start, end := rng[0], rng[1]
		rm.Run(func(_ struct{}) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			phis := make([][]float64, dim)
			for r := start; r < end; r++ {
				u := g.Point(rows[r][0])
				for a := range phis {
					phis[a] = tables[a][bits(u[a])]
				}
				row := V.RawRowView(r)
				for j := range row {
					v := 1.0
					for a, e := range exps[j] {
						v *= phis[a][e]
					}
					row[j] = v
				}
			}
			return nil
		})
	}

	if err = rm.Wait(); err != nil {
		return nil, fmt.Errorf("cannot Build: %w", err)
	}

	mult, duplicates := multiplicities(rows)

	return &Matrix{
		Dim:          dim,
		Rows:         len(rows),
		Cols:         cols,
		Duplicates:   duplicates,
		Multiplicity: mult,
		V:            V,
		F:            F,
	}, nil
}

func buildBig(ctx context.Context, g *grid.Grid, values []*big.Float, kind basis.Kind, s *support.Set, prec uint, workers int) (m *Matrix, err error) {

	dim := g.Dim()
	rows := dedup(g)
	cols := s.Len()
	maxDeg := s.MaxDegreePerAxis()

	coords := make([][]*big.Float, len(rows))
	for r, idx := range rows {
		if u := g.PointBig(idx[0]); u != nil {
			coords[r] = u
		} else {
			coords[r] = make([]*big.Float, dim)
			for a, ua := range g.Point(idx[0]) {
				coords[r][a] = bignum.NewFloat(ua, prec)
			}
		}
	}

	tables := make([]map[string][]*big.Float, dim)
	for a := range tables {
		tables[a] = map[string][]*big.Float{}
	}

	F := bignum.NewFloatSlice(len(rows), prec)

	for r, idx := range rows {
		for a := 0; a < dim; a++ {
			k := coords[r][a].Text('p', 0)
			if _, ok := tables[a][k]; !ok {
				x := new(big.Float).SetPrec(prec).Set(coords[r][a])
				phi := bignum.NewFloatSlice(maxDeg[a]+1, prec)
				kind.EvalBig(x, phi)
				tables[a][k] = phi
			}
		}
		for _, i := range idx {
			F[r].Add(F[r], values[i])
		}
		F[r].Quo(F[r], bignum.NewFloat(len(idx), prec))
	}

	exps := s.Exponents()

	V := make([][]*big.Float, len(rows))

	workers = concurrency.Workers(workers)
	rm := concurrency.NewResourceManager(make([]struct{}, workers))

	for _, rng := range concurrency.Ranges(len(rows), workers) {
		start, end := rng[0], rng[1]
		rm.Run(func(_ struct{}) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			phis := make([][]*big.Float, dim)
			for r := start; r < end; r++ {
				for a := range phis {
					phis[a] = tables[a][coords[r][a].Text('p', 0)]
				}
				row := bignum.NewFloatSlice(cols, prec)
				for j := range row {
					row[j].SetInt64(1)
					for a, e := range exps[j] {
						if e != 0 {
							row[j].Mul(row[j], phis[a][e])
						}
					}
				}
				V[r] = row
			}
			return nil
		})
	}

	if err = rm.Wait(); err != nil {
		return nil, fmt.Errorf("cannot Build: %w", err)
	}

	mult, duplicates := multiplicities(rows)

	return &Matrix{
		Dim:          dim,
		Rows:         len(rows),
		Cols:         cols,
		Duplicates:   duplicates,
		Multiplicity: mult,
		VBig:         V,
		FBig:         F,
	}, nil
}

// Eval returns sum_j coeffs[j] * prod_a phi_{alpha_j,a}(u_a) at a point u in reference coordinates.
func Eval(kind basis.Kind, s *support.Set, coeffs []float64, u []float64) (y float64) {

	maxDeg := s.MaxDegreePerAxis()

	phis := make([][]float64, len(u))
	for a := range phis {
		phis[a] = make([]float64, maxDeg[a]+1)
		kind.Eval(u[a], phis[a])
	}

	for j := 0; j < s.Len(); j++ {
		v := coeffs[j]
		for a, e := range s.At(j) {
			v *= phis[a][e]
		}
		y += v
	}

	return
}

// Gradient writes the partial derivatives of [Eval] with respect to u on grad
// and returns grad.
func Gradient(kind basis.Kind, s *support.Set, coeffs []float64, u, grad []float64) []float64 {

	if len(grad) != len(u) {
		grad = make([]float64, len(u))
	}

	maxDeg := s.MaxDegreePerAxis()

	phis := make([][]float64, len(u))
	dphis := make([][]float64, len(u))
	for a := range phis {
		phis[a] = make([]float64, maxDeg[a]+1)
		dphis[a] = make([]float64, maxDeg[a]+1)
		kind.Eval(u[a], phis[a])
		kind.EvalDerivative(u[a], dphis[a])
	}

	for i := range grad {
		grad[i] = 0
	}

	for j := 0; j < s.Len(); j++ {
		exps := s.At(j)
		for i := range grad {
			v := coeffs[j]
			for a, e := range exps {
				if a == i {
					v *= dphis[a][e]
				} else {
					v *= phis[a][e]
				}
			}
			grad[i] += v
		}
	}

	return grad
}

// EvalBig is the arbitrary precision variant of [Eval], computed at prec bits.
func EvalBig(kind basis.Kind, s *support.Set, coeffs []*big.Float, u []*big.Float, prec uint) (y *big.Float) {

	maxDeg := s.MaxDegreePerAxis()

	phis := make([][]*big.Float, len(u))
	for a := range phis {
		phis[a] = bignum.NewFloatSlice(maxDeg[a]+1, prec)
		x := new(big.Float).SetPrec(prec).Set(u[a])
		kind.EvalBig(x, phis[a])
	}

	y = new(big.Float).SetPrec(prec)
	v := new(big.Float).SetPrec(prec)

	for j := 0; j < s.Len(); j++ {
		v.Set(coeffs[j])
		for a, e := range s.At(j) {
			v.Mul(v, phis[a][e])
		}
		y.Add(y, v)
	}

	return
}

// float64Rows returns a copy of the rows of the matrix rounded to float64.
func (m *Matrix) float64Rows() (rows [][]float64) {
	rows = make([][]float64, m.Rows)
	for i := range rows {
		if m.V != nil {
			rows[i] = utils.CopySlice(m.V.RawRowView(i))
		} else {
			rows[i] = bignum.Float64Slice(m.VBig[i])
		}
	}
	return
}
