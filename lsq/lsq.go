// Package lsq solves the discrete least-squares problem min ||Vc - F||_2
// through the normal equations (V^T V) c = V^T F.
package lsq

import (
	"errors"
	"fmt"
	"math"
	"math/big"

	"gonum.org/v1/gonum/mat"

	"github.com/tuneinsight/critpoint/design"
	"github.com/tuneinsight/critpoint/utils/bignum"
)

const (
	// DefaultCholeskyCond is the default condition number of the Gram matrix
	// up to which the normal equations are solved by Cholesky factorization.
	DefaultCholeskyCond = 1e8
	// DefaultMaxCond is the default condition number of the Gram matrix above
	// which the problem is rejected as ill-conditioned.
	DefaultMaxCond = 1e13
)

// ErrIllConditioned is returned when the Gram matrix is too ill-conditioned to be solved.
var ErrIllConditioned = errors.New("ill-conditioned system")

// IllConditionedError reports the condition number of a rejected Gram matrix.
type IllConditionedError struct {
	Cond  float64
	Limit float64
}

func (e *IllConditionedError) Error() string {
	return fmt.Sprintf("condition number %.3e exceeds %.3e", e.Cond, e.Limit)
}

func (e *IllConditionedError) Unwrap() error {
	return ErrIllConditioned
}

// Method is the factorization used to solve the normal equations.
type Method int

const (
	Cholesky    = Method(0)
	SVD         = Method(1)
	BigCholesky = Method(2)
)

func (m Method) String() string {
	switch m {
	case Cholesky:
		return "cholesky"
	case SVD:
		return "svd"
	case BigCholesky:
		return "big-cholesky"
	default:
		return fmt.Sprintf("Method(%d)", int(m))
	}
}

// Options configures [Solve]. Zero values select the defaults.
type Options struct {
	CholeskyCond float64
	MaxCond      float64
}

func (o Options) choleskyCond() float64 {
	if o.CholeskyCond <= 0 {
		return DefaultCholeskyCond
	}
	return o.CholeskyCond
}

func (o Options) maxCond() float64 {
	if o.MaxCond <= 0 {
		return DefaultMaxCond
	}
	return o.MaxCond
}

// Solution is the result of [Solve].
type Solution struct {
	// Coeffs are the coefficients at the precision of the matrix.
	Coeffs []*big.Float
	// Coeffs64 are the coefficients rounded to float64.
	Coeffs64 []float64
	// Residual is ||Vc - F||_2 / sqrt(K).
	Residual float64
	// Residuals is the per-row residual Vc - F.
	Residuals []float64
	// Cond is the 2-norm condition number of V^T V, computed in double precision.
	Cond float64
	// Method is the factorization that produced the coefficients.
	Method Method
}

// Solve solves the least-squares problem of m.
// At double precision the Gram matrix is factorized by Cholesky if its condition
// number is below opts.CholeskyCond, by a rank-revealing SVD of V otherwise, and the
// problem is rejected with an [*IllConditionedError] above opts.MaxCond.
// At extended precision the normal equations are solved by an arbitrary precision
// Cholesky factorization and only a numerically singular Gram matrix is rejected.
func Solve(m *design.Matrix, opts Options) (sol *Solution, err error) {

	if m.Rows == 0 || m.Cols == 0 {
		return nil, fmt.Errorf("cannot Solve: empty %dx%d system", m.Rows, m.Cols)
	}

	if m.IsBig() {
		return solveBig(m)
	}

	return solveDouble(m, opts)
}

// Cond returns the 2-norm condition number of the symmetric matrix g,
// +Inf if the singular value decomposition fails or g is singular.
func Cond(g mat.Matrix) float64 {
	var svd mat.SVD
	if ok := svd.Factorize(g, mat.SVDNone); !ok {
		return math.Inf(1)
	}
	values := svd.Values(nil)
	if values[len(values)-1] == 0 {
		return math.Inf(1)
	}
	return values[0] / values[len(values)-1]
}

func solveDouble(m *design.Matrix, opts Options) (sol *Solution, err error) {

	V := m.V
	F := mat.NewVecDense(m.Rows, m.F)

	var G mat.SymDense
	G.SymOuterK(1, V.T())

	var b mat.VecDense
	b.MulVec(V.T(), F)

	cond := Cond(&G)

	if limit := opts.maxCond(); !(cond <= limit) {
		return nil, fmt.Errorf("cannot Solve: %w", &IllConditionedError{Cond: cond, Limit: limit})
	}

	c := mat.NewVecDense(m.Cols, nil)
	method := SVD

	if cond <= opts.choleskyCond() {
		var ch mat.Cholesky
		if ch.Factorize(&G) {
			if err = ch.SolveVecTo(c, &b); err == nil {
				method = Cholesky
			}
		}
	}

	if method == SVD {
		var svd mat.SVD
		if ok := svd.Factorize(V, mat.SVDThin); !ok {
			return nil, fmt.Errorf("cannot Solve: %w", &IllConditionedError{Cond: math.Inf(1), Limit: opts.maxCond()})
		}
		rank := svd.Rank(math.Sqrt(1 / opts.maxCond()))
		if rank == 0 {
			return nil, fmt.Errorf("cannot Solve: %w", &IllConditionedError{Cond: math.Inf(1), Limit: opts.maxCond()})
		}
		svd.SolveVecTo(c, F, rank)
	}

	var r mat.VecDense
	r.MulVec(V, c)
	r.SubVec(&r, F)

	coeffs64 := make([]float64, m.Cols)
	coeffs := make([]*big.Float, m.Cols)
	for j := range coeffs64 {
		coeffs64[j] = c.AtVec(j)
		coeffs[j] = bignum.NewFloat(coeffs64[j], 53)
	}

	residuals := make([]float64, m.Rows)
	for i := range residuals {
		residuals[i] = r.AtVec(i)
	}

	return &Solution{
		Coeffs:    coeffs,
		Coeffs64:  coeffs64,
		Residual:  mat.Norm(&r, 2) / math.Sqrt(float64(m.Rows)),
		Residuals: residuals,
		Cond:      cond,
		Method:    method,
	}, nil
}

func solveBig(m *design.Matrix) (sol *Solution, err error) {

	prec := m.VBig[0][0].Prec()

	G, b := bignum.MatTransMul(m.VBig, m.FBig, prec)

	G64 := mat.NewSymDense(m.Cols, nil)
	for i := range G {
		for j := i; j < m.Cols; j++ {
			v, _ := G[i][j].Float64()
			G64.SetSym(i, j, v)
		}
	}

	cond := Cond(G64)

	coeffs, err := bignum.CholeskySolve(G, b)
	if err != nil {
		return nil, fmt.Errorf("cannot Solve: %w: %w", &IllConditionedError{Cond: cond, Limit: 1 / bignum.Epsilon(prec)}, err)
	}

	residuals := make([]float64, m.Rows)
	norm := new(big.Float).SetPrec(prec)
	r := new(big.Float).SetPrec(prec)
	tmp := new(big.Float).SetPrec(prec)
	for i, row := range m.VBig {
		r.Neg(m.FBig[i])
		for j := range row {
			r.Add(r, tmp.Mul(row[j], coeffs[j]))
		}
		residuals[i], _ = r.Float64()
		norm.Add(norm, tmp.Mul(r, r))
	}

	norm.Quo(norm, bignum.NewFloat(m.Rows, prec))
	residual, _ := norm.Sqrt(norm).Float64()

	return &Solution{
		Coeffs:    coeffs,
		Coeffs64:  bignum.Float64Slice(coeffs),
		Residual:  residual,
		Residuals: residuals,
		Cond:      cond,
		Method:    BigCholesky,
	}, nil
}
