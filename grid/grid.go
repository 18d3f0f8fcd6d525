// Package grid implements the sampling grids on which target functions are
// evaluated: tensor products of one-dimensional node sets, scaled and centered
// onto the sampling box, together with the sample-size policy and the memory
// budget guarding their allocation.
package grid

import (
	"context"
	"fmt"
	"math"
	"math/big"

	"github.com/tuneinsight/critpoint/basis"
	"github.com/tuneinsight/critpoint/utils"
	"github.com/tuneinsight/critpoint/utils/bignum"
)

// Function is a scalar target function evaluated at a point given in original (unscaled) coordinates.
type Function func(x []float64) float64

// BigFunction is implemented by targets which can also be evaluated in arbitrary precision.
// The precision of the result must be at least that of the inputs.
type BigFunction interface {
	EvaluateBig(x []*big.Float) *big.Float
}

// Literal is the unchecked description of a tensor-product grid.
type Literal struct {
	// Basis selects the node family.
	Basis basis.Kind
	// Dim is the ambient dimension n.
	Dim int
	// GN is the grid order: the grid has GN+1 nodes per axis.
	GN int
	// Center is the center of the sampling box.
	Center []float64
	// HalfWidth is the per-axis half-width of the sampling box.
	HalfWidth []float64
	// Prec is the precision, in bits, of the node coordinates.
	// Above 53 the nodes are also stored in arbitrary precision.
	Prec uint
	// Budget bounds the number of points.
	Budget Budget
}

// Grid is an ordered set of K points of R^n stored in reference coordinates
// u in [-1, 1]^n, with the affine map x = Center + HalfWidth * u to the
// original coordinates. A Grid is immutable.
type Grid struct {
	dim       int
	count     int
	perAxis   []int
	points    []float64
	bigPoints []*big.Float
	center    []float64
	halfWidth []float64
	prec      uint
}

// New builds the tensor grid described by lit.
// The point budget is checked before anything is allocated.
func New(lit Literal) (g *Grid, err error) {

	if err = lit.Basis.Validate(); err != nil {
		return nil, fmt.Errorf("cannot New: %w", err)
	}

	if lit.GN < 0 {
		return nil, fmt.Errorf("cannot New: GN=%d < 0", lit.GN)
	}

	if err = checkBox(lit.Dim, lit.Center, lit.HalfWidth); err != nil {
		return nil, fmt.Errorf("cannot New: %w", err)
	}

	perAxis := utils.RepeatSlice(lit.GN+1, lit.Dim)

	if _, err = lit.Budget.Check(perAxis); err != nil {
		return nil, fmt.Errorf("cannot New: %w", err)
	}

	prec := lit.Prec
	if prec == 0 {
		prec = 53
	}

	axes := make([][]float64, lit.Dim)
	nodes := lit.Basis.Nodes(lit.GN + 1)
	for i := range axes {
		axes[i] = nodes
	}

	var bigAxes [][]*big.Float
	if prec > 53 {
		bigNodes := lit.Basis.NodesBig(lit.GN+1, prec)
		bigAxes = make([][]*big.Float, lit.Dim)
		for i := range bigAxes {
			bigAxes[i] = bigNodes
		}
	}

	return newTensor(axes, bigAxes, lit.Center, lit.HalfWidth, prec), nil
}

// NewTensor builds the Cartesian product of the one-dimensional node sets axes[i],
// given in reference coordinates, mapped onto the box of given center and half-width.
func NewTensor(axes [][]float64, center, halfWidth []float64, budget Budget) (g *Grid, err error) {

	if err = checkBox(len(axes), center, halfWidth); err != nil {
		return nil, fmt.Errorf("cannot NewTensor: %w", err)
	}

	perAxis := make([]int, len(axes))
	for i := range axes {
		perAxis[i] = len(axes[i])
	}

	if _, err = budget.Check(perAxis); err != nil {
		return nil, fmt.Errorf("cannot NewTensor: %w", err)
	}

	return newTensor(axes, nil, center, halfWidth, 53), nil
}

// NewScattered builds a grid from an explicit list of points in reference coordinates.
// Points are kept as given, duplicates included.
func NewScattered(points [][]float64, center, halfWidth []float64, budget Budget) (g *Grid, err error) {

	dim := len(center)

	if err = checkBox(dim, center, halfWidth); err != nil {
		return nil, fmt.Errorf("cannot NewScattered: %w", err)
	}

	if len(points) == 0 {
		return nil, fmt.Errorf("cannot NewScattered: empty point list: %w", ErrUnderdetermined)
	}

	if len(points) > budget.Limit() {
		return nil, fmt.Errorf("cannot NewScattered: %w", &ResourceLimitError{Requested: len(points), Permitted: budget.Limit()})
	}

	flat := make([]float64, 0, len(points)*dim)
	for i := range points {
		if len(points[i]) != dim {
			return nil, fmt.Errorf("cannot NewScattered: point %d has length %d != dimension %d", i, len(points[i]), dim)
		}
		flat = append(flat, points[i]...)
	}

	return &Grid{
		dim:       dim,
		count:     len(points),
		points:    flat,
		center:    utils.CopySlice(center),
		halfWidth: utils.CopySlice(halfWidth),
		prec:      53,
	}, nil
}

func checkBox(dim int, center, halfWidth []float64) error {

	if dim < 1 {
		return fmt.Errorf("dimension %d < 1", dim)
	}

	if len(center) != dim {
		return fmt.Errorf("center has length %d != dimension %d", len(center), dim)
	}

	if len(halfWidth) != dim {
		return fmt.Errorf("half-width has length %d != dimension %d", len(halfWidth), dim)
	}

	for i := range halfWidth {
		if !(halfWidth[i] > 0) || math.IsInf(halfWidth[i], 0) {
			return fmt.Errorf("half-width[%d]=%v must be positive and finite", i, halfWidth[i])
		}
		if math.IsNaN(center[i]) || math.IsInf(center[i], 0) {
			return fmt.Errorf("center[%d]=%v must be finite", i, center[i])
		}
	}

	return nil
}

// newTensor enumerates the tensor product in row-major order, the last axis varying fastest.
func newTensor(axes [][]float64, bigAxes [][]*big.Float, center, halfWidth []float64, prec uint) *Grid {

	dim := len(axes)

	perAxis := make([]int, dim)
	for i := range axes {
		perAxis[i] = len(axes[i])
	}

	// checked by Budget.Check
	count := utils.Prod(perAxis)

	points := make([]float64, count*dim)

	var bigPoints []*big.Float
	if bigAxes != nil {
		bigPoints = make([]*big.Float, count*dim)
	}

	idx := make([]int, dim)
	for i := 0; i < count; i++ {
		for axis := 0; axis < dim; axis++ {
			points[i*dim+axis] = axes[axis][idx[axis]]
			if bigPoints != nil {
				bigPoints[i*dim+axis] = bigAxes[axis][idx[axis]]
			}
		}
		for axis := dim - 1; axis >= 0; axis-- {
			if idx[axis]++; idx[axis] < perAxis[axis] {
				break
			}
			idx[axis] = 0
		}
	}

	return &Grid{
		dim:       dim,
		count:     count,
		perAxis:   perAxis,
		points:    points,
		bigPoints: bigPoints,
		center:    utils.CopySlice(center),
		halfWidth: utils.CopySlice(halfWidth),
		prec:      prec,
	}
}

// Dim returns the ambient dimension n (the length of each point).
func (g *Grid) Dim() int {
	return g.dim
}

// Len returns the number of points K.
func (g *Grid) Len() int {
	return g.count
}

// PerAxis returns the number of nodes along each axis of a tensor grid, nil for scattered grids.
func (g *Grid) PerAxis() []int {
	return utils.CopySlice(g.perAxis)
}

// Prec returns the precision in bits of the stored coordinates.
func (g *Grid) Prec() uint {
	return g.prec
}

// HasBig returns true if the grid stores arbitrary precision coordinates.
func (g *Grid) HasBig() bool {
	return g.bigPoints != nil
}

// Center returns a copy of the center of the sampling box.
func (g *Grid) Center() []float64 {
	return utils.CopySlice(g.center)
}

// HalfWidth returns a copy of the per-axis half-width of the sampling box.
func (g *Grid) HalfWidth() []float64 {
	return utils.CopySlice(g.halfWidth)
}

// Point returns the i-th point in reference coordinates.
// The returned slice aliases the grid and must not be modified.
func (g *Grid) Point(i int) []float64 {
	return g.points[i*g.dim : (i+1)*g.dim]
}

// PointBig returns the i-th point in reference coordinates in arbitrary precision,
// or nil if the grid does not store them.
// The returned slice aliases the grid and must not be modified.
func (g *Grid) PointBig(i int) []*big.Float {
	if g.bigPoints == nil {
		return nil
	}
	return g.bigPoints[i*g.dim : (i+1)*g.dim]
}

// Original writes the i-th point in original coordinates on dst and returns it.
func (g *Grid) Original(i int, dst []float64) []float64 {
	if len(dst) != g.dim {
		dst = make([]float64, g.dim)
	}
	u := g.Point(i)
	for axis := range dst {
		dst[axis] = g.center[axis] + g.halfWidth[axis]*u[axis]
	}
	return dst
}

// Range returns, for each axis, the [min, max] interval covered by the points in original coordinates.
func (g *Grid) Range() (r [][2]float64) {
	r = make([][2]float64, g.dim)
	for axis := range r {
		r[axis] = [2]float64{math.Inf(1), math.Inf(-1)}
	}
	x := make([]float64, g.dim)
	for i := 0; i < g.count; i++ {
		g.Original(i, x)
		for axis := range r {
			r[axis][0] = math.Min(r[axis][0], x[axis])
			r[axis][1] = math.Max(r[axis][1], x[axis])
		}
	}
	return
}

// Sample evaluates f at every point of the grid, in original coordinates.
// It returns an error if f returns a non-finite value or if ctx is done.
func (g *Grid) Sample(ctx context.Context, f Function) (values []float64, err error) {

	values = make([]float64, g.count)

	x := make([]float64, g.dim)

	for i := range values {

		if i&1023 == 0 {
			if err = ctx.Err(); err != nil {
				return nil, err
			}
		}

		g.Original(i, x)

		if values[i] = f(x); math.IsNaN(values[i]) || math.IsInf(values[i], 0) {
			return nil, fmt.Errorf("cannot Sample: f(%v) = %v", x, values[i])
		}
	}

	return
}

// SampleBig evaluates f at every point of the grid in arbitrary precision.
// The original coordinates are computed at the grid precision from the
// arbitrary precision reference coordinates if available.
func (g *Grid) SampleBig(ctx context.Context, f BigFunction) (values []*big.Float, err error) {

	values = make([]*big.Float, g.count)

	center := make([]*big.Float, g.dim)
	halfWidth := make([]*big.Float, g.dim)
	for axis := range center {
		center[axis] = bignum.NewFloat(g.center[axis], g.prec)
		halfWidth[axis] = bignum.NewFloat(g.halfWidth[axis], g.prec)
	}

	x := bignum.NewFloatSlice(g.dim, g.prec)

	for i := range values {

		if i&255 == 0 {
			if err = ctx.Err(); err != nil {
				return nil, err
			}
		}

		uBig := g.PointBig(i)
		u := g.Point(i)

		for axis := range x {
			if uBig != nil {
				x[axis].Set(uBig[axis])
			} else {
				x[axis].SetFloat64(u[axis])
			}
			x[axis].Mul(x[axis], halfWidth[axis])
			x[axis].Add(x[axis], center[axis])
		}

		if values[i] = f.EvaluateBig(x); values[i] == nil || values[i].IsInf() {
			return nil, fmt.Errorf("cannot SampleBig: non-finite value at point %d", i)
		}
	}

	return
}
