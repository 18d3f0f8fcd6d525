package critical

import (
	"encoding/json"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/tuneinsight/critpoint/utils"
)

// maxPolishIterations bounds the real Newton iterations applied to each root.
const maxPolishIterations = 8

// Classification is the nature of a stationary point given by the signs of
// the eigenvalues of the Hessian.
type Classification int

const (
	// Minimum : all eigenvalues are positive.
	Minimum = Classification(0)
	// Maximum : all eigenvalues are negative.
	Maximum = Classification(1)
	// Saddle : eigenvalues of both signs and none vanishing.
	Saddle = Classification(2)
	// Degenerate : at least one eigenvalue vanishes.
	Degenerate = Classification(3)
)

func (c Classification) String() string {
	switch c {
	case Minimum:
		return "minimum"
	case Maximum:
		return "maximum"
	case Saddle:
		return "saddle"
	case Degenerate:
		return "degenerate"
	default:
		return fmt.Sprintf("Classification(%d)", int(c))
	}
}

// MarshalJSON encodes the receiver by name.
func (c Classification) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

// Classify returns the [Classification] of a stationary point given the
// eigenvalues of its Hessian. Eigenvalues below 1e-8 times the largest one
// in absolute value are treated as zero.
func Classify(eigenvalues []float64) Classification {

	var scale float64
	for _, v := range eigenvalues {
		scale = math.Max(scale, math.Abs(v))
	}

	if scale == 0 {
		return Degenerate
	}

	tol := 1e-8 * scale

	var pos, neg int
	for _, v := range eigenvalues {
		switch {
		case v > tol:
			pos++
		case v < -tol:
			neg++
		default:
			return Degenerate
		}
	}

	switch {
	case neg == 0:
		return Minimum
	case pos == 0:
		return Maximum
	default:
		return Saddle
	}
}

// gradient writes the gradient at u on g and returns its norm.
func (e *extractor) gradient(u []float64, g *mat.VecDense) float64 {
	for i := range e.grad {
		g.SetVec(i, e.grad[i].Eval(u))
	}
	return mat.Norm(g, 2)
}

func (e *extractor) hessian(u []float64, h *mat.SymDense) {
	for i := range e.hess {
		for j := i; j < len(e.hess); j++ {
			h.SetSym(i, j, e.hess[i][j].Eval(u))
		}
	}
}

// polish applies Newton iterations on the gradient as long as they reduce
// its norm without moving further than the cluster tolerance, and returns
// the best iterate.
func (e *extractor) polish(u []float64) (best []float64) {

	dim := len(u)

	g := mat.NewVecDense(dim, nil)
	h := mat.NewSymDense(dim, nil)
	var du mat.VecDense

	best = utils.CopySlice(u)
	cur := utils.CopySlice(u)

	res := e.gradient(cur, g)

	for it := 0; it < maxPolishIterations && res > 0; it++ {

		e.hessian(cur, h)

		if err := du.SolveVec(h, g); err != nil || mat.Norm(&du, 2) > e.opts.ClusterTolerance {
			break
		}

		for i := range cur {
			cur[i] -= du.AtVec(i)
		}

		next := e.gradient(cur, g)
		if !(next < res) {
			break
		}

		copy(best, cur)
		res = next
	}

	return
}

// describe fills the fields of pt derived from pt.U.
func (e *extractor) describe(pt *Point) {

	dim := len(pt.U)
	hw := e.p.HalfWidth()

	pt.X = e.p.Original(pt.U, nil)
	pt.Value = e.p.EvaluateReference(pt.U)

	// on the basis expansion, not on e.grad
	pt.GradientResidual = utils.Norm2(e.p.Gradient(pt.X))

	h := mat.NewSymDense(dim, nil)
	e.hessian(pt.U, h)
	for i := 0; i < dim; i++ {
		for j := i; j < dim; j++ {
			h.SetSym(i, j, h.At(i, j)/(hw[i]*hw[j]))
		}
	}

	var es mat.EigenSym
	if !es.Factorize(h, false) {
		pt.Classification = Degenerate
		return
	}

	pt.Eigenvalues = es.Values(nil)
	pt.Classification = Classify(pt.Eigenvalues)
}

// find returns the index of the point within the cluster tolerance of u, -1 if none.
func (e *extractor) find(points []Point, u []float64) int {
	for k := range points {
		if utils.Distance(points[k].U, u) <= e.opts.ClusterTolerance {
			return k
		}
	}
	return -1
}

// inside returns true if u lies in the open reference box (-1, 1)^n.
func inside(u []float64) bool {
	for _, v := range u {
		if !(math.Abs(v) < 1) {
			return false
		}
	}
	return true
}
