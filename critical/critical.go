// Package critical extracts the stationary points of an [approx.Polynomial] by
// solving its gradient system with homotopy continuation.
package critical

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"sort"
	"time"

	"github.com/tuneinsight/critpoint/approx"
	"github.com/tuneinsight/critpoint/homotopy"
	"github.com/tuneinsight/critpoint/mpoly"
	"github.com/tuneinsight/critpoint/utils"
)

const (
	// DefaultRealTolerance is the default bound on the imaginary parts of a real root.
	DefaultRealTolerance = 1e-8
	// DefaultDropTolerance is the default relative threshold below which monomial coefficients are dropped.
	DefaultDropTolerance = 1e-10
	// DefaultClusterTolerance is the default distance, in reference coordinates,
	// below which two roots are considered the same point.
	DefaultClusterTolerance = 1e-6
)

var (
	// ErrRootSolveFailure is returned, along with the partial set, when continuation paths fail.
	ErrRootSolveFailure = errors.New("root solve failure")

	// ErrNonIsolated is returned when a component of the gradient vanishes identically,
	// in which case the critical points are not isolated.
	ErrNonIsolated = errors.New("non-isolated critical points")
)

// RootSolveError reports the number of failed continuation paths.
type RootSolveError struct {
	Failed int
	Paths  int
}

func (e *RootSolveError) Error() string {
	return fmt.Sprintf("%d of %d paths failed: %s", e.Failed, e.Paths, ErrRootSolveFailure)
}

func (e *RootSolveError) Unwrap() error {
	return ErrRootSolveFailure
}

// Options configures [Extract]. Zero values select the defaults.
type Options struct {
	// RealTolerance bounds max_i |Im u_i| of the roots kept as real.
	RealTolerance float64
	// Precision is the precision of the monomial expansion, at least the one of the polynomial.
	Precision approx.Precision
	// DropTolerance is relative to the largest monomial coefficient.
	DropTolerance    float64
	ClusterTolerance float64
	Workers          int
	PathTimeout      time.Duration
	// Seed keys the PRNG drawing the homotopy constant.
	Seed    uint64
	Verbose bool
}

func (o Options) withDefaults() Options {
	if o.RealTolerance <= 0 {
		o.RealTolerance = DefaultRealTolerance
	}
	if o.DropTolerance <= 0 {
		o.DropTolerance = DefaultDropTolerance
	}
	if o.ClusterTolerance <= 0 {
		o.ClusterTolerance = DefaultClusterTolerance
	}
	return o
}

// Point is a real stationary point of a polynomial.
type Point struct {
	// X is in original coordinates.
	X []float64 `json:"x"`
	// U is in reference coordinates.
	U     []float64 `json:"u"`
	Value float64   `json:"value"`
	// GradientResidual is ||grad p(X)||_2 in original coordinates.
	GradientResidual float64 `json:"gradient_residual"`
	// Imag is max_i |Im u_i| of the root returned by the continuation.
	Imag float64 `json:"imag"`
	// Multiplicity is the number of paths that landed on the point.
	Multiplicity int `json:"multiplicity"`
	// Eigenvalues of the Hessian in original coordinates, in ascending order.
	Eigenvalues    []float64      `json:"eigenvalues"`
	Classification Classification `json:"classification"`
}

// Set is the set of real stationary points of a polynomial inside its sampling box,
// along with the accounting of the continuation paths.
type Set struct {
	Dim    int     `json:"dimension"`
	Points []Point `json:"points"`

	Paths      int `json:"paths"`
	Converged  int `json:"converged"`
	AtInfinity int `json:"at_infinity"`
	Failed     int `json:"failed"`
	// Complex counts the converged roots with an imaginary part above the tolerance.
	Complex int `json:"complex"`
	// OutOfDomain counts the real roots outside of the open sampling box.
	OutOfDomain int `json:"out_of_domain"`
}

// Len returns the number of points.
func (s *Set) Len() int {
	return len(s.Points)
}

// X returns the points in original coordinates.
func (s *Set) X() (x [][]float64) {
	x = make([][]float64, len(s.Points))
	for i := range s.Points {
		x[i] = utils.CopySlice(s.Points[i].X)
	}
	return
}

// Filter returns the points with the given classification.
func (s *Set) Filter(c Classification) (points []Point) {
	for _, pt := range s.Points {
		if pt.Classification == c {
			points = append(points, pt)
		}
	}
	return
}

// Stats summarizes the gradient residuals of the points.
func (s *Set) Stats() approx.ResidualStats {
	residuals := make([]float64, len(s.Points))
	for i := range s.Points {
		residuals[i] = s.Points[i].GradientResidual
	}
	return approx.NewResidualStats(residuals)
}

// Extract returns the real stationary points of p strictly inside its sampling box.
// Converged roots with max_i |Im u_i| > RealTolerance or max_i |u_i| >= 1 are discarded,
// the others are clustered, polished with real Newton iterations and mapped back to
// original coordinates. If some continuation paths failed, the partial set is returned
// along with a [*RootSolveError].
func Extract(ctx context.Context, p *approx.Polynomial, opts Options) (set *Set, err error) {

	if p == nil {
		return nil, fmt.Errorf("cannot Extract: nil polynomial")
	}

	opts = opts.withDefaults()

	prec := utils.Max(uint(opts.Precision), uint(p.Precision()))

	poly, err := mpoly.FromBasis(p.Basis(), p.Support(), p.Coeffs(), prec, opts.DropTolerance)
	if err != nil {
		return nil, fmt.Errorf("cannot Extract: %w", err)
	}

	e := newExtractor(p, poly, opts)

	for i := range e.grad {
		if e.grad[i].IsZero() {
			return nil, fmt.Errorf("cannot Extract: dp/du_%d = 0: %w", i, ErrNonIsolated)
		}
	}

	sys, err := mpoly.NewSystem(e.grad)
	if err != nil {
		return nil, fmt.Errorf("cannot Extract: %w", err)
	}

	res, err := homotopy.Solve(ctx, sys, homotopy.Options{
		Seed:        opts.Seed,
		Workers:     opts.Workers,
		PathTimeout: opts.PathTimeout,
		Verbose:     opts.Verbose,
	})
	if err != nil {
		return nil, fmt.Errorf("cannot Extract: %w", err)
	}

	set = e.collect(res)

	if opts.Verbose {
		log.Printf("critical: %d points, %d complex, %d out of domain, %d failed paths", set.Len(), set.Complex, set.OutOfDomain, set.Failed)
	}

	if set.Failed > 0 {
		return set, fmt.Errorf("cannot Extract: %w", &RootSolveError{Failed: set.Failed, Paths: set.Paths})
	}

	return set, nil
}

// extractor filters and refines the roots of the gradient of a polynomial.
// grad and hess are the derivatives of its monomial expansion in reference coordinates.
type extractor struct {
	p    *approx.Polynomial
	grad []*mpoly.Poly
	hess [][]*mpoly.Poly
	opts Options
}

func newExtractor(p *approx.Polynomial, poly *mpoly.Poly, opts Options) *extractor {
	return &extractor{p: p, grad: poly.Gradient(), hess: poly.Hessian(), opts: opts}
}

func (e *extractor) collect(res *homotopy.Result) (set *Set) {

	dim := len(e.grad)

	set = &Set{
		Dim:        dim,
		Paths:      len(res.Paths),
		Converged:  res.Converged,
		AtInfinity: res.AtInfinity,
		Failed:     res.Failed,
	}

	for _, sol := range res.Solutions() {

		var im float64
		u := make([]float64, dim)
		for i := range sol {
			im = math.Max(im, math.Abs(imag(sol[i])))
			u[i] = real(sol[i])
		}

		if im > e.opts.RealTolerance {
			set.Complex++
			continue
		}

		u = e.polish(u)

		if !inside(u) {
			set.OutOfDomain++
			continue
		}

		if k := e.find(set.Points, u); k >= 0 {
			set.Points[k].Multiplicity++
			set.Points[k].Imag = math.Max(set.Points[k].Imag, im)
			continue
		}

		set.Points = append(set.Points, Point{U: u, Imag: im, Multiplicity: 1})
	}

	for i := range set.Points {
		e.describe(&set.Points[i])
	}

	sort.Slice(set.Points, func(i, j int) bool {
		return utils.CompareSlice(set.Points[i].X, set.Points[j].X) < 0
	})

	return
}
