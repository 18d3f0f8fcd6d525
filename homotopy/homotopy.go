// Package homotopy finds all the isolated complex roots of a square polynomial
// system by total-degree homotopy continuation: the roots of the start system
// u_i^{D_i} - 1 = 0 are tracked along H(u, t) = (1-t) gamma G(u) + t F(u)
// from t = 0 to t = 1 with a random complex gamma.
package homotopy

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"math/cmplx"
	"time"

	"github.com/tuneinsight/critpoint/utils"
	"github.com/tuneinsight/critpoint/utils/concurrency"
	"github.com/tuneinsight/critpoint/utils/sampling"
)

// DefaultMaxPaths is the default ceiling on the number of tracked paths.
const DefaultMaxPaths = 1 << 16

var (
	// ErrZeroEquation is returned when an equation of the system is identically zero.
	ErrZeroEquation = errors.New("identically zero equation")

	// ErrTooManyPaths is returned when the Bezout number exceeds Options.MaxPaths.
	ErrTooManyPaths = errors.New("too many paths")
)

// System is a square polynomial system with its Jacobian.
// Eval and Jacobian must be safe for concurrent use.
type System interface {
	// Dim returns the number of equations and variables.
	Dim() int
	// Degrees returns the total degree of each equation.
	Degrees() []int
	// Eval writes F(u) on f.
	Eval(u, f []complex128)
	// Jacobian writes dF_i/du_j(u) on jac[i][j].
	Jacobian(u []complex128, jac [][]complex128)
}

// Status is the outcome of a tracked path.
type Status int

const (
	// Converged : the path reached t = 1 and its endpoint was refined to a root.
	Converged = Status(0)
	// AtInfinity : the path diverged.
	AtInfinity = Status(1)
	// Failed : the step size underflowed, the step budget or the time budget ran out,
	// or the endpoint could not be refined.
	Failed = Status(2)
)

func (s Status) String() string {
	switch s {
	case Converged:
		return "converged"
	case AtInfinity:
		return "at-infinity"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Options configures [Solve]. Zero values select the defaults.
type Options struct {
	// Gamma is the constant of the homotopy. If zero, a unit complex number
	// is drawn from a blake2b keyed PRNG seeded with Seed.
	Gamma complex128
	Seed  uint64
	// Workers is the number of paths tracked concurrently, runtime.NumCPU() if zero.
	Workers int
	// PathTimeout bounds the tracking time of each path, unbounded if zero.
	PathTimeout time.Duration
	// InitialStep, MinStep and MaxStep bound the step in t.
	// Defaults are 1e-2, 1e-14 and 1e-1.
	InitialStep float64
	MinStep     float64
	MaxStep     float64
	// Tolerance is the relative Newton tolerance, 1e-10 by default.
	Tolerance float64
	// DivergenceBound is the norm above which a path is declared at infinity, 1e8 by default.
	DivergenceBound float64
	// MaxSteps bounds the number of steps of each path, 1e5 by default.
	MaxSteps int
	// EndgameIterations bounds the Newton iterations at t = 1, 50 by default.
	EndgameIterations int
	// MaxPaths bounds the number of paths, DefaultMaxPaths by default.
	MaxPaths int
	// Verbose enables progress logging.
	Verbose bool
}

func (o Options) withDefaults() Options {
	if o.InitialStep <= 0 {
		o.InitialStep = 1e-2
	}
	if o.MinStep <= 0 {
		o.MinStep = 1e-14
	}
	if o.MaxStep <= 0 {
		o.MaxStep = 1e-1
	}
	if o.Tolerance <= 0 {
		o.Tolerance = 1e-10
	}
	if o.DivergenceBound <= 0 {
		o.DivergenceBound = 1e8
	}
	if o.MaxSteps <= 0 {
		o.MaxSteps = 100000
	}
	if o.EndgameIterations <= 0 {
		o.EndgameIterations = 50
	}
	if o.MaxPaths <= 0 {
		o.MaxPaths = DefaultMaxPaths
	}
	return o
}

// Path is a tracked solution path.
type Path struct {
	Start    []complex128
	Solution []complex128
	Status   Status
	Steps    int
	// Residual is ||F(Solution)||_2.
	Residual float64
	// Reason describes why a path failed.
	Reason string
}

// Result is the outcome of [Solve].
type Result struct {
	Gamma      complex128
	Paths      []Path
	Converged  int
	AtInfinity int
	Failed     int
}

// Solutions returns the endpoints of the converged paths.
func (r *Result) Solutions() (sols [][]complex128) {
	for i := range r.Paths {
		if r.Paths[i].Status == Converged {
			sols = append(sols, r.Paths[i].Solution)
		}
	}
	return
}

// BezoutNumber returns prod_i degrees[i], or an error if it exceeds limit.
func BezoutNumber(degrees []int, limit int) (n int, err error) {
	n = 1
	for _, d := range degrees {
		if n > limit/utils.Max(d, 1) {
			return 0, fmt.Errorf("cannot BezoutNumber: more than %d paths: %w", limit, ErrTooManyPaths)
		}
		n *= d
	}
	if n > limit {
		return 0, fmt.Errorf("cannot BezoutNumber: %d paths > %d: %w", n, limit, ErrTooManyPaths)
	}
	return
}

// Solve tracks the prod_i D_i paths of the total-degree homotopy of sys, where
// D_i is the degree of the i-th equation. Paths are tracked concurrently, each
// with its own timeout. Solve only returns an error for invalid systems or a
// done ctx; individual path failures are reported in the [Result].
func Solve(ctx context.Context, sys System, opts Options) (res *Result, err error) {

	opts = opts.withDefaults()

	n := sys.Dim()
	degrees := sys.Degrees()

	if len(degrees) != n {
		return nil, fmt.Errorf("cannot Solve: %d degrees for %d equations", len(degrees), n)
	}

	for i, d := range degrees {
		if d < 0 {
			return nil, fmt.Errorf("cannot Solve: equation %d: %w", i, ErrZeroEquation)
		}
	}

	gamma := opts.Gamma
	if gamma == 0 {
		prng, err := sampling.NewSeededPRNG(opts.Seed)
		if err != nil {
			return nil, fmt.Errorf("cannot Solve: %w", err)
		}
		gamma = sampling.RandUnitComplex(prng)
	}

	res = &Result{Gamma: gamma}

	// a non-zero constant equation has no root
	for _, d := range degrees {
		if d == 0 {
			return res, nil
		}
	}

	count, err := BezoutNumber(degrees, opts.MaxPaths)
	if err != nil {
		return nil, fmt.Errorf("cannot Solve: %w", err)
	}

	res.Paths = make([]Path, count)

	workers := concurrency.Workers(opts.Workers)

	trackers := make([]*tracker, workers)
	for i := range trackers {
		trackers[i] = newTracker(sys, degrees, gamma, opts)
	}

	rm := concurrency.NewResourceManager(trackers)

	for _, rng := range concurrency.Ranges(count, 4*workers) {
		start, end := rng[0], rng[1]
		rm.Run(func(tr *tracker) error {
			for i := start; i < end; i++ {
				if err := ctx.Err(); err != nil {
					return err
				}
				res.Paths[i] = tr.track(ctx, startSolution(i, degrees))
			}
			return nil
		})
	}

	if err = rm.Wait(); err != nil {
		return nil, fmt.Errorf("cannot Solve: %w", err)
	}

	for i := range res.Paths {
		switch res.Paths[i].Status {
		case Converged:
			res.Converged++
		case AtInfinity:
			res.AtInfinity++
		default:
			res.Failed++
		}
	}

	if opts.Verbose {
		log.Printf("homotopy: %d paths, %d converged, %d at infinity, %d failed", count, res.Converged, res.AtInfinity, res.Failed)
	}

	return
}

// startSolution returns the idx-th root of the start system, with
// u_i = exp(2 i pi k_i / D_i) and idx = sum_i k_i prod_{j>i} D_j.
func startSolution(idx int, degrees []int) (u []complex128) {
	u = make([]complex128, len(degrees))
	for i := len(degrees) - 1; i >= 0; i-- {
		k := idx % degrees[i]
		idx /= degrees[i]
		u[i] = cmplx.Rect(1, 2*math.Pi*float64(k)/float64(degrees[i]))
	}
	return
}
