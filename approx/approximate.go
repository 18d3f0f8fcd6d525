// Package approx implements the adaptive least-squares approximation of a
// multivariate function by a tensor-product orthogonal polynomial expansion:
// the degree is raised until the normalized L2 residual of the fit over a
// stable sampling grid meets the target tolerance.
package approx

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"math/big"

	"github.com/tuneinsight/critpoint/design"
	"github.com/tuneinsight/critpoint/grid"
	"github.com/tuneinsight/critpoint/lsq"
	"github.com/tuneinsight/critpoint/support"
	"github.com/tuneinsight/critpoint/utils"
)

var (
	// ErrNotConverged is returned alongside the best-effort polynomial when the
	// maximum degree is reached without meeting the tolerance.
	ErrNotConverged = errors.New("not converged")

	ErrInvalidSupport        = support.ErrInvalidSupport
	ErrResourceLimitExceeded = grid.ErrResourceLimitExceeded
	ErrUnderdetermined       = grid.ErrUnderdetermined
	ErrDimensionMismatch     = design.ErrDimensionMismatch
	ErrIllConditioned        = lsq.ErrIllConditioned
)

// NotConvergedError reports the best residual reached by an exhausted refinement loop.
type NotConvergedError struct {
	Degree    support.DegreeSpec
	MaxDegree int
	L2Norm    float64
	Tolerance float64
}

func (e *NotConvergedError) Error() string {
	return fmt.Sprintf("best L2 norm %.3e at degree %s above tolerance %.3e (max degree %d)", e.L2Norm, e.Degree, e.Tolerance, e.MaxDegree)
}

func (e *NotConvergedError) Unwrap() error {
	return ErrNotConverged
}

// Function is a target function R^n -> R evaluated in original coordinates.
type Function = grid.Function

// Target is a target function which can also be evaluated in arbitrary precision.
// At extended precision its samples are taken with EvaluateBig.
type Target interface {
	Evaluate(x []float64) float64
	grid.BigFunction
}

// Approximate fits f over the sampling box of params, starting at the initial
// degree and raising it by the degree step until the L2 residual is below the
// tolerance or the next degree would exceed the maximum degree.
//
// It returns:
//   - (p, nil) with p.Status() == Converged if the tolerance is met.
//   - (p, *NotConvergedError) with p.Status() == Exhausted and p the fit of lowest
//     L2 residual otherwise.
//
// An ill-conditioned fit at one degree does not stop the loop; if no degree
// could be solved the last [lsq.IllConditionedError] is returned.
// Invalid supports, exceeded point budgets and dimension mismatches abort immediately.
func Approximate(ctx context.Context, f Function, params Parameters) (p *Polynomial, err error) {
	return approximate(ctx, f, nil, params)
}

// ApproximateTarget is [Approximate] for a [Target]; at extended precision
// the samples are computed with t.EvaluateBig.
func ApproximateTarget(ctx context.Context, t Target, params Parameters) (p *Polynomial, err error) {
	return approximate(ctx, t.Evaluate, t, params)
}

func approximate(ctx context.Context, f Function, fBig grid.BigFunction, params Parameters) (p *Polynomial, err error) {

	spec := params.InitialDegree()

	var best *Polynomial
	var lastErr error
	var history []Iteration

	for {

		if err = ctx.Err(); err != nil {
			return nil, err
		}

		fit, it, err := fitAtDegree(ctx, f, fBig, params, spec)
		history = append(history, it)

		switch {
		case err == nil:

			if params.Verbose() {
				log.Printf("approx: degree %s, %d terms, GN=%d, K=%d: L2=%.4e cond=%.4e (%s)", spec, it.Terms, it.SamplesPerDim, it.Samples, it.L2Norm, it.Cond, it.Method)
			}

			if best == nil || fit.l2Norm < best.l2Norm {
				best = fit
			}

			if fit.l2Norm < params.Tolerance() {
				fit.status = Converged
				fit.history = history
				return fit, nil
			}

		case errors.Is(err, ErrIllConditioned):

			if params.Verbose() {
				log.Printf("approx: degree %s skipped: %s", spec, err)
			}

			lastErr = err

		default:
			return nil, fmt.Errorf("cannot Approximate: degree %s: %w", spec, err)
		}

		if !spec.Raisable() || spec.Degree()+params.DegreeStep() > params.MaxDegree() {
			break
		}

		spec = spec.Raise(params.DegreeStep())
	}

	if best == nil {
		return nil, fmt.Errorf("cannot Approximate: no degree could be solved: %w", lastErr)
	}

	best.status = Exhausted
	best.history = history

	if params.Verbose() {
		log.Printf("approx: exhausted at max degree %d, best L2=%.4e at degree %s", params.MaxDegree(), best.l2Norm, best.degree)
	}

	return best, &NotConvergedError{
		Degree:    best.degree,
		MaxDegree: params.MaxDegree(),
		L2Norm:    best.l2Norm,
		Tolerance: params.Tolerance(),
	}
}

// GridOrder returns the grid order GN used to fit a support of m terms and
// maximum per-axis degree maxDeg in dimension dim: the override samplesPerDim if
// non-zero, else the smallest GN whose tensor grid satisfies the stability bound.
// GN is never below maxDeg, so that the tensor grid is unisolvent.
func GridOrder(m, dim, maxDeg int, params Parameters) (GN int, err error) {

	if GN = params.SamplesPerDim(); GN > 0 {
		K, ok := utils.PowInt(GN+1, dim)
		if ok && K <= m {
			return 0, fmt.Errorf("cannot GridOrder: %d points for %d terms: %w", K, m, ErrUnderdetermined)
		}
		return
	}

	K, err := grid.StableSampleCount(m, params.Delta(), params.Alpha())
	if err != nil {
		return 0, fmt.Errorf("cannot GridOrder: %w", err)
	}

	return utils.Max(grid.PointsPerAxis(K, dim), maxDeg), nil
}

func fitAtDegree(ctx context.Context, f Function, fBig grid.BigFunction, params Parameters, spec support.DegreeSpec) (p *Polynomial, it Iteration, err error) {

	it.Degree = spec

	s, err := support.Generate(spec, params.Dimension())
	if err != nil {
		it.Error = err.Error()
		return
	}

	it.Terms = s.Len()

	GN, err := GridOrder(s.Len(), s.Dim(), utils.MaxSlice(s.MaxDegreePerAxis()), params)
	if err != nil {
		it.Error = err.Error()
		return
	}

	it.SamplesPerDim = GN

	g, err := grid.New(grid.Literal{
		Basis:     params.Basis(),
		Dim:       params.Dimension(),
		GN:        GN,
		Center:    params.center,
		HalfWidth: params.halfWidth,
		Prec:      uint(params.Precision()),
		Budget:    params.Budget(),
	})

	if err != nil {
		it.Error = err.Error()
		return
	}

	var values []float64
	var valuesBig []*big.Float

	if fBig != nil && params.Precision().IsExtended() {
		valuesBig, err = g.SampleBig(ctx, fBig)
	} else {
		values, err = g.Sample(ctx, f)
	}

	if err != nil {
		it.Error = err.Error()
		return
	}

	m, err := design.Build(ctx, g, values, valuesBig, params.Basis(), s, design.Options{
		Prec:    uint(params.Precision()),
		Workers: params.Workers(),
	})

	if err != nil {
		it.Error = err.Error()
		return
	}

	it.Samples = m.Rows

	sol, err := lsq.Solve(m, params.SolverOptions())
	if err != nil {
		it.Error = err.Error()
		return
	}

	it.L2Norm = sol.Residual
	it.Cond = finite(sol.Cond)
	it.Method = sol.Method.String()

	return &Polynomial{
		basis:         params.Basis(),
		support:       s,
		degree:        spec,
		coeffs:        sol.Coeffs,
		coeffs64:      sol.Coeffs64,
		l2Norm:        sol.Residual,
		cond:          sol.Cond,
		method:        sol.Method,
		samples:       m.Rows,
		samplesPerDim: GN,
		sampleRange:   g.Range(),
		residuals:     sol.Residuals,
		center:        params.Center(),
		scale:         params.Scale(),
		halfWidth:     params.HalfWidth(),
		precision:     params.Precision(),
	}, it, nil
}

// finite maps +/-Inf and NaN to math.MaxFloat64 so that the value can be serialized.
func finite(x float64) float64 {
	if math.IsInf(x, 0) || math.IsNaN(x) {
		return math.MaxFloat64
	}
	return x
}
