package critical

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tuneinsight/critpoint/approx"
	"github.com/tuneinsight/critpoint/basis"
	"github.com/tuneinsight/critpoint/homotopy"
	"github.com/tuneinsight/critpoint/mpoly"
	"github.com/tuneinsight/critpoint/testfunc"
	"github.com/tuneinsight/critpoint/utils"
)

func testString(opname string, prec approx.Precision) string {
	return fmt.Sprintf("%s/prec=%s", opname, prec)
}

// doubleWell has two minima at (-0.5, -0.05) and (0.5, 0.05) and a saddle at the origin.
func doubleWell(x []float64) float64 {
	a := x[0]*x[0] - 0.25
	b := x[1] - 0.1*x[0]
	return 10 * (a*a + b*b)
}

func fit(t *testing.T, f approx.Function, degree int, tolerance float64, halfWidth interface{}) *approx.Polynomial {
	params, err := approx.NewParametersFromLiteral(approx.ParametersLiteral{
		Dimension:     2,
		InitialDegree: degree,
		Tolerance:     tolerance,
		HalfWidth:     halfWidth,
		Basis:         basis.Chebyshev,
		MaxDegree:     8,
	})
	require.NoError(t, err)
	p, err := approx.Approximate(context.Background(), f, params)
	require.NoError(t, err)
	require.Equal(t, approx.Converged, p.Status())
	return p
}

func TestExtract(t *testing.T) {

	minima := [][]float64{{-0.5, -0.05}, {0.5, 0.05}}

	p := fit(t, doubleWell, 2, 5e-2, 1.0)

	for _, prec := range []approx.Precision{approx.Double, approx.Extended} {

		t.Run(testString("DoubleWell", prec), func(t *testing.T) {

			set, err := Extract(context.Background(), p, Options{Precision: prec, Seed: 1})
			require.NoError(t, err)

			require.Equal(t, 3, set.Paths)
			require.Equal(t, 3, set.Len())
			require.Zero(t, set.Failed)

			got := set.Filter(Minimum)
			require.Len(t, got, 2)
			for i := range minima {
				require.Less(t, utils.Distance(minima[i], got[i].X), 1e-2)
			}

			saddles := set.Filter(Saddle)
			require.Len(t, saddles, 1)
			require.Less(t, utils.Norm2(saddles[0].X), 1e-6)

			for _, pt := range set.Points {
				for i := range pt.U {
					require.Less(t, math.Abs(pt.U[i]), 1.0)
				}
				require.Less(t, pt.GradientResidual, 1e-6)
				require.Len(t, pt.Eigenvalues, 2)
				require.Equal(t, 1, pt.Multiplicity)
				require.InDelta(t, doubleWell(pt.X), pt.Value, 1e-8)
			}

			require.Less(t, set.Stats().Max, 1e-6)
		})
	}

	t.Run("StrictDomain", func(t *testing.T) {
		// the minima lie outside of [-0.4, 0.4]^2, a quadratic fit would already meet the tolerance
		p := fit(t, doubleWell, 4, 5e-2, 0.4)
		require.Equal(t, 4, p.Degree().Degree())
		set, err := Extract(context.Background(), p, Options{Seed: 1})
		require.NoError(t, err)
		require.Equal(t, 3, set.Paths)
		require.Equal(t, 1, set.Len())
		require.Equal(t, 2, set.OutOfDomain)
		require.Equal(t, Saddle, set.Points[0].Classification)
	})

	t.Run("ComplexRoots", func(t *testing.T) {
		// grad = (x^2 + 1, 2y)
		f := func(x []float64) float64 { return x[0]*x[0]*x[0]/3 + x[0] + x[1]*x[1] }
		p := fit(t, f, 3, 1e-8, 1.0)
		set, err := Extract(context.Background(), p, Options{Seed: 2})
		require.NoError(t, err)
		require.Zero(t, set.Len())
		require.Equal(t, 2, set.Complex)
	})

	t.Run("OriginalCoordinates", func(t *testing.T) {
		// minimum at (1, -2)
		f := func(x []float64) float64 {
			return (x[0]-1)*(x[0]-1) + 2*(x[1]+2)*(x[1]+2) + 0.5*(x[0]-1)*(x[1]+2)
		}
		params, err := approx.NewParametersFromLiteral(approx.ParametersLiteral{
			Dimension:     2,
			InitialDegree: 2,
			Tolerance:     1e-8,
			Center:        []float64{0.5, -1.5},
			HalfWidth:     []float64{2, 1},
			Basis:         basis.Legendre,
		})
		require.NoError(t, err)
		p, err := approx.Approximate(context.Background(), f, params)
		require.NoError(t, err)
		set, err := Extract(context.Background(), p, Options{Seed: 3})
		require.NoError(t, err)
		require.Equal(t, 1, set.Len())
		pt := set.Points[0]
		require.InDelta(t, 1, pt.X[0], 1e-8)
		require.InDelta(t, -2, pt.X[1], 1e-8)
		require.InDelta(t, 0.25, pt.U[0], 1e-8)
		require.InDelta(t, -0.5, pt.U[1], 1e-8)
		require.Equal(t, Minimum, pt.Classification)
		// Hessian in original coordinates is [[2, 0.5], [0.5, 4]]
		require.InDelta(t, 3-math.Sqrt(1.25), pt.Eigenvalues[0], 1e-6)
		require.InDelta(t, 3+math.Sqrt(1.25), pt.Eigenvalues[1], 1e-6)
	})

	t.Run("ThreeHumpCamel", func(t *testing.T) {
		f := testfunc.ThreeHumpCamel()
		params, err := approx.NewParametersFromLiteral(approx.ParametersLiteral{
			Dimension:     f.Dim,
			InitialDegree: 6,
			Tolerance:     1e-8,
			Center:        f.Center,
			HalfWidth:     f.HalfWidth,
			Basis:         basis.Chebyshev,
		})
		require.NoError(t, err)
		p, err := approx.ApproximateTarget(context.Background(), f, params)
		require.NoError(t, err)
		set, err := Extract(context.Background(), p, Options{Seed: 4, Workers: 2})
		require.NoError(t, err)
		require.Equal(t, 5, set.Len())
		got := set.Filter(Minimum)
		require.Len(t, got, len(f.Minima))
		for i := range f.Minima {
			require.Less(t, utils.Distance(f.Minima[i], got[i].X), 1e-6)
		}
		require.Len(t, set.Filter(Saddle), 2)
	})

	t.Run("NonIsolated", func(t *testing.T) {
		p := fit(t, func(x []float64) float64 { return x[0] * x[0] }, 2, 1e-8, 1.0)
		_, err := Extract(context.Background(), p, Options{})
		require.ErrorIs(t, err, ErrNonIsolated)
	})

	t.Run("NilPolynomial", func(t *testing.T) {
		_, err := Extract(context.Background(), nil, Options{})
		require.Error(t, err)
	})
}

func TestExtractBimodal(t *testing.T) {

	f := testfunc.Bimodal()

	params, err := approx.NewParametersFromLiteral(approx.ParametersLiteral{
		Dimension:     f.Dim,
		InitialDegree: 2,
		Tolerance:     5e-2,
		Center:        f.Center,
		HalfWidth:     f.HalfWidth,
		Basis:         basis.Chebyshev,
		MaxDegree:     14,
	})
	require.NoError(t, err)

	p, err := approx.ApproximateTarget(context.Background(), f, params)
	require.NoError(t, err)
	require.Equal(t, approx.Converged, p.Status())
	require.LessOrEqual(t, p.L2Norm(), 5e-2)

	set, err := Extract(context.Background(), p, Options{Seed: 5})
	if err != nil {
		require.ErrorIs(t, err, ErrRootSolveFailure)
	}
	require.NotNil(t, set)

	for _, m := range f.Minima {
		best := -1
		for i := range set.Points {
			if best < 0 || utils.Distance(set.Points[i].X, m) < utils.Distance(set.Points[best].X, m) {
				best = i
			}
		}
		require.GreaterOrEqual(t, best, 0)
		require.Less(t, utils.Distance(set.Points[best].X, m), 1e-2)
		require.Equal(t, Minimum, set.Points[best].Classification)
	}

	for _, pt := range set.Points {
		for i := range pt.U {
			require.Less(t, math.Abs(pt.U[i]), 1.0)
			require.Less(t, math.Abs(pt.X[i]-f.Center[i]), f.HalfWidth[i])
		}
	}
}

func TestGradientResidual(t *testing.T) {

	f := testfunc.Deuflhard()

	params, err := approx.NewParametersFromLiteral(approx.ParametersLiteral{
		Dimension:     f.Dim,
		InitialDegree: 8,
		Tolerance:     1e-3,
		Center:        f.Center,
		HalfWidth:     f.HalfWidth,
		Basis:         basis.Chebyshev,
		MaxDegree:     8,
	})
	require.NoError(t, err)

	p, err := approx.ApproximateTarget(context.Background(), f, params)
	if err != nil {
		require.ErrorIs(t, err, approx.ErrNotConverged)
	}
	require.NotNil(t, p)

	poly, err := mpoly.FromBasis(p.Basis(), p.Support(), p.Coeffs(), uint(p.Precision()), DefaultDropTolerance)
	require.NoError(t, err)

	e := newExtractor(p, poly, Options{}.withDefaults())

	// central differences of p.Evaluate
	const h = 1e-6
	for _, u := range [][]float64{{0.1, -0.2}, {-0.45, 0.3}, {0.7, 0.65}} {
		pt := Point{U: u}
		e.describe(&pt)

		want := make([]float64, len(u))
		for i := range u {
			xp := utils.CopySlice(pt.X)
			xm := utils.CopySlice(pt.X)
			xp[i] += h
			xm[i] -= h
			want[i] = (p.Evaluate(xp) - p.Evaluate(xm)) / (2 * h)
		}

		require.InDelta(t, utils.Norm2(want), pt.GradientResidual, 1e-6*(1+utils.Norm2(want)))
	}
}

func TestCollect(t *testing.T) {

	p := fit(t, doubleWell, 2, 5e-2, 1.0)

	poly, err := mpoly.FromBasis(p.Basis(), p.Support(), p.Coeffs(), uint(p.Precision()), DefaultDropTolerance)
	require.NoError(t, err)

	e := newExtractor(p, poly, Options{}.withDefaults())

	res := &homotopy.Result{
		Paths: []homotopy.Path{
			{Solution: []complex128{0.5 + 1e-12i, 0.05}, Status: homotopy.Converged},
			{Solution: []complex128{0.5, 0.05 - 1e-12i}, Status: homotopy.Converged},
			{Solution: []complex128{0.5 + 0.3i, 0.05}, Status: homotopy.Converged},
			{Solution: []complex128{1.5, 0.15}, Status: homotopy.Converged},
			{Solution: []complex128{1e9, 1e9}, Status: homotopy.AtInfinity},
			{Solution: []complex128{0.1, 0.1}, Status: homotopy.Failed},
		},
		Converged:  4,
		AtInfinity: 1,
		Failed:     1,
	}

	set := e.collect(res)

	require.Equal(t, 6, set.Paths)
	require.Equal(t, 1, set.Failed)
	require.Equal(t, 1, set.AtInfinity)
	require.Equal(t, 1, set.Complex)
	require.Equal(t, 1, set.OutOfDomain)
	require.Equal(t, 1, set.Len())
	require.Equal(t, 2, set.Points[0].Multiplicity)
	require.InDelta(t, 1e-12, set.Points[0].Imag, 1e-15)
	require.Equal(t, Minimum, set.Points[0].Classification)

	t.Run("Polish", func(t *testing.T) {
		u := e.polish([]float64{0.5 + 1e-8, 0.05 - 1e-8})
		require.InDelta(t, 0.5, u[0], 1e-12)
		require.InDelta(t, 0.05, u[1], 1e-12)

		// far from any stationary point
		u = e.polish([]float64{0.9, -0.3})
		require.Equal(t, []float64{0.9, -0.3}, u)
	})

	t.Run("RootSolveError", func(t *testing.T) {
		err := fmt.Errorf("cannot Extract: %w", &RootSolveError{Failed: 1, Paths: 6})
		require.ErrorIs(t, err, ErrRootSolveFailure)
		var rse *RootSolveError
		require.ErrorAs(t, err, &rse)
		require.Equal(t, 1, rse.Failed)
	})

	t.Run("JSON", func(t *testing.T) {
		data, err := json.Marshal(set)
		require.NoError(t, err)
		var m map[string]interface{}
		require.NoError(t, json.Unmarshal(data, &m))
		require.Equal(t, "minimum", m["points"].([]interface{})[0].(map[string]interface{})["classification"])
		require.EqualValues(t, 1, m["complex"])
	})
}

func TestClassify(t *testing.T) {
	for _, tc := range []struct {
		eig  []float64
		want Classification
	}{
		{[]float64{1, 2}, Minimum},
		{[]float64{-3, -1e-3}, Maximum},
		{[]float64{-1, 2}, Saddle},
		{[]float64{0, 2}, Degenerate},
		{[]float64{1e-12, 2}, Degenerate},
		{[]float64{0, 0}, Degenerate},
	} {
		t.Run(fmt.Sprintf("%v", tc.eig), func(t *testing.T) {
			require.Equal(t, tc.want, Classify(tc.eig))
		})
	}
}
