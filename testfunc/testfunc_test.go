package testfunc

import (
	"math"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tuneinsight/critpoint/approx"
	"github.com/tuneinsight/critpoint/utils/bignum"
)

var _ approx.Target = (*Function)(nil)

func all() []*Function {
	return []*Function{Bimodal(), GaussianMixture(), DoubleWell(), Deuflhard(), ThreeHumpCamel(), LogHimmelblau(), Rastrigin(2), Rastrigin(3)}
}

// gradient returns a central finite difference approximation of the gradient of f at x.
func gradient(f *Function, x []float64) []float64 {
	const h = 1e-6
	g := make([]float64, len(x))
	for i := range x {
		xp := append([]float64{}, x...)
		xm := append([]float64{}, x...)
		xp[i] += h
		xm[i] -= h
		g[i] = (f.Evaluate(xp) - f.Evaluate(xm)) / (2 * h)
	}
	return g
}

func TestFunctions(t *testing.T) {

	for _, f := range all() {

		t.Run(f.String()+"/Big", func(t *testing.T) {
			for _, s := range []float64{-0.7, -0.1, 0.3, 0.9} {
				x := make([]float64, f.Dim)
				xBig := make([]*big.Float, f.Dim)
				for i := range x {
					x[i] = f.Center[i] + f.HalfWidth[i]*s*math.Pow(-1, float64(i))/float64(i+1)
					xBig[i] = bignum.NewFloat(x[i], 128)
				}
				want := f.Evaluate(x)
				have, _ := f.EvaluateBig(xBig).Float64()
				require.InDelta(t, want, have, 1e-10*(1+math.Abs(want)))
			}
		})

		t.Run(f.String()+"/Minima", func(t *testing.T) {
			for _, m := range f.Minima {
				require.Len(t, m, f.Dim)
				for i := range m {
					require.Less(t, math.Abs(m[i]-f.Center[i]), f.HalfWidth[i])
				}
			}
		})
	}

	t.Run("StationaryMinima", func(t *testing.T) {
		for _, f := range []*Function{Bimodal(), GaussianMixture(), DoubleWell(), ThreeHumpCamel(), LogHimmelblau(), Rastrigin(2)} {
			for _, m := range f.Minima {
				for _, g := range gradient(f, m) {
					require.InDelta(t, 0, g, 1e-6)
				}
			}
		}
	})

	t.Run("BimodalSaddle", func(t *testing.T) {
		f := Bimodal()
		for _, g := range gradient(f, []float64{0, 0}) {
			require.InDelta(t, 0, g, 1e-6)
		}
		require.InDelta(t, -4, f.Evaluate(f.Minima[0]), 1e-12)
		require.InDelta(t, 4, f.Evaluate([]float64{0, 0}), 1e-12)
	})

	t.Run("Values", func(t *testing.T) {
		require.InDelta(t, 0, Rastrigin(3).Evaluate([]float64{0, 0, 0}), 1e-14)
		require.InDelta(t, 0, ThreeHumpCamel().Evaluate([]float64{0, 0}), 1e-14)
		require.InDelta(t, 0.625, DoubleWell().Evaluate([]float64{0, 0}), 1e-14)
		for _, m := range LogHimmelblau().Minima {
			require.InDelta(t, 0, LogHimmelblau().Evaluate(m), 1e-12)
		}
		r := math.Sqrt(math.Log(3) / 2)
		require.InDelta(t, 0, Deuflhard().Evaluate([]float64{r, -r}), 1e-12)
	})
}

func TestByName(t *testing.T) {
	for _, name := range Names() {
		f, err := ByName(name)
		require.NoError(t, err)
		require.Equal(t, name, f.Name)
		require.Equal(t, 2, f.Dim)
	}
	_, err := ByName("rosenbrock")
	require.Error(t, err)
}
