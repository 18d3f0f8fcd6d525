package design

import (
	"context"
	"fmt"
	"math"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tuneinsight/critpoint/basis"
	"github.com/tuneinsight/critpoint/grid"
	"github.com/tuneinsight/critpoint/support"
	"github.com/tuneinsight/critpoint/utils"
)

func testString(opname string, kind basis.Kind, dim int) string {
	return fmt.Sprintf("%s/%s/dim=%d", opname, kind, dim)
}

func TestBuild(t *testing.T) {

	for _, kind := range []basis.Kind{basis.Chebyshev, basis.Legendre, basis.Monomial} {
		for _, dim := range []int{1, 2, 3} {

			g, err := grid.New(grid.Literal{
				Basis:     kind,
				Dim:       dim,
				GN:        4,
				Center:    make([]float64, dim),
				HalfWidth: utils.RepeatSlice(1.0, dim),
			})
			require.NoError(t, err)

			s, err := support.Generate(3, dim)
			require.NoError(t, err)

			values, err := g.Sample(context.Background(), func(x []float64) float64 { return utils.Sum(x) })
			require.NoError(t, err)

			t.Run(testString("Entries", kind, dim), func(t *testing.T) {

				m, err := Build(context.Background(), g, values, nil, kind, s, Options{Workers: 3})
				require.NoError(t, err)
				require.Equal(t, dim, m.Dim)
				require.Equal(t, g.Len(), m.Rows)
				require.Equal(t, s.Len(), m.Cols)
				require.Zero(t, m.Duplicates)

				phi := make([]float64, 4)
				for i := 0; i < m.Rows; i++ {
					u := g.Point(i)
					for j := 0; j < m.Cols; j++ {
						want := 1.0
						for a, e := range s.At(j) {
							kind.Eval(u[a], phi)
							want *= phi[e]
						}
						require.InDelta(t, want, m.V.At(i, j), 1e-14)
					}
					require.Equal(t, values[i], m.F[i])
				}
			})

			t.Run(testString("Extended", kind, dim), func(t *testing.T) {

				m64, err := Build(context.Background(), g, values, nil, kind, s, Options{})
				require.NoError(t, err)

				m, err := Build(context.Background(), g, values, nil, kind, s, Options{Prec: 128})
				require.NoError(t, err)
				require.True(t, m.IsBig())
				require.Equal(t, uint(128), m.VBig[0][0].Prec())

				rows64 := m64.float64Rows()
				rows := m.float64Rows()
				for i := range rows {
					for j := range rows[i] {
						require.InDelta(t, rows64[i][j], rows[i][j], 1e-14)
					}
				}
			})
		}
	}
}

func TestDedup(t *testing.T) {

	s, err := support.Generate(2, 2)
	require.NoError(t, err)

	t.Run("DistinctPointsSharingAnAxis", func(t *testing.T) {
		axis := []float64{-1, 0, 1}
		g, err := grid.NewTensor([][]float64{axis, axis}, []float64{0, 0}, []float64{1, 1}, grid.Budget{})
		require.NoError(t, err)
		values := make([]float64, g.Len())
		m, err := Build(context.Background(), g, values, nil, basis.Chebyshev, s, Options{})
		require.NoError(t, err)
		require.Equal(t, 9, m.Rows)
		require.Zero(t, m.Duplicates)
	})

	t.Run("CoincidentPointsAveraged", func(t *testing.T) {
		pts := [][]float64{{0.5, 0.5}, {-0.5, 0.25}, {0.5, 0.5}, {0, 0}, {-0.0, 0}}
		g, err := grid.NewScattered(pts, []float64{0, 0}, []float64{1, 1}, grid.Budget{})
		require.NoError(t, err)
		values := []float64{1, 2, 3, 4, 6}
		m, err := Build(context.Background(), g, values, nil, basis.Legendre, s, Options{})
		require.NoError(t, err)
		require.Equal(t, 3, m.Rows)
		require.Equal(t, 2, m.Duplicates)
		require.Equal(t, []int{2, 1, 2}, m.Multiplicity)
		require.Equal(t, []float64{2, 2, 5}, m.F)
	})

	t.Run("CoincidentPointsAveragedExtended", func(t *testing.T) {
		pts := [][]float64{{0.5, 0.5}, {0.5, 0.5}}
		g, err := grid.NewScattered(pts, []float64{0, 0}, []float64{1, 1}, grid.Budget{})
		require.NoError(t, err)
		valuesBig := []*big.Float{big.NewFloat(1), big.NewFloat(2)}
		m, err := Build(context.Background(), g, nil, valuesBig, basis.Legendre, s, Options{Prec: 96})
		require.NoError(t, err)
		require.Equal(t, 1, m.Rows)
		f, _ := m.FBig[0].Float64()
		require.Equal(t, 1.5, f)
	})
}

func TestDimensionMismatch(t *testing.T) {

	g, err := grid.NewScattered([][]float64{{0, 0}, {1, 1}, {0.5, -0.5}}, []float64{0, 0}, []float64{1, 1}, grid.Budget{})
	require.NoError(t, err)

	t.Run("Support", func(t *testing.T) {
		s, err := support.Generate(1, 3)
		require.NoError(t, err)
		_, err = Build(context.Background(), g, make([]float64, 3), nil, basis.Chebyshev, s, Options{})
		require.ErrorIs(t, err, ErrDimensionMismatch)
	})

	t.Run("Rows", func(t *testing.T) {
		// as many values as the dimension but not as many as the points
		s, err := support.Generate(1, 2)
		require.NoError(t, err)
		_, err = Build(context.Background(), g, make([]float64, 2), nil, basis.Chebyshev, s, Options{})
		require.ErrorIs(t, err, ErrDimensionMismatch)
	})
}

func TestEval(t *testing.T) {

	s, err := support.Generate(support.NewPerDimension(2, 3), 2)
	require.NoError(t, err)

	coeffs := make([]float64, s.Len())
	coeffsBig := make([]*big.Float, s.Len())
	for j := range coeffs {
		coeffs[j] = 1 / float64(j+1)
		coeffsBig[j] = new(big.Float).SetPrec(128).SetFloat64(coeffs[j])
	}

	u := []float64{0.3, -0.7}
	uBig := []*big.Float{big.NewFloat(0.3), big.NewFloat(-0.7)}

	for _, kind := range []basis.Kind{basis.Chebyshev, basis.Legendre, basis.Monomial} {
		t.Run(kind.String(), func(t *testing.T) {
			var want float64
			phi0, phi1 := make([]float64, 3), make([]float64, 4)
			kind.Eval(u[0], phi0)
			kind.Eval(u[1], phi1)
			for j := range coeffs {
				e := s.At(j)
				want += coeffs[j] * phi0[e[0]] * phi1[e[1]]
			}
			require.InDelta(t, want, Eval(kind, s, coeffs, u), 1e-14)
			y, _ := EvalBig(kind, s, coeffsBig, uBig, 128).Float64()
			require.InDelta(t, want, y, 1e-14)
			require.False(t, math.IsNaN(want))
		})
	}
}

func TestGradient(t *testing.T) {

	s, err := support.Generate(support.NewPerDimension(3, 4), 2)
	require.NoError(t, err)

	coeffs := make([]float64, s.Len())
	for j := range coeffs {
		coeffs[j] = 1 / float64(j+1)
	}

	const h = 1e-6

	for _, kind := range []basis.Kind{basis.Chebyshev, basis.Legendre, basis.Monomial} {
		t.Run(kind.String(), func(t *testing.T) {
			for _, u := range [][]float64{{0.3, -0.7}, {-0.95, 0.1}} {
				grad := Gradient(kind, s, coeffs, u, nil)
				require.Len(t, grad, 2)
				for i := range u {
					up := append([]float64{}, u...)
					um := append([]float64{}, u...)
					up[i] += h
					um[i] -= h
					want := (Eval(kind, s, coeffs, up) - Eval(kind, s, coeffs, um)) / (2 * h)
					require.InDelta(t, want, grad[i], 1e-6)
				}
			}
		})
	}
}
