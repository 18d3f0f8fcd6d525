package grid

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tuneinsight/critpoint/basis"
	"github.com/tuneinsight/critpoint/utils"
)

func TestStableSampleCount(t *testing.T) {

	zeta := Zeta(DefaultDelta)

	holds := func(k, m int) bool {
		return float64(k)*zeta >= float64(m)*math.Log(2*float64(k)/DefaultAlpha)
	}

	var prev int
	for _, m := range []int{1, 2, 3, 6, 10, 15, 28, 45, 100, 1000} {
		t.Run(fmt.Sprintf("m=%d", m), func(t *testing.T) {
			K, err := StableSampleCount(m, DefaultDelta, DefaultAlpha)
			require.NoError(t, err)
			require.Greater(t, K, m)
			require.True(t, holds(K, m))
			if K-1 > m {
				require.False(t, holds(K-1, m))
			}
			require.GreaterOrEqual(t, K, prev)
			prev = K
		})
	}

	t.Run("InvalidParameters", func(t *testing.T) {
		_, err := StableSampleCount(0, DefaultDelta, DefaultAlpha)
		require.Error(t, err)
		_, err = StableSampleCount(3, 0, DefaultAlpha)
		require.Error(t, err)
		_, err = StableSampleCount(3, DefaultDelta, 1)
		require.Error(t, err)
	})
}

func TestPointsPerAxis(t *testing.T) {
	for _, dim := range []int{1, 2, 3, 4} {
		for _, K := range []int{2, 7, 8, 9, 27, 64, 65, 1000, 12345} {
			t.Run(fmt.Sprintf("K=%d/dim=%d", K, dim), func(t *testing.T) {
				GN := PointsPerAxis(K, dim)
				p, ok := utils.PowInt(GN+1, dim)
				require.True(t, ok)
				require.GreaterOrEqual(t, p, K)
				q, _ := utils.PowInt(GN, dim)
				require.Less(t, q, K)
			})
		}
	}
	require.Equal(t, 0, PointsPerAxis(1, 3))
}

func TestBudget(t *testing.T) {

	t.Run("WithinLimit", func(t *testing.T) {
		count, err := Budget{MaxPoints: 100}.Check([]int{10, 10})
		require.NoError(t, err)
		require.Equal(t, 100, count)
	})

	t.Run("Exceeded", func(t *testing.T) {
		_, err := Budget{MaxPoints: 99}.Check([]int{10, 10})
		require.ErrorIs(t, err, ErrResourceLimitExceeded)
		var rle *ResourceLimitError
		require.True(t, errors.As(err, &rle))
		require.Equal(t, 100, rle.Requested)
		require.Equal(t, 99, rle.Permitted)
	})

	t.Run("Overflow", func(t *testing.T) {
		_, err := Budget{}.Check(utils.RepeatSlice(1<<20, 8))
		var rle *ResourceLimitError
		require.True(t, errors.As(err, &rle))
		require.Equal(t, -1, rle.Requested)
	})

	t.Run("GridNotAllocated", func(t *testing.T) {
		_, err := New(Literal{
			Basis:     basis.Chebyshev,
			Dim:       10,
			GN:        99,
			Center:    make([]float64, 10),
			HalfWidth: utils.RepeatSlice(1.0, 10),
		})
		require.ErrorIs(t, err, ErrResourceLimitExceeded)
	})
}

func TestGrid(t *testing.T) {

	t.Run("TensorDistinct", func(t *testing.T) {
		axis := []float64{-1, 0, 1}
		g, err := NewTensor([][]float64{axis, axis}, []float64{0, 0}, []float64{1, 1}, Budget{})
		require.NoError(t, err)
		require.Equal(t, 9, g.Len())
		require.Equal(t, 2, g.Dim())

		seen := map[[2]float64]bool{}
		for i := 0; i < g.Len(); i++ {
			p := g.Point(i)
			seen[[2]float64{p[0], p[1]}] = true
		}
		require.Len(t, seen, 9)

		// last axis varies fastest
		require.Equal(t, []float64{-1, -1}, g.Point(0))
		require.Equal(t, []float64{-1, 0}, g.Point(1))
		require.Equal(t, []float64{1, 1}, g.Point(8))
	})

	for _, b := range []basis.Kind{basis.Chebyshev, basis.Legendre} {
		for _, dim := range []int{1, 2, 3} {
			t.Run(fmt.Sprintf("%s/dim=%d", b, dim), func(t *testing.T) {
				GN := 4
				g, err := New(Literal{
					Basis:     b,
					Dim:       dim,
					GN:        GN,
					Center:    utils.RepeatSlice(0.5, dim),
					HalfWidth: utils.RepeatSlice(2.0, dim),
				})
				require.NoError(t, err)
				want, _ := utils.PowInt(GN+1, dim)
				require.Equal(t, want, g.Len())
				require.Equal(t, utils.RepeatSlice(GN+1, dim), g.PerAxis())
				for i := 0; i < g.Len(); i++ {
					for _, u := range g.Point(i) {
						require.Less(t, math.Abs(u), 1.0)
					}
				}
				for _, r := range g.Range() {
					require.GreaterOrEqual(t, r[0], -1.5)
					require.LessOrEqual(t, r[1], 2.5)
				}
			})
		}
	}

	t.Run("InvalidBox", func(t *testing.T) {
		_, err := New(Literal{Basis: basis.Chebyshev, Dim: 2, GN: 2, Center: []float64{0}, HalfWidth: []float64{1, 1}})
		require.Error(t, err)
		_, err = New(Literal{Basis: basis.Chebyshev, Dim: 2, GN: 2, Center: []float64{0, 0}, HalfWidth: []float64{1, 0}})
		require.Error(t, err)
		_, err = New(Literal{Basis: basis.Chebyshev, Dim: 0, GN: 2})
		require.Error(t, err)
	})

	t.Run("Scattered", func(t *testing.T) {
		pts := [][]float64{{0, 0}, {0.5, 0.5}, {0, 0}}
		g, err := NewScattered(pts, []float64{1, 1}, []float64{1, 1}, Budget{})
		require.NoError(t, err)
		require.Equal(t, 3, g.Len())
		require.Nil(t, g.PerAxis())
		_, err = NewScattered([][]float64{{0}}, []float64{1, 1}, []float64{1, 1}, Budget{})
		require.Error(t, err)
		_, err = NewScattered(pts, []float64{1, 1}, []float64{1, 1}, Budget{MaxPoints: 2})
		require.ErrorIs(t, err, ErrResourceLimitExceeded)
		_, err = NewScattered(nil, []float64{1, 1}, []float64{1, 1}, Budget{})
		require.ErrorIs(t, err, ErrUnderdetermined)
	})
}

type sumOfSquares struct{}

func (sumOfSquares) Evaluate(x []float64) (y float64) {
	for _, xi := range x {
		y += xi * xi
	}
	return
}

func (sumOfSquares) EvaluateBig(x []*big.Float) (y *big.Float) {
	y = new(big.Float).SetPrec(x[0].Prec())
	tmp := new(big.Float).SetPrec(x[0].Prec())
	for _, xi := range x {
		tmp.Mul(xi, xi)
		y.Add(y, tmp)
	}
	return
}

func TestSample(t *testing.T) {

	f := sumOfSquares{}

	lit := Literal{
		Basis:     basis.Chebyshev,
		Dim:       2,
		GN:        5,
		Center:    []float64{1, -2},
		HalfWidth: []float64{0.5, 3},
	}

	t.Run("Double", func(t *testing.T) {
		g, err := New(lit)
		require.NoError(t, err)
		values, err := g.Sample(context.Background(), f.Evaluate)
		require.NoError(t, err)
		require.Len(t, values, g.Len())
		for i := range values {
			x := g.Original(i, nil)
			u := g.Point(i)
			require.InDelta(t, 1+0.5*u[0], x[0], 1e-15)
			require.InDelta(t, -2+3*u[1], x[1], 1e-15)
			require.Equal(t, f.Evaluate(x), values[i])
		}
	})

	t.Run("Extended", func(t *testing.T) {
		lit := lit
		lit.Prec = 128
		g, err := New(lit)
		require.NoError(t, err)
		require.True(t, g.HasBig())
		values, err := g.SampleBig(context.Background(), f)
		require.NoError(t, err)
		for i := range values {
			require.Equal(t, uint(128), values[i].Prec())
			y, _ := values[i].Float64()
			require.InDelta(t, f.Evaluate(g.Original(i, nil)), y, 1e-12)
		}
	})

	t.Run("NonFinite", func(t *testing.T) {
		g, err := New(lit)
		require.NoError(t, err)
		_, err = g.Sample(context.Background(), func(x []float64) float64 { return math.Log(x[0] - 1) })
		require.Error(t, err)
	})

	t.Run("Canceled", func(t *testing.T) {
		g, err := New(lit)
		require.NoError(t, err)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err = g.Sample(ctx, f.Evaluate)
		require.ErrorIs(t, err, context.Canceled)
	})
}
