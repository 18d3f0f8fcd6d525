package utils

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBinomial(t *testing.T) {
	require.Equal(t, 1, Binomial(0, 0))
	require.Equal(t, 6, Binomial(4, 2))
	require.Equal(t, 45, Binomial(10, 8))
	require.Equal(t, 0, Binomial(3, 4))
	require.Equal(t, 0, Binomial(3, -1))
}

func TestPowInt(t *testing.T) {
	r, ok := PowInt(3, 4)
	require.True(t, ok)
	require.Equal(t, 81, r)

	r, ok = PowInt(7, 0)
	require.True(t, ok)
	require.Equal(t, 1, r)

	_, ok = PowInt(1000, 10)
	require.False(t, ok)
}

func TestProdSumMax(t *testing.T) {
	require.Equal(t, 24, Prod([]int{2, 3, 4}))
	require.Equal(t, 1, Prod([]int{}))
	require.Equal(t, 9.5, Sum([]float64{4, 5.5}))
	require.Equal(t, 7, MaxSlice([]int{3, 7, 1}))
}

func TestNorm(t *testing.T) {
	require.InDelta(t, 5, Norm2([]float64{3, 4}), 1e-15)
	require.InDelta(t, math.Sqrt2, Distance([]float64{1, 0}, []float64{0, 1}), 1e-15)
}
