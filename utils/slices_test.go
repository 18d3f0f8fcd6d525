package utils

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGetSortedKeys(t *testing.T) {
	m := map[int]int{1: 1, 3: 3, 2: 2}
	require.Equal(t, []int{1, 2, 3}, GetSortedKeys(m))
	m = map[int]int{-1: 1, -3: 3, -2: 2}
	require.Equal(t, []int{-3, -2, -1}, GetSortedKeys(m))
}

func TestCompareSlice(t *testing.T) {
	require.Equal(t, 0, CompareSlice([]int{1, 2}, []int{1, 2}))
	require.Equal(t, -1, CompareSlice([]int{1, 2}, []int{1, 3}))
	require.Equal(t, 1, CompareSlice([]int{2}, []int{1, 9}))
	require.Equal(t, -1, CompareSlice([]int{1}, []int{1, 0}))
	require.True(t, EqualSlice([]int{4, 5}, []int{4, 5}))
	require.False(t, EqualSlice([]int{4, 5}, []int{4}))
}
