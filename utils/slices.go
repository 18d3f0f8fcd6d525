package utils

import (
	"sort"

	"golang.org/x/exp/constraints"
)

// GetKeys returns the keys of the input map.
// Order is not guaranteed.
func GetKeys[K constraints.Ordered, V any](m map[K]V) (keys []K) {

	keys = make([]K, len(m))

	var i int
	for key := range m {
		keys[i] = key
		i++
	}

	return
}

// GetSortedKeys returns the sorted keys of a map.
func GetSortedKeys[K constraints.Ordered, V any](m map[K]V) (keys []K) {
	keys = GetKeys(m)
	SortSlice(keys)
	return
}

// SortSlice sorts a slice in place.
func SortSlice[T constraints.Ordered](s []T) {
	sort.Slice(s, func(i, j int) bool {
		return s[i] < s[j]
	})
}

// EqualSlice checks the equality between two slices of comparable values.
func EqualSlice[V comparable](a, b []V) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// CompareSlice compares a and b lexicographically and returns -1, 0 or 1.
func CompareSlice[V constraints.Ordered](a, b []V) int {
	for i := 0; i < Min(len(a), len(b)); i++ {
		switch {
		case a[i] < b[i]:
			return -1
		case a[i] > b[i]:
			return 1
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	}
	return 0
}

// RepeatSlice returns a new slice of length n filled with v.
func RepeatSlice[V any](v V, n int) (s []V) {
	s = make([]V, n)
	for i := range s {
		s[i] = v
	}
	return
}

// CopySlice returns a copy of s.
func CopySlice[V any](s []V) (c []V) {
	if s == nil {
		return nil
	}
	c = make([]V, len(s))
	copy(c, s)
	return
}
