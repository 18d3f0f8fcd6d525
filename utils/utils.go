// Package utils implements various helper functions.
package utils

import (
	"math"

	"golang.org/x/exp/constraints"
)

// Number is the set of real numeric types.
type Number interface {
	constraints.Integer | constraints.Float
}

// Max returns the maximum value of the inputs.
func Max[V constraints.Ordered](a, b V) V {
	if a >= b {
		return a
	}
	return b
}

// Min returns the minimum value of the inputs.
func Min[V constraints.Ordered](a, b V) V {
	if a <= b {
		return a
	}
	return b
}

// MaxSlice returns the maximum value of the input slice.
// Returns the zero value for an empty slice.
func MaxSlice[V constraints.Ordered](s []V) (max V) {
	if len(s) == 0 {
		return
	}
	max = s[0]
	for _, v := range s[1:] {
		max = Max(max, v)
	}
	return
}

// Sum returns the sum of the elements of s.
func Sum[V Number](s []V) (sum V) {
	for _, v := range s {
		sum += v
	}
	return
}

// Prod returns the product of the elements of s.
// The product of an empty slice is 1.
func Prod[V Number](s []V) (prod V) {
	prod = 1
	for _, v := range s {
		prod *= v
	}
	return
}

// Binomial returns the binomial coefficient C(n, k).
// Returns 0 if k < 0 or k > n.
func Binomial(n, k int) int {
	if k < 0 || k > n {
		return 0
	}
	k = Min(k, n-k)
	r := 1
	for i := 1; i <= k; i++ {
		r = r * (n - k + i) / i
	}
	return r
}

// PowInt returns base^exp and false if the result overflows an int.
// base and exp must be non-negative.
func PowInt(base, exp int) (r int, ok bool) {
	r = 1
	for i := 0; i < exp; i++ {
		if base != 0 && r > math.MaxInt/base {
			return 0, false
		}
		r *= base
	}
	return r, true
}

// Norm2 returns the Euclidean norm of v.
func Norm2(v []float64) float64 {
	var s float64
	for _, vi := range v {
		s += vi * vi
	}
	return math.Sqrt(s)
}

// Distance returns the Euclidean distance between a and b.
func Distance(a, b []float64) float64 {
	var s float64
	for i := range a {
		d := a[i] - b[i]
		s += d * d
	}
	return math.Sqrt(s)
}
