package grid

import (
	"fmt"
	"math"

	"github.com/tuneinsight/critpoint/utils"
)

const (
	// DefaultDelta is the default decay parameter of [StableSampleCount].
	DefaultDelta = 0.5
	// DefaultAlpha is the default confidence parameter of [StableSampleCount].
	DefaultAlpha = 0.1
)

// Zeta returns (1+delta)ln(1+delta) - delta.
func Zeta(delta float64) float64 {
	return (1+delta)*math.Log1p(delta) - delta
}

// StableSampleCount returns the smallest number of samples K > m such that
//
//	K * Zeta(delta) >= m * ln(2K/alpha),
//
// which bounds the deviation of the empirical Gram matrix of an m-dimensional
// least-squares space from the identity by delta with probability 1-alpha.
// The predicate is monotone in K past its first solution, so the search doubles
// K until it holds and then bisects.
func StableSampleCount(m int, delta, alpha float64) (K int, err error) {

	if m < 1 {
		return 0, fmt.Errorf("cannot StableSampleCount: m=%d < 1", m)
	}

	if delta <= 0 || delta >= 1 {
		return 0, fmt.Errorf("cannot StableSampleCount: delta=%v must be in (0, 1)", delta)
	}

	if alpha <= 0 || alpha >= 1 {
		return 0, fmt.Errorf("cannot StableSampleCount: alpha=%v must be in (0, 1)", alpha)
	}

	zeta := Zeta(delta)

	holds := func(k int) bool {
		return float64(k)*zeta >= float64(m)*math.Log(2*float64(k)/alpha)
	}

	lo := m + 1
	if holds(lo) {
		return lo, nil
	}

	hi := 2 * lo
	for !holds(hi) {
		if hi > math.MaxInt32 {
			return 0, fmt.Errorf("cannot StableSampleCount: no K <= %d satisfies the bound for m=%d", hi, m)
		}
		lo, hi = hi, 2*hi
	}

	// holds(hi) && !holds(lo)
	for hi-lo > 1 {
		mid := lo + (hi-lo)/2
		if holds(mid) {
			hi = mid
		} else {
			lo = mid
		}
	}

	return hi, nil
}

// PointsPerAxis returns the smallest GN >= 0 such that (GN+1)^dim >= K.
func PointsPerAxis(K, dim int) (GN int) {

	if K <= 1 || dim < 1 {
		return 0
	}

	r := int(math.Ceil(math.Pow(float64(K), 1/float64(dim))))

	// correct the floating point root
	for r > 1 {
		if p, ok := utils.PowInt(r-1, dim); ok && p >= K {
			r--
		} else {
			break
		}
	}

	for {
		if p, ok := utils.PowInt(r, dim); !ok || p >= K {
			break
		}
		r++
	}

	return r - 1
}
