package homotopy

import (
	"errors"
	"math"
	"math/cmplx"

	"github.com/tuneinsight/critpoint/utils"
)

// errSingular is returned by luSolve when the matrix is numerically singular.
var errSingular = errors.New("singular matrix")

// luSolve solves a * x = b by Gaussian elimination with partial pivoting.
// a and b are overwritten; the solution is written on b.
func luSolve(a [][]complex128, b []complex128) error {

	n := len(a)

	var scale float64
	for i := range a {
		for j := range a[i] {
			scale = utils.Max(scale, cmplx.Abs(a[i][j]))
		}
	}

	if scale == 0 {
		return errSingular
	}

	tiny := 1e-14 * scale

	for k := 0; k < n; k++ {

		p := k
		pmax := cmplx.Abs(a[k][k])
		for i := k + 1; i < n; i++ {
			if v := cmplx.Abs(a[i][k]); v > pmax {
				p, pmax = i, v
			}
		}

		if pmax <= tiny {
			return errSingular
		}

		a[k], a[p] = a[p], a[k]
		b[k], b[p] = b[p], b[k]

		for i := k + 1; i < n; i++ {
			l := a[i][k] / a[k][k]
			if l == 0 {
				continue
			}
			for j := k + 1; j < n; j++ {
				a[i][j] -= l * a[k][j]
			}
			b[i] -= l * b[k]
		}
	}

	for i := n - 1; i >= 0; i-- {
		s := b[i]
		for j := i + 1; j < n; j++ {
			s -= a[i][j] * b[j]
		}
		b[i] = s / a[i][i]
	}

	return nil
}

func norm(v []complex128) (n float64) {
	for i := range v {
		a := cmplx.Abs(v[i])
		n += a * a
	}
	return math.Sqrt(n)
}
