package bignum

import (
	"errors"
	"fmt"
	"math/big"
)

// ErrNotPositiveDefinite is returned by [CholeskySolve] when a pivot is not strictly positive.
var ErrNotPositiveDefinite = errors.New("matrix is not positive definite")

// CholeskySolve solves a * x = b for a symmetric positive definite matrix a,
// at the precision of the entries of a. A pivot not larger than 16n * 2^(1-prec)
// times its diagonal entry is reported as [ErrNotPositiveDefinite].
// The input matrix and vector are not modified.
func CholeskySolve(a [][]*big.Float, b []*big.Float) (x []*big.Float, err error) {

	n := len(a)

	if len(b) != n {
		return nil, fmt.Errorf("cannot CholeskySolve: len(b)=%d != %d", len(b), n)
	}

	if n == 0 {
		return
	}

	prec := a[0][0].Prec()

	// a = L * L^T
	L := make([][]*big.Float, n)
	for i := range L {
		L[i] = NewFloatSlice(i+1, prec)
	}

	tmp := new(big.Float).SetPrec(prec)
	sum := new(big.Float).SetPrec(prec)

	// pivots at the level of the rounding error of the elimination are rejected
	eps := new(big.Float).SetPrec(prec).SetMantExp(NewFloat(16*n, prec), 1-int(prec))
	tol := new(big.Float).SetPrec(prec)

	for j := 0; j < n; j++ {

		sum.Set(a[j][j])
		for k := 0; k < j; k++ {
			sum.Sub(sum, tmp.Mul(L[j][k], L[j][k]))
		}

		if tol.Mul(a[j][j], eps); sum.Cmp(tol) <= 0 || sum.Sign() <= 0 {
			return nil, fmt.Errorf("cannot CholeskySolve: pivot %d: %w", j, ErrNotPositiveDefinite)
		}

		L[j][j].Sqrt(sum)

		for i := j + 1; i < n; i++ {
			sum.Set(a[i][j])
			for k := 0; k < j; k++ {
				sum.Sub(sum, tmp.Mul(L[i][k], L[j][k]))
			}
			L[i][j].Quo(sum, L[j][j])
		}
	}

	// L * y = b
	y := NewFloatSlice(n, prec)
	for i := 0; i < n; i++ {
		sum.Set(b[i])
		for k := 0; k < i; k++ {
			sum.Sub(sum, tmp.Mul(L[i][k], y[k]))
		}
		y[i].Quo(sum, L[i][i])
	}

	// L^T * x = y
	x = NewFloatSlice(n, prec)
	for i := n - 1; i >= 0; i-- {
		sum.Set(y[i])
		for k := i + 1; k < n; k++ {
			sum.Sub(sum, tmp.Mul(L[k][i], x[k]))
		}
		x[i].Quo(sum, L[i][i])
	}

	return
}

// MatTransMul returns a^T * a and a^T * v, where a is a k x m matrix and v a vector of size k.
// Products are accumulated at prec bits of precision.
func MatTransMul(a [][]*big.Float, v []*big.Float, prec uint) (ata [][]*big.Float, atv []*big.Float) {

	if len(a) == 0 {
		return
	}

	m := len(a[0])

	ata = make([][]*big.Float, m)
	for i := range ata {
		ata[i] = NewFloatSlice(m, prec)
	}

	atv = NewFloatSlice(m, prec)

	tmp := new(big.Float).SetPrec(prec)

	for r := range a {
		row := a[r]
		for i := 0; i < m; i++ {
			atv[i].Add(atv[i], tmp.Mul(row[i], v[r]))
			for j := 0; j <= i; j++ {
				ata[i][j].Add(ata[i][j], tmp.Mul(row[i], row[j]))
			}
		}
	}

	for i := 0; i < m; i++ {
		for j := i + 1; j < m; j++ {
			ata[i][j].Set(ata[j][i])
		}
	}

	return
}
