package bignum

import (
	"math/big"
)

// ChebyshevBasis writes T_0(x), ..., T_{len(poly)-1}(x) in poly, where
// T_0(x) = 1, T_1(x) = x and T_{k+1}(x) = 2xT_k(x) - T_{k-1}(x).
// poly must be pre-allocated; its elements take the precision of x.
func ChebyshevBasis(x *big.Float, poly []*big.Float) {

	if len(poly) == 0 {
		return
	}

	precision := x.Prec()

	poly[0].SetPrec(precision).SetInt64(1)

	if len(poly) == 1 {
		return
	}

	poly[1].SetPrec(precision).Set(x)

	twoX := NewFloat(2, precision)
	twoX.Mul(twoX, x)

	for k := 2; k < len(poly); k++ {
		poly[k].SetPrec(precision)
		poly[k].Mul(twoX, poly[k-1])
		poly[k].Sub(poly[k], poly[k-2])
	}
}

// LegendreBasis writes P_0(x), ..., P_{len(poly)-1}(x) in poly, where
// P_0(x) = 1, P_1(x) = x and (k+1)P_{k+1}(x) = (2k+1)xP_k(x) - kP_{k-1}(x).
// poly must be pre-allocated; its elements take the precision of x.
func LegendreBasis(x *big.Float, poly []*big.Float) {

	if len(poly) == 0 {
		return
	}

	precision := x.Prec()

	poly[0].SetPrec(precision).SetInt64(1)

	if len(poly) == 1 {
		return
	}

	poly[1].SetPrec(precision).Set(x)

	tmp := new(big.Float).SetPrec(precision)
	c := new(big.Float).SetPrec(precision)

	for k := 1; k < len(poly)-1; k++ {
		// (2k+1) * x * P_k
		c.SetInt64(int64(2*k + 1))
		tmp.Mul(x, poly[k])
		tmp.Mul(tmp, c)

		// - k * P_{k-1}
		c.SetInt64(int64(k))
		c.Mul(c, poly[k-1])

		poly[k+1].SetPrec(precision)
		poly[k+1].Sub(tmp, c)
		poly[k+1].Quo(poly[k+1], c.SetInt64(int64(k+1)))
	}
}

// LegendreDerivative returns P_n(x) and P'_n(x), using
// (x^2-1)P'_n(x) = n(xP_n(x) - P_{n-1}(x)).
// x must satisfy |x| != 1.
func LegendreDerivative(x *big.Float, n int) (pn, dpn *big.Float) {

	precision := x.Prec()

	poly := NewFloatSlice(n+1, precision)
	LegendreBasis(x, poly)

	pn = new(big.Float).Set(poly[n])

	if n == 0 {
		return pn, new(big.Float).SetPrec(precision)
	}

	dpn = new(big.Float).SetPrec(precision).Mul(x, poly[n])
	dpn.Sub(dpn, poly[n-1])
	dpn.Mul(dpn, NewFloat(n, precision))

	den := new(big.Float).SetPrec(precision).Mul(x, x)
	den.Sub(den, NewFloat(1, precision))

	dpn.Quo(dpn, den)

	return
}

// ChebyshevMonomialTable returns the exact monomial coefficients of T_0, ..., T_{deg}:
// T_k(x) = sum_i table[k][i] x^i.
func ChebyshevMonomialTable(deg int) (table [][]*big.Rat) {

	table = newRatTable(deg)

	table[0][0].SetInt64(1)

	if deg == 0 {
		return
	}

	table[1][1].SetInt64(1)

	two := big.NewRat(2, 1)
	tmp := new(big.Rat)

	for k := 2; k <= deg; k++ {
		for i := 1; i <= k; i++ {
			table[k][i].Mul(two, table[k-1][i-1])
		}
		for i := 0; i <= k-2; i++ {
			table[k][i].Sub(table[k][i], tmp.Set(table[k-2][i]))
		}
	}

	return
}

// LegendreMonomialTable returns the exact monomial coefficients of P_0, ..., P_{deg}:
// P_k(x) = sum_i table[k][i] x^i.
func LegendreMonomialTable(deg int) (table [][]*big.Rat) {

	table = newRatTable(deg)

	table[0][0].SetInt64(1)

	if deg == 0 {
		return
	}

	table[1][1].SetInt64(1)

	a, b := new(big.Rat), new(big.Rat)
	tmp := new(big.Rat)

	for k := 1; k < deg; k++ {
		a.SetFrac64(int64(2*k+1), int64(k+1))
		b.SetFrac64(int64(k), int64(k+1))
		for i := 1; i <= k+1; i++ {
			table[k+1][i].Mul(a, table[k][i-1])
		}
		for i := 0; i <= k-1; i++ {
			table[k+1][i].Sub(table[k+1][i], tmp.Mul(b, table[k-1][i]))
		}
	}

	return
}

func newRatTable(deg int) (table [][]*big.Rat) {
	table = make([][]*big.Rat, deg+1)
	for k := range table {
		table[k] = make([]*big.Rat, deg+1)
		for i := range table[k] {
			table[k][i] = new(big.Rat)
		}
	}
	return
}

// ChebyshevNodes returns the n Chebyshev nodes of the first kind
// cos((2i+1)pi/(2n)), i = 0, ..., n-1, with prec bits of precision,
// in decreasing order.
func ChebyshevNodes(n int, prec uint) (nodes []*big.Float) {

	nodes = make([]*big.Float, n)

	PiOverTwoN := Pi(prec)
	PiOverTwoN.Quo(PiOverTwoN, NewFloat(2*n, prec))

	for i := 0; i < n; i++ {
		up := NewFloat(2*i+1, prec)
		up.Mul(up, PiOverTwoN)
		nodes[i] = Cos(up)
	}

	return
}

// LegendreNodes refines the initial guesses of the roots of P_n with
// Newton's method at prec bits of precision and returns them.
func LegendreNodes(n int, guesses []float64, prec uint) (nodes []*big.Float) {

	nodes = make([]*big.Float, len(guesses))

	tol := NewFloat(Epsilon(prec), prec)
	step := new(big.Float).SetPrec(prec)

	for i := range guesses {

		x := NewFloat(guesses[i], prec)

		// Quadratic convergence: doubling the number of
		// correct bits per iteration from a 53-bit guess.
		for iter := 0; iter < 64; iter++ {
			pn, dpn := LegendreDerivative(x, n)
			if dpn.Sign() == 0 {
				break
			}
			step.Quo(pn, dpn)
			x.Sub(x, step)
			if new(big.Float).Abs(step).Cmp(tol) <= 0 {
				break
			}
		}

		nodes[i] = x
	}

	return
}
