package basis

import (
	"fmt"
	"math"
	"math/big"

	"gonum.org/v1/gonum/mat"

	"github.com/tuneinsight/critpoint/utils/bignum"
)

// Nodes returns the n one-dimensional sampling nodes of the basis in [-1, 1]:
//   - Chebyshev: cos((2i+1)pi/(2n)), i = 0, ..., n-1.
//   - Legendre: the n Gauss-Legendre points, roots of P_n.
//   - Monomial: n equispaced points, endpoints included (0 if n = 1).
func (k Kind) Nodes(n int) (nodes []float64) {

	if n <= 0 {
		return nil
	}

	switch k {
	case Chebyshev:
		nodes = make([]float64, n)
		for i := range nodes {
			nodes[i] = math.Cos(float64(2*i+1) * math.Pi / float64(2*n))
		}
	case Legendre:
		nodes = gaussLegendre(n)
	case Monomial:
		nodes = make([]float64, n)
		if n == 1 {
			return
		}
		for i := range nodes {
			nodes[i] = -1 + 2*float64(i)/float64(n-1)
		}
	default:
		panic(fmt.Errorf("invalid basis type %s", k))
	}

	return
}

// NodesBig returns the nodes of [Kind.Nodes] computed with prec bits of precision.
func (k Kind) NodesBig(n int, prec uint) (nodes []*big.Float) {

	if n <= 0 {
		return nil
	}

	switch k {
	case Chebyshev:
		return bignum.ChebyshevNodes(n, prec)
	case Legendre:
		return bignum.LegendreNodes(n, gaussLegendre(n), prec)
	case Monomial:
		nodes = make([]*big.Float, n)
		if n == 1 {
			nodes[0] = bignum.NewFloat(0, prec)
			return
		}
		den := bignum.NewFloat(n-1, prec)
		for i := range nodes {
			x := bignum.NewFloat(2*i, prec)
			x.Quo(x, den)
			x.Sub(x, bignum.NewFloat(1, prec))
			nodes[i] = x
		}
		return
	default:
		panic(fmt.Errorf("invalid basis type %s", k))
	}
}

// gaussLegendre computes the roots of P_n with the Golub-Welsch method:
// they are the eigenvalues of the symmetric tridiagonal Jacobi matrix of the
// Legendre recurrence, with off-diagonal entries k/sqrt(4k^2-1).
// The eigenvalues are then polished by a few Newton steps on P_n.
func gaussLegendre(n int) (nodes []float64) {

	J := mat.NewSymDense(n, nil)
	for k := 1; k < n; k++ {
		fk := float64(k)
		J.SetSym(k-1, k, fk/math.Sqrt(4*fk*fk-1))
	}

	var eig mat.EigenSym
	if ok := eig.Factorize(J, false); !ok {
		panic(fmt.Errorf("cannot gaussLegendre: eigen decomposition of the %dx%d Jacobi matrix failed", n, n))
	}

	nodes = eig.Values(nil)

	poly := make([]float64, n+1)
	for i, x := range nodes {
		for iter := 0; iter < 3; iter++ {
			Legendre.Eval(x, poly)
			// P'_n(x) = n(xP_n(x) - P_{n-1}(x))/(x^2-1)
			dp := float64(n) * (x*poly[n] - poly[n-1]) / (x*x - 1)
			if dp == 0 {
				break
			}
			x -= poly[n] / dp
		}
		nodes[i] = x
	}

	return
}
