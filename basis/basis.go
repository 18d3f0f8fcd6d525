// Package basis implements the univariate polynomial families used to build
// tensor-product expansions: their evaluation in float64 and in arbitrary
// precision, their interpolation nodes and their monomial expansions.
package basis

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"github.com/tuneinsight/critpoint/utils/bignum"
)

// Kind is a type for the polynomial basis.
type Kind int

const (
	// Chebyshev : T_{k+1}(x) = 2xT_k(x) - T_{k-1}(x), nodes cos((2i+1)pi/(2n)).
	Chebyshev = Kind(0)
	// Legendre : (k+1)P_{k+1}(x) = (2k+1)xP_k(x) - kP_{k-1}(x), Gauss-Legendre nodes.
	Legendre = Kind(1)
	// Monomial : x^k, equispaced nodes.
	Monomial = Kind(2)
)

func (k Kind) String() string {
	switch k {
	case Chebyshev:
		return "chebyshev"
	case Legendre:
		return "legendre"
	case Monomial:
		return "monomial"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// ParseKind returns the [Kind] named s (case insensitive).
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(s) {
	case "chebyshev":
		return Chebyshev, nil
	case "legendre":
		return Legendre, nil
	case "monomial":
		return Monomial, nil
	default:
		return 0, fmt.Errorf("cannot ParseKind: unknown basis %q, allowed values are chebyshev, legendre or monomial", s)
	}
}

// MarshalJSON encodes the receiver as its name.
func (k Kind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// UnmarshalJSON decodes a basis name or its integer value.
func (k *Kind) UnmarshalJSON(p []byte) (err error) {
	var s string
	if err = json.Unmarshal(p, &s); err == nil {
		*k, err = ParseKind(s)
		return
	}
	var i int
	if err = json.Unmarshal(p, &i); err != nil {
		return fmt.Errorf("cannot UnmarshalJSON: %w", err)
	}
	*k = Kind(i)
	return k.Validate()
}

// Validate returns an error if the receiver is not a known basis.
func (k Kind) Validate() error {
	switch k {
	case Chebyshev, Legendre, Monomial:
		return nil
	default:
		return fmt.Errorf("invalid basis %s", k)
	}
}

// Eval writes phi_0(x), ..., phi_{len(dst)-1}(x) in dst.
func (k Kind) Eval(x float64, dst []float64) {

	if len(dst) == 0 {
		return
	}

	dst[0] = 1

	if len(dst) == 1 {
		return
	}

	dst[1] = x

	switch k {
	case Chebyshev:
		for i := 2; i < len(dst); i++ {
			dst[i] = 2*x*dst[i-1] - dst[i-2]
		}
	case Legendre:
		for i := 1; i < len(dst)-1; i++ {
			fi := float64(i)
			dst[i+1] = ((2*fi+1)*x*dst[i] - fi*dst[i-1]) / (fi + 1)
		}
	case Monomial:
		for i := 2; i < len(dst); i++ {
			dst[i] = x * dst[i-1]
		}
	default:
		panic(fmt.Errorf("invalid basis type %s", k))
	}
}

// EvalDerivative writes phi'_0(x), ..., phi'_{len(dst)-1}(x) in dst,
// using the three-term recurrence differentiated once.
func (k Kind) EvalDerivative(x float64, dst []float64) {

	if len(dst) == 0 {
		return
	}

	phi := make([]float64, len(dst))
	k.Eval(x, phi)

	dst[0] = 0

	if len(dst) == 1 {
		return
	}

	dst[1] = 1

	switch k {
	case Chebyshev:
		for i := 2; i < len(dst); i++ {
			dst[i] = 2*phi[i-1] + 2*x*dst[i-1] - dst[i-2]
		}
	case Legendre:
		for i := 1; i < len(dst)-1; i++ {
			fi := float64(i)
			dst[i+1] = ((2*fi+1)*(phi[i]+x*dst[i]) - fi*dst[i-1]) / (fi + 1)
		}
	case Monomial:
		for i := 2; i < len(dst); i++ {
			dst[i] = float64(i) * phi[i-1]
		}
	default:
		panic(fmt.Errorf("invalid basis type %s", k))
	}
}

// EvalBig writes phi_0(x), ..., phi_{len(dst)-1}(x) in dst at the precision of x.
// dst must be pre-allocated.
func (k Kind) EvalBig(x *big.Float, dst []*big.Float) {
	switch k {
	case Chebyshev:
		bignum.ChebyshevBasis(x, dst)
	case Legendre:
		bignum.LegendreBasis(x, dst)
	case Monomial:
		if len(dst) == 0 {
			return
		}
		dst[0].SetPrec(x.Prec()).SetInt64(1)
		for i := 1; i < len(dst); i++ {
			dst[i].SetPrec(x.Prec()).Mul(dst[i-1], x)
		}
	default:
		panic(fmt.Errorf("invalid basis type %s", k))
	}
}

// MonomialTable returns the exact monomial coefficients of phi_0, ..., phi_deg:
// phi_k(x) = sum_i table[k][i] x^i.
func (k Kind) MonomialTable(deg int) (table [][]*big.Rat) {
	switch k {
	case Chebyshev:
		return bignum.ChebyshevMonomialTable(deg)
	case Legendre:
		return bignum.LegendreMonomialTable(deg)
	case Monomial:
		table = make([][]*big.Rat, deg+1)
		for i := range table {
			table[i] = make([]*big.Rat, deg+1)
			for j := range table[i] {
				table[i][j] = new(big.Rat)
			}
			table[i][i].SetInt64(1)
		}
		return
	default:
		panic(fmt.Errorf("invalid basis type %s", k))
	}
}
