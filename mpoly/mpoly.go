// Package mpoly implements sparse multivariate polynomials in the monomial
// basis with arbitrary precision real coefficients, their construction from
// tensor-product orthogonal expansions and their symbolic derivatives.
package mpoly

import (
	"encoding/binary"
	"fmt"
	"math/big"
	"sort"

	"github.com/tuneinsight/critpoint/basis"
	"github.com/tuneinsight/critpoint/support"
	"github.com/tuneinsight/critpoint/utils"
	"github.com/tuneinsight/critpoint/utils/bignum"
)

// Poly is a sparse polynomial sum_k c_k u^{e_k} in Dim variables.
// Terms are kept in graded lexicographic order of their exponents and
// have non-zero coefficients. A Poly is immutable once built.
type Poly struct {
	dim      int
	prec     uint
	exps     [][]int
	coeffs   []*big.Float
	coeffs64 []float64
}

// builder accumulates terms, merging equal exponents.
type builder struct {
	dim   int
	prec  uint
	index map[string]int
	exps  [][]int
	sums  []*big.Float
}

func newBuilder(dim int, prec uint) *builder {
	return &builder{dim: dim, prec: prec, index: map[string]int{}}
}

func key(exps []int) string {
	buf := make([]byte, 0, len(exps)*binary.MaxVarintLen64)
	for _, e := range exps {
		buf = binary.AppendUvarint(buf, uint64(e))
	}
	return string(buf)
}

func (b *builder) add(exps []int, c *big.Float) {
	k := key(exps)
	if i, ok := b.index[k]; ok {
		b.sums[i].Add(b.sums[i], c)
		return
	}
	b.index[k] = len(b.exps)
	b.exps = append(b.exps, utils.CopySlice(exps))
	b.sums = append(b.sums, new(big.Float).SetPrec(b.prec).Set(c))
}

// finalize drops the terms whose magnitude does not exceed tol times the largest one
// (and the exact zeros) and sorts the remaining ones.
func (b *builder) finalize(tol float64) *Poly {

	max := new(big.Float).SetPrec(b.prec)
	for _, c := range b.sums {
		if a := new(big.Float).Abs(c); a.Cmp(max) > 0 {
			max.Set(a)
		}
	}

	threshold := new(big.Float).SetPrec(b.prec).Mul(max, bignum.NewFloat(tol, b.prec))

	type term struct {
		exps  []int
		coeff *big.Float
	}

	var terms []term
	for i, c := range b.sums {
		if c.Sign() == 0 {
			continue
		}
		if tol > 0 && new(big.Float).Abs(c).Cmp(threshold) <= 0 {
			continue
		}
		terms = append(terms, term{b.exps[i], c})
	}

	sort.Slice(terms, func(i, j int) bool {
		return support.GradedLexLess(terms[i].exps, terms[j].exps)
	})

	p := &Poly{
		dim:      b.dim,
		prec:     b.prec,
		exps:     make([][]int, len(terms)),
		coeffs:   make([]*big.Float, len(terms)),
		coeffs64: make([]float64, len(terms)),
	}

	for i := range terms {
		p.exps[i] = terms[i].exps
		p.coeffs[i] = terms[i].coeff
		p.coeffs64[i], _ = terms[i].coeff.Float64()
	}

	return p
}

// New returns the polynomial with the given terms at prec bits of precision.
// Equal exponents are merged and zero terms dropped.
func New(dim int, exps [][]int, coeffs []*big.Float, prec uint) (p *Poly, err error) {

	if len(exps) != len(coeffs) {
		return nil, fmt.Errorf("cannot New: %d exponents for %d coefficients", len(exps), len(coeffs))
	}

	b := newBuilder(dim, prec)
	for i := range exps {
		if len(exps[i]) != dim {
			return nil, fmt.Errorf("cannot New: exponent %d has length %d != %d", i, len(exps[i]), dim)
		}
		for _, e := range exps[i] {
			if e < 0 {
				return nil, fmt.Errorf("cannot New: exponent %d has a negative entry", i)
			}
		}
		b.add(exps[i], coeffs[i])
	}

	return b.finalize(0), nil
}

// FromBasis expands sum_j coeffs[j] prod_a phi_{alpha_j,a}(u_a), where alpha_j is the
// j-th exponent of s and phi the family kind, into the monomial basis.
// The expansion is carried at prec bits from the exact rational monomial
// coefficients of the family. Terms not larger than dropTol times the largest
// coefficient are dropped.
func FromBasis(kind basis.Kind, s *support.Set, coeffs []*big.Float, prec uint, dropTol float64) (p *Poly, err error) {

	if err = kind.Validate(); err != nil {
		return nil, fmt.Errorf("cannot FromBasis: %w", err)
	}

	if len(coeffs) != s.Len() {
		return nil, fmt.Errorf("cannot FromBasis: %d coefficients for a support of %d terms", len(coeffs), s.Len())
	}

	if dropTol < 0 {
		return nil, fmt.Errorf("cannot FromBasis: dropTol=%v < 0", dropTol)
	}

	dim := s.Dim()
	maxDeg := s.MaxDegreePerAxis()

	// tables[a][k][i] = coefficient of u^i in phi_k, rounded at prec
	tables := make([][][]*big.Float, dim)
	for a := range tables {
		rat := kind.MonomialTable(maxDeg[a])
		tables[a] = make([][]*big.Float, len(rat))
		for k := range rat {
			tables[a][k] = make([]*big.Float, len(rat[k]))
			for i := range rat[k] {
				if rat[k][i].Sign() != 0 {
					tables[a][k][i] = bignum.NewFloat(rat[k][i], prec)
				}
			}
		}
	}

	b := newBuilder(dim, prec)

	beta := make([]int, dim)
	term := new(big.Float).SetPrec(prec)

	for j := 0; j < s.Len(); j++ {

		if coeffs[j].Sign() == 0 {
			continue
		}

		alpha := s.At(j)

		// enumerate the monomials u^beta with beta_a <= alpha_a and a non-zero table entry
		var expand func(a int, c *big.Float)
		expand = func(a int, c *big.Float) {
			if a == dim {
				b.add(beta, c)
				return
			}
			row := tables[a][alpha[a]]
			for i := range row {
				if row[i] == nil {
					continue
				}
				beta[a] = i
				expand(a+1, new(big.Float).SetPrec(prec).Mul(c, row[i]))
			}
		}

		expand(0, term.Set(coeffs[j]))
	}

	return b.finalize(dropTol), nil
}

// Dim returns the number of variables.
func (p *Poly) Dim() int {
	return p.dim
}

// Prec returns the precision of the coefficients.
func (p *Poly) Prec() uint {
	return p.prec
}

// Len returns the number of terms.
func (p *Poly) Len() int {
	return len(p.exps)
}

// IsZero returns true if the receiver has no terms.
func (p *Poly) IsZero() bool {
	return len(p.exps) == 0
}

// Coeff returns the coefficient of u^exps rounded to float64, 0 if absent.
func (p *Poly) Coeff(exps []int) float64 {
	for k := range p.exps {
		if utils.EqualSlice(p.exps[k], exps) {
			return p.coeffs64[k]
		}
	}
	return 0
}

// Degree returns the total degree, -1 for the zero polynomial.
func (p *Poly) Degree() (d int) {
	d = -1
	for k := range p.exps {
		d = utils.Max(d, utils.Sum(p.exps[k]))
	}
	return
}

// Derivative returns the partial derivative with respect to u_axis.
func (p *Poly) Derivative(axis int) *Poly {

	b := newBuilder(p.dim, p.prec)

	c := new(big.Float).SetPrec(p.prec)

	for k := range p.exps {
		e := p.exps[k][axis]
		if e == 0 {
			continue
		}
		exps := utils.CopySlice(p.exps[k])
		exps[axis]--
		c.Mul(p.coeffs[k], bignum.NewFloat(e, p.prec))
		b.add(exps, c)
	}

	return b.finalize(0)
}

// Gradient returns the partial derivatives with respect to each variable.
func (p *Poly) Gradient() (grad []*Poly) {
	grad = make([]*Poly, p.dim)
	for i := range grad {
		grad[i] = p.Derivative(i)
	}
	return
}

// Hessian returns the second order partial derivatives.
// The returned matrix is symmetric and its entries are shared.
func (p *Poly) Hessian() (hess [][]*Poly) {
	grad := p.Gradient()
	hess = make([][]*Poly, p.dim)
	for i := range hess {
		hess[i] = make([]*Poly, p.dim)
	}
	for i := range hess {
		for j := i; j < p.dim; j++ {
			hess[i][j] = grad[i].Derivative(j)
			hess[j][i] = hess[i][j]
		}
	}
	return
}

// powers writes u_a^0, ..., u_a^maxDeg[a] in pow[a].
func powers[T float64 | complex128](u []T, maxDeg []int, pow [][]T) {
	for a := range u {
		pow[a][0] = 1
		for i := 1; i <= maxDeg[a]; i++ {
			pow[a][i] = pow[a][i-1] * u[a]
		}
	}
}

// MaxDegreePerAxis returns the largest exponent of each variable.
func (p *Poly) MaxDegreePerAxis() (max []int) {
	max = make([]int, p.dim)
	for k := range p.exps {
		for a, e := range p.exps[k] {
			max[a] = utils.Max(max[a], e)
		}
	}
	return
}

func newPowers[T float64 | complex128](maxDeg []int) (pow [][]T) {
	pow = make([][]T, len(maxDeg))
	for a := range pow {
		pow[a] = make([]T, maxDeg[a]+1)
	}
	return
}

// Eval returns p(u) in float64 arithmetic.
func (p *Poly) Eval(u []float64) (y float64) {
	maxDeg := p.MaxDegreePerAxis()
	pow := newPowers[float64](maxDeg)
	powers(u, maxDeg, pow)
	for k := range p.exps {
		v := p.coeffs64[k]
		for a, e := range p.exps[k] {
			v *= pow[a][e]
		}
		y += v
	}
	return
}

// evalBig returns p(u) at the precision of the receiver.
func (p *Poly) evalBig(u []*big.Float) (y *big.Float) {

	maxDeg := p.MaxDegreePerAxis()

	pow := make([][]*big.Float, p.dim)
	for a := range pow {
		pow[a] = bignum.NewFloatSlice(maxDeg[a]+1, p.prec)
		pow[a][0].SetInt64(1)
		for i := 1; i <= maxDeg[a]; i++ {
			pow[a][i].Mul(pow[a][i-1], u[a])
		}
	}

	y = new(big.Float).SetPrec(p.prec)
	v := new(big.Float).SetPrec(p.prec)
	for k := range p.exps {
		v.Set(p.coeffs[k])
		for a, e := range p.exps[k] {
			if e != 0 {
				v.Mul(v, pow[a][e])
			}
		}
		y.Add(y, v)
	}

	return
}

func (p *Poly) String() string {
	if p.IsZero() {
		return "0"
	}
	s := ""
	for k := range p.exps {
		if k > 0 {
			s += " + "
		}
		s += fmt.Sprintf("%g*u^%v", p.coeffs64[k], p.exps[k])
	}
	return s
}
