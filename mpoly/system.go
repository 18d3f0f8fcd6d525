package mpoly

import (
	"fmt"
)

// System is a square system of polynomial equations p_i(u) = 0 together with
// its Jacobian, evaluated in complex128 arithmetic. It is safe for concurrent use.
type System struct {
	dim     int
	maxDeg  []int
	eqs     []compiled
	jac     [][]compiled
	degrees []int
}

// compiled is a polynomial with float64 coefficients laid out for fast evaluation.
type compiled struct {
	exps   [][]int
	coeffs []float64
}

func compile(p *Poly) compiled {
	return compiled{exps: p.exps, coeffs: p.coeffs64}
}

func (c compiled) eval(pow [][]complex128) (y complex128) {
	for k := range c.exps {
		v := complex(c.coeffs[k], 0)
		for a, e := range c.exps[k] {
			if e != 0 {
				v *= pow[a][e]
			}
		}
		y += v
	}
	return
}

// NewSystem returns the system {polys[i] = 0}. There must be as many polynomials as variables.
func NewSystem(polys []*Poly) (s *System, err error) {

	if len(polys) == 0 {
		return nil, fmt.Errorf("cannot NewSystem: empty system")
	}

	dim := polys[0].Dim()

	if len(polys) != dim {
		return nil, fmt.Errorf("cannot NewSystem: %d equations in %d variables", len(polys), dim)
	}

	s = &System{
		dim:     dim,
		maxDeg:  make([]int, dim),
		eqs:     make([]compiled, dim),
		jac:     make([][]compiled, dim),
		degrees: make([]int, dim),
	}

	for i, p := range polys {

		if p.Dim() != dim {
			return nil, fmt.Errorf("cannot NewSystem: equation %d has %d variables != %d", i, p.Dim(), dim)
		}

		s.eqs[i] = compile(p)
		s.degrees[i] = p.Degree()

		for a, d := range p.MaxDegreePerAxis() {
			if d > s.maxDeg[a] {
				s.maxDeg[a] = d
			}
		}

		s.jac[i] = make([]compiled, dim)
		for j := 0; j < dim; j++ {
			s.jac[i][j] = compile(p.Derivative(j))
		}
	}

	return
}

// Dim returns the number of equations and variables.
func (s *System) Dim() int {
	return s.dim
}

// Degrees returns the total degree of each equation, -1 for an identically zero equation.
func (s *System) Degrees() []int {
	degrees := make([]int, s.dim)
	copy(degrees, s.degrees)
	return degrees
}

func (s *System) powers(u []complex128) [][]complex128 {
	pow := newPowers[complex128](s.maxDeg)
	powers(u, s.maxDeg, pow)
	return pow
}

// Eval writes p_i(u) in f.
func (s *System) Eval(u, f []complex128) {
	pow := s.powers(u)
	for i := range s.eqs {
		f[i] = s.eqs[i].eval(pow)
	}
}

// Jacobian writes dp_i/du_j(u) in jac[i][j].
func (s *System) Jacobian(u []complex128, jac [][]complex128) {
	pow := s.powers(u)
	for i := range s.jac {
		for j := range s.jac[i] {
			jac[i][j] = s.jac[i][j].eval(pow)
		}
	}
}
