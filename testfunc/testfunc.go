// Package testfunc implements benchmark objectives with known stationary points,
// evaluated both in float64 and in arbitrary precision.
package testfunc

import (
	"fmt"
	"math"
	"math/big"

	"github.com/tuneinsight/critpoint/utils"
	"github.com/tuneinsight/critpoint/utils/bignum"
)

// Function is a scalar objective on a box.
type Function struct {
	Name string
	Dim  int
	// Center and HalfWidth describe the box on which the objective is usually studied.
	Center    []float64
	HalfWidth []float64
	// Minima lists known local minima in the box.
	Minima [][]float64

	eval    func(x []float64) float64
	evalBig func(x []*big.Float) *big.Float
}

// Evaluate returns f(x).
func (f *Function) Evaluate(x []float64) float64 {
	return f.eval(x)
}

// EvaluateBig returns f(x) at the precision of x[0].
func (f *Function) EvaluateBig(x []*big.Float) *big.Float {
	return f.evalBig(x)
}

func (f *Function) String() string {
	return fmt.Sprintf("%s/n=%d", f.Name, f.Dim)
}

// arith is a small helper for writing big.Float expressions at a fixed precision.
type arith uint

func (a arith) c(v float64) *big.Float {
	return bignum.NewFloat(v, uint(a))
}

func (a arith) add(x ...*big.Float) *big.Float {
	y := a.c(0)
	for _, v := range x {
		y.Add(y, v)
	}
	return y
}

func (a arith) sub(x, y *big.Float) *big.Float {
	return new(big.Float).SetPrec(uint(a)).Sub(x, y)
}

func (a arith) mul(x ...*big.Float) *big.Float {
	y := a.c(1)
	for _, v := range x {
		y.Mul(y, v)
	}
	return y
}

func (a arith) sq(x *big.Float) *big.Float {
	return a.mul(x, x)
}

// Bimodal is 4(cos(2 pi x) + (y - x/2)^2), on [-1, 1]^2. Its two minima are
// (-1/2, -1/4) and (1/2, 1/4) and its only other interior stationary point is
// a saddle at the origin.
func Bimodal() *Function {
	return &Function{
		Name:      "bimodal",
		Dim:       2,
		Center:    []float64{0, 0},
		HalfWidth: []float64{1, 1},
		Minima:    [][]float64{{-0.5, -0.25}, {0.5, 0.25}},
		eval: func(x []float64) float64 {
			v := x[1] - x[0]/2
			return 4 * (math.Cos(2*math.Pi*x[0]) + v*v)
		},
		evalBig: func(x []*big.Float) *big.Float {
			a := arith(x[0].Prec())
			twoPi := a.mul(a.c(2), bignum.Pi(uint(a)))
			v := a.sub(x[1], a.mul(a.c(0.5), x[0]))
			return a.mul(a.c(4), a.add(bignum.Cos(a.mul(twoPi, x[0])), a.sq(v)))
		},
	}
}

// GaussianMixture is the negated mixture of two isotropic Gaussians of width 0.3
// centered at (-0.4, -0.4) and (0.4, 0.4), on [-1, 1]^2. Each component pulls
// the minimum of the other slightly toward the origin.
func GaussianMixture() *Function {

	const sigma = 0.3
	const xm = 0.39934005067482337
	centers := [][]float64{{-0.4, -0.4}, {0.4, 0.4}}

	return &Function{
		Name:      "gaussian-mixture",
		Dim:       2,
		Center:    []float64{0, 0},
		HalfWidth: []float64{1, 1},
		Minima:    [][]float64{{-xm, -xm}, {xm, xm}},
		eval: func(x []float64) (y float64) {
			for _, c := range centers {
				d := utils.Distance(x, c)
				y -= math.Exp(-d * d / (2 * sigma * sigma))
			}
			return
		},
		evalBig: func(x []*big.Float) *big.Float {
			a := arith(x[0].Prec())
			y := a.c(0)
			for _, c := range centers {
				r2 := a.add(a.sq(a.sub(x[0], a.c(c[0]))), a.sq(a.sub(x[1], a.c(c[1]))))
				r2.Quo(r2, a.c(-2*sigma*sigma))
				y.Sub(y, bignum.Exp(r2))
			}
			return y
		},
	}
}

// DoubleWell is 10((x^2 - 1/4)^2 + (y - x/10)^2), on [-1, 1]^2. It has two
// minima at (-1/2, -1/20) and (1/2, 1/20) and a saddle at the origin.
func DoubleWell() *Function {
	return &Function{
		Name:      "double-well",
		Dim:       2,
		Center:    []float64{0, 0},
		HalfWidth: []float64{1, 1},
		Minima:    [][]float64{{-0.5, -0.05}, {0.5, 0.05}},
		eval: func(x []float64) float64 {
			a := x[0]*x[0] - 0.25
			b := x[1] - 0.1*x[0]
			return 10 * (a*a + b*b)
		},
		evalBig: func(x []*big.Float) *big.Float {
			a := arith(x[0].Prec())
			u := a.sub(a.sq(x[0]), a.c(0.25))
			v := a.sub(x[1], a.mul(a.c(0.1), x[0]))
			return a.mul(a.c(10), a.add(a.sq(u), a.sq(v)))
		},
	}
}

// Deuflhard is (exp(x^2 + y^2) - 3)^2 + (x + y - sin(3(x + y)))^2, on [-1.2, 1.2]^2.
// Its global minima, of value 0, lie on the circle x^2 + y^2 = ln 3.
func Deuflhard() *Function {
	return &Function{
		Name:      "deuflhard",
		Dim:       2,
		Center:    []float64{0, 0},
		HalfWidth: []float64{1.2, 1.2},
		eval: func(x []float64) float64 {
			a := math.Exp(x[0]*x[0]+x[1]*x[1]) - 3
			s := x[0] + x[1]
			b := s - math.Sin(3*s)
			return a*a + b*b
		},
		evalBig: func(x []*big.Float) *big.Float {
			a := arith(x[0].Prec())
			u := a.sub(bignum.Exp(a.add(a.sq(x[0]), a.sq(x[1]))), a.c(3))
			s := a.add(x[0], x[1])
			v := a.sub(s, bignum.Sin(a.mul(a.c(3), s)))
			return a.add(a.sq(u), a.sq(v))
		},
	}
}

// ThreeHumpCamel is 2x^2 - 1.05x^4 + x^6/6 + xy + y^2, on [-2, 2]^2.
// Its stationary points lie on y = -x/2, with x = 0 or x^4 - 4.2x^2 + 3.5 = 0.
func ThreeHumpCamel() *Function {

	// x^2 = 2.1 + sqrt(0.91)
	xm := math.Sqrt(2.1 + math.Sqrt(0.91))

	return &Function{
		Name:      "three-hump-camel",
		Dim:       2,
		Center:    []float64{0, 0},
		HalfWidth: []float64{2, 2},
		Minima:    [][]float64{{-xm, xm / 2}, {0, 0}, {xm, -xm / 2}},
		eval: func(x []float64) float64 {
			x2 := x[0] * x[0]
			return 2*x2 - 1.05*x2*x2 + x2*x2*x2/6 + x[0]*x[1] + x[1]*x[1]
		},
		evalBig: func(x []*big.Float) *big.Float {
			a := arith(x[0].Prec())
			x2 := a.sq(x[0])
			x4 := a.sq(x2)
			x6 := a.mul(x4, x2)
			x6.Quo(x6, a.c(6))
			y := a.add(a.mul(a.c(2), x2), x6, a.mul(x[0], x[1]), a.sq(x[1]))
			return y.Sub(y, a.mul(bignum.NewFloat(big.NewRat(105, 100), uint(a)), x4))
		},
	}
}

// LogHimmelblau is log(1 + h(x, y)) with h(x, y) = (x^2 + y - 11)^2 + (x + y^2 - 7)^2
// Himmelblau's function, on [-5, 5]^2. It has four minima of value 0.
func LogHimmelblau() *Function {
	return &Function{
		Name:      "log-himmelblau",
		Dim:       2,
		Center:    []float64{0, 0},
		HalfWidth: []float64{5, 5},
		Minima: [][]float64{
			{-3.7793102533777469, -3.2831859912861694},
			{-2.8051180869527638, 3.1313125182505729},
			{3, 2},
			{3.5844283403304917, -1.8481265269644030},
		},
		eval: func(x []float64) float64 {
			a := x[0]*x[0] + x[1] - 11
			b := x[0] + x[1]*x[1] - 7
			return math.Log1p(a*a + b*b)
		},
		evalBig: func(x []*big.Float) *big.Float {
			a := arith(x[0].Prec())
			u := a.sub(a.add(a.sq(x[0]), x[1]), a.c(11))
			v := a.sub(a.add(x[0], a.sq(x[1])), a.c(7))
			return bignum.Log(a.add(a.c(1), a.sq(u), a.sq(v)))
		},
	}
}

// Rastrigin is 10n + sum_i x_i^2 - 10cos(2 pi x_i), on [-5.12, 5.12]^n.
// Its global minimum is at the origin.
func Rastrigin(dim int) *Function {
	return &Function{
		Name:      "rastrigin",
		Dim:       dim,
		Center:    make([]float64, dim),
		HalfWidth: utils.RepeatSlice(5.12, dim),
		Minima:    [][]float64{make([]float64, dim)},
		eval: func(x []float64) (y float64) {
			y = 10 * float64(len(x))
			for _, v := range x {
				y += v*v - 10*math.Cos(2*math.Pi*v)
			}
			return
		},
		evalBig: func(x []*big.Float) *big.Float {
			a := arith(x[0].Prec())
			twoPi := a.mul(a.c(2), bignum.Pi(uint(a)))
			y := a.c(10 * float64(len(x)))
			for _, v := range x {
				y.Add(y, a.sq(v))
				y.Sub(y, a.mul(a.c(10), bignum.Cos(a.mul(twoPi, v))))
			}
			return y
		},
	}
}

var registry = map[string]func() *Function{
	"bimodal":          Bimodal,
	"gaussian-mixture": GaussianMixture,
	"double-well":      DoubleWell,
	"deuflhard":        Deuflhard,
	"three-hump-camel": ThreeHumpCamel,
	"log-himmelblau":   LogHimmelblau,
	"rastrigin":        func() *Function { return Rastrigin(2) },
}

// Names returns the names accepted by [ByName], sorted.
func Names() []string {
	return utils.GetSortedKeys(registry)
}

// ByName returns the 2-dimensional benchmark with the given name.
func ByName(name string) (*Function, error) {
	if f, ok := registry[name]; ok {
		return f(), nil
	}
	return nil, fmt.Errorf("unknown test function %q: valid names are %v", name, Names())
}
