package homotopy

import (
	"context"
	"math"
	"math/cmplx"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
)

// cubic is (u - 0.5)(u + 0.25)(u - 0.75).
type cubic struct{}

func (cubic) Dim() int         { return 1 }
func (cubic) Degrees() []int   { return []int{3} }
func (cubic) roots() []float64 { return []float64{-0.25, 0.5, 0.75} }

func (c cubic) Eval(u, f []complex128) {
	f[0] = 1
	for _, r := range c.roots() {
		f[0] *= u[0] - complex(r, 0)
	}
}

func (c cubic) Jacobian(u []complex128, jac [][]complex128) {
	r := c.roots()
	a, b, d := u[0]-complex(r[0], 0), u[0]-complex(r[1], 0), u[0]-complex(r[2], 0)
	jac[0][0] = b*d + a*d + a*b
}

// circle is x^2 + y^2 - 1 = 0, x - y = 0.
type circle struct{}

func (circle) Dim() int       { return 2 }
func (circle) Degrees() []int { return []int{2, 1} }

func (circle) Eval(u, f []complex128) {
	f[0] = u[0]*u[0] + u[1]*u[1] - 1
	f[1] = u[0] - u[1]
}

func (circle) Jacobian(u []complex128, jac [][]complex128) {
	jac[0][0], jac[0][1] = 2*u[0], 2*u[1]
	jac[1][0], jac[1][1] = 1, -1
}

// hyperbola is x*y - 1 = 0, x - 1 = 0: one finite root, one path diverges.
type hyperbola struct{}

func (hyperbola) Dim() int       { return 2 }
func (hyperbola) Degrees() []int { return []int{2, 1} }

func (hyperbola) Eval(u, f []complex128) {
	f[0] = u[0]*u[1] - 1
	f[1] = u[0] - 1
}

func (hyperbola) Jacobian(u []complex128, jac [][]complex128) {
	jac[0][0], jac[0][1] = u[1], u[0]
	jac[1][0], jac[1][1] = 1, 0
}

// degenerate reports a given degree vector.
type degenerate struct {
	circle
	degrees []int
}

func (d degenerate) Degrees() []int { return d.degrees }

func realParts(sols [][]complex128, axis int) (re []float64) {
	for _, s := range sols {
		re = append(re, real(s[axis]))
	}
	sort.Float64s(re)
	return
}

func TestSolve(t *testing.T) {

	t.Run("Cubic", func(t *testing.T) {
		res, err := Solve(context.Background(), cubic{}, Options{Seed: 1})
		require.NoError(t, err)
		require.Len(t, res.Paths, 3)
		require.Equal(t, 3, res.Converged)
		sols := res.Solutions()
		for _, s := range sols {
			require.Less(t, math.Abs(imag(s[0])), 1e-8)
		}
		got := realParts(sols, 0)
		for i, r := range (cubic{}).roots() {
			require.InDelta(t, r, got[i], 1e-8)
		}
		for _, p := range res.Paths {
			require.Less(t, p.Residual, 1e-10)
			require.Greater(t, p.Steps, 0)
		}
	})

	t.Run("Circle", func(t *testing.T) {
		res, err := Solve(context.Background(), circle{}, Options{Seed: 2, Workers: 2})
		require.NoError(t, err)
		require.Equal(t, 2, res.Converged)
		got := realParts(res.Solutions(), 0)
		require.InDelta(t, -math.Sqrt2/2, got[0], 1e-8)
		require.InDelta(t, math.Sqrt2/2, got[1], 1e-8)
		for _, s := range res.Solutions() {
			require.InDelta(t, 0, cmplx.Abs(s[0]-s[1]), 1e-8)
		}
	})

	t.Run("PathAtInfinity", func(t *testing.T) {
		res, err := Solve(context.Background(), hyperbola{}, Options{Seed: 3})
		require.NoError(t, err)
		require.Len(t, res.Paths, 2)
		require.Equal(t, 1, res.Converged)
		require.Equal(t, 1, res.AtInfinity+res.Failed)
		s := res.Solutions()[0]
		require.InDelta(t, 0, cmplx.Abs(s[0]-1), 1e-8)
		require.InDelta(t, 0, cmplx.Abs(s[1]-1), 1e-8)
	})

	t.Run("Gamma", func(t *testing.T) {
		r0, err := Solve(context.Background(), cubic{}, Options{Seed: 7})
		require.NoError(t, err)
		r1, err := Solve(context.Background(), cubic{}, Options{Seed: 7})
		require.NoError(t, err)
		require.Equal(t, r0.Gamma, r1.Gamma)
		require.InDelta(t, 1, cmplx.Abs(r0.Gamma), 1e-12)

		gamma := cmplx.Rect(1, 0.7)
		r2, err := Solve(context.Background(), cubic{}, Options{Gamma: gamma})
		require.NoError(t, err)
		require.Equal(t, gamma, r2.Gamma)
		require.Equal(t, 3, r2.Converged)
	})

	t.Run("ZeroEquation", func(t *testing.T) {
		_, err := Solve(context.Background(), degenerate{degrees: []int{-1, 1}}, Options{})
		require.ErrorIs(t, err, ErrZeroEquation)
	})

	t.Run("ConstantEquation", func(t *testing.T) {
		res, err := Solve(context.Background(), degenerate{degrees: []int{0, 1}}, Options{})
		require.NoError(t, err)
		require.Empty(t, res.Paths)
		require.Empty(t, res.Solutions())
	})

	t.Run("TooManyPaths", func(t *testing.T) {
		_, err := Solve(context.Background(), cubic{}, Options{MaxPaths: 2})
		require.ErrorIs(t, err, ErrTooManyPaths)
	})

	t.Run("Canceled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := Solve(ctx, cubic{}, Options{})
		require.ErrorIs(t, err, context.Canceled)
	})
}

func TestBezoutNumber(t *testing.T) {
	n, err := BezoutNumber([]int{2, 3, 4}, 100)
	require.NoError(t, err)
	require.Equal(t, 24, n)

	_, err = BezoutNumber([]int{2, 3, 4}, 23)
	require.ErrorIs(t, err, ErrTooManyPaths)

	_, err = BezoutNumber([]int{1 << 30, 1 << 30, 1 << 30}, DefaultMaxPaths)
	require.ErrorIs(t, err, ErrTooManyPaths)
}

func TestStartSolution(t *testing.T) {
	degrees := []int{2, 3}
	seen := map[[2]complex128]bool{}
	for i := 0; i < 6; i++ {
		u := startSolution(i, degrees)
		for j, d := range degrees {
			require.InDelta(t, 0, cmplx.Abs(cmplx.Pow(u[j], complex(float64(d), 0))-1), 1e-12)
		}
		key := [2]complex128{complex(math.Round(real(u[0])*1e6), math.Round(imag(u[0])*1e6)), complex(math.Round(real(u[1])*1e6), math.Round(imag(u[1])*1e6))}
		require.False(t, seen[key])
		seen[key] = true
	}
}

func TestLUSolve(t *testing.T) {
	a := [][]complex128{{0, 1}, {2, 1i}}
	b := []complex128{3, 4 + 3i}
	require.NoError(t, luSolve(a, b))
	// x1 = 3, 2 x0 + 3i = 4 + 3i
	require.InDelta(t, 0, cmplx.Abs(b[0]-2), 1e-14)
	require.InDelta(t, 0, cmplx.Abs(b[1]-3), 1e-14)

	require.ErrorIs(t, luSolve([][]complex128{{1, 2}, {2, 4}}, []complex128{1, 1}), errSingular)
}
