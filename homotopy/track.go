package homotopy

import (
	"context"
	"math"
)

// tracker follows one path at a time. It owns its scratch space and
// must not be shared between goroutines.
type tracker struct {
	sys     System
	degrees []int
	gamma   complex128
	opts    Options
	n       int

	f, g, rhs  []complex128
	jf, jg, a  [][]complex128
	k          [4][]complex128
	v, tmp, du []complex128
}

func newTracker(sys System, degrees []int, gamma complex128, opts Options) *tracker {

	n := sys.Dim()

	newMat := func() (m [][]complex128) {
		m = make([][]complex128, n)
		for i := range m {
			m[i] = make([]complex128, n)
		}
		return
	}

	tr := &tracker{
		sys:     sys,
		degrees: degrees,
		gamma:   gamma,
		opts:    opts,
		n:       n,
		f:       make([]complex128, n),
		g:       make([]complex128, n),
		rhs:     make([]complex128, n),
		jf:      newMat(),
		jg:      newMat(),
		a:       newMat(),
		v:       make([]complex128, n),
		tmp:     make([]complex128, n),
		du:      make([]complex128, n),
	}

	for i := range tr.k {
		tr.k[i] = make([]complex128, n)
	}

	return tr
}

// start evaluates G(u) = u_i^{D_i} - 1 on g and its diagonal Jacobian on jg.
func (tr *tracker) start(u []complex128) {
	for i := range u {
		d := tr.degrees[i]
		p := complex(1, 0)
		for k := 1; k < d; k++ {
			p *= u[i]
		}
		tr.g[i] = p*u[i] - 1
		for j := range tr.jg[i] {
			tr.jg[i][j] = 0
		}
		tr.jg[i][i] = complex(float64(d), 0) * p
	}
}

// eval writes H(u, t) on tr.rhs and dH/du on tr.a.
func (tr *tracker) eval(u []complex128, t float64) {

	tr.sys.Eval(u, tr.f)
	tr.sys.Jacobian(u, tr.jf)
	tr.start(u)

	s := complex(1-t, 0) * tr.gamma
	tc := complex(t, 0)

	for i := 0; i < tr.n; i++ {
		tr.rhs[i] = s*tr.g[i] + tc*tr.f[i]
		for j := 0; j < tr.n; j++ {
			tr.a[i][j] = s*tr.jg[i][j] + tc*tr.jf[i][j]
		}
	}
}

// velocity writes du/dt = -(dH/du)^{-1} dH/dt at (u, t) on out.
func (tr *tracker) velocity(u []complex128, t float64, out []complex128) error {
	tr.eval(u, t)
	for i := range out {
		out[i] = tr.gamma*tr.g[i] - tr.f[i]
	}
	return luSolve(tr.a, out)
}

// newton runs at most iter Newton steps on H(., t) from v, in place.
// It returns true once a step is below the tolerance. The first step must
// also be below maxFirst relative to ||v|| to guard against path jumping.
func (tr *tracker) newton(v []complex128, t float64, iter int, maxFirst float64) bool {
	for it := 0; it < iter; it++ {
		tr.eval(v, t)
		for i := range tr.du {
			tr.du[i] = -tr.rhs[i]
		}
		if err := luSolve(tr.a, tr.du); err != nil {
			return false
		}
		for i := range v {
			v[i] += tr.du[i]
		}
		step := norm(tr.du)
		scale := 1 + norm(v)
		if it == 0 && step > maxFirst*scale {
			return false
		}
		if step <= tr.opts.Tolerance*scale {
			return true
		}
	}
	return false
}

// predict writes on tr.v the fourth order Runge-Kutta prediction of u(t+h).
func (tr *tracker) predict(u []complex128, t, h float64) error {

	hc := complex(h, 0)

	if err := tr.velocity(u, t, tr.k[0]); err != nil {
		return err
	}

	for stage, c := range []float64{0.5, 0.5, 1} {
		cc := complex(c, 0) * hc
		for i := range tr.tmp {
			tr.tmp[i] = u[i] + cc*tr.k[stage][i]
		}
		if err := tr.velocity(tr.tmp, t+c*h, tr.k[stage+1]); err != nil {
			return err
		}
	}

	for i := range tr.v {
		tr.v[i] = u[i] + hc/6*(tr.k[0][i]+2*tr.k[1][i]+2*tr.k[2][i]+tr.k[3][i])
	}

	return nil
}

func (tr *tracker) track(ctx context.Context, start []complex128) (path Path) {

	path.Start = append([]complex128{}, start...)

	if tr.opts.PathTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, tr.opts.PathTimeout)
		defer cancel()
	}

	u := append([]complex128{}, start...)

	t := 0.0
	h := tr.opts.InitialStep
	var successes int

	fail := func(reason string) Path {
		path.Solution = u
		path.Status = Failed
		path.Reason = reason
		tr.sys.Eval(u, tr.f)
		path.Residual = norm(tr.f)
		return path
	}

	for t < 1 {

		if ctx.Err() != nil {
			return fail("timeout")
		}

		if path.Steps++; path.Steps > tr.opts.MaxSteps {
			return fail("step budget exhausted")
		}

		last := false
		if h >= 1-t {
			h, last = 1-t, true
		}

		ok := tr.predict(u, t, h) == nil

		next := t + h
		if last {
			next = 1
		}

		if ok {
			ok = tr.newton(tr.v, next, 3, 0.1)
		}

		if !ok {
			successes = 0
			if h /= 2; h < tr.opts.MinStep {
				return fail("step size underflow")
			}
			continue
		}

		copy(u, tr.v)
		t = next

		if norm(u) > tr.opts.DivergenceBound {
			path.Solution = u
			path.Status = AtInfinity
			return
		}

		if successes++; successes >= 3 {
			h = math.Min(2*h, tr.opts.MaxStep)
			successes = 0
		}
	}

	// endgame: Newton on F
	converged := false
	for it := 0; it < tr.opts.EndgameIterations; it++ {
		tr.sys.Eval(u, tr.f)
		tr.sys.Jacobian(u, tr.jf)
		for i := range tr.du {
			tr.du[i] = -tr.f[i]
			copy(tr.a[i], tr.jf[i])
		}
		if luSolve(tr.a, tr.du) != nil {
			break
		}
		for i := range u {
			u[i] += tr.du[i]
		}
		if norm(tr.du) <= tr.opts.Tolerance*(1+norm(u)) {
			converged = true
			break
		}
		if tr.sys.Eval(u, tr.f); norm(tr.f) <= tr.opts.Tolerance {
			converged = true
			break
		}
	}

	if norm(u) > tr.opts.DivergenceBound {
		path.Solution = u
		path.Status = AtInfinity
		return
	}

	tr.sys.Eval(u, tr.f)
	path.Residual = norm(tr.f)
	path.Solution = u

	if !converged {
		path.Status = Failed
		path.Reason = "endgame did not converge"
		return
	}

	path.Status = Converged

	return
}
