package approx

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"math/big"

	"github.com/zeebo/blake3"

	"github.com/tuneinsight/critpoint/basis"
	"github.com/tuneinsight/critpoint/design"
	"github.com/tuneinsight/critpoint/lsq"
	"github.com/tuneinsight/critpoint/support"
	"github.com/tuneinsight/critpoint/utils"
	"github.com/tuneinsight/critpoint/utils/bignum"
)

// Status is the terminal state of the refinement loop.
type Status int

const (
	// Converged : the L2 residual met the tolerance.
	Converged = Status(0)
	// Exhausted : the maximum degree was reached without meeting the tolerance.
	Exhausted = Status(1)
)

func (s Status) String() string {
	switch s {
	case Converged:
		return "converged"
	case Exhausted:
		return "exhausted"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// MarshalJSON encodes the receiver as its name.
func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// Iteration records one pass of the refinement loop.
type Iteration struct {
	Degree        support.DegreeSpec `json:"degree"`
	Terms         int                `json:"terms"`
	SamplesPerDim int                `json:"samples_per_dim"`
	Samples       int                `json:"samples"`
	L2Norm        float64            `json:"L2_norm,omitempty"`
	Cond          float64            `json:"condition_number,omitempty"`
	Method        string             `json:"method,omitempty"`
	Error         string             `json:"error,omitempty"`
}

// Polynomial is the terminal approximant returned by [Approximate]:
// p(x) = sum_j c_j prod_a phi_{alpha_j,a}((x_a - center_a) / halfWidth_a).
// A Polynomial is immutable.
type Polynomial struct {
	basis         basis.Kind
	support       *support.Set
	degree        support.DegreeSpec
	coeffs        []*big.Float
	coeffs64      []float64
	l2Norm        float64
	cond          float64
	method        lsq.Method
	samples       int
	samplesPerDim int
	sampleRange   [][2]float64
	residuals     []float64
	center        []float64
	scale         ScaleFactor
	halfWidth     []float64
	precision     Precision
	status        Status
	history       []Iteration
}

// Dim returns the number of variables n.
func (p *Polynomial) Dim() int {
	return p.support.Dim()
}

// Basis returns the polynomial family of the expansion.
func (p *Polynomial) Basis() basis.Kind {
	return p.basis
}

// Support returns the support set of the expansion.
func (p *Polynomial) Support() *support.Set {
	return p.support
}

// Degree returns the degree policy of the expansion.
func (p *Polynomial) Degree() support.DegreeSpec {
	return p.degree
}

// Coeffs returns a deep copy of the coefficients at the configured precision.
func (p *Polynomial) Coeffs() (coeffs []*big.Float) {
	coeffs = make([]*big.Float, len(p.coeffs))
	for i := range coeffs {
		coeffs[i] = new(big.Float).Copy(p.coeffs[i])
	}
	return
}

// Coeffs64 returns a copy of the coefficients rounded to float64.
func (p *Polynomial) Coeffs64() []float64 {
	return utils.CopySlice(p.coeffs64)
}

// L2Norm returns the normalized residual ||Vc - F||_2 / sqrt(K) of the fit.
func (p *Polynomial) L2Norm() float64 {
	return p.l2Norm
}

// Cond returns the condition number of the Gram matrix of the fit.
func (p *Polynomial) Cond() float64 {
	return p.cond
}

// Method returns the factorization that produced the coefficients.
func (p *Polynomial) Method() lsq.Method {
	return p.method
}

// Samples returns the number of distinct sample points K of the fit.
func (p *Polynomial) Samples() int {
	return p.samples
}

// SamplesPerDim returns the grid order GN of the fit (GN+1 nodes per axis).
func (p *Polynomial) SamplesPerDim() int {
	return p.samplesPerDim
}

// Center returns a copy of the center of the sampling box.
func (p *Polynomial) Center() []float64 {
	return utils.CopySlice(p.center)
}

// Scale returns the scale factor of the sampling box.
func (p *Polynomial) Scale() ScaleFactor {
	return p.scale
}

// HalfWidth returns a copy of the per-axis half-width of the sampling box.
func (p *Polynomial) HalfWidth() []float64 {
	return utils.CopySlice(p.halfWidth)
}

// Precision returns the precision of the coefficients.
func (p *Polynomial) Precision() Precision {
	return p.precision
}

// Status returns the terminal state of the refinement loop.
func (p *Polynomial) Status() Status {
	return p.status
}

// History returns a copy of the iterations of the refinement loop.
func (p *Polynomial) History() []Iteration {
	return utils.CopySlice(p.history)
}

// Reference maps x from original to reference coordinates and writes the result on u.
func (p *Polynomial) Reference(x, u []float64) []float64 {
	if len(u) != len(x) {
		u = make([]float64, len(x))
	}
	for i := range x {
		u[i] = (x[i] - p.center[i]) / p.halfWidth[i]
	}
	return u
}

// Original maps u from reference to original coordinates and writes the result on x.
func (p *Polynomial) Original(u, x []float64) []float64 {
	if len(x) != len(u) {
		x = make([]float64, len(u))
	}
	for i := range u {
		x[i] = p.center[i] + p.halfWidth[i]*u[i]
	}
	return x
}

// Evaluate returns p(x) for x in original coordinates.
func (p *Polynomial) Evaluate(x []float64) float64 {
	return p.EvaluateReference(p.Reference(x, nil))
}

// EvaluateReference returns p at u in reference coordinates.
func (p *Polynomial) EvaluateReference(u []float64) float64 {
	return design.Eval(p.basis, p.support, p.coeffs64, u)
}

// Gradient returns the gradient of p at x, both in original coordinates.
// It is computed on the basis expansion, independently of any monomial conversion.
func (p *Polynomial) Gradient(x []float64) (grad []float64) {
	grad = design.Gradient(p.basis, p.support, p.coeffs64, p.Reference(x, nil), nil)
	for i := range grad {
		grad[i] /= p.halfWidth[i]
	}
	return
}

// EvaluateBig returns p(x) for x in original coordinates, at the precision of the coefficients.
func (p *Polynomial) EvaluateBig(x []*big.Float) *big.Float {

	prec := uint(p.precision)

	u := make([]*big.Float, len(x))
	for i := range x {
		u[i] = new(big.Float).SetPrec(prec).Sub(x[i], bignum.NewFloat(p.center[i], prec))
		u[i].Quo(u[i], bignum.NewFloat(p.halfWidth[i], prec))
	}

	return design.EvalBig(p.basis, p.support, p.coeffs, u, prec)
}

// Fingerprint returns a blake3 digest of the basis, the support and the coefficients.
// Two fits with the same fingerprint are bit-identical.
func (p *Polynomial) Fingerprint() (digest [32]byte) {

	h := blake3.New()

	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(p.basis))
	h.Write(buf[:])

	fp := p.support.Fingerprint()
	h.Write(fp[:])

	for i := range p.coeffs {
		h.Write([]byte(p.coeffs[i].Text('p', 0)))
		h.Write([]byte{0})
	}

	for i := range p.halfWidth {
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(p.center[i]))
		h.Write(buf[:])
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(p.halfWidth[i]))
		h.Write(buf[:])
	}

	copy(digest[:], h.Sum(nil))

	return
}
