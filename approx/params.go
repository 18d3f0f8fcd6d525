package approx

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/google/go-cmp/cmp"

	"github.com/tuneinsight/critpoint/basis"
	"github.com/tuneinsight/critpoint/grid"
	"github.com/tuneinsight/critpoint/lsq"
	"github.com/tuneinsight/critpoint/support"
	"github.com/tuneinsight/critpoint/utils"
)

const (
	// DefaultMaxDegree is the default hard cap of the refinement loop.
	DefaultMaxDegree = 16
	// DefaultDegreeStep is the default degree increment of the refinement loop.
	DefaultDegreeStep = 1
)

// Precision is the number of mantissa bits used to build and solve the least-squares problems.
type Precision uint

const (
	// Double is IEEE 754 double precision.
	Double = Precision(53)
	// Extended is the default arbitrary precision.
	Extended = Precision(128)
)

// IsExtended returns true if the receiver requires arbitrary precision arithmetic.
func (p Precision) IsExtended() bool {
	return p > Double
}

func (p Precision) String() string {
	switch p {
	case Double:
		return "double"
	case Extended:
		return "extended"
	default:
		return fmt.Sprintf("%d-bit", uint(p))
	}
}

// MarshalJSON encodes double and extended by name and any other precision as its number of bits.
func (p Precision) MarshalJSON() ([]byte, error) {
	switch p {
	case Double, Extended:
		return json.Marshal(p.String())
	default:
		return json.Marshal(uint(p))
	}
}

// UnmarshalJSON decodes "double", "extended" or a number of bits.
func (p *Precision) UnmarshalJSON(b []byte) (err error) {
	var s string
	if err = json.Unmarshal(b, &s); err == nil {
		switch strings.ToLower(s) {
		case "double":
			*p = Double
		case "extended":
			*p = Extended
		default:
			return fmt.Errorf("cannot UnmarshalJSON: unknown precision %q", s)
		}
		return
	}
	var bits uint
	if err = json.Unmarshal(b, &bits); err != nil {
		return fmt.Errorf("cannot UnmarshalJSON: %w", err)
	}
	*p = Precision(bits)
	return
}

type scaleKind int

const (
	uniformScale = scaleKind(0)
	perAxisScale = scaleKind(1)
)

// ScaleFactor is the half-width of the sampling box: either a single value
// shared by all axes or one value per axis. It is resolved once into a
// per-axis vector by [NewParametersFromLiteral].
type ScaleFactor struct {
	kind    scaleKind
	uniform float64
	perAxis []float64
}

// UniformScale returns the scale factor s on every axis.
func UniformScale(s float64) ScaleFactor {
	return ScaleFactor{kind: uniformScale, uniform: s}
}

// PerAxisScale returns the scale factor s[i] on axis i.
func PerAxisScale(s ...float64) ScaleFactor {
	return ScaleFactor{kind: perAxisScale, perAxis: utils.CopySlice(s)}
}

// NewScaleFactor converts v to a [ScaleFactor].
// Accepted types are ScaleFactor, float64, int (uniform) and []float64 (per axis).
// A nil v is the uniform scale 1.
func NewScaleFactor(v interface{}) (ScaleFactor, error) {
	switch v := v.(type) {
	case nil:
		return UniformScale(1), nil
	case ScaleFactor:
		return v, nil
	case *ScaleFactor:
		if v == nil {
			return UniformScale(1), nil
		}
		return *v, nil
	case float64:
		return UniformScale(v), nil
	case int:
		return UniformScale(float64(v)), nil
	case []float64:
		return PerAxisScale(v...), nil
	case []interface{}:
		s := make([]float64, len(v))
		for i := range v {
			f, ok := v[i].(float64)
			if !ok {
				return ScaleFactor{}, fmt.Errorf("cannot NewScaleFactor: invalid element type %T", v[i])
			}
			s[i] = f
		}
		return PerAxisScale(s...), nil
	default:
		return ScaleFactor{}, fmt.Errorf("cannot NewScaleFactor: invalid type %T, allowed types are float64, int or []float64", v)
	}
}

// IsUniform returns true if the receiver is a single value for all axes.
func (s ScaleFactor) IsUniform() bool {
	return s.kind == uniformScale
}

// Resolve returns the per-axis half-widths in dimension dim.
func (s ScaleFactor) Resolve(dim int) (halfWidth []float64, err error) {

	switch s.kind {
	case uniformScale:
		halfWidth = utils.RepeatSlice(s.uniform, dim)
	case perAxisScale:
		if len(s.perAxis) != dim {
			return nil, fmt.Errorf("cannot Resolve: %d per-axis scale factors for dimension %d", len(s.perAxis), dim)
		}
		halfWidth = utils.CopySlice(s.perAxis)
	default:
		panic(fmt.Errorf("invalid scale kind %d", s.kind))
	}

	for i, h := range halfWidth {
		if !(h > 0) || math.IsInf(h, 0) {
			return nil, fmt.Errorf("cannot Resolve: scale factor %v on axis %d must be positive and finite", h, i)
		}
	}

	return
}

// Equal returns true if both scale factors are identical.
func (s ScaleFactor) Equal(other ScaleFactor) bool {
	return s.kind == other.kind && s.uniform == other.uniform && cmp.Equal(s.perAxis, other.perAxis)
}

// MarshalJSON encodes a uniform scale as a number and a per-axis scale as a list.
func (s ScaleFactor) MarshalJSON() ([]byte, error) {
	if s.kind == uniformScale {
		return json.Marshal(s.uniform)
	}
	return json.Marshal(s.perAxis)
}

// UnmarshalJSON decodes the format of [ScaleFactor.MarshalJSON].
func (s *ScaleFactor) UnmarshalJSON(b []byte) (err error) {
	var f float64
	if err = json.Unmarshal(b, &f); err == nil {
		*s = UniformScale(f)
		return
	}
	var v []float64
	if err = json.Unmarshal(b, &v); err != nil {
		return fmt.Errorf("cannot UnmarshalJSON: scale factor must be a number or a list of numbers: %w", err)
	}
	*s = PerAxisScale(v...)
	return
}

// ParametersLiteral is a literal representation of the parameters of [Approximate].
// It has public fields and is used to express unchecked user-defined parameters
// literally into Go programs. The [NewParametersFromLiteral] function is used to
// generate the actual checked parameters from the literal representation.
type ParametersLiteral struct {
	// Dimension is the number of variables n.
	Dimension int
	// InitialDegree is the degree policy of the first iteration.
	// Any value accepted by [support.NewDegreeSpec]: a bare integer d is Uniform(d).
	InitialDegree interface{}
	// Tolerance is the target normalized L2 residual.
	Tolerance float64
	// Center is the center of the sampling box, the origin if empty.
	Center []float64 `json:",omitempty"`
	// HalfWidth is the half-width of the sampling box: a float64, a []float64 or a [ScaleFactor].
	// Defaults to 1.
	HalfWidth interface{} `json:",omitempty"`
	// Basis is the polynomial family.
	Basis basis.Kind
	// DegreeStep is the degree increment between iterations, DefaultDegreeStep if zero.
	DegreeStep int `json:",omitempty"`
	// MaxDegree is the hard cap on the degree, DefaultMaxDegree if zero.
	MaxDegree int `json:",omitempty"`
	// Precision is the arithmetic precision, Double if zero.
	Precision Precision `json:",omitempty"`
	// SamplesPerDim overrides the grid order GN (GN+1 nodes per axis).
	// If zero, GN is derived from the stability bound at each iteration.
	SamplesPerDim int `json:",omitempty"`
	// Delta and Alpha are the parameters of [grid.StableSampleCount].
	Delta float64 `json:",omitempty"`
	Alpha float64 `json:",omitempty"`
	// MaxPoints bounds the number of sample points, grid.DefaultMaxPoints if zero.
	MaxPoints int `json:",omitempty"`
	// CholeskyCond and MaxCond are the conditioning thresholds of [lsq.Solve].
	CholeskyCond float64 `json:",omitempty"`
	MaxCond      float64 `json:",omitempty"`
	// Workers is the number of goroutines, runtime.NumCPU() if zero.
	Workers int `json:",omitempty"`
	// Verbose enables progress logging.
	Verbose bool `json:",omitempty"`
}

// UnmarshalJSON reads a JSON representation of a parameters literal into the receiver.
// InitialDegree is decoded as a [support.DegreeSpec] and HalfWidth as a [ScaleFactor].
func (p *ParametersLiteral) UnmarshalJSON(b []byte) (err error) {

	type literal ParametersLiteral

	var pl struct {
		literal
		InitialDegree *support.DegreeSpec
		HalfWidth     *ScaleFactor
	}

	if err = json.Unmarshal(b, &pl); err != nil {
		return err
	}

	*p = ParametersLiteral(pl.literal)

	if pl.InitialDegree != nil {
		p.InitialDegree = *pl.InitialDegree
	}

	if pl.HalfWidth != nil {
		p.HalfWidth = *pl.HalfWidth
	}

	return
}

// Parameters is the checked and immutable configuration of [Approximate].
// See [ParametersLiteral] for user-specified parameters.
type Parameters struct {
	dimension     int
	initialDegree support.DegreeSpec
	tolerance     float64
	center        []float64
	scale         ScaleFactor
	halfWidth     []float64
	basis         basis.Kind
	degreeStep    int
	maxDegree     int
	precision     Precision
	samplesPerDim int
	delta         float64
	alpha         float64
	maxPoints     int
	choleskyCond  float64
	maxCond       float64
	workers       int
	verbose       bool
}

// NewParametersFromLiteral instantiates a set of [Parameters] from a [ParametersLiteral] specification.
// It returns the empty parameters Parameters{} and a non-nil error if the specified parameters are invalid.
func NewParametersFromLiteral(pl ParametersLiteral) (params Parameters, err error) {

	if pl.Dimension < 1 {
		return Parameters{}, fmt.Errorf("cannot NewParametersFromLiteral: Dimension=%d < 1", pl.Dimension)
	}

	if params.initialDegree, err = support.NewDegreeSpec(pl.InitialDegree); err != nil {
		return Parameters{}, fmt.Errorf("cannot NewParametersFromLiteral: InitialDegree: %w", err)
	}

	if !(pl.Tolerance > 0) {
		return Parameters{}, fmt.Errorf("cannot NewParametersFromLiteral: Tolerance=%v must be positive", pl.Tolerance)
	}

	if err = pl.Basis.Validate(); err != nil {
		return Parameters{}, fmt.Errorf("cannot NewParametersFromLiteral: %w", err)
	}

	params.dimension = pl.Dimension
	params.tolerance = pl.Tolerance
	params.basis = pl.Basis

	switch {
	case len(pl.Center) == 0:
		params.center = make([]float64, pl.Dimension)
	case len(pl.Center) != pl.Dimension:
		return Parameters{}, fmt.Errorf("cannot NewParametersFromLiteral: len(Center)=%d != Dimension=%d", len(pl.Center), pl.Dimension)
	default:
		params.center = utils.CopySlice(pl.Center)
	}

	for i, c := range params.center {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return Parameters{}, fmt.Errorf("cannot NewParametersFromLiteral: Center[%d]=%v must be finite", i, c)
		}
	}

	if params.scale, err = NewScaleFactor(pl.HalfWidth); err != nil {
		return Parameters{}, fmt.Errorf("cannot NewParametersFromLiteral: %w", err)
	}

	if params.halfWidth, err = params.scale.Resolve(pl.Dimension); err != nil {
		return Parameters{}, fmt.Errorf("cannot NewParametersFromLiteral: %w", err)
	}

	if params.degreeStep = pl.DegreeStep; params.degreeStep == 0 {
		params.degreeStep = DefaultDegreeStep
	} else if params.degreeStep < 0 {
		return Parameters{}, fmt.Errorf("cannot NewParametersFromLiteral: DegreeStep=%d < 0", pl.DegreeStep)
	}

	if params.maxDegree = pl.MaxDegree; params.maxDegree == 0 {
		params.maxDegree = DefaultMaxDegree
	} else if params.maxDegree < 0 {
		return Parameters{}, fmt.Errorf("cannot NewParametersFromLiteral: MaxDegree=%d < 0", pl.MaxDegree)
	}

	if params.initialDegree.Raisable() && params.initialDegree.Degree() > params.maxDegree {
		return Parameters{}, fmt.Errorf("cannot NewParametersFromLiteral: initial degree %s exceeds MaxDegree=%d", params.initialDegree, params.maxDegree)
	}

	if params.precision = pl.Precision; params.precision == 0 {
		params.precision = Double
	} else if params.precision < Double {
		return Parameters{}, fmt.Errorf("cannot NewParametersFromLiteral: Precision=%d bits < %d", pl.Precision, Double)
	}

	if pl.SamplesPerDim < 0 {
		return Parameters{}, fmt.Errorf("cannot NewParametersFromLiteral: SamplesPerDim=%d < 0", pl.SamplesPerDim)
	}
	params.samplesPerDim = pl.SamplesPerDim

	if params.delta = pl.Delta; params.delta == 0 {
		params.delta = grid.DefaultDelta
	} else if params.delta < 0 || params.delta >= 1 {
		return Parameters{}, fmt.Errorf("cannot NewParametersFromLiteral: Delta=%v must be in (0, 1)", pl.Delta)
	}

	if params.alpha = pl.Alpha; params.alpha == 0 {
		params.alpha = grid.DefaultAlpha
	} else if params.alpha < 0 || params.alpha >= 1 {
		return Parameters{}, fmt.Errorf("cannot NewParametersFromLiteral: Alpha=%v must be in (0, 1)", pl.Alpha)
	}

	if params.maxPoints = pl.MaxPoints; params.maxPoints <= 0 {
		params.maxPoints = grid.DefaultMaxPoints
	}

	if params.choleskyCond = pl.CholeskyCond; params.choleskyCond <= 0 {
		params.choleskyCond = lsq.DefaultCholeskyCond
	}

	if params.maxCond = pl.MaxCond; params.maxCond <= 0 {
		params.maxCond = lsq.DefaultMaxCond
	}

	if params.choleskyCond > params.maxCond {
		return Parameters{}, fmt.Errorf("cannot NewParametersFromLiteral: CholeskyCond=%v > MaxCond=%v", params.choleskyCond, params.maxCond)
	}

	params.workers = pl.Workers
	params.verbose = pl.Verbose

	return
}

// ParametersLiteral returns the [ParametersLiteral] of the receiver, with the defaults filled in.
func (p Parameters) ParametersLiteral() ParametersLiteral {
	return ParametersLiteral{
		Dimension:     p.dimension,
		InitialDegree: p.initialDegree,
		Tolerance:     p.tolerance,
		Center:        utils.CopySlice(p.center),
		HalfWidth:     p.scale,
		Basis:         p.basis,
		DegreeStep:    p.degreeStep,
		MaxDegree:     p.maxDegree,
		Precision:     p.precision,
		SamplesPerDim: p.samplesPerDim,
		Delta:         p.delta,
		Alpha:         p.alpha,
		MaxPoints:     p.maxPoints,
		CholeskyCond:  p.choleskyCond,
		MaxCond:       p.maxCond,
		Workers:       p.workers,
		Verbose:       p.verbose,
	}
}

// Dimension returns the number of variables n.
func (p Parameters) Dimension() int {
	return p.dimension
}

// InitialDegree returns the degree policy of the first iteration.
func (p Parameters) InitialDegree() support.DegreeSpec {
	return p.initialDegree
}

// Tolerance returns the target normalized L2 residual.
func (p Parameters) Tolerance() float64 {
	return p.tolerance
}

// Center returns a copy of the center of the sampling box.
func (p Parameters) Center() []float64 {
	return utils.CopySlice(p.center)
}

// Scale returns the scale factor as given.
func (p Parameters) Scale() ScaleFactor {
	return p.scale
}

// HalfWidth returns a copy of the resolved per-axis half-width of the sampling box.
func (p Parameters) HalfWidth() []float64 {
	return utils.CopySlice(p.halfWidth)
}

// Basis returns the polynomial family.
func (p Parameters) Basis() basis.Kind {
	return p.basis
}

// DegreeStep returns the degree increment between iterations.
func (p Parameters) DegreeStep() int {
	return p.degreeStep
}

// MaxDegree returns the hard cap on the degree.
func (p Parameters) MaxDegree() int {
	return p.maxDegree
}

// Precision returns the arithmetic precision.
func (p Parameters) Precision() Precision {
	return p.precision
}

// SamplesPerDim returns the grid order override, 0 if the grid order is derived from the stability bound.
func (p Parameters) SamplesPerDim() int {
	return p.samplesPerDim
}

// Delta returns the decay parameter of the stability bound.
func (p Parameters) Delta() float64 {
	return p.delta
}

// Alpha returns the confidence parameter of the stability bound.
func (p Parameters) Alpha() float64 {
	return p.alpha
}

// Budget returns the sample point budget.
func (p Parameters) Budget() grid.Budget {
	return grid.Budget{MaxPoints: p.maxPoints}
}

// SolverOptions returns the options passed to [lsq.Solve].
func (p Parameters) SolverOptions() lsq.Options {
	return lsq.Options{CholeskyCond: p.choleskyCond, MaxCond: p.maxCond}
}

// Workers returns the number of goroutines, 0 meaning runtime.NumCPU().
func (p Parameters) Workers() int {
	return p.workers
}

// Verbose returns true if progress logging is enabled.
func (p Parameters) Verbose() bool {
	return p.verbose
}

// Equal checks two [Parameters] for equality.
func (p Parameters) Equal(other Parameters) bool {
	res := p.dimension == other.dimension
	res = res && cmp.Equal(p.initialDegree, other.initialDegree)
	res = res && p.tolerance == other.tolerance
	res = res && cmp.Equal(p.center, other.center)
	res = res && cmp.Equal(p.scale, other.scale)
	res = res && p.basis == other.basis
	res = res && p.degreeStep == other.degreeStep
	res = res && p.maxDegree == other.maxDegree
	res = res && p.precision == other.precision
	res = res && p.samplesPerDim == other.samplesPerDim
	res = res && p.delta == other.delta
	res = res && p.alpha == other.alpha
	res = res && p.maxPoints == other.maxPoints
	res = res && p.choleskyCond == other.choleskyCond
	res = res && p.maxCond == other.maxCond
	res = res && p.workers == other.workers
	res = res && p.verbose == other.verbose
	return res
}

// MarshalJSON returns a JSON representation of the receiver's [ParametersLiteral].
func (p Parameters) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.ParametersLiteral())
}

// UnmarshalJSON reads a JSON representation of a parameter set into the receiver.
func (p *Parameters) UnmarshalJSON(data []byte) (err error) {
	var pl ParametersLiteral
	if err = json.Unmarshal(data, &pl); err != nil {
		return err
	}
	*p, err = NewParametersFromLiteral(pl)
	return
}
