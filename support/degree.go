// Package support implements the degree policies and the multi-index sets
// (support sets) selecting the basis functions of a multivariate expansion.
package support

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/google/go-cmp/cmp"

	"github.com/tuneinsight/critpoint/utils"
)

// ErrInvalidSupport is returned for malformed degree specifications and exponent sets.
var ErrInvalidSupport = errors.New("invalid support")

// Kind identifies the variant of a [DegreeSpec].
type Kind int

const (
	// Uniform : total degree truncation, sum(alpha) <= d.
	Uniform = Kind(0)
	// PerDimension : tensor-product truncation, alpha_i <= d_i.
	PerDimension = Kind(1)
	// Custom : explicit set of exponent vectors.
	Custom = Kind(2)
)

func (k Kind) String() string {
	switch k {
	case Uniform:
		return "Uniform"
	case PerDimension:
		return "PerDimension"
	case Custom:
		return "Custom"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// DegreeSpec is a degree policy. It is a closed variant, only
// constructible through [NewUniform], [NewPerDimension], [NewCustom]
// and [NewDegreeSpec], and immutable once built.
type DegreeSpec struct {
	kind      Kind
	degree    int
	degrees   []int
	exponents [][]int
}

// NewUniform returns the total degree policy Uniform(d).
func NewUniform(d int) DegreeSpec {
	return DegreeSpec{kind: Uniform, degree: d}
}

// NewPerDimension returns the tensor-product policy PerDimension([d1..dn]).
func NewPerDimension(degrees ...int) DegreeSpec {
	return DegreeSpec{kind: PerDimension, degrees: utils.CopySlice(degrees)}
}

// NewCustom returns the policy selecting exactly the given exponent vectors.
func NewCustom(exponents [][]int) DegreeSpec {
	exps := make([][]int, len(exponents))
	for i := range exponents {
		exps[i] = utils.CopySlice(exponents[i])
	}
	return DegreeSpec{kind: Custom, exponents: exps}
}

// NewDegreeSpec converts v to a [DegreeSpec].
// Accepted types are:
//   - DegreeSpec or *DegreeSpec: returned as is.
//   - any Go integer: Uniform(v).
//   - float64 with an integral value (as decoded from JSON): Uniform(v).
//   - []int: PerDimension(v).
//   - [][]int: Custom(v).
func NewDegreeSpec(v interface{}) (DegreeSpec, error) {
	switch v := v.(type) {
	case DegreeSpec:
		return v, nil
	case *DegreeSpec:
		if v == nil {
			return DegreeSpec{}, fmt.Errorf("cannot NewDegreeSpec: nil *DegreeSpec: %w", ErrInvalidSupport)
		}
		return *v, nil
	case int:
		return uniformFromInt64(int64(v))
	case int8:
		return uniformFromInt64(int64(v))
	case int16:
		return uniformFromInt64(int64(v))
	case int32:
		return uniformFromInt64(int64(v))
	case int64:
		return uniformFromInt64(v)
	case uint:
		return uniformFromInt64(int64(v))
	case uint8:
		return uniformFromInt64(int64(v))
	case uint16:
		return uniformFromInt64(int64(v))
	case uint32:
		return uniformFromInt64(int64(v))
	case uint64:
		if v > math.MaxInt32 {
			return DegreeSpec{}, fmt.Errorf("cannot NewDegreeSpec: degree %d too large: %w", v, ErrInvalidSupport)
		}
		return uniformFromInt64(int64(v))
	case float64:
		if v != math.Trunc(v) || math.IsInf(v, 0) || math.IsNaN(v) {
			return DegreeSpec{}, fmt.Errorf("cannot NewDegreeSpec: non-integral degree %v: %w", v, ErrInvalidSupport)
		}
		return uniformFromInt64(int64(v))
	case []int:
		spec := NewPerDimension(v...)
		return spec, spec.validate()
	case [][]int:
		return NewCustom(v), nil
	default:
		return DegreeSpec{}, fmt.Errorf("cannot NewDegreeSpec: invalid type %T, allowed types are DegreeSpec, integers, []int or [][]int: %w", v, ErrInvalidSupport)
	}
}

func uniformFromInt64(d int64) (DegreeSpec, error) {
	if d < 0 || d > math.MaxInt32 {
		return DegreeSpec{}, fmt.Errorf("cannot NewDegreeSpec: degree %d out of range: %w", d, ErrInvalidSupport)
	}
	return NewUniform(int(d)), nil
}

// Kind returns the variant of the receiver.
func (d DegreeSpec) Kind() Kind {
	return d.kind
}

// Degree returns d for Uniform(d), max(d_i) for PerDimension and the maximum
// total degree of the exponent vectors for Custom.
func (d DegreeSpec) Degree() int {
	switch d.kind {
	case Uniform:
		return d.degree
	case PerDimension:
		return utils.MaxSlice(d.degrees)
	case Custom:
		var max int
		for i := range d.exponents {
			max = utils.Max(max, utils.Sum(d.exponents[i]))
		}
		return max
	default:
		panic(fmt.Errorf("invalid degree kind %s", d.kind))
	}
}

// Degrees returns a copy of the per-axis degrees of a PerDimension spec, nil otherwise.
func (d DegreeSpec) Degrees() []int {
	return utils.CopySlice(d.degrees)
}

// Raisable returns true if [DegreeSpec.Raise] is defined for the receiver.
func (d DegreeSpec) Raisable() bool {
	return d.kind != Custom
}

// Raise returns the policy with every degree increased by step.
// Custom specs cannot be raised and are returned unchanged.
func (d DegreeSpec) Raise(step int) DegreeSpec {
	switch d.kind {
	case Uniform:
		return NewUniform(d.degree + step)
	case PerDimension:
		degrees := make([]int, len(d.degrees))
		for i := range degrees {
			degrees[i] = d.degrees[i] + step
		}
		return DegreeSpec{kind: PerDimension, degrees: degrees}
	default:
		return d
	}
}

// Equal returns true if both policies are identical.
func (d DegreeSpec) Equal(other DegreeSpec) bool {
	return d.kind == other.kind && d.degree == other.degree && cmp.Equal(d.degrees, other.degrees) && cmp.Equal(d.exponents, other.exponents)
}

// String returns a compact representation of the receiver.
func (d DegreeSpec) String() string {
	switch d.kind {
	case Uniform:
		return fmt.Sprintf("Uniform(%d)", d.degree)
	case PerDimension:
		return fmt.Sprintf("PerDimension(%v)", d.degrees)
	case Custom:
		return fmt.Sprintf("Custom(%d exponents)", len(d.exponents))
	default:
		return d.kind.String()
	}
}

// MarshalJSON encodes Uniform(d) as d, PerDimension as [d1, ..., dn]
// and Custom as the list of its exponent vectors.
func (d DegreeSpec) MarshalJSON() ([]byte, error) {
	switch d.kind {
	case Uniform:
		return json.Marshal(d.degree)
	case PerDimension:
		return json.Marshal(d.degrees)
	case Custom:
		return json.Marshal(d.exponents)
	default:
		return nil, fmt.Errorf("cannot MarshalJSON: invalid degree kind %s", d.kind)
	}
}

// UnmarshalJSON decodes the format of [DegreeSpec.MarshalJSON].
func (d *DegreeSpec) UnmarshalJSON(p []byte) (err error) {

	var degree float64
	if err = json.Unmarshal(p, &degree); err == nil {
		*d, err = NewDegreeSpec(degree)
		return
	}

	var degrees []int
	if err = json.Unmarshal(p, &degrees); err == nil {
		*d, err = NewDegreeSpec(degrees)
		return
	}

	var exponents [][]int
	if err = json.Unmarshal(p, &exponents); err == nil {
		*d, err = NewDegreeSpec(exponents)
		return
	}

	return fmt.Errorf("cannot UnmarshalJSON: %s is neither a degree, a list of degrees nor a list of exponents: %w", p, ErrInvalidSupport)
}

// validate checks the receiver against itself only; the
// consistency with the dimension is checked by [Generate].
func (d DegreeSpec) validate() error {
	switch d.kind {
	case Uniform:
		if d.degree < 0 {
			return fmt.Errorf("degree %d < 0: %w", d.degree, ErrInvalidSupport)
		}
	case PerDimension:
		if len(d.degrees) == 0 {
			return fmt.Errorf("empty per-dimension degrees: %w", ErrInvalidSupport)
		}
		for i, di := range d.degrees {
			if di < 0 {
				return fmt.Errorf("degree[%d]=%d < 0: %w", i, di, ErrInvalidSupport)
			}
		}
	case Custom:
		if len(d.exponents) == 0 {
			return fmt.Errorf("empty exponent set: %w", ErrInvalidSupport)
		}
	default:
		return fmt.Errorf("unknown degree kind %s: %w", d.kind, ErrInvalidSupport)
	}
	return nil
}
