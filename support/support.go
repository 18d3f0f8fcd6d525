package support

import (
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/google/go-cmp/cmp"
	"github.com/zeebo/blake3"

	"github.com/tuneinsight/critpoint/utils"
)

// Set is an ordered, duplicate-free sequence of exponent vectors of length Dim
// (the support Lambda of an expansion). The j-th exponent vector selects the
// j-th basis function, so the order is fixed: graded lexicographic, i.e.
// ascending total degree with ties broken by descending lexicographic order.
// A Set is immutable.
type Set struct {
	dim   int
	exps  [][]int
	index map[string]int
}

// Generate returns the support set of the degree policy v in dimension dim.
// v is converted with [NewDegreeSpec], so a bare non-negative integer is read as Uniform(v).
//
// Custom exponent sets are only validated (non-empty, of length dim,
// non-negative, without duplicates) and then put in graded lexicographic order.
func Generate(v interface{}, dim int) (s *Set, err error) {

	spec, err := NewDegreeSpec(v)
	if err != nil {
		return nil, fmt.Errorf("cannot Generate: %w", err)
	}

	if dim < 1 {
		return nil, fmt.Errorf("cannot Generate: dimension %d < 1: %w", dim, ErrInvalidSupport)
	}

	if err = spec.validate(); err != nil {
		return nil, fmt.Errorf("cannot Generate: %w", err)
	}

	var exps [][]int

	switch spec.kind {
	case Uniform:
		exps = totalDegree(dim, spec.degree)
	case PerDimension:
		if len(spec.degrees) != dim {
			return nil, fmt.Errorf("cannot Generate: %d per-dimension degrees for dimension %d: %w", len(spec.degrees), dim, ErrInvalidSupport)
		}
		exps = tensorDegree(spec.degrees)
	case Custom:
		if exps, err = validateCustom(spec.exponents, dim); err != nil {
			return nil, fmt.Errorf("cannot Generate: %w", err)
		}
	}

	return newSet(dim, exps), nil
}

func newSet(dim int, exps [][]int) *Set {

	sort.SliceStable(exps, func(i, j int) bool {
		return GradedLexLess(exps[i], exps[j])
	})

	index := make(map[string]int, len(exps))
	for j := range exps {
		index[key(exps[j])] = j
	}

	return &Set{dim: dim, exps: exps, index: index}
}

// GradedLexLess reports whether a precedes b in graded lexicographic order:
// lower total degree first, then the larger leading exponent first.
func GradedLexLess(a, b []int) bool {
	if da, db := utils.Sum(a), utils.Sum(b); da != db {
		return da < db
	}
	return utils.CompareSlice(a, b) > 0
}

func totalDegree(dim, degree int) (exps [][]int) {

	exps = make([][]int, 0, utils.Binomial(dim+degree, degree))

	current := make([]int, dim)

	var rec func(axis, remaining int)
	rec = func(axis, remaining int) {
		if axis == dim-1 {
			for e := 0; e <= remaining; e++ {
				current[axis] = e
				exps = append(exps, utils.CopySlice(current))
			}
			return
		}
		for e := 0; e <= remaining; e++ {
			current[axis] = e
			rec(axis+1, remaining-e)
		}
	}

	rec(0, degree)

	return
}

func tensorDegree(degrees []int) (exps [][]int) {

	size := 1
	for _, d := range degrees {
		size *= d + 1
	}

	exps = make([][]int, size)

	// mixed radix counter
	current := make([]int, len(degrees))
	for j := range exps {
		exps[j] = utils.CopySlice(current)
		for axis := len(degrees) - 1; axis >= 0; axis-- {
			if current[axis] < degrees[axis] {
				current[axis]++
				break
			}
			current[axis] = 0
		}
	}

	return
}

func validateCustom(exponents [][]int, dim int) (exps [][]int, err error) {

	if len(exponents) == 0 {
		return nil, fmt.Errorf("empty exponent set: %w", ErrInvalidSupport)
	}

	seen := make(map[string]int, len(exponents))

	exps = make([][]int, len(exponents))

	for i := range exponents {

		if len(exponents[i]) != dim {
			return nil, fmt.Errorf("exponent %d has length %d != dimension %d: %w", i, len(exponents[i]), dim, ErrInvalidSupport)
		}

		for axis, e := range exponents[i] {
			if e < 0 {
				return nil, fmt.Errorf("exponent %d has negative entry %d on axis %d: %w", i, e, axis, ErrInvalidSupport)
			}
		}

		k := key(exponents[i])
		if j, ok := seen[k]; ok {
			return nil, fmt.Errorf("exponent %d duplicates exponent %d (%v): %w", i, j, exponents[i], ErrInvalidSupport)
		}
		seen[k] = i

		exps[i] = utils.CopySlice(exponents[i])
	}

	return
}

func key(exps []int) string {
	buf := make([]byte, 0, 2*len(exps))
	for _, e := range exps {
		buf = binary.AppendUvarint(buf, uint64(e))
	}
	return string(buf)
}

// Len returns the number of exponent vectors m = |Lambda|.
func (s *Set) Len() int {
	return len(s.exps)
}

// Dim returns the length n of the exponent vectors.
func (s *Set) Dim() int {
	return s.dim
}

// At returns a copy of the j-th exponent vector.
func (s *Set) At(j int) []int {
	return utils.CopySlice(s.exps[j])
}

// Exponents returns a deep copy of the exponent vectors, in order.
func (s *Set) Exponents() (exps [][]int) {
	exps = make([][]int, len(s.exps))
	for j := range exps {
		exps[j] = utils.CopySlice(s.exps[j])
	}
	return
}

// Index returns the position of exps in the set, or -1 if it is absent.
func (s *Set) Index(exps []int) int {
	if j, ok := s.index[key(exps)]; ok {
		return j
	}
	return -1
}

// MaxDegree returns the maximum total degree of the exponent vectors.
func (s *Set) MaxDegree() (max int) {
	for j := range s.exps {
		max = utils.Max(max, utils.Sum(s.exps[j]))
	}
	return
}

// MaxDegreePerAxis returns the maximum exponent along each axis.
func (s *Set) MaxDegreePerAxis() (max []int) {
	max = make([]int, s.dim)
	for j := range s.exps {
		for axis, e := range s.exps[j] {
			max[axis] = utils.Max(max[axis], e)
		}
	}
	return
}

// Equal returns true if the receiver and other hold the same exponent vectors in the same order.
func (s *Set) Equal(other *Set) bool {
	return s.dim == other.dim && cmp.Equal(s.exps, other.exps)
}

// Fingerprint returns a blake3 digest of the dimension and of the ordered exponent vectors.
func (s *Set) Fingerprint() [32]byte {
	hasher := blake3.New()
	buf := binary.AppendUvarint(nil, uint64(s.dim))
	buf = binary.AppendUvarint(buf, uint64(len(s.exps)))
	for j := range s.exps {
		buf = append(buf, key(s.exps[j])...)
	}
	hasher.Write(buf)
	var digest [32]byte
	copy(digest[:], hasher.Sum(nil))
	return digest
}
