package grid

import (
	"errors"
	"fmt"

	"github.com/tuneinsight/critpoint/utils"
)

// DefaultMaxPoints is the default ceiling on the number of sample points of a grid.
const DefaultMaxPoints = 1 << 22

var (
	// ErrResourceLimitExceeded is returned when a requested grid exceeds its [Budget].
	ErrResourceLimitExceeded = errors.New("resource limit exceeded")

	// ErrUnderdetermined is returned when a grid has no more points than basis functions.
	ErrUnderdetermined = errors.New("underdetermined sampling")
)

// ResourceLimitError reports a grid larger than permitted.
type ResourceLimitError struct {
	// Requested is the number of points that would have been allocated,
	// or -1 if it overflows an int.
	Requested int
	// Permitted is the configured ceiling.
	Permitted int
	// PerAxis is the number of nodes along each axis.
	PerAxis []int
}

func (e *ResourceLimitError) Error() string {
	if e.Requested < 0 {
		return fmt.Sprintf("grid of %v nodes per axis overflows, %d points permitted", e.PerAxis, e.Permitted)
	}
	return fmt.Sprintf("grid of %v nodes per axis requests %d points, %d permitted", e.PerAxis, e.Requested, e.Permitted)
}

func (e *ResourceLimitError) Unwrap() error {
	return ErrResourceLimitExceeded
}

// Budget bounds the size of the grids a sampler may allocate.
type Budget struct {
	// MaxPoints is the maximum number of points (K).
	// If zero, DefaultMaxPoints is used.
	MaxPoints int
}

// Limit returns the effective point ceiling.
func (b Budget) Limit() int {
	if b.MaxPoints <= 0 {
		return DefaultMaxPoints
	}
	return b.MaxPoints
}

// Check returns the number of points of the tensor grid with perAxis[i] nodes along
// axis i, or a [*ResourceLimitError] if it exceeds the budget. It never allocates
// the grid: the product is accumulated with overflow detection.
func (b Budget) Check(perAxis []int) (count int, err error) {

	limit := b.Limit()

	count = 1
	for _, n := range perAxis {
		if n < 0 {
			return 0, fmt.Errorf("cannot Check: negative node count %d", n)
		}
		var ok bool
		if count, ok = mulInt(count, n); !ok {
			return 0, &ResourceLimitError{Requested: -1, Permitted: limit, PerAxis: utils.CopySlice(perAxis)}
		}
	}

	if count > limit {
		return 0, &ResourceLimitError{Requested: count, Permitted: limit, PerAxis: utils.CopySlice(perAxis)}
	}

	return
}

func mulInt(a, b int) (int, bool) {
	if a == 0 || b == 0 {
		return 0, true
	}
	c := a * b
	if c/b != a {
		return 0, false
	}
	return c, true
}
