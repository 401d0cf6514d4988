package acpc

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidCenter is returned when the requested frame origin is not one of
// MC, AC or PC.
var ErrInvalidCenter = errors.New("center must be MC, AC or PC")

// ErrNoMidline is returned when no midline point candidates are supplied.
var ErrNoMidline = errors.New("no midline point")

// DegenerateInputError reports landmarks that cannot define an orthonormal
// frame: coincident commissures, a midline point on the AC-PC line or a
// NaN/Inf coordinate.
type DegenerateInputError struct {
	// Reason is a short description of the degeneracy
	Reason string

	// Distance is the offending length in mm (AC-PC distance or the distance
	// of the midline point from the AC-PC line), NaN for non-finite input
	Distance float64

	// Tolerance is the threshold the distance was compared against
	Tolerance float64
}

func (e *DegenerateInputError) Error() string {
	if math.IsNaN(e.Distance) {
		return "degenerate landmarks: " + e.Reason
	}
	return fmt.Sprintf("degenerate landmarks: %s (%.3g mm <= tolerance %.3g mm)", e.Reason, e.Distance, e.Tolerance)
}

// IsDegenerate reports whether err is, or wraps, a DegenerateInputError.
func IsDegenerate(err error) bool {
	var de *DegenerateInputError
	return errors.As(err, &de)
}
