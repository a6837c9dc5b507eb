package track

import (
	"errors"
	"fmt"
)

// Error kinds surfaced to callers. Stages wrap these with fmt.Errorf("...: %w")
// so errors.Is keeps working across package boundaries.
var (
	ErrMalformedInput       = errors.New("malformed input")
	ErrUnsupportedVersion   = errors.New("unsupported version")
	ErrInvalidParameter     = errors.New("invalid parameter")
	ErrEmptyInput           = errors.New("empty input")
	ErrWrite                = errors.New("write error")
	ErrElevationUnavailable = errors.New("elevation unavailable")

	// ErrDegenerateSegment is a malformed input: a segment needs two points.
	ErrDegenerateSegment = fmt.Errorf("%w: segment has fewer than 2 points", ErrMalformedInput)
)

// KindOf maps an error to a stable snake_case name for logs, reports and
// API responses.
func KindOf(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrMalformedInput):
		return "malformed_input"
	case errors.Is(err, ErrUnsupportedVersion):
		return "unsupported_version"
	case errors.Is(err, ErrInvalidParameter):
		return "invalid_parameter"
	case errors.Is(err, ErrEmptyInput):
		return "empty_input"
	case errors.Is(err, ErrWrite):
		return "write_error"
	case errors.Is(err, ErrElevationUnavailable):
		return "elevation_unavailable"
	default:
		return "internal"
	}
}
