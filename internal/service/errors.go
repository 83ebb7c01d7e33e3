package service

import (
	"errors"
	"fmt"

	"airquality-go/internal/state"
)

// InsufficientDataError is returned when a series is too short for a transform.
type InsufficientDataError struct {
	Required int
	Got      int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data: need at least %d observations, got %d", e.Required, e.Got)
}

// InvalidInputError is returned when a transform input holds unusable values.
type InvalidInputError struct {
	Reason string
	Index  int
	Value  float64
}

func (e *InvalidInputError) Error() string {
	if e.Index < 0 {
		return "invalid input: " + e.Reason
	}
	return fmt.Sprintf("invalid input: %s at index %d (%v)", e.Reason, e.Index, e.Value)
}

// UnknownStationError is returned when a selection names a station the
// table has no rows for.
type UnknownStationError struct {
	Station string
}

func (e *UnknownStationError) Error() string {
	return fmt.Sprintf("unknown station %q", e.Station)
}

// FailureReason maps an error to a short, stable label used in notices and metrics.
func FailureReason(err error) string {
	var (
		insufficient *InsufficientDataError
		invalid      *InvalidInputError
		unknown      *state.UnknownColumnError
		kind         *state.ColumnKindError
		missing      *state.MissingColumnError
		station      *UnknownStationError
	)
	switch {
	case errors.As(err, &insufficient):
		return "insufficient_data"
	case errors.As(err, &invalid):
		return "invalid_input"
	case errors.As(err, &unknown), errors.As(err, &kind), errors.As(err, &missing):
		return "bad_column"
	case errors.As(err, &station):
		return "unknown_station"
	default:
		return "internal"
	}
}
