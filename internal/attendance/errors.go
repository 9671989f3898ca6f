package attendance

import (
	"github.com/juju/errors"
)

const (
	// ErrDuplicateRoll is returned when a write would give two students the
	// same roll.
	ErrDuplicateRoll = errors.ConstError("roll no already exists")

	// ErrNotFound is returned when the student targeted by an update does
	// not exist.
	ErrNotFound = errors.ConstError("student not found")

	// ErrReferential is returned when attendance references a student that
	// does not exist.
	ErrReferential = errors.ConstError("unknown student reference")

	// ErrValidation is returned for empty or malformed input.
	ErrValidation = errors.ConstError("invalid input")
)

// Message returns the text shown to a user for err.
func Message(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrDuplicateRoll):
		return "Roll No already exists."
	case errors.Is(err, ErrNotFound):
		return "Student not found."
	case errors.Is(err, ErrValidation):
		return err.Error()
	default:
		return "Operation failed."
	}
}

// Outcome classifies err into a short label used for metrics.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrDuplicateRoll):
		return "duplicate_roll"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrReferential):
		return "referential"
	case errors.Is(err, ErrValidation):
		return "invalid"
	default:
		return "error"
	}
}
