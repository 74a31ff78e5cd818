package attendance

import (
	"errors"
	"strings"
)

var (
	// ErrNotFound is returned for an unknown student or request id.
	ErrNotFound = errors.New("not found")
	// ErrDuplicateRequest rejects a second request for the same student and day,
	// or a request from a student already marked present.
	ErrDuplicateRequest = errors.New("duplicate attendance request")
	// ErrDuplicateID rejects registration with an id already on the roster.
	ErrDuplicateID = errors.New("student id already exists")
	// ErrRelayFailure wraps any mail or upload relay error.
	ErrRelayFailure = errors.New("relay failure")
	// ErrValidation is matched by every *ValidationError.
	ErrValidation = errors.New("validation failed")
)

// ValidationError lists the required fields that were missing or malformed.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return "missing or invalid fields: " + strings.Join(e.Fields, ", ")
}

// Is lets errors.Is(err, ErrValidation) match.
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }
