package directory

import (
	"errors"
	"fmt"
)

// Sentinel error kinds (stable for errors.Is and for API status mapping).
var (
	ErrInvalidInput = errors.New("invalid_input")
	ErrNotFound     = errors.New("not_found")
	ErrConflict     = errors.New("conflict")
	ErrRoleMismatch = errors.New("role_mismatch")
)

// OpError is a typed operation error with a stable Op + Kind contract.
// Msg may carry human-readable context; never secrets.
type OpError struct {
	Op   string
	Kind error
	Msg  string
}

func (e OpError) Error() string {
	if e.Msg == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %s", e.Op, e.Kind, e.Msg)
}

func (e OpError) Unwrap() error { return e.Kind }

// ConflictError reports a uniqueness conflict for a logical field ("email").
type ConflictError struct {
	Op    string
	Field string
}

func (e ConflictError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: %v", e.Op, ErrConflict)
	}
	return fmt.Sprintf("%s: %v: %s", e.Op, ErrConflict, e.Field)
}

func (e ConflictError) Unwrap() error { return ErrConflict }

// IsConflict reports whether err is a uniqueness conflict.
func IsConflict(err error) bool { return errors.Is(err, ErrConflict) }

// IsNotFound reports whether err represents a missing account or token.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }
