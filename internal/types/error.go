package types

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel error kinds. Callers match with errors.Is so storage details can
// be wrapped without losing the classification.
var (
	// ErrNotFound marks an unknown definition name or document id.
	ErrNotFound = errors.New("not found")

	// ErrReadOnly marks an attempt to promote or undeploy a read-only
	// definition without force.
	ErrReadOnly = errors.New("cannot update read-only document definition")

	// ErrAlreadyDeployed marks a redeploy of structurally identical schema
	// content. Reported as a soft failure on the deploy path.
	ErrAlreadyDeployed = errors.New("schema already deployed")

	// ErrConflict marks a store of a differing schema under an id that is
	// already present. Callers of Store are expected to have resolved the
	// version correctly, so this surfaces as a hard error.
	ErrConflict = errors.New("definition id already stored with different content")

	// ErrContention marks a sequence allocation that exhausted its retry
	// budget. Never downgraded to a duplicate or zero value.
	ErrContention = errors.New("sequence allocation retry budget exhausted")

	// ErrAccessDenied is what the authorization collaborator returns; the
	// core propagates it untouched.
	ErrAccessDenied = errors.New("access denied")
)

// ValidationError carries one or more human-readable request problems that
// were detected before any query or mutation executed.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s", strings.Join(e.Problems, "; "))
}

// NewValidationError builds a single-problem validation error.
func NewValidationError(format string, args ...any) *ValidationError {
	return &ValidationError{Problems: []string{fmt.Sprintf(format, args...)}}
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// CustomError is a transport-facing error with an HTTP-ish code, used by the
// fiber handlers. Core packages use the sentinels above instead.
type CustomError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Type    string `json:"type"`
}

func (e *CustomError) Error() string {
	return fmt.Sprintf("%d: %s [type: %s]", e.Code, e.Message, e.Type)
}
