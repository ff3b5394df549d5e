package review

import (
	"errors"
	"fmt"
)

var (
	ErrForbidden             = errors.New("review: action requires the privileged role")
	ErrInvalidState          = errors.New("review: invalid state")
	ErrCatalogReasonRequired = errors.New("review: catalog reason required")
	ErrFreeTextRequired      = errors.New("review: free-text reason required for Otro")
	ErrMissingKey            = errors.New("review: person and entity are required")
	ErrInvalidPersonID       = errors.New("review: person id must have 10 to 13 letters or digits")
)

// ValidationError wraps one of the validation sentinels with the offending input.
type ValidationError struct {
	Err    error
	Detail string
}

func (e *ValidationError) Error() string {
	if e.Detail == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %q", e.Err, e.Detail)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// ReadOnlyError is returned when the database rejects a write because the
// session is read-only. The fields identify where the write was attempted.
type ReadOnlyError struct {
	Database            string
	User                string
	TransactionReadOnly string
	Err                 error
}

func (e *ReadOnlyError) Error() string {
	return fmt.Sprintf("review: database %q is read-only for user %q (transaction_read_only=%s): %v",
		e.Database, e.User, e.TransactionReadOnly, e.Err)
}

func (e *ReadOnlyError) Unwrap() error { return e.Err }

// validate checks the reason rules for a verdict.
func (d Decision) validate(allowed ...State) error {
	ok := false
	for _, s := range allowed {
		if d.State == s {
			ok = true
			break
		}
	}
	if !ok {
		return &ValidationError{Err: ErrInvalidState, Detail: string(d.State)}
	}
	if d.State.Triaged() && d.CatalogReason == "" {
		return &ValidationError{Err: ErrCatalogReasonRequired}
	}
	if d.CatalogReason == OtherReason && d.FreeText == "" {
		return &ValidationError{Err: ErrFreeTextRequired}
	}
	return nil
}
