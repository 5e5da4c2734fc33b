package errs

import (
	"errors"
	"strings"
)

// Common sentinel errors for cross-layer signaling.
var (
	ErrNotFound  = errors.New("not_found")
	ErrForbidden = errors.New("forbidden")
	ErrConflict  = errors.New("conflict")
	ErrInvalid   = errors.New("invalid")
)

// Reason names why an input was rejected.
type Reason string

const (
	ReasonInvalidAmount    Reason = "invalid amount"
	ReasonEmptyRoster      Reason = "empty roster"
	ReasonPayerNotInRoster Reason = "payer not in roster"
	ReasonUnknownMember    Reason = "unknown member"
	ReasonUnsupportedSplit Reason = "unsupported split policy"
	ReasonInvalidCurrency  Reason = "invalid currency"
	ReasonRequired         Reason = "required"
	ReasonTooLong          Reason = "too long"
	ReasonSameMember       Reason = "from and to must differ"
	ReasonInvalidMetadata  Reason = "invalid metadata"
	ReasonMixedCurrency    Reason = "mixed currency"
	ReasonShareMismatch    Reason = "shares do not sum to amount"
	ReasonOverflow         Reason = "amount overflow"
)

// Code returns the snake_case form used in API error payloads.
func (r Reason) Code() string { return strings.ReplaceAll(string(r), " ", "_") }

// ValidationError reports a rejected input. No state is modified when it is returned.
type ValidationError struct {
	Field  string
	Reason Reason
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return string(e.Reason)
	}
	return e.Field + ": " + string(e.Reason)
}

// Is lets callers match any validation failure with errors.Is(err, ErrInvalid).
func (e *ValidationError) Is(target error) bool { return target == ErrInvalid }

// Invalid builds a *ValidationError.
func Invalid(field string, reason Reason) error {
	return &ValidationError{Field: field, Reason: reason}
}

// AsValidation extracts a *ValidationError from err's chain.
func AsValidation(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}

// StorageError wraps a failure raised by a persistence backend.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string { return "storage: " + e.Op + ": " + e.Err.Error() }

func (e *StorageError) Unwrap() error { return e.Err }

// Storage wraps err as a *StorageError. Sentinel errors and existing storage
// errors pass through untouched so callers can keep matching on them.
func Storage(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrConflict) || errors.Is(err, ErrInvalid) {
		return err
	}
	var se *StorageError
	if errors.As(err, &se) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}
