package errs

import (
	"errors"
	"fmt"
	"testing"
)

func TestValidationError_MatchesErrInvalid(t *testing.T) {
	err := fmt.Errorf("record: %w", Invalid("amount", ReasonInvalidAmount))
	if !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected errors.Is(err, ErrInvalid)")
	}
	ve, ok := AsValidation(err)
	if !ok {
		t.Fatalf("expected a validation error in chain")
	}
	if ve.Reason.Code() != "invalid_amount" {
		t.Fatalf("unexpected code %q", ve.Reason.Code())
	}
	if ve.Error() != "amount: invalid amount" {
		t.Fatalf("unexpected message %q", ve.Error())
	}
}

func TestStorage_WrapsAndPassesThroughSentinels(t *testing.T) {
	if Storage("op", nil) != nil {
		t.Fatalf("nil should stay nil")
	}
	if got := Storage("op", ErrNotFound); got != ErrNotFound {
		t.Fatalf("sentinel should pass through, got %v", got)
	}
	driver := errors.New("connection reset")
	err := Storage("insert expense", driver)
	var se *StorageError
	if !errors.As(err, &se) {
		t.Fatalf("expected *StorageError, got %T", err)
	}
	if se.Op != "insert expense" || !errors.Is(err, driver) {
		t.Fatalf("unexpected storage error %+v", se)
	}
	if again := Storage("outer", err); again != err {
		t.Fatalf("storage errors should not be double wrapped")
	}
}
