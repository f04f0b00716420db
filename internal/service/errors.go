package service

import (
	"errors"
	"fmt"
)

// Not-found sentinels, mapped to HTTP 404 by the handlers
var (
	ErrPONotFound           = errors.New("purchase order not found")
	ErrCustomerNotFound     = errors.New("customer not found")
	ErrAccountNotFound      = errors.New("account not found")
	ErrNotificationNotFound = errors.New("notification not found")
	ErrBillingRunNotFound   = errors.New("billing run not found")
	ErrRateCardNotFound     = errors.New("rate card not found")
)

// ValidationError reports invalid monetary or date input. It is surfaced to
// the caller before any side effect is applied, and never partially applied.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func validationErr(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsNotFound reports whether err is one of the not-found sentinels.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrPONotFound) ||
		errors.Is(err, ErrCustomerNotFound) ||
		errors.Is(err, ErrAccountNotFound) ||
		errors.Is(err, ErrNotificationNotFound) ||
		errors.Is(err, ErrBillingRunNotFound) ||
		errors.Is(err, ErrRateCardNotFound)
}
