package sale

import (
	"errors"
	"fmt"
)

// ErrAlreadyCancelled guards cancellation idempotency: a cancelled sale is
// never credited back a second time.
var ErrAlreadyCancelled = errors.New("sale is already cancelled")

// NotFoundError reports a missing or inactive referenced entity by name.
type NotFoundError struct {
	Entity string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found", e.Entity)
}

// InsufficientStockError reports a stock check failure for one line.
type InsufficientStockError struct {
	ProductName string
	Requested   int
	Available   int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: requested %d, available %d",
		e.ProductName, e.Requested, e.Available)
}

// InvalidInputError reports a malformed create request before any work runs.
type InvalidInputError struct {
	Reason string
}

func (e *InvalidInputError) Error() string {
	return e.Reason
}

// IsClientError reports whether err should surface as a 400-class response
// rather than an internal failure.
func IsClientError(err error) bool {
	var notFound *NotFoundError
	var insufficient *InsufficientStockError
	var invalid *InvalidInputError
	return errors.As(err, &notFound) ||
		errors.As(err, &insufficient) ||
		errors.As(err, &invalid) ||
		errors.Is(err, ErrAlreadyCancelled)
}
