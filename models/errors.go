package models

import "errors"

var (
	ErrOrderNotFound    = errors.New("order not found")
	ErrOrderMismatch    = errors.New("provider order id does not match order")
	ErrInvalidSignature = errors.New("invalid payment signature")
	ErrPaymentFailed    = errors.New("payment already failed")
	ErrStatusConflict   = errors.New("payment status changed concurrently")
	ErrNotConfigured    = errors.New("payment provider not configured")
)

// ValidationError is a rejected client payload. Message is safe to show.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func NewValidationError(msg string) *ValidationError {
	return &ValidationError{Message: msg}
}

// ProviderError is a failure reported by (or while talking to) the payment provider.
type ProviderError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *ProviderError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}
