package reconciliation

import "errors"

// Validation failures never reach the network; the store is only called
// once the request is locally consistent with the current snapshot.
var (
	ErrContractNotFound         = errors.New("Contract not found")
	ErrPaymentNotFound          = errors.New("Payment not found")
	ErrAmountNotPositive        = errors.New("Payment amount must be greater than zero")
	ErrAmountExceedsOutstanding = errors.New("amount exceeds outstanding balance")
	ErrInvalidMethod            = errors.New("Invalid payment method")
	ErrReasonRequired           = errors.New("Cancellation reason is required")
	ErrAlreadyCancelled         = errors.New("Payment is already cancelled")
	ErrPlaceholderRow           = errors.New("Cannot cancel a synthetic placeholder row")
)

// IsValidation reports whether err is a request-shape problem (HTTP 400).
func IsValidation(err error) bool {
	return errors.Is(err, ErrAmountNotPositive) ||
		errors.Is(err, ErrAmountExceedsOutstanding) ||
		errors.Is(err, ErrInvalidMethod) ||
		errors.Is(err, ErrReasonRequired)
}

// IsInvalidState reports whether err is an operation on a terminal or
// non-persistable event (HTTP 409).
func IsInvalidState(err error) bool {
	return errors.Is(err, ErrAlreadyCancelled) || errors.Is(err, ErrPlaceholderRow)
}

// IsNotFound reports whether err means the target is absent (HTTP 404).
func IsNotFound(err error) bool {
	return errors.Is(err, ErrContractNotFound) || errors.Is(err, ErrPaymentNotFound)
}
