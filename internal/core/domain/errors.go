package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput      = fmt.Errorf("invalid input")
	ErrNoFundsAvailable  = fmt.Errorf("no funds available")
	ErrInsufficientFunds = fmt.Errorf("insufficient funds")
	ErrBackend           = fmt.Errorf("backend error")
	ErrSigning           = fmt.Errorf("signing error")
	ErrBroadcastRejected = fmt.Errorf("broadcast rejected")
	ErrCancelled         = fmt.Errorf("cancelled")

	ErrInvalidStatusTransition = fmt.Errorf("invalid transaction status transition")
	ErrUnbalancedTransaction   = fmt.Errorf("sum of inputs does not match sum of outputs plus fee")
)

// InvalidInputError wraps ErrInvalidInput with the reason of the failure.
func InvalidInputError(format string, a ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, a...))
}

// InsufficientFundsError is returned when the available utxos can't cover
// the target amount plus fees.
type InsufficientFundsError struct {
	Needed    uint64
	Available uint64
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf(
		"%s: needed %d, available %d, shortfall %d",
		ErrInsufficientFunds, e.Needed, e.Available, e.Shortfall(),
	)
}

// Shortfall is the missing amount to fund the transaction.
func (e *InsufficientFundsError) Shortfall() uint64 {
	if e.Available >= e.Needed {
		return 0
	}
	return e.Needed - e.Available
}

func (e *InsufficientFundsError) Is(target error) bool {
	return target == ErrInsufficientFunds
}

// BackendError is a transport, status or parse failure of a chain data
// provider. Err carries the backend's raw message.
type BackendError struct {
	Op  string
	Err error
}

func NewBackendError(op string, err error) *BackendError {
	return &BackendError{op, err}
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("%s: %s: %s", ErrBackend, e.Op, e.Err)
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

func (e *BackendError) Is(target error) bool {
	return target == ErrBackend
}

// BroadcastRejectedError is returned when the backend refused the content
// of a transaction, for example because of a double spend or a too low fee.
type BroadcastRejectedError struct {
	Message string
}

func (e *BroadcastRejectedError) Error() string {
	return fmt.Sprintf("%s: %s", ErrBroadcastRejected, e.Message)
}

func (e *BroadcastRejectedError) Is(target error) bool {
	return target == ErrBroadcastRejected
}

// SigningError wraps any failure occurred while signing a transaction.
type SigningError struct {
	Err error
}

func (e *SigningError) Error() string {
	return fmt.Sprintf("%s: %s", ErrSigning, e.Err)
}

func (e *SigningError) Unwrap() error {
	return e.Err
}

func (e *SigningError) Is(target error) bool {
	return target == ErrSigning
}

// FailureReasonFromError maps an error to the failure reason of the
// taxonomy it belongs to.
func FailureReasonFromError(err error) FailureReason {
	switch {
	case errors.Is(err, ErrInvalidInput):
		return FailureInvalidInput
	case errors.Is(err, ErrNoFundsAvailable):
		return FailureNoFundsAvailable
	case errors.Is(err, ErrInsufficientFunds):
		return FailureInsufficientFunds
	case errors.Is(err, ErrSigning):
		return FailureSigningError
	case errors.Is(err, ErrBroadcastRejected):
		return FailureBroadcastRejected
	case errors.Is(err, ErrCancelled):
		return FailureCancelled
	case errors.Is(err, ErrBackend):
		return FailureBackendError
	default:
		return FailureInternalError
	}
}
