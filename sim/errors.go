package sim

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes hub errors.
type ErrorCode string

const (
	// ErrCodeInvalidArgument marks a malformed identifier, destination, priority,
	// size, terminal list or configuration value.
	ErrCodeInvalidArgument ErrorCode = "INVALID_ARGUMENT"

	// ErrCodeDuplicateKey marks re-insertion of an existing parcel identifier.
	ErrCodeDuplicateKey ErrorCode = "DUPLICATE_KEY"

	// ErrCodeNotFound marks a lookup or update on an unknown parcel identifier.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"

	// ErrCodeCapacityExceeded marks a parcel dropped because the arrival buffer is full.
	ErrCodeCapacityExceeded ErrorCode = "CAPACITY_EXCEEDED"

	// ErrCodeRetryLimitExceeded marks a parcel permanently dropped by the RetryStack.
	ErrCodeRetryLimitExceeded ErrorCode = "RETRY_LIMIT_EXCEEDED"
)

// Sentinels matched by errors.Is against any *HubError of the same code.
var (
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrDuplicateKey       = errors.New("duplicate key")
	ErrNotFound           = errors.New("not found")
	ErrCapacityExceeded   = errors.New("capacity exceeded")
	ErrRetryLimitExceeded = errors.New("retry limit exceeded")
)

var sentinels = map[ErrorCode]error{
	ErrCodeInvalidArgument:    ErrInvalidArgument,
	ErrCodeDuplicateKey:       ErrDuplicateKey,
	ErrCodeNotFound:           ErrNotFound,
	ErrCodeCapacityExceeded:   ErrCapacityExceeded,
	ErrCodeRetryLimitExceeded: ErrRetryLimitExceeded,
}

// HubError is returned by every core structure.
//
// InvalidArgument, DuplicateKey and NotFound are local to a single call and must be
// surfaced. CapacityExceeded and RetryLimitExceeded are steady-state outcomes the
// Simulator counts and logs without aborting the tick loop.
type HubError struct {
	Code     ErrorCode
	Message  string
	ParcelID string // empty when the error is not about a specific parcel
}

// Error implements the error interface.
func (e *HubError) Error() string {
	if e.ParcelID != "" {
		return fmt.Sprintf("%s: %s (parcel=%s)", e.Code, e.Message, e.ParcelID)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the sentinel for the error's code.
func (e *HubError) Unwrap() error {
	return sentinels[e.Code]
}

// NewInvalidArgument creates an INVALID_ARGUMENT error.
func NewInvalidArgument(msg string) *HubError {
	return &HubError{Code: ErrCodeInvalidArgument, Message: msg}
}

// NewDuplicateKey creates a DUPLICATE_KEY error for parcel id.
func NewDuplicateKey(id string) *HubError {
	return &HubError{Code: ErrCodeDuplicateKey, Message: "parcel already tracked", ParcelID: id}
}

// NewNotFound creates a NOT_FOUND error for parcel id.
func NewNotFound(id string) *HubError {
	return &HubError{Code: ErrCodeNotFound, Message: "parcel not tracked", ParcelID: id}
}

// NewCapacityExceeded creates a CAPACITY_EXCEEDED error for a parcel that did not fit.
func NewCapacityExceeded(id string, capacity int) *HubError {
	return &HubError{
		Code:     ErrCodeCapacityExceeded,
		Message:  fmt.Sprintf("arrival queue full (capacity=%d)", capacity),
		ParcelID: id,
	}
}

// NewRetryLimitExceeded creates a RETRY_LIMIT_EXCEEDED error for a parcel that was dropped.
func NewRetryLimitExceeded(id string, returnCount, max int) *HubError {
	return &HubError{
		Code:     ErrCodeRetryLimitExceeded,
		Message:  fmt.Sprintf("return count %d exceeds maximum %d", returnCount, max),
		ParcelID: id,
	}
}

// CodeOf returns the ErrorCode of a (possibly wrapped) *HubError, or "" otherwise.
func CodeOf(err error) ErrorCode {
	var he *HubError
	if errors.As(err, &he) {
		return he.Code
	}
	return ""
}

// IsExpected reports whether err is a steady-state outcome (capacity overflow or
// retry-limit drop) rather than a programming or data error.
func IsExpected(err error) bool {
	switch CodeOf(err) {
	case ErrCodeCapacityExceeded, ErrCodeRetryLimitExceeded:
		return true
	default:
		return false
	}
}
