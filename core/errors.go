package core

import "fmt"

// Machine-checkable reason codes attached to validation and session errors.
// Handlers return them alongside the human-readable message so clients can
// branch without parsing prose.
const (
	ReasonEmptyGroceryList     = "emptyGroceryList"
	ReasonUnsupportedPayment   = "unsupportedPayment"
	ReasonNeedsAddress         = "needsAddress"
	ReasonNeedsSwiggyAuth      = "needsSwiggyAuth"
	ReasonInvalidPhone         = "invalidPhone"
	ReasonInvalidOTP           = "invalidOtp"
	ReasonOrderNotFound        = "orderNotFound"
	ReasonOrderNotReady        = "orderNotReady"
)

// ValidationError reports caller-supplied input rejected before any remote
// call was made.
type ValidationError struct {
	Reason  string // machine-checkable reason code
	Message string // human-readable description
}

// Error implements the error interface.
func (e *ValidationError) Error() string { return e.Message }

// NewValidationError builds a ValidationError with a formatted message.
func NewValidationError(reason, format string, args ...any) *ValidationError {
	return &ValidationError{Reason: reason, Message: fmt.Sprintf(format, args...)}
}

// SessionError reports an expired or missing remote session. It is fatal for
// the current attempt and must surface to the caller as "needs
// re-authentication"; it is never retried with stale credentials.
type SessionError struct {
	Message string
}

// Error implements the error interface.
func (e *SessionError) Error() string { return e.Message }

// Reason returns the machine-checkable reason code for session errors.
func (e *SessionError) Reason() string { return ReasonNeedsSwiggyAuth }

// TerminalRecordError reports an attempt to mutate an order record that has
// already reached a terminal status. This is a caller bug, not a recoverable
// runtime condition.
type TerminalRecordError struct {
	OrderID string
	Status  string
}

// Error implements the error interface.
func (e *TerminalRecordError) Error() string {
	return fmt.Sprintf("order %s is terminal in status %s and cannot be mutated", e.OrderID, e.Status)
}
