// Package chatflow implements the scripted ordering conversation: a
// deterministic state machine that walks a user from connection check
// through login, address selection and cart review to a shopping handoff,
// without involving a reasoning model.
package chatflow

// State identifies one step of the ordering conversation.
type State string

const (
	StateCheckingConnection State = "CHECKING_CONNECTION"
	StateSwiggyLogin        State = "SWIGGY_LOGIN"
	StateSwiggyOTP          State = "SWIGGY_OTP"
	StateWelcome            State = "WELCOME"
	StateCartReview         State = "CART_REVIEW"
	StateEditCart           State = "EDIT_CART"
	StateProcessing         State = "PROCESSING"
	StateHandoff            State = "HANDOFF"
	StateComplete           State = "COMPLETE"
	StateCancelled          State = "CANCELLED"
	StateError              State = "ERROR"
)

// Terminal reports whether no further transitions are possible from s.
func (s State) Terminal() bool {
	switch s {
	case StateComplete, StateCancelled, StateError:
		return true
	default:
		return false
	}
}
