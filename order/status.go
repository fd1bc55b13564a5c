// Package order tracks a grocery order's durable lifecycle: from submission
// through cart building to checkout or failure.
package order

// Status is the lifecycle stage of an order record.
type Status string

const (
	// StatusPending marks a created record with no cart work started.
	StatusPending Status = "PENDING"
	// StatusProcessing marks a record whose cart is being built.
	StatusProcessing Status = "PROCESSING"
	// StatusCartReady marks a built cart awaiting the checkout decision.
	StatusCartReady Status = "CART_READY"
	// StatusConfirmed marks a placed order. Terminal.
	StatusConfirmed Status = "CONFIRMED"
	// StatusFailed marks an unrecoverable build or checkout error. Terminal.
	StatusFailed Status = "FAILED"
	// StatusCancelled marks a user-cancelled record. Terminal.
	StatusCancelled Status = "CANCELLED"
)

// Terminal reports whether no further transitions are possible from s.
// A retry never mutates a terminal record; it creates a new one.
func (s Status) Terminal() bool {
	switch s {
	case StatusConfirmed, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// transitions holds the permitted forward edges of the lifecycle. Cancel is
// handled separately: it is reachable from every non-terminal state.
var transitions = map[Status][]Status{
	StatusPending:    {StatusProcessing},
	StatusProcessing: {StatusCartReady, StatusFailed},
	StatusCartReady:  {StatusConfirmed, StatusFailed},
}

// CanTransition reports whether moving from s to next is a legal forward
// step. The lifecycle is monotonic: a status never moves backward.
func (s Status) CanTransition(next Status) bool {
	if s.Terminal() {
		return false
	}
	if next == StatusCancelled {
		return true
	}
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}
