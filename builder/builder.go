// Package builder turns a grocery shopping list into a remote cart. The
// CartBuilder interface has two implementations: AgentCartBuilder drives a
// reasoning model through repeated tool-call rounds, ScriptedCartBuilder is
// the deterministic stand-in used when no reasoning-model session is
// configured or affordable. Callers pick the implementation; the order
// lifecycle treats both identically.
package builder

import (
	"context"
	"fmt"

	"github.com/hupe1980/cartpilot/core"
)

// Request is the input to one cart-building run. The item list is read-only;
// the builder never mutates it.
type Request struct {
	Items      []core.GroceryItem `json:"items"`
	Allergens  []string           `json:"allergens,omitempty"`
	FamilySize int                `json:"familySize"`
}

// Validate rejects unusable input before any remote call is made.
func (r Request) Validate() error {
	if len(r.Items) == 0 {
		return &core.ValidationError{
			Reason:  core.ReasonEmptyGroceryList,
			Message: "grocery items are required",
		}
	}
	return nil
}

// Result aggregates the outcome of one cart-building run. Partial success
// (some items added, some not) is reported as success-with-caveats: the
// caller can still act on a partial cart.
type Result struct {
	Success        bool               `json:"success"`
	CartID         string             `json:"cartId,omitempty"`
	ItemsAdded     int                `json:"itemsAdded"`
	ItemsNotFound  []string           `json:"itemsNotFound"`
	EstimatedTotal float64            `json:"estimatedTotal,omitempty"`
	Cart           *core.CartSnapshot `json:"cart,omitempty"`
	Message        string             `json:"message"`
}

// CartBuilder builds a cart from a grocery list. Build blocks until the run
// terminates; it returns an error only for failures that preclude any useful
// partial result (invalid input, expired session, model API failure).
type CartBuilder interface {
	Build(ctx context.Context, req Request) (*Result, error)
}

// ProtocolError reports that the reasoning model returned an unexpected stop
// condition. The loop terminates early and marks the run incomplete rather
// than failing it.
type ProtocolError struct {
	StopReason string
}

// Error implements the error interface.
func (e *ProtocolError) Error() string {
	return fmt.Sprintf("unexpected model stop reason: %s", e.StopReason)
}
