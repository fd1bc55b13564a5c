package builder

import (
	"context"
	"fmt"

	"github.com/hupe1980/cartpilot/core"
	"github.com/hupe1980/cartpilot/instamart"
	"github.com/hupe1980/cartpilot/logging"
)

// ScriptedOptions configures a ScriptedCartBuilder instance.
type ScriptedOptions struct {
	// Logger receives structured progress events.
	Logger logging.Logger
}

// ScriptedCartBuilder builds a cart without a reasoning model: every item
// on the list is treated as added and the estimated total is derived from
// the category price table. It backs demo environments and tests where
// model traffic is unwanted, and satisfies the same contract as the agent
// so callers never branch on the strategy in use.
type ScriptedCartBuilder struct {
	api    instamart.API
	logger logging.Logger
}

var _ CartBuilder = (*ScriptedCartBuilder)(nil)

// NewScriptedCartBuilder constructs a deterministic builder around the
// given cart API.
func NewScriptedCartBuilder(api instamart.API, optFns ...func(o *ScriptedOptions)) *ScriptedCartBuilder {
	opts := ScriptedOptions{
		Logger: logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &ScriptedCartBuilder{
		api:    api,
		logger: opts.Logger,
	}
}

// Build implements CartBuilder. No remote search is performed; the result
// mirrors a fully successful agent run over the same list.
func (b *ScriptedCartBuilder) Build(ctx context.Context, req Request) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	total := core.EstimateTotal(req.Items)

	items := make([]core.CartItem, 0, len(req.Items))
	for i, item := range req.Items {
		price := core.CategoryPrice(item.Category)
		items = append(items, core.CartItem{
			ProductID: fmt.Sprintf("scripted-%d", i+1),
			Name:      item.Name,
			Quantity:  1,
			Price:     price,
			Total:     price,
		})
	}

	cart := &core.CartSnapshot{
		Items:     items,
		Subtotal:  total,
		Total:     total,
		ItemCount: len(items),
	}

	b.logger.Info("builder.scripted.done", "items_added", len(items), "estimated_total", total)

	return &Result{
		Success:        true,
		CartID:         b.api.CartID(),
		ItemsAdded:     len(items),
		ItemsNotFound:  nil,
		EstimatedTotal: total,
		Cart:           cart,
		Message:        fmt.Sprintf("Added %d items to the cart.", len(items)),
	}, nil
}
