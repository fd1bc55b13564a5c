package chatflow

import (
	"github.com/hupe1980/cartpilot/builder"
	"github.com/hupe1980/cartpilot/core"
)

// handoffBatchLimit is the largest list that stays a single shopping
// prompt. Longer lists split into one prompt per category so each stays
// short enough to paste into the Swiggy app search flow.
const handoffBatchLimit = 10

// HandoffPrompts renders the shopping instructions the user carries into
// the Swiggy app.
func HandoffPrompts(req builder.Request) []string {
	if len(req.Items) <= handoffBatchLimit {
		return []string{builder.ShoppingPrompt(req)}
	}

	grouped := core.GroupByCategory(req.Items)

	var prompts []string
	for _, category := range core.Categories {
		items, ok := grouped[category]
		if !ok {
			continue
		}
		batch := req
		batch.Items = items
		prompts = append(prompts, builder.ShoppingPrompt(batch))
	}
	return prompts
}
