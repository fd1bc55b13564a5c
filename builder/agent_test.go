package builder

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/cartpilot/core"
	"github.com/hupe1980/cartpilot/model"
	"github.com/hupe1980/cartpilot/tool"
)

// stubAPI is an in-memory instamart.API for loop tests.
type stubAPI struct {
	cartID     string
	cart       core.CartSnapshot
	addErr     error
	addCalls   int
	clearCalls int
}

func (s *stubAPI) SearchProducts(_ context.Context, query string, _ int) ([]core.Product, error) {
	return []core.Product{{ID: "p-1", Name: query, Price: 50, InStock: true}}, nil
}

func (s *stubAPI) AddToCart(_ context.Context, productID string, quantity int) (*core.CartSnapshot, error) {
	s.addCalls++
	if s.addErr != nil {
		return nil, s.addErr
	}
	s.cart.Items = append(s.cart.Items, core.CartItem{
		ProductID: productID,
		Quantity:  quantity,
		Price:     50,
		Total:     50 * float64(quantity),
	})
	s.cart.Total += 50 * float64(quantity)
	s.cart.ItemCount = len(s.cart.Items)
	return &s.cart, nil
}

func (s *stubAPI) RemoveFromCart(_ context.Context, _ string) (*core.CartSnapshot, error) {
	return &s.cart, nil
}

func (s *stubAPI) GetCart(_ context.Context) (*core.CartSnapshot, error) {
	return &s.cart, nil
}

func (s *stubAPI) ClearCart(_ context.Context) error {
	s.clearCalls++
	s.cart = core.CartSnapshot{}
	return nil
}

func (s *stubAPI) PlaceOrder(_ context.Context, _, _, _ string) (*core.PlacedOrder, error) {
	return &core.PlacedOrder{ExternalOrderID: "ext-1", Status: "confirmed"}, nil
}

func (s *stubAPI) CartID() string { return s.cartID }

func toolCall(id, name string, args map[string]any) model.ToolCall {
	raw, _ := json.Marshal(args)
	return model.ToolCall{ID: id, Name: name, Arguments: raw}
}

func groceryRequest() Request {
	return Request{
		Items: []core.GroceryItem{
			{Name: "Milk", Quantity: "1", Unit: "l", Category: core.CategoryDairy},
			{Name: "Rice", Quantity: "2", Unit: "kg", Category: core.CategoryGrains},
		},
	}
}

func TestAgentCartBuilderCompletesOnOrderComplete(t *testing.T) {
	api := &stubAPI{cartID: "cart-42"}
	llm := model.NewMockModel("mock", "test")

	llm.QueueResponse(model.Response{
		StopReason: model.StopReasonToolUse,
		ToolCalls: []model.ToolCall{
			toolCall("c1", tool.SearchProductsToolName, map[string]any{"query": "milk"}),
			toolCall("c2", tool.AddToCartToolName, map[string]any{"productId": "p-1", "quantity": 1, "itemName": "Milk"}),
		},
	})
	llm.QueueResponse(model.Response{
		StopReason: model.StopReasonToolUse,
		ToolCalls: []model.ToolCall{
			toolCall("c3", tool.OrderCompleteToolName, map[string]any{"summary": "Added 1 item to the cart."}),
		},
	})

	b := NewAgentCartBuilder(llm, api)

	result, err := b.Build(context.Background(), groceryRequest())
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, "cart-42", result.CartID)
	assert.Equal(t, 1, result.ItemsAdded)
	assert.Empty(t, result.ItemsNotFound)
	require.NotNil(t, result.Cart)
	assert.Equal(t, float64(50), result.EstimatedTotal)
	assert.Len(t, llm.Requests(), 2)
}

func TestAgentCartBuilderFeedsToolResultsBack(t *testing.T) {
	api := &stubAPI{}
	llm := model.NewMockModel("mock", "test")

	llm.QueueResponse(model.Response{
		StopReason: model.StopReasonToolUse,
		ToolCalls: []model.ToolCall{
			toolCall("c1", tool.SearchProductsToolName, map[string]any{"query": "milk"}),
		},
	})
	llm.QueueResponse(model.Response{
		StopReason: model.StopReasonToolUse,
		ToolCalls: []model.ToolCall{
			toolCall("c2", tool.OrderCompleteToolName, map[string]any{"summary": "Done."}),
		},
	})

	b := NewAgentCartBuilder(llm, api)

	_, err := b.Build(context.Background(), groceryRequest())
	require.NoError(t, err)

	reqs := llm.Requests()
	require.Len(t, reqs, 2)

	// Second request carries the conversation so far: user list, assistant
	// tool calls, user tool results.
	second := reqs[1]
	require.Len(t, second.Messages, 3)
	assert.Equal(t, "assistant", second.Messages[1].Role)
	require.Len(t, second.Messages[2].ToolResults, 1)
	assert.Equal(t, "c1", second.Messages[2].ToolResults[0].ToolCallID)
	assert.False(t, second.Messages[2].ToolResults[0].IsError)
}

func TestAgentCartBuilderEndTurnWithoutTools(t *testing.T) {
	api := &stubAPI{}
	llm := model.NewMockModel("mock", "test")
	llm.QueueResponse(model.Response{StopReason: model.StopReasonEndTurn, Text: "Nothing to do."})

	b := NewAgentCartBuilder(llm, api)

	result, err := b.Build(context.Background(), groceryRequest())
	require.NoError(t, err)

	// Completed, but nothing went into the cart.
	assert.False(t, result.Success)
	assert.Zero(t, result.ItemsAdded)
	assert.NotNil(t, result.Cart)
	assert.Len(t, llm.Requests(), 1)
}

func TestAgentCartBuilderStopsAtRoundCap(t *testing.T) {
	api := &stubAPI{}
	llm := model.NewMockModel("mock", "test")

	// The model never calls order_complete; the mock replays its last turn
	// once the queue runs out.
	llm.QueueResponse(model.Response{
		StopReason: model.StopReasonToolUse,
		ToolCalls: []model.ToolCall{
			toolCall("c1", tool.SearchProductsToolName, map[string]any{"query": "milk"}),
		},
	})

	b := NewAgentCartBuilder(llm, api, func(o *AgentOptions) {
		o.MaxRounds = 5
	})

	result, err := b.Build(context.Background(), groceryRequest())
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.Contains(t, result.Message, "incomplete")
	assert.Len(t, llm.Requests(), 5)
}

func TestAgentCartBuilderDefaultRoundCap(t *testing.T) {
	api := &stubAPI{}
	llm := model.NewMockModel("mock", "test")
	llm.QueueResponse(model.Response{
		StopReason: model.StopReasonToolUse,
		ToolCalls: []model.ToolCall{
			toolCall("c1", tool.GetCartToolName, map[string]any{}),
		},
	})

	b := NewAgentCartBuilder(llm, api)

	result, err := b.Build(context.Background(), groceryRequest())
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.Len(t, llm.Requests(), DefaultMaxRounds)
}

func TestAgentCartBuilderFailedAddIsReported(t *testing.T) {
	api := &stubAPI{addErr: errors.New("out of stock")}
	llm := model.NewMockModel("mock", "test")

	llm.QueueResponse(model.Response{
		StopReason: model.StopReasonToolUse,
		ToolCalls: []model.ToolCall{
			toolCall("c1", tool.AddToCartToolName, map[string]any{"productId": "p-9", "quantity": 1, "itemName": "Paneer"}),
		},
	})
	llm.QueueResponse(model.Response{
		StopReason: model.StopReasonToolUse,
		ToolCalls: []model.ToolCall{
			toolCall("c2", tool.OrderCompleteToolName, map[string]any{"summary": "Added 0 items."}),
		},
	})

	b := NewAgentCartBuilder(llm, api)

	result, err := b.Build(context.Background(), groceryRequest())
	require.NoError(t, err)

	// The failed add surfaces in the result even though the model's summary
	// never mentioned it.
	assert.Contains(t, result.ItemsNotFound, "Paneer")
	assert.Zero(t, result.ItemsAdded)
	assert.False(t, result.Success)

	// The failure was also fed back to the model as an error result.
	second := llm.Requests()[1]
	require.Len(t, second.Messages[2].ToolResults, 1)
	assert.True(t, second.Messages[2].ToolResults[0].IsError)
}

func TestAgentCartBuilderStructuredNotFoundWins(t *testing.T) {
	api := &stubAPI{}
	llm := model.NewMockModel("mock", "test")

	llm.QueueResponse(model.Response{
		StopReason: model.StopReasonToolUse,
		ToolCalls: []model.ToolCall{
			toolCall("c1", tool.AddToCartToolName, map[string]any{"productId": "p-1", "quantity": 1}),
		},
	})
	llm.QueueResponse(model.Response{
		StopReason: model.StopReasonToolUse,
		ToolCalls: []model.ToolCall{
			toolCall("c2", tool.OrderCompleteToolName, map[string]any{
				"summary":         "Added 1 item. Not found: stale prose entry.",
				"items_not_found": []string{"Saffron", "Quinoa"},
			}),
		},
	})

	b := NewAgentCartBuilder(llm, api)

	result, err := b.Build(context.Background(), groceryRequest())
	require.NoError(t, err)

	assert.Equal(t, []string{"Saffron", "Quinoa"}, result.ItemsNotFound)
}

func TestAgentCartBuilderSummaryFallbackParse(t *testing.T) {
	api := &stubAPI{}
	llm := model.NewMockModel("mock", "test")

	llm.QueueResponse(model.Response{
		StopReason: model.StopReasonToolUse,
		ToolCalls: []model.ToolCall{
			toolCall("c1", tool.AddToCartToolName, map[string]any{"productId": "p-1", "quantity": 1}),
		},
	})
	llm.QueueResponse(model.Response{
		StopReason: model.StopReasonToolUse,
		ToolCalls: []model.ToolCall{
			toolCall("c2", tool.OrderCompleteToolName, map[string]any{
				"summary": "Added 1 item. Not found: saffron, quinoa and star anise.",
			}),
		},
	})

	b := NewAgentCartBuilder(llm, api)

	result, err := b.Build(context.Background(), groceryRequest())
	require.NoError(t, err)

	assert.Equal(t, []string{"saffron", "quinoa", "star anise"}, result.ItemsNotFound)
}

func TestAgentCartBuilderModelErrorAborts(t *testing.T) {
	api := &stubAPI{}
	llm := model.NewMockModel("mock", "test")
	llm.QueueError(errors.New("rate limited"))

	b := NewAgentCartBuilder(llm, api)

	_, err := b.Build(context.Background(), groceryRequest())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limited")
}

func TestAgentCartBuilderUnexpectedStopReason(t *testing.T) {
	api := &stubAPI{}
	llm := model.NewMockModel("mock", "test")
	llm.QueueResponse(model.Response{StopReason: model.StopReason("max_tokens")})

	b := NewAgentCartBuilder(llm, api)

	result, err := b.Build(context.Background(), groceryRequest())
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.Contains(t, result.Message, "max_tokens")
}

func TestAgentCartBuilderUnknownToolIsErrorResult(t *testing.T) {
	api := &stubAPI{}
	llm := model.NewMockModel("mock", "test")

	llm.QueueResponse(model.Response{
		StopReason: model.StopReasonToolUse,
		ToolCalls: []model.ToolCall{
			toolCall("c1", "place_order", map[string]any{"addressId": "a-1", "paymentMethod": "COD"}),
		},
	})
	llm.QueueResponse(model.Response{StopReason: model.StopReasonEndTurn})

	b := NewAgentCartBuilder(llm, api)

	result, err := b.Build(context.Background(), groceryRequest())
	require.NoError(t, err)

	// Checkout is not part of cart building; the call fails but the run
	// continues.
	second := llm.Requests()[1]
	require.Len(t, second.Messages[2].ToolResults, 1)
	assert.True(t, second.Messages[2].ToolResults[0].IsError)
	assert.False(t, result.Success)
}

func TestAgentCartBuilderRejectsEmptyList(t *testing.T) {
	api := &stubAPI{}
	llm := model.NewMockModel("mock", "test")

	b := NewAgentCartBuilder(llm, api)

	_, err := b.Build(context.Background(), Request{})
	require.Error(t, err)

	var vErr *core.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, core.ReasonEmptyGroceryList, vErr.Reason)
	assert.Empty(t, llm.Requests())
}

func TestAgentCartBuilderToolDefinitionsAreSorted(t *testing.T) {
	b := NewAgentCartBuilder(model.NewMockModel("mock", "test"), &stubAPI{})

	defs := b.toolDefinitions()
	require.NotEmpty(t, defs)
	for i := 1; i < len(defs); i++ {
		assert.Less(t, defs[i-1].Name, defs[i].Name)
	}
}
