package tool

import (
	"github.com/hupe1980/cartpilot/core"
	"github.com/hupe1980/cartpilot/instamart"
)

// Names of the cart operations exposed to reasoning models. The completion
// tool is the sole authoritative termination signal of a cart-building run.
const (
	SearchProductsToolName = "search_products"
	AddToCartToolName      = "add_to_cart"
	RemoveFromCartToolName = "remove_from_cart"
	GetCartToolName        = "get_cart"
	ClearCartToolName      = "clear_cart"
	PlaceOrderToolName     = "place_order"
	OrderCompleteToolName  = "order_complete"
)

// CartBuildingTools returns the tool registry an agent uses to build a cart:
// the five cart-mutation operations plus the order_complete signal. Order
// placement is deliberately excluded; checkout is a separate user-confirmed
// step.
func CartBuildingTools(api instamart.API) map[string]Tool {
	tools := []Tool{
		NewSearchProductsTool(api),
		NewAddToCartTool(api),
		NewRemoveFromCartTool(api),
		NewGetCartTool(api),
		NewClearCartTool(api),
		NewOrderCompleteTool(api),
	}

	registry := make(map[string]Tool, len(tools))
	for _, t := range tools {
		registry[t.Name()] = t
	}
	return registry
}

// NewSearchProductsTool exposes catalog search. Failures propagate as
// ToolError; the loop feeds them back to the model instead of retrying
// silently.
func NewSearchProductsTool(api instamart.API) *FunctionTool {
	return NewFunctionTool(
		SearchProductsToolName,
		"Search for grocery products on Instamart. Returns a list of matching products with prices and availability.",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": "Product search query (e.g., \"onion\", \"toor dal\", \"milk\")",
				},
				"limit": map[string]any{
					"type":        "integer",
					"description": "Maximum number of results to return (default: 5)",
				},
			},
			"required": []string{"query"},
		},
		func(toolCtx *core.ToolContext, args map[string]any) (any, error) {
			query, _ := args["query"].(string)
			limit := intArg(args, "limit", 5)

			products, err := api.SearchProducts(toolCtx.Context(), query, limit)
			if err != nil {
				return nil, err
			}
			return map[string]any{"products": products}, nil
		},
	)
}

// NewAddToCartTool adds a product to the remote cart. Adding is additive and
// therefore not safe to retry blindly; stock and validation failures carry
// the product reference so the model can adapt.
func NewAddToCartTool(api instamart.API) *FunctionTool {
	return NewFunctionTool(
		AddToCartToolName,
		"Add a product to the Instamart cart",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"productId": map[string]any{
					"type":        "string",
					"description": "The product ID from search results",
				},
				"quantity": map[string]any{
					"type":        "integer",
					"description": "Quantity to add (default: 1)",
				},
				"itemName": map[string]any{
					"type":        "string",
					"description": "The grocery list item this product fulfills, used to report skipped items",
				},
			},
			"required": []string{"productId"},
		},
		func(toolCtx *core.ToolContext, args map[string]any) (any, error) {
			productID, _ := args["productId"].(string)
			quantity := intArg(args, "quantity", 1)

			cart, err := api.AddToCart(toolCtx.Context(), productID, quantity)
			if err != nil {
				return nil, &ToolError{
					Tool:    AddToCartToolName,
					Message: "could not add product " + productID + ": " + err.Error(),
					Code:    "ADD_FAILED",
				}
			}
			return map[string]any{"cart": cart}, nil
		},
	)
}

// NewRemoveFromCartTool removes a cart line. Not-found is non-fatal.
func NewRemoveFromCartTool(api instamart.API) *FunctionTool {
	return NewFunctionTool(
		RemoveFromCartToolName,
		"Remove an item from the cart",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"productId": map[string]any{
					"type":        "string",
					"description": "The product ID to remove",
				},
			},
			"required": []string{"productId"},
		},
		func(toolCtx *core.ToolContext, args map[string]any) (any, error) {
			productID, _ := args["productId"].(string)

			cart, err := api.RemoveFromCart(toolCtx.Context(), productID)
			if err != nil {
				return nil, err
			}
			return map[string]any{"cart": cart}, nil
		},
	)
}

// NewGetCartTool fetches the current cart snapshot. Reads are idempotent.
func NewGetCartTool(api instamart.API) *FunctionTool {
	return NewFunctionTool(
		GetCartToolName,
		"Get the current Instamart cart contents",
		map[string]any{
			"type":       "object",
			"properties": map[string]any{},
		},
		func(toolCtx *core.ToolContext, _ map[string]any) (any, error) {
			cart, err := api.GetCart(toolCtx.Context())
			if err != nil {
				return nil, err
			}
			return map[string]any{"cart": cart}, nil
		},
	)
}

// NewClearCartTool empties the cart.
func NewClearCartTool(api instamart.API) *FunctionTool {
	return NewFunctionTool(
		ClearCartToolName,
		"Clear all items from the cart",
		map[string]any{
			"type":       "object",
			"properties": map[string]any{},
		},
		func(toolCtx *core.ToolContext, _ map[string]any) (any, error) {
			if err := api.ClearCart(toolCtx.Context()); err != nil {
				return nil, err
			}
			return map[string]any{"success": true, "message": "Cart cleared"}, nil
		},
	)
}

// NewPlaceOrderTool converts the active cart into a placed order. Payment
// methods other than cash on delivery are rejected before any remote call.
func NewPlaceOrderTool(api instamart.API) *FunctionTool {
	return NewFunctionTool(
		PlaceOrderToolName,
		"Place the order for the current cart with a delivery address. Only cash on delivery (COD) is supported.",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"addressId": map[string]any{
					"type":        "string",
					"description": "The delivery address ID",
				},
				"paymentMethod": map[string]any{
					"type":        "string",
					"description": "Payment method, must be \"COD\"",
				},
			},
			"required": []string{"addressId"},
		},
		func(toolCtx *core.ToolContext, args map[string]any) (any, error) {
			addressID, _ := args["addressId"].(string)
			paymentMethod, _ := args["paymentMethod"].(string)
			if paymentMethod == "" {
				paymentMethod = core.PaymentMethodCOD
			}
			if paymentMethod != core.PaymentMethodCOD {
				return nil, &ToolError{
					Tool:    PlaceOrderToolName,
					Message: "only cash on delivery (COD) is supported",
					Code:    "VALIDATION_ERROR",
				}
			}

			placed, err := api.PlaceOrder(toolCtx.Context(), api.CartID(), addressID, core.PaymentMethodCOD)
			if err != nil {
				return nil, err
			}
			return map[string]any{"order": placed}, nil
		},
	)
}

// NewOrderCompleteTool is the distinguished completion signal. Besides the
// free-text summary the schema accepts a structured items_not_found array,
// which takes precedence over prose extraction when present.
func NewOrderCompleteTool(api instamart.API) *FunctionTool {
	return NewFunctionTool(
		OrderCompleteToolName,
		"Call this when you have finished adding all items to the cart. This signals that the cart is ready for checkout.",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"summary": map[string]any{
					"type":        "string",
					"description": "A brief summary of items added and any items that could not be found",
				},
				"items_not_found": map[string]any{
					"type":        "array",
					"items":       map[string]any{"type": "string"},
					"description": "Names of list items that could not be found, if any",
				},
			},
			"required": []string{"summary"},
		},
		func(_ *core.ToolContext, args map[string]any) (any, error) {
			return map[string]any{
				"success": true,
				"message": "Order processing complete",
				"summary": args["summary"],
				"cartId":  api.CartID(),
			}, nil
		},
	)
}

// intArg reads an integer argument that may arrive as a JSON float64.
func intArg(args map[string]any, key string, fallback int) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return fallback
	}
}
