// Package instamart implements the client for the remote grocery catalog,
// cart and checkout service (Swiggy Instamart, reached over its JSON-RPC
// endpoint). The cart-bound Client carries a bearer access token plus a
// delivery address context header; pre-authentication operations (OTP,
// address listing, token refresh) live on Auth.
package instamart

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/hupe1980/cartpilot/core"
	"github.com/hupe1980/cartpilot/logging"
)

// DefaultEndpoint is the production Instamart JSON-RPC endpoint.
const DefaultEndpoint = "https://mcp.swiggy.com/im"

// API is the cart-mutation surface the ordering core depends on. The remote
// operations are idempotent-safe to retry except AddToCart, which is
// additive.
type API interface {
	SearchProducts(ctx context.Context, query string, limit int) ([]core.Product, error)
	AddToCart(ctx context.Context, productID string, quantity int) (*core.CartSnapshot, error)
	RemoveFromCart(ctx context.Context, productID string) (*core.CartSnapshot, error)
	GetCart(ctx context.Context) (*core.CartSnapshot, error)
	ClearCart(ctx context.Context) error
	PlaceOrder(ctx context.Context, cartID, addressID, paymentMethod string) (*core.PlacedOrder, error)
	CartID() string
}

// Options configure the Client.
type Options struct {
	Endpoint   string
	HTTPClient *http.Client
	Logger     logging.Logger
}

// Client talks to the Instamart service on behalf of one authenticated user
// session. It tracks the active cart id returned by the service and sends it
// back on subsequent calls.
type Client struct {
	endpoint    string
	httpClient  *http.Client
	logger      logging.Logger
	accessToken string
	addressID   string

	mu     sync.Mutex
	cartID string
}

var _ API = (*Client)(nil)

// NewClient creates a session-bound client. The access token authenticates
// every request; addressID selects the serviceable store context.
func NewClient(accessToken, addressID string, optFns ...func(o *Options)) *Client {
	opts := Options{
		Endpoint:   DefaultEndpoint,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
		Logger:     logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Client{
		endpoint:    opts.Endpoint,
		httpClient:  opts.HTTPClient,
		logger:      opts.Logger,
		accessToken: accessToken,
		addressID:   addressID,
	}
}

// rpcEnvelope is the JSON-RPC 2.0 request body.
type rpcEnvelope struct {
	JSONRPC string         `json:"jsonrpc"`
	ID      int64          `json:"id"`
	Method  string         `json:"method"`
	Params  map[string]any `json:"params"`
}

// rpcError is the JSON-RPC error object.
type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

// call performs one JSON-RPC request and decodes the result into out.
// Expired or rejected credentials surface as *core.SessionError so callers
// never silently retry with stale tokens.
func (c *Client) call(ctx context.Context, method string, params map[string]any, out any) error {
	if params == nil {
		params = map[string]any{}
	}

	body, err := json.Marshal(rpcEnvelope{
		JSONRPC: "2.0",
		ID:      time.Now().UnixMilli(),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	req.Header.Set("X-Address-Id", c.addressID)
	if cartID := c.CartID(); cartID != "" {
		req.Header.Set("X-Cart-Id", cartID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("instamart %s: %w", method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return &core.SessionError{Message: fmt.Sprintf("instamart session rejected (HTTP %d), re-authentication required", resp.StatusCode)}
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("instamart %s: read response: %w", method, err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("instamart %s: HTTP %d - %s", method, resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var envelope rpcResponse
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return fmt.Errorf("instamart %s: decode response: %w", method, err)
	}

	if envelope.Error != nil {
		if isSessionExpiry(envelope.Error) {
			return &core.SessionError{Message: envelope.Error.Message}
		}
		return fmt.Errorf("instamart %s: %s", method, envelope.Error.Message)
	}

	// Track the active cart id when the service returns one.
	var cartRef struct {
		CartID string `json:"cartId"`
	}
	if err := json.Unmarshal(envelope.Result, &cartRef); err == nil && cartRef.CartID != "" {
		c.setCartID(cartRef.CartID)
	}

	if out != nil {
		if err := json.Unmarshal(envelope.Result, out); err != nil {
			return fmt.Errorf("instamart %s: decode result: %w", method, err)
		}
	}

	return nil
}

// isSessionExpiry recognizes the service's token failure signals.
func isSessionExpiry(rpcErr *rpcError) bool {
	if rpcErr.Code == 401 || rpcErr.Code == -32001 {
		return true
	}
	msg := strings.ToLower(rpcErr.Message)
	return strings.Contains(msg, "token expired") ||
		strings.Contains(msg, "session expired") ||
		strings.Contains(msg, "unauthorized")
}

func (c *Client) setCartID(id string) {
	c.mu.Lock()
	c.cartID = id
	c.mu.Unlock()
}

// CartID returns the id of the active remote cart, or "" before the first
// cart mutation.
func (c *Client) CartID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cartID
}

// SearchProducts searches the catalog. limit caps the number of results
// (default 5 when <= 0).
func (c *Client) SearchProducts(ctx context.Context, query string, limit int) ([]core.Product, error) {
	if limit <= 0 {
		limit = 5
	}

	var result struct {
		Products []core.Product `json:"products"`
	}
	if err := c.call(ctx, "instamart/search", map[string]any{"query": query, "limit": limit}, &result); err != nil {
		return nil, err
	}
	return result.Products, nil
}

// AddToCart adds quantity units of a product and returns the updated cart.
func (c *Client) AddToCart(ctx context.Context, productID string, quantity int) (*core.CartSnapshot, error) {
	if quantity <= 0 {
		quantity = 1
	}

	var result struct {
		Cart core.CartSnapshot `json:"cart"`
	}
	if err := c.call(ctx, "instamart/cart/add", map[string]any{"productId": productID, "quantity": quantity}, &result); err != nil {
		return nil, err
	}
	if result.Cart.ID != "" {
		c.setCartID(result.Cart.ID)
	}
	return &result.Cart, nil
}

// RemoveFromCart removes a product line and returns the updated cart.
func (c *Client) RemoveFromCart(ctx context.Context, productID string) (*core.CartSnapshot, error) {
	var result struct {
		Cart core.CartSnapshot `json:"cart"`
	}
	if err := c.call(ctx, "instamart/cart/remove", map[string]any{"productId": productID}, &result); err != nil {
		return nil, err
	}
	return &result.Cart, nil
}

// GetCart fetches the current cart snapshot. Reads have no side effects on
// the remote cart.
func (c *Client) GetCart(ctx context.Context) (*core.CartSnapshot, error) {
	var result struct {
		Cart core.CartSnapshot `json:"cart"`
	}
	if err := c.call(ctx, "instamart/cart/get", nil, &result); err != nil {
		return nil, err
	}
	return &result.Cart, nil
}

// ClearCart removes every line from the cart and drops the tracked cart id.
func (c *Client) ClearCart(ctx context.Context) error {
	if err := c.call(ctx, "instamart/cart/clear", nil, nil); err != nil {
		return err
	}
	c.setCartID("")
	return nil
}

// PlaceOrder converts a cart into a placed order. An explicit cartID takes
// precedence over the tracked one, so a fresh client can place a cart built
// by an earlier session; an empty cartID falls back to the cart tracked
// since the last AddToCart.
func (c *Client) PlaceOrder(ctx context.Context, cartID, addressID, paymentMethod string) (*core.PlacedOrder, error) {
	if cartID == "" {
		cartID = c.CartID()
	}
	if cartID == "" {
		return nil, &core.ValidationError{
			Reason:  core.ReasonOrderNotReady,
			Message: "no cart to place order for, build a cart first",
		}
	}
	c.setCartID(cartID)

	var result struct {
		OrderID           string  `json:"orderId"`
		SwiggyOrderID     string  `json:"swiggyOrderId"`
		EstimatedDelivery string  `json:"estimatedDelivery"`
		OrderStatus       string  `json:"orderStatus"`
		DeliveryAddress   string  `json:"deliveryAddress"`
		TotalAmount       float64 `json:"totalAmount"`
	}
	params := map[string]any{
		"cartId":        cartID,
		"addressId":     addressID,
		"paymentMethod": paymentMethod,
	}
	if err := c.call(ctx, "instamart/order/place", params, &result); err != nil {
		return nil, err
	}

	c.logger.Info("instamart.order.placed", "order_id", result.SwiggyOrderID, "total", result.TotalAmount)

	return &core.PlacedOrder{
		ExternalOrderID:   result.SwiggyOrderID,
		EstimatedDelivery: result.EstimatedDelivery,
		Status:            result.OrderStatus,
		DeliveryAddress:   result.DeliveryAddress,
		TotalAmount:       result.TotalAmount,
	}, nil
}
