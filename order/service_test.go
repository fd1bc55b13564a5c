package order

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/cartpilot/builder"
	"github.com/hupe1980/cartpilot/core"
	"github.com/hupe1980/cartpilot/instamart"
)

// stubBuilder returns a canned build result.
type stubBuilder struct {
	result *builder.Result
	err    error
}

func (b *stubBuilder) Build(_ context.Context, req builder.Request) (*builder.Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if b.err != nil {
		return nil, b.err
	}
	return b.result, nil
}

// stubCartAPI counts remote calls so tests can assert the payment gate
// never reaches the network.
type stubCartAPI struct {
	placeCalls   int
	placedCartID string
	placeErr     error
}

func (s *stubCartAPI) SearchProducts(_ context.Context, _ string, _ int) ([]core.Product, error) {
	return nil, nil
}
func (s *stubCartAPI) AddToCart(_ context.Context, _ string, _ int) (*core.CartSnapshot, error) {
	return nil, nil
}
func (s *stubCartAPI) RemoveFromCart(_ context.Context, _ string) (*core.CartSnapshot, error) {
	return nil, nil
}
func (s *stubCartAPI) GetCart(_ context.Context) (*core.CartSnapshot, error) { return nil, nil }
func (s *stubCartAPI) ClearCart(_ context.Context) error                     { return nil }
func (s *stubCartAPI) PlaceOrder(_ context.Context, cartID, _, _ string) (*core.PlacedOrder, error) {
	s.placeCalls++
	s.placedCartID = cartID
	if s.placeErr != nil {
		return nil, s.placeErr
	}
	return &core.PlacedOrder{
		ExternalOrderID:   "ext-99",
		EstimatedDelivery: "30-45 minutes",
		Status:            "confirmed",
		DeliveryAddress:   "12 MG Road, Bengaluru 560001",
		TotalAmount:       240,
	}, nil
}
func (s *stubCartAPI) CartID() string { return "cart-1" }

func serviceRequest() builder.Request {
	return builder.Request{
		Items: []core.GroceryItem{
			{Name: "Milk", Quantity: "1", Unit: "l", Category: core.CategoryDairy},
		},
		FamilySize: 2,
	}
}

func readyRecord(t *testing.T, svc *Service) *Record {
	t.Helper()

	record, err := svc.Submit(context.Background(), "user-1", serviceRequest())
	require.NoError(t, err)

	record, err = svc.Process(context.Background(), record.ID, &stubBuilder{
		result: &builder.Result{Success: true, CartID: "cart-1", ItemsAdded: 1, EstimatedTotal: 120},
	})
	require.NoError(t, err)
	require.Equal(t, StatusCartReady, record.Status)
	return record
}

func TestServiceSubmitCreatesPendingRecord(t *testing.T) {
	svc := NewService(NewMemoryStore())

	record, err := svc.Submit(context.Background(), "user-1", serviceRequest())
	require.NoError(t, err)

	assert.NotEmpty(t, record.ID)
	assert.Equal(t, StatusPending, record.Status)
	assert.Equal(t, 1, record.ItemCount)
	assert.Equal(t, core.PaymentMethodCOD, record.PaymentMethod)
}

func TestServiceSubmitRejectsEmptyList(t *testing.T) {
	svc := NewService(NewMemoryStore())

	_, err := svc.Submit(context.Background(), "user-1", builder.Request{})
	require.Error(t, err)

	var vErr *core.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, core.ReasonEmptyGroceryList, vErr.Reason)
}

func TestServiceProcessMovesToCartReady(t *testing.T) {
	svc := NewService(NewMemoryStore())
	record := readyRecord(t, svc)

	require.NotNil(t, record.CartID)
	assert.Equal(t, "cart-1", *record.CartID)
	require.NotNil(t, record.EstimatedTotal)
	assert.Equal(t, float64(120), *record.EstimatedTotal)
}

func TestServiceProcessFailsRecordOnBuildError(t *testing.T) {
	svc := NewService(NewMemoryStore())

	record, err := svc.Submit(context.Background(), "user-1", serviceRequest())
	require.NoError(t, err)

	_, err = svc.Process(context.Background(), record.ID, &stubBuilder{err: errors.New("session expired")})
	require.Error(t, err)

	stored, err := svc.Get(context.Background(), record.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, stored.Status)
	require.NotNil(t, stored.ErrorMessage)
	assert.Contains(t, *stored.ErrorMessage, "session expired")
}

func TestServiceProcessFailsRecordOnUnsuccessfulBuild(t *testing.T) {
	svc := NewService(NewMemoryStore())

	record, err := svc.Submit(context.Background(), "user-1", serviceRequest())
	require.NoError(t, err)

	processed, err := svc.Process(context.Background(), record.ID, &stubBuilder{
		result: &builder.Result{Success: false, Message: "Cart building incomplete. Please try again."},
	})
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, processed.Status)
}

func TestServiceProcessTwiceIsRejected(t *testing.T) {
	svc := NewService(NewMemoryStore())
	record := readyRecord(t, svc)

	// CART_READY never moves back to PROCESSING.
	_, err := svc.Process(context.Background(), record.ID, &stubBuilder{
		result: &builder.Result{Success: true, ItemsAdded: 1},
	})
	require.Error(t, err)
}

func TestServiceCheckoutConfirmsOrder(t *testing.T) {
	svc := NewService(NewMemoryStore())
	record := readyRecord(t, svc)
	api := &stubCartAPI{}

	confirmed, err := svc.Checkout(context.Background(), record.ID, "addr-1", core.PaymentMethodCOD, api)
	require.NoError(t, err)

	assert.Equal(t, StatusConfirmed, confirmed.Status)
	require.NotNil(t, confirmed.ExternalOrderID)
	assert.Equal(t, "ext-99", *confirmed.ExternalOrderID)
	require.NotNil(t, confirmed.PlacedAt)
	assert.Equal(t, 1, api.placeCalls)

	// The persisted cart id drives the placement, not client-internal state.
	assert.Equal(t, "cart-1", api.placedCartID)

	// The resolved address text and delivery window survive confirmation.
	require.NotNil(t, confirmed.DeliveryAddress)
	assert.Equal(t, "12 MG Road, Bengaluru 560001", *confirmed.DeliveryAddress)
	require.NotNil(t, confirmed.DeliveryEstimate)
	assert.Equal(t, "30-45 minutes", *confirmed.DeliveryEstimate)
}

func TestServiceCheckoutUsesPersistedCartID(t *testing.T) {
	var placeParams map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var envelope struct {
			Method string         `json:"method"`
			Params map[string]any `json:"params"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&envelope))
		require.Equal(t, "instamart/order/place", envelope.Method)
		placeParams = envelope.Params

		_ = json.NewEncoder(w).Encode(map[string]any{"result": map[string]any{
			"swiggyOrderId":     "SWGY-77",
			"orderStatus":       "confirmed",
			"estimatedDelivery": "20 mins",
			"deliveryAddress":   "Flat 4, Indiranagar",
		}})
	}))
	t.Cleanup(srv.Close)

	svc := NewService(NewMemoryStore())
	record := readyRecord(t, svc)

	// A checkout request builds its own client; nothing but the record
	// remembers which cart the build produced.
	client := instamart.NewClient("token-1", "addr-1", func(o *instamart.Options) {
		o.Endpoint = srv.URL
	})
	require.Empty(t, client.CartID())

	confirmed, err := svc.Checkout(context.Background(), record.ID, "addr-1", core.PaymentMethodCOD, client)
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, confirmed.Status)
	require.NotNil(t, confirmed.ExternalOrderID)
	assert.Equal(t, "SWGY-77", *confirmed.ExternalOrderID)
	assert.Equal(t, "cart-1", placeParams["cartId"])
}

func TestServiceCheckoutValidationErrorKeepsRecordReady(t *testing.T) {
	svc := NewService(NewMemoryStore())
	record := readyRecord(t, svc)
	api := &stubCartAPI{placeErr: core.NewValidationError(core.ReasonOrderNotReady, "no cart to place order for")}

	_, err := svc.Checkout(context.Background(), record.ID, "addr-1", core.PaymentMethodCOD, api)
	require.Error(t, err)

	// A pre-remote rejection must not burn the record; checkout stays
	// retryable.
	stored, err := svc.Get(context.Background(), record.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCartReady, stored.Status)
}

func TestServiceCheckoutRejectsNonCODBeforeRemoteCall(t *testing.T) {
	svc := NewService(NewMemoryStore())
	record := readyRecord(t, svc)
	api := &stubCartAPI{}

	for _, method := range []string{"card", "upi", "cod", ""} {
		_, err := svc.Checkout(context.Background(), record.ID, "addr-1", method, api)
		require.Error(t, err, method)

		var vErr *core.ValidationError
		require.ErrorAs(t, err, &vErr)
		assert.Equal(t, core.ReasonUnsupportedPayment, vErr.Reason)
	}

	// The gate fires before any network call.
	assert.Zero(t, api.placeCalls)
}

func TestServiceCheckoutRequiresReadyCart(t *testing.T) {
	svc := NewService(NewMemoryStore())
	api := &stubCartAPI{}

	record, err := svc.Submit(context.Background(), "user-1", serviceRequest())
	require.NoError(t, err)

	_, err = svc.Checkout(context.Background(), record.ID, "addr-1", core.PaymentMethodCOD, api)
	require.Error(t, err)

	var vErr *core.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, core.ReasonOrderNotReady, vErr.Reason)
	assert.Zero(t, api.placeCalls)
}

func TestServiceCheckoutRequiresAddress(t *testing.T) {
	svc := NewService(NewMemoryStore())
	record := readyRecord(t, svc)
	api := &stubCartAPI{}

	_, err := svc.Checkout(context.Background(), record.ID, "", core.PaymentMethodCOD, api)
	require.Error(t, err)

	var vErr *core.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, core.ReasonNeedsAddress, vErr.Reason)
	assert.Zero(t, api.placeCalls)
}

func TestServiceCheckoutFailureFailsRecord(t *testing.T) {
	svc := NewService(NewMemoryStore())
	record := readyRecord(t, svc)
	api := &stubCartAPI{placeErr: errors.New("cart expired")}

	_, err := svc.Checkout(context.Background(), record.ID, "addr-1", core.PaymentMethodCOD, api)
	require.Error(t, err)

	stored, err := svc.Get(context.Background(), record.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, stored.Status)
}

func TestServiceCancelIsTerminal(t *testing.T) {
	svc := NewService(NewMemoryStore())
	record := readyRecord(t, svc)

	cancelled, err := svc.Cancel(context.Background(), record.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, cancelled.Status)

	_, err = svc.Cancel(context.Background(), record.ID)
	require.Error(t, err)

	var tErr *core.TerminalRecordError
	require.ErrorAs(t, err, &tErr)
}

func TestServiceListReturnsNewestFirst(t *testing.T) {
	svc := NewService(NewMemoryStore())

	first, err := svc.Submit(context.Background(), "user-1", serviceRequest())
	require.NoError(t, err)
	second, err := svc.Submit(context.Background(), "user-1", serviceRequest())
	require.NoError(t, err)
	_, err = svc.Submit(context.Background(), "user-2", serviceRequest())
	require.NoError(t, err)

	records, err := svc.List(context.Background(), "user-1")
	require.NoError(t, err)
	require.Len(t, records, 2)

	ids := []string{records[0].ID, records[1].ID}
	assert.Contains(t, ids, first.ID)
	assert.Contains(t, ids, second.ID)
}

func TestServiceGetUnknownOrder(t *testing.T) {
	svc := NewService(NewMemoryStore())

	_, err := svc.Get(context.Background(), "missing")
	require.ErrorIs(t, err, ErrNotFound)
}
