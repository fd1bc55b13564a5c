package order

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/hupe1980/cartpilot/builder"
	"github.com/hupe1980/cartpilot/core"
	"github.com/hupe1980/cartpilot/instamart"
	"github.com/hupe1980/cartpilot/logging"
)

// DefaultListLimit caps the order history returned per user.
const DefaultListLimit = 20

// ServiceOptions configures a Service instance.
type ServiceOptions struct {
	// Logger receives structured lifecycle events.
	Logger logging.Logger
}

// Service owns the order lifecycle. Cart builders and remote cart clients
// are passed per call because they carry per-session credentials; the
// service itself holds only the store.
type Service struct {
	store  Store
	logger logging.Logger
}

// NewService creates a lifecycle service over the given store.
func NewService(store Store, optFns ...func(o *ServiceOptions)) *Service {
	opts := ServiceOptions{
		Logger: logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Service{store: store, logger: opts.Logger}
}

// Submit creates a new PENDING record for the given grocery request.
func (s *Service) Submit(ctx context.Context, userID string, req builder.Request) (*Record, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	record := &Record{
		ID:               uuid.New().String(),
		UserID:           userID,
		Status:           StatusPending,
		Items:            req.Items,
		ItemCount:        len(req.Items),
		AllergenWarnings: req.Allergens,
		FamilySize:       req.FamilySize,
		PaymentMethod:    core.PaymentMethodCOD,
	}

	if err := s.store.Create(ctx, record); err != nil {
		return nil, err
	}

	s.logger.Info("order.submitted", "order_id", record.ID, "items", record.ItemCount)
	return record, nil
}

// Process builds the cart for a PENDING record using the given builder and
// moves the record to CART_READY or FAILED. A build error fails the record
// and is also returned so the caller can surface its reason code.
func (s *Service) Process(ctx context.Context, id string, cartBuilder builder.CartBuilder) (*Record, error) {
	record, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := record.Transition(StatusProcessing); err != nil {
		return nil, err
	}
	if err := s.store.Update(ctx, record); err != nil {
		return nil, err
	}

	result, err := cartBuilder.Build(ctx, builder.Request{
		Items:      record.Items,
		Allergens:  record.AllergenWarnings,
		FamilySize: record.FamilySize,
	})
	if err != nil {
		s.fail(ctx, record, err.Error())
		return record, err
	}

	if !result.Success {
		s.fail(ctx, record, result.Message)
		return record, nil
	}

	if err := record.Transition(StatusCartReady); err != nil {
		return nil, err
	}
	record.ItemsNotFound = result.ItemsNotFound
	if result.CartID != "" {
		record.CartID = &result.CartID
	}
	if result.EstimatedTotal > 0 {
		total := result.EstimatedTotal
		record.EstimatedTotal = &total
	}

	if err := s.store.Update(ctx, record); err != nil {
		return nil, err
	}

	s.logger.Info("order.cart_ready",
		"order_id", record.ID,
		"items_added", result.ItemsAdded,
		"items_not_found", len(result.ItemsNotFound),
	)
	return record, nil
}

// Checkout places a CART_READY order through the remote cart service. The
// payment method is validated before any remote call is made.
func (s *Service) Checkout(ctx context.Context, id, addressID, paymentMethod string, api instamart.API) (*Record, error) {
	if paymentMethod != core.PaymentMethodCOD {
		return nil, core.NewValidationError(core.ReasonUnsupportedPayment, "payment method %q is not supported, only %s", paymentMethod, core.PaymentMethodCOD)
	}

	record, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if record.Status != StatusCartReady || record.CartID == nil {
		return nil, core.NewValidationError(core.ReasonOrderNotReady, "order %s is not ready for checkout", id)
	}
	if addressID == "" {
		if record.DeliveryAddressID == nil {
			return nil, core.NewValidationError(core.ReasonNeedsAddress, "a delivery address is required")
		}
		addressID = *record.DeliveryAddressID
	}

	placed, err := api.PlaceOrder(ctx, *record.CartID, addressID, paymentMethod)
	if err != nil {
		// A validation error is rejected before any remote call; the record
		// stays CART_READY and checkout can be retried. Only a remote
		// placement failure is terminal.
		var validationErr *core.ValidationError
		if errors.As(err, &validationErr) {
			return record, err
		}
		s.fail(ctx, record, err.Error())
		return record, err
	}

	if err := record.Transition(StatusConfirmed); err != nil {
		return nil, err
	}
	now := time.Now()
	record.ExternalOrderID = &placed.ExternalOrderID
	record.DeliveryAddressID = &addressID
	record.PlacedAt = &now
	if placed.DeliveryAddress != "" {
		record.DeliveryAddress = &placed.DeliveryAddress
	}
	if placed.EstimatedDelivery != "" {
		record.DeliveryEstimate = &placed.EstimatedDelivery
	}
	if placed.TotalAmount > 0 {
		total := placed.TotalAmount
		record.EstimatedTotal = &total
	}

	if err := s.store.Update(ctx, record); err != nil {
		return nil, err
	}

	s.logger.Info("order.confirmed", "order_id", record.ID, "external_order_id", placed.ExternalOrderID)
	return record, nil
}

// Get returns one record by id.
func (s *Service) Get(ctx context.Context, id string) (*Record, error) {
	return s.store.Get(ctx, id)
}

// List returns the user's most recent records, newest first.
func (s *Service) List(ctx context.Context, userID string) ([]Record, error) {
	return s.store.ListByUser(ctx, userID, DefaultListLimit)
}

// Cancel moves a non-terminal record to CANCELLED.
func (s *Service) Cancel(ctx context.Context, id string) (*Record, error) {
	record, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := record.Transition(StatusCancelled); err != nil {
		return nil, err
	}
	if err := s.store.Update(ctx, record); err != nil {
		return nil, err
	}

	s.logger.Info("order.cancelled", "order_id", record.ID)
	return record, nil
}

// fail moves the record to FAILED with the error captured verbatim. Update
// errors are logged, not returned: the original failure matters more.
func (s *Service) fail(ctx context.Context, record *Record, message string) {
	if err := record.Transition(StatusFailed); err != nil {
		s.logger.Error("order.fail_transition", "order_id", record.ID, "error", err.Error())
		return
	}
	record.ErrorMessage = &message

	if err := s.store.Update(ctx, record); err != nil {
		s.logger.Error("order.fail_update", "order_id", record.ID, "error", err.Error())
	}

	s.logger.Warn("order.failed", "order_id", record.ID, "reason", message)
}
