package order

import (
	"time"

	"github.com/hupe1980/cartpilot/core"
)

// Record is the durable unit of ordering work. It is created once at
// submission time and mutated only through lifecycle transitions; records
// are never deleted, only superseded by status changes.
type Record struct {
	ID        string    `gorm:"primarykey;size:36" json:"id"`
	UserID    string    `gorm:"size:36;not null;index" json:"userId"`
	Status    Status    `gorm:"size:16;not null;index" json:"status"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	Items            []core.GroceryItem `gorm:"serializer:json" json:"items"`
	ItemCount        int                `gorm:"not null" json:"itemCount"`
	AllergenWarnings []string           `gorm:"serializer:json" json:"allergenWarnings,omitempty"`
	ItemsNotFound    []string           `gorm:"serializer:json" json:"itemsNotFound,omitempty"`
	FamilySize       int                `gorm:"not null;default:1" json:"familySize"`

	EstimatedTotal    *float64   `json:"estimatedTotal,omitempty"`
	CartID            *string    `gorm:"size:64" json:"cartId,omitempty"`
	ExternalOrderID   *string    `gorm:"size:64" json:"externalOrderId,omitempty"`
	ErrorMessage      *string    `gorm:"type:text" json:"errorMessage,omitempty"`
	DeliveryAddressID *string    `gorm:"size:64" json:"deliveryAddressId,omitempty"`
	DeliveryAddress   *string    `gorm:"type:text" json:"deliveryAddress,omitempty"`
	DeliveryEstimate  *string    `gorm:"size:128" json:"deliveryEstimate,omitempty"`
	PaymentMethod     string     `gorm:"size:16;not null;default:COD" json:"paymentMethod"`
	PlacedAt          *time.Time `json:"placedAt,omitempty"`
}

func (Record) TableName() string { return "orders" }

// Transition moves the record to next, enforcing the monotonic lifecycle.
// Mutating a terminal record is a caller error, reported as a
// TerminalRecordError.
func (r *Record) Transition(next Status) error {
	if r.Status.Terminal() {
		return &core.TerminalRecordError{OrderID: r.ID, Status: string(r.Status)}
	}
	if !r.Status.CanTransition(next) {
		return core.NewValidationError(core.ReasonOrderNotReady, "order %s cannot move from %s to %s", r.ID, r.Status, next)
	}
	r.Status = next
	return nil
}
