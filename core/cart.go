package core

// Product is a catalog entry returned by a product search against the remote
// grocery service.
type Product struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	MRP         float64 `json:"mrp"`
	Unit        string  `json:"unit"`
	Quantity    string  `json:"quantity"`
	InStock     bool    `json:"inStock"`
	Category    string  `json:"category"`
}

// CartItem is one line of a remote cart.
type CartItem struct {
	ProductID string  `json:"productId"`
	Name      string  `json:"name"`
	Quantity  int     `json:"quantity"`
	Price     float64 `json:"price"`
	Total     float64 `json:"total"`
}

// CartSnapshot is the remote service's view of a cart at one point in time.
// The snapshot is owned by the remote service; the core holds only the cart
// id and re-fetches snapshots instead of caching mutable state.
type CartSnapshot struct {
	ID          string     `json:"id"`
	Items       []CartItem `json:"items"`
	Subtotal    float64    `json:"subtotal"`
	DeliveryFee float64    `json:"deliveryFee"`
	Taxes       float64    `json:"taxes"`
	Total       float64    `json:"total"`
	ItemCount   int        `json:"itemCount"`
}

// DeliveryAddress is a saved address from the user's remote address book.
// The core only reads it.
type DeliveryAddress struct {
	ID        string `json:"id"`
	Label     string `json:"label"`
	Address   string `json:"address"`
	City      string `json:"city"`
	Pincode   string `json:"pincode"`
	IsDefault bool   `json:"isDefault"`
}

// PlacedOrder is the remote service's confirmation of a placed order.
type PlacedOrder struct {
	ExternalOrderID   string  `json:"externalOrderId"`
	EstimatedDelivery string  `json:"estimatedDelivery"`
	Status            string  `json:"status"`
	DeliveryAddress   string  `json:"deliveryAddress"`
	TotalAmount       float64 `json:"totalAmount"`
}

// PaymentMethodCOD is the only payment method the remote integration
// currently accepts ("cash on delivery").
const PaymentMethodCOD = "COD"
