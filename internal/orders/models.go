package orders

import (
	"encoding/json"
	"time"
)

type Product struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	PriceCents int       `json:"price_cents"`
	Stock      int       `json:"stock"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type Order struct {
	ID              string          `json:"id"`
	UserID          string          `json:"user_id"`
	Status          Status          `json:"status"`
	ShippingAddress json.RawMessage `json:"shipping_address"`
	PaymentMethod   string          `json:"payment_method"`
	Items           []OrderItem     `json:"items"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// TotalCents is derived from the line items on every read. There is no stored
// total column anywhere; the captured per-item prices are the only source.
func (o Order) TotalCents() int {
	total := 0
	for _, it := range o.Items {
		total += it.PriceCents * it.Qty
	}
	return total
}

type OrderItem struct {
	ID        int64  `json:"id"`
	OrderID   string `json:"order_id"`
	ProductID string `json:"product_id"`
	Qty       int    `json:"qty"`
	// Price at order time. Never re-read from the live product.
	PriceCents int `json:"price_cents"`
}

// CartLine is one requested (product, qty) pair at checkout.
type CartLine struct {
	ProductID string `json:"product_id"`
	Qty       int    `json:"qty"`
}

// Actor identifies who is asking, as supplied by the auth layer upstream.
type Actor struct {
	UserID string
	Admin  bool
}
