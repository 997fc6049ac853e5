package orders

import (
	"context"
	"encoding/json"
)

// Store is what the HTTP layer programs against. The pgx-backed Repo is the
// production implementation; ordertest.Store is the in-memory double.
type Store interface {
	// Checkout turns cart lines into a durable order, reserving stock for
	// every line inside one atomic unit. On any failure nothing is persisted.
	Checkout(ctx context.Context, userID string, lines []CartLine, shippingAddress json.RawMessage, paymentMethod string) (Order, error)

	// Order returns one order with its items. Non-admin actors only see their
	// own orders; anything else is ErrOrderNotFound.
	Order(ctx context.Context, orderID string, actor Actor) (Order, error)

	// OrdersByUser lists a user's orders, newest first.
	OrdersByUser(ctx context.Context, userID string) ([]Order, error)

	// Transition applies the status state machine and reports the status the
	// order held when the transition was decided, read under the same lock as
	// the status write. Moving into cancelled restores the order's reserved
	// stock in the same atomic unit.
	Transition(ctx context.Context, orderID string, to Status, actor Actor) (Order, Status, error)

	Products(ctx context.Context) ([]Product, error)
	ProductByID(ctx context.Context, productID string) (Product, error)
}
