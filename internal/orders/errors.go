package orders

import (
	"errors"
	"fmt"
)

var (
	ErrOrderNotFound = errors.New("order not found")
	ErrForbidden     = errors.New("forbidden")
)

// ProductNotFoundError aborts a checkout; the id tells the client which cart
// line to fix.
type ProductNotFoundError struct {
	ProductID string
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product not found: %s", e.ProductID)
}

// InsufficientStockError is reported from the ledger's conditional decrement,
// with the availability observed inside the same transaction.
type InsufficientStockError struct {
	ProductID string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}

type InvalidQuantityError struct {
	ProductID string
	Qty       int
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("invalid qty %d for product %s", e.Qty, e.ProductID)
}

type InvalidTransitionError struct {
	From Status
	To   Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition %s -> %s", e.From, e.To)
}

// FailingProductID extracts the offending product from a checkout error, empty
// when the failure is not tied to a specific line.
func FailingProductID(err error) string {
	var nf *ProductNotFoundError
	if errors.As(err, &nf) {
		return nf.ProductID
	}
	var is *InsufficientStockError
	if errors.As(err, &is) {
		return is.ProductID
	}
	var iq *InvalidQuantityError
	if errors.As(err, &iq) {
		return iq.ProductID
	}
	return ""
}
