// Package ordertest provides an in-memory orders.Store with the same
// semantics as the pgx repo: all-or-nothing checkout, conditional stock
// decrement, state-machine-guarded transitions with stock restoration. It is
// the deterministic double the handler and property tests run against.
package ordertest

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ariefcatur/go-commerce-orders.git/internal/orders"
)

type Store struct {
	mu       sync.Mutex
	products map[string]*orders.Product
	orders   map[string]*orders.Order
	seq      int64
}

var _ orders.Store = (*Store)(nil)

func NewStore() *Store {
	return &Store{
		products: make(map[string]*orders.Product),
		orders:   make(map[string]*orders.Order),
	}
}

// AddProduct seeds the catalog and returns the generated id.
func (s *Store) AddProduct(name string, priceCents, stock int) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := uuid.NewString()
	now := time.Now().UTC()
	s.products[id] = &orders.Product{
		ID: id, Name: name, PriceCents: priceCents, Stock: stock,
		CreatedAt: now, UpdatedAt: now,
	}
	return id
}

// SetPrice changes a product's live price; existing orders must not notice.
func (s *Store) SetPrice(productID string, priceCents int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.products[productID]; ok {
		p.PriceCents = priceCents
	}
}

// Stock reads the current availability, the way a third observer would.
func (s *Store) Stock(productID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.products[productID]; ok {
		return p.Stock
	}
	return -1
}

func (s *Store) Checkout(ctx context.Context, userID string, lines []orders.CartLine, shippingAddress json.RawMessage, paymentMethod string) (orders.Order, error) {
	norm, err := orders.NormalizeLines(lines)
	if err != nil {
		return orders.Order{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prices := make(map[string]int, len(norm))
	for _, l := range norm {
		if p, ok := s.products[l.ProductID]; ok {
			prices[l.ProductID] = p.PriceCents
		}
	}

	orderID := uuid.NewString()
	items, err := orders.BuildItems(orderID, norm, prices)
	if err != nil {
		return orders.Order{}, err
	}

	// Validate every line before mutating anything; the single lock makes the
	// two passes one atomic unit.
	for _, l := range norm {
		p := s.products[l.ProductID]
		if p.Stock < l.Qty {
			return orders.Order{}, &orders.InsufficientStockError{
				ProductID: l.ProductID, Requested: l.Qty, Available: p.Stock,
			}
		}
	}
	now := time.Now().UTC()
	for i := range items {
		p := s.products[items[i].ProductID]
		p.Stock -= items[i].Qty
		p.UpdatedAt = now
		s.seq++
		items[i].ID = s.seq
	}

	o := &orders.Order{
		ID:              orderID,
		UserID:          userID,
		Status:          orders.StatusPending,
		ShippingAddress: shippingAddress,
		PaymentMethod:   paymentMethod,
		Items:           items,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	s.orders[orderID] = o
	return snapshot(o), nil
}

func (s *Store) Order(ctx context.Context, orderID string, actor orders.Actor) (orders.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok {
		return orders.Order{}, orders.ErrOrderNotFound
	}
	if !actor.Admin && actor.UserID != o.UserID {
		return orders.Order{}, orders.ErrOrderNotFound
	}
	return snapshot(o), nil
}

func (s *Store) OrdersByUser(ctx context.Context, userID string) ([]orders.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []orders.Order
	for _, o := range s.orders {
		if o.UserID == userID {
			out = append(out, snapshot(o))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) Transition(ctx context.Context, orderID string, to orders.Status, actor orders.Actor) (orders.Order, orders.Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok {
		return orders.Order{}, "", orders.ErrOrderNotFound
	}
	if !actor.Admin && actor.UserID != o.UserID {
		return orders.Order{}, "", orders.ErrOrderNotFound
	}
	from := o.Status
	if err := orders.CheckTransition(from, to, actor.Admin); err != nil {
		return orders.Order{}, "", err
	}
	if to == orders.StatusCancelled {
		for _, it := range o.Items {
			if p, ok := s.products[it.ProductID]; ok {
				p.Stock += it.Qty
			}
		}
	}
	o.Status = to
	o.UpdatedAt = time.Now().UTC()
	return snapshot(o), from, nil
}

func (s *Store) Products(ctx context.Context) ([]orders.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]orders.Product, 0, len(s.products))
	for _, p := range s.products {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) ProductByID(ctx context.Context, productID string) (orders.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[productID]
	if !ok {
		return orders.Product{}, &orders.ProductNotFoundError{ProductID: productID}
	}
	return *p, nil
}

func snapshot(o *orders.Order) orders.Order {
	cp := *o
	cp.Items = append([]orders.OrderItem(nil), o.Items...)
	return cp
}
