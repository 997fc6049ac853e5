package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"

	kafkax "github.com/ariefcatur/go-commerce-orders.git/internal/kafka"
	"github.com/ariefcatur/go-commerce-orders.git/internal/orders"
	"github.com/ariefcatur/go-commerce-orders.git/internal/redisx"
)

// Publisher is the slice of kafkax.Producer the handler needs; tests drop in a
// recording fake.
type Publisher interface {
	Publish(key, value []byte, headers ...kafkago.Header)
}

var _ Publisher = (*kafkax.Producer)(nil)

type OrdersHandler struct {
	Store         orders.Store
	Created       Publisher
	StatusChanged Publisher
	Cancelled     Publisher
	Redis         *redis.Client
	Service       string
}

type CheckoutReq struct {
	Items           []orders.CartLine `json:"items"`
	ShippingAddress json.RawMessage   `json:"shipping_address"`
	PaymentMethod   string            `json:"payment_method"`
}

type StatusReq struct {
	Status orders.Status `json:"status"`
}

// OrderResp is an order plus its derived total; the total is computed on
// every response, never read from storage.
type OrderResp struct {
	orders.Order
	TotalCents int `json:"total_cents"`
}

func toResp(o orders.Order) OrderResp {
	return OrderResp{Order: o, TotalCents: o.TotalCents()}
}

func (h *OrdersHandler) Register(r *chi.Mux) {
	r.Post("/orders", h.checkout)
	r.Get("/orders", h.listOrders)
	r.Get("/orders/{id}", h.getOrder)
	r.Get("/orders/{id}/status", h.getOrderStatus)
	r.Patch("/orders/{id}/status", h.updateStatus)
	r.Patch("/orders/{id}/cancel", h.cancelOrder)
	r.Get("/products", h.listProducts)
	r.Get("/products/{id}", h.getProduct)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// actorFrom reads the identity the auth collaborator injected upstream.
func actorFrom(r *http.Request) (orders.Actor, bool) {
	uid := r.Header.Get("X-User-Id")
	if uid == "" {
		return orders.Actor{}, false
	}
	return orders.Actor{UserID: uid, Admin: r.Header.Get("X-Admin") == "true"}, true
}

// writeDomainErr maps the domain error taxonomy onto HTTP. Checkout errors
// always name the failing product so the client can fix the cart line.
func writeDomainErr(w http.ResponseWriter, err error) {
	body := map[string]any{"error": err.Error()}
	if pid := orders.FailingProductID(err); pid != "" {
		body["failing_product_id"] = pid
	}

	var (
		notFound *orders.ProductNotFoundError
		stock    *orders.InsufficientStockError
		badQty   *orders.InvalidQuantityError
		badMove  *orders.InvalidTransitionError
	)
	switch {
	case errors.As(err, &badQty):
		writeJSON(w, http.StatusBadRequest, body)
	case errors.As(err, &notFound):
		writeJSON(w, http.StatusNotFound, body)
	case errors.As(err, &stock):
		writeJSON(w, http.StatusConflict, body)
	case errors.As(err, &badMove):
		writeJSON(w, http.StatusConflict, body)
	case errors.Is(err, orders.ErrForbidden):
		writeJSON(w, http.StatusForbidden, body)
	case errors.Is(err, orders.ErrOrderNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "storage failure"})
	}
}

func (h *OrdersHandler) checkout(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "missing identity"})
		return
	}
	var req CheckoutReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if len(req.Items) == 0 || len(req.ShippingAddress) == 0 || req.PaymentMethod == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing fields"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, err := h.Store.Checkout(ctx, actor.UserID, req.Items, req.ShippingAddress, req.PaymentMethod)
	if err != nil {
		writeDomainErr(w, err)
		return
	}

	h.cacheStatus(ctx, o)
	h.publishCreated(o, r.Header.Get("X-Request-Id"))

	writeJSON(w, http.StatusCreated, toResp(o))
}

func (h *OrdersHandler) publishCreated(o orders.Order, trace string) {
	if h.Created == nil {
		return
	}
	ev := orders.Envelope{
		EventID:       uuid.NewString(),
		EventType:     orders.EventOrderCreated,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      h.Service,
		TraceID:       trace,
		CorrelationID: o.ID,
		Payload: kafkax.MustMarshal(orders.OrderCreatedPayload{
			OrderID:    o.ID,
			UserID:     o.UserID,
			Items:      toItemPrices(o.Items),
			TotalCents: o.TotalCents(),
		}),
	}
	h.Created.Publish(orders.PartitionKey(o.ID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(orders.EventOrderCreated)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}

func toItemPrices(items []orders.OrderItem) []orders.ItemPrice {
	out := make([]orders.ItemPrice, 0, len(items))
	for _, it := range items {
		out = append(out, orders.ItemPrice{ProductID: it.ProductID, Qty: it.Qty, PriceCents: it.PriceCents})
	}
	return out
}

func (h *OrdersHandler) listOrders(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "missing identity"})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	os, err := h.Store.OrdersByUser(ctx, actor.UserID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "storage failure"})
		return
	}
	out := make([]OrderResp, 0, len(os))
	for _, o := range os {
		out = append(out, toResp(o))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "missing identity"})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	o, err := h.Store.Order(ctx, chi.URLParam(r, "id"), actor)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toResp(o))
}

type cachedStatus struct {
	Status orders.Status `json:"status"`
	UserID string        `json:"user_id"`
}

// getOrderStatus serves the polling clients from Redis when the cache is
// warm, falling back to storage on a miss.
func (h *OrdersHandler) getOrderStatus(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "missing identity"})
		return
	}
	orderID := chi.URLParam(r, "id")

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if h.Redis != nil {
		key := fmt.Sprintf(redisx.KeyOrderStatus, orderID)
		if s, err := h.Redis.Get(ctx, key).Result(); err == nil && s != "" {
			var c cachedStatus
			if json.Unmarshal([]byte(s), &c) == nil && (actor.Admin || actor.UserID == c.UserID) {
				writeJSON(w, http.StatusOK, map[string]orders.Status{"status": c.Status})
				return
			}
		}
	}

	o, err := h.Store.Order(ctx, orderID, actor)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	h.cacheStatus(ctx, o)
	writeJSON(w, http.StatusOK, map[string]orders.Status{"status": o.Status})
}

func (h *OrdersHandler) cacheStatus(ctx context.Context, o orders.Order) {
	if h.Redis == nil {
		return
	}
	key := fmt.Sprintf(redisx.KeyOrderStatus, o.ID)
	b, _ := json.Marshal(cachedStatus{Status: o.Status, UserID: o.UserID})
	_ = h.Redis.Set(ctx, key, b, redisx.TTLStatusCache).Err()
}

func (h *OrdersHandler) updateStatus(w http.ResponseWriter, r *http.Request) {
	var req StatusReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if !orders.ValidStatus(req.Status) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown status"})
		return
	}
	h.transition(w, r, req.Status)
}

// cancelOrder is the storefront client's shorthand for requesting cancelled.
func (h *OrdersHandler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, orders.StatusCancelled)
}

func (h *OrdersHandler) transition(w http.ResponseWriter, r *http.Request, to orders.Status) {
	actor, ok := actorFrom(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "missing identity"})
		return
	}
	orderID := chi.URLParam(r, "id")

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	// from is the status the transition actually observed under its row
	// lock, so the event never reports a stale predecessor.
	o, from, err := h.Store.Transition(ctx, orderID, to, actor)
	if err != nil {
		writeDomainErr(w, err)
		return
	}

	h.cacheStatus(ctx, o)
	h.publishStatusChanged(from, o, actor, r.Header.Get("X-Request-Id"))

	writeJSON(w, http.StatusOK, toResp(o))
}

func (h *OrdersHandler) publishStatusChanged(from orders.Status, o orders.Order, actor orders.Actor, trace string) {
	now := time.Now().UTC()
	if h.StatusChanged != nil {
		ev := orders.Envelope{
			EventID:       uuid.NewString(),
			EventType:     orders.EventOrderStatusChanged,
			EventVersion:  1,
			OccurredAt:    now,
			Producer:      h.Service,
			TraceID:       trace,
			CorrelationID: o.ID,
			Payload: kafkax.MustMarshal(orders.OrderStatusChangedPayload{
				OrderID: o.ID, From: from, To: o.Status, ActorID: actor.UserID,
			}),
		}
		h.StatusChanged.Publish(orders.PartitionKey(o.ID), kafkax.MustMarshal(ev),
			kafkago.Header{Key: "x-event-type", Value: []byte(orders.EventOrderStatusChanged)},
			kafkago.Header{Key: "x-event-version", Value: []byte("1")},
		)
	}
	if o.Status == orders.StatusCancelled && h.Cancelled != nil {
		ev := orders.Envelope{
			EventID:       uuid.NewString(),
			EventType:     orders.EventOrderCancelled,
			EventVersion:  1,
			OccurredAt:    now,
			Producer:      h.Service,
			TraceID:       trace,
			CorrelationID: o.ID,
			Payload: kafkax.MustMarshal(orders.OrderCancelledPayload{
				OrderID:    o.ID,
				UserID:     o.UserID,
				Restored:   toItemPrices(o.Items),
				TotalCents: o.TotalCents(),
			}),
		}
		h.Cancelled.Publish(orders.PartitionKey(o.ID), kafkax.MustMarshal(ev),
			kafkago.Header{Key: "x-event-type", Value: []byte(orders.EventOrderCancelled)},
			kafkago.Header{Key: "x-event-version", Value: []byte("1")},
		)
	}
}

func (h *OrdersHandler) listProducts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	ps, err := h.Store.Products(ctx)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "storage failure"})
		return
	}
	writeJSON(w, http.StatusOK, ps)
}

func (h *OrdersHandler) getProduct(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	p, err := h.Store.ProductByID(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}
