// Package stats maintains the admin dashboard counters (order count, revenue,
// cancellations) from the order event stream. Revenue only counts orders that
// are still live: a cancellation subtracts the order's total again.
package stats

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"

	kafkax "github.com/ariefcatur/go-commerce-orders.git/internal/kafka"
	"github.com/ariefcatur/go-commerce-orders.git/internal/orders"
	"github.com/ariefcatur/go-commerce-orders.git/internal/redisx"
)

const (
	FieldOrders       = "orders"
	FieldRevenueCents = "revenue_cents"
	FieldCancelled    = "cancelled"
)

// Store is the slice of redis the worker needs; tests drop in an in-memory
// fake. Claiming must be atomic (first claimer wins, everyone else skips) so
// a redelivered duplicate can never be counted twice.
type Store interface {
	ClaimEvent(ctx context.Context, eventID string) (bool, error)
	ReleaseEvent(ctx context.Context, eventID string) error
	IncrCounters(ctx context.Context, deltas map[string]int64) error
}

// RedisStore backs the counters with a redis hash. SetNX is the atomic claim;
// the increments go through one TxPipeline so a retry never sees a partial
// apply.
type RedisStore struct{ Client *redis.Client }

var _ Store = (*RedisStore)(nil)

func dedupKey(eventID string) string {
	return fmt.Sprintf(redisx.KeyDedup, "stats", eventID)
}

func (r *RedisStore) ClaimEvent(ctx context.Context, eventID string) (bool, error) {
	return r.Client.SetNX(ctx, dedupKey(eventID), "1", redisx.TTLDedup).Result()
}

func (r *RedisStore) ReleaseEvent(ctx context.Context, eventID string) error {
	return r.Client.Del(ctx, dedupKey(eventID)).Err()
}

func (r *RedisStore) IncrCounters(ctx context.Context, deltas map[string]int64) error {
	pipe := r.Client.TxPipeline()
	for field, d := range deltas {
		pipe.HIncrBy(ctx, redisx.KeyOrderStats, field, d)
	}
	_, err := pipe.Exec(ctx)
	return err
}

type Service struct {
	Store Store
}

// Deltas maps one event envelope onto counter increments. Unknown event types
// yield nothing and are skipped by the consumer.
func Deltas(env orders.Envelope) (map[string]int64, error) {
	switch env.EventType {
	case orders.EventOrderCreated:
		p, err := kafkax.UnwrapPayload[orders.OrderCreatedPayload](env.Payload)
		if err != nil {
			return nil, err
		}
		return map[string]int64{
			FieldOrders:       1,
			FieldRevenueCents: int64(p.TotalCents),
		}, nil
	case orders.EventOrderCancelled:
		p, err := kafkax.UnwrapPayload[orders.OrderCancelledPayload](env.Payload)
		if err != nil {
			return nil, err
		}
		return map[string]int64{
			FieldCancelled:    1,
			FieldRevenueCents: -int64(p.TotalCents),
		}, nil
	default:
		return nil, nil
	}
}

// HandleOrderEvent is the kafka consumer handler for the order topics. The
// event is claimed before the counters move, so the consumer's redeliveries
// never double count; if the apply itself fails, the claim is given back and
// the redelivery gets a clean retry.
func (s *Service) HandleOrderEvent(ctx context.Context, m kafkago.Message) error {
	var env orders.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		return err
	}

	deltas, err := Deltas(env)
	if err != nil {
		return err
	}
	if len(deltas) == 0 {
		return nil
	}

	claimed, err := s.Store.ClaimEvent(ctx, env.EventID)
	if err != nil {
		return err
	}
	if !claimed {
		return nil
	}

	if err := s.Store.IncrCounters(ctx, deltas); err != nil {
		_ = s.Store.ReleaseEvent(ctx, env.EventID)
		return err
	}
	return nil
}
