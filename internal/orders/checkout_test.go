package orders_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/ariefcatur/go-commerce-orders.git/internal/orders"
	"github.com/ariefcatur/go-commerce-orders.git/internal/orders/ordertest"
)

var addr = json.RawMessage(`{"street":"1 Main St","city":"Springfield","zip":"49007"}`)

func TestCheckoutHappyPath(t *testing.T) {
	s := ordertest.NewStore()
	p1 := s.AddProduct("keyboard", 4500, 10)
	p2 := s.AddProduct("mouse", 1500, 5)

	o, err := s.Checkout(context.Background(), "u1", []orders.CartLine{
		{ProductID: p1, Qty: 2},
		{ProductID: p2, Qty: 1},
	}, addr, "card")
	require.NoError(t, err)

	assert.Equal(t, orders.StatusPending, o.Status)
	assert.Equal(t, "u1", o.UserID)
	assert.Len(t, o.Items, 2)
	assert.Equal(t, 2*4500+1500, o.TotalCents())
	assert.Equal(t, 8, s.Stock(p1))
	assert.Equal(t, 4, s.Stock(p2))
}

func TestCheckoutAtomicityOnFailure(t *testing.T) {
	s := ordertest.NewStore()
	p1 := s.AddProduct("keyboard", 4500, 10)
	p2 := s.AddProduct("mouse", 1500, 1)

	// second line cannot be reserved, so the first line's decrement must not
	// survive either
	_, err := s.Checkout(context.Background(), "u1", []orders.CartLine{
		{ProductID: p1, Qty: 3},
		{ProductID: p2, Qty: 5},
	}, addr, "card")

	var is *orders.InsufficientStockError
	require.ErrorAs(t, err, &is)
	assert.Equal(t, p2, is.ProductID)
	assert.Equal(t, 5, is.Requested)
	assert.Equal(t, 1, is.Available)

	assert.Equal(t, 10, s.Stock(p1), "no stock decrement for any line")
	assert.Equal(t, 1, s.Stock(p2))

	got, err := s.OrdersByUser(context.Background(), "u1")
	require.NoError(t, err)
	assert.Empty(t, got, "no order persists")
}

func TestCheckoutUnknownProductAborts(t *testing.T) {
	s := ordertest.NewStore()
	p1 := s.AddProduct("keyboard", 4500, 10)

	_, err := s.Checkout(context.Background(), "u1", []orders.CartLine{
		{ProductID: p1, Qty: 1},
		{ProductID: "00000000-0000-0000-0000-000000000000", Qty: 1},
	}, addr, "card")

	var nf *orders.ProductNotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, 10, s.Stock(p1))
}

func TestConcurrentCheckoutsNeverOversell(t *testing.T) {
	// stock 3, two concurrent requests for 2: exactly one may win
	s := ordertest.NewStore()
	p := s.AddProduct("monitor", 19900, 3)

	results := make([]error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = s.Checkout(context.Background(), "u1",
				[]orders.CartLine{{ProductID: p, Qty: 2}}, addr, "card")
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range results {
		if err == nil {
			succeeded++
		} else {
			var is *orders.InsufficientStockError
			require.ErrorAs(t, err, &is)
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, s.Stock(p))
}

func TestConcurrentReservationProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		stock := rapid.IntRange(0, 20).Draw(t, "stock")
		n := rapid.IntRange(2, 8).Draw(t, "checkouts")
		qtys := make([]int, n)
		for i := range qtys {
			qtys[i] = rapid.IntRange(1, 5).Draw(t, "qty")
		}

		s := ordertest.NewStore()
		p := s.AddProduct("widget", 100, stock)

		errs := make([]error, n)
		var wg sync.WaitGroup
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, errs[i] = s.Checkout(context.Background(), "u1",
					[]orders.CartLine{{ProductID: p, Qty: qtys[i]}}, addr, "card")
			}(i)
		}
		wg.Wait()

		reserved := 0
		for i, err := range errs {
			if err == nil {
				reserved += qtys[i]
			} else {
				var is *orders.InsufficientStockError
				if !errors.As(err, &is) {
					t.Fatalf("checkout %d: unexpected error %v", i, err)
				}
			}
		}
		if got := s.Stock(p); got != stock-reserved {
			t.Fatalf("stock %d, reserved %d, but ledger reads %d", stock, reserved, got)
		}
		if s.Stock(p) < 0 {
			t.Fatalf("stock went negative: %d", s.Stock(p))
		}
	})
}

func TestCancellationRestoresStockExactly(t *testing.T) {
	s := ordertest.NewStore()
	p1 := s.AddProduct("keyboard", 4500, 10)
	p2 := s.AddProduct("mouse", 1500, 5)

	before1, before2 := s.Stock(p1), s.Stock(p2)
	o, err := s.Checkout(context.Background(), "u1", []orders.CartLine{
		{ProductID: p1, Qty: 2},
		{ProductID: p2, Qty: 3},
	}, addr, "card")
	require.NoError(t, err)
	require.Equal(t, before1-2, s.Stock(p1))
	require.Equal(t, before2-3, s.Stock(p2))

	owner := orders.Actor{UserID: "u1"}
	cancelled, from, err := s.Transition(context.Background(), o.ID, orders.StatusCancelled, owner)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusCancelled, cancelled.Status)
	assert.Equal(t, orders.StatusPending, from)

	// restoration is exact, per line item
	assert.Equal(t, before1, s.Stock(p1))
	assert.Equal(t, before2, s.Stock(p2))
}

func TestDoubleCancellationRejectedWithoutSecondRestore(t *testing.T) {
	s := ordertest.NewStore()
	p := s.AddProduct("keyboard", 4500, 10)

	o, err := s.Checkout(context.Background(), "u1",
		[]orders.CartLine{{ProductID: p, Qty: 2}}, addr, "card")
	require.NoError(t, err)

	owner := orders.Actor{UserID: "u1"}
	_, _, err = s.Transition(context.Background(), o.ID, orders.StatusCancelled, owner)
	require.NoError(t, err)
	require.Equal(t, 10, s.Stock(p))

	_, _, err = s.Transition(context.Background(), o.ID, orders.StatusCancelled, owner)
	var it *orders.InvalidTransitionError
	require.ErrorAs(t, err, &it)
	assert.Equal(t, 10, s.Stock(p), "no second restoration")
}

func TestPriceImmutabilityAfterOrder(t *testing.T) {
	s := ordertest.NewStore()
	p := s.AddProduct("keyboard", 4500, 10)

	o, err := s.Checkout(context.Background(), "u1",
		[]orders.CartLine{{ProductID: p, Qty: 2}}, addr, "card")
	require.NoError(t, err)
	require.Equal(t, 9000, o.TotalCents())

	s.SetPrice(p, 9900)

	got, err := s.Order(context.Background(), o.ID, orders.Actor{UserID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, 4500, got.Items[0].PriceCents, "captured price untouched by catalog change")
	assert.Equal(t, 9000, got.TotalCents())
}

func TestOrderVisibilityByActor(t *testing.T) {
	s := ordertest.NewStore()
	p := s.AddProduct("keyboard", 4500, 10)

	o, err := s.Checkout(context.Background(), "u1",
		[]orders.CartLine{{ProductID: p, Qty: 1}}, addr, "card")
	require.NoError(t, err)

	_, err = s.Order(context.Background(), o.ID, orders.Actor{UserID: "u2"})
	require.ErrorIs(t, err, orders.ErrOrderNotFound, "stranger sees nothing")

	_, err = s.Order(context.Background(), o.ID, orders.Actor{UserID: "admin", Admin: true})
	require.NoError(t, err)

	_, _, err = s.Transition(context.Background(), o.ID, orders.StatusCancelled, orders.Actor{UserID: "u2"})
	require.ErrorIs(t, err, orders.ErrOrderNotFound, "stranger cannot mutate either")
}

func TestOwnerCannotAdvanceStatus(t *testing.T) {
	s := ordertest.NewStore()
	p := s.AddProduct("keyboard", 4500, 10)

	o, err := s.Checkout(context.Background(), "u1",
		[]orders.CartLine{{ProductID: p, Qty: 1}}, addr, "card")
	require.NoError(t, err)

	_, _, err = s.Transition(context.Background(), o.ID, orders.StatusProcessing, orders.Actor{UserID: "u1"})
	require.ErrorIs(t, err, orders.ErrForbidden)

	got, from, err := s.Transition(context.Background(), o.ID, orders.StatusProcessing, orders.Actor{UserID: "staff", Admin: true})
	require.NoError(t, err)
	assert.Equal(t, orders.StatusProcessing, got.Status)
	assert.Equal(t, orders.StatusPending, from)
}

func TestStateMachineClosureWalk(t *testing.T) {
	all := []orders.Status{
		orders.StatusPending, orders.StatusProcessing, orders.StatusShipped,
		orders.StatusDelivered, orders.StatusCancelled,
	}
	valid := map[orders.Status]bool{}
	for _, s := range all {
		valid[s] = true
	}

	rapid.Check(t, func(t *rapid.T) {
		s := ordertest.NewStore()
		p := s.AddProduct("widget", 100, 1000)
		o, err := s.Checkout(context.Background(), "u1",
			[]orders.CartLine{{ProductID: p, Qty: 1}}, addr, "card")
		if err != nil {
			t.Fatalf("checkout: %v", err)
		}

		steps := rapid.IntRange(1, 20).Draw(t, "steps")
		terminalSeen := false
		for i := 0; i < steps; i++ {
			to := rapid.SampledFrom(all).Draw(t, "to")
			admin := rapid.Bool().Draw(t, "admin")
			actor := orders.Actor{UserID: "u1", Admin: admin}

			got, _, err := s.Transition(context.Background(), o.ID, to, actor)
			if terminalSeen && err == nil {
				t.Fatalf("transition out of terminal state succeeded: -> %s", to)
			}
			cur := got.Status
			if err != nil {
				fresh, gerr := s.Order(context.Background(), o.ID, orders.Actor{UserID: "u1"})
				if gerr != nil {
					t.Fatalf("order read: %v", gerr)
				}
				cur = fresh.Status
			}
			if !valid[cur] {
				t.Fatalf("order reached status outside the machine: %q", cur)
			}
			if orders.Terminal(cur) {
				terminalSeen = true
			}
		}
	})
}
