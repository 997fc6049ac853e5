package orders

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeLinesRejectsNonPositiveQty(t *testing.T) {
	for _, qty := range []int{0, -1, -100} {
		_, err := NormalizeLines([]CartLine{{ProductID: "p1", Qty: qty}})
		var iq *InvalidQuantityError
		require.ErrorAs(t, err, &iq, "qty=%d", qty)
		assert.Equal(t, "p1", iq.ProductID)
		assert.Equal(t, qty, iq.Qty)
	}
}

func TestNormalizeLinesRejectsEmptyCart(t *testing.T) {
	_, err := NormalizeLines(nil)
	var iq *InvalidQuantityError
	require.ErrorAs(t, err, &iq)
}

func TestNormalizeLinesSortsByProductID(t *testing.T) {
	out, err := NormalizeLines([]CartLine{
		{ProductID: "c", Qty: 1},
		{ProductID: "a", Qty: 2},
		{ProductID: "b", Qty: 3},
	})
	require.NoError(t, err)
	require.True(t, sort.SliceIsSorted(out, func(i, j int) bool {
		return out[i].ProductID < out[j].ProductID
	}))
}

func TestNormalizeLinesMergesDuplicates(t *testing.T) {
	out, err := NormalizeLines([]CartLine{
		{ProductID: "a", Qty: 2},
		{ProductID: "b", Qty: 1},
		{ProductID: "a", Qty: 3},
	})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, CartLine{ProductID: "a", Qty: 5}, out[0])
	assert.Equal(t, CartLine{ProductID: "b", Qty: 1}, out[1])
}

func TestBuildItemsCapturesPrices(t *testing.T) {
	items, err := BuildItems("o1", []CartLine{
		{ProductID: "a", Qty: 2},
		{ProductID: "b", Qty: 1},
	}, map[string]int{"a": 1500, "b": 250})
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, 1500, items[0].PriceCents)
	assert.Equal(t, 250, items[1].PriceCents)
	assert.Equal(t, "o1", items[0].OrderID)
}

func TestBuildItemsUnknownProductAbortsWhole(t *testing.T) {
	items, err := BuildItems("o1", []CartLine{
		{ProductID: "a", Qty: 1},
		{ProductID: "ghost", Qty: 1},
	}, map[string]int{"a": 100})
	var nf *ProductNotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "ghost", nf.ProductID)
	assert.Nil(t, items, "no partial draft on failure")
}

func TestOrderTotalDerivedFromItems(t *testing.T) {
	o := Order{Items: []OrderItem{
		{Qty: 2, PriceCents: 1500},
		{Qty: 1, PriceCents: 250},
	}}
	assert.Equal(t, 3250, o.TotalCents())
	assert.Equal(t, 0, Order{}.TotalCents())
}

func TestFailingProductID(t *testing.T) {
	assert.Equal(t, "x", FailingProductID(&ProductNotFoundError{ProductID: "x"}))
	assert.Equal(t, "y", FailingProductID(&InsufficientStockError{ProductID: "y"}))
	assert.Equal(t, "z", FailingProductID(&InvalidQuantityError{ProductID: "z"}))
	assert.Equal(t, "", FailingProductID(ErrOrderNotFound))
}
