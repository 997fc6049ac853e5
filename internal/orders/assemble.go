package orders

import "sort"

// NormalizeLines validates a checkout request before any storage call: every
// qty must be positive, duplicate product lines are merged, and the result is
// sorted ascending by product id. Concurrent checkouts touching overlapping
// products then acquire row locks in the same order, which rules out
// cross-checkout deadlocks.
func NormalizeLines(lines []CartLine) ([]CartLine, error) {
	if len(lines) == 0 {
		return nil, &InvalidQuantityError{Qty: 0}
	}
	merged := make(map[string]int, len(lines))
	for _, l := range lines {
		if l.Qty <= 0 {
			return nil, &InvalidQuantityError{ProductID: l.ProductID, Qty: l.Qty}
		}
		merged[l.ProductID] += l.Qty
	}
	out := make([]CartLine, 0, len(merged))
	for id, qty := range merged {
		out = append(out, CartLine{ProductID: id, Qty: qty})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out, nil
}

// BuildItems assembles the line-item drafts from normalized lines and the
// prices read from the catalog inside the checkout transaction. A line whose
// product has no price entry means the product does not exist; the whole draft
// is abandoned, never a partial one.
func BuildItems(orderID string, lines []CartLine, prices map[string]int) ([]OrderItem, error) {
	items := make([]OrderItem, 0, len(lines))
	for _, l := range lines {
		price, ok := prices[l.ProductID]
		if !ok {
			return nil, &ProductNotFoundError{ProductID: l.ProductID}
		}
		items = append(items, OrderItem{
			OrderID:    orderID,
			ProductID:  l.ProductID,
			Qty:        l.Qty,
			PriceCents: price,
		})
	}
	return items, nil
}
