package orders

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
)

func ValidStatus(s Status) bool {
	switch s {
	case StatusPending, StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

// Terminal states admit no further transition, cancellation included.
func Terminal(s Status) bool {
	return s == StatusDelivered || s == StatusCancelled
}

type edge struct{ from, to Status }

// adminNext is the full set of legal edges: any forward move along
// pending -> processing -> shipped -> delivered, plus cancellation while the
// order has not shipped. Same-state edges are absent on purpose, so a
// double-submission is rejected instead of silently accepted.
var adminNext = map[edge]bool{
	{StatusPending, StatusProcessing}: true,
	{StatusPending, StatusShipped}:    true,
	{StatusPending, StatusDelivered}:  true,
	{StatusPending, StatusCancelled}:  true,

	{StatusProcessing, StatusShipped}:   true,
	{StatusProcessing, StatusDelivered}: true,
	{StatusProcessing, StatusCancelled}: true,

	{StatusShipped, StatusDelivered}: true,
}

// ownerNext is what the order's owner may request: cancellation only, and only
// before the order ships.
var ownerNext = map[edge]bool{
	{StatusPending, StatusCancelled}:    true,
	{StatusProcessing, StatusCancelled}: true,
}

// CheckTransition decides whether actorAdmin may move an order from one status
// to another. An edge nobody may take is InvalidTransition; an edge only an
// administrator may take is Forbidden for everyone else.
func CheckTransition(from, to Status, actorAdmin bool) error {
	if !ValidStatus(from) || !ValidStatus(to) {
		return &InvalidTransitionError{From: from, To: to}
	}
	e := edge{from, to}
	if !adminNext[e] {
		return &InvalidTransitionError{From: from, To: to}
	}
	if !actorAdmin && !ownerNext[e] {
		return ErrForbidden
	}
	return nil
}
