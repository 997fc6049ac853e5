package orders

const (
	TopicOrderCreated       = "order.created"
	TopicOrderStatusChanged = "order.status_changed"
	TopicOrderCancelled     = "order.cancelled"
)

// Partition key is the order id so every event for one order keeps its order.
func PartitionKey(orderID string) []byte { return []byte(orderID) }
