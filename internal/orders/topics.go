package orders

const (
	TopicOrderCreated         = "order.created"
	TopicOrderCancelled       = "order.cancelled"
	TopicOrderAddressUpdated  = "order.address_updated"
	TopicOrderStatusChanged   = "order.status_changed"
	TopicOrderStatusRequested = "order.status.requested"
)

// Partition key = order_id so every event of one order keeps its order.
func PartitionKey(orderID string) []byte { return []byte(orderID) }
