package events

// Topic constants for domain events emitted by the storefront.
const (
	TopicCartItemAdded   = "cart.item_added"
	TopicCartItemRemoved = "cart.item_removed"
	TopicCartQtyUpdated  = "cart.qty_updated"
	TopicCartCleared     = "cart.cleared"
	TopicOrderCreated    = "order.created"
	TopicOrderPaid       = "order.paid"
	TopicOrderCanceled   = "order.canceled"
	TopicOrderRefunded   = "order.refunded"
	TopicPaymentFailed   = "payment.failed"
)

// DefaultTopics returns the canonical list of topics that support notifications.
func DefaultTopics() []string {
	return []string{
		TopicCartItemAdded,
		TopicCartItemRemoved,
		TopicCartQtyUpdated,
		TopicCartCleared,
		TopicOrderCreated,
		TopicOrderPaid,
		TopicOrderCanceled,
		TopicOrderRefunded,
		TopicPaymentFailed,
	}
}
