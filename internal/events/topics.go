package events

// Topics emitted by the storefront.
const (
	TopicOrderCreated       = "order.created"
	TopicOrderStatusChanged = "order.status_changed"
)

// DefaultTopics returns the topics that trigger customer notifications.
func DefaultTopics() []string {
	return []string{TopicOrderCreated, TopicOrderStatusChanged}
}

// OrderCreated is the payload of TopicOrderCreated.
type OrderCreated struct {
	OrderID string `json:"orderId"`
	UserID  string `json:"userId,omitempty"`
	Email   string `json:"email,omitempty"`
	Total   int64  `json:"total"`
	Items   int    `json:"items"`
}

// OrderStatusChanged is the payload of TopicOrderStatusChanged.
type OrderStatusChanged struct {
	OrderID string `json:"orderId"`
	From    string `json:"from"`
	To      string `json:"to"`
}
