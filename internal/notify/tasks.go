package notify

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/noah-isme/toko-storefront/internal/db"
	"github.com/noah-isme/toko-storefront/internal/events"
)

// Task types consumed by cmd/worker.
const (
	TaskOrderConfirmation = "order:confirmation"
	TaskOrderStatus       = "order:status"
)

// OrderTask is the payload of both order task types. Fields not carried by
// the originating event stay empty.
type OrderTask struct {
	EventID string `json:"eventId"`
	Topic   string `json:"topic"`
	OrderID string `json:"orderId"`
	UserID  string `json:"userId,omitempty"`
	Email   string `json:"email,omitempty"`
	Total   int64  `json:"total,omitempty"`
	Items   int    `json:"items,omitempty"`
	From    string `json:"from,omitempty"`
	To      string `json:"to,omitempty"`
}

// taskTypeFor maps a topic to its task type; ok is false for topics that do
// not notify the customer.
func taskTypeFor(topic string) (string, bool) {
	switch topic {
	case events.TopicOrderCreated:
		return TaskOrderConfirmation, true
	case events.TopicOrderStatusChanged:
		return TaskOrderStatus, true
	}
	return "", false
}

func newOrderTask(ev db.DomainEvent) (OrderTask, error) {
	task := OrderTask{EventID: db.UUIDString(ev.ID), Topic: ev.Topic}
	switch ev.Topic {
	case events.TopicOrderCreated:
		var p events.OrderCreated
		if err := json.Unmarshal(ev.Payload, &p); err != nil {
			return OrderTask{}, fmt.Errorf("decode %s: %w", ev.Topic, err)
		}
		task.OrderID, task.UserID, task.Email = p.OrderID, p.UserID, p.Email
		task.Total, task.Items = p.Total, p.Items
	case events.TopicOrderStatusChanged:
		var p events.OrderStatusChanged
		if err := json.Unmarshal(ev.Payload, &p); err != nil {
			return OrderTask{}, fmt.Errorf("decode %s: %w", ev.Topic, err)
		}
		task.OrderID, task.From, task.To = p.OrderID, p.From, p.To
	default:
		return OrderTask{}, fmt.Errorf("unsupported topic %q", ev.Topic)
	}
	if task.OrderID == "" {
		task.OrderID = db.UUIDString(ev.AggregateID)
	}
	return task, nil
}

// decodeTask parses an asynq task payload. Malformed payloads are never
// retried.
func decodeTask(t *asynq.Task) (OrderTask, error) {
	var task OrderTask
	if err := json.Unmarshal(t.Payload(), &task); err != nil {
		return OrderTask{}, fmt.Errorf("decode %s: %v: %w", t.Type(), err, asynq.SkipRetry)
	}
	if task.OrderID == "" {
		return OrderTask{}, fmt.Errorf("%s without order id: %w", t.Type(), asynq.SkipRetry)
	}
	return task, nil
}
