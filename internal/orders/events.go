package orders

import (
	"context"
	"encoding/json"
	"github.com/google/uuid"
	"time"
)

const (
	EventOrderCreated         = "OrderCreated"
	EventOrderCancelled       = "OrderCancelled"
	EventOrderAddressUpdated  = "OrderAddressUpdated"
	EventOrderStatusChanged   = "OrderStatusChanged"
	EventOrderStatusRequested = "OrderStatusRequested"
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order id
	Payload       json.RawMessage `json:"payload"`
}

// Publisher hands events to the broker. Implementations must not block the
// caller on broker latency; delivery is best effort.
type Publisher interface {
	Publish(ctx context.Context, topic string, ev Envelope)
}

type OrderCreatedPayload struct {
	OrderID    string     `json:"order_id"`
	UserID     string     `json:"user_id"`
	Items      []LineItem `json:"items"`
	TotalPrice Money      `json:"total_price"`
}

type OrderCancelledPayload struct {
	OrderID     string `json:"order_id"`
	UserID      string `json:"user_id"`
	PrevStatus  Status `json:"prev_status"`
	CancelledBy string `json:"cancelled_by"`
}

type OrderAddressUpdatedPayload struct {
	OrderID string  `json:"order_id"`
	Address Address `json:"address"`
}

type OrderStatusChangedPayload struct {
	OrderID string `json:"order_id"`
	From    Status `json:"from"`
	To      Status `json:"to"`
	Reason  string `json:"reason,omitempty"`
}

// OrderStatusRequestedPayload asks the order service to move an order to Status.
// It is produced by fulfillment tooling and consumed by the status worker.
type OrderStatusRequestedPayload struct {
	OrderID string `json:"order_id"`
	Status  Status `json:"status"`
	Reason  string `json:"reason,omitempty"`
}

func NewEnvelope(ctx context.Context, producer, eventType, orderID string, payload any) (Envelope, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      producer,
		TraceID:       traceID(ctx),
		CorrelationID: orderID,
		Payload:       b,
	}, nil
}
