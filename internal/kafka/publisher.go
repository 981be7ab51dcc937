package kafka

import (
	"context"
	"github.com/ariefcatur/go-shop-orders/internal/orders"
	"github.com/segmentio/kafka-go"
	"strconv"
)

// EventPublisher adapts Producer to orders.Publisher.
type EventPublisher struct{ Producer *Producer }

var _ orders.Publisher = EventPublisher{}

func (e EventPublisher) Publish(_ context.Context, topic string, ev orders.Envelope) {
	e.Producer.Publish(topic, orders.PartitionKey(ev.CorrelationID), MustMarshal(ev),
		kafka.Header{Key: "x-event-type", Value: []byte(ev.EventType)},
		kafka.Header{Key: "x-event-version", Value: []byte(strconv.Itoa(ev.EventVersion))},
	)
}
