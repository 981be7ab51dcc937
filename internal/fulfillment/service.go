package fulfillment

import (
	"context"
	"fmt"
	kafkax "github.com/ariefcatur/go-shop-orders/internal/kafka"
	"github.com/ariefcatur/go-shop-orders/internal/orders"
	kafkago "github.com/segmentio/kafka-go"
	"log/slog"
)

// Transitioner applies system-initiated status changes.
type Transitioner interface {
	Transition(ctx context.Context, id string, to orders.Status, reason string) (orders.Order, error)
}

// Deduper records which events were already handled.
type Deduper interface {
	FirstSeen(ctx context.Context, eventID string) (bool, error)
	Forget(ctx context.Context, eventID string) error
}

// Recorder counts handled events; metrics.Registry satisfies it.
type Recorder interface {
	EventHandled(eventType, result string)
}

// Service consumes order.status.requested events from the fulfillment side
// (payment confirmed, shipped, delivered) and moves orders along the state machine.
type Service struct {
	Orders   Transitioner
	Dedup    Deduper  // optional
	Recorder Recorder // optional
}

// HandleStatusRequested is installed as the consumer handler. A nil return
// commits the offset; requests the state machine rejects are logged and
// committed since redelivery cannot change the verdict.
func (s *Service) HandleStatusRequested(ctx context.Context, m kafkago.Message) error {
	env, err := kafkax.UnmarshalEnvelope(m.Value)
	if err != nil {
		slog.ErrorContext(ctx, "drop undecodable event", "offset", m.Offset, "error", err)
		s.record("unknown", "malformed")
		return nil
	}
	if env.EventType != orders.EventOrderStatusRequested {
		return nil
	}

	if s.Dedup != nil && env.EventID != "" {
		first, err := s.Dedup.FirstSeen(ctx, env.EventID)
		if err != nil {
			return fmt.Errorf("dedup %s: %w", env.EventID, err)
		}
		if !first {
			s.record(env.EventType, "duplicate")
			return nil
		}
	}

	p, err := kafkax.UnwrapPayload[orders.OrderStatusRequestedPayload](env.Payload)
	if err != nil {
		slog.ErrorContext(ctx, "drop event with bad payload", "event_id", env.EventID, "error", err)
		s.record(env.EventType, "malformed")
		return nil
	}

	o, err := s.Orders.Transition(ctx, p.OrderID, p.Status, p.Reason)
	if err == nil {
		slog.InfoContext(ctx, "status request applied", "event_id", env.EventID,
			"order_id", o.ID, "status", o.Status)
		s.record(env.EventType, "applied")
		return nil
	}
	switch orders.KindOf(err) {
	case orders.KindInvalidTransition, orders.KindNotFound, orders.KindValidation:
		slog.WarnContext(ctx, "status request rejected", "event_id", env.EventID,
			"order_id", p.OrderID, "status", p.Status, "error", err)
		s.record(env.EventType, "rejected")
		return nil
	}

	if s.Dedup != nil && env.EventID != "" {
		if ferr := s.Dedup.Forget(ctx, env.EventID); ferr != nil {
			slog.WarnContext(ctx, "forget dedup key", "event_id", env.EventID, "error", ferr)
		}
	}
	s.record(env.EventType, "failed")
	return fmt.Errorf("apply status %s to %s: %w", p.Status, p.OrderID, err)
}

func (s *Service) record(eventType, result string) {
	if s.Recorder != nil {
		s.Recorder.EventHandled(eventType, result)
	}
}
