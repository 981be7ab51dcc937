package orders

import (
	"context"
	"errors"
	"fmt"
	"github.com/ariefcatur/go-shop-orders/internal/auth"
	"log/slog"
)

// conditional updates are retried this many times when another writer moved
// the order between our read and our write.
const maxStaleRetries = 3

// Lifecycle authorizes and applies every change to an existing order.
// Existence and access are checked before any write; the write is always the
// last step.
type Lifecycle struct {
	Repo        Repository
	Publisher   Publisher // optional
	Metrics     Metrics   // optional
	ServiceName string
}

func (l *Lifecycle) load(ctx context.Context, id string, who auth.Identity) (Order, error) {
	o, err := l.Repo.Get(ctx, id)
	if err != nil {
		return Order{}, err
	}
	if !CanAccessOrder(who, o) {
		return Order{}, &Error{Kind: KindForbidden, Message: "not allowed to access this order"}
	}
	return o, nil
}

func (l *Lifecycle) GetOrder(ctx context.Context, id string, who auth.Identity) (Order, error) {
	return l.load(ctx, id, who)
}

func (l *Lifecycle) ListMyOrders(ctx context.Context, who auth.Identity, page, pageSize int) (Page, error) {
	if page < 1 || pageSize < 1 {
		return Page{}, Validationf("page and pageSize must be positive")
	}
	data, total, err := l.Repo.ListByUser(ctx, who.ID, page, pageSize)
	if err != nil {
		return Page{}, fmt.Errorf("list orders of %s: %w", who.ID, err)
	}
	return NewPage(data, page, pageSize, total), nil
}

func (l *Lifecycle) CancelOrder(ctx context.Context, id string, who auth.Identity) (Order, error) {
	for attempt := 0; ; attempt++ {
		o, err := l.load(ctx, id, who)
		if err != nil {
			return Order{}, err
		}
		if !CanTransition(o.Status, StatusCancelled) {
			return Order{}, InvalidTransitionf("order in status %s cannot be cancelled", o.Status)
		}
		updated, err := l.Repo.UpdateStatus(ctx, id, o.Status, StatusCancelled)
		if errors.Is(err, ErrStale) && attempt < maxStaleRetries {
			continue
		}
		if err != nil {
			return Order{}, fmt.Errorf("cancel order %s: %w", id, err)
		}
		metricsOrNoop(l.Metrics).StatusChanged(o.Status, StatusCancelled)
		publish(ctx, l.Publisher, l.ServiceName, TopicOrderCancelled, EventOrderCancelled, id, OrderCancelledPayload{
			OrderID:     id,
			UserID:      updated.User,
			PrevStatus:  o.Status,
			CancelledBy: who.ID,
		})
		slog.InfoContext(ctx, "order cancelled", "order_id", id, "from", o.Status, "by", who.ID)
		return updated, nil
	}
}

func (l *Lifecycle) UpdateShippingAddress(ctx context.Context, id string, who auth.Identity, addr *Address) (Order, error) {
	for attempt := 0; ; attempt++ {
		o, err := l.load(ctx, id, who)
		if err != nil {
			return Order{}, err
		}
		if !o.Status.AddressMutable() {
			return Order{}, InvalidTransitionf("shipping address cannot change once the order is %s", o.Status)
		}
		valid, err := ValidateAddress(addr)
		if err != nil {
			return Order{}, err
		}
		updated, err := l.Repo.UpdateAddress(ctx, id, o.Status, valid)
		if errors.Is(err, ErrStale) && attempt < maxStaleRetries {
			continue
		}
		if err != nil {
			return Order{}, fmt.Errorf("update address of %s: %w", id, err)
		}
		publish(ctx, l.Publisher, l.ServiceName, TopicOrderAddressUpdated, EventOrderAddressUpdated, id, OrderAddressUpdatedPayload{
			OrderID: id,
			Address: valid,
		})
		slog.InfoContext(ctx, "order address updated", "order_id", id, "by", who.ID)
		return updated, nil
	}
}

// Transition moves an order to status to on behalf of the system (fulfillment
// feed), enforcing the state machine. Moving to the current status is a no-op.
func (l *Lifecycle) Transition(ctx context.Context, id string, to Status, reason string) (Order, error) {
	if !to.Valid() {
		return Order{}, Validationf("unknown status %q", to)
	}
	for attempt := 0; ; attempt++ {
		o, err := l.Repo.Get(ctx, id)
		if err != nil {
			return Order{}, err
		}
		if o.Status == to {
			return o, nil
		}
		if !CanTransition(o.Status, to) {
			return Order{}, InvalidTransitionf("order %s cannot move from %s to %s", id, o.Status, to)
		}
		updated, err := l.Repo.UpdateStatus(ctx, id, o.Status, to)
		if errors.Is(err, ErrStale) && attempt < maxStaleRetries {
			continue
		}
		if err != nil {
			return Order{}, fmt.Errorf("transition order %s: %w", id, err)
		}
		metricsOrNoop(l.Metrics).StatusChanged(o.Status, to)
		publish(ctx, l.Publisher, l.ServiceName, TopicOrderStatusChanged, EventOrderStatusChanged, id, OrderStatusChangedPayload{
			OrderID: id,
			From:    o.Status,
			To:      to,
			Reason:  reason,
		})
		slog.InfoContext(ctx, "order status changed", "order_id", id, "from", o.Status, "to", to)
		return updated, nil
	}
}

func publish(ctx context.Context, p Publisher, producer, topic, eventType, orderID string, payload any) {
	if p == nil {
		return
	}
	ev, err := NewEnvelope(ctx, producer, eventType, orderID, payload)
	if err != nil {
		slog.ErrorContext(ctx, "build event", "event_type", eventType, "order_id", orderID, "error", err)
		return
	}
	p.Publish(ctx, topic, ev)
}
