package orders

import (
	"context"
	"log/slog"
)

// OrderCache is a read-through cache of single orders keyed by id.
type OrderCache interface {
	Get(ctx context.Context, id string) (Order, bool, error)
	Put(ctx context.Context, o Order) error
	Evict(ctx context.Context, id string) error
}

// CachedRepo serves Get from Cache and refreshes the entry after every update.
// Cache failures degrade to the underlying Repository.
type CachedRepo struct {
	Repository
	Cache OrderCache
}

func (c *CachedRepo) Get(ctx context.Context, id string) (Order, error) {
	if o, ok, err := c.Cache.Get(ctx, id); err == nil && ok {
		return o, nil
	} else if err != nil {
		slog.WarnContext(ctx, "order cache get", "order_id", id, "error", err)
	}
	o, err := c.Repository.Get(ctx, id)
	if err != nil {
		return Order{}, err
	}
	c.put(ctx, o)
	return o, nil
}

func (c *CachedRepo) UpdateStatus(ctx context.Context, id string, from, to Status) (Order, error) {
	o, err := c.Repository.UpdateStatus(ctx, id, from, to)
	return c.refresh(ctx, id, o, err)
}

func (c *CachedRepo) UpdateAddress(ctx context.Context, id string, from Status, addr Address) (Order, error) {
	o, err := c.Repository.UpdateAddress(ctx, id, from, addr)
	return c.refresh(ctx, id, o, err)
}

// refresh drops the entry on any failure (including ErrStale) so the next
// read goes to the store.
func (c *CachedRepo) refresh(ctx context.Context, id string, o Order, err error) (Order, error) {
	if err != nil {
		if eerr := c.Cache.Evict(ctx, id); eerr != nil {
			slog.WarnContext(ctx, "order cache evict", "order_id", id, "error", eerr)
		}
		return Order{}, err
	}
	c.put(ctx, o)
	return o, nil
}

func (c *CachedRepo) put(ctx context.Context, o Order) {
	if err := c.Cache.Put(ctx, o); err != nil {
		slog.WarnContext(ctx, "order cache put", "order_id", o.ID, "error", err)
	}
}
