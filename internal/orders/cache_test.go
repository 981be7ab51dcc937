package orders

import (
	"context"
	"testing"
)

type mapCache struct {
	m       map[string]Order
	evicted int
}

func (c *mapCache) Get(_ context.Context, id string) (Order, bool, error) {
	o, ok := c.m[id]
	return o, ok, nil
}

func (c *mapCache) Put(_ context.Context, o Order) error {
	c.m[o.ID] = o
	return nil
}

func (c *mapCache) Evict(_ context.Context, id string) error {
	delete(c.m, id)
	c.evicted++
	return nil
}

func TestCachedRepoStaysCoherent(t *testing.T) {
	mem := NewMemoryRepo()
	cache := &mapCache{m: map[string]Order{}}
	repo := &CachedRepo{Repository: mem, Cache: cache}
	o := seedOrder(t, repo, owner.ID, StatusPending)

	if _, err := repo.Get(context.Background(), o.ID); err != nil {
		t.Fatal(err)
	}
	if _, ok := cache.m[o.ID]; !ok {
		t.Fatal("Get should populate the cache")
	}

	if _, err := repo.UpdateStatus(context.Background(), o.ID, StatusPending, StatusCancelled); err != nil {
		t.Fatal(err)
	}
	got, _ := repo.Get(context.Background(), o.ID)
	if got.Status != StatusCancelled {
		t.Fatalf("cached status = %s after update", got.Status)
	}

	// a stale write drops the entry
	if _, err := repo.UpdateStatus(context.Background(), o.ID, StatusPending, StatusConfirmed); err == nil {
		t.Fatal("expected stale error")
	}
	if _, ok := cache.m[o.ID]; ok || cache.evicted != 1 {
		t.Fatalf("entry not evicted: %+v", cache)
	}
}
