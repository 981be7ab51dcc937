package orders

import (
	"context"
	"github.com/google/uuid"
	"sort"
	"sync"
	"time"
)

// MemoryRepo is a thread-safe in-process Repository for local runs and tests.
type MemoryRepo struct {
	mu   sync.RWMutex
	data map[string]memEntry
	seq  int64
}

type memEntry struct {
	order Order
	seq   int64 // insertion order, breaks CreatedAt ties
}

var _ Repository = (*MemoryRepo)(nil)

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{data: make(map[string]memEntry)}
}

func (m *MemoryRepo) Ping(context.Context) error { return nil }

func (m *MemoryRepo) Create(_ context.Context, o *Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now().UTC()
	}
	o.UpdatedAt = o.CreatedAt
	m.seq++
	m.data[o.ID] = memEntry{order: clone(*o), seq: m.seq}
	return nil
}

func (m *MemoryRepo) Get(_ context.Context, id string) (Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.data[id]
	if !ok {
		return Order{}, NotFoundf("order not found")
	}
	return clone(e.order), nil
}

func (m *MemoryRepo) ListByUser(_ context.Context, userID string, page, pageSize int) ([]Order, int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var mine []memEntry
	for _, e := range m.data {
		if e.order.User == userID {
			mine = append(mine, e)
		}
	}
	sort.Slice(mine, func(i, j int) bool {
		a, b := mine[i], mine[j]
		if !a.order.CreatedAt.Equal(b.order.CreatedAt) {
			return a.order.CreatedAt.After(b.order.CreatedAt)
		}
		return a.seq > b.seq
	})
	total := int64(len(mine))
	out := []Order{}
	start := Offset(page, pageSize)
	for i := start; i < total && i < start+int64(pageSize); i++ {
		out = append(out, clone(mine[i].order))
	}
	return out, total, nil
}

func (m *MemoryRepo) UpdateStatus(_ context.Context, id string, from, to Status) (Order, error) {
	return m.update(id, from, func(o *Order) { o.Status = to })
}

func (m *MemoryRepo) UpdateAddress(_ context.Context, id string, from Status, addr Address) (Order, error) {
	return m.update(id, from, func(o *Order) { o.ShippingAddress = addr })
}

func (m *MemoryRepo) update(id string, from Status, mutate func(*Order)) (Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.data[id]
	if !ok {
		return Order{}, NotFoundf("order not found")
	}
	if e.order.Status != from {
		return Order{}, ErrStale
	}
	mutate(&e.order)
	e.order.UpdatedAt = time.Now().UTC()
	m.data[id] = e
	return clone(e.order), nil
}

func clone(o Order) Order {
	o.Items = append([]LineItem(nil), o.Items...)
	return o
}
