package orders

import (
	"context"
	"errors"
	"github.com/shopspring/decimal"
	"sync"
	"sync/atomic"
)

type fakeCart struct {
	items []CartItem
	err   error
	calls atomic.Int32
}

func (f *fakeCart) Items(context.Context, string, string) ([]CartItem, error) {
	f.calls.Add(1)
	return f.items, f.err
}

type fakeCatalog struct {
	mu       sync.Mutex
	products map[string]Product
	errs     map[string]error
	calls    map[string]int
}

func newCatalog(ps ...Product) *fakeCatalog {
	c := &fakeCatalog{products: map[string]Product{}, errs: map[string]error{}, calls: map[string]int{}}
	for _, p := range ps {
		c.products[p.ID] = p
	}
	return c
}

func (f *fakeCatalog) Product(_ context.Context, id, _ string) (Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[id]++
	if err := f.errs[id]; err != nil {
		return Product{}, err
	}
	p, ok := f.products[id]
	if !ok {
		return Product{}, NotFoundf("product %s not found", id)
	}
	return p, nil
}

func (f *fakeCatalog) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

type capturedEvent struct {
	topic string
	env   Envelope
}

type fakePublisher struct {
	mu     sync.Mutex
	events []capturedEvent
}

func (f *fakePublisher) Publish(_ context.Context, topic string, ev Envelope) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, capturedEvent{topic: topic, env: ev})
}

type memIdem struct {
	mu   sync.Mutex
	keys map[string]string
}

// memIdem stores "" for a claimed key that has not completed yet.
func (m *memIdem) Claim(_ context.Context, key string) (bool, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id, ok := m.keys[key]; ok {
		return false, id, nil
	}
	m.keys[key] = ""
	return true, "", nil
}

func (m *memIdem) Complete(_ context.Context, key, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys[key] = id
	return nil
}

func (m *memIdem) Release(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.keys[key] == "" {
		delete(m.keys, key)
	}
	return nil
}

// staleOnce makes the first conditional update lose a race.
type staleOnce struct {
	Repository
	fired bool
}

func (s *staleOnce) UpdateStatus(ctx context.Context, id string, from, to Status) (Order, error) {
	if !s.fired {
		s.fired = true
		return Order{}, ErrStale
	}
	return s.Repository.UpdateStatus(ctx, id, from, to)
}

var errBoom = errors.New("boom")

func inr(s string) Money {
	return Money{Amount: decimal.RequireFromString(s), Currency: CurrencyINR}
}

func validAddress() *Address {
	return &Address{Street: " 12 MG Road ", City: "Bengaluru", State: "KA", Country: "IN", Pincode: "560001", Phone: "9876543210"}
}
