package orders

import (
	"context"
	"errors"
	"github.com/ariefcatur/go-shop-orders/internal/auth"
	"github.com/shopspring/decimal"
	"testing"
)

var buyer = auth.Identity{ID: "u1", Role: auth.RoleUser}

func newOrchestrator(cart *fakeCart, cat *fakeCatalog) (*Orchestrator, *MemoryRepo, *fakePublisher) {
	repo := NewMemoryRepo()
	pub := &fakePublisher{}
	return &Orchestrator{Repo: repo, Cart: cart, Catalog: cat, Publisher: pub, ServiceName: "test"}, repo, pub
}

func TestCreateOrderPricesFromCatalog(t *testing.T) {
	cart := &fakeCart{items: []CartItem{{ProductID: "p1", Quantity: 2}, {ProductID: "p2", Quantity: 1}}}
	cat := newCatalog(
		Product{ID: "p1", Title: "Mug", Price: inr("199.99"), Stock: 5},
		Product{ID: "p2", Title: "Pen", Price: inr("10.01"), Stock: 1},
	)
	s, repo, pub := newOrchestrator(cart, cat)

	o, replayed, err := s.CreateOrder(context.Background(), CreateRequest{Caller: buyer, Token: "tok", ShippingAddress: validAddress()})
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	if replayed {
		t.Fatal("first create must not be a replay")
	}
	if o.Status != StatusPending || o.User != "u1" {
		t.Fatalf("order = %+v", o)
	}
	if want := decimal.RequireFromString("409.99"); !o.TotalPrice.Amount.Equal(want) || o.TotalPrice.Currency != CurrencyINR {
		t.Fatalf("total = %s %s, want %s INR", o.TotalPrice.Amount, o.TotalPrice.Currency, want)
	}
	if len(o.Items) != 2 || o.Items[0].Product != "p1" || o.Items[1].Product != "p2" {
		t.Fatalf("items out of cart order: %+v", o.Items)
	}
	if o.Items[0].Title != "Mug" || !o.Items[0].Price.Amount.Equal(decimal.RequireFromString("199.99")) {
		t.Fatalf("line item snapshot = %+v", o.Items[0])
	}
	if o.ShippingAddress.Street != "12 MG Road" {
		t.Fatalf("address not normalized: %q", o.ShippingAddress.Street)
	}
	if _, err := repo.Get(context.Background(), o.ID); err != nil {
		t.Fatalf("order not persisted: %v", err)
	}
	if len(pub.events) != 1 || pub.events[0].topic != TopicOrderCreated || pub.events[0].env.CorrelationID != o.ID {
		t.Fatalf("events = %+v", pub.events)
	}
}

func TestCreateOrderDuplicateProductsSumQuantities(t *testing.T) {
	cart := &fakeCart{items: []CartItem{{ProductID: "p1", Quantity: 2}, {ProductID: "p1", Quantity: 2}}}
	cat := newCatalog(Product{ID: "p1", Title: "Mug", Price: inr("5"), Stock: 3})
	s, repo, _ := newOrchestrator(cart, cat)

	_, _, err := s.CreateOrder(context.Background(), CreateRequest{Caller: buyer, ShippingAddress: validAddress()})
	if !errors.Is(err, ErrInsufficientStock) {
		t.Fatalf("err = %v, want insufficient stock", err)
	}
	if cat.calls["p1"] != 1 {
		t.Fatalf("catalog calls for p1 = %d, want 1", cat.calls["p1"])
	}
	if _, total, _ := repo.ListByUser(context.Background(), "u1", 1, 10); total != 0 {
		t.Fatalf("persisted %d orders, want 0", total)
	}
}

func TestCreateOrderFailures(t *testing.T) {
	cases := []struct {
		name  string
		cart  *fakeCart
		cat   *fakeCatalog
		addr  *Address
		want  error
		calls bool // whether the cart should have been read
	}{
		{
			name: "missing address",
			cart: &fakeCart{items: []CartItem{{ProductID: "p1", Quantity: 1}}},
			cat:  newCatalog(Product{ID: "p1", Price: inr("1"), Stock: 1}),
			want: ErrValidation,
		},
		{
			name:  "empty cart",
			cart:  &fakeCart{},
			cat:   newCatalog(),
			addr:  validAddress(),
			want:  ErrValidation,
			calls: true,
		},
		{
			name:  "insufficient stock",
			cart:  &fakeCart{items: []CartItem{{ProductID: "p1", Quantity: 4}}},
			cat:   newCatalog(Product{ID: "p1", Price: inr("1"), Stock: 3}),
			addr:  validAddress(),
			want:  ErrInsufficientStock,
			calls: true,
		},
		{
			name:  "unknown product",
			cart:  &fakeCart{items: []CartItem{{ProductID: "ghost", Quantity: 1}}},
			cat:   newCatalog(),
			addr:  validAddress(),
			want:  ErrNotFound,
			calls: true,
		},
		{
			name:  "cart unavailable",
			cart:  &fakeCart{err: errBoom},
			cat:   newCatalog(),
			addr:  validAddress(),
			want:  ErrUpstreamUnavailable,
			calls: true,
		},
		{
			name:  "zero quantity",
			cart:  &fakeCart{items: []CartItem{{ProductID: "p1", Quantity: 0}}},
			cat:   newCatalog(Product{ID: "p1", Price: inr("1"), Stock: 3}),
			addr:  validAddress(),
			want:  ErrValidation,
			calls: true,
		},
		{
			name: "mixed currencies",
			cart: &fakeCart{items: []CartItem{{ProductID: "p1", Quantity: 1}, {ProductID: "p2", Quantity: 1}}},
			cat: newCatalog(
				Product{ID: "p1", Price: inr("1"), Stock: 3},
				Product{ID: "p2", Price: Money{Amount: decimal.NewFromInt(1), Currency: CurrencyUSD}, Stock: 3},
			),
			addr:  validAddress(),
			want:  ErrValidation,
			calls: true,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s, repo, pub := newOrchestrator(tc.cart, tc.cat)
			_, _, err := s.CreateOrder(context.Background(), CreateRequest{Caller: buyer, ShippingAddress: tc.addr})
			if !errors.Is(err, tc.want) {
				t.Fatalf("err = %v, want kind %v", err, tc.want)
			}
			if got := tc.cart.calls.Load() > 0; got != tc.calls {
				t.Fatalf("cart read = %v, want %v", got, tc.calls)
			}
			if _, total, _ := repo.ListByUser(context.Background(), "u1", 1, 10); total != 0 {
				t.Fatalf("persisted %d orders on failure", total)
			}
			if len(pub.events) != 0 {
				t.Fatalf("published %d events on failure", len(pub.events))
			}
		})
	}
}

func TestCreateOrderCatalogFailureIsUpstream(t *testing.T) {
	cart := &fakeCart{items: []CartItem{{ProductID: "p1", Quantity: 1}, {ProductID: "p2", Quantity: 1}}}
	cat := newCatalog(Product{ID: "p1", Price: inr("1"), Stock: 3}, Product{ID: "p2", Price: inr("1"), Stock: 3})
	cat.errs["p2"] = errBoom
	s, _, _ := newOrchestrator(cart, cat)

	_, _, err := s.CreateOrder(context.Background(), CreateRequest{Caller: buyer, ShippingAddress: validAddress()})
	if KindOf(err) != KindUpstreamUnavailable {
		t.Fatalf("err = %v, want upstream unavailable", err)
	}
	if PublicMessage(err) != "catalog unavailable" {
		t.Fatalf("message = %q", PublicMessage(err))
	}
}

func TestCreateOrderIdempotentReplay(t *testing.T) {
	cart := &fakeCart{items: []CartItem{{ProductID: "p1", Quantity: 1}}}
	cat := newCatalog(Product{ID: "p1", Price: inr("50"), Stock: 10})
	s, repo, _ := newOrchestrator(cart, cat)
	s.Idempotency = &memIdem{keys: map[string]string{}}

	req := CreateRequest{Caller: buyer, ShippingAddress: validAddress(), IdempotencyKey: "k-1"}
	first, _, err := s.CreateOrder(context.Background(), req)
	if err != nil {
		t.Fatalf("first create: %v", err)
	}
	second, replayed, err := s.CreateOrder(context.Background(), req)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if !replayed || second.ID != first.ID {
		t.Fatalf("replay = %v id %s, want true id %s", replayed, second.ID, first.ID)
	}
	if cart.calls.Load() != 1 || cat.total() != 1 {
		t.Fatalf("replay hit upstreams: cart=%d catalog=%d", cart.calls.Load(), cat.total())
	}

	// same key from another user is a different request
	other := req
	other.Caller = auth.Identity{ID: "u2", Role: auth.RoleUser}
	o2, replayed, err := s.CreateOrder(context.Background(), other)
	if err != nil || replayed || o2.ID == first.ID {
		t.Fatalf("other user create = %+v replayed=%v err=%v", o2, replayed, err)
	}
	if _, total, _ := repo.ListByUser(context.Background(), "u1", 1, 10); total != 1 {
		t.Fatalf("u1 orders = %d, want 1", total)
	}
}

func TestCreateOrderIdempotencyKeyInProgress(t *testing.T) {
	cart := &fakeCart{items: []CartItem{{ProductID: "p1", Quantity: 1}}}
	cat := newCatalog(Product{ID: "p1", Price: inr("50"), Stock: 10})
	s, repo, _ := newOrchestrator(cart, cat)
	// claimed by a request that has not finished yet
	s.Idempotency = &memIdem{keys: map[string]string{"u1:k-1": ""}}

	_, replayed, err := s.CreateOrder(context.Background(), CreateRequest{Caller: buyer, ShippingAddress: validAddress(), IdempotencyKey: "k-1"})
	if !errors.Is(err, ErrConflict) || replayed {
		t.Fatalf("err = %v replayed=%v, want conflict", err, replayed)
	}
	if cart.calls.Load() != 0 || cat.total() != 0 {
		t.Fatalf("in-progress key reached upstreams: cart=%d catalog=%d", cart.calls.Load(), cat.total())
	}
	if _, total, _ := repo.ListByUser(context.Background(), "u1", 1, 10); total != 0 {
		t.Fatalf("persisted %d orders, want 0", total)
	}
}

func TestCreateOrderFailureReleasesIdempotencyKey(t *testing.T) {
	cart := &fakeCart{err: errBoom}
	cat := newCatalog(Product{ID: "p1", Price: inr("50"), Stock: 10})
	s, _, _ := newOrchestrator(cart, cat)
	idem := &memIdem{keys: map[string]string{}}
	s.Idempotency = idem

	req := CreateRequest{Caller: buyer, ShippingAddress: validAddress(), IdempotencyKey: "k-1"}
	if _, _, err := s.CreateOrder(context.Background(), req); !errors.Is(err, ErrUpstreamUnavailable) {
		t.Fatalf("err = %v, want upstream unavailable", err)
	}
	if _, held := idem.keys["u1:k-1"]; held {
		t.Fatal("failed create kept the idempotency key")
	}

	cart.err = nil
	cart.items = []CartItem{{ProductID: "p1", Quantity: 1}}
	o, replayed, err := s.CreateOrder(context.Background(), req)
	if err != nil || replayed {
		t.Fatalf("retry = %+v replayed=%v err=%v", o, replayed, err)
	}
	if idem.keys["u1:k-1"] != o.ID {
		t.Fatalf("key maps to %q, want %q", idem.keys["u1:k-1"], o.ID)
	}
}
