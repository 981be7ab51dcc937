package orders

import (
	"context"
	"errors"
	"fmt"
	"github.com/ariefcatur/go-shop-orders/internal/auth"
	"testing"
	"time"
)

var (
	owner    = auth.Identity{ID: "owner", Role: auth.RoleUser}
	stranger = auth.Identity{ID: "stranger", Role: auth.RoleUser}
	admin    = auth.Identity{ID: "root", Role: auth.RoleAdmin}
)

func seedOrder(t *testing.T, repo Repository, user string, status Status) Order {
	t.Helper()
	addr, _ := ValidateAddress(validAddress())
	o := Order{User: user, Status: status, TotalPrice: inr("10"), ShippingAddress: addr,
		Items: []LineItem{{Product: "p1", Title: "Mug", Price: inr("10"), Quantity: 1}}}
	if err := repo.Create(context.Background(), &o); err != nil {
		t.Fatalf("seed: %v", err)
	}
	return o
}

func TestCancelOrder(t *testing.T) {
	cases := []struct {
		status Status
		who    auth.Identity
		want   error
	}{
		{StatusPending, owner, nil},
		{StatusConfirmed, owner, nil},
		{StatusConfirmed, admin, nil},
		{StatusShipped, owner, ErrInvalidTransition},
		{StatusDelivered, owner, ErrInvalidTransition},
		{StatusCancelled, owner, ErrInvalidTransition},
		{StatusPending, stranger, ErrForbidden},
	}
	for _, tc := range cases {
		t.Run(fmt.Sprintf("%s by %s", tc.status, tc.who.ID), func(t *testing.T) {
			repo := NewMemoryRepo()
			pub := &fakePublisher{}
			l := &Lifecycle{Repo: repo, Publisher: pub}
			o := seedOrder(t, repo, owner.ID, tc.status)

			got, err := l.CancelOrder(context.Background(), o.ID, tc.who)
			if tc.want != nil {
				if !errors.Is(err, tc.want) {
					t.Fatalf("err = %v, want %v", err, tc.want)
				}
				stored, _ := repo.Get(context.Background(), o.ID)
				if stored.Status != tc.status {
					t.Fatalf("status changed to %s on failure", stored.Status)
				}
				if len(pub.events) != 0 {
					t.Fatalf("published on failure: %+v", pub.events)
				}
				return
			}
			if err != nil {
				t.Fatalf("CancelOrder: %v", err)
			}
			if got.Status != StatusCancelled {
				t.Fatalf("status = %s", got.Status)
			}
			if len(pub.events) != 1 || pub.events[0].topic != TopicOrderCancelled {
				t.Fatalf("events = %+v", pub.events)
			}
		})
	}
}

func TestCancelOrderMissing(t *testing.T) {
	l := &Lifecycle{Repo: NewMemoryRepo()}
	if _, err := l.CancelOrder(context.Background(), "nope", owner); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v", err)
	}
}

func TestCancelOrderRetriesStaleWrite(t *testing.T) {
	mem := NewMemoryRepo()
	o := seedOrder(t, mem, owner.ID, StatusPending)
	l := &Lifecycle{Repo: &staleOnce{Repository: mem}}

	got, err := l.CancelOrder(context.Background(), o.ID, owner)
	if err != nil || got.Status != StatusCancelled {
		t.Fatalf("CancelOrder = %+v, %v", got, err)
	}
}

func TestUpdateShippingAddress(t *testing.T) {
	newAddr := &Address{Street: "221B Baker St", City: "Mumbai", State: "MH", Country: "IN", Pincode: "400001", Phone: "9123456780"}
	cases := []struct {
		status Status
		who    auth.Identity
		addr   *Address
		want   error
	}{
		{StatusPending, owner, newAddr, nil},
		{StatusCancelled, owner, newAddr, nil},
		{StatusConfirmed, admin, newAddr, nil},
		{StatusShipped, owner, newAddr, ErrInvalidTransition},
		{StatusDelivered, owner, newAddr, ErrInvalidTransition},
		{StatusPending, stranger, newAddr, ErrForbidden},
		{StatusPending, owner, &Address{Street: "x"}, ErrValidation},
		{StatusShipped, owner, &Address{Street: "x"}, ErrInvalidTransition},
	}
	for _, tc := range cases {
		t.Run(fmt.Sprintf("%s by %s", tc.status, tc.who.ID), func(t *testing.T) {
			repo := NewMemoryRepo()
			l := &Lifecycle{Repo: repo}
			o := seedOrder(t, repo, owner.ID, tc.status)

			got, err := l.UpdateShippingAddress(context.Background(), o.ID, tc.who, tc.addr)
			if tc.want != nil {
				if !errors.Is(err, tc.want) {
					t.Fatalf("err = %v, want %v", err, tc.want)
				}
				return
			}
			if err != nil {
				t.Fatalf("UpdateShippingAddress: %v", err)
			}
			if got.ShippingAddress != *newAddr {
				t.Fatalf("address = %+v, want %+v", got.ShippingAddress, *newAddr)
			}
			assertSameExceptAddress(t, o, got)
			stored, _ := repo.Get(context.Background(), o.ID)
			assertSameExceptAddress(t, o, stored)
			if stored.ShippingAddress != *newAddr {
				t.Fatalf("stored address = %+v", stored.ShippingAddress)
			}
		})
	}
}

// assertSameExceptAddress fails unless every field but the shipping address
// (and updatedAt) of got equals want.
func assertSameExceptAddress(t *testing.T, want, got Order) {
	t.Helper()
	if got.ID != want.ID || got.User != want.User || got.Status != want.Status {
		t.Fatalf("identity changed: got %s/%s/%s, want %s/%s/%s", got.ID, got.User, got.Status, want.ID, want.User, want.Status)
	}
	if !got.TotalPrice.Amount.Equal(want.TotalPrice.Amount) || got.TotalPrice.Currency != want.TotalPrice.Currency {
		t.Fatalf("total = %s %s, want %s %s", got.TotalPrice.Amount, got.TotalPrice.Currency, want.TotalPrice.Amount, want.TotalPrice.Currency)
	}
	if !got.CreatedAt.Equal(want.CreatedAt) {
		t.Fatalf("createdAt = %v, want %v", got.CreatedAt, want.CreatedAt)
	}
	if len(got.Items) != len(want.Items) {
		t.Fatalf("items = %d, want %d", len(got.Items), len(want.Items))
	}
	for i := range want.Items {
		g, w := got.Items[i], want.Items[i]
		if g.Product != w.Product || g.Title != w.Title || g.Quantity != w.Quantity ||
			!g.Price.Amount.Equal(w.Price.Amount) || g.Price.Currency != w.Price.Currency {
			t.Fatalf("item %d = %+v, want %+v", i, g, w)
		}
	}
}

func TestGetOrderPolicy(t *testing.T) {
	repo := NewMemoryRepo()
	l := &Lifecycle{Repo: repo}
	o := seedOrder(t, repo, owner.ID, StatusPending)

	if got, err := l.GetOrder(context.Background(), o.ID, owner); err != nil || got.ID != o.ID {
		t.Fatalf("owner get = %+v, %v", got, err)
	}
	if _, err := l.GetOrder(context.Background(), o.ID, admin); err != nil {
		t.Fatalf("admin get: %v", err)
	}
	if _, err := l.GetOrder(context.Background(), o.ID, stranger); !errors.Is(err, ErrForbidden) {
		t.Fatalf("stranger get err = %v", err)
	}
	if _, err := l.GetOrder(context.Background(), "missing", admin); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing get err = %v", err)
	}
}

func TestListMyOrdersPagination(t *testing.T) {
	repo := NewMemoryRepo()
	l := &Lifecycle{Repo: repo}
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	var ids []string
	for i := 0; i < 13; i++ {
		o := Order{User: owner.ID, Status: StatusPending, TotalPrice: inr("1"), CreatedAt: base.Add(time.Duration(i) * time.Minute)}
		if err := repo.Create(context.Background(), &o); err != nil {
			t.Fatal(err)
		}
		ids = append(ids, o.ID)
	}
	seedOrder(t, repo, stranger.ID, StatusPending)

	p, err := l.ListMyOrders(context.Background(), owner, 1, 5)
	if err != nil {
		t.Fatalf("ListMyOrders: %v", err)
	}
	if len(p.Data) != 5 || p.Total != 13 || p.TotalPages != 3 {
		t.Fatalf("page = len %d total %d pages %d", len(p.Data), p.Total, p.TotalPages)
	}
	if p.Data[0].ID != ids[12] {
		t.Fatalf("first = %s, want newest %s", p.Data[0].ID, ids[12])
	}

	last, _ := l.ListMyOrders(context.Background(), owner, 3, 5)
	if len(last.Data) != 3 || last.Data[2].ID != ids[0] {
		t.Fatalf("last page = %+v", last.Data)
	}

	empty, err := l.ListMyOrders(context.Background(), owner, 99, 5)
	if err != nil || empty.Data == nil || len(empty.Data) != 0 {
		t.Fatalf("page 99 = %+v, %v", empty, err)
	}

	if _, err := l.ListMyOrders(context.Background(), owner, 0, 5); !errors.Is(err, ErrValidation) {
		t.Fatalf("page 0 err = %v", err)
	}
}

func TestTransition(t *testing.T) {
	repo := NewMemoryRepo()
	pub := &fakePublisher{}
	l := &Lifecycle{Repo: repo, Publisher: pub}
	o := seedOrder(t, repo, owner.ID, StatusPending)

	for _, to := range []Status{StatusConfirmed, StatusShipped, StatusShipped, StatusDelivered} {
		got, err := l.Transition(context.Background(), o.ID, to, "fulfillment")
		if err != nil || got.Status != to {
			t.Fatalf("Transition(%s) = %s, %v", to, got.Status, err)
		}
	}
	// the repeated SHIPPED is a no-op and publishes nothing
	if len(pub.events) != 3 {
		t.Fatalf("events = %d, want 3", len(pub.events))
	}
	if _, err := l.Transition(context.Background(), o.ID, StatusCancelled, ""); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("cancel delivered err = %v", err)
	}
	if _, err := l.Transition(context.Background(), o.ID, "LOST", ""); !errors.Is(err, ErrValidation) {
		t.Fatalf("unknown status err = %v", err)
	}
}
