package orders

import (
	"context"
	"fmt"
	"github.com/ariefcatur/go-shop-orders/internal/auth"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"
	"log/slog"
	"time"
)

// CartItem is one line of the caller's cart as reported by the cart service.
type CartItem struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

// Product is the catalog view the orchestrator prices against.
type Product struct {
	ID    string `json:"_id"`
	Title string `json:"title"`
	Price Money  `json:"price"`
	Stock int    `json:"stock"`
}

// CartSource returns the current cart of the user the token belongs to.
type CartSource interface {
	Items(ctx context.Context, userID, token string) ([]CartItem, error)
}

// CatalogSource resolves one product. A missing product is a NotFound error.
type CatalogSource interface {
	Product(ctx context.Context, productID, token string) (Product, error)
}

// IdempotencyStore maps a client-supplied Idempotency-Key to the order it
// created. A key is claimed before any work starts, so only one request per
// key ever reaches the upstreams.
type IdempotencyStore interface {
	// Claim reserves key. When the key is already taken, claimed is false and
	// orderID is the order created under it, or "" while that request runs.
	Claim(ctx context.Context, key string) (claimed bool, orderID string, err error)
	// Complete records the order created under a claimed key.
	Complete(ctx context.Context, key, orderID string) error
	// Release frees a claimed key whose request failed.
	Release(ctx context.Context, key string) error
}

type CreateRequest struct {
	Caller          auth.Identity
	Token           string
	ShippingAddress *Address
	IdempotencyKey  string
}

// Orchestrator builds an order from the caller's cart. Cart and catalog are
// read-only; the single write is the final Repository.Create.
type Orchestrator struct {
	Repo        Repository
	Cart        CartSource
	Catalog     CatalogSource
	Publisher   Publisher        // optional
	Idempotency IdempotencyStore // optional
	Metrics     Metrics          // optional
	ServiceName string
	Timeout     time.Duration // budget for the whole creation, 0 = none
}

// CreateOrder returns the created order, or the order previously created under
// the same idempotency key with replayed=true.
func (s *Orchestrator) CreateOrder(ctx context.Context, req CreateRequest) (o Order, replayed bool, err error) {
	addr, err := ValidateAddress(req.ShippingAddress)
	if err != nil {
		return Order{}, false, err
	}

	idemKey := ""
	if req.IdempotencyKey != "" && s.Idempotency != nil {
		key := req.Caller.ID + ":" + req.IdempotencyKey
		claimed, prevID, cerr := s.Idempotency.Claim(ctx, key)
		switch {
		case cerr != nil:
			slog.WarnContext(ctx, "idempotency claim failed, creating without it", "error", cerr)
		case !claimed:
			o, err = s.replay(ctx, prevID, req.Caller.ID)
			return o, err == nil, err
		default:
			idemKey = key
			defer func() {
				if err == nil {
					return
				}
				if rerr := s.Idempotency.Release(context.WithoutCancel(ctx), idemKey); rerr != nil {
					slog.WarnContext(ctx, "release idempotency key", "error", rerr)
				}
			}()
		}
	}

	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}
	ctx, span := tracer.Start(ctx, "orders.CreateOrder")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, string(KindOf(err)))
		}
		span.End()
	}()
	span.SetAttributes(attribute.String("user.id", req.Caller.ID))

	cart, err := s.Cart.Items(ctx, req.Caller.ID, req.Token)
	if err != nil {
		return Order{}, false, classifyUpstream("cart", err)
	}
	if len(cart) == 0 {
		return Order{}, false, Validationf("cart is empty")
	}

	ids, wanted, err := distinctProducts(cart)
	if err != nil {
		return Order{}, false, err
	}
	span.SetAttributes(attribute.Int("cart.products", len(ids)))

	products, err := s.fetchProducts(ctx, ids, req.Token)
	if err != nil {
		return Order{}, false, err
	}

	items, total, err := priceCart(cart, wanted, products)
	if err != nil {
		return Order{}, false, err
	}

	o = Order{
		User:            req.Caller.ID,
		Items:           items,
		Status:          StatusPending,
		TotalPrice:      total,
		ShippingAddress: addr,
	}
	if err := s.Repo.Create(ctx, &o); err != nil {
		return Order{}, false, fmt.Errorf("persist order: %w", err)
	}
	span.SetAttributes(attribute.String("order.id", o.ID))

	if idemKey != "" {
		if err := s.Idempotency.Complete(ctx, idemKey, o.ID); err != nil {
			slog.WarnContext(ctx, "complete idempotency key", "order_id", o.ID, "error", err)
		}
	}
	metricsOrNoop(s.Metrics).OrderCreated(o.TotalPrice.Currency)
	publish(ctx, s.Publisher, s.ServiceName, TopicOrderCreated, EventOrderCreated, o.ID, OrderCreatedPayload{
		OrderID:    o.ID,
		UserID:     o.User,
		Items:      o.Items,
		TotalPrice: o.TotalPrice,
	})
	slog.InfoContext(ctx, "order created", "order_id", o.ID, "user_id", o.User,
		"items", len(o.Items), "total", o.TotalPrice.Amount.String(), "currency", o.TotalPrice.Currency)
	return o, false, nil
}

// replay resolves a key claimed by an earlier request of the same user.
func (s *Orchestrator) replay(ctx context.Context, orderID, userID string) (Order, error) {
	if orderID == "" {
		return Order{}, Conflictf("a request with this Idempotency-Key is still in progress")
	}
	o, err := s.Repo.Get(ctx, orderID)
	if err != nil {
		if KindOf(err) == KindNotFound {
			return Order{}, Conflictf("Idempotency-Key already used")
		}
		return Order{}, fmt.Errorf("replay order %s: %w", orderID, err)
	}
	if o.User != userID {
		return Order{}, Conflictf("Idempotency-Key already used")
	}
	return o, nil
}

// fetchProducts resolves every id concurrently. The first failure cancels the rest.
func (s *Orchestrator) fetchProducts(ctx context.Context, ids []string, token string) (map[string]Product, error) {
	results := make([]Product, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	for i, id := range ids {
		g.Go(func() error {
			p, err := s.Catalog.Product(gctx, id, token)
			if err != nil {
				return classifyUpstream("catalog", err)
			}
			results[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	byID := make(map[string]Product, len(ids))
	for i, id := range ids {
		byID[id] = results[i]
	}
	return byID, nil
}

// distinctProducts returns product ids in first-seen cart order and the
// summed quantity wanted per product.
func distinctProducts(cart []CartItem) ([]string, map[string]int, error) {
	ids := make([]string, 0, len(cart))
	wanted := make(map[string]int, len(cart))
	for _, it := range cart {
		if it.ProductID == "" {
			return nil, nil, Validationf("cart item without productId")
		}
		if it.Quantity <= 0 {
			return nil, nil, Validationf("invalid quantity %d for product %s", it.Quantity, it.ProductID)
		}
		if _, seen := wanted[it.ProductID]; !seen {
			ids = append(ids, it.ProductID)
		}
		wanted[it.ProductID] += it.Quantity
	}
	return ids, wanted, nil
}

// priceCart snapshots catalog prices into line items in cart order and totals
// them. Client prices never reach this point.
func priceCart(cart []CartItem, wanted map[string]int, products map[string]Product) ([]LineItem, Money, error) {
	items := make([]LineItem, 0, len(cart))
	total := decimal.Zero
	var currency Currency
	for _, it := range cart {
		p := products[it.ProductID]
		if need := wanted[it.ProductID]; need > p.Stock {
			return nil, Money{}, InsufficientStockf("insufficient stock for product %s (%s): requested %d, available %d",
				it.ProductID, p.Title, need, p.Stock)
		}
		if !p.Price.Currency.Valid() {
			return nil, Money{}, Validationf("product %s has unsupported currency %q", it.ProductID, p.Price.Currency)
		}
		if p.Price.Amount.IsNegative() {
			return nil, Money{}, Validationf("product %s has a negative price", it.ProductID)
		}
		if currency == "" {
			currency = p.Price.Currency
		} else if currency != p.Price.Currency {
			return nil, Money{}, Validationf("cart mixes currencies %s and %s", currency, p.Price.Currency)
		}
		li := LineItem{Product: it.ProductID, Title: p.Title, Price: p.Price, Quantity: it.Quantity}
		total = total.Add(li.Subtotal())
		items = append(items, li)
	}
	return items, Money{Amount: total, Currency: currency}, nil
}

// classifyUpstream keeps NotFound/Validation verdicts from a peer and turns
// anything else (transport errors, timeouts, 5xx) into UpstreamUnavailable.
func classifyUpstream(source string, err error) error {
	switch KindOf(err) {
	case KindNotFound, KindValidation, KindUpstreamUnavailable:
		return err
	}
	return Upstream(source, err)
}
