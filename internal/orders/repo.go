package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"time"
)

// ErrStale is returned by conditional updates when the stored status no
// longer matches the one the caller observed.
var ErrStale = errors.New("order modified concurrently")

// Repository persists orders. Every mutation is a single-document update
// conditioned on the status the caller read, so racing writers to the same
// order are serialized by the store.
type Repository interface {
	// Create assigns ID (when empty) and timestamps, then inserts o.
	Create(ctx context.Context, o *Order) error
	// Get returns a NotFound error when id does not resolve.
	Get(ctx context.Context, id string) (Order, error)
	// ListByUser returns one page of userID's orders, newest first, and the total count.
	ListByUser(ctx context.Context, userID string, page, pageSize int) ([]Order, int64, error)
	UpdateStatus(ctx context.Context, id string, from, to Status) (Order, error)
	UpdateAddress(ctx context.Context, id string, from Status, addr Address) (Order, error)
	Ping(ctx context.Context) error
}

const Schema = `
CREATE TABLE IF NOT EXISTS orders (
	id               TEXT PRIMARY KEY,
	user_id          TEXT        NOT NULL,
	status           TEXT        NOT NULL,
	items            JSONB       NOT NULL,
	total_amount     NUMERIC     NOT NULL,
	total_currency   TEXT        NOT NULL,
	shipping_address JSONB       NOT NULL,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_orders_user_created ON orders(user_id, created_at DESC);
`

const orderColumns = `id, user_id, status, items, total_amount::text, total_currency, shipping_address, created_at, updated_at`

// Repo is the Postgres Repository. Items and address are stored as JSONB
// documents so an order stays a single row.
type Repo struct{ DB *pgxpool.Pool }

var _ Repository = (*Repo)(nil)

func (r *Repo) Migrate(ctx context.Context) error {
	if _, err := r.DB.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("orders: apply schema: %w", err)
	}
	return nil
}

func (r *Repo) Ping(ctx context.Context) error { return r.DB.Ping(ctx) }

func (r *Repo) Create(ctx context.Context, o *Order) error {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if o.CreatedAt.IsZero() {
		o.CreatedAt = now
	}
	o.UpdatedAt = o.CreatedAt

	items, err := json.Marshal(o.Items)
	if err != nil {
		return err
	}
	addr, err := json.Marshal(o.ShippingAddress)
	if err != nil {
		return err
	}
	_, err = r.DB.Exec(ctx, `
		INSERT INTO orders(id, user_id, status, items, total_amount, total_currency, shipping_address, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5::numeric, $6, $7, $8, $9)
	`, o.ID, o.User, string(o.Status), items, o.TotalPrice.Amount.String(), string(o.TotalPrice.Currency), addr, o.CreatedAt, o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("orders: insert %s: %w", o.ID, err)
	}
	return nil
}

func (r *Repo) Get(ctx context.Context, id string) (Order, error) {
	row := r.DB.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=$1`, id)
	o, err := scanOrder(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, NotFoundf("order not found")
	}
	return o, err
}

func (r *Repo) ListByUser(ctx context.Context, userID string, page, pageSize int) ([]Order, int64, error) {
	var total int64
	if err := r.DB.QueryRow(ctx, `SELECT COUNT(*) FROM orders WHERE user_id=$1`, userID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.DB.Query(ctx, `SELECT `+orderColumns+` FROM orders
	                              WHERE user_id=$1
	                              ORDER BY created_at DESC, id DESC
	                              LIMIT $2 OFFSET $3`, userID, pageSize, Offset(page, pageSize))
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := []Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, o)
	}
	return out, total, rows.Err()
}

func (r *Repo) UpdateStatus(ctx context.Context, id string, from, to Status) (Order, error) {
	row := r.DB.QueryRow(ctx, `UPDATE orders SET status=$3, updated_at=now()
	                           WHERE id=$1 AND status=$2
	                           RETURNING `+orderColumns, id, string(from), string(to))
	return r.afterUpdate(ctx, id, row)
}

func (r *Repo) UpdateAddress(ctx context.Context, id string, from Status, addr Address) (Order, error) {
	b, err := json.Marshal(addr)
	if err != nil {
		return Order{}, err
	}
	row := r.DB.QueryRow(ctx, `UPDATE orders SET shipping_address=$3, updated_at=now()
	                           WHERE id=$1 AND status=$2
	                           RETURNING `+orderColumns, id, string(from), b)
	return r.afterUpdate(ctx, id, row)
}

// afterUpdate tells a missing order apart from a status that moved under us.
func (r *Repo) afterUpdate(ctx context.Context, id string, row pgx.Row) (Order, error) {
	o, err := scanOrder(row)
	if err == nil {
		return o, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return Order{}, err
	}
	var exists bool
	if err := r.DB.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM orders WHERE id=$1)`, id).Scan(&exists); err != nil {
		return Order{}, err
	}
	if !exists {
		return Order{}, NotFoundf("order not found")
	}
	return Order{}, ErrStale
}

func scanOrder(row pgx.Row) (Order, error) {
	var (
		o                     Order
		status, amt, currency string
		items, addr           []byte
	)
	if err := row.Scan(&o.ID, &o.User, &status, &items, &amt, &currency, &addr, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return Order{}, err
	}
	o.Status = Status(status)
	if err := json.Unmarshal(items, &o.Items); err != nil {
		return Order{}, fmt.Errorf("orders: decode items of %s: %w", o.ID, err)
	}
	if err := json.Unmarshal(addr, &o.ShippingAddress); err != nil {
		return Order{}, fmt.Errorf("orders: decode address of %s: %w", o.ID, err)
	}
	amount, err := decimal.NewFromString(amt)
	if err != nil {
		return Order{}, fmt.Errorf("orders: decode total of %s: %w", o.ID, err)
	}
	o.TotalPrice = Money{Amount: amount, Currency: Currency(currency)}
	return o, nil
}
