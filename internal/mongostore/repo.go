package mongostore

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"github.com/ariefcatur/go-shop-orders/internal/orders"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"log/slog"
	"time"
)

type Config struct {
	URI        string
	Database   string
	Collection string
	User       string
	Password   string
}

// Repo stores each order as one document keyed by an ObjectID.
type Repo struct {
	coll *mongo.Collection
}

var _ orders.Repository = (*Repo)(nil)

// Connect dials MongoDB, pings it and ensures the listing index exists.
func Connect(ctx context.Context, cfg Config) (*Repo, error) {
	opts := options.Client().ApplyURI(cfg.URI)
	if cfg.User != "" || cfg.Password != "" {
		opts = opts.SetAuth(options.Credential{
			AuthSource: cfg.Database,
			Username:   cfg.User,
			Password:   cfg.Password,
		}).SetTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12})
	}
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	r := New(client.Database(cfg.Database).Collection(cfg.Collection))
	if err := r.EnsureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	slog.Info("mongo connected", "db", cfg.Database, "collection", cfg.Collection)
	return r, nil
}

func New(coll *mongo.Collection) *Repo { return &Repo{coll: coll} }

func (r *Repo) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "user", Value: 1}, {Key: "createdAt", Value: -1}},
	})
	if err != nil {
		return fmt.Errorf("mongo create index: %w", err)
	}
	return nil
}

func (r *Repo) Close(ctx context.Context) error {
	return r.coll.Database().Client().Disconnect(ctx)
}

func (r *Repo) Ping(ctx context.Context) error {
	return r.coll.Database().Client().Ping(ctx, nil)
}

func (r *Repo) Create(ctx context.Context, o *orders.Order) error {
	oid := primitive.NewObjectID()
	if o.ID != "" {
		parsed, err := primitive.ObjectIDFromHex(o.ID)
		if err != nil {
			return fmt.Errorf("mongo: order id %q is not an ObjectID: %w", o.ID, err)
		}
		oid = parsed
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now().UTC()
	}
	o.UpdatedAt = o.CreatedAt

	doc, err := toDocument(*o)
	if err != nil {
		return err
	}
	doc.ID = oid
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("mongo insert order: %w", err)
	}
	o.ID = oid.Hex()
	return nil
}

func (r *Repo) Get(ctx context.Context, id string) (orders.Order, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return orders.Order{}, orders.NotFoundf("order not found")
	}
	var doc orderDoc
	err = r.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return orders.Order{}, orders.NotFoundf("order not found")
	}
	if err != nil {
		return orders.Order{}, fmt.Errorf("mongo find order %s: %w", id, err)
	}
	return doc.toOrder()
}

func (r *Repo) ListByUser(ctx context.Context, userID string, page, pageSize int) ([]orders.Order, int64, error) {
	filter := bson.M{"user": userID}
	total, err := r.coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("mongo count orders: %w", err)
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}).
		SetSkip(orders.Offset(page, pageSize)).
		SetLimit(int64(pageSize))
	cursor, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("mongo find orders: %w", err)
	}
	defer cursor.Close(ctx)

	out := []orders.Order{}
	for cursor.Next(ctx) {
		var doc orderDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, 0, fmt.Errorf("mongo decode order: %w", err)
		}
		o, err := doc.toOrder()
		if err != nil {
			return nil, 0, err
		}
		out = append(out, o)
	}
	return out, total, cursor.Err()
}

func (r *Repo) UpdateStatus(ctx context.Context, id string, from, to orders.Status) (orders.Order, error) {
	return r.update(ctx, id, from, bson.D{{Key: "status", Value: string(to)}})
}

func (r *Repo) UpdateAddress(ctx context.Context, id string, from orders.Status, addr orders.Address) (orders.Order, error) {
	return r.update(ctx, id, from, bson.D{{Key: "shippingAddress", Value: addressDoc(addr)}})
}

// update applies set only while the stored status still equals from.
func (r *Repo) update(ctx context.Context, id string, from orders.Status, set bson.D) (orders.Order, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return orders.Order{}, orders.NotFoundf("order not found")
	}
	set = append(set, bson.E{Key: "updatedAt", Value: time.Now().UTC()})
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var doc orderDoc
	err = r.coll.FindOneAndUpdate(ctx,
		bson.M{"_id": oid, "status": string(from)},
		bson.D{{Key: "$set", Value: set}},
		opts,
	).Decode(&doc)
	if err == nil {
		return doc.toOrder()
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return orders.Order{}, fmt.Errorf("mongo update order %s: %w", id, err)
	}
	n, err := r.coll.CountDocuments(ctx, bson.M{"_id": oid}, options.Count().SetLimit(1))
	if err != nil {
		return orders.Order{}, fmt.Errorf("mongo count order %s: %w", id, err)
	}
	if n == 0 {
		return orders.Order{}, orders.NotFoundf("order not found")
	}
	return orders.Order{}, orders.ErrStale
}
