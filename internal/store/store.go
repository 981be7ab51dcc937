// Package store opens the order Repository selected by ORDER_STORE.
package store

import (
	"context"
	"fmt"
	"github.com/ariefcatur/go-shop-orders/internal/config"
	"github.com/ariefcatur/go-shop-orders/internal/mongostore"
	"github.com/ariefcatur/go-shop-orders/internal/orders"
	"github.com/ariefcatur/go-shop-orders/internal/postgres"
	"github.com/ariefcatur/go-shop-orders/internal/redisx"
	"github.com/redis/go-redis/v9"
	"log/slog"
)

// Open returns the configured Repository, wrapped in the Redis read cache
// when rdb is non-nil, and a func releasing its connections.
func Open(ctx context.Context, cfg config.Config, rdb *redis.Client) (orders.Repository, func(), error) {
	var (
		repo    orders.Repository
		closeFn func()
	)
	switch cfg.OrderStore {
	case "postgres":
		db, err := postgres.Connect(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("postgres connect: %w", err)
		}
		pg := &orders.Repo{DB: db}
		if err := pg.Migrate(ctx); err != nil {
			db.Close()
			return nil, nil, err
		}
		repo, closeFn = pg, db.Close
	case "mongo":
		m, err := mongostore.Connect(ctx, mongostore.Config{
			URI:        cfg.MongoURI,
			Database:   cfg.MongoDB,
			Collection: cfg.MongoCollection,
			User:       cfg.MongoUser,
			Password:   cfg.MongoPassword,
		})
		if err != nil {
			return nil, nil, err
		}
		repo = m
		closeFn = func() { _ = m.Close(context.Background()) }
	case "memory":
		slog.Warn("using in-memory order store; data is lost on restart")
		repo, closeFn = orders.NewMemoryRepo(), func() {}
	default:
		return nil, nil, fmt.Errorf("unknown order store %q", cfg.OrderStore)
	}
	if rdb != nil {
		repo = &orders.CachedRepo{Repository: repo, Cache: &redisx.OrderCache{Redis: rdb}}
	}
	return repo, closeFn, nil
}
