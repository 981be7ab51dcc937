package main

import (
	"context"
	"errors"
	"github.com/ariefcatur/go-shop-orders/internal/auth"
	"github.com/ariefcatur/go-shop-orders/internal/config"
	"github.com/ariefcatur/go-shop-orders/internal/httpx"
	kafkax "github.com/ariefcatur/go-shop-orders/internal/kafka"
	"github.com/ariefcatur/go-shop-orders/internal/metrics"
	"github.com/ariefcatur/go-shop-orders/internal/orders"
	"github.com/ariefcatur/go-shop-orders/internal/redisx"
	"github.com/ariefcatur/go-shop-orders/internal/store"
	"github.com/ariefcatur/go-shop-orders/internal/telemetry"
	"github.com/ariefcatur/go-shop-orders/internal/upstream"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	telemetry.InitLogger(cfg.LogLevel, cfg.ServiceName)
	if err != nil {
		slog.Error("config", "error", err)
		os.Exit(1)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracer, err := telemetry.SetupTracer(ctx, cfg.ServiceName, cfg.OTLPEndpoint)
	if err != nil {
		slog.Error("tracer", "error", err)
		os.Exit(1)
	}

	// Redis (optional)
	var rdb *redis.Client
	var revoked auth.RevocationList
	var idem orders.IdempotencyStore
	if cfg.RedisAddr != "" {
		rdb = redisx.New(cfg.RedisAddr)
		defer rdb.Close()
		revoked = &redisx.Revocations{Redis: rdb}
		idem = &redisx.Idempotency{Redis: rdb}
	}

	repo, closeRepo, err := store.Open(ctx, cfg, rdb)
	if err != nil {
		slog.Error("order store", "store", cfg.OrderStore, "error", err)
		os.Exit(1)
	}
	defer closeRepo()

	// Kafka producer (optional)
	var (
		prod *kafkax.Producer
		pub  orders.Publisher
	)
	if len(cfg.KafkaBrokers) > 0 {
		prod = kafkax.NewProducer(cfg.KafkaBrokers, 1024)
		prod.Start(ctx)
		pub = kafkax.EventPublisher{Producer: prod}
	}

	reg := metrics.New("orders")
	cart := upstream.Cart{Client: upstream.NewClient("cart", cfg.CartBaseURL, cfg.UpstreamTimeout, cfg.UpstreamRetries, reg)}
	catalog := upstream.Catalog{Client: upstream.NewClient("catalog", cfg.CatalogBaseURL, cfg.UpstreamTimeout, cfg.UpstreamRetries, reg)}

	// shutdown waits at least as long as a request may run, so no handler
	// publishes after the producer is closed
	requestTimeout := cfg.CreateOrderTimeout + 5*time.Second
	router := httpx.NewRouter(httpx.RouterConfig{
		Ready:          repo,
		Observer:       reg,
		MetricsHandler: reg.Handler(),
		Timeout:        requestTimeout,
	})
	oh := &httpx.OrdersHandler{
		Orchestrator: &orders.Orchestrator{
			Repo:        repo,
			Cart:        cart,
			Catalog:     catalog,
			Publisher:   pub,
			Idempotency: idem,
			Metrics:     reg,
			ServiceName: cfg.ServiceName,
			Timeout:     cfg.CreateOrderTimeout,
		},
		Lifecycle: &orders.Lifecycle{
			Repo:        repo,
			Publisher:   pub,
			Metrics:     reg,
			ServiceName: cfg.ServiceName,
		},
		Verifier: auth.NewVerifier(cfg.JWTSecret, revoked),
	}
	oh.Register(router)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		slog.Info("HTTP listening", "addr", cfg.HTTPAddr, "store", cfg.OrderStore,
			"redis", rdb != nil, "kafka", prod != nil)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("listen", "error", err)
			os.Exit(1)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	slog.Info("shutting down...")

	ctx2, cancel2 := context.WithTimeout(context.Background(), requestTimeout+time.Second)
	defer cancel2()
	if err := srv.Shutdown(ctx2); err != nil {
		slog.Warn("http shutdown", "error", err)
	}
	if prod != nil {
		prod.Close() // flushes the inbox, then closes the writer
		prod.WaitClosed()
	}
	cancel()
	if err := shutdownTracer(ctx2); err != nil {
		slog.Warn("tracer shutdown", "error", err)
	}
}
