package main

import (
	"context"
	"errors"
	"github.com/ariefcatur/go-shop-orders/internal/config"
	"github.com/ariefcatur/go-shop-orders/internal/fulfillment"
	kafkax "github.com/ariefcatur/go-shop-orders/internal/kafka"
	"github.com/ariefcatur/go-shop-orders/internal/metrics"
	"github.com/ariefcatur/go-shop-orders/internal/orders"
	"github.com/ariefcatur/go-shop-orders/internal/redisx"
	"github.com/ariefcatur/go-shop-orders/internal/store"
	"github.com/ariefcatur/go-shop-orders/internal/telemetry"
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
	service := cfg.ServiceName + "-status-worker"
	telemetry.InitLogger(cfg.LogLevel, service)
	if err != nil {
		slog.Error("config", "error", err)
		os.Exit(1)
	}
	if len(cfg.KafkaBrokers) == 0 {
		slog.Error("KAFKA_BROKERS is required for the status worker")
		os.Exit(1)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracer, err := telemetry.SetupTracer(ctx, service, cfg.OTLPEndpoint)
	if err != nil {
		slog.Error("tracer", "error", err)
		os.Exit(1)
	}

	var rdb *redis.Client
	var dedup fulfillment.Deduper
	if cfg.RedisAddr != "" {
		rdb = redisx.New(cfg.RedisAddr)
		defer rdb.Close()
		dedup = &redisx.Dedup{Redis: rdb, Service: "status-worker"}
	} else {
		slog.Warn("REDIS_ADDR not set; redelivered status events are not de-duplicated")
	}

	repo, closeRepo, err := store.Open(ctx, cfg, rdb)
	if err != nil {
		slog.Error("order store", "store", cfg.OrderStore, "error", err)
		os.Exit(1)
	}
	defer closeRepo()

	// status_changed events are published like the API does
	prod := kafkax.NewProducer(cfg.KafkaBrokers, 1024)
	prod.Start(ctx)

	reg := metrics.New("status_worker")
	svc := &fulfillment.Service{
		Orders: &orders.Lifecycle{
			Repo:        repo,
			Publisher:   kafkax.EventPublisher{Producer: prod},
			Metrics:     reg,
			ServiceName: service,
		},
		Dedup:    dedup,
		Recorder: reg,
	}

	// metrics only; the worker has no public API
	msrv := &http.Server{Addr: cfg.HTTPAddr, Handler: reg.Handler(), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := msrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Warn("metrics listener", "error", err)
		}
	}()

	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.StatusGroup, orders.TopicOrderStatusRequested, cfg.StatusWorkers)
	consumerDone := make(chan struct{})
	go func() {
		defer close(consumerDone)
		slog.Info("status consumer started", "group", cfg.StatusGroup,
			"topic", orders.TopicOrderStatusRequested, "workers", cfg.StatusWorkers)
		if err := cons.Start(ctx, svc.HandleStatusRequested); err != nil {
			slog.Error("consumer exit", "error", err)
			cancel()
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
	case <-ctx.Done():
	}
	slog.Info("shutting down consumer...")
	cancel()
	// workers still applying a transition publish through prod
	<-consumerDone
	prod.Close()
	prod.WaitClosed()

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = msrv.Shutdown(ctx2)
	if err := shutdownTracer(ctx2); err != nil {
		slog.Warn("tracer shutdown", "error", err)
	}
}
