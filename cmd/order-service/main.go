package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jcmexdev/order-registration/internal/config"
	"github.com/jcmexdev/order-registration/internal/coordinator/sagalog/sqlite"
	"github.com/jcmexdev/order-registration/internal/order-service/adapters/customer"
	"github.com/jcmexdev/order-registration/internal/order-service/adapters/httpx"
	"github.com/jcmexdev/order-registration/internal/order-service/adapters/sqlstore"
	"github.com/jcmexdev/order-registration/internal/order-service/app"
	"github.com/jcmexdev/order-registration/internal/order-service/ports"
	"github.com/jcmexdev/order-registration/internal/pkg/cache"
	"github.com/jcmexdev/order-registration/internal/pkg/metrics"
	"github.com/jcmexdev/order-registration/internal/pkg/telemetry"
	"github.com/jcmexdev/order-registration/internal/resilience"
)

func main() {
	if err := run(); err != nil {
		slog.Error("order service stopped", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := telemetry.InitLogger(cfg.Log.Level, cfg.Log.Format)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := telemetry.SetupTracer(ctx, telemetry.TracerConfig{
		ServiceName: cfg.ServiceName,
		Endpoint:    cfg.OTel.Endpoint,
		Environment: cfg.Environment,
		SampleRatio: cfg.OTel.SampleRatio,
	})
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracer(shutdownCtx); err != nil {
			logger.Error("tracer shutdown error", "error", err)
		}
	}()

	store, err := sqlstore.Open(ctx, cfg.Store.Driver, cfg.Store.DSN, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	m := metrics.New()
	pipeline := resilience.NewPipeline("customer-service", cfg.Customer.Policy(),
		resilience.WithLogger(logger),
		resilience.WithMetrics(m),
	)
	customers := customer.NewClient(cfg.Customer.BaseURL, &http.Client{}, pipeline, logger)

	opts := []app.Option{app.WithMetrics(m), app.WithLogger(logger)}
	var handlerOpts []httpx.HandlerOption
	if cfg.Journal.Path != "" {
		journal, err := sqlite.Open(cfg.Journal.Path)
		if err != nil {
			return err
		}
		defer journal.Close()
		opts = append(opts, app.WithJournal(journal))
		handlerOpts = append(handlerOpts, httpx.WithJournal(journal))
	}

	var svc ports.OrderService = app.NewService(store, customers, opts...)
	checks := map[string]httpx.Pinger{"store": store, "customer-service": customers}
	if cfg.Redis.Addr != "" {
		rc := cache.NewRedisCache(cfg.Redis.Addr, "order")
		defer rc.Close()
		svc = app.NewIdempotentService(svc, rc, cfg.Redis.IdempotencyTTL, logger)
		checks["cache"] = rc
	}

	handler := httpx.NewHandler(svc, store, checks, logger, handlerOpts...)
	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpx.NewRouter(handler, m.Handler()),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("order service HTTP running", "addr", cfg.HTTPAddr, "store", store.Driver())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		logger.Info("shutting down", "timeout", cfg.ShutdownTimeout)
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
