package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/okian/stripe-connect/internal/adapters/http/api"
	"github.com/okian/stripe-connect/internal/adapters/http/auth"
	"github.com/okian/stripe-connect/internal/adapters/http/site"
	"github.com/okian/stripe-connect/internal/adapters/http/swagger"
	"github.com/okian/stripe-connect/internal/adapters/storage"
	"github.com/okian/stripe-connect/internal/adapters/stripeapi"
	service "github.com/okian/stripe-connect/internal/app"
	"github.com/okian/stripe-connect/internal/config"
	"github.com/okian/stripe-connect/pkg/logger"
	"github.com/okian/stripe-connect/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout            = 10 * time.Second
	writeTimeout           = 30 * time.Second
	idleTimeout            = 60 * time.Second
	readHeaderTimeout      = 5 * time.Second
	shutdownTimeout        = 30 * time.Second
	runtimeMetricsInterval = 10 * time.Second
)

func main() {
	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		// Logger isn't configured yet.
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}
	if err := logger.InitWithWriter(cfg.LogFormat, os.Stdout); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	log := logger.Get()
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	if err := run(ctx, cfg, log); err != nil {
		log.Error(ctx, "service failed", logger.Error(err))
		os.Exit(1)
	}
}

// run serves until ctx is cancelled.
func run(ctx context.Context, cfg *config.Config, log logger.Logger) error {
	store, err := storage.Open(ctx, cfg.StorageDriver, storage.RedisConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}, storage.WithPrefix(cfg.StoragePrefix))
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Warn(ctx, "storage close failed", logger.Error(err))
		}
	}()

	client := stripeapi.New(cfg.StripeSecretKey, cfg.WebhookSecret,
		stripeapi.WithMaxNetworkRetries(cfg.StripeMaxNetworkRetries),
		stripeapi.WithLogger(log.Named("stripe")),
	)
	if cfg.LiveMode() {
		log.Warn(ctx, "using a live Stripe key")
	}

	svc := service.New(client, store,
		service.WithLogger(log.Named("service")),
		service.WithWorkerCount(cfg.WorkerCount),
		service.WithQueueSize(cfg.QueueSize),
		service.WithDedupeSize(cfg.DedupeSize),
	)
	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("start service: %w", err)
	}

	handler, err := routes(ctx, cfg, svc, log)
	if err != nil {
		return err
	}

	go updateRuntimeMetrics(ctx)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr), logger.String("storage", cfg.StorageDriver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			_ = svc.Stop(context.Background())
			return fmt.Errorf("http server: %w", err)
		}
	}
	log.Info(ctx, "shutting down server...")

	// Graceful shutdown: stop accepting webhooks, then drain the queue.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}
	if err := svc.Stop(shutdownCtx); err != nil {
		log.Error(ctx, "service stop failed", logger.Error(err))
	}
	log.Info(ctx, "server stopped")
	return nil
}

// routes builds the full HTTP handler of the service.
func routes(ctx context.Context, cfg *config.Config, svc *service.Service, log logger.Logger) (http.Handler, error) {
	authn := auth.New(cfg.JWTSecret, cfg.JWTIssuer)
	mux := http.NewServeMux()

	swagger.Register(ctx, mux)

	apiServer := api.NewServer(svc, authn,
		api.WithPageSize(cfg.PageSize, cfg.MaxPageSize),
		api.WithTrustedProxies(cfg.Proxies()),
		api.WithLogger(log.Named("http")),
	)
	apiServer.Register(ctx, mux)

	pages, err := site.New(svc, authn,
		site.WithLogger(log.Named("site")),
		site.WithPublishableKey(cfg.StripePublishableKey),
	)
	if err != nil {
		return nil, err
	}
	pages.Register(ctx, mux)

	return api.RequestLogging(log.Named("access"), mux), nil
}

// updateRuntimeMetrics samples memory and goroutine gauges until ctx ends.
func updateRuntimeMetrics(ctx context.Context) {
	ticker := time.NewTicker(runtimeMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			var m runtime.MemStats
			runtime.ReadMemStats(&m)
			metrics.UpdateRuntime(m.Alloc, runtime.NumGoroutine())
		}
	}
}
