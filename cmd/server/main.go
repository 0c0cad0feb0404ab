package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/edustack/academy-api/internal/api"
	"github.com/edustack/academy-api/internal/bootstrap"
	"github.com/edustack/academy-api/internal/cache"
	"github.com/edustack/academy-api/internal/config"
	"github.com/edustack/academy-api/internal/email"
	"github.com/edustack/academy-api/internal/health"
	"github.com/edustack/academy-api/internal/metrics"
	"github.com/edustack/academy-api/internal/pkg/logger"
	"github.com/edustack/academy-api/internal/storage"
	"github.com/edustack/academy-api/internal/store"
)

// checkPortAvailable verifies the target port is not already in use, which
// turns a confusing bind failure into an actionable startup error.
func checkPortAvailable(host string, port int) error {
	addr := fmt.Sprintf("%s:%d", host, port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("port %d is already in use: %v", port, err)
	}
	ln.Close()
	return nil
}

func buildStorageProvider(cfg config.StorageConfig) (storage.Provider, error) {
	switch cfg.Provider {
	case "s3":
		return storage.NewS3(cfg), nil
	case "spaces":
		return storage.NewSpaces(cfg), nil
	case "local", "":
		return storage.NewLocal(cfg.LocalPath, cfg.BaseURL), nil
	default:
		return nil, fmt.Errorf("unknown storage provider %q", cfg.Provider)
	}
}

func buildEmailProvider(cfg config.EmailConfig) (email.Provider, error) {
	switch cfg.Provider {
	case "ses":
		return email.NewSES(cfg), nil
	case "sparkpost":
		return email.NewSparkPost(cfg), nil
	case "smtp", "":
		return email.NewSMTP(cfg), nil
	default:
		return nil, fmt.Errorf("unknown email provider %q", cfg.Provider)
	}
}

func buildCacheProvider(cfg config.CacheConfig) (cache.Provider, error) {
	switch cfg.Provider {
	case "redis":
		return cache.NewRedis(cfg), nil
	case "memory", "":
		return cache.NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown cache provider %q", cfg.Provider)
	}
}

func buildStoreProvider(cfg config.StoreConfig) (store.Provider, error) {
	switch cfg.Driver {
	case "postgres":
		return store.NewPostgres(cfg), nil
	case "dynamodb":
		return store.NewDynamo(cfg), nil
	case "memory", "":
		return store.NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

func run() error {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}
	cfg, err := config.LoadFromEnv(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Provider identity is fixed here for the process lifetime. Everything
	// after this point works against the contracts, never the selectors.
	storageProvider, err := buildStorageProvider(cfg.Storage)
	if err != nil {
		return err
	}
	emailProvider, err := buildEmailProvider(cfg.Email)
	if err != nil {
		return err
	}
	cacheProvider, err := buildCacheProvider(cfg.Cache)
	if err != nil {
		return err
	}
	storeProvider, err := buildStoreProvider(cfg.Store)
	if err != nil {
		return err
	}

	storageSvc := storage.NewService(storageProvider, cfg.Storage.MaxUploadMB)
	emailSvc := email.NewService(emailProvider, cfg.Email.FromEmail, cfg.Email.FromName, cfg.Email.BatchWorkers)

	checker := health.NewChecker(cfg.Health.ProbeTimeout())
	collector := metrics.NewCollector()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Fail-soft bootstrap: a provider that cannot come up is logged and its
	// feature surface stays disabled; the process still starts and serves
	// health and metrics.
	report := bootstrap.InitializeAll(ctx, []bootstrap.Registration{
		{
			Name:     "storage",
			Provider: storageProvider,
			OnResult: storageSvc.SetAvailable,
		},
		{
			Name:     "email",
			Provider: emailProvider,
			OnResult: emailSvc.SetAvailable,
		},
		{
			Name:     "cache",
			Provider: cacheProvider,
		},
		{
			Name:     "store",
			Provider: storeProvider,
			Critical: true,
		},
	}, checker, 15*time.Second)

	if err := bootstrap.Enforce(report, cfg.Server.StrictBootstrap); err != nil {
		return err
	}
	defer cacheProvider.Close()
	defer storeProvider.Close()

	checker.StartPeriodicChecks(ctx, cfg.Health.Interval())

	if err := checkPortAvailable(cfg.Server.GetHost(), cfg.Server.Port); err != nil {
		return err
	}

	srv := api.NewServer(cfg.Server, storageSvc, emailSvc, checker, collector, report)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("shutdown complete")
	return nil
}

func main() {
	logger.SetLevel(logger.ParseLevel(os.Getenv("LOG_LEVEL")))

	if err := run(); err != nil {
		logger.Error("fatal", "error", err.Error())
		os.Exit(1)
	}
}
