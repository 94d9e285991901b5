package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/okian/skillboard/internal/adapters/repository"
	app "github.com/okian/skillboard/internal/app"
	"github.com/okian/skillboard/internal/config"
	"github.com/okian/skillboard/pkg/logger"
	"github.com/okian/skillboard/pkg/metrics"
)

// HTTP server timeout constants for the metrics listener.
const (
	readTimeout            = 10 * time.Second
	writeTimeout           = 10 * time.Second
	idleTimeout            = 60 * time.Second
	readHeaderTimeout      = 5 * time.Second
	shutdownTimeout        = 30 * time.Second
	systemMetricsInterval  = 10 * time.Second
	serviceMetricsInterval = 5 * time.Second
)

// Log file rotation.
const (
	logMaxSizeMB  = 50
	logMaxBackups = 5
	logMaxAgeDays = 28
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// runtimeEnv is what every command gets after the persistent pre-run.
type runtimeEnv struct {
	cfg   *config.Config
	svc   *app.Service
	store repository.Store // nil when the service owns an in-memory store
	log   logger.Logger
}

// setup loads .env and configuration, initializes logging, opens the store
// and starts the service.
func setup(ctx context.Context, envFile, cfgFile string) (*runtimeEnv, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}
	if cfgFile == "" {
		cfgFile = os.Getenv(config.EnvConfigFile)
	}
	cfg, err := config.LoadFile(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logOpts := []logger.Option{logger.WithFormat(cfg.LogFormat), logger.WithWriter(os.Stderr)}
	if cfg.LogFile != "" {
		logOpts = append(logOpts, logger.WithFile(cfg.LogFile, logMaxSizeMB, logMaxBackups, logMaxAgeDays))
	}
	if err := logger.Init(logOpts...); err != nil {
		return nil, fmt.Errorf("failed to initialize logging: %w", err)
	}
	log := logger.Get()
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	acts, err := cfg.ActivityModels()
	if err != nil {
		return nil, err
	}

	env := &runtimeEnv{cfg: cfg, log: log}
	opts := []app.Option{
		app.WithLogger(log),
		app.WithWorkerCount(cfg.WorkerCount),
		app.WithQueueSize(cfg.QueueSize),
		app.WithDedupeSize(cfg.DedupeSize),
		app.WithMaxLeaderboardLimit(cfg.MaxLeaderboardLimit),
		app.WithHistoryMaxLen(cfg.HistoryMaxLen),
		app.WithActivities(acts...),
		app.WithEngineOptions(engineOptions(cfg)...),
	}
	if cfg.StoreDriver != config.DriverMemory {
		store, err := repository.Open(ctx, cfg.StoreDriver, cfg.StoreDSN, repository.WithLogger(log.Named("store")))
		if err != nil {
			return nil, fmt.Errorf("failed to open store: %w", err)
		}
		env.store = store
		opts = append(opts, app.WithStore(store))
	}

	env.svc = app.New(opts...)
	if err := env.svc.Start(ctx); err != nil {
		env.close()
		return nil, fmt.Errorf("failed to start service: %w", err)
	}
	return env, nil
}

func (e *runtimeEnv) close() {
	if e.svc != nil {
		e.svc.Stop()
	}
	if e.store != nil {
		if err := e.store.Close(); err != nil {
			e.log.Warn(context.Background(), "store close failed", logger.Error(err))
		}
	}
	if err := logger.Sync(); err != nil {
		fmt.Fprintln(os.Stderr, "log sync:", err)
	}
}

// serve keeps the workers running and exposes /metrics until ctx ends.
func serve(ctx context.Context, env *runtimeEnv) error {
	go startSystemMetricsUpdater(ctx)
	go startServiceMetricsUpdater(ctx, env.svc)

	if env.cfg.MetricsAddr == "" {
		env.log.Info(ctx, "metrics listener disabled; waiting for shutdown signal")
		<-ctx.Done()
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	srv := &http.Server{
		Addr:              env.cfg.MetricsAddr,
		Handler:           mux,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		env.log.Info(ctx, "starting metrics server", logger.String("addr", env.cfg.MetricsAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("metrics server failed: %w", err)
	case <-ctx.Done():
	}
	env.log.Info(ctx, "shutting down metrics server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		env.log.Error(ctx, "metrics server shutdown failed", logger.Error(err))
	}
	return nil
}

// startSystemMetricsUpdater samples runtime metrics until ctx ends.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			metrics.CollectRuntime()
		}
	}
}

// startServiceMetricsUpdater refreshes service gauges until ctx ends.
func startServiceMetricsUpdater(ctx context.Context, svc *app.Service) {
	ticker := time.NewTicker(serviceMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// GetStats pushes the per-activity gauges as a side effect.
			_ = svc.GetStats()
		}
	}
}
