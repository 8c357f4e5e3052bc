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

	"github.com/go-chi/chi/v5"
	"go.uber.org/automaxprocs/maxprocs"

	"github.com/okian/akut/internal/adapters/catalog"
	"github.com/okian/akut/internal/adapters/http/api"
	"github.com/okian/akut/internal/adapters/http/swagger"
	app "github.com/okian/akut/internal/app"
	"github.com/okian/akut/internal/config"
	"github.com/okian/akut/pkg/logger"
	"github.com/okian/akut/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout               = 10 * time.Second
	writeTimeout              = 10 * time.Second
	idleTimeout               = 60 * time.Second
	readHeaderTimeout         = 5 * time.Second
	shutdownTimeout           = 30 * time.Second
	systemMetricsInterval     = 10 * time.Second
	serviceMetricsInterval    = 5 * time.Second
	nanosecondsPerMillisecond = 1e6
)

func main() {
	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		// Use stderr for initialization errors since logger isn't available yet
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	if err := logger.Init(logger.WithFormat(cfg.LogFormat)); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	log := logger.Get()

	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	undo, err := maxprocs.Set(maxprocs.Logger(func(format string, args ...any) {
		log.Info(ctx, fmt.Sprintf(format, args...))
	}))
	defer undo()
	if err != nil {
		log.Warn(ctx, "failed to set GOMAXPROCS", logger.Error(err))
	}

	if err := config.Watch(ctx, reloadLogLevel(ctx, log)); err != nil {
		log.Warn(ctx, "config hot reload disabled", logger.Error(err))
	}

	cases, err := loadCatalog(ctx, cfg)
	if err != nil {
		log.Fatal(ctx, "failed to load cases", logger.String("dir", cfg.CasesDir), logger.Error(err))
	}

	svc := app.New(append(app.FromConfig(cfg),
		app.WithLogger(logger.Named("service")),
		app.WithCatalog(cases),
	)...)
	if err := svc.Start(ctx); err != nil {
		log.Fatal(ctx, "failed to start service", logger.Error(err))
	}

	go startSystemMetricsUpdater(ctx)
	go startServiceMetricsUpdater(ctx, svc)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newRouter(ctx, svc, cfg.MaxListLimit),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error(ctx, "HTTP server failed", logger.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	// Stop accepting submissions first, then drain the queue.
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(shutdownCtx, "server shutdown failed", logger.Error(err))
	}
	if err := svc.Stop(shutdownCtx); err != nil {
		log.Error(shutdownCtx, "service shutdown failed", logger.Error(err))
	}

	log.Info(shutdownCtx, "server stopped")
}

// newRouter mounts the business API and the API docs on one chi router.
func newRouter(ctx context.Context, svc *app.Service, maxLimit int) http.Handler {
	r := chi.NewRouter()
	api.NewServer(svc, svc, api.WithMaxLimit(maxLimit)).Register(ctx, r)
	swagger.Register(ctx, r)
	return r
}

// loadCatalog reads every scenario document under cfg.CasesDir. A missing
// directory yields an empty catalog.
func loadCatalog(ctx context.Context, cfg *config.Config) (*catalog.Catalog, error) {
	c := catalog.New(catalog.WithPattern(cfg.CasesGlob), catalog.WithConcurrency(runtime.GOMAXPROCS(0)))
	if _, err := os.Stat(cfg.CasesDir); errors.Is(err, os.ErrNotExist) {
		logger.Get().Warn(ctx, "cases directory not found; starting with an empty catalog", logger.String("dir", cfg.CasesDir))
		return c, nil
	}
	stats, err := c.Load(ctx, cfg.CasesDir)
	if err != nil {
		return nil, err
	}
	logger.Get().Info(ctx, "cases loaded",
		logger.String("dir", cfg.CasesDir),
		logger.Int("files", stats.Files),
		logger.Int("loaded", stats.Loaded),
		logger.Int("rejected", stats.Rejected))
	return c, nil
}

// reloadLogLevel applies log_level from a changed config file.
func reloadLogLevel(ctx context.Context, log logger.Logger) func(*config.Config, error) {
	return func(cfg *config.Config, err error) {
		if err != nil {
			log.Warn(ctx, "config reload failed", logger.Error(err))
			return
		}
		if err := logger.SetLevelString(cfg.LogLevel); err != nil {
			log.Warn(ctx, "invalid log_level on reload", logger.String("log_level", cfg.LogLevel), logger.Error(err))
			return
		}
		log.Info(ctx, "log level reloaded", logger.String("log_level", cfg.LogLevel))
	}
}

// startSystemMetricsUpdater starts a background goroutine that updates system metrics.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// startServiceMetricsUpdater refreshes the queue and repository gauges.
func startServiceMetricsUpdater(ctx context.Context, svc *app.Service) {
	ticker := time.NewTicker(serviceMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// GetStats updates the gauges as a side effect.
			_ = svc.GetStats()
		}
	}
}

// updateSystemMetrics updates system-level metrics.
func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())

	if m.NumGC > 0 {
		avgPauseMs := float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond
		metrics.RecordSystemGCPauseTime(avgPauseMs)
	}
}
