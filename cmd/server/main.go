package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rahul4469/seemenu/internal/config"
	"github.com/rahul4469/seemenu/internal/controllers"
	"github.com/rahul4469/seemenu/internal/metrics"
	"github.com/rahul4469/seemenu/internal/models"
	"github.com/rahul4469/seemenu/internal/services"
	"github.com/rahul4469/seemenu/internal/storage"
	"github.com/rahul4469/seemenu/internal/views"
	"github.com/rahul4469/seemenu/internal/widget"
	"github.com/rahul4469/seemenu/migrations"
	"github.com/rahul4469/seemenu/templates"
)

const shutdownTimeout = 30 * time.Second

// loadingGrace is added to the backend timeout before an unfinished upload's
// loading flag is considered abandoned.
const loadingGrace = 30 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger := newLogger(cfg)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

// newLogger writes JSON in production and text everywhere else.
func newLogger(cfg *config.Config) *slog.Logger {
	if cfg.IsProduction() {
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	views.TemplateFS = templates.FS

	// Setup the Database ---------------
	var history controllers.HistoryLister
	var widgetOpts []widget.Option
	checks := map[string]controllers.HealthChecker{}
	if cfg.Database.URL != "" {
		logger.Info("connecting to database")
		db, err := models.NewDatabase(ctx, models.DefaultDatabaseConfig(cfg.Database.URL))
		if err != nil {
			return err
		}
		defer db.Close()

		if err := db.MigrateFS(migrations.FS, "."); err != nil {
			return err
		}
		logger.Info("database connected, upload history enabled")

		checks["database"] = db
		uploads := models.NewUploadService(db.Pool)
		history = uploads
		widgetOpts = append(widgetOpts, widget.WithHistory(uploads))
	}

	// Widget state store ---------------
	var store widget.Store
	if cfg.Redis.URL != "" {
		client, err := widget.NewRedisClient(ctx, cfg.Redis.URL)
		if err != nil {
			return err
		}
		defer client.Close()
		redisStore := widget.NewRedisStore(client, cfg.Security.SessionTTL)
		checks["redis"] = redisStore
		store = redisStore
		logger.Info("widget state stored in redis")
	} else {
		mem := widget.NewMemoryStore(cfg.Security.SessionTTL,
			widget.WithMaxSessions(cfg.Security.SessionMaxCount),
			widget.WithMaxBytes(cfg.Security.SessionMaxBytes),
		)
		go mem.RunJanitor(ctx, time.Minute)
		store = mem
	}

	// Archive ---------------
	if cfg.Archive.Bucket != "" {
		archive, err := storage.NewArchive(ctx, storage.ArchiveOptions{
			Bucket:    cfg.Archive.Bucket,
			Region:    cfg.Archive.Region,
			Endpoint:  cfg.Archive.Endpoint,
			AccessKey: cfg.Archive.AccessKey,
			SecretKey: cfg.Archive.SecretKey,
		})
		if err != nil {
			return err
		}
		widgetOpts = append(widgetOpts, widget.WithArchive(archive))
		logger.Info("menu photo archive enabled", "bucket", cfg.Archive.Bucket)
	}

	// Metrics ---------------
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	// Setup Services ---------------
	analyzer := services.NewMenuAnalyzer(cfg.API.BaseURL, cfg.API.Timeout)
	widgetOpts = append(widgetOpts,
		widget.WithObserver(m),
		widget.WithLogger(logger),
		widget.WithLoadingTimeout(loadingTimeout(cfg.API.Timeout)),
	)
	w := widget.New(store, analyzer, widgetOpts...)

	router, err := newRouter(&app{
		cfg:     cfg,
		logger:  logger,
		widget:  w,
		backend: analyzer,
		checks:  checks,
		history: history,
		metrics: m,
	})
	if err != nil {
		return err
	}

	// Start the Server
	srv := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", "address", cfg.Server.Address, "env", cfg.Server.Environment, "api_url", cfg.API.BaseURL)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	// in-flight uploads get to finish and clear their loading flag
	shutdownCtx, cancel := context.WithTimeout(context.Background(), max(shutdownTimeout, cfg.API.Timeout+5*time.Second))
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}

func loadingTimeout(apiTimeout time.Duration) time.Duration {
	if apiTimeout <= 0 {
		return widget.DefaultLoadingTimeout
	}
	return apiTimeout + loadingGrace
}
