// Package main runs the panel HTTP service.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/boostgrid/panel-service/internal/app"
	"github.com/boostgrid/panel-service/internal/app/httpapi"
	"github.com/boostgrid/panel-service/internal/app/metrics"
	catalogsvc "github.com/boostgrid/panel-service/internal/app/services/catalog"
	"github.com/boostgrid/panel-service/internal/app/services/provider"
	"github.com/boostgrid/panel-service/internal/app/storage/postgres"
	"github.com/boostgrid/panel-service/internal/config"
	"github.com/boostgrid/panel-service/internal/middleware"
	"github.com/boostgrid/panel-service/pkg/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logger.New(logger.LoggingConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})

	stores, db, err := buildStores(cfg, log)
	if err != nil {
		return fmt.Errorf("configure stores: %w", err)
	}
	if db != nil {
		defer db.Close()
	}

	var cache catalogsvc.Cache
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer client.Close()
		cache = catalogsvc.NewRedisCache(client, time.Duration(cfg.Redis.CacheTTL)*time.Second)
		log.WithField("addr", cfg.Redis.Addr).Info("catalog cache enabled")
	}

	providerClient := provider.New(cfg.Provider.URL, cfg.Provider.APIKey,
		time.Duration(cfg.Provider.Timeout)*time.Second, log)

	application := app.New(stores, app.Options{
		CatalogCache: cache,
		Provider:     providerClient,
	}, log)

	auth := middleware.NewAuthMiddleware([]byte(cfg.Auth.JWTSecret), log)
	handler := httpapi.NewHandler(httpapi.Config{
		Orders:       application.Orders,
		Catalog:      application.Catalog,
		Profiles:     application.Profiles,
		Provider:     application.Provider,
		Admin:        application.Admin,
		ProfileStore: application.ProfileStore,
		Auth:         auth,
		Log:          log,
	})

	stop := make(chan struct{})
	defer close(stop)

	limiter := middleware.NewRateLimiter(cfg.Limits.RequestsPerSecond, cfg.Limits.Burst, log)
	limiter.StartCleanup(10*time.Minute, stop)
	cors := middleware.NewCORSMiddleware(cfg.CORS.AllowedOrigins)

	chain := cors.Handler(metrics.InstrumentHandler(limiter.Handler(handler)))

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("HTTP server listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Infof("received %s, shutting down", sig)
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(),
		time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// buildStores opens the configured database, or falls back to the in-memory
// store when no DSN is set.
func buildStores(cfg *config.Config, log *logger.Logger) (app.Stores, *sql.DB, error) {
	if cfg.Database.DSN == "" {
		log.Warn("no database configured; using in-memory store")
		return app.Stores{}, nil, nil
	}

	db, err := openDatabase(cfg.Database)
	if err != nil {
		return app.Stores{}, nil, err
	}

	if err := postgres.Migrate(db); err != nil {
		db.Close()
		return app.Stores{}, nil, err
	}

	store := postgres.New(db)
	return app.Stores{
		Services:    store,
		Profiles:    store,
		Orders:      store,
		Invitations: store,
		Audit:       store,
	}, db, nil
}

func openDatabase(cfg config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, err
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Second)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}
