package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/hamzaabbasi123-ab/olivegrrove/internal/api"
	"github.com/hamzaabbasi123-ab/olivegrrove/internal/auth"
	"github.com/hamzaabbasi123-ab/olivegrrove/internal/config"
	"github.com/hamzaabbasi123-ab/olivegrrove/internal/database"
	"github.com/hamzaabbasi123-ab/olivegrrove/internal/logger"
	"github.com/hamzaabbasi123-ab/olivegrrove/internal/metrics"
	"github.com/hamzaabbasi123-ab/olivegrrove/internal/session"
	"github.com/hamzaabbasi123-ab/olivegrrove/internal/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logg := logger.New(logger.Options{
		ServiceName: "olivegrove-api",
		Environment: cfg.App.Env,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logg); err != nil {
		logg.Error(ctx, "server.exit", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger) error {
	db, err := database.NewConnection(ctx, &cfg.Database)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()
	logg.Info(ctx, "database.connected")

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(ctx, db, "up"); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	seeded, err := store.SeedProducts(ctx, db, store.SampleProducts)
	if err != nil {
		return fmt.Errorf("seed catalog: %w", err)
	}
	if seeded > 0 {
		logg.Info(logg.WithField(ctx, "products", seeded), "catalog.seeded")
	}

	redisClient, err := session.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		return fmt.Errorf("connect to redis: %w", err)
	}
	defer redisClient.Close()
	logg.Info(ctx, "redis.connected")

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewDBStatsCollector(db, "olivegrove"),
	)

	handler := api.NewRouter(api.Deps{
		DB:             db,
		Auth:           auth.NewService(db, cfg.Password.BcryptCost),
		Sessions:       session.NewManager(session.NewRedisStore(redisClient), cfg.Session),
		Logger:         logg,
		Metrics:        metrics.New(reg),
		Gatherer:       reg,
		HealthChecks:   healthChecks(db, redisClient),
		RequestTimeout: cfg.Server.RequestTimeout,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logg.Info(logg.WithField(ctx, "port", cfg.Server.Port), "server.starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logg.Info(ctx, "server.shutting_down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logg.Info(ctx, "server.stopped")
	return nil
}

func healthChecks(db *sql.DB, client *redis.Client) map[string]api.HealthCheck {
	return map[string]api.HealthCheck{
		"postgres": db.PingContext,
		"redis": func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		},
	}
}
