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

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"dispatcher/internal/api"
	"dispatcher/internal/cache"
	"dispatcher/internal/config"
	"dispatcher/internal/dispatch"
	"dispatcher/internal/logger"
	"dispatcher/internal/store"
	"dispatcher/internal/triage"
)

func main() {
	// Load environment variables from .env file
	envErr := config.LoadEnv()

	log := logger.Setup()
	if envErr != nil && !errors.Is(envErr, config.ErrEnvFileNotFound) {
		log.Warn("env_load_failed", "err", envErr)
	}

	cfg := config.Load()
	log.Info("server_starting", "port", cfg.Port, "schedule", cfg.RefreshSchedule)

	// Set up a context that will be canceled on SIGINT or SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	components, err := setupComponents(ctx, cfg)
	if err != nil {
		log.Error("setup_failed", "err", err)
		os.Exit(1)
	}
	defer components.close()

	// Initial pass so the first snapshot request is served from memory
	if _, err := components.coordinator.Recompute(ctx); err != nil {
		log.Warn("initial_recompute_failed", "err", err)
	}
	components.scheduler.Start()

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      api.WithCORS(components.router, cfg.CORSAllowedOrigins),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info("server_listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server_failed", "err", err)
			stop()
		}
	}()

	// Wait for interrupt signal
	<-ctx.Done()
	log.Info("server_stopping")

	// Create a deadline for graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	components.scheduler.Stop(shutdownCtx)
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server_shutdown_failed", "err", err)
		return
	}

	log.Info("server_stopped")
}

// Components holds all the application components
type Components struct {
	router      *gin.Engine
	coordinator *dispatch.Coordinator
	scheduler   *dispatch.Scheduler

	postgres *store.PostgresStore
	redis    *redis.Client
}

func (c *Components) close() {
	if c.postgres != nil {
		c.postgres.Close()
	}
	if c.redis != nil {
		c.redis.Close()
	}
}

// setupComponents initializes all application components
func setupComponents(ctx context.Context, cfg config.Config) (*Components, error) {
	log := logger.L()
	components := &Components{}

	// Postgres when configured, otherwise an in-memory store
	var st store.Store
	if cfg.DatabaseURL != "" {
		pg, err := store.OpenPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres: %w", err)
		}
		components.postgres = pg
		st = pg
		log.Info("store_ready", "backend", "postgres")
	} else {
		st = store.NewMemoryStore()
		log.Info("store_ready", "backend", "memory")
	}

	if cfg.HospitalSeedFile != "" {
		hospitals, err := store.LoadHospitalSeed(cfg.HospitalSeedFile)
		if err != nil {
			components.close()
			return nil, err
		}
		if err := store.SeedHospitals(ctx, st, hospitals); err != nil {
			components.close()
			return nil, err
		}
		log.Info("hospitals_seeded", "count", len(hospitals), "file", cfg.HospitalSeedFile)
	}

	var snapshots cache.SnapshotCache = cache.NopCache{}
	if client := cache.OpenRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB); client != nil {
		if err := client.Ping(ctx).Err(); err != nil {
			log.Warn("redis_unavailable", "addr", cfg.RedisAddr, "err", err)
			client.Close()
		} else {
			components.redis = client
			snapshots = cache.NewRedisSnapshotCache(client, cfg.SnapshotTTL).WithKey(cfg.SnapshotKey)
			log.Info("snapshot_cache_ready", "addr", cfg.RedisAddr, "key", cfg.SnapshotKey, "ttl", cfg.SnapshotTTL)
		}
	}

	classifier := triage.NewKeywordClassifier(triage.ClassifierConfig{})
	components.coordinator = dispatch.NewCoordinator(st, snapshots, classifier, dispatch.CoordinatorConfig{
		PassTimeout: cfg.APITimeout,
		StatusTTL:   cfg.StatusTTL,
		Logger:      log,
	})

	scheduler, err := dispatch.NewScheduler(cfg.RefreshSchedule, components.coordinator, cfg.APITimeout)
	if err != nil {
		components.close()
		return nil, err
	}
	components.scheduler = scheduler

	gin.SetMode(cfg.GinMode)
	handler := api.NewDispatchHandler(components.coordinator, cfg.APITimeout)
	components.router = api.NewRouter(handler)

	return components, nil
}
