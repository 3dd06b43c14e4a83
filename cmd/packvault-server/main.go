// Package main is the entry point for the PackVault server, a versioned
// archive store for composite package bundles.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/prn-tf/packvault/internal/cache"
	memorycache "github.com/prn-tf/packvault/internal/cache/memory"
	rediscache "github.com/prn-tf/packvault/internal/cache/redis"
	"github.com/prn-tf/packvault/internal/config"
	"github.com/prn-tf/packvault/internal/handler"
	"github.com/prn-tf/packvault/internal/lock"
	"github.com/prn-tf/packvault/internal/manifest"
	"github.com/prn-tf/packvault/internal/metrics"
	"github.com/prn-tf/packvault/internal/repository"
	"github.com/prn-tf/packvault/internal/repository/postgres"
	"github.com/prn-tf/packvault/internal/repository/sqlite"
	"github.com/prn-tf/packvault/internal/service"
	"github.com/prn-tf/packvault/internal/storage"
	fsstore "github.com/prn-tf/packvault/internal/storage/fs"
	s3store "github.com/prn-tf/packvault/internal/storage/s3"
)

// Version information (set at build time)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg := config.MustLoad(*configPath)
	logger := newLogger(cfg.Logging)

	logger.Info().
		Str("version", Version).
		Str("build_time", BuildTime).
		Str("git_commit", GitCommit).
		Msg("starting PackVault server")

	if err := run(cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("server exited with error")
	}
}

func run(cfg *config.Config, logger zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Database
	var (
		repos  *repository.Repositories
		health repository.DatabaseHealth
	)
	if cfg.Database.IsEmbedded() {
		db, err := sqlite.NewDB(ctx, sqlite.Config{
			Path:            cfg.Database.Path,
			JournalMode:     cfg.Database.JournalMode,
			BusyTimeout:     cfg.Database.BusyTimeout,
			SynchronousMode: "NORMAL",
		}, logger)
		if err != nil {
			return fmt.Errorf("open sqlite: %w", err)
		}
		defer db.Close()
		if err := db.Migrate(ctx); err != nil {
			return fmt.Errorf("migrate sqlite: %w", err)
		}
		repos = sqlite.NewRepositories(db)
		health = db
	} else {
		db, err := postgres.NewDB(ctx, postgres.Config{
			Host:            cfg.Database.Host,
			Port:            cfg.Database.Port,
			User:            cfg.Database.User,
			Password:        cfg.Database.Password,
			Database:        cfg.Database.Database,
			SSLMode:         cfg.Database.SSLMode,
			MaxOpenConns:    cfg.Database.MaxOpenConns,
			MaxIdleConns:    cfg.Database.MaxOpenConns / 5,
			ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
			ConnMaxIdleTime: cfg.Database.ConnMaxLifetime,
		}, logger)
		if err != nil {
			return fmt.Errorf("open postgres: %w", err)
		}
		defer db.Close()
		if err := db.Migrate(ctx); err != nil {
			return fmt.Errorf("migrate postgres: %w", err)
		}
		repos = postgres.NewRepositories(db)
		health = db
	}

	// Object store
	var store storage.ObjectStore
	switch cfg.Storage.Backend {
	case "s3":
		s3s, err := s3store.New(ctx, s3store.Options{
			Endpoint:        cfg.Storage.S3.Endpoint,
			Region:          cfg.Storage.S3.Region,
			Bucket:          cfg.Storage.S3.Bucket,
			Prefix:          cfg.Storage.S3.Prefix,
			AccessKeyID:     cfg.Storage.S3.AccessKeyID,
			SecretAccessKey: cfg.Storage.S3.SecretAccessKey,
			UsePathStyle:    cfg.Storage.S3.UsePathStyle,
		}, logger)
		if err != nil {
			return fmt.Errorf("open s3 storage: %w", err)
		}
		store = s3s
	default:
		fss, err := fsstore.New(cfg.Storage.DataDir, cfg.Storage.TempDir, logger)
		if err != nil {
			return fmt.Errorf("open filesystem storage: %w", err)
		}
		store = fss
	}

	// Locking and caching: Redis when enabled, in-process otherwise.
	var (
		locker    lock.Locker
		manifests cache.Cache
	)
	if cfg.Redis.Enabled {
		client := goredis.NewClient(&goredis.Options{
			Addr:        cfg.Redis.Addr(),
			Password:    cfg.Redis.Password,
			DB:          cfg.Redis.DB,
			PoolSize:    cfg.Redis.PoolSize,
			DialTimeout: cfg.Redis.DialTimeout,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer client.Close()
		locker = lock.NewRedisLocker(client)
		manifests = rediscache.NewCache(client)
		logger.Info().Str("addr", cfg.Redis.Addr()).Msg("connected to Redis")
	} else {
		locker = lock.NewMemoryLocker()
		mc := memorycache.NewCache()
		defer mc.Close()
		manifests = mc
	}

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)

	// Services
	tracker := manifest.NewTracker(store, locker, manifests, manifest.Options{
		LockTTL:        cfg.Manifest.LockTTL,
		LockRetries:    cfg.Manifest.LockRetries,
		LockRetryDelay: cfg.Manifest.LockRetryDelay,
		CacheTTL:       cfg.Manifest.CacheTTL,
	}, logger)

	registrySvc := service.NewRegistryService(repos, logger)
	uploadSvc := service.NewUploadService(repos, store, tracker,
		service.OwnerOnly(repos.Packages), m, logger, cfg.Storage.BlobTimeout)
	reconstructSvc := service.NewReconstructService(repos, store, tracker,
		m, logger, cfg.Storage.BlobTimeout)

	// HTTP
	api := handler.NewAPIHandler(handler.APIConfig{
		Registry:       registrySvc,
		Uploads:        uploadSvc,
		Reconstructs:   reconstructSvc,
		Manifests:      tracker,
		MaxArchiveSize: cfg.Upload.MaxArchiveSize,
		Logger:         logger,
	})
	router := handler.NewRouter(handler.RouterConfig{
		API:    api,
		Health: health,
		Logger: logger,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 2)
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle(cfg.Metrics.Path, promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
		metricsServer = &http.Server{
			Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Metrics.Port),
			Handler: mux,
		}
		go func() {
			logger.Info().Str("addr", metricsServer.Addr).Msg("metrics server listening")
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				errCh <- fmt.Errorf("metrics server: %w", err)
			}
		}()
	}

	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("HTTP server shutdown failed")
	}
	if metricsServer != nil {
		_ = metricsServer.Shutdown(shutdownCtx)
	}

	logger.Info().Msg("server stopped")
	return nil
}

// newLogger builds the root logger from logging configuration.
func newLogger(cfg config.LoggingConfig) zerolog.Logger {
	zerolog.TimeFieldFormat = cfg.TimeFormat

	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		level = zerolog.InfoLevel
	}

	var out = os.Stdout
	if cfg.Output == "stderr" {
		out = os.Stderr
	}

	if cfg.Format == "console" {
		return zerolog.New(zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}).
			Level(level).With().Timestamp().Logger()
	}
	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}
