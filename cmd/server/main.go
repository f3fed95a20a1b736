package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	gcs "cloud.google.com/go/storage"
	"github.com/JonMunkholm/fileentity/internal/config"
	"github.com/JonMunkholm/fileentity/internal/core"
	"github.com/JonMunkholm/fileentity/internal/database"
	"github.com/JonMunkholm/fileentity/internal/logging"
	"github.com/JonMunkholm/fileentity/internal/storage"
	"github.com/JonMunkholm/fileentity/internal/web"
	"github.com/JonMunkholm/fileentity/internal/wizard"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

// stores groups the persistence backends chosen by configuration.
type stores struct {
	registry core.Registry
	files    core.FileRepository
	audit    interface {
		core.AuditLog
		core.AuditReader
	}
	pings []func(context.Context) error
	close []func()
}

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"store_backend", cfg.Store.Backend,
		"session_backend", cfg.Session.Backend,
		"schemes", cfg.Storage.Schemes,
		"upload_max_concurrent", cfg.Upload.MaxConcurrent,
		"rate_limit_enabled", cfg.Rate.Enabled,
	)

	ctx := context.Background()

	st, err := openStores(ctx, cfg)
	if err != nil {
		slog.Error("failed to open stores", "error", err)
		os.Exit(1)
	}
	defer st.shutdown()

	sessions, err := openSessionStore(ctx, cfg, st)
	if err != nil {
		slog.Error("failed to open session store", "error", err)
		os.Exit(1)
	}

	set, err := openStorage(ctx, cfg, st)
	if err != nil {
		slog.Error("failed to open file storage", "error", err)
		os.Exit(1)
	}

	limiter := wizard.NewUploadLimiter(cfg.Upload.MaxConcurrent, cfg.Upload.MaxWaitTime)
	resolver := core.NewResolver(st.registry, core.SchemesFromNames(cfg.Storage.Schemes))

	wiz := wizard.New(wizard.Deps{
		Registry:    st.registry,
		Resolver:    resolver,
		Store:       sessions,
		Files:       st.files,
		Storage:     set,
		Limiter:     limiter,
		Audit:       st.audit,
		TTL:         cfg.Session.TTL,
		MaxFileSize: cfg.Upload.MaxFileSize,
	})

	server := web.NewServer(cfg, web.Deps{
		Admin:    core.NewAdminService(st.registry, st.files, st.audit, cfg.Storage.Schemes),
		Wizard:   wiz,
		Resolver: resolver,
		Registry: st.registry,
		Files:    st.files,
		Limiter:  limiter,
		Storage:  set,
		Audit:    st.audit,
		Ping:     st.ping,
	})

	jobCtx, cancelJobs := context.WithCancel(context.Background())
	go wizard.NewSweeper(sessions, set, cfg.Session.SweepInterval).Run(jobCtx)

	// Graceful shutdown
	done := make(chan struct{})
	go func() {
		defer close(done)
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")
		cancelJobs()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if status := limiter.Status(); status.Active > 0 {
			slog.Info("waiting for uploads to complete", "active", status.Active)
			if err := limiter.WaitForDrain(shutdownCtx); err != nil {
				slog.Warn("uploads did not complete in time", "error", err)
			} else {
				slog.Info("all uploads completed")
			}
		}

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server stopped", "error", err)
		st.shutdown()
		os.Exit(1)
	}
	<-done
	slog.Info("server stopped")
}

func (s *stores) ping(ctx context.Context) error {
	for _, p := range s.pings {
		if err := p(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (s *stores) shutdown() {
	for i := len(s.close) - 1; i >= 0; i-- {
		s.close[i]()
	}
	s.close = nil
}

// openStores connects the file type, file and audit stores.
func openStores(ctx context.Context, cfg *config.Config) (*stores, error) {
	if strings.EqualFold(cfg.Store.Backend, "memory") {
		slog.Warn("using in-memory store; file types and files are lost on restart")
		return &stores{
			registry: core.NewMemoryRegistry(),
			files:    core.NewMemoryFileRepository(),
			audit:    &core.MemoryAuditLog{},
		}, nil
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}
	poolConfig.MaxConns = int32(cfg.Database.MaxConns)
	poolConfig.MinConns = int32(cfg.Database.MinConns)
	poolConfig.MaxConnLifetime = cfg.Database.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.Database.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if u, err := url.Parse(cfg.Database.URL); err == nil {
		slog.Info("connected to database", "name", strings.TrimPrefix(u.Path, "/"))
	} else {
		slog.Info("connected to database")
	}

	if err := database.Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	registry := core.NewPostgresRegistry(pool)
	if err := registry.EnsureDefaults(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("seed default file type: %w", err)
	}

	return &stores{
		registry: registry,
		files:    core.NewPostgresFileRepository(pool),
		audit:    core.NewPostgresAuditLog(pool),
		pings:    []func(context.Context) error{pool.Ping},
		close:    []func(){pool.Close},
	}, nil
}

// openSessionStore returns the wizard session store.
func openSessionStore(ctx context.Context, cfg *config.Config, st *stores) (wizard.Store, error) {
	if !strings.EqualFold(cfg.Session.Backend, "redis") {
		return wizard.NewMemoryStore(), nil
	}

	opts, err := redis.ParseURL(cfg.Session.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	slog.Info("connected to redis", "addr", opts.Addr, "prefix", cfg.Session.KeyPrefix)

	st.pings = append(st.pings, func(ctx context.Context) error { return client.Ping(ctx).Err() })
	st.close = append(st.close, func() { _ = client.Close() })
	return wizard.NewRedisStore(client, wizard.WithKeyPrefix(cfg.Session.KeyPrefix)), nil
}

// openStorage builds the temporary, public and private scheme backends.
func openStorage(ctx context.Context, cfg *config.Config, st *stores) (*storage.Set, error) {
	temp, err := storage.NewLocalBackend(storage.TemporaryScheme, cfg.Storage.TempDir)
	if err != nil {
		return nil, err
	}
	public, err := storage.NewLocalBackend("public", cfg.Storage.PublicDir)
	if err != nil {
		return nil, err
	}

	var private storage.Backend
	if strings.EqualFold(cfg.Storage.PrivateBackend, "gcs") {
		client, err := gcs.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("create GCS client: %w", err)
		}
		st.close = append(st.close, func() { _ = client.Close() })
		private = storage.NewGCSBackend(client, "private", cfg.Storage.GCSBucket, "private")
		slog.Info("private files stored in GCS", "bucket", cfg.Storage.GCSBucket)
	} else {
		local, err := storage.NewLocalBackend("private", cfg.Storage.PrivateDir)
		if err != nil {
			return nil, err
		}
		private = local
	}

	return storage.NewSet(temp, public, private), nil
}
