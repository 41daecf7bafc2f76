package main

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/valkey-io/valkey-go"

	"github.com/concoursapp/catalogsync/internal/bootstrap"
	"github.com/concoursapp/catalogsync/internal/domain/catalog"
	"github.com/concoursapp/catalogsync/internal/infra/catalogstore"
	"github.com/concoursapp/catalogsync/internal/infra/config"
	"github.com/concoursapp/catalogsync/internal/infra/connectivity"
	"github.com/concoursapp/catalogsync/internal/infra/remote"
	"github.com/concoursapp/catalogsync/internal/infra/snapshotstore"
)

// runtimeMonitor is both the reachability source and a startable component.
type runtimeMonitor interface {
	catalog.Monitor
	bootstrap.Lifecycle
}

func provideCatalogConfig(cfg *config.Config) catalog.Config {
	return catalog.Config{
		CacheTTL:       cfg.Cache.TTL,
		RefreshOnStart: cfg.Sync.RefreshOnStart,
	}
}

func provideFetcher(cfg *config.Config) *remote.Client {
	return remote.NewClient(cfg.Remote.BaseURL, cfg.Remote.RequestTimeout)
}

func provideMonitor(cfg *config.Config, logger *slog.Logger) runtimeMonitor {
	if cfg.Connectivity.Offline {
		logger.Info("connectivity forced offline, serving cache only")
		return connectivity.NewManualMonitor(false)
	}
	probeURL := strings.TrimSpace(cfg.Connectivity.ProbeURL)
	if probeURL == "" {
		probeURL = strings.TrimRight(cfg.Remote.BaseURL, "/") + "/api/categories"
	}
	return connectivity.NewProbeMonitor(probeURL, cfg.Connectivity.Interval, logger)
}

func provideStore(cfg *config.Config, logger *slog.Logger) catalog.Store {
	fallback := catalogstore.NewMemoryStore()
	dsn := strings.TrimSpace(cfg.Postgres.DSN)
	if dsn == "" {
		logger.Info("postgres dsn not set, using memory store")
		return fallback
	}
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		logger.Error("invalid postgres dsn, using memory store", "error", err)
		return fallback
	}
	if cfg.Postgres.MaxConns > 0 {
		poolConfig.MaxConns = cfg.Postgres.MaxConns
	}
	if cfg.Postgres.MinConns > 0 {
		poolConfig.MinConns = cfg.Postgres.MinConns
	}
	pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		logger.Error("failed to initialize postgres pool, using memory store", "error", err)
		return fallback
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctx); err != nil {
		logger.Error("postgres ping failed, using memory store", "error", err)
		pool.Close()
		return fallback
	}
	logger.Info("postgres catalog store enabled")
	return catalogstore.NewPostgresStore(pool)
}

func provideSnapshotCache(cfg *config.Config, logger *slog.Logger) catalog.SnapshotCache {
	if !cfg.Cache.Enabled {
		return snapshotstore.NewMemoryStore()
	}
	opt, err := buildValkeyOptions(cfg)
	if err != nil {
		logger.Error("invalid valkey configuration, falling back to memory cache", "error", err)
		return snapshotstore.NewMemoryStore()
	}
	client, err := valkey.NewClient(opt)
	if err != nil {
		logger.Error("failed to create valkey client, falling back to memory cache", "error", err)
		return snapshotstore.NewMemoryStore()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		logger.Error("valkey ping failed, falling back to memory cache", "error", err)
		return snapshotstore.NewMemoryStore()
	}
	logger.Info("valkey snapshot cache enabled", "addr", cfg.Cache.Addr)
	return snapshotstore.NewValkeyStore(client, "catalog")
}

func buildValkeyOptions(cfg *config.Config) (valkey.ClientOption, error) {
	var (
		opt valkey.ClientOption
		err error
	)
	if strings.Contains(cfg.Cache.Addr, "://") {
		opt, err = valkey.ParseURL(cfg.Cache.Addr)
	} else {
		opt = valkey.ClientOption{InitAddress: []string{cfg.Cache.Addr}}
	}
	if err != nil {
		return valkey.ClientOption{}, err
	}
	return opt, nil
}
