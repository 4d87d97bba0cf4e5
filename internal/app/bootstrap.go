package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/approvisionnement/internal/catalog"
	"github.com/odyssey-erp/approvisionnement/internal/platform/blob"
	"github.com/odyssey-erp/approvisionnement/internal/platform/cache"
	"github.com/odyssey-erp/approvisionnement/internal/platform/db"
	"github.com/odyssey-erp/approvisionnement/internal/platform/jsonserver"
	"github.com/odyssey-erp/approvisionnement/internal/procurement"
)

// Backends bundles the collaborators selected by configuration.
type Backends struct {
	Store   procurement.Store
	Catalog catalog.Catalog
	// Cache is nil unless REDIS_ADDR is set.
	Cache *catalog.CachedCatalog

	closers []func()
}

// Close releases connections opened by OpenBackends.
func (b *Backends) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
	b.closers = nil
}

// OpenBackends connects the record store and the catalog described by cfg.
func OpenBackends(ctx context.Context, cfg *Config, logger *slog.Logger) (*Backends, error) {
	b := &Backends{}
	var client *jsonserver.Client
	if cfg.StoreDriver == StoreJSONServer {
		var err error
		client, err = jsonserver.New(cfg.JSONServerURL, jsonserver.WithTimeout(cfg.JSONServerTimeout))
		if err != nil {
			return nil, err
		}
	}

	store, err := b.openStore(ctx, cfg, client)
	if err != nil {
		b.Close()
		return nil, err
	}
	b.Store = store

	var source catalog.Catalog
	switch {
	case client != nil:
		source = catalog.NewRemoteCatalog(client)
	case cfg.FixturePath != "":
		snap, err := catalog.LoadFixture(cfg.FixturePath)
		if err != nil {
			b.Close()
			return nil, err
		}
		source = snap
	default:
		source = catalog.DefaultSnapshot()
	}
	b.Catalog = source

	if cfg.RedisAddr != "" {
		rdb, err := cache.New(ctx, cfg.RedisAddr)
		if err != nil {
			b.Close()
			return nil, err
		}
		b.closers = append(b.closers, func() { _ = rdb.Close() })
		b.Cache = catalog.NewCachedCatalog(source, rdb, cfg.CatalogCacheTTL)
		b.Catalog = b.Cache
	}

	logger.Info("backends ready",
		slog.String("store", cfg.StoreDriver),
		slog.Bool("catalog_cache", b.Cache != nil))
	return b, nil
}

func (b *Backends) openStore(ctx context.Context, cfg *Config, client *jsonserver.Client) (procurement.Store, error) {
	switch cfg.StoreDriver {
	case StoreJSONServer:
		return procurement.NewRemoteStore(client), nil
	case StorePostgres:
		pool, err := db.New(ctx, cfg.PGDSN, db.WithMaxConns(cfg.PGMaxConns))
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, pool.Close)
		store := procurement.NewPostgresStore(pool)
		if err := store.Migrate(ctx); err != nil {
			return nil, err
		}
		return store, nil
	default:
		var seed []procurement.Record
		if cfg.SeedPath != "" {
			var err error
			seed, err = procurement.LoadSeed(cfg.SeedPath)
			if err != nil {
				return nil, err
			}
		}
		return procurement.NewMemoryStore(seed...)
	}
}

// OpenBlobStore builds the export destination described by cfg.
func OpenBlobStore(ctx context.Context, cfg *Config) (blob.Store, error) {
	switch cfg.ExportDriver {
	case blob.DriverS3:
		return blob.NewS3Store(ctx, blob.S3Config{
			Region:          cfg.ExportS3Region,
			Bucket:          cfg.ExportS3Bucket,
			Prefix:          cfg.ExportS3Prefix,
			Endpoint:        cfg.ExportS3Endpoint,
			AccessKeyID:     cfg.ExportS3AccessKey,
			SecretAccessKey: cfg.ExportS3SecretKey,
			PathStyle:       cfg.ExportS3PathStyle,
		})
	case blob.DriverFS:
		return blob.NewFSStore(cfg.ExportDir)
	default:
		return nil, fmt.Errorf("app: unknown export driver %q", cfg.ExportDriver)
	}
}

// QueueRedis returns the asynq connection settings for the job queue. It
// accepts the same host:port or redis:// forms as the catalog cache.
func QueueRedis(cfg *Config) (asynq.RedisClientOpt, error) {
	target := cfg.RedisAddr
	if target == "" {
		target = "localhost:6379"
	}
	opts, err := cache.Options(target)
	if err != nil {
		return asynq.RedisClientOpt{}, err
	}
	return asynq.RedisClientOpt{Addr: opts.Addr, Username: opts.Username, Password: opts.Password, DB: opts.DB}, nil
}
