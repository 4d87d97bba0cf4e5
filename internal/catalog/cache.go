package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/approvisionnement/internal/shared"
)

const (
	cacheVersionKey = "catalog:version"
	cachePrefix     = "catalog"
)

// CachedCatalog serves reference data from Redis, loading from source on miss.
// Keys embed a version counter so Invalidate drops every entry at once.
type CachedCatalog struct {
	source Catalog
	client *redis.Client
	ttl    time.Duration
}

// NewCachedCatalog wraps source with a Redis cache. A nil client disables caching.
func NewCachedCatalog(source Catalog, client *redis.Client, ttl time.Duration) *CachedCatalog {
	return &CachedCatalog{source: source, client: client, ttl: ttl}
}

// Version returns the current cache version, initialising when missing.
func (c *CachedCatalog) Version(ctx context.Context) (int64, error) {
	if c.client == nil {
		return 0, nil
	}
	ver, err := c.client.Get(ctx, cacheVersionKey).Int64()
	if errors.Is(err, redis.Nil) {
		if err := c.client.SetNX(ctx, cacheVersionKey, 1, 0).Err(); err != nil {
			return 0, err
		}
		return 1, nil
	}
	if err != nil {
		return 0, err
	}
	return ver, nil
}

// Invalidate bumps the version so subsequent reads reload from source.
func (c *CachedCatalog) Invalidate(ctx context.Context) error {
	if c.client == nil {
		return nil
	}
	return c.client.Incr(ctx, cacheVersionKey).Err()
}

// Warm preloads both lists into the cache.
func (c *CachedCatalog) Warm(ctx context.Context) (int, int, error) {
	suppliers, err := c.Suppliers(ctx)
	if err != nil {
		return 0, 0, err
	}
	articles, err := c.Articles(ctx)
	if err != nil {
		return 0, 0, err
	}
	return len(suppliers), len(articles), nil
}

// Suppliers returns the cached supplier list.
func (c *CachedCatalog) Suppliers(ctx context.Context) ([]Supplier, error) {
	var out []Supplier
	err := c.fetch(ctx, ResourceSuppliers, &out, func(ctx context.Context) (any, error) {
		return c.source.Suppliers(ctx)
	})
	return out, err
}

// Supplier resolves a supplier from the cached list.
func (c *CachedCatalog) Supplier(ctx context.Context, id string) (Supplier, error) {
	suppliers, err := c.Suppliers(ctx)
	if err != nil {
		return Supplier{}, err
	}
	for _, s := range suppliers {
		if s.ID == id {
			return s, nil
		}
	}
	return Supplier{}, fmt.Errorf("catalog: supplier %q: %w", id, shared.ErrNotFound)
}

// Articles returns the cached article list.
func (c *CachedCatalog) Articles(ctx context.Context) ([]Article, error) {
	var out []Article
	err := c.fetch(ctx, ResourceArticles, &out, func(ctx context.Context) (any, error) {
		return c.source.Articles(ctx)
	})
	return out, err
}

// Article resolves an article from the cached list.
func (c *CachedCatalog) Article(ctx context.Context, id string) (Article, error) {
	articles, err := c.Articles(ctx)
	if err != nil {
		return Article{}, err
	}
	for _, a := range articles {
		if a.ID == id {
			return a, nil
		}
	}
	return Article{}, fmt.Errorf("catalog: article %q: %w", id, shared.ErrNotFound)
}

// SearchArticles filters the cached article list by name.
func (c *CachedCatalog) SearchArticles(ctx context.Context, term string) ([]Article, error) {
	articles, err := c.Articles(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Article, 0, len(articles))
	for _, a := range articles {
		if matchName(a.Name, term) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (c *CachedCatalog) fetch(ctx context.Context, name string, dest any, loader func(context.Context) (any, error)) error {
	if c.client == nil {
		return decodeLoaded(ctx, dest, loader)
	}
	ver, err := c.Version(ctx)
	if err != nil {
		return err
	}
	key := fmt.Sprintf("%s:%s:%d", cachePrefix, name, ver)
	payload, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		return json.Unmarshal(payload, dest)
	}
	if !errors.Is(err, redis.Nil) {
		return err
	}
	value, err := loader(ctx)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		return err
	}
	return json.Unmarshal(raw, dest)
}

func decodeLoaded(ctx context.Context, dest any, loader func(context.Context) (any, error)) error {
	value, err := loader(ctx)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dest)
}
