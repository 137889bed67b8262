package content

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"
)

// CatalogCache is the photo catalog snapshot cache. A reload also restarts
// every consumer's distribution cycle.
type CatalogCache struct {
	cache       *TTLCache[[]PhotoRecord]
	distributor *FairDistributor
	logger      *slog.Logger
}

// NewCatalogCache creates a catalog cache over source whose reloads reset distributor.
func NewCatalogCache(
	source Source[[]PhotoRecord],
	distributor *FairDistributor,
	ttl time.Duration,
	options ...CacheOption,
) *CatalogCache {
	cfg := cacheOptions{logger: slog.Default()}
	for _, option := range options {
		option(&cfg)
	}

	return &CatalogCache{
		cache:       NewTTLCache(source, ttl, append([]CacheOption{WithName("photo_catalog")}, options...)...),
		distributor: distributor,
		logger:      cfg.logger,
	}
}

// Get returns a copy of the current catalog, refetching when stale.
func (c *CatalogCache) Get(ctx context.Context) ([]PhotoRecord, error) {
	catalog, err := c.cache.Get(ctx, false)
	if err != nil {
		return nil, err
	}

	return slices.Clone(catalog), nil
}

// Reload refetches the catalog and, on success only, clears all consumer
// distribution state. An empty catalog is a successful reload.
func (c *CatalogCache) Reload(ctx context.Context) (int, error) {
	catalog, err := c.cache.Get(ctx, true)
	if err != nil {
		return 0, fmt.Errorf("reload catalog: %w", err)
	}
	if c.distributor != nil {
		c.distributor.Reset()
	}
	c.logger.Info("photo catalog reloaded", "count", len(catalog))

	return len(catalog), nil
}

// Invalidate drops the snapshot without touching distribution state.
func (c *CatalogCache) Invalidate() {
	c.cache.Invalidate()
}
