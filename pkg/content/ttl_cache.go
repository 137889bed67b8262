package content

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// CacheEntry is one immutable snapshot held by a TTLCache.
type CacheEntry[T any] struct {
	Data      T
	FetchedAt time.Time
}

// CacheOption configures a TTLCache.
type CacheOption func(*cacheOptions)

type cacheOptions struct {
	name   string
	clock  func() time.Time
	logger *slog.Logger
}

// WithName labels cache log records.
func WithName(name string) CacheOption {
	return func(options *cacheOptions) {
		if name != "" {
			options.name = name
		}
	}
}

// WithClock overrides the time source used for freshness checks.
func WithClock(clock func() time.Time) CacheOption {
	return func(options *cacheOptions) {
		if clock != nil {
			options.clock = clock
		}
	}
}

// WithLogger sets the logger for fetch failures and refresh records.
func WithLogger(logger *slog.Logger) CacheOption {
	return func(options *cacheOptions) {
		if logger != nil {
			options.logger = logger
		}
	}
}

// TTLCache holds at most one snapshot of a Source and refetches it once the
// snapshot is older than the configured TTL.
//
// Fetches run outside the lock. Concurrent stale reads may refetch
// redundantly; the entry with the newest fetch time wins.
type TTLCache[T any] struct {
	source Source[T]
	ttl    time.Duration
	name   string
	clock  func() time.Time
	logger *slog.Logger

	mu    sync.Mutex
	entry *CacheEntry[T]
}

// NewTTLCache creates an empty cache over source.
func NewTTLCache[T any](source Source[T], ttl time.Duration, options ...CacheOption) *TTLCache[T] {
	cfg := cacheOptions{
		name:   "cache",
		clock:  time.Now,
		logger: slog.Default(),
	}
	for _, option := range options {
		option(&cfg)
	}

	return &TTLCache[T]{
		source: source,
		ttl:    ttl,
		name:   cfg.name,
		clock:  cfg.clock,
		logger: cfg.logger,
	}
}

// Get returns the cached snapshot while it is fresh and refetches otherwise.
//
// On fetch failure the zero T and an error wrapping ErrFetch are returned.
// The previous entry, if any, is kept and Peek still reports it. A failure
// with no previous entry records nothing, so the next Get refetches.
func (c *TTLCache[T]) Get(ctx context.Context, forceRefresh bool) (T, error) {
	now := c.clock()

	c.mu.Lock()
	entry := c.entry
	c.mu.Unlock()

	reason := refreshReason(forceRefresh, entry, now, c.ttl)
	if reason == "" {
		return entry.Data, nil
	}

	return c.refresh(ctx, reason)
}

func refreshReason[T any](force bool, entry *CacheEntry[T], now time.Time, ttl time.Duration) string {
	switch {
	case force:
		return "forced"
	case entry == nil:
		return "absent"
	case now.Sub(entry.FetchedAt) >= ttl:
		return "expired"
	default:
		return ""
	}
}

func (c *TTLCache[T]) refresh(ctx context.Context, reason string) (T, error) {
	data, err := fetchSafely(ctx, c.source)
	fetchedAt := c.clock()

	c.mu.Lock()
	defer c.mu.Unlock()

	if err != nil {
		c.logger.Warn("cache refresh failed",
			"cache", c.name,
			"reason", reason,
			"keeping_previous", c.entry != nil,
			"error", err,
		)

		var zero T
		return zero, fmt.Errorf("%w: refresh %s: %w", ErrFetch, c.name, err)
	}

	if c.entry != nil && fetchedAt.Before(c.entry.FetchedAt) {
		// A newer concurrent refresh already landed.
		return data, nil
	}

	c.entry = &CacheEntry[T]{Data: data, FetchedAt: fetchedAt}
	c.logger.Debug("cache refreshed", "cache", c.name, "reason", reason)

	return data, nil
}

// Invalidate discards the current entry so the next Get refetches.
func (c *TTLCache[T]) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entry = nil
	c.logger.Info("cache invalidated", "cache", c.name)
}

// Peek returns the last successfully fetched entry without fetching.
func (c *TTLCache[T]) Peek() (CacheEntry[T], bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.entry == nil {
		return CacheEntry[T]{}, false
	}

	return *c.entry, true
}
