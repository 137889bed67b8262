package content

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// Tier is one backend in a fallback chain.
type Tier[T any] struct {
	Name    string
	Enabled bool
	Source  Source[T]
}

// TierChain tries its enabled tiers in order and returns the first answer
// that arrives without error. An empty answer counts.
type TierChain[T any] struct {
	tiers  []Tier[T]
	logger *slog.Logger

	mu          sync.Mutex
	lastFailure map[string]error
}

// NewTierChain creates a chain over tiers in the given order.
func NewTierChain[T any](logger *slog.Logger, tiers ...Tier[T]) *TierChain[T] {
	if logger == nil {
		logger = slog.Default()
	}

	return &TierChain[T]{
		tiers:       append([]Tier[T](nil), tiers...),
		logger:      logger,
		lastFailure: make(map[string]error),
	}
}

// FetchAll implements Source.
func (c *TierChain[T]) FetchAll(ctx context.Context) (T, error) {
	var (
		zero     T
		failures []error
		tried    int
	)
	for _, tier := range c.tiers {
		if !tier.Enabled || tier.Source == nil {
			continue
		}
		if err := ctx.Err(); err != nil {
			return zero, fmt.Errorf("%w: %w", ErrFetch, err)
		}
		tried++

		data, err := fetchSafely(ctx, tier.Source)
		if err != nil {
			c.recordFailure(tier.Name, err)
			c.logger.Warn("photo tier failed, falling through", "tier", tier.Name, "error", err)
			failures = append(failures, fmt.Errorf("tier %s: %w", tier.Name, err))
			continue
		}

		c.recordFailure(tier.Name, nil)
		c.logger.Debug("photo tier served catalog", "tier", tier.Name)
		return data, nil
	}

	if tried == 0 {
		return zero, fmt.Errorf("%w: %w: no enabled tiers", ErrUnavailable, ErrConfiguration)
	}

	return zero, fmt.Errorf("%w: %w: all %d tiers failed: %w", ErrFetch, ErrUnavailable, tried, errors.Join(failures...))
}

// LastFailure returns the most recent error of the named tier, or nil after
// its last success.
func (c *TierChain[T]) LastFailure(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.lastFailure[name]
}

// Enabled lists enabled tier names in fallback order.
func (c *TierChain[T]) Enabled() []string {
	names := make([]string, 0, len(c.tiers))
	for _, tier := range c.tiers {
		if tier.Enabled && tier.Source != nil {
			names = append(names, tier.Name)
		}
	}

	return names
}

func (c *TierChain[T]) recordFailure(name string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err == nil {
		delete(c.lastFailure, name)
		return
	}
	c.lastFailure[name] = err
}
