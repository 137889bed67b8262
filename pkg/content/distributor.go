package content

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

const (
	// MaxItemsPerResponse bounds one selection. LINE accepts five messages per reply.
	MaxItemsPerResponse = 5

	defaultConsumerIdleTTL = 72 * time.Hour
	defaultMaxConsumers    = 10000
	defaultSweepInterval   = time.Minute
)

// ShuffleFunc permutes n elements through swap, matching rand.Shuffle.
type ShuffleFunc func(n int, swap func(i, j int))

// DistributorOption configures a FairDistributor.
type DistributorOption func(*FairDistributor)

// WithShuffle replaces the pseudo-random shuffle.
func WithShuffle(shuffle ShuffleFunc) DistributorOption {
	return func(distributor *FairDistributor) {
		if shuffle != nil {
			distributor.shuffle = shuffle
		}
	}
}

// WithConsumerIdleTTL sets how long an idle consumer keeps its shown set.
func WithConsumerIdleTTL(ttl time.Duration) DistributorOption {
	return func(distributor *FairDistributor) {
		if ttl > 0 {
			distributor.idleTTL = ttl
		}
	}
}

// WithMaxConsumers bounds the number of tracked consumers. The least recently
// served consumer is evicted first.
func WithMaxConsumers(limit int) DistributorOption {
	return func(distributor *FairDistributor) {
		if limit > 0 {
			distributor.maxConsumers = limit
		}
	}
}

// WithSweepInterval sets how often Run deletes expired consumer state.
func WithSweepInterval(interval time.Duration) DistributorOption {
	return func(distributor *FairDistributor) {
		if interval > 0 {
			distributor.sweepInterval = interval
		}
	}
}

// WithDistributorLogger sets the distributor logger.
func WithDistributorLogger(logger *slog.Logger) DistributorOption {
	return func(distributor *FairDistributor) {
		if logger != nil {
			distributor.logger = logger
		}
	}
}

type consumerState struct {
	shown map[string]struct{}
}

// FairDistributor selects catalog items so that each consumer sees every
// item once before any repeats.
type FairDistributor struct {
	shuffle      ShuffleFunc
	idleTTL       time.Duration
	sweepInterval time.Duration
	maxConsumers  int
	logger        *slog.Logger

	mu     sync.Mutex
	states *ttlcache.Cache[string, *consumerState]
}

// NewFairDistributor creates a distributor with no consumer state.
func NewFairDistributor(options ...DistributorOption) *FairDistributor {
	distributor := &FairDistributor{
		shuffle:       rand.Shuffle,
		idleTTL:       defaultConsumerIdleTTL,
		sweepInterval: defaultSweepInterval,
		maxConsumers:  defaultMaxConsumers,
		logger:        slog.Default(),
	}
	for _, option := range options {
		option(distributor)
	}

	distributor.states = ttlcache.New[string, *consumerState](
		ttlcache.WithTTL[string, *consumerState](distributor.idleTTL),
		ttlcache.WithCapacity[string, *consumerState](uint64(distributor.maxConsumers)),
	)

	return distributor
}

// Select returns up to count catalog items for consumerID and records them
// as shown.
//
// count is clamped to [1, MaxItemsPerResponse]. When fewer than count items
// remain unseen the consumer's cycle restarts from the full catalog, so items
// shown at the tail of the previous cycle may reappear.
func (d *FairDistributor) Select(catalog []PhotoRecord, consumerID string, count int) []PhotoRecord {
	candidates := uniqueByID(catalog)
	if len(candidates) == 0 {
		return []PhotoRecord{}
	}
	count = clampCount(count)

	d.mu.Lock()
	defer d.mu.Unlock()

	state := d.stateLocked(consumerID)
	state.prune(candidates)

	pool := make([]PhotoRecord, 0, len(candidates))
	for _, item := range candidates {
		if _, seen := state.shown[item.ID]; !seen {
			pool = append(pool, item)
		}
	}
	if len(pool) < count {
		d.logger.Debug("distribution cycle restarted",
			"consumer", consumerID,
			"unseen", len(pool),
			"requested", count,
			"catalog", len(candidates),
		)
		clear(state.shown)
		pool = append(pool[:0], candidates...)
	}

	d.shuffle(len(pool), func(i, j int) {
		pool[i], pool[j] = pool[j], pool[i]
	})

	selected := pool[:min(count, len(pool)):min(count, len(pool))]
	for _, item := range selected {
		state.shown[item.ID] = struct{}{}
	}

	return selected
}

// Shown returns the number of items consumerID has seen in its current cycle.
func (d *FairDistributor) Shown(consumerID string) int {
	d.mu.Lock()
	defer d.mu.Unlock()

	item := d.states.Get(consumerID, ttlcache.WithDisableTouchOnHit[string, *consumerState]())
	if item == nil {
		return 0
	}

	return len(item.Value().shown)
}

// Reset clears every consumer's shown set.
func (d *FairDistributor) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.states.DeleteAll()
}

// Run deletes expired consumer state every sweep interval until ctx is
// canceled. It returns immediately when ctx is already done.
//
// Expired state is never served by Select even when no sweep has run yet.
func (d *FairDistributor) Run(ctx context.Context) {
	ticker := time.NewTicker(d.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.mu.Lock()
			d.states.DeleteExpired()
			d.mu.Unlock()
		}
	}
}

func (d *FairDistributor) stateLocked(consumerID string) *consumerState {
	if item := d.states.Get(consumerID); item != nil {
		return item.Value()
	}

	state := &consumerState{shown: make(map[string]struct{})}
	d.states.Set(consumerID, state, ttlcache.DefaultTTL)

	return state
}

// prune drops shown ids that left the catalog after a refresh.
func (s *consumerState) prune(catalog []PhotoRecord) {
	if len(s.shown) == 0 {
		return
	}
	present := make(map[string]struct{}, len(catalog))
	for _, item := range catalog {
		present[item.ID] = struct{}{}
	}
	for id := range s.shown {
		if _, ok := present[id]; !ok {
			delete(s.shown, id)
		}
	}
}

func clampCount(count int) int {
	if count < 1 {
		return 1
	}
	if count > MaxItemsPerResponse {
		return MaxItemsPerResponse
	}

	return count
}

func uniqueByID(catalog []PhotoRecord) []PhotoRecord {
	seen := make(map[string]struct{}, len(catalog))
	unique := make([]PhotoRecord, 0, len(catalog))
	for _, item := range catalog {
		if _, ok := seen[item.ID]; ok {
			continue
		}
		seen[item.ID] = struct{}{}
		unique = append(unique, item)
	}

	return unique
}
