package kernel

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"wedding-bot/pkg/chat"
)

// BusConfig holds the defaults a bus applies to subscriptions that leave
// fields unset, plus the sink for failures raised off the publish path.
type BusConfig struct {
	Buffer         int
	Workers        int
	HandlerTimeout time.Duration
	// MaxEventAge is zero for no age limit.
	MaxEventAge time.Duration
	// Now defaults to time.Now.
	Now func() time.Time
	// OnError receives handler failures, drops and expirations.
	OnError func(ctx context.Context, scope string, err error)
}

// EventBus fans events out to bounded per-subscription queues.
//
// Publish reads an immutable subscription slice; Subscribe and unsubscribe
// replace it under writeMu.
type EventBus struct {
	cfg BusConfig

	writeMu sync.Mutex
	subs    atomic.Pointer[[]*busSubscription]
	closed  atomic.Bool
	nextID  atomic.Int64
}

// NewEventBus creates an event bus. Non-positive defaults fall back to one
// worker and a one-slot buffer.
func NewEventBus(cfg BusConfig) *EventBus {
	if cfg.Buffer <= 0 {
		cfg.Buffer = 1
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	bus := &EventBus{cfg: cfg}
	empty := make([]*busSubscription, 0)
	bus.subs.Store(&empty)

	return bus
}

// Publish validates event and offers it to every subscription whose interest
// matches. Drops caused by backpressure are reported, not returned.
func (b *EventBus) Publish(ctx context.Context, event *chat.Event) error {
	if event == nil {
		return fmt.Errorf("publish event: %w: nil event", chat.ErrInvalidEvent)
	}
	if err := event.Validate(); err != nil {
		return fmt.Errorf("publish event %s: %w", event.Kind, err)
	}
	if b.closed.Load() {
		return fmt.Errorf("publish event %s: %w", event.Kind, chat.ErrSubscriptionClosed)
	}

	var errs []error
	for _, sub := range *b.subs.Load() {
		if !sub.interest.Matches(event) {
			continue
		}
		err := sub.offer(ctx, event)
		switch {
		case err == nil:
		case errors.Is(err, chat.ErrEventDropped), errors.Is(err, chat.ErrSubscriptionClosed):
			sub.dropped.Add(1)
			b.report(ctx, sub.spec.Name, err)
		default:
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("publish event %s: %w", event.Kind, errors.Join(errs...))
	}

	return nil
}

// Subscribe starts a consumer with its own queue and worker pool.
func (b *EventBus) Subscribe(
	ctx context.Context,
	interest chat.InterestSet,
	spec chat.SubscriptionSpec,
	handler chat.EventHandler,
) (chat.Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", spec.Name, err)
	}
	if handler == nil {
		return nil, fmt.Errorf("subscribe %s: %w: nil handler", spec.Name, chat.ErrInvalidSubscription)
	}
	if !validBackpressure(spec.Backpressure) {
		return nil, fmt.Errorf(
			"subscribe %s: %w: backpressure %q",
			spec.Name, chat.ErrInvalidSubscription, spec.Backpressure,
		)
	}

	id := b.nextID.Add(1)
	spec = b.withDefaults(spec, id)

	b.writeMu.Lock()
	defer b.writeMu.Unlock()
	if b.closed.Load() {
		return nil, fmt.Errorf("subscribe %s: %w", spec.Name, chat.ErrSubscriptionClosed)
	}

	sub := startSubscription(id, interest, spec, handler, b)
	current := *b.subs.Load()
	next := make([]*busSubscription, 0, len(current)+1)
	next = append(next, current...)
	next = append(next, sub)
	b.subs.Store(&next)

	return sub, nil
}

// Close stops every subscription and rejects later publishes and subscribes.
// Calling it again is a no-op.
func (b *EventBus) Close(ctx context.Context) error {
	b.writeMu.Lock()
	if b.closed.Swap(true) {
		b.writeMu.Unlock()
		return nil
	}
	subs := *b.subs.Load()
	empty := make([]*busSubscription, 0)
	b.subs.Store(&empty)
	b.writeMu.Unlock()

	var errs []error
	for _, sub := range subs {
		if err := sub.stop(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close event bus: %w", errors.Join(errs...))
	}

	return nil
}

// SubscriptionStats summarizes delivery for one subscription.
type SubscriptionStats struct {
	Name    string `json:"name"`
	Queued  int    `json:"queued"`
	Handled int64  `json:"handled"`
	Failed  int64  `json:"failed"`
	Dropped int64  `json:"dropped"`
	Expired int64  `json:"expired"`
}

// Stats returns counters for the active subscriptions ordered by name.
func (b *EventBus) Stats() []SubscriptionStats {
	subs := *b.subs.Load()
	stats := make([]SubscriptionStats, 0, len(subs))
	for _, sub := range subs {
		stats = append(stats, sub.stats())
	}
	slices.SortFunc(stats, func(a, c SubscriptionStats) int {
		return strings.Compare(a.Name, c.Name)
	})

	return stats
}

func (b *EventBus) withDefaults(spec chat.SubscriptionSpec, id int64) chat.SubscriptionSpec {
	if spec.Name == "" {
		spec.Name = fmt.Sprintf("subscription-%d", id)
	}
	if spec.Buffer <= 0 {
		spec.Buffer = b.cfg.Buffer
	}
	if spec.Workers <= 0 {
		spec.Workers = b.cfg.Workers
	}
	if spec.HandlerTimeout <= 0 {
		spec.HandlerTimeout = b.cfg.HandlerTimeout
	}
	if spec.MaxEventAge <= 0 {
		spec.MaxEventAge = b.cfg.MaxEventAge
	}
	if spec.Backpressure == "" {
		spec.Backpressure = chat.BackpressureDropNewest
	}

	return spec
}

// remove detaches the subscription with id and stops it.
func (b *EventBus) remove(ctx context.Context, id int64) error {
	b.writeMu.Lock()
	current := *b.subs.Load()
	idx := slices.IndexFunc(current, func(sub *busSubscription) bool { return sub.id == id })
	if idx < 0 {
		b.writeMu.Unlock()
		return nil
	}
	sub := current[idx]
	next := slices.Delete(slices.Clone(current), idx, idx+1)
	b.subs.Store(&next)
	b.writeMu.Unlock()

	if err := sub.stop(ctx); err != nil {
		return fmt.Errorf("unsubscribe %s: %w", sub.spec.Name, err)
	}

	return nil
}

func (b *EventBus) report(ctx context.Context, scope string, err error) {
	if b.cfg.OnError != nil {
		b.cfg.OnError(ctx, scope, err)
	}
}

func validBackpressure(policy chat.BackpressurePolicy) bool {
	switch policy {
	case "", chat.BackpressureDropNewest, chat.BackpressureDropOldest, chat.BackpressureBlock:
		return true
	default:
		return false
	}
}
