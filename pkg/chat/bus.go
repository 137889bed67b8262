package chat

import (
	"context"
	"time"
)

// BackpressurePolicy picks what Publish does when a subscription queue is full.
type BackpressurePolicy string

// Backpressure policies. The zero value means BackpressureDropNewest.
const (
	BackpressureDropNewest BackpressurePolicy = "drop_newest"
	BackpressureDropOldest BackpressurePolicy = "drop_oldest"
	// BackpressureBlock waits for room until the publisher's context ends.
	BackpressureBlock BackpressurePolicy = "block"
)

// SubscriptionSpec tunes one subscription. Zero values for Buffer, Workers,
// HandlerTimeout and MaxEventAge defer to kernel defaults.
type SubscriptionSpec struct {
	Name           string
	Buffer         int
	Workers        int
	HandlerTimeout time.Duration
	Backpressure   BackpressurePolicy
	// MaxEventAge skips events whose OccurredAt is older than this when a
	// worker picks them up. LINE reply tokens stop working after about a minute.
	MaxEventAge time.Duration
}

// NewDefaultSubscriptionSpec returns a spec with only the name set.
func NewDefaultSubscriptionSpec(name string) SubscriptionSpec {
	return SubscriptionSpec{Name: name}
}

// Subscription is a live registration returned by Subscribe.
type Subscription interface {
	Name() string
	// Close stops delivery and waits for in-flight handlers, bounded by ctx.
	Close(ctx context.Context) error
}

// EventBus delivers published events to matching subscriptions on their own
// worker goroutines.
type EventBus interface {
	EventSink
	Subscribe(ctx context.Context, interest InterestSet, spec SubscriptionSpec, handler EventHandler) (Subscription, error)
	Close(ctx context.Context) error
}
