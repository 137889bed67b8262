package kernel

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"wedding-bot/pkg/chat"
)

// busSubscription is one queue plus the workers draining it.
type busSubscription struct {
	id       int64
	interest chat.InterestSet
	spec     chat.SubscriptionSpec
	handler  chat.EventHandler
	bus      *EventBus

	queue    chan *chat.Event
	ctx      context.Context
	cancel   context.CancelFunc
	workers  sync.WaitGroup
	done     chan struct{}
	stopping atomic.Bool

	handled atomic.Int64
	failed  atomic.Int64
	dropped atomic.Int64
	expired atomic.Int64
}

func startSubscription(
	id int64,
	interest chat.InterestSet,
	spec chat.SubscriptionSpec,
	handler chat.EventHandler,
	bus *EventBus,
) *busSubscription {
	ctx, cancel := context.WithCancel(context.Background())
	sub := &busSubscription{
		id:       id,
		interest: copyInterest(interest),
		spec:     spec,
		handler:  handler,
		bus:      bus,
		queue:    make(chan *chat.Event, spec.Buffer),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}

	for worker := 1; worker <= spec.Workers; worker++ {
		sub.workers.Add(1)
		go sub.work(worker)
	}
	go func() {
		sub.workers.Wait()
		close(sub.done)
	}()

	return sub
}

func copyInterest(interest chat.InterestSet) chat.InterestSet {
	out := interest
	out.Kinds = cloneNonEmpty(interest.Kinds)
	out.KeywordNames = cloneNonEmpty(interest.KeywordNames)
	out.MessageTypes = cloneNonEmpty(interest.MessageTypes)
	out.Sources = cloneNonEmpty(interest.Sources)

	return out
}

func cloneNonEmpty[T any](in []T) []T {
	if len(in) == 0 {
		return in
	}

	return append([]T(nil), in...)
}

// Name returns the subscription name.
func (s *busSubscription) Name() string {
	return s.spec.Name
}

// Close detaches the subscription from its bus and waits for workers.
func (s *busSubscription) Close(ctx context.Context) error {
	return s.bus.remove(ctx, s.id)
}

func (s *busSubscription) stats() SubscriptionStats {
	return SubscriptionStats{
		Name:    s.spec.Name,
		Queued:  len(s.queue),
		Handled: s.handled.Load(),
		Failed:  s.failed.Load(),
		Dropped: s.dropped.Load(),
		Expired: s.expired.Load(),
	}
}

// offer enqueues event according to the backpressure policy.
func (s *busSubscription) offer(ctx context.Context, event *chat.Event) error {
	if s.stopping.Load() {
		return fmt.Errorf("enqueue %s: %w", s.spec.Name, chat.ErrSubscriptionClosed)
	}

	select {
	case s.queue <- event:
		return nil
	default:
	}

	switch s.spec.Backpressure {
	case chat.BackpressureBlock:
		select {
		case s.queue <- event:
			return nil
		case <-ctx.Done():
			return fmt.Errorf("enqueue %s: %w", s.spec.Name, ctx.Err())
		case <-s.ctx.Done():
			return fmt.Errorf("enqueue %s: %w", s.spec.Name, chat.ErrSubscriptionClosed)
		}
	case chat.BackpressureDropOldest:
		select {
		case <-s.queue:
			s.dropped.Add(1)
		default:
		}
		select {
		case s.queue <- event:
			return nil
		default:
		}
	}

	return fmt.Errorf("enqueue %s: %w", s.spec.Name, chat.ErrEventDropped)
}

func (s *busSubscription) work(worker int) {
	defer s.workers.Done()

	scope := fmt.Sprintf("subscription %s worker %d", s.spec.Name, worker)
	for {
		select {
		case <-s.ctx.Done():
			return
		case event := <-s.queue:
			s.deliver(scope, event)
		}
	}
}

// deliver runs the handler for one event unless the event is already
// older than MaxEventAge.
func (s *busSubscription) deliver(scope string, event *chat.Event) {
	if s.spec.MaxEventAge > 0 {
		age := s.bus.cfg.Now().Sub(event.OccurredAt)
		if age > s.spec.MaxEventAge {
			s.expired.Add(1)
			s.bus.report(s.ctx, s.spec.Name, fmt.Errorf(
				"%s skip event %s (age %s): %w", scope, event.ID, age.Truncate(time.Millisecond), chat.ErrEventExpired,
			))
			return
		}
	}

	ctx := s.ctx
	if s.spec.HandlerTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.spec.HandlerTimeout)
		defer cancel()
	}

	err := runSafely(scope, func() error {
		return s.handler(ctx, event)
	})
	if err != nil {
		s.failed.Add(1)
		s.bus.report(s.ctx, s.spec.Name, fmt.Errorf("handle event %s: %w", event.Kind, err))
		return
	}
	s.handled.Add(1)
}

// stop cancels the workers and waits for them, bounded by ctx.
func (s *busSubscription) stop(ctx context.Context) error {
	if !s.stopping.Swap(true) {
		s.cancel()
	}

	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("shutdown subscription %s: %w", s.spec.Name, ctx.Err())
	}
}
