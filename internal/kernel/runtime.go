package kernel

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"wedding-bot/pkg/chat"
)

// moduleRecord stores module metadata and subscriptions managed by the kernel.
type moduleRecord struct {
	name          string
	module        chat.Module
	capabilities  []chat.Capability
	subscriptions []chat.Subscription
	subMu         sync.Mutex
}

func (m *moduleRecord) addSubscription(subscription chat.Subscription) {
	m.subMu.Lock()
	defer m.subMu.Unlock()
	m.subscriptions = append(m.subscriptions, subscription)
}

// closeSubscriptions closes all tracked subscriptions and aggregates close errors.
// Repeated calls are no-ops.
func (m *moduleRecord) closeSubscriptions(ctx context.Context) error {
	m.subMu.Lock()
	subscriptions := append([]chat.Subscription(nil), m.subscriptions...)
	m.subscriptions = nil
	m.subMu.Unlock()

	var closeErr error
	for _, subscription := range subscriptions {
		if err := subscription.Close(ctx); err != nil {
			closeErr = errors.Join(closeErr, fmt.Errorf("close subscription %s: %w", subscription.Name(), err))
		}
	}

	return closeErr
}

// moduleRuntime is the kernel-owned implementation of chat.ModuleRuntime.
type moduleRuntime struct {
	moduleName    string
	serviceLookup chat.ServiceRegistry
	bus           chat.EventBus
	record        *moduleRecord
	defaultSink   *chat.SinkRef
}

// Services returns the kernel service registry visible to the module.
func (r *moduleRuntime) Services() chat.ServiceRegistry {
	return moduleServiceRegistry{
		base:        r.serviceLookup,
		defaultSink: cloneSinkRef(r.defaultSink),
	}
}

// Subscribe registers a module-owned subscription after capability checks.
func (r *moduleRuntime) Subscribe(
	ctx context.Context,
	interest chat.InterestSet,
	spec chat.SubscriptionSpec,
	handler chat.EventHandler,
) (chat.Subscription, error) {
	if spec.Name == "" {
		spec.Name = fmt.Sprintf("%s-subscription", r.moduleName)
	}
	if err := assertSubscriptionAllowed(r.record.capabilities, spec.Name, interest); err != nil {
		return nil, fmt.Errorf("module %s subscribe %s: %w", r.moduleName, spec.Name, err)
	}

	subscription, err := r.bus.Subscribe(ctx, interest, spec, handler)
	if err != nil {
		return nil, fmt.Errorf("module %s subscribe %s: %w", r.moduleName, spec.Name, err)
	}

	r.record.addSubscription(subscription)

	return subscription, nil
}

// assertSubscriptionAllowed requires that some declared capability covers interest.
func assertSubscriptionAllowed(capabilities []chat.Capability, subscriptionName string, interest chat.InterestSet) error {
	if len(capabilities) == 0 {
		return fmt.Errorf("subscription %s requires at least one declared capability", subscriptionName)
	}

	for _, capability := range capabilities {
		if capability.Interest.Allows(interest) {
			return nil
		}
	}

	return fmt.Errorf("subscription does not match declared module capabilities")
}

// moduleServiceRegistry wraps the reply dispatcher with the module's default sink.
type moduleServiceRegistry struct {
	base        chat.ServiceRegistry
	defaultSink *chat.SinkRef
}

func (r moduleServiceRegistry) Register(name string, service any) error {
	if err := r.base.Register(name, service); err != nil {
		return fmt.Errorf("register service %s: %w", name, err)
	}

	return nil
}

func (r moduleServiceRegistry) Resolve(name string) (any, error) {
	service, err := r.base.Resolve(name)
	if err != nil {
		return nil, fmt.Errorf("resolve service %s: %w", name, err)
	}
	if name != chat.ServiceReplyDispatcher || r.defaultSink == nil {
		return service, nil
	}
	dispatcher, ok := service.(chat.ReplyDispatcher)
	if !ok {
		return nil, fmt.Errorf("resolve service %s: %w: got %T", name, chat.ErrServiceType, service)
	}

	return routedReplyDispatcher{
		base:        dispatcher,
		defaultSink: cloneSinkRef(r.defaultSink),
	}, nil
}

type routedReplyDispatcher struct {
	base        chat.ReplyDispatcher
	defaultSink *chat.SinkRef
}

func (d routedReplyDispatcher) Reply(ctx context.Context, request chat.ReplyRequest) error {
	if request.Target.Sink == nil {
		request.Target.Sink = cloneSinkRef(d.defaultSink)
	}
	if err := d.base.Reply(ctx, request); err != nil {
		return fmt.Errorf("reply with module sink routing: %w", err)
	}

	return nil
}

func cloneSinkRef(sink *chat.SinkRef) *chat.SinkRef {
	if sink == nil {
		return nil
	}
	cloned := *sink

	return &cloned
}
