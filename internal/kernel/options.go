package kernel

import (
	"context"
	"log/slog"
	"time"

	"wedding-bot/pkg/chat"
)

const (
	defaultModuleHookTimeout  = 5 * time.Second
	defaultShutdownTimeout    = 10 * time.Second
	defaultSubscriptionBuffer = 256
	defaultSubscriptionWorker = 1
	defaultHandlerTimeout     = 3 * time.Second
	// LINE reply tokens are valid for roughly one minute after the webhook.
	defaultMaxEventAge = 50 * time.Second
)

type config struct {
	moduleHookTimeout  time.Duration
	shutdownTimeout    time.Duration
	subscriptionBuffer int
	subscriptionWorker int
	handlerTimeout     time.Duration
	maxEventAge        time.Duration
	logger             *slog.Logger
	onAsyncError       func(context.Context, string, error)
	routing            routingConfig
}

// ModuleRoute limits which sources reach a module and which sink its replies
// use when they name none.
type ModuleRoute struct {
	Sources []chat.EventSource
	Sink    *chat.SinkRef
}

type routingConfig struct {
	defaultRoute *ModuleRoute
	moduleRoutes map[string]ModuleRoute
}

// Option configures a Kernel.
type Option func(*config)

func defaultConfig() config {
	cfg := config{
		moduleHookTimeout:  defaultModuleHookTimeout,
		shutdownTimeout:    defaultShutdownTimeout,
		subscriptionBuffer: defaultSubscriptionBuffer,
		subscriptionWorker: defaultSubscriptionWorker,
		handlerTimeout:     defaultHandlerTimeout,
		maxEventAge:        defaultMaxEventAge,
		routing: routingConfig{
			moduleRoutes: make(map[string]ModuleRoute),
		},
	}
	cfg.logger = slog.Default()

	return cfg
}

// errorSink returns the configured async error handler or one that logs.
func (cfg config) errorSink() func(context.Context, string, error) {
	if cfg.onAsyncError != nil {
		return cfg.onAsyncError
	}
	logger := cfg.logger

	return func(ctx context.Context, scope string, err error) {
		logger.ErrorContext(ctx, "kernel async error", "scope", scope, "error", err)
	}
}

func setPositive[T int | time.Duration](target *T, value T) {
	if value > 0 {
		*target = value
	}
}

// WithModuleHookTimeout bounds each OnRegister, OnStart and OnShutdown call.
func WithModuleHookTimeout(timeout time.Duration) Option {
	return func(cfg *config) { setPositive(&cfg.moduleHookTimeout, timeout) }
}

// WithShutdownTimeout bounds the whole shutdown sequence.
func WithShutdownTimeout(timeout time.Duration) Option {
	return func(cfg *config) { setPositive(&cfg.shutdownTimeout, timeout) }
}

// WithDefaultSubscriptionBuffer sets the queue depth for subscriptions that
// leave Buffer unset.
func WithDefaultSubscriptionBuffer(size int) Option {
	return func(cfg *config) { setPositive(&cfg.subscriptionBuffer, size) }
}

// WithDefaultSubscriptionWorkers sets the worker count for subscriptions that
// leave Workers unset.
func WithDefaultSubscriptionWorkers(workers int) Option {
	return func(cfg *config) { setPositive(&cfg.subscriptionWorker, workers) }
}

// WithDefaultHandlerTimeout bounds each handler call.
func WithDefaultHandlerTimeout(timeout time.Duration) Option {
	return func(cfg *config) { setPositive(&cfg.handlerTimeout, timeout) }
}

// WithMaxEventAge drops queued events older than age instead of handling
// them. A negative age disables the check.
func WithMaxEventAge(age time.Duration) Option {
	return func(cfg *config) {
		switch {
		case age < 0:
			cfg.maxEventAge = 0
		case age > 0:
			cfg.maxEventAge = age
		}
	}
}

// WithLogger sets the kernel logger. Unless WithAsyncErrorHandler is also
// given, background failures are logged through it.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *config) {
		if logger != nil {
			cfg.logger = logger
		}
	}
}

// WithAsyncErrorHandler replaces the sink for handler failures and drops.
func WithAsyncErrorHandler(handler func(context.Context, string, error)) Option {
	return func(cfg *config) {
		if handler != nil {
			cfg.onAsyncError = handler
		}
	}
}

// WithModuleRouting configures module inbound source filters and default sink routing.
func WithModuleRouting(defaultRoute *ModuleRoute, routes map[string]ModuleRoute) Option {
	return func(cfg *config) {
		cfg.routing.defaultRoute = cloneRoute(defaultRoute)
		cfg.routing.moduleRoutes = make(map[string]ModuleRoute, len(routes))
		for moduleName, route := range routes {
			cfg.routing.moduleRoutes[moduleName] = *cloneRoute(&route)
		}
	}
}

func cloneRoute(route *ModuleRoute) *ModuleRoute {
	if route == nil {
		return nil
	}
	cloned := ModuleRoute{}
	if len(route.Sources) > 0 {
		cloned.Sources = append([]chat.EventSource(nil), route.Sources...)
	}
	if route.Sink != nil {
		sink := *route.Sink
		cloned.Sink = &sink
	}

	return &cloned
}
