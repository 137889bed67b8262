package kernel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"wedding-bot/pkg/chat"
)

// Kernel owns the module and driver lifecycle around one event bus.
type Kernel struct {
	cfg    config
	logger *slog.Logger

	bus      *EventBus
	services *ServiceRegistry

	mu       sync.RWMutex
	modules  []*moduleRecord
	drivers  []chat.Driver
	keywords map[chat.KeywordTrigger]keywordRegistration

	running atomic.Bool
}

// New builds a kernel and registers its keyword catalog service.
func New(options ...Option) *Kernel {
	cfg := defaultConfig()
	for _, option := range options {
		option(&cfg)
	}
	cfg.onAsyncError = cfg.errorSink()

	k := &Kernel{
		cfg:      cfg,
		logger:   cfg.logger.With("component", "kernel"),
		services: NewServiceRegistry(),
		keywords: make(map[chat.KeywordTrigger]keywordRegistration),
		bus: NewEventBus(BusConfig{
			Buffer:         cfg.subscriptionBuffer,
			Workers:        cfg.subscriptionWorker,
			HandlerTimeout: cfg.handlerTimeout,
			MaxEventAge:    cfg.maxEventAge,
			OnError:        cfg.onAsyncError,
		}),
	}
	if err := k.services.Register(chat.ServiceKeywordCatalog, &kernelKeywordCatalog{kernel: k}); err != nil {
		cfg.onAsyncError(context.Background(), "register keyword catalog service", err)
	}

	return k
}

// EventBus returns the bus modules subscribe to.
func (k *Kernel) EventBus() chat.EventBus {
	return k.bus
}

// BusStats reports delivery counters of every active subscription.
func (k *Kernel) BusStats() []SubscriptionStats {
	return k.bus.Stats()
}

// Services returns the registry shared with modules.
func (k *Kernel) Services() chat.ServiceRegistry {
	return k.services
}

// RegisterService adds a named service to the shared registry.
func (k *Kernel) RegisterService(name string, service any) error {
	if err := k.services.Register(name, service); err != nil {
		return fmt.Errorf("register service %s: %w", name, err)
	}

	return nil
}

// RegisterModule validates module, subscribes its declared handlers and
// calls OnRegister. Any failure undoes the partial registration.
func (k *Kernel) RegisterModule(ctx context.Context, module chat.Module) error {
	if module == nil {
		return fmt.Errorf("register module: nil module")
	}
	name := module.Name()
	if name == "" {
		return fmt.Errorf("register module: empty module name")
	}
	spec := module.Spec()
	record, err := k.admitModule(name, module, spec)
	if err != nil {
		return fmt.Errorf("register module %s: %w", name, err)
	}

	if err := k.bindModule(ctx, record, spec); err != nil {
		k.rollbackModuleRegistration(ctx, name, record)
		return fmt.Errorf("register module %s: %w", name, err)
	}

	k.logger.InfoContext(ctx, "module registered",
		"module", name,
		"keywords", len(spec.Keywords),
		"handlers", len(spec.Handlers),
	)

	return nil
}

// admitModule checks the module spec and its service dependencies, then appends the
// module record.
func (k *Kernel) admitModule(name string, module chat.Module, spec chat.ModuleSpec) (*moduleRecord, error) {
	if err := validateModuleSpec(spec); err != nil {
		return nil, err
	}
	record := &moduleRecord{name: name, module: module, capabilities: spec.Capabilities()}
	if err := k.validateCapabilityDependencies(record.capabilities); err != nil {
		return nil, err
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	if slices.ContainsFunc(k.modules, func(existing *moduleRecord) bool { return existing.name == name }) {
		return nil, chat.ErrModuleAlreadyRegistered
	}
	k.modules = append(k.modules, record)

	return record, nil
}

// bindModule claims keywords, runs OnRegister and subscribes declared handlers.
func (k *Kernel) bindModule(ctx context.Context, record *moduleRecord, spec chat.ModuleSpec) error {
	if err := k.registerModuleKeywords(record.name, spec.Keywords); err != nil {
		return err
	}

	runtime := &moduleRuntime{
		moduleName:    record.name,
		serviceLookup: k.services,
		bus:           k.bus,
		record:        record,
		defaultSink:   k.moduleRouteFor(record.name).Sink,
	}
	hookCtx, cancel := context.WithTimeout(ctx, k.cfg.moduleHookTimeout)
	defer cancel()

	if registrar, ok := record.module.(chat.ModuleRegistrar); ok {
		if err := runSafely("module "+record.name+" OnRegister", func() error {
			return registrar.OnRegister(hookCtx, runtime)
		}); err != nil {
			return err
		}
	}

	return k.registerDeclaredHandlers(hookCtx, record.name, runtime, spec.Handlers)
}

// RegisterDriver registers a platform driver.
func (k *Kernel) RegisterDriver(driver chat.Driver) error {
	if driver == nil {
		return fmt.Errorf("register driver: nil driver")
	}
	name := driver.Name()
	if name == "" {
		return fmt.Errorf("register driver: empty name")
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	if slices.ContainsFunc(k.drivers, func(existing chat.Driver) bool { return existing.Name() == name }) {
		return fmt.Errorf("register driver %s: %w", name, chat.ErrDriverAlreadyRegistered)
	}
	k.drivers = append(k.drivers, driver)

	return nil
}

// Run starts modules, runs drivers, and blocks until cancellation or fatal driver error.
func (k *Kernel) Run(ctx context.Context) error {
	if !k.running.CompareAndSwap(false, true) {
		return fmt.Errorf("kernel run: already running")
	}
	defer k.running.Store(false)

	k.logger.InfoContext(ctx, "kernel starting", "services", k.services.Names())
	if err := k.startModules(ctx); err != nil {
		return err
	}

	runCtx, runCancel := context.WithCancel(ctx)
	driverErr, waitDrivers := k.startDrivers(runCtx)

	var runErr error
	select {
	case <-ctx.Done():
		runErr = ctx.Err()
	case err := <-driverErr:
		runErr = err
	}

	runCancel()
	waitDrivers()

	shutdownErr := k.shutdownAll(ctx)
	if isContextCancellation(runErr) {
		runErr = nil
	}

	err := errors.Join(runErr, shutdownErr)
	if err != nil {
		k.logger.ErrorContext(context.WithoutCancel(ctx), "kernel stopped", "error", err)
		return err
	}
	k.logger.InfoContext(context.WithoutCancel(ctx), "kernel stopped")

	return nil
}

// startModules invokes OnStart in registration order with per-module timeouts.
func (k *Kernel) startModules(ctx context.Context) error {
	for _, record := range k.moduleSnapshot() {
		hookCtx, cancel := context.WithTimeout(ctx, k.cfg.moduleHookTimeout)
		err := runSafely("module "+record.name+" OnStart", func() error {
			return record.module.OnStart(hookCtx)
		})
		cancel()
		if err != nil {
			return fmt.Errorf("start module %s: %w", record.name, err)
		}
		k.logger.DebugContext(ctx, "module started", "module", record.name)
	}

	return nil
}

// startDrivers runs all registered drivers concurrently and returns:
// - an error channel delivering the first fatal driver error, and
// - a wait function that blocks for driver completion up to shutdown timeout.
func (k *Kernel) startDrivers(ctx context.Context) (<-chan error, func()) {
	errChannel := make(chan error, 1)
	done := make(chan struct{})
	workerWG := &sync.WaitGroup{}

	driverSink := k.newDriverEventSink()

	for _, driver := range k.driverSnapshot() {
		workerWG.Add(1)
		go func(adapter chat.Driver) {
			defer workerWG.Done()
			name := adapter.Name()
			err := runSafely("driver "+name+" Start", func() error {
				return adapter.Start(ctx, driverSink)
			})
			if err == nil || isContextCancellation(err) {
				k.logger.DebugContext(ctx, "driver stopped", "driver", name)
				return
			}
			select {
			case errChannel <- fmt.Errorf("run driver %s: %w", name, err):
			default:
			}
		}(driver)
	}

	go func() {
		workerWG.Wait()
		close(done)
	}()

	wait := func() {
		select {
		case <-done:
		case <-time.After(k.cfg.shutdownTimeout):
		}
	}

	go func() {
		<-done
		select {
		case errChannel <- context.Canceled:
		default:
		}
	}()

	return errChannel, wait
}

// shutdownAll tears down drivers, modules, and bus in a bounded timeout window.
// It uses WithoutCancel to ensure cleanup still runs after parent cancellation.
func (k *Kernel) shutdownAll(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), k.cfg.shutdownTimeout)
	defer cancel()

	var shutdownErr error
	if err := k.shutdownDrivers(shutdownCtx); err != nil {
		shutdownErr = errors.Join(shutdownErr, err)
	}
	if err := k.shutdownModules(shutdownCtx); err != nil {
		shutdownErr = errors.Join(shutdownErr, err)
	}
	if err := k.bus.Close(shutdownCtx); err != nil {
		shutdownErr = errors.Join(shutdownErr, err)
	}

	if shutdownErr != nil {
		return fmt.Errorf("kernel shutdown: %w", shutdownErr)
	}

	return nil
}

// shutdownDrivers executes driver Shutdown in reverse registration order.
func (k *Kernel) shutdownDrivers(ctx context.Context) error {
	drivers := k.driverSnapshot()

	var shutdownErr error
	for idx := len(drivers) - 1; idx >= 0; idx-- {
		driver := drivers[idx]
		name := driver.Name()
		err := runSafely("driver "+name+" Shutdown", func() error {
			return driver.Shutdown(ctx)
		})
		if err != nil {
			shutdownErr = errors.Join(shutdownErr, fmt.Errorf("shutdown driver %s: %w", name, err))
		}
	}

	return shutdownErr
}

// shutdownModules closes module subscriptions and invokes OnShutdown in reverse order.
func (k *Kernel) shutdownModules(ctx context.Context) error {
	modules := k.moduleSnapshot()

	var shutdownErr error
	for idx := len(modules) - 1; idx >= 0; idx-- {
		record := modules[idx]
		name := record.name
		if err := record.closeSubscriptions(ctx); err != nil {
			shutdownErr = errors.Join(shutdownErr, fmt.Errorf("shutdown module %s subscriptions: %w", name, err))
		}
		hookCtx, cancel := context.WithTimeout(ctx, k.cfg.moduleHookTimeout)
		err := runSafely("module "+name+" OnShutdown", func() error {
			return record.module.OnShutdown(hookCtx)
		})
		cancel()
		if err != nil {
			shutdownErr = errors.Join(shutdownErr, fmt.Errorf("shutdown module %s: %w", name, err))
		}
	}

	return shutdownErr
}

// rollbackModuleRegistration removes a partially registered module after OnRegister failure.
// It attempts best-effort subscription cleanup before removing registry entries.
func (k *Kernel) rollbackModuleRegistration(ctx context.Context, name string, record *moduleRecord) {
	rollbackCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), k.cfg.moduleHookTimeout)
	defer cancel()

	if err := record.closeSubscriptions(rollbackCtx); err != nil {
		k.cfg.onAsyncError(rollbackCtx, "rollback_module_registration", err)
	}
	k.unregisterModuleKeywords(name)

	k.mu.Lock()
	defer k.mu.Unlock()
	k.modules = slices.DeleteFunc(k.modules, func(existing *moduleRecord) bool { return existing == record })
}

func (k *Kernel) moduleSnapshot() []*moduleRecord {
	k.mu.RLock()
	defer k.mu.RUnlock()

	return slices.Clone(k.modules)
}

func (k *Kernel) driverSnapshot() []chat.Driver {
	k.mu.RLock()
	defer k.mu.RUnlock()

	return slices.Clone(k.drivers)
}

// validateCapabilityDependencies checks required services declared by capabilities.
func (k *Kernel) validateCapabilityDependencies(capabilities []chat.Capability) error {
	for _, capability := range capabilities {
		for _, serviceName := range capability.RequiredServices {
			_, err := k.services.Resolve(serviceName)
			if err != nil {
				return fmt.Errorf(
					"capability %s requires service %s: %w",
					capability.Name,
					serviceName,
					err,
				)
			}
		}
	}

	return nil
}

// registerDeclaredHandlers binds all declarative handlers from ModuleSpec.
func (k *Kernel) registerDeclaredHandlers(
	ctx context.Context,
	moduleName string,
	runtime *moduleRuntime,
	handlers []chat.ModuleHandler,
) error {
	route := k.moduleRouteFor(moduleName)
	for idx, declared := range handlers {
		capabilityName := declared.Capability.Name
		spec := declared.Subscription
		interest := declared.Capability.Interest
		if len(route.Sources) > 0 {
			interest.Sources = append([]chat.EventSource(nil), route.Sources...)
		}
		if spec.Name == "" {
			spec.Name = fmt.Sprintf("%s-handler-%d", moduleName, idx+1)
		}
		if _, err := runtime.Subscribe(ctx, interest, spec, declared.Handler); err != nil {
			return fmt.Errorf("register handler %s for capability %s: %w", spec.Name, capabilityName, err)
		}
	}

	return nil
}

func (k *Kernel) moduleRouteFor(moduleName string) ModuleRoute {
	if route, exists := k.cfg.routing.moduleRoutes[moduleName]; exists {
		return route
	}
	if k.cfg.routing.defaultRoute != nil {
		return *k.cfg.routing.defaultRoute
	}

	return ModuleRoute{}
}

// validateModuleSpec rejects unnamed or duplicate capabilities, duplicate
// subscription names, nil handlers and invalid or duplicate keywords.
func validateModuleSpec(spec chat.ModuleSpec) error {
	capabilities := make(map[string]bool)
	claim := func(label string, name string) error {
		if name == "" {
			return fmt.Errorf("%s: empty capability name", label)
		}
		if capabilities[name] {
			return fmt.Errorf("%s: duplicate capability name %s", label, name)
		}
		capabilities[name] = true
		return nil
	}

	subscriptions := make(map[string]bool)
	for idx, handler := range spec.Handlers {
		capability := handler.Capability.Name
		if err := claim(fmt.Sprintf("module handler %d", idx), capability); err != nil {
			return err
		}
		if handler.Handler == nil {
			return fmt.Errorf("module handler %s: nil handler", capability)
		}
		if sub := handler.Subscription.Name; sub != "" {
			if subscriptions[sub] {
				return fmt.Errorf("module handler %s: duplicate subscription name %s", capability, sub)
			}
			subscriptions[sub] = true
		}
	}
	for idx, capability := range spec.AdditionalCapabilities {
		if err := claim(fmt.Sprintf("additional capability %d", idx), capability.Name); err != nil {
			return err
		}
	}

	keywords := make(map[string]bool, len(spec.Keywords))
	for idx, keyword := range spec.Keywords {
		if err := keyword.Validate(); err != nil {
			return fmt.Errorf("module keyword %d: %w", idx, err)
		}
		if keywords[keyword.Name] {
			return fmt.Errorf("module keyword %d: duplicate keyword %s", idx, keyword.Name)
		}
		keywords[keyword.Name] = true
	}

	return nil
}

// isContextCancellation reports whether err is a context-driven termination signal.
func isContextCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
