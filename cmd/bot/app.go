package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"wedding-bot/internal/driver"
	"wedding-bot/internal/kernel"
	"wedding-bot/internal/server"
	"wedding-bot/pkg/chat"
)

const (
	envConfigFile             = "WEDDINGBOT_CONFIG_FILE"
	defaultConfigFilePath     = "config/bot.json"
	alternateConfigFilePath   = "bin/config/bot.json"
	defaultModuleHookTimeout  = 3 * time.Second
	defaultShutdownTimeout    = 10 * time.Second
	defaultSubscriptionBuffer = 256
	defaultSubscriptionWorker = 4
	defaultHandlerTimeout     = 15 * time.Second

	defaultServerAddr  = ":3000"
	defaultPhotoDir    = "data/pictures"
	defaultTableDir    = "public/tables"
	defaultMaxTable    = 23
	defaultGuestsFile  = "data/guests.csv"
	defaultSourceLimit = 20 * time.Second

	defaultDirectoryTTL     = 5 * time.Minute
	defaultCatalogTTL       = 30 * time.Minute
	defaultPhotosPerRequest = 1
)

var runtimeModuleNames = []string{"menu", "seatlookup", "photos"}

var photoTierTypes = map[string]struct{}{
	tierTypeGCS:   {},
	tierTypeS3:    {},
	tierTypeImgur: {},
	tierTypeLocal: {},
}

type appConfig struct {
	logLevel slog.Level

	moduleHookTimeout   time.Duration
	shutdownTimeout     time.Duration
	subscriptionBuffer  int
	subscriptionWorkers int
	handlerTimeout      time.Duration
	maxEventAge         time.Duration

	drivers        []driver.Definition
	routingDefault *kernel.ModuleRoute
	moduleRoutes   map[string]kernel.ModuleRoute

	server    serverSettings
	content   contentSettings
	directory directorySettings
	tiers     []tierDefinition
}

type serverSettings struct {
	addr          string
	publicBaseURL string
	photoDir      string
	tableDir      string
	maxTable      int
	maxImageBytes int64
}

type contentSettings struct {
	directoryTTL     time.Duration
	catalogTTL       time.Duration
	tableNames       map[string]string
	photosPerRequest int
	staffIDs         []string
	consumerIdleTTL  time.Duration
	maxConsumers     int
}

type directorySettings struct {
	spreadsheetID   string
	readRange       string
	credentialsFile string
	timeout         time.Duration
	csvPath         string
}

type tierDefinition struct {
	name    string
	typ     string
	enabled bool
	timeout time.Duration
	config  []byte
}

type fileConfig struct {
	LogLevel  string              `json:"log_level"`
	Kernel    fileKernelConfig    `json:"kernel"`
	Drivers   []fileDriverEntry   `json:"drivers"`
	Routing   fileRoutingConfig   `json:"routing"`
	Server    fileServerConfig    `json:"server"`
	Content   fileContentConfig   `json:"content"`
	Directory fileDirectoryConfig `json:"directory"`
	Photos    []fileTierEntry     `json:"photo_tiers"`
}

type fileKernelConfig struct {
	ModuleHookTimeout   string `json:"module_hook_timeout"`
	ShutdownTimeout     string `json:"shutdown_timeout"`
	SubscriptionBuffer  *int   `json:"subscription_buffer"`
	SubscriptionWorkers *int   `json:"subscription_workers"`
	HandlerTimeout      string `json:"handler_timeout"`
	MaxEventAge         string `json:"max_event_age"`
}

type fileDriverEntry struct {
	Name    string          `json:"name"`
	Type    string          `json:"type"`
	Enabled *bool           `json:"enabled"`
	Config  json.RawMessage `json:"config"`
}

type fileRoutingConfig struct {
	Default *fileModuleRoute           `json:"default"`
	Modules map[string]fileModuleRoute `json:"modules"`
}

type fileModuleRoute struct {
	Sources []fileSourceRef `json:"sources"`
	Sink    *fileSinkRef    `json:"sink"`
}

type fileSourceRef struct {
	Platform string `json:"platform"`
	ID       string `json:"id"`
}

type fileSinkRef struct {
	Platform string `json:"platform"`
	ID       string `json:"id"`
}

type fileServerConfig struct {
	Addr          string `json:"addr"`
	PublicBaseURL string `json:"public_base_url"`
	PhotoDir      string `json:"photo_dir"`
	TableDir      string `json:"table_dir"`
	MaxTable      *int   `json:"max_table"`
	MaxImageBytes *int64 `json:"max_image_bytes"`
}

type fileContentConfig struct {
	DirectoryTTL     string            `json:"directory_ttl"`
	CatalogTTL       string            `json:"catalog_ttl"`
	TableNames       map[string]string `json:"table_names"`
	PhotosPerRequest *int              `json:"photos_per_request"`
	StaffIDs         []string          `json:"staff_ids"`
	ConsumerIdleTTL  string            `json:"consumer_idle_ttl"`
	MaxConsumers     *int              `json:"max_consumers"`
}

type fileDirectoryConfig struct {
	Sheets  fileSheetsConfig `json:"sheets"`
	CSVPath string           `json:"csv_path"`
}

type fileSheetsConfig struct {
	SpreadsheetID    string `json:"spreadsheet_id"`
	SpreadsheetIDEnv string `json:"spreadsheet_id_env"`
	Range            string `json:"range"`
	CredentialsFile  string `json:"credentials_file"`
	Timeout          string `json:"timeout"`
}

type fileTierEntry struct {
	Name    string          `json:"name"`
	Type    string          `json:"type"`
	Enabled *bool           `json:"enabled"`
	Timeout string          `json:"timeout"`
	Config  json.RawMessage `json:"config"`
}

func run() error {
	registry, err := driver.NewBuiltinRegistry()
	if err != nil {
		return fmt.Errorf("new builtin driver registry: %w", err)
	}

	cfg, err := loadConfig(registry)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.logLevel}))
	kernelRuntime := buildKernelRuntime(logger, cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runtimes, replyDispatcher, err := buildDriverRuntime(ctx, logger, cfg, registry)
	if err != nil {
		return err
	}

	contents, err := buildContentRuntime(ctx, logger, cfg)
	if err != nil {
		return err
	}
	defer contents.close(logger)

	if err := registerRuntimeDrivers(kernelRuntime, runtimes); err != nil {
		return err
	}
	if err := registerRuntimeServices(kernelRuntime, logger, replyDispatcher, contents); err != nil {
		return err
	}
	if err := registerRuntimeModules(ctx, kernelRuntime, cfg); err != nil {
		return err
	}

	httpServer, err := buildHTTPServer(logger, cfg, runtimes, contents, kernelRuntime)
	if err != nil {
		return err
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		if err := kernelRuntime.Run(groupCtx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("run kernel: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		if err := httpServer.Run(groupCtx); err != nil {
			return fmt.Errorf("run http server: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		return contents.service.Run(groupCtx)
	})

	return group.Wait()
}

func loadConfig(registry *driver.Registry) (appConfig, error) {
	cfg := defaultAppConfig()
	configFile, err := resolveConfigFilePath()
	if err != nil {
		return appConfig{}, err
	}

	if err := applyConfigFile(&cfg, configFile); err != nil {
		return appConfig{}, err
	}
	if err := validateAppConfig(&cfg, registry); err != nil {
		return appConfig{}, fmt.Errorf("validate config file %s: %w", configFile, err)
	}

	return cfg, nil
}

func resolveConfigFilePath() (string, error) {
	if configFile := strings.TrimSpace(os.Getenv(envConfigFile)); configFile != "" {
		return configFile, nil
	}

	candidates := []string{defaultConfigFilePath, alternateConfigFilePath}
	for _, candidate := range candidates {
		info, err := os.Stat(candidate)
		if err == nil {
			if info.IsDir() {
				return "", fmt.Errorf("config file %s is a directory", candidate)
			}
			return candidate, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("stat config file %s: %w", candidate, err)
		}
	}

	return "", fmt.Errorf(
		"config file not found; create %s or %s, or set %s",
		defaultConfigFilePath,
		alternateConfigFilePath,
		envConfigFile,
	)
}

func defaultAppConfig() appConfig {
	return appConfig{
		logLevel: slog.LevelInfo,

		moduleHookTimeout:   defaultModuleHookTimeout,
		shutdownTimeout:     defaultShutdownTimeout,
		subscriptionBuffer:  defaultSubscriptionBuffer,
		subscriptionWorkers: defaultSubscriptionWorker,
		handlerTimeout:      defaultHandlerTimeout,

		drivers:      make([]driver.Definition, 0),
		moduleRoutes: make(map[string]kernel.ModuleRoute),

		server: serverSettings{
			addr:     defaultServerAddr,
			photoDir: defaultPhotoDir,
			tableDir: defaultTableDir,
			maxTable: defaultMaxTable,
		},
		content: contentSettings{
			directoryTTL:     defaultDirectoryTTL,
			catalogTTL:       defaultCatalogTTL,
			tableNames:       make(map[string]string),
			photosPerRequest: defaultPhotosPerRequest,
		},
		directory: directorySettings{
			timeout: defaultSourceLimit,
			csvPath: defaultGuestsFile,
		},
	}
}

func applyConfigFile(cfg *appConfig, path string) error {
	if cfg == nil {
		return fmt.Errorf("apply config file: nil config")
	}
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("config file path is required")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}

	var parsed fileConfig
	if err := json.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	if rawLevel := strings.TrimSpace(parsed.LogLevel); rawLevel != "" {
		level, err := parseLogLevel(rawLevel)
		if err != nil {
			return fmt.Errorf("parse log_level: %w", err)
		}
		cfg.logLevel = level
	}

	if err := applyKernelConfig(cfg, parsed.Kernel); err != nil {
		return err
	}

	cfg.drivers = make([]driver.Definition, 0, len(parsed.Drivers))
	for index, entry := range parsed.Drivers {
		enabled := true
		if entry.Enabled != nil {
			enabled = *entry.Enabled
		}
		cfg.drivers = append(cfg.drivers, driver.Definition{
			Name:    strings.TrimSpace(entry.Name),
			Type:    strings.TrimSpace(entry.Type),
			Enabled: enabled,
			Config:  append([]byte(nil), entry.Config...),
		})
		if len(entry.Config) == 0 {
			return fmt.Errorf("parse drivers[%d].config: required", index)
		}
	}

	cfg.routingDefault = nil
	if parsed.Routing.Default != nil {
		route, err := parseModuleRoute(*parsed.Routing.Default, "routing.default")
		if err != nil {
			return err
		}
		cfg.routingDefault = &route
	}

	cfg.moduleRoutes = make(map[string]kernel.ModuleRoute, len(parsed.Routing.Modules))
	for moduleName, rawRoute := range parsed.Routing.Modules {
		route, err := parseModuleRoute(rawRoute, fmt.Sprintf("routing.modules.%s", moduleName))
		if err != nil {
			return err
		}
		cfg.moduleRoutes[moduleName] = route
	}

	if err := applyServerConfig(cfg, parsed.Server); err != nil {
		return err
	}
	if err := applyContentConfig(cfg, parsed.Content); err != nil {
		return err
	}
	if err := applyDirectoryConfig(cfg, parsed.Directory, os.Getenv); err != nil {
		return err
	}

	cfg.tiers = make([]tierDefinition, 0, len(parsed.Photos))
	for index, entry := range parsed.Photos {
		tier := tierDefinition{
			name:    strings.TrimSpace(entry.Name),
			typ:     strings.ToLower(strings.TrimSpace(entry.Type)),
			enabled: true,
			timeout: defaultSourceLimit,
			config:  append([]byte(nil), entry.Config...),
		}
		if entry.Enabled != nil {
			tier.enabled = *entry.Enabled
		}
		if tier.name == "" {
			tier.name = tier.typ
		}
		timeout, err := parsePositiveDuration(entry.Timeout, fmt.Sprintf("photo_tiers[%d].timeout", index))
		if err != nil {
			return err
		}
		if timeout > 0 {
			tier.timeout = timeout
		}
		cfg.tiers = append(cfg.tiers, tier)
	}

	return nil
}

func applyKernelConfig(cfg *appConfig, parsed fileKernelConfig) error {
	timeout, err := parsePositiveDuration(parsed.ModuleHookTimeout, "kernel.module_hook_timeout")
	if err != nil {
		return err
	}
	if timeout > 0 {
		cfg.moduleHookTimeout = timeout
	}
	timeout, err = parsePositiveDuration(parsed.ShutdownTimeout, "kernel.shutdown_timeout")
	if err != nil {
		return err
	}
	if timeout > 0 {
		cfg.shutdownTimeout = timeout
	}
	timeout, err = parsePositiveDuration(parsed.HandlerTimeout, "kernel.handler_timeout")
	if err != nil {
		return err
	}
	if timeout > 0 {
		cfg.handlerTimeout = timeout
	}
	if cfg.maxEventAge, err = parsePositiveDuration(parsed.MaxEventAge, "kernel.max_event_age"); err != nil {
		return err
	}
	if parsed.SubscriptionBuffer != nil {
		if *parsed.SubscriptionBuffer <= 0 {
			return fmt.Errorf("parse kernel.subscription_buffer: must be > 0")
		}
		cfg.subscriptionBuffer = *parsed.SubscriptionBuffer
	}
	if parsed.SubscriptionWorkers != nil {
		if *parsed.SubscriptionWorkers <= 0 {
			return fmt.Errorf("parse kernel.subscription_workers: must be > 0")
		}
		cfg.subscriptionWorkers = *parsed.SubscriptionWorkers
	}

	return nil
}

func applyServerConfig(cfg *appConfig, parsed fileServerConfig) error {
	if addr := strings.TrimSpace(parsed.Addr); addr != "" {
		cfg.server.addr = addr
	}
	cfg.server.publicBaseURL = strings.TrimRight(strings.TrimSpace(parsed.PublicBaseURL), "/")
	if dir := strings.TrimSpace(parsed.PhotoDir); dir != "" {
		cfg.server.photoDir = dir
	}
	if dir := strings.TrimSpace(parsed.TableDir); dir != "" {
		cfg.server.tableDir = dir
	}
	if parsed.MaxTable != nil {
		if *parsed.MaxTable <= 0 {
			return fmt.Errorf("parse server.max_table: must be > 0")
		}
		cfg.server.maxTable = *parsed.MaxTable
	}
	if parsed.MaxImageBytes != nil {
		if *parsed.MaxImageBytes <= 0 {
			return fmt.Errorf("parse server.max_image_bytes: must be > 0")
		}
		cfg.server.maxImageBytes = *parsed.MaxImageBytes
	}

	return nil
}

func applyContentConfig(cfg *appConfig, parsed fileContentConfig) error {
	ttl, err := parsePositiveDuration(parsed.DirectoryTTL, "content.directory_ttl")
	if err != nil {
		return err
	}
	if ttl > 0 {
		cfg.content.directoryTTL = ttl
	}
	ttl, err = parsePositiveDuration(parsed.CatalogTTL, "content.catalog_ttl")
	if err != nil {
		return err
	}
	if ttl > 0 {
		cfg.content.catalogTTL = ttl
	}
	ttl, err = parsePositiveDuration(parsed.ConsumerIdleTTL, "content.consumer_idle_ttl")
	if err != nil {
		return err
	}
	cfg.content.consumerIdleTTL = ttl

	cfg.content.tableNames = make(map[string]string, len(parsed.TableNames))
	for table, name := range parsed.TableNames {
		cfg.content.tableNames[strings.TrimSpace(table)] = name
	}
	if parsed.PhotosPerRequest != nil {
		if *parsed.PhotosPerRequest <= 0 || *parsed.PhotosPerRequest > chat.MaxRepliesPerRequest {
			return fmt.Errorf("parse content.photos_per_request: must be within [1, %d]", chat.MaxRepliesPerRequest)
		}
		cfg.content.photosPerRequest = *parsed.PhotosPerRequest
	}
	if parsed.MaxConsumers != nil {
		if *parsed.MaxConsumers <= 0 {
			return fmt.Errorf("parse content.max_consumers: must be > 0")
		}
		cfg.content.maxConsumers = *parsed.MaxConsumers
	}

	cfg.content.staffIDs = make([]string, 0, len(parsed.StaffIDs))
	for _, id := range parsed.StaffIDs {
		if id = strings.TrimSpace(id); id != "" {
			cfg.content.staffIDs = append(cfg.content.staffIDs, id)
		}
	}

	return nil
}

func applyDirectoryConfig(cfg *appConfig, parsed fileDirectoryConfig, getenv func(string) string) error {
	id := strings.TrimSpace(parsed.Sheets.SpreadsheetID)
	if id == "" && strings.TrimSpace(parsed.Sheets.SpreadsheetIDEnv) != "" {
		id = strings.TrimSpace(getenv(strings.TrimSpace(parsed.Sheets.SpreadsheetIDEnv)))
	}
	cfg.directory.spreadsheetID = id
	cfg.directory.readRange = strings.TrimSpace(parsed.Sheets.Range)
	cfg.directory.credentialsFile = strings.TrimSpace(parsed.Sheets.CredentialsFile)

	timeout, err := parsePositiveDuration(parsed.Sheets.Timeout, "directory.sheets.timeout")
	if err != nil {
		return err
	}
	if timeout > 0 {
		cfg.directory.timeout = timeout
	}
	if path := strings.TrimSpace(parsed.CSVPath); path != "" {
		cfg.directory.csvPath = path
	}

	return nil
}

// parsePositiveDuration returns zero for an empty value.
func parsePositiveDuration(raw string, field string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	value, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", field, err)
	}
	if value <= 0 {
		return 0, fmt.Errorf("parse %s: must be > 0", field)
	}

	return value, nil
}

func parseModuleRoute(raw fileModuleRoute, scope string) (kernel.ModuleRoute, error) {
	if len(raw.Sources) == 0 {
		return kernel.ModuleRoute{}, fmt.Errorf("%s.sources is required", scope)
	}
	if raw.Sink == nil {
		return kernel.ModuleRoute{}, fmt.Errorf("%s.sink is required", scope)
	}

	sources := make([]chat.EventSource, 0, len(raw.Sources))
	for index, sourceRef := range raw.Sources {
		source := chat.EventSource{
			Platform: chat.Platform(strings.TrimSpace(sourceRef.Platform)),
			ID:       strings.TrimSpace(sourceRef.ID),
		}
		if source.Platform == "" && source.ID == "" {
			return kernel.ModuleRoute{}, fmt.Errorf("%s.sources[%d]: empty source reference", scope, index)
		}
		sources = append(sources, source)
	}

	sink := chat.SinkRef{
		Platform: chat.Platform(strings.TrimSpace(raw.Sink.Platform)),
		ID:       strings.TrimSpace(raw.Sink.ID),
	}
	if sink.Platform == "" && sink.ID == "" {
		return kernel.ModuleRoute{}, fmt.Errorf("%s.sink: empty sink reference", scope)
	}

	return kernel.ModuleRoute{Sources: sources, Sink: &sink}, nil
}

func validateAppConfig(cfg *appConfig, registry *driver.Registry) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}
	if registry == nil {
		return fmt.Errorf("nil driver registry")
	}

	enabledDrivers := make([]driver.Definition, 0, len(cfg.drivers))
	enabledByName := make(map[string]driver.Definition, len(cfg.drivers))
	seenDrivers := make(map[string]struct{}, len(cfg.drivers))
	for _, definition := range cfg.drivers {
		if definition.Name == "" {
			return fmt.Errorf("drivers[].name is required")
		}
		if definition.Type == "" {
			return fmt.Errorf("drivers[%s].type is required", definition.Name)
		}
		if _, exists := seenDrivers[definition.Name]; exists {
			return fmt.Errorf("drivers[%s]: duplicate name", definition.Name)
		}
		seenDrivers[definition.Name] = struct{}{}
		if !definition.Enabled {
			continue
		}
		if _, err := registry.PlatformForType(definition.Type); err != nil {
			return fmt.Errorf("drivers[%s].type: %w", definition.Name, err)
		}
		enabledDrivers = append(enabledDrivers, definition)
		enabledByName[definition.Name] = definition
	}
	if len(enabledDrivers) == 0 {
		return fmt.Errorf("at least one enabled driver is required")
	}

	knownModules := make(map[string]struct{}, len(runtimeModuleNames))
	for _, moduleName := range runtimeModuleNames {
		knownModules[moduleName] = struct{}{}
	}
	for moduleName := range cfg.moduleRoutes {
		if _, known := knownModules[moduleName]; !known {
			return fmt.Errorf("routing.modules.%s: unknown module", moduleName)
		}
	}

	for moduleName, route := range cfg.moduleRoutes {
		if err := validateRouteRefs(route, enabledByName, fmt.Sprintf("routing.modules.%s", moduleName)); err != nil {
			return err
		}
	}
	if cfg.routingDefault != nil {
		if err := validateRouteRefs(*cfg.routingDefault, enabledByName, "routing.default"); err != nil {
			return err
		}
	}

	if len(enabledDrivers) == 1 && cfg.routingDefault == nil {
		sole := enabledDrivers[0]
		platform, err := registry.PlatformForType(sole.Type)
		if err != nil {
			return fmt.Errorf("derive default route from driver %s: %w", sole.Name, err)
		}
		cfg.routingDefault = &kernel.ModuleRoute{
			Sources: []chat.EventSource{{Platform: platform, ID: sole.Name}},
			Sink:    &chat.SinkRef{Platform: platform, ID: sole.Name},
		}
	}

	if len(enabledDrivers) >= 2 && cfg.routingDefault == nil {
		for _, moduleName := range runtimeModuleNames {
			if _, exists := cfg.moduleRoutes[moduleName]; !exists {
				return fmt.Errorf("routing.default is required in multi-driver mode unless all modules override")
			}
		}
	}

	if cfg.server.addr == "" {
		return fmt.Errorf("server.addr is required")
	}

	seenTiers := make(map[string]struct{}, len(cfg.tiers))
	for index, tier := range cfg.tiers {
		if tier.typ == "" {
			return fmt.Errorf("photo_tiers[%d].type is required", index)
		}
		if _, known := photoTierTypes[tier.typ]; !known {
			return fmt.Errorf("photo_tiers[%s].type: unsupported type %q", tier.name, tier.typ)
		}
		if _, exists := seenTiers[tier.name]; exists {
			return fmt.Errorf("photo_tiers[%s]: duplicate name", tier.name)
		}
		seenTiers[tier.name] = struct{}{}
	}

	return nil
}

func validateRouteRefs(
	route kernel.ModuleRoute,
	enabledByName map[string]driver.Definition,
	scope string,
) error {
	for index, source := range route.Sources {
		if source.ID != "" {
			if _, exists := enabledByName[source.ID]; !exists {
				return fmt.Errorf("%s.sources[%d]: unknown driver id %s", scope, index, source.ID)
			}
		}
	}
	if route.Sink != nil && route.Sink.ID != "" {
		if _, exists := enabledByName[route.Sink.ID]; !exists {
			return fmt.Errorf("%s.sink: unknown driver id %s", scope, route.Sink.ID)
		}
	}

	return nil
}

func parseLogLevel(raw string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unsupported level %q", raw)
	}
}

func buildKernelRuntime(logger *slog.Logger, cfg appConfig) *kernel.Kernel {
	return kernel.New(
		kernel.WithLogger(logger),
		kernel.WithModuleHookTimeout(cfg.moduleHookTimeout),
		kernel.WithShutdownTimeout(cfg.shutdownTimeout),
		kernel.WithDefaultSubscriptionBuffer(cfg.subscriptionBuffer),
		kernel.WithDefaultSubscriptionWorkers(cfg.subscriptionWorkers),
		kernel.WithDefaultHandlerTimeout(cfg.handlerTimeout),
		kernel.WithMaxEventAge(cfg.maxEventAge),
		kernel.WithModuleRouting(cfg.routingDefault, cfg.moduleRoutes),
	)
}

func buildDriverRuntime(
	ctx context.Context,
	logger *slog.Logger,
	cfg appConfig,
	registry *driver.Registry,
) ([]driver.Runtime, chat.ReplyDispatcher, error) {
	if registry == nil {
		return nil, nil, fmt.Errorf("build drivers: nil driver registry")
	}

	runtimes, err := registry.BuildEnabled(ctx, cfg.drivers, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("build drivers: %w", err)
	}

	dispatcher, err := driver.NewCompositeReplyDispatcher(runtimes)
	if err != nil {
		return nil, nil, fmt.Errorf("build reply dispatcher: %w", err)
	}

	return runtimes, dispatcher, nil
}

func buildHTTPServer(
	logger *slog.Logger,
	cfg appConfig,
	runtimes []driver.Runtime,
	contents *contentRuntime,
	kernelRuntime *kernel.Kernel,
) (*server.Server, error) {
	webhooks := make([]server.Webhook, 0, len(runtimes))
	for _, runtime := range runtimes {
		if runtime.Webhook == nil {
			continue
		}
		for _, path := range runtime.WebhookPaths {
			webhooks = append(webhooks, server.Webhook{Path: path, Handler: runtime.Webhook})
		}
	}

	serverConfig := server.Config{
		Addr:            cfg.server.addr,
		MaxTable:        cfg.server.maxTable,
		MaxImageBytes:   cfg.server.maxImageBytes,
		Webhooks:        webhooks,
		ShutdownTimeout: cfg.shutdownTimeout,
		Logger:          logger,
		Stats: func() any {
			return map[string]any{
				"subscriptions": kernelRuntime.BusStats(),
				"photo_tiers":   contents.tierStatuses(),
			}
		},
	}
	if contents.photoDir != nil {
		serverConfig.PhotoDir = contents.photoDir.Dir()
	}
	if contents.tables != nil {
		serverConfig.Tables = contents.tables
	}

	httpServer, err := server.New(serverConfig)
	if err != nil {
		return nil, fmt.Errorf("build http server: %w", err)
	}

	return httpServer, nil
}

func registerRuntimeDrivers(kernelRuntime *kernel.Kernel, runtimes []driver.Runtime) error {
	for _, runtime := range runtimes {
		if err := kernelRuntime.RegisterDriver(runtime.Driver); err != nil {
			return fmt.Errorf("register driver %s: %w", runtime.Driver.Name(), err)
		}
	}

	return nil
}
