package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"wedding-bot/internal/kernel"
	"wedding-bot/internal/source"
	"wedding-bot/internal/source/gcs"
	"wedding-bot/internal/source/imgur"
	"wedding-bot/internal/source/localfs"
	"wedding-bot/internal/source/s3"
	"wedding-bot/internal/source/sheets"
	"wedding-bot/modules/menu"
	"wedding-bot/modules/photos"
	"wedding-bot/modules/seatlookup"
	"wedding-bot/pkg/chat"
	"wedding-bot/pkg/content"
)

const (
	tierTypeGCS   = "gcs"
	tierTypeS3    = "s3"
	tierTypeImgur = "imgur"
	tierTypeLocal = "local"
)

type gcsTierConfig struct {
	Bucket          string `json:"bucket"`
	Prefix          string `json:"prefix"`
	PublicBaseURL   string `json:"public_base_url"`
	CredentialsFile string `json:"credentials_file"`
}

type s3TierConfig struct {
	Bucket        string `json:"bucket"`
	Prefix        string `json:"prefix"`
	Region        string `json:"region"`
	PublicBaseURL string `json:"public_base_url"`
}

type imgurTierConfig struct {
	ClientID          string `json:"client_id"`
	ClientIDEnv       string `json:"client_id_env"`
	AlbumHash         string `json:"album_hash"`
	RequestsPerMinute *int   `json:"requests_per_minute"`
}

type localTierConfig struct {
	Dir string `json:"dir"`
}

// contentRuntime holds the content service and the backends the HTTP server shares with it.
type contentRuntime struct {
	service  *content.Service
	chain    *content.TierChain[[]content.PhotoRecord]
	tiers    []content.Tier[[]content.PhotoRecord]
	photoDir *localfs.PhotoDir
	tables   *localfs.TableImages
	closers  []io.Closer
}

type tierStatus struct {
	Name        string `json:"name"`
	Enabled     bool   `json:"enabled"`
	LastFailure string `json:"last_failure,omitempty"`
}

func buildContentRuntime(ctx context.Context, logger *slog.Logger, cfg appConfig) (*contentRuntime, error) {
	runtime := &contentRuntime{
		tables: localfs.NewTableImages(cfg.server.tableDir),
	}

	directory, err := buildDirectorySource(ctx, logger, cfg.directory)
	if err != nil {
		return nil, err
	}

	for _, definition := range cfg.tiers {
		tier, err := runtime.buildPhotoTier(ctx, logger, cfg, definition)
		if err != nil {
			runtime.close(logger)
			return nil, fmt.Errorf("build photo tier %s: %w", definition.name, err)
		}
		runtime.tiers = append(runtime.tiers, tier)
	}

	var catalog content.Source[[]content.PhotoRecord]
	if len(runtime.tiers) > 0 {
		runtime.chain = content.NewTierChain(logger.With("component", "photo_tiers"), runtime.tiers...)
		catalog = runtime.chain
	} else {
		logger.Warn("no photo tier configured; photo requests report unavailable")
	}

	distributorOptions := []content.DistributorOption{content.WithDistributorLogger(logger)}
	if cfg.content.consumerIdleTTL > 0 {
		distributorOptions = append(distributorOptions, content.WithConsumerIdleTTL(cfg.content.consumerIdleTTL))
	}
	if cfg.content.maxConsumers > 0 {
		distributorOptions = append(distributorOptions, content.WithMaxConsumers(cfg.content.maxConsumers))
	}

	runtime.service = content.NewService(content.ServiceConfig{
		Directory:    directory,
		DirectoryTTL: cfg.content.directoryTTL,
		Catalog:      catalog,
		CatalogTTL:   cfg.content.catalogTTL,
		Lookup: content.NewLookupService(
			content.WithLabels(cfg.content.tableNames),
			content.WithArtifactProbe(runtime.tables),
			content.WithLookupLogger(logger),
		),
		Distributor: content.NewFairDistributor(distributorOptions...),
		Logger:      logger,
	})

	return runtime, nil
}

// buildDirectorySource prefers the spreadsheet and falls back to the local CSV file.
func buildDirectorySource(
	ctx context.Context,
	logger *slog.Logger,
	cfg directorySettings,
) (content.Source[content.Directory], error) {
	if cfg.spreadsheetID == "" {
		logger.Warn("guest spreadsheet not configured; using local csv",
			"error", content.ErrConfiguration,
			"path", cfg.csvPath,
		)
		return content.NewDirectorySource(localfs.NewGuestCSV(cfg.csvPath)), nil
	}

	getter, err := sheets.NewAPIGetter(ctx, cfg.credentialsFile)
	if err != nil {
		logger.Error("guest spreadsheet client unavailable; using local csv", "error", err, "path", cfg.csvPath)
		return content.NewDirectorySource(localfs.NewGuestCSV(cfg.csvPath)), nil
	}
	sheet, err := sheets.NewSource(getter, cfg.spreadsheetID, cfg.readRange, logger)
	if err != nil {
		return nil, fmt.Errorf("build guest directory: %w", err)
	}

	return content.NewDirectorySource(source.WithTimeout[[]content.DirectoryRecord](sheet, cfg.timeout)), nil
}

// buildPhotoTier returns a disabled tier when its backend is misconfigured.
func (r *contentRuntime) buildPhotoTier(
	ctx context.Context,
	logger *slog.Logger,
	cfg appConfig,
	definition tierDefinition,
) (content.Tier[[]content.PhotoRecord], error) {
	tier := content.Tier[[]content.PhotoRecord]{Name: definition.name}
	if !definition.enabled {
		return tier, nil
	}

	photoSource, err := r.newPhotoSource(ctx, logger, cfg, definition)
	if errors.Is(err, content.ErrConfiguration) {
		logger.Warn("photo tier disabled", "tier", definition.name, "error", err)
		return tier, nil
	}
	if err != nil {
		return tier, err
	}

	tier.Enabled = true
	tier.Source = source.WithTimeout(photoSource, definition.timeout)

	return tier, nil
}

func (r *contentRuntime) newPhotoSource(
	ctx context.Context,
	logger *slog.Logger,
	cfg appConfig,
	definition tierDefinition,
) (content.Source[[]content.PhotoRecord], error) {
	tierLogger := logger.With("tier", definition.name)

	switch definition.typ {
	case tierTypeGCS:
		var tierConfig gcsTierConfig
		if err := decodeTierConfig(definition, &tierConfig); err != nil {
			return nil, err
		}
		if strings.TrimSpace(tierConfig.Bucket) == "" {
			return nil, fmt.Errorf("%w: empty bucket", content.ErrConfiguration)
		}
		lister, err := gcs.NewStorageLister(ctx, strings.TrimSpace(tierConfig.CredentialsFile))
		if err != nil {
			return nil, fmt.Errorf("%w: %w", content.ErrConfiguration, err)
		}
		r.closers = append(r.closers, lister)

		return gcs.NewSource(lister, gcs.Config{
			Bucket:        strings.TrimSpace(tierConfig.Bucket),
			Prefix:        tierConfig.Prefix,
			PublicBaseURL: strings.TrimSpace(tierConfig.PublicBaseURL),
		})
	case tierTypeS3:
		var tierConfig s3TierConfig
		if err := decodeTierConfig(definition, &tierConfig); err != nil {
			return nil, err
		}
		if strings.TrimSpace(tierConfig.Bucket) == "" {
			return nil, fmt.Errorf("%w: empty bucket", content.ErrConfiguration)
		}
		client, err := s3.NewClient(ctx, strings.TrimSpace(tierConfig.Region))
		if err != nil {
			return nil, fmt.Errorf("%w: %w", content.ErrConfiguration, err)
		}

		return s3.NewSource(client, s3.Config{
			Bucket:        strings.TrimSpace(tierConfig.Bucket),
			Prefix:        tierConfig.Prefix,
			Region:        strings.TrimSpace(tierConfig.Region),
			PublicBaseURL: strings.TrimSpace(tierConfig.PublicBaseURL),
		}, tierLogger)
	case tierTypeImgur:
		var tierConfig imgurTierConfig
		if err := decodeTierConfig(definition, &tierConfig); err != nil {
			return nil, err
		}
		clientID := strings.TrimSpace(tierConfig.ClientID)
		if clientID == "" && strings.TrimSpace(tierConfig.ClientIDEnv) != "" {
			clientID = strings.TrimSpace(os.Getenv(strings.TrimSpace(tierConfig.ClientIDEnv)))
		}
		var options []imgur.Option
		if tierConfig.RequestsPerMinute != nil {
			options = append(options, imgur.WithRateLimit(*tierConfig.RequestsPerMinute, 1))
		}

		return imgur.NewSource(clientID, strings.TrimSpace(tierConfig.AlbumHash), options...)
	case tierTypeLocal:
		var tierConfig localTierConfig
		if err := decodeTierConfig(definition, &tierConfig); err != nil {
			return nil, err
		}
		dir := strings.TrimSpace(tierConfig.Dir)
		if dir == "" {
			dir = cfg.server.photoDir
		}
		photoDir, err := localfs.NewPhotoDir(dir, cfg.server.publicBaseURL)
		if err != nil {
			return nil, err
		}
		if r.photoDir == nil {
			r.photoDir = photoDir
		}

		return photoDir, nil
	default:
		return nil, fmt.Errorf("unsupported photo tier type %q", definition.typ)
	}
}

func decodeTierConfig(definition tierDefinition, target any) error {
	if len(definition.config) == 0 {
		return nil
	}
	if err := json.Unmarshal(definition.config, target); err != nil {
		return fmt.Errorf("parse photo_tiers[%s].config: %w", definition.name, err)
	}

	return nil
}

func (r *contentRuntime) tierStatuses() []tierStatus {
	statuses := make([]tierStatus, 0, len(r.tiers))
	for _, tier := range r.tiers {
		status := tierStatus{Name: tier.Name, Enabled: tier.Enabled}
		if r.chain != nil {
			if err := r.chain.LastFailure(tier.Name); err != nil {
				status.LastFailure = err.Error()
			}
		}
		statuses = append(statuses, status)
	}

	return statuses
}

func (r *contentRuntime) close(logger *slog.Logger) {
	for _, closer := range r.closers {
		if err := closer.Close(); err != nil {
			logger.Warn("close photo backend", "error", err)
		}
	}
	r.closers = nil
}

func registerRuntimeServices(
	kernelRuntime *kernel.Kernel,
	logger *slog.Logger,
	replyDispatcher chat.ReplyDispatcher,
	contents *contentRuntime,
) error {
	if err := kernelRuntime.RegisterService(chat.ServiceLogger, logger); err != nil {
		return fmt.Errorf("register logger service: %w", err)
	}
	if replyDispatcher == nil {
		return fmt.Errorf("register reply dispatcher service: nil dispatcher")
	}
	if err := kernelRuntime.RegisterService(chat.ServiceReplyDispatcher, replyDispatcher); err != nil {
		return fmt.Errorf("register reply dispatcher service: %w", err)
	}
	if contents == nil || contents.service == nil {
		return fmt.Errorf("register content services: nil content service")
	}
	if err := kernelRuntime.RegisterService(content.ServiceSeatLookup, contents.service); err != nil {
		return fmt.Errorf("register seat lookup service: %w", err)
	}
	if err := kernelRuntime.RegisterService(content.ServicePhotoCatalog, contents.service); err != nil {
		return fmt.Errorf("register photo catalog service: %w", err)
	}

	return nil
}

func registerRuntimeModules(ctx context.Context, kernelRuntime *kernel.Kernel, cfg appConfig) error {
	menuModule := menu.New()
	if err := kernelRuntime.RegisterModule(ctx, menuModule); err != nil {
		return fmt.Errorf("register menu module: %w", err)
	}
	seatModule := seatlookup.New(seatlookup.Config{
		PublicBaseURL: cfg.server.publicBaseURL,
		StaffIDs:      cfg.content.staffIDs,
	})
	if err := kernelRuntime.RegisterModule(ctx, seatModule); err != nil {
		return fmt.Errorf("register seatlookup module: %w", err)
	}
	photosModule := photos.New(photos.Config{
		PerRequest: cfg.content.photosPerRequest,
		StaffIDs:   cfg.content.staffIDs,
	})
	if err := kernelRuntime.RegisterModule(ctx, photosModule); err != nil {
		return fmt.Errorf("register photos module: %w", err)
	}

	return nil
}
