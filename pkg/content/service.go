package content

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// SeatStatus classifies a seat lookup.
type SeatStatus string

const (
	// SeatFound means the guest name matched a directory row.
	SeatFound SeatStatus = "found"
	// SeatNotFound means the directory was read but holds no such name.
	SeatNotFound SeatStatus = "not_found"
	// SeatUnavailable means the directory could not be read.
	SeatUnavailable SeatStatus = "unavailable"
)

// SeatResult is the structured outcome of LookupSeat.
type SeatResult struct {
	Status            SeatStatus
	Name              string
	Table             string
	TableName         string
	ArtifactAvailable bool
	ArtifactName      string
}

// PhotoStatus classifies a photo request.
type PhotoStatus string

const (
	// PhotosOK means at least one photo was selected.
	PhotosOK PhotoStatus = "ok"
	// PhotosEmpty means the catalog was read and is empty.
	PhotosEmpty PhotoStatus = "empty"
	// PhotosUnavailable means no photo backend could be read.
	PhotosUnavailable PhotoStatus = "unavailable"
)

// PhotoSelection is the structured outcome of GetPhotos.
type PhotoSelection struct {
	Status PhotoStatus
	Photos []PhotoRecord
}

// ReloadResult reports a successful catalog reload.
type ReloadResult struct {
	Count int
}

// ServiceConfig wires a Service. A nil source disables its feature.
type ServiceConfig struct {
	Directory    Source[Directory]
	DirectoryTTL time.Duration
	Catalog      Source[[]PhotoRecord]
	CatalogTTL   time.Duration
	Lookup       *LookupService
	Distributor  *FairDistributor
	Clock        func() time.Time
	Logger       *slog.Logger
}

// Service is the facade the chat modules call. Infrastructure failures are
// reported as result statuses.
type Service struct {
	directory   *TTLCache[Directory]
	lookup      *LookupService
	catalog     *CatalogCache
	distributor *FairDistributor
	logger      *slog.Logger
}

// NewService builds the caches described by cfg.
func NewService(cfg ServiceConfig) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	options := []CacheOption{WithLogger(logger)}
	if cfg.Clock != nil {
		options = append(options, WithClock(cfg.Clock))
	}

	service := &Service{
		lookup:      cfg.Lookup,
		distributor: cfg.Distributor,
		logger:      logger,
	}
	if service.lookup == nil {
		service.lookup = NewLookupService(WithLookupLogger(logger))
	}
	if service.distributor == nil {
		service.distributor = NewFairDistributor(WithDistributorLogger(logger))
	}
	if cfg.Directory != nil {
		service.directory = NewTTLCache(cfg.Directory, cfg.DirectoryTTL,
			append([]CacheOption{WithName("guest_directory")}, options...)...)
	}
	if cfg.Catalog != nil {
		service.catalog = NewCatalogCache(cfg.Catalog, service.distributor, cfg.CatalogTTL, options...)
	}

	return service
}

// LookupSeat resolves a guest name to a table.
func (s *Service) LookupSeat(ctx context.Context, name string) SeatResult {
	if s.directory == nil {
		return SeatResult{Status: SeatUnavailable, Name: name}
	}

	snapshot, err := s.directory.Get(ctx, false)
	if err != nil {
		s.logger.Error("guest directory unavailable", "error", err)
		return SeatResult{Status: SeatUnavailable, Name: name}
	}

	resolved := s.lookup.Resolve(ctx, snapshot, name)
	if !resolved.Found {
		return SeatResult{Status: SeatNotFound, Name: resolved.Key}
	}

	return SeatResult{
		Status:            SeatFound,
		Name:              resolved.Key,
		Table:             resolved.Value,
		TableName:         resolved.Label,
		ArtifactAvailable: resolved.ArtifactAvailable,
		ArtifactName:      resolved.ArtifactName,
	}
}

// GetPhotos selects up to count unseen photos for consumerID.
func (s *Service) GetPhotos(ctx context.Context, count int, consumerID string) PhotoSelection {
	if s.catalog == nil {
		return PhotoSelection{Status: PhotosUnavailable}
	}

	catalog, err := s.catalog.Get(ctx)
	if err != nil {
		s.logger.Error("photo catalog unavailable", "consumer", consumerID, "error", err)
		return PhotoSelection{Status: PhotosUnavailable}
	}
	if len(catalog) == 0 {
		return PhotoSelection{Status: PhotosEmpty, Photos: []PhotoRecord{}}
	}

	return PhotoSelection{
		Status: PhotosOK,
		Photos: s.distributor.Select(catalog, consumerID, count),
	}
}

// ReloadCatalog forces a catalog refetch and restarts every distribution cycle.
func (s *Service) ReloadCatalog(ctx context.Context) (ReloadResult, error) {
	if s.catalog == nil {
		return ReloadResult{}, fmt.Errorf("reload catalog: %w: no photo source configured", ErrConfiguration)
	}

	count, err := s.catalog.Reload(ctx)
	if err != nil {
		return ReloadResult{}, err
	}

	return ReloadResult{Count: count}, nil
}

// InvalidateDirectory drops the guest directory snapshot.
func (s *Service) InvalidateDirectory() {
	if s.directory == nil {
		return
	}
	s.directory.Invalidate()
}

// Run expires idle distribution state until ctx is canceled.
func (s *Service) Run(ctx context.Context) error {
	s.distributor.Run(ctx)

	return nil
}
