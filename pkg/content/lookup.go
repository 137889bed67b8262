package content

import (
	"context"
	"log/slog"
	"strings"
)

// ArtifactProbe resolves the optional artifact attached to a directory value,
// such as a table floor-plan image.
type ArtifactProbe interface {
	// ArtifactName maps a directory value to the artifact identifier.
	ArtifactName(value string) string
	// Exists reports whether the artifact for value is present.
	Exists(ctx context.Context, value string) (bool, error)
}

// LookupResult is the outcome of resolving one key.
type LookupResult struct {
	Found             bool
	Key               string
	Value             string
	Label             string
	ArtifactAvailable bool
	ArtifactName      string
}

// LookupOption configures a LookupService.
type LookupOption func(*LookupService)

// WithLabels sets display labels keyed by directory value.
func WithLabels(labels map[string]string) LookupOption {
	return func(service *LookupService) {
		service.labels = make(map[string]string, len(labels))
		for value, label := range labels {
			service.labels[value] = label
		}
	}
}

// WithArtifactProbe sets the probe used after a match.
func WithArtifactProbe(probe ArtifactProbe) LookupOption {
	return func(service *LookupService) {
		service.probe = probe
	}
}

// WithLookupLogger sets the lookup logger.
func WithLookupLogger(logger *slog.Logger) LookupOption {
	return func(service *LookupService) {
		if logger != nil {
			service.logger = logger
		}
	}
}

// LookupService resolves guest names against a directory snapshot.
type LookupService struct {
	labels map[string]string
	probe  ArtifactProbe
	logger *slog.Logger
}

// NewLookupService creates a lookup service.
func NewLookupService(options ...LookupOption) *LookupService {
	service := &LookupService{
		labels: map[string]string{},
		logger: slog.Default(),
	}
	for _, option := range options {
		option(service)
	}

	return service
}

// Resolve trims key and matches it exactly against snapshot. Stored keys are
// compared as stored and are never case-folded.
func (s *LookupService) Resolve(ctx context.Context, snapshot Directory, key string) LookupResult {
	key = strings.TrimSpace(key)
	result := LookupResult{Key: key}
	if key == "" {
		return result
	}

	value, ok := snapshot[key]
	if !ok {
		return result
	}

	result.Found = true
	result.Value = value
	result.Label = s.labels[value]
	if s.probe == nil {
		return result
	}

	result.ArtifactName = s.probe.ArtifactName(value)
	exists, err := s.probe.Exists(ctx, value)
	if err != nil {
		s.logger.Warn("artifact probe failed", "value", value, "error", err)
		return result
	}
	result.ArtifactAvailable = exists

	return result
}
