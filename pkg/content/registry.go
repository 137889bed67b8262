package content

import "context"

const (
	// ServiceSeatLookup is the service registry key for guest seat lookups.
	ServiceSeatLookup = "content.seat_lookup"
	// ServicePhotoCatalog is the service registry key for photo distribution.
	ServicePhotoCatalog = "content.photo_catalog"
)

// SeatLookup is the directory half of Service as seen by chat modules.
type SeatLookup interface {
	LookupSeat(ctx context.Context, name string) SeatResult
	InvalidateDirectory()
}

// PhotoCatalog is the photo half of Service as seen by chat modules.
type PhotoCatalog interface {
	GetPhotos(ctx context.Context, count int, consumerID string) PhotoSelection
	ReloadCatalog(ctx context.Context) (ReloadResult, error)
}

var (
	_ SeatLookup   = (*Service)(nil)
	_ PhotoCatalog = (*Service)(nil)
)
