package content

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestServiceLookupSeat(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		directory  Source[Directory]
		input      string
		wantStatus SeatStatus
		wantTable  string
	}{
		{
			name:       "found after trimming",
			directory:  staticDirectory(Directory{"Alice": "3"}),
			input:      " Alice",
			wantStatus: SeatFound,
			wantTable:  "3",
		},
		{
			name:       "not found",
			directory:  staticDirectory(Directory{"Alice": "3"}),
			input:      "Mallory",
			wantStatus: SeatNotFound,
		},
		{
			name: "source failure is unavailable",
			directory: SourceFunc[Directory](func(context.Context) (Directory, error) {
				return nil, errors.New("quota exceeded")
			}),
			input:      "Alice",
			wantStatus: SeatUnavailable,
		},
		{
			name: "source panic is unavailable",
			directory: SourceFunc[Directory](func(context.Context) (Directory, error) {
				panic("decode")
			}),
			input:      "Alice",
			wantStatus: SeatUnavailable,
		},
		{
			name:       "no directory configured",
			input:      "Alice",
			wantStatus: SeatUnavailable,
		},
	}

	for _, testCase := range tests {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			service := NewService(ServiceConfig{
				Directory:    testCase.directory,
				DirectoryTTL: time.Hour,
				Lookup:       NewLookupService(WithLabels(map[string]string{"3": "泡茶好朋友"})),
			})
			result := service.LookupSeat(context.Background(), testCase.input)
			if result.Status != testCase.wantStatus {
				t.Fatalf("status = %q, want %q", result.Status, testCase.wantStatus)
			}
			if result.Table != testCase.wantTable {
				t.Fatalf("table = %q, want %q", result.Table, testCase.wantTable)
			}
			if testCase.wantStatus == SeatFound && result.TableName != "泡茶好朋友" {
				t.Fatalf("table name = %q", result.TableName)
			}
		})
	}
}

func TestServiceInvalidateDirectory(t *testing.T) {
	t.Parallel()

	source := (&scriptedSource[Directory]{}).
		push(Directory{"Alice": "3"}, nil).
		push(Directory{"Alice": "9"}, nil)
	service := NewService(ServiceConfig{Directory: source, DirectoryTTL: time.Hour})

	if got := service.LookupSeat(context.Background(), "Alice").Table; got != "3" {
		t.Fatalf("table = %q, want 3", got)
	}
	if got := service.LookupSeat(context.Background(), "Alice").Table; got != "3" {
		t.Fatalf("cached table = %q, want 3", got)
	}
	service.InvalidateDirectory()
	if got := service.LookupSeat(context.Background(), "Alice").Table; got != "9" {
		t.Fatalf("table after invalidate = %q, want 9", got)
	}
}

func TestServiceLookupSeatUnavailableWhenRefreshFailsAfterSnapshot(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	source := (&scriptedSource[Directory]{}).
		push(Directory{"Alice": "3"}, nil).
		push(nil, errors.New("sheet offline")).
		push(Directory{"Alice": "5"}, nil)
	service := NewService(ServiceConfig{Directory: source, DirectoryTTL: time.Minute, Clock: clock.Now})

	if got := service.LookupSeat(context.Background(), "Alice"); got.Status != SeatFound || got.Table != "3" {
		t.Fatalf("first lookup = %+v, want table 3", got)
	}

	clock.Advance(2 * time.Minute)
	if got := service.LookupSeat(context.Background(), "Alice"); got.Status != SeatUnavailable {
		t.Fatalf("lookup during outage = %+v, want unavailable", got)
	}
	if got := service.LookupSeat(context.Background(), "Alice"); got.Status != SeatFound || got.Table != "5" {
		t.Fatalf("lookup after recovery = %+v, want table 5", got)
	}
}

func TestServiceGetPhotos(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		catalog    Source[[]PhotoRecord]
		wantStatus PhotoStatus
		wantCount  int
	}{
		{name: "selects photos", catalog: staticSource(photos("a", "b", "c")), wantStatus: PhotosOK, wantCount: 2},
		{name: "empty catalog", catalog: staticSource([]PhotoRecord{}), wantStatus: PhotosEmpty},
		{name: "all tiers down", catalog: NewTierChain(nil, Tier[[]PhotoRecord]{Name: "gcs", Enabled: true, Source: failingSource("down")}), wantStatus: PhotosUnavailable},
		{name: "no catalog configured", wantStatus: PhotosUnavailable},
	}

	for _, testCase := range tests {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			service := NewService(ServiceConfig{Catalog: testCase.catalog, CatalogTTL: time.Hour})
			selection := service.GetPhotos(context.Background(), 2, "guest")
			if selection.Status != testCase.wantStatus {
				t.Fatalf("status = %q, want %q", selection.Status, testCase.wantStatus)
			}
			if len(selection.Photos) != testCase.wantCount {
				t.Fatalf("photos = %d, want %d", len(selection.Photos), testCase.wantCount)
			}
		})
	}
}

func TestServiceReloadCatalog(t *testing.T) {
	t.Parallel()

	source := (&scriptedSource[[]PhotoRecord]{}).
		push(photos("a", "b"), nil).
		push(photos("a", "b", "c"), nil)
	distributor := NewFairDistributor()
	service := NewService(ServiceConfig{Catalog: source, CatalogTTL: time.Hour, Distributor: distributor})

	service.GetPhotos(context.Background(), 1, "guest-1")
	service.GetPhotos(context.Background(), 1, "guest-2")

	result, err := service.ReloadCatalog(context.Background())
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if result.Count != 3 {
		t.Fatalf("count = %d, want 3", result.Count)
	}
	if distributor.Shown("guest-1")+distributor.Shown("guest-2") != 0 {
		t.Fatal("reload must clear every consumer")
	}

	if _, err := NewService(ServiceConfig{}).ReloadCatalog(context.Background()); !errors.Is(err, ErrConfiguration) {
		t.Fatalf("reload without catalog error = %v, want ErrConfiguration", err)
	}
}

func staticDirectory(directory Directory) Source[Directory] {
	return SourceFunc[Directory](func(context.Context) (Directory, error) {
		return directory, nil
	})
}
