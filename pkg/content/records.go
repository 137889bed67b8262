package content

import (
	"context"
	"fmt"
	"time"
)

// DirectoryRecord is one guest row: Key is the guest name, Value the table number.
type DirectoryRecord struct {
	Key   string
	Value string
}

// Directory maps guest names to table numbers.
type Directory map[string]string

// NewDirectory collects records into a mapping. Later records win on duplicate keys.
func NewDirectory(records []DirectoryRecord) Directory {
	directory := make(Directory, len(records))
	for _, record := range records {
		directory[record.Key] = record.Value
	}

	return directory
}

// PhotoRecord describes one distributable photo.
//
// ID is the stable fairness key. URL may differ between catalog snapshots.
type PhotoRecord struct {
	ID          string
	URL         string
	Title       string
	UpdatedAt   time.Time
	ContentType string
	SizeBytes   int64
}

// Source is a slow remote backend that can list all of its records at once.
type Source[T any] interface {
	// FetchAll returns a complete snapshot or an error.
	FetchAll(ctx context.Context) (T, error)
}

// SourceFunc adapts a function into a Source.
type SourceFunc[T any] func(ctx context.Context) (T, error)

// FetchAll calls f.
func (f SourceFunc[T]) FetchAll(ctx context.Context) (T, error) {
	return f(ctx)
}

// NewDirectorySource adapts a record listing into a Directory source.
func NewDirectorySource(records Source[[]DirectoryRecord]) Source[Directory] {
	return SourceFunc[Directory](func(ctx context.Context) (Directory, error) {
		rows, err := records.FetchAll(ctx)
		if err != nil {
			return nil, err
		}

		return NewDirectory(rows), nil
	})
}

// fetchSafely calls source and converts panics into fetch errors.
func fetchSafely[T any](ctx context.Context, source Source[T]) (data T, err error) {
	defer func() {
		recovered := recover()
		if recovered == nil {
			return
		}
		var zero T
		data = zero
		err = fmt.Errorf("%w: panic recovered: %v", ErrFetch, recovered)
	}()

	return source.FetchAll(ctx)
}
