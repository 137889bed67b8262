// Package sheets reads the guest directory from a Google Sheets range.
package sheets

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"

	"wedding-bot/pkg/content"
)

// DefaultRange covers the name and table columns of the first sheet.
const DefaultRange = "Sheet1!A:B"

// ValuesGetter reads raw cell values for one range.
type ValuesGetter interface {
	GetValues(ctx context.Context, spreadsheetID string, readRange string) ([][]any, error)
}

// APIGetter reads values through the Sheets v4 API.
type APIGetter struct {
	service *sheetsapi.Service
}

// NewAPIGetter creates a read-only Sheets client.
//
// An empty credentialsFile uses application default credentials.
func NewAPIGetter(ctx context.Context, credentialsFile string) (*APIGetter, error) {
	options := []option.ClientOption{option.WithScopes(sheetsapi.SpreadsheetsReadonlyScope)}
	if credentialsFile != "" {
		options = append(options, option.WithCredentialsFile(credentialsFile))
	}

	service, err := sheetsapi.NewService(ctx, options...)
	if err != nil {
		return nil, fmt.Errorf("new sheets service: %w", err)
	}

	return &APIGetter{service: service}, nil
}

// GetValues implements ValuesGetter.
func (g *APIGetter) GetValues(ctx context.Context, spreadsheetID string, readRange string) ([][]any, error) {
	response, err := g.service.Spreadsheets.Values.Get(spreadsheetID, readRange).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("get values %s: %w", readRange, err)
	}

	return response.Values, nil
}

// Source lists directory records from one spreadsheet range.
type Source struct {
	getter        ValuesGetter
	spreadsheetID string
	readRange     string
	logger        *slog.Logger
}

// NewSource creates a directory source. An empty readRange uses DefaultRange.
func NewSource(getter ValuesGetter, spreadsheetID string, readRange string, logger *slog.Logger) (*Source, error) {
	if getter == nil {
		return nil, fmt.Errorf("new sheets source: nil values getter")
	}
	if spreadsheetID == "" {
		return nil, fmt.Errorf("new sheets source: %w: empty spreadsheet id", content.ErrConfiguration)
	}
	if readRange == "" {
		readRange = DefaultRange
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Source{
		getter:        getter,
		spreadsheetID: spreadsheetID,
		readRange:     readRange,
		logger:        logger,
	}, nil
}

// FetchAll implements content.Source.
func (s *Source) FetchAll(ctx context.Context) ([]content.DirectoryRecord, error) {
	values, err := s.getter.GetValues(ctx, s.spreadsheetID, s.readRange)
	if err != nil {
		return nil, fmt.Errorf("sheets directory: %w", err)
	}

	records := ParseRows(values)
	s.logger.Debug("sheets directory fetched", "rows", len(values), "records", len(records))

	return records, nil
}

// ParseRows converts sheet rows into records.
//
// The first row is a header. Rows without both a name and a table are skipped.
func ParseRows(values [][]any) []content.DirectoryRecord {
	if len(values) <= 1 {
		return []content.DirectoryRecord{}
	}

	records := make([]content.DirectoryRecord, 0, len(values)-1)
	for _, row := range values[1:] {
		if len(row) < 2 {
			continue
		}
		name := strings.TrimSpace(cellString(row[0]))
		table := strings.TrimSpace(cellString(row[1]))
		if name == "" || table == "" {
			continue
		}
		records = append(records, content.DirectoryRecord{Key: name, Value: table})
	}

	return records
}

func cellString(cell any) string {
	switch value := cell.(type) {
	case nil:
		return ""
	case string:
		return value
	default:
		return fmt.Sprint(value)
	}
}

var _ content.Source[[]content.DirectoryRecord] = (*Source)(nil)
