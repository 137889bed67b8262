package localfs

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"wedding-bot/pkg/content"
)

// DefaultGuestsFile is the CSV guest list used when no spreadsheet is configured.
const DefaultGuestsFile = "data/guests.csv"

// GuestCSV reads directory records from a "name,table" CSV file with a header row.
type GuestCSV struct {
	path string
}

// NewGuestCSV creates a CSV directory source. An empty path uses DefaultGuestsFile.
func NewGuestCSV(path string) *GuestCSV {
	if path == "" {
		path = DefaultGuestsFile
	}

	return &GuestCSV{path: path}
}

// FetchAll implements content.Source.
func (g *GuestCSV) FetchAll(ctx context.Context) ([]content.DirectoryRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	file, err := os.Open(g.path)
	if err != nil {
		return nil, fmt.Errorf("open guest csv: %w", err)
	}
	defer file.Close()

	records, err := parseGuests(file)
	if err != nil {
		return nil, fmt.Errorf("parse guest csv %s: %w", g.path, err)
	}

	return records, nil
}

func parseGuests(reader io.Reader) ([]content.DirectoryRecord, error) {
	csvReader := csv.NewReader(reader)
	csvReader.FieldsPerRecord = -1
	csvReader.TrimLeadingSpace = true

	records := []content.DirectoryRecord{}
	header := true
	for {
		row, err := csvReader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if header {
			header = false
			continue
		}
		if len(row) < 2 {
			continue
		}
		name := strings.TrimSpace(row[0])
		table := strings.TrimSpace(row[1])
		if name == "" || table == "" {
			continue
		}
		records = append(records, content.DirectoryRecord{Key: name, Value: table})
	}

	return records, nil
}

var _ content.Source[[]content.DirectoryRecord] = (*GuestCSV)(nil)
