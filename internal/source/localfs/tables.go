package localfs

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"wedding-bot/pkg/content"
)

const (
	tableImagePrefix = "table_"
	tableImageSuffix = ".png"
)

// TableImages holds the table_<n>.png floor-plan images.
type TableImages struct {
	dir string
}

// NewTableImages creates a table image store rooted at dir.
func NewTableImages(dir string) *TableImages {
	return &TableImages{dir: dir}
}

// Dir returns the image directory.
func (t *TableImages) Dir() string {
	return t.dir
}

// ArtifactName implements content.ArtifactProbe.
func (t *TableImages) ArtifactName(table string) string {
	return tableImagePrefix + table + tableImageSuffix
}

// Path returns the image path for table.
func (t *TableImages) Path(table string) string {
	return filepath.Join(t.dir, filepath.Base(t.ArtifactName(table)))
}

// Exists implements content.ArtifactProbe.
func (t *TableImages) Exists(ctx context.Context, table string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if table == "" || strings.ContainsAny(table, `/\`) {
		return false, nil
	}

	info, err := os.Stat(t.Path(table))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("stat table image %s: %w", table, err)
	}

	return info.Mode().IsRegular(), nil
}

// List returns the table numbers that have an image, ascending.
func (t *TableImages) List() ([]int, error) {
	entries, err := os.ReadDir(t.dir)
	if err != nil {
		return nil, fmt.Errorf("read table dir %s: %w", t.dir, err)
	}

	tables := make([]int, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		number, ok := parseTableImageName(entry.Name())
		if ok {
			tables = append(tables, number)
		}
	}
	slices.Sort(tables)

	return tables, nil
}

func parseTableImageName(name string) (int, bool) {
	if !strings.HasPrefix(name, tableImagePrefix) || !strings.HasSuffix(name, tableImageSuffix) {
		return 0, false
	}
	digits := strings.TrimSuffix(strings.TrimPrefix(name, tableImagePrefix), tableImageSuffix)
	number, err := strconv.Atoi(digits)
	if err != nil || number <= 0 {
		return 0, false
	}

	return number, true
}

var _ content.ArtifactProbe = (*TableImages)(nil)
