package localfs

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"wedding-bot/internal/source"
	"wedding-bot/pkg/content"
)

// PicturesRoute is the HTTP prefix photos are served under.
const PicturesRoute = "/pictures/"

// PhotoDir lists photos in one directory and links them through the bot's HTTP server.
type PhotoDir struct {
	dir     string
	baseURL string
}

// NewPhotoDir creates a directory photo tier. baseURL is the public origin of the bot.
func NewPhotoDir(dir string, baseURL string) (*PhotoDir, error) {
	if dir == "" {
		return nil, fmt.Errorf("new photo dir: %w: empty directory", content.ErrConfiguration)
	}
	if baseURL == "" {
		return nil, fmt.Errorf("new photo dir: %w: empty public base url", content.ErrConfiguration)
	}

	return &PhotoDir{dir: dir, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

// Dir returns the listed directory.
func (p *PhotoDir) Dir() string {
	return p.dir
}

// FetchAll implements content.Source.
func (p *PhotoDir) FetchAll(ctx context.Context) ([]content.PhotoRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(p.dir)
	if err != nil {
		return nil, fmt.Errorf("read photo dir %s: %w", p.dir, err)
	}

	photos := make([]content.PhotoRecord, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !source.IsPhoto(name) {
			continue
		}
		record := content.PhotoRecord{
			ID:          name,
			URL:         p.baseURL + PicturesRoute + url.PathEscape(name),
			Title:       source.PhotoTitle(name),
			ContentType: source.PhotoContentType(name),
		}
		if info, err := entry.Info(); err == nil {
			record.UpdatedAt = info.ModTime().UTC()
			record.SizeBytes = info.Size()
		}
		photos = append(photos, record)
	}

	return photos, nil
}

// Path resolves a served photo name inside the directory.
func (p *PhotoDir) Path(name string) string {
	return filepath.Join(p.dir, filepath.Base(name))
}

var _ content.Source[[]content.PhotoRecord] = (*PhotoDir)(nil)
