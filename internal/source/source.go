// Package source holds helpers shared by the remote content backends.
package source

import (
	"context"
	"path"
	"strings"
	"time"

	"wedding-bot/pkg/content"
)

var photoExtensions = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
}

// IsPhoto reports whether name has a distributable image extension.
//
// The comparison ignores extension case.
func IsPhoto(name string) bool {
	_, ok := photoExtensions[strings.ToLower(path.Ext(name))]

	return ok
}

// PhotoContentType guesses the MIME type from the extension of name.
func PhotoContentType(name string) string {
	return photoExtensions[strings.ToLower(path.Ext(name))]
}

// PhotoTitle returns the base name of name without its extension.
func PhotoTitle(name string) string {
	base := path.Base(name)

	return strings.TrimSuffix(base, path.Ext(base))
}

// WithTimeout bounds every FetchAll call of src. A non-positive timeout returns src unchanged.
func WithTimeout[T any](src content.Source[T], timeout time.Duration) content.Source[T] {
	if timeout <= 0 {
		return src
	}

	return content.SourceFunc[T](func(ctx context.Context) (T, error) {
		fetchCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		return src.FetchAll(fetchCtx)
	})
}
