// Package gcs lists wedding photos stored in a Google Cloud Storage bucket.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"wedding-bot/internal/source"
	"wedding-bot/pkg/content"
)

const defaultPublicBaseURL = "https://storage.googleapis.com"

// Object is the subset of object attributes a photo record needs.
type Object struct {
	Name        string
	ContentType string
	Size        int64
	Updated     time.Time
}

// Lister lists objects under a prefix.
type Lister interface {
	ListObjects(ctx context.Context, bucket string, prefix string) ([]Object, error)
}

// StorageLister lists objects with a storage client.
type StorageLister struct {
	client *storage.Client
}

// NewStorageLister creates a storage client.
//
// An empty credentialsFile uses application default credentials.
func NewStorageLister(ctx context.Context, credentialsFile string) (*StorageLister, error) {
	var options []option.ClientOption
	if credentialsFile != "" {
		options = append(options, option.WithCredentialsFile(credentialsFile))
	}

	client, err := storage.NewClient(ctx, options...)
	if err != nil {
		return nil, fmt.Errorf("creating GCP storage client: %w", err)
	}

	return &StorageLister{client: client}, nil
}

// ListObjects implements Lister.
func (l *StorageLister) ListObjects(ctx context.Context, bucket string, prefix string) ([]Object, error) {
	it := l.client.Bucket(bucket).Objects(ctx, &storage.Query{Prefix: prefix})

	var objects []Object
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list gs://%s/%s: %w", bucket, prefix, err)
		}
		objects = append(objects, Object{
			Name:        attrs.Name,
			ContentType: attrs.ContentType,
			Size:        attrs.Size,
			Updated:     attrs.Updated,
		})
	}

	return objects, nil
}

// Close releases the storage client.
func (l *StorageLister) Close() error {
	return l.client.Close()
}

// Config selects the bucket area holding photos.
type Config struct {
	Bucket string
	Prefix string
	// PublicBaseURL replaces https://storage.googleapis.com when photos are served through a CDN.
	PublicBaseURL string
}

// Source implements the photo tier over a bucket.
type Source struct {
	lister Lister
	cfg    Config
}

// NewSource creates a bucket photo source.
func NewSource(lister Lister, cfg Config) (*Source, error) {
	if lister == nil {
		return nil, fmt.Errorf("new gcs source: nil lister")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("new gcs source: %w: empty bucket", content.ErrConfiguration)
	}
	if cfg.PublicBaseURL == "" {
		cfg.PublicBaseURL = defaultPublicBaseURL + "/" + cfg.Bucket
	}
	cfg.PublicBaseURL = strings.TrimRight(cfg.PublicBaseURL, "/")

	return &Source{lister: lister, cfg: cfg}, nil
}

// FetchAll implements content.Source.
func (s *Source) FetchAll(ctx context.Context) ([]content.PhotoRecord, error) {
	objects, err := s.lister.ListObjects(ctx, s.cfg.Bucket, s.cfg.Prefix)
	if err != nil {
		return nil, fmt.Errorf("gcs photos: %w", err)
	}

	photos := make([]content.PhotoRecord, 0, len(objects))
	for _, object := range objects {
		if strings.HasSuffix(object.Name, "/") || !source.IsPhoto(object.Name) {
			continue
		}
		contentType := object.ContentType
		if contentType == "" {
			contentType = source.PhotoContentType(object.Name)
		}
		photos = append(photos, content.PhotoRecord{
			ID:          object.Name,
			URL:         s.cfg.PublicBaseURL + "/" + escapeObjectName(object.Name),
			Title:       source.PhotoTitle(object.Name),
			UpdatedAt:   object.Updated,
			ContentType: contentType,
			SizeBytes:   object.Size,
		})
	}

	return photos, nil
}

// escapeObjectName escapes each path segment and keeps the separators.
func escapeObjectName(name string) string {
	segments := strings.Split(name, "/")
	for index, segment := range segments {
		segments[index] = url.PathEscape(segment)
	}

	return strings.Join(segments, "/")
}

var _ content.Source[[]content.PhotoRecord] = (*Source)(nil)
