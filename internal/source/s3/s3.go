// Package s3 lists wedding photos stored in an Amazon S3 bucket.
package s3

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"

	"wedding-bot/internal/source"
	"wedding-bot/pkg/content"
)

// NewClient creates an S3 client from the default credential chain.
func NewClient(ctx context.Context, region string) (*awss3.Client, error) {
	var options []func(*awsconfig.LoadOptions) error
	if region != "" {
		options = append(options, awsconfig.WithRegion(region))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, options...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return awss3.NewFromConfig(cfg), nil
}

// Config selects the bucket area holding photos.
type Config struct {
	Bucket string
	Prefix string
	Region string
	// PublicBaseURL replaces the virtual-hosted bucket URL.
	PublicBaseURL string
}

// Source implements the photo tier over an S3 prefix.
type Source struct {
	client awss3.ListObjectsV2APIClient
	cfg    Config
	logger *slog.Logger
}

// NewSource creates a bucket photo source.
func NewSource(client awss3.ListObjectsV2APIClient, cfg Config, logger *slog.Logger) (*Source, error) {
	if client == nil {
		return nil, fmt.Errorf("new s3 source: nil client")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("new s3 source: %w: empty bucket", content.ErrConfiguration)
	}
	if cfg.PublicBaseURL == "" {
		if cfg.Region == "" {
			return nil, fmt.Errorf("new s3 source: %w: public_base_url or region required", content.ErrConfiguration)
		}
		cfg.PublicBaseURL = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.Bucket, cfg.Region)
	}
	cfg.PublicBaseURL = strings.TrimRight(cfg.PublicBaseURL, "/")
	if logger == nil {
		logger = slog.Default()
	}

	return &Source{client: client, cfg: cfg, logger: logger}, nil
}

// FetchAll implements content.Source.
func (s *Source) FetchAll(ctx context.Context) ([]content.PhotoRecord, error) {
	paginator := awss3.NewListObjectsV2Paginator(s.client, &awss3.ListObjectsV2Input{
		Bucket: aws.String(s.cfg.Bucket),
		Prefix: aws.String(s.cfg.Prefix),
	})

	var photos []content.PhotoRecord
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			s.logger.Error("Failed to list S3 objects",
				slog.String("bucket", s.cfg.Bucket),
				slog.String("prefix", s.cfg.Prefix),
				slog.Any("error", err),
			)
			return nil, fmt.Errorf("s3 photos: list s3://%s/%s: %w", s.cfg.Bucket, s.cfg.Prefix, err)
		}

		for _, object := range page.Contents {
			key := aws.ToString(object.Key)
			if !source.IsPhoto(key) {
				continue
			}
			photos = append(photos, content.PhotoRecord{
				ID:          key,
				URL:         s.cfg.PublicBaseURL + "/" + escapeKey(key),
				Title:       source.PhotoTitle(key),
				UpdatedAt:   aws.ToTime(object.LastModified),
				ContentType: source.PhotoContentType(key),
				SizeBytes:   aws.ToInt64(object.Size),
			})
		}
	}

	return photos, nil
}

func escapeKey(key string) string {
	segments := strings.Split(key, "/")
	for index, segment := range segments {
		segments[index] = url.PathEscape(segment)
	}

	return strings.Join(segments, "/")
}

var _ content.Source[[]content.PhotoRecord] = (*Source)(nil)
