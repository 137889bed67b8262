package s3

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"wedding-bot/pkg/content"
)

// pagedClient serves one page per call, keyed by continuation token.
type pagedClient struct {
	pages map[string]*awss3.ListObjectsV2Output
	err   error
	calls int
}

func (c *pagedClient) ListObjectsV2(
	_ context.Context,
	input *awss3.ListObjectsV2Input,
	_ ...func(*awss3.Options),
) (*awss3.ListObjectsV2Output, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}

	return c.pages[aws.ToString(input.ContinuationToken)], nil
}

func TestSourceFetchAllPaginates(t *testing.T) {
	t.Parallel()

	modified := time.Date(2026, 5, 9, 12, 0, 0, 0, time.UTC)
	client := &pagedClient{pages: map[string]*awss3.ListObjectsV2Output{
		"": {
			Contents: []types.Object{
				{Key: aws.String("photos/a.jpg"), Size: aws.Int64(10), LastModified: aws.Time(modified)},
				{Key: aws.String("photos/readme.md")},
			},
			IsTruncated:           aws.Bool(true),
			NextContinuationToken: aws.String("next"),
		},
		"next": {
			Contents: []types.Object{{Key: aws.String("photos/b c.PNG")}},
		},
	}}

	src, err := NewSource(client, Config{Bucket: "wedding", Prefix: "photos/", Region: "ap-northeast-1"}, nil)
	if err != nil {
		t.Fatalf("new source failed: %v", err)
	}
	photos, err := src.FetchAll(context.Background())
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if client.calls != 2 {
		t.Fatalf("list calls = %d, want 2", client.calls)
	}
	if len(photos) != 2 {
		t.Fatalf("photos = %+v, want 2", photos)
	}
	if photos[0].URL != "https://wedding.s3.ap-northeast-1.amazonaws.com/photos/a.jpg" || photos[0].SizeBytes != 10 || !photos[0].UpdatedAt.Equal(modified) {
		t.Fatalf("first photo = %+v", photos[0])
	}
	if photos[1].URL != "https://wedding.s3.ap-northeast-1.amazonaws.com/photos/b%20c.PNG" || photos[1].Title != "b c" || photos[1].ContentType != "image/png" {
		t.Fatalf("second photo = %+v", photos[1])
	}
}

func TestSourceErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cfg  Config
	}{
		{name: "missing bucket", cfg: Config{Region: "us-east-1"}},
		{name: "missing url and region", cfg: Config{Bucket: "wedding"}},
	}
	for _, testCase := range tests {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			if _, err := NewSource(&pagedClient{}, testCase.cfg, nil); !errors.Is(err, content.ErrConfiguration) {
				t.Fatalf("error = %v, want ErrConfiguration", err)
			}
		})
	}

	src, err := NewSource(&pagedClient{err: errors.New("access denied")}, Config{Bucket: "wedding", PublicBaseURL: "https://cdn.example.com"}, nil)
	if err != nil {
		t.Fatalf("new source failed: %v", err)
	}
	if _, err := src.FetchAll(context.Background()); err == nil {
		t.Fatal("expected list error")
	}
}
