package source

import (
	"context"
	"errors"
	"testing"
	"time"

	"wedding-bot/pkg/content"
)

func TestIsPhoto(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		want bool
	}{
		{name: "a.jpg", want: true},
		{name: "b.JPEG", want: true},
		{name: "album/c.Png", want: true},
		{name: "notes.txt"},
		{name: "jpg"},
		{name: "archive.png.zip"},
	}

	for _, testCase := range tests {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			if got := IsPhoto(testCase.name); got != testCase.want {
				t.Fatalf("IsPhoto(%q) = %v, want %v", testCase.name, got, testCase.want)
			}
		})
	}
}

func TestPhotoTitleAndContentType(t *testing.T) {
	t.Parallel()

	if got := PhotoTitle("album/beach.sunset.JPG"); got != "beach.sunset" {
		t.Fatalf("title = %q", got)
	}
	if got := PhotoContentType("x.JPG"); got != "image/jpeg" {
		t.Fatalf("content type = %q", got)
	}
	if got := PhotoContentType("x.png"); got != "image/png" {
		t.Fatalf("content type = %q", got)
	}
}

func TestWithTimeout(t *testing.T) {
	t.Parallel()

	blocking := content.SourceFunc[int](func(ctx context.Context) (int, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	})
	if _, err := WithTimeout[int](blocking, 10*time.Millisecond).FetchAll(context.Background()); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("error = %v, want deadline exceeded", err)
	}

	immediate := content.SourceFunc[int](func(context.Context) (int, error) { return 7, nil })
	got, err := WithTimeout[int](immediate, 0).FetchAll(context.Background())
	if err != nil || got != 7 {
		t.Fatalf("FetchAll() = %d, %v", got, err)
	}
}
