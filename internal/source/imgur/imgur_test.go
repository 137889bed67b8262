package imgur

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"wedding-bot/pkg/content"
)

const albumPayload = `{"success":true,"status":200,"data":[
{"id":"a1","title":"Ceremony","type":"image/jpeg","link":"https://i.imgur.com/a1.jpg","datetime":1715250000,"size":1200},
{"id":"a2","title":"","type":"image/png","link":"https://i.imgur.com/a2.png","datetime":1715250001,"size":800},
{"id":"a3","title":"Dance","type":"image/gif","link":"https://i.imgur.com/a3.gif","animated":true},
{"id":"a4","title":"Clip","type":"video/mp4","link":"https://i.imgur.com/a4.mp4"}]}`

func TestSourceFetchAll(t *testing.T) {
	t.Parallel()

	requests := make(chan *http.Request, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests <- r.Clone(context.Background())
		_, _ = w.Write([]byte(albumPayload))
	}))
	t.Cleanup(server.Close)

	src, err := NewSource("client", "album", WithBaseURL(server.URL), WithHTTPClient(server.Client()))
	if err != nil {
		t.Fatalf("new source failed: %v", err)
	}
	photos, err := src.FetchAll(context.Background())
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}

	request := <-requests
	if got := request.Header.Get("Authorization"); got != "Client-ID client" || request.URL.Path != "/3/album/album/images" {
		t.Fatalf("request auth=%q path=%q", got, request.URL.Path)
	}
	if len(photos) != 2 {
		t.Fatalf("photos = %+v, want 2", photos)
	}
	if photos[0].ID != "a1" || photos[0].Title != "Ceremony" || !photos[0].UpdatedAt.Equal(time.Unix(1715250000, 0)) {
		t.Fatalf("first photo = %+v", photos[0])
	}
	if photos[1].Title != "a2" {
		t.Fatalf("untitled photo title = %q, want id", photos[1].Title)
	}
}

func TestSourceFetchAllErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		status  int
		body    string
		wantMsg string
	}{
		{name: "http error", status: http.StatusForbidden, body: `{"data":{"error":"forbidden"}}`, wantMsg: "status 403"},
		{name: "api failure", status: http.StatusOK, body: `{"success":false,"status":429,"data":[]}`, wantMsg: "api status 429"},
		{name: "malformed body", status: http.StatusOK, body: `{`, wantMsg: "decode"},
	}

	for _, testCase := range tests {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(testCase.status)
				_, _ = w.Write([]byte(testCase.body))
			}))
			t.Cleanup(server.Close)

			src, err := NewSource("client", "album", WithBaseURL(server.URL), WithHTTPClient(server.Client()))
			if err != nil {
				t.Fatalf("new source failed: %v", err)
			}
			_, err = src.FetchAll(context.Background())
			if err == nil || !strings.Contains(err.Error(), testCase.wantMsg) {
				t.Fatalf("error = %v, want substring %q", err, testCase.wantMsg)
			}
		})
	}
}

func TestSourceRateLimitHonorsContext(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"success":true,"status":200,"data":[]}`))
	}))
	t.Cleanup(server.Close)

	src, err := NewSource("client", "album", WithBaseURL(server.URL), WithHTTPClient(server.Client()), WithRateLimit(1, 1))
	if err != nil {
		t.Fatalf("new source failed: %v", err)
	}
	if _, err := src.FetchAll(context.Background()); err != nil {
		t.Fatalf("first fetch failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := src.FetchAll(ctx); err == nil {
		t.Fatal("expected throttled fetch to fail when the context ends first")
	}
}

func TestNewSourceValidation(t *testing.T) {
	t.Parallel()

	if _, err := NewSource("", "album"); !errors.Is(err, content.ErrConfiguration) {
		t.Fatalf("error = %v, want ErrConfiguration", err)
	}
	if _, err := NewSource("client", ""); !errors.Is(err, content.ErrConfiguration) {
		t.Fatalf("error = %v, want ErrConfiguration", err)
	}
}
