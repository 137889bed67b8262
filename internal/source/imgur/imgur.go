// Package imgur lists wedding photos from an Imgur album.
package imgur

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"wedding-bot/pkg/content"
)

const (
	defaultBaseURL      = "https://api.imgur.com"
	maxErrorBodySnippet = 512
)

type config struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// Option mutates Source configuration.
type Option func(*config)

// WithBaseURL points the source at a different API host.
func WithBaseURL(baseURL string) Option {
	return func(cfg *config) {
		if baseURL != "" {
			cfg.baseURL = strings.TrimRight(baseURL, "/")
		}
	}
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(cfg *config) {
		if client != nil {
			cfg.httpClient = client
		}
	}
}

// WithRateLimit throttles album requests to requestsPerMinute with the given burst.
func WithRateLimit(requestsPerMinute int, burst int) Option {
	return func(cfg *config) {
		if requestsPerMinute <= 0 {
			return
		}
		if burst <= 0 {
			burst = 1
		}
		cfg.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(requestsPerMinute)), burst)
	}
}

// Source implements the photo tier over one album.
type Source struct {
	cfg       config
	clientID  string
	albumHash string
}

// NewSource creates an album photo source authorized by an application client id.
func NewSource(clientID string, albumHash string, options ...Option) (*Source, error) {
	if clientID == "" {
		return nil, fmt.Errorf("new imgur source: %w: empty client id", content.ErrConfiguration)
	}
	if albumHash == "" {
		return nil, fmt.Errorf("new imgur source: %w: empty album", content.ErrConfiguration)
	}

	cfg := config{
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		limiter:    rate.NewLimiter(rate.Every(time.Minute/30), 1),
	}
	for _, option := range options {
		option(&cfg)
	}

	return &Source{cfg: cfg, clientID: clientID, albumHash: albumHash}, nil
}

type albumImagesResponse struct {
	Data    []albumImage `json:"data"`
	Success bool         `json:"success"`
	Status  int          `json:"status"`
}

type albumImage struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Type     string `json:"type"`
	Link     string `json:"link"`
	Datetime int64  `json:"datetime"`
	Size     int64  `json:"size"`
	Animated bool   `json:"animated"`
}

// FetchAll implements content.Source.
//
// Calls wait on the limiter so a burst of reloads cannot exhaust the client quota.
func (s *Source) FetchAll(ctx context.Context) ([]content.PhotoRecord, error) {
	if err := s.cfg.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("imgur photos: rate limit: %w", err)
	}

	endpoint := s.cfg.baseURL + "/3/album/" + url.PathEscape(s.albumHash) + "/images"
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("imgur photos request: %w", err)
	}
	request.Header.Set("Authorization", "Client-ID "+s.clientID)

	response, err := s.cfg.httpClient.Do(request)
	if err != nil {
		return nil, fmt.Errorf("imgur photos: %w", err)
	}
	defer response.Body.Close()

	if response.StatusCode/100 != 2 {
		snippet, _ := io.ReadAll(io.LimitReader(response.Body, maxErrorBodySnippet))
		return nil, fmt.Errorf("imgur photos: status %d: %s", response.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var payload albumImagesResponse
	if err := json.NewDecoder(response.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("imgur photos decode: %w", err)
	}
	if !payload.Success {
		return nil, fmt.Errorf("imgur photos: api status %d", payload.Status)
	}

	photos := make([]content.PhotoRecord, 0, len(payload.Data))
	for _, image := range payload.Data {
		if image.Animated || !supportedType(image.Type) || image.Link == "" {
			continue
		}
		title := image.Title
		if title == "" {
			title = image.ID
		}
		photos = append(photos, content.PhotoRecord{
			ID:          image.ID,
			URL:         image.Link,
			Title:       title,
			UpdatedAt:   time.Unix(image.Datetime, 0).UTC(),
			ContentType: image.Type,
			SizeBytes:   image.Size,
		})
	}

	return photos, nil
}

func supportedType(contentType string) bool {
	switch contentType {
	case "image/jpeg", "image/png":
		return true
	default:
		return false
	}
}

var _ content.Source[[]content.PhotoRecord] = (*Source)(nil)
