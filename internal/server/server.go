// Package server exposes the bot's HTTP surface: health, platform webhooks,
// static photo and table images, and the table image API.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"
)

const (
	defaultShutdownTimeout   = 5 * time.Second
	defaultReadHeaderTimeout = 10 * time.Second
	// defaultMaxImageBytes is the LINE image size limit.
	defaultMaxImageBytes = 1 << 20
	defaultResizeWidth   = 1024
)

// TableStore lists and locates table floor-plan images.
type TableStore interface {
	Dir() string
	Path(table string) string
	List() ([]int, error)
}

// Webhook mounts one platform callback.
type Webhook struct {
	Path    string
	Handler http.Handler
}

// Config describes the HTTP surface.
type Config struct {
	Addr string
	// PhotoDir is served under /pictures/ when set.
	PhotoDir string
	// Tables is served under /tables/ and /api/tables when set.
	Tables TableStore
	// MaxTable bounds table numbers accepted by /api/tables/{table}.
	MaxTable int
	// MaxImageBytes is the size above which table images are downsized.
	MaxImageBytes int64
	// ResizeWidth is the maximum width of a downsized image.
	ResizeWidth     uint
	Webhooks        []Webhook
	Stats           func() any
	ShutdownTimeout time.Duration
	Logger          *slog.Logger
}

// Server owns the HTTP listener.
type Server struct {
	cfg     Config
	handler http.Handler
	logger  *slog.Logger
}

// New validates cfg and builds the route table.
func New(cfg Config) (*Server, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("new server: empty listen address")
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = defaultShutdownTimeout
	}
	if cfg.MaxImageBytes <= 0 {
		cfg.MaxImageBytes = defaultMaxImageBytes
	}
	if cfg.ResizeWidth == 0 {
		cfg.ResizeWidth = defaultResizeWidth
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	seen := make(map[string]struct{}, len(cfg.Webhooks))
	for _, webhook := range cfg.Webhooks {
		if webhook.Handler == nil {
			return nil, fmt.Errorf("new server: webhook %s: nil handler", webhook.Path)
		}
		if !strings.HasPrefix(webhook.Path, "/") {
			return nil, fmt.Errorf("new server: webhook path %q must start with /", webhook.Path)
		}
		if isReservedPath(webhook.Path) {
			return nil, fmt.Errorf("new server: webhook path %q collides with a built-in route", webhook.Path)
		}
		if _, exists := seen[webhook.Path]; exists {
			return nil, fmt.Errorf("new server: duplicate webhook path %q", webhook.Path)
		}
		seen[webhook.Path] = struct{}{}
	}

	server := &Server{
		cfg:    cfg,
		logger: cfg.Logger.With("component", "server"),
	}
	server.handler = server.buildMux()

	return server, nil
}

// Handler returns the route table.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run serves on the configured address until ctx is canceled.
func (s *Server) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.Addr, err)
	}

	return s.Serve(ctx, listener)
}

// Serve serves on listener until ctx is canceled, then drains in-flight requests.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	httpServer := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: defaultReadHeaderTimeout,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	serveErr := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", "addr", listener.Addr().String())
		serveErr <- httpServer.Serve(listener)
	}()

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown server: %w", err)
	}
	if err := <-serveErr; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve: %w", err)
	}
	s.logger.Info("server stopped")

	return nil
}

func isReservedPath(path string) bool {
	for _, prefix := range []string{"/pictures/", "/tables/", "/api/"} {
		if strings.HasPrefix(path, prefix) || path+"/" == prefix {
			return true
		}
	}

	return false
}
