package line

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/line/line-bot-sdk-go/v8/linebot/webhook"

	"wedding-bot/pkg/chat"
)

const (
	defaultPublishTimeout  = 2 * time.Second
	defaultRichMenuTimeout = 30 * time.Second
	maxWebhookBodyBytes    = 1 << 20
)

type driverConfig struct {
	name           string
	channelSecret  string
	publishTimeout time.Duration
	logger         *slog.Logger

	richMenuAPI   RichMenuAPI
	richMenuImage string
}

// DriverOption mutates LINE driver configuration.
type DriverOption func(*driverConfig)

// WithName configures the driver identity exposed to the kernel.
func WithName(name string) DriverOption {
	return func(cfg *driverConfig) {
		if name != "" {
			cfg.name = name
		}
	}
}

// WithPublishTimeout bounds publishing one decoded event into the kernel.
func WithPublishTimeout(timeout time.Duration) DriverOption {
	return func(cfg *driverConfig) {
		if timeout > 0 {
			cfg.publishTimeout = timeout
		}
	}
}

// WithLogger configures the driver logger.
func WithLogger(logger *slog.Logger) DriverOption {
	return func(cfg *driverConfig) {
		if logger != nil {
			cfg.logger = logger
		}
	}
}

// WithRichMenu installs the wedding rich menu with the image at imagePath
// when the driver starts. An empty imagePath disables the step.
func WithRichMenu(api RichMenuAPI, imagePath string) DriverOption {
	return func(cfg *driverConfig) {
		if api != nil && imagePath != "" {
			cfg.richMenuAPI = api
			cfg.richMenuImage = imagePath
		}
	}
}

// Driver receives LINE webhook callbacks and publishes neutral events.
//
// The webhook answers 503 until Start has bound a sink.
type Driver struct {
	cfg     driverConfig
	decoder eventDecoder

	mu   sync.RWMutex
	sink chat.EventSink
}

// NewDriver creates a LINE webhook driver verifying callbacks with channelSecret.
func NewDriver(channelSecret string, options ...DriverOption) (*Driver, error) {
	if channelSecret == "" {
		return nil, fmt.Errorf("new line driver: empty channel secret")
	}

	cfg := driverConfig{
		name:           DriverType,
		channelSecret:  channelSecret,
		publishTimeout: defaultPublishTimeout,
		logger:         slog.Default(),
	}
	for _, option := range options {
		option(&cfg)
	}

	return &Driver{
		cfg:     cfg,
		decoder: newDefaultDecoder(),
	}, nil
}

// Name returns the configured driver identity.
func (d *Driver) Name() string {
	return d.cfg.name
}

// Start binds sink to the webhook and blocks until ctx is canceled.
func (d *Driver) Start(ctx context.Context, sink chat.EventSink) error {
	if sink == nil {
		return fmt.Errorf("start line driver %s: nil sink", d.cfg.name)
	}

	d.mu.Lock()
	d.sink = sink
	d.mu.Unlock()
	d.cfg.logger.Info("line webhook accepting events", "driver", d.cfg.name)
	d.installRichMenu(ctx)

	<-ctx.Done()

	d.mu.Lock()
	d.sink = nil
	d.mu.Unlock()

	return ctx.Err()
}

// Shutdown detaches the sink. The HTTP server owns the listener.
func (d *Driver) Shutdown(context.Context) error {
	d.mu.Lock()
	d.sink = nil
	d.mu.Unlock()

	return nil
}

// ServeHTTP handles one webhook delivery.
func (d *Driver) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	d.mu.RLock()
	sink := d.sink
	d.mu.RUnlock()
	if sink == nil {
		http.Error(w, "driver not started", http.StatusServiceUnavailable)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxWebhookBodyBytes)
	payload, err := webhook.ParseRequest(d.cfg.channelSecret, r)
	if err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.Is(err, webhook.ErrInvalidSignature):
			d.cfg.logger.Warn("line webhook signature rejected", "driver", d.cfg.name, "remote", r.RemoteAddr)
			http.Error(w, "invalid signature", http.StatusUnauthorized)
		case errors.As(err, &tooLarge):
			http.Error(w, "payload too large", http.StatusRequestEntityTooLarge)
		default:
			http.Error(w, "invalid payload", http.StatusBadRequest)
		}
		return
	}

	d.publishAll(r.Context(), sink, payload.Events)
	w.WriteHeader(http.StatusOK)
}

func (d *Driver) publishAll(ctx context.Context, sink chat.EventSink, events []webhook.EventInterface) {
	source := chat.EventSource{Platform: DriverPlatform, ID: d.cfg.name}
	for _, raw := range events {
		event, ok, err := d.decoder.Decode(raw, source)
		if err != nil {
			d.cfg.logger.Warn("line webhook event skipped", "driver", d.cfg.name, "type", raw.GetType(), "error", err)
			continue
		}
		if !ok {
			continue
		}

		publishCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.cfg.publishTimeout)
		err = sink.Publish(publishCtx, event)
		cancel()
		if err != nil {
			d.cfg.logger.Error("line webhook publish failed",
				"driver", d.cfg.name,
				"event_id", event.ID,
				"kind", event.Kind,
				"error", err,
			)
		}
	}
}

// installRichMenu logs setup failures and lets the driver keep serving.
func (d *Driver) installRichMenu(ctx context.Context) {
	if d.cfg.richMenuAPI == nil {
		return
	}

	setupCtx, cancel := context.WithTimeout(ctx, defaultRichMenuTimeout)
	defer cancel()

	richMenuID, err := EnsureRichMenu(setupCtx, d.cfg.richMenuAPI, d.cfg.richMenuImage, d.cfg.logger)
	if err != nil {
		d.cfg.logger.Error("line rich menu setup failed", "driver", d.cfg.name, "image", d.cfg.richMenuImage, "error", err)
		return
	}
	if richMenuID != "" {
		d.cfg.logger.Info("line rich menu installed", "driver", d.cfg.name, "rich_menu_id", richMenuID)
	}
}

var _ chat.Driver = (*Driver)(nil)
