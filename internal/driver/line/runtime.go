package line

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"wedding-bot/pkg/chat"
)

const defaultWebhookPath = "/callback"

type runtimeConfig struct {
	ChannelSecret         string   `json:"channel_secret"`
	ChannelSecretEnv      string   `json:"channel_secret_env"`
	ChannelAccessToken    string   `json:"channel_access_token"`
	ChannelAccessTokenEnv string   `json:"channel_access_token_env"`
	WebhookPaths          []string `json:"webhook_paths"`
	PublishTimeout        string   `json:"publish_timeout"`
	ReplyTimeout          string   `json:"reply_timeout"`
	APIBaseURL            string   `json:"api_base_url"`
	RichMenuImage         string   `json:"rich_menu_image"`
}

type parsedRuntimeConfig struct {
	channelSecret      string
	channelAccessToken string
	webhookPaths       []string
	publishTimeout     time.Duration
	replyTimeout       time.Duration
	apiBaseURL         string
	richMenuImage      string
}

// Runtime is one built LINE driver instance.
type Runtime struct {
	Source       chat.EventSource
	Driver       *Driver
	Replies      *ReplyClient
	WebhookPaths []string
}

// BuildRuntimeFromConfig builds one LINE driver runtime from its config payload.
func BuildRuntimeFromConfig(name string, logger *slog.Logger, rawConfig []byte) (Runtime, error) {
	cfg, err := parseRuntimeConfig(rawConfig, os.Getenv)
	if err != nil {
		return Runtime{}, fmt.Errorf("parse line runtime config: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("driver", name)

	replies, err := NewReplyClient(
		cfg.channelAccessToken,
		WithAPIBaseURL(cfg.apiBaseURL),
		WithReplyTimeout(cfg.replyTimeout),
		WithReplyLogger(logger),
	)
	if err != nil {
		return Runtime{}, fmt.Errorf("new line reply client: %w", err)
	}

	driver, err := NewDriver(
		cfg.channelSecret,
		WithName(name),
		WithPublishTimeout(cfg.publishTimeout),
		WithLogger(logger),
		WithRichMenu(replies.api, cfg.richMenuImage),
	)
	if err != nil {
		return Runtime{}, fmt.Errorf("new line driver: %w", err)
	}

	return Runtime{
		Source:       chat.EventSource{Platform: DriverPlatform, ID: name},
		Driver:       driver,
		Replies:      replies,
		WebhookPaths: cfg.webhookPaths,
	}, nil
}

func parseRuntimeConfig(raw []byte, getenv func(string) string) (parsedRuntimeConfig, error) {
	if len(raw) == 0 {
		return parsedRuntimeConfig{}, fmt.Errorf("missing config")
	}

	var parsed runtimeConfig
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return parsedRuntimeConfig{}, fmt.Errorf("unmarshal: %w", err)
	}

	cfg := parsedRuntimeConfig{
		channelSecret:      resolveSecret(parsed.ChannelSecret, parsed.ChannelSecretEnv, getenv),
		channelAccessToken: resolveSecret(parsed.ChannelAccessToken, parsed.ChannelAccessTokenEnv, getenv),
		publishTimeout:     defaultPublishTimeout,
		replyTimeout:       defaultReplyTimeout,
		apiBaseURL:         strings.TrimSpace(parsed.APIBaseURL),
		richMenuImage:      strings.TrimSpace(parsed.RichMenuImage),
	}
	for _, path := range parsed.WebhookPaths {
		path = strings.TrimSpace(path)
		if path == "" {
			continue
		}
		if !strings.HasPrefix(path, "/") {
			return parsedRuntimeConfig{}, fmt.Errorf("webhook path %q must start with /", path)
		}
		cfg.webhookPaths = append(cfg.webhookPaths, path)
	}
	if len(cfg.webhookPaths) == 0 {
		cfg.webhookPaths = []string{defaultWebhookPath}
	}

	var err error
	if cfg.publishTimeout, err = parsePositiveDuration("publish_timeout", parsed.PublishTimeout, cfg.publishTimeout); err != nil {
		return parsedRuntimeConfig{}, err
	}
	if cfg.replyTimeout, err = parsePositiveDuration("reply_timeout", parsed.ReplyTimeout, cfg.replyTimeout); err != nil {
		return parsedRuntimeConfig{}, err
	}

	if cfg.channelSecret == "" {
		return parsedRuntimeConfig{}, fmt.Errorf("channel_secret is required")
	}
	if cfg.channelAccessToken == "" {
		return parsedRuntimeConfig{}, fmt.Errorf("channel_access_token is required")
	}

	return cfg, nil
}

// resolveSecret prefers the inline value and falls back to the named env variable.
func resolveSecret(inline string, envName string, getenv func(string) string) string {
	if value := strings.TrimSpace(inline); value != "" {
		return value
	}
	if envName = strings.TrimSpace(envName); envName != "" {
		return strings.TrimSpace(getenv(envName))
	}

	return ""
}

func parsePositiveDuration(field string, raw string, fallback time.Duration) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback, nil
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", field, err)
	}
	if parsed <= 0 {
		return 0, fmt.Errorf("parse %s: must be > 0", field)
	}

	return parsed, nil
}
