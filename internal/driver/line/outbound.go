package line

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"

	"wedding-bot/pkg/chat"
)

const (
	defaultReplyTimeout = 5 * time.Second
	maxTextRunes        = 5000
	maxAltTextRunes     = 400
)

type replyConfig struct {
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
	logger     *slog.Logger
}

// ReplyOption mutates ReplyClient configuration.
type ReplyOption func(*replyConfig)

// WithAPIBaseURL points the client at a different API host.
func WithAPIBaseURL(baseURL string) ReplyOption {
	return func(cfg *replyConfig) {
		if baseURL != "" {
			cfg.baseURL = strings.TrimRight(baseURL, "/")
		}
	}
}

// WithReplyTimeout bounds one reply call.
func WithReplyTimeout(timeout time.Duration) ReplyOption {
	return func(cfg *replyConfig) {
		if timeout > 0 {
			cfg.timeout = timeout
		}
	}
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(client *http.Client) ReplyOption {
	return func(cfg *replyConfig) {
		if client != nil {
			cfg.httpClient = client
		}
	}
}

// WithReplyLogger configures the reply logger.
func WithReplyLogger(logger *slog.Logger) ReplyOption {
	return func(cfg *replyConfig) {
		if logger != nil {
			cfg.logger = logger
		}
	}
}

// ReplyClient answers events through the Messaging API reply endpoint.
type ReplyClient struct {
	cfg replyConfig
	api messagingAPI
}

// NewReplyClient creates a reply client authorized by the channel access token.
func NewReplyClient(accessToken string, options ...ReplyOption) (*ReplyClient, error) {
	if accessToken == "" {
		return nil, fmt.Errorf("new line reply client: empty channel access token")
	}

	cfg := replyConfig{
		timeout: defaultReplyTimeout,
		logger:  slog.Default(),
	}
	for _, option := range options {
		option(&cfg)
	}

	return &ReplyClient{
		cfg: cfg,
		api: sdkAPI{accessToken: accessToken, baseURL: cfg.baseURL, httpClient: cfg.httpClient},
	}, nil
}

// Reply implements chat.ReplyDispatcher.
func (c *ReplyClient) Reply(ctx context.Context, request chat.ReplyRequest) error {
	if err := request.Validate(); err != nil {
		return fmt.Errorf("line reply: %w", err)
	}

	messages := make([]messaging_api.MessageInterface, 0, len(request.Messages))
	for _, message := range request.Messages {
		encoded, err := encodeMessage(message)
		if err != nil {
			return fmt.Errorf("line reply: %w", err)
		}
		messages = append(messages, encoded)
	}

	replyCtx, cancel := context.WithTimeout(ctx, c.cfg.timeout)
	defer cancel()

	err := c.api.ReplyMessage(replyCtx, &messaging_api.ReplyMessageRequest{
		ReplyToken: request.Target.ReplyToken,
		Messages:   messages,
	})
	if err != nil {
		return fmt.Errorf("line reply: %w", err)
	}
	c.cfg.logger.Debug("line reply sent",
		"conversation", request.Target.Conversation.ID,
		"messages", len(request.Messages),
	)

	return nil
}

func encodeMessage(message chat.OutboundMessage) (messaging_api.MessageInterface, error) {
	switch message.Type {
	case chat.OutboundTypeText:
		return &messaging_api.TextMessage{Text: truncateRunes(message.Text, maxTextRunes)}, nil
	case chat.OutboundTypeImage:
		preview := message.PreviewURL
		if preview == "" {
			preview = message.ImageURL
		}
		return &messaging_api.ImageMessage{
			OriginalContentUrl: message.ImageURL,
			PreviewImageUrl:    preview,
		}, nil
	case chat.OutboundTypeButtons:
		buttons := message.Buttons
		actions := make([]messaging_api.ActionInterface, 0, len(buttons.Actions))
		for _, action := range buttons.Actions {
			actions = append(actions, postbackAction(action.Label, action.Data, action.DisplayText))
		}
		return &messaging_api.TemplateMessage{
			AltText: truncateRunes(buttons.AltText, maxAltTextRunes),
			Template: &messaging_api.ButtonsTemplate{
				Title:   buttons.Title,
				Text:    buttons.Text,
				Actions: actions,
			},
		}, nil
	default:
		return nil, fmt.Errorf("%w: message type %q", chat.ErrOutboundUnsupported, message.Type)
	}
}

func postbackAction(label, data, displayText string) *messaging_api.PostbackAction {
	return &messaging_api.PostbackAction{
		Label:       label,
		Data:        data,
		DisplayText: displayText,
	}
}

func truncateRunes(value string, limit int) string {
	if utf8.RuneCountInString(value) <= limit {
		return value
	}

	return string([]rune(value)[:limit])
}

var _ chat.ReplyDispatcher = (*ReplyClient)(nil)
