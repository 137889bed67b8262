// Package seatlookup answers free-text guest names with their table and
// floor-plan image, and lets staff drop the cached guest directory.
package seatlookup

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"slices"
	"strings"

	"wedding-bot/pkg/chat"
	"wedding-bot/pkg/content"
)

const (
	// KeywordCleanCache invalidates the guest directory snapshot.
	KeywordCleanCache = "cleancache"

	// maxImageURLLength is the LINE limit for image message URLs.
	maxImageURLLength = 1000

	tablesRoute = "/tables/"

	foundFormat      = "您的桌號是:第%s桌(%s)"
	notFoundText     = "哎呀是不是打錯名字了呢，請重新輸入。\nNot found, please try again."
	unavailableText  = "系統處理錯誤，請稍後再試。\nSystem error, please try again later."
	cacheClearedText = "Successfully cleared cache. Next query will fetch data from the guest list."
	staffOnlyText    = "此指令僅限工作人員使用。\nThis command is for staff only."
)

// Config configures reply rendering and maintenance access.
type Config struct {
	// PublicBaseURL is the public origin serving /tables/ images. Images are
	// omitted from replies when empty.
	PublicBaseURL string
	// StaffIDs may run maintenance keywords. Empty allows everyone.
	StaffIDs []string
}

// Module resolves seat lookups through the content service.
type Module struct {
	cfg        Config
	dispatcher chat.ReplyDispatcher
	seats      content.SeatLookup
	logger     *slog.Logger
}

// New creates a seat lookup module.
func New(cfg Config) *Module {
	cfg.PublicBaseURL = strings.TrimRight(strings.TrimSpace(cfg.PublicBaseURL), "/")
	cfg.StaffIDs = slices.Clone(cfg.StaffIDs)

	return &Module{cfg: cfg, logger: slog.Default()}
}

// Name returns the stable module identifier.
func (m *Module) Name() string {
	return "seatlookup"
}

// Spec declares free-text lookup and the cache maintenance keyword.
func (m *Module) Spec() chat.ModuleSpec {
	services := []string{chat.ServiceReplyDispatcher, content.ServiceSeatLookup}

	return chat.ModuleSpec{
		Handlers: []chat.ModuleHandler{
			{
				Capability: chat.Capability{
					Name:        "seat-lookup-text-handler",
					Description: "treats unmatched text as a guest name",
					Interest: chat.InterestSet{
						Kinds:        []chat.EventKind{chat.EventKindMessageReceived},
						MessageTypes: []chat.MessageType{chat.MessageTypeText},
					},
					RequiredServices: services,
				},
				Subscription: chat.NewDefaultSubscriptionSpec("seat-lookup-text"),
				Handler:      m.handleText,
			},
			{
				Capability: chat.Capability{
					Name:        "seat-lookup-maintenance-handler",
					Description: "drops the cached guest directory",
					Interest: chat.InterestSet{
						Kinds:        []chat.EventKind{chat.EventKindKeywordReceived},
						KeywordNames: []string{KeywordCleanCache},
					},
					RequiredServices: services,
				},
				Subscription: chat.NewDefaultSubscriptionSpec("seat-lookup-maintenance"),
				Handler:      m.handleCleanCache,
			},
		},
		Keywords: []chat.KeywordSpec{
			{Name: KeywordCleanCache, Texts: []string{KeywordCleanCache}, Description: "refetch the guest list on the next lookup"},
		},
	}
}

// OnRegister resolves dependencies required by this module.
func (m *Module) OnRegister(_ context.Context, runtime chat.ModuleRuntime) error {
	logger, err := chat.ResolveLogger(runtime.Services(), m.logger)
	if err != nil {
		return fmt.Errorf("seatlookup resolve logger: %w", err)
	}
	m.logger = logger

	dispatcher, err := chat.ResolveAs[chat.ReplyDispatcher](runtime.Services(), chat.ServiceReplyDispatcher)
	if err != nil {
		return fmt.Errorf("seatlookup resolve reply dispatcher: %w", err)
	}
	seats, err := chat.ResolveAs[content.SeatLookup](runtime.Services(), content.ServiceSeatLookup)
	if err != nil {
		return fmt.Errorf("seatlookup resolve seat service: %w", err)
	}

	m.dispatcher = dispatcher
	m.seats = seats

	return nil
}

// OnStart starts the module lifecycle.
func (m *Module) OnStart(_ context.Context) error {
	return nil
}

// OnShutdown stops the module lifecycle.
func (m *Module) OnShutdown(_ context.Context) error {
	return nil
}

func (m *Module) handleText(ctx context.Context, event *chat.Event) error {
	if event == nil || event.Kind != chat.EventKindMessageReceived || event.Message == nil {
		return nil
	}
	if event.Message.Type != chat.MessageTypeText {
		return nil
	}
	name := strings.TrimSpace(event.Message.Text)
	if name == "" {
		return nil
	}
	if m.seats == nil {
		return fmt.Errorf("seatlookup handle text: seat service not configured")
	}

	result := m.seats.LookupSeat(ctx, name)
	m.logger.Debug("seat lookup", "consumer", event.ConsumerID(), "status", result.Status)

	return m.reply(ctx, event, m.renderResult(result)...)
}

func (m *Module) handleCleanCache(ctx context.Context, event *chat.Event) error {
	if event == nil || event.Keyword == nil || event.Keyword.Name != KeywordCleanCache {
		return nil
	}
	if !m.isStaff(event) {
		m.logger.Warn("maintenance keyword refused", "keyword", KeywordCleanCache, "consumer", event.ConsumerID())
		return m.reply(ctx, event, chat.TextMessage(staffOnlyText))
	}
	if m.seats == nil {
		return fmt.Errorf("seatlookup clean cache: seat service not configured")
	}

	m.seats.InvalidateDirectory()
	m.logger.Info("guest directory invalidated", "consumer", event.ConsumerID())

	return m.reply(ctx, event, chat.TextMessage(cacheClearedText))
}

func (m *Module) renderResult(result content.SeatResult) []chat.OutboundMessage {
	switch result.Status {
	case content.SeatFound:
		messages := []chat.OutboundMessage{
			chat.TextMessage(fmt.Sprintf(foundFormat, result.Table, result.TableName)),
		}
		if imageURL, ok := m.tableImageURL(result); ok {
			messages = append(messages, chat.ImageMessage(imageURL))
		}
		return messages
	case content.SeatNotFound:
		return []chat.OutboundMessage{chat.TextMessage(notFoundText)}
	default:
		return []chat.OutboundMessage{chat.TextMessage(unavailableText)}
	}
}

func (m *Module) tableImageURL(result content.SeatResult) (string, bool) {
	if !result.ArtifactAvailable || result.ArtifactName == "" || m.cfg.PublicBaseURL == "" {
		return "", false
	}

	imageURL := m.cfg.PublicBaseURL + tablesRoute + url.PathEscape(result.ArtifactName)
	if len(imageURL) > maxImageURLLength {
		m.logger.Warn("table image url too long", "length", len(imageURL), "table", result.Table)
		return "", false
	}

	return imageURL, true
}

func (m *Module) isStaff(event *chat.Event) bool {
	if len(m.cfg.StaffIDs) == 0 {
		return true
	}

	return slices.Contains(m.cfg.StaffIDs, event.Actor.ID)
}

func (m *Module) reply(ctx context.Context, event *chat.Event, messages ...chat.OutboundMessage) error {
	if m.dispatcher == nil {
		return fmt.Errorf("seatlookup reply: reply dispatcher not configured")
	}
	target, err := chat.ReplyTargetFromEvent(event)
	if err != nil {
		return fmt.Errorf("seatlookup derive reply target: %w", err)
	}
	if err := m.dispatcher.Reply(ctx, chat.ReplyRequest{Target: target, Messages: messages}); err != nil {
		return fmt.Errorf("seatlookup reply: %w", err)
	}

	return nil
}

var (
	_ chat.Module          = (*Module)(nil)
	_ chat.ModuleRegistrar = (*Module)(nil)
)
