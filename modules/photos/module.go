// Package photos answers wedding photo requests with photos the guest has
// not seen yet and lets staff reload the photo catalog.
package photos

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"wedding-bot/pkg/chat"
	"wedding-bot/pkg/content"
)

const (
	// KeywordWeddingPhoto requests photos.
	KeywordWeddingPhoto = "wedding_photo"
	// KeywordClearPhotoCache reloads the catalog and restarts every cycle.
	KeywordClearPhotoCache = "clearPhotoCache"

	emptyText       = "無法獲取照片。\nUnable to get wedding photo."
	unavailableText = "無法獲取照片，請稍後再試。\nUnable to get photo, please try again later."
	reloadedFormat  = "Successfully reloaded photo cache: %d photos."
	reloadFailed    = "Failed to reload photo cache, the previous photos stay in use."
	staffOnlyText   = "此指令僅限工作人員使用。\nThis command is for staff only."
)

// Config configures photo replies.
type Config struct {
	// PerRequest is how many photos one request returns, clamped to [1, 5].
	PerRequest int
	// StaffIDs may run maintenance keywords. Empty allows everyone.
	StaffIDs []string
}

// Module replies with fairly distributed photos.
type Module struct {
	cfg        Config
	dispatcher chat.ReplyDispatcher
	photos     content.PhotoCatalog
	logger     *slog.Logger
}

// New creates a photos module.
func New(cfg Config) *Module {
	cfg.PerRequest = max(1, min(cfg.PerRequest, content.MaxItemsPerResponse))
	cfg.StaffIDs = slices.Clone(cfg.StaffIDs)

	return &Module{cfg: cfg, logger: slog.Default()}
}

// Name returns the stable module identifier.
func (m *Module) Name() string {
	return "photos"
}

// Spec declares the photo request and reload keywords.
func (m *Module) Spec() chat.ModuleSpec {
	services := []string{chat.ServiceReplyDispatcher, content.ServicePhotoCatalog}

	return chat.ModuleSpec{
		Handlers: []chat.ModuleHandler{
			{
				Capability: chat.Capability{
					Name:        "photos-keyword-handler",
					Description: "replies with unseen wedding photos and reloads the catalog",
					Interest: chat.InterestSet{
						Kinds:        []chat.EventKind{chat.EventKindKeywordReceived},
						KeywordNames: []string{KeywordWeddingPhoto, KeywordClearPhotoCache},
					},
					RequiredServices: services,
				},
				Subscription: chat.NewDefaultSubscriptionSpec("photos-keywords"),
				Handler:      m.handleKeyword,
			},
		},
		Keywords: []chat.KeywordSpec{
			{
				Name:        KeywordWeddingPhoto,
				Texts:       []string{"婚紗照", "Wedding Photo"},
				Postbacks:   []string{KeywordWeddingPhoto},
				Description: "send a wedding photo",
			},
			{Name: KeywordClearPhotoCache, Texts: []string{KeywordClearPhotoCache}, Description: "reload the photo catalog"},
		},
	}
}

// OnRegister resolves dependencies required by this module.
func (m *Module) OnRegister(_ context.Context, runtime chat.ModuleRuntime) error {
	logger, err := chat.ResolveLogger(runtime.Services(), m.logger)
	if err != nil {
		return fmt.Errorf("photos resolve logger: %w", err)
	}
	m.logger = logger

	dispatcher, err := chat.ResolveAs[chat.ReplyDispatcher](runtime.Services(), chat.ServiceReplyDispatcher)
	if err != nil {
		return fmt.Errorf("photos resolve reply dispatcher: %w", err)
	}
	photos, err := chat.ResolveAs[content.PhotoCatalog](runtime.Services(), content.ServicePhotoCatalog)
	if err != nil {
		return fmt.Errorf("photos resolve photo service: %w", err)
	}

	m.dispatcher = dispatcher
	m.photos = photos

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

func (m *Module) handleKeyword(ctx context.Context, event *chat.Event) error {
	if event == nil || event.Kind != chat.EventKindKeywordReceived || event.Keyword == nil {
		return nil
	}
	if m.photos == nil {
		return fmt.Errorf("photos handle keyword: photo service not configured")
	}

	switch event.Keyword.Name {
	case KeywordWeddingPhoto:
		return m.handlePhotoRequest(ctx, event)
	case KeywordClearPhotoCache:
		return m.handleReload(ctx, event)
	default:
		return nil
	}
}

func (m *Module) handlePhotoRequest(ctx context.Context, event *chat.Event) error {
	selection := m.photos.GetPhotos(ctx, m.cfg.PerRequest, event.ConsumerID())

	switch selection.Status {
	case content.PhotosOK:
		messages := make([]chat.OutboundMessage, 0, len(selection.Photos))
		for _, photo := range selection.Photos {
			messages = append(messages, chat.ImageMessage(photo.URL))
		}
		return m.reply(ctx, event, messages...)
	case content.PhotosEmpty:
		return m.reply(ctx, event, chat.TextMessage(emptyText))
	default:
		return m.reply(ctx, event, chat.TextMessage(unavailableText))
	}
}

func (m *Module) handleReload(ctx context.Context, event *chat.Event) error {
	if !m.isStaff(event) {
		m.logger.Warn("maintenance keyword refused", "keyword", KeywordClearPhotoCache, "consumer", event.ConsumerID())
		return m.reply(ctx, event, chat.TextMessage(staffOnlyText))
	}

	result, err := m.photos.ReloadCatalog(ctx)
	if err != nil {
		m.logger.Error("photo catalog reload failed", "consumer", event.ConsumerID(), "error", err)
		return m.reply(ctx, event, chat.TextMessage(reloadFailed))
	}
	m.logger.Info("photo catalog reloaded", "consumer", event.ConsumerID(), "photos", result.Count)

	return m.reply(ctx, event, chat.TextMessage(fmt.Sprintf(reloadedFormat, result.Count)))
}

func (m *Module) isStaff(event *chat.Event) bool {
	if len(m.cfg.StaffIDs) == 0 {
		return true
	}

	return slices.Contains(m.cfg.StaffIDs, event.Actor.ID)
}

func (m *Module) reply(ctx context.Context, event *chat.Event, messages ...chat.OutboundMessage) error {
	if m.dispatcher == nil {
		return fmt.Errorf("photos reply: reply dispatcher not configured")
	}
	target, err := chat.ReplyTargetFromEvent(event)
	if err != nil {
		return fmt.Errorf("photos derive reply target: %w", err)
	}
	if err := m.dispatcher.Reply(ctx, chat.ReplyRequest{Target: target, Messages: messages}); err != nil {
		return fmt.Errorf("photos reply: %w", err)
	}

	return nil
}

var (
	_ chat.Module          = (*Module)(nil)
	_ chat.ModuleRegistrar = (*Module)(nil)
)
