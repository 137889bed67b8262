package menu

import (
	"context"
	"fmt"
	"log/slog"

	"wedding-bot/pkg/chat"
)

const (
	// KeywordMenu shows the service menu.
	KeywordMenu = "menu"
	// KeywordSeatLookup shows seat lookup instructions.
	KeywordSeatLookup = "seat_lookup"
	// KeywordWeddingPhoto is owned by the photos module; the menu links to it.
	KeywordWeddingPhoto = "wedding_photo"

	welcomeText = "歡迎使用婚禮服務！請點選下方選單選擇功能。\n" +
		"Welcome to the Wedding Service! Please use the menu below to select a function."
	seatLookupText = "請輸入您的姓名查詢座位。\nPlease enter your name to look up your seat."

	menuAltText = "婚禮服務選單 Wedding Service Menu"
	menuTitle   = "婚禮服務選單"
	menuText    = "請選擇服務 Please select a service"
)

// menuEntry is one button; it is shown only while its keyword is registered.
type menuEntry struct {
	keyword string
	label   string
}

var menuEntries = []menuEntry{
	{keyword: KeywordSeatLookup, label: "座位查詢 Seat Lookup"},
	{keyword: KeywordWeddingPhoto, label: "婚紗照 Wedding Photo"},
}

// Module greets new friends and answers menu and instruction keywords.
type Module struct {
	dispatcher chat.ReplyDispatcher
	keywords   chat.KeywordCatalog
	logger     *slog.Logger
}

// New creates a menu module.
func New() *Module {
	return &Module{logger: slog.Default()}
}

// Name returns the stable module identifier.
func (m *Module) Name() string {
	return "menu"
}

// Spec declares the follow, keyword and non-text message handlers.
func (m *Module) Spec() chat.ModuleSpec {
	services := []string{chat.ServiceReplyDispatcher, chat.ServiceKeywordCatalog}

	return chat.ModuleSpec{
		Handlers: []chat.ModuleHandler{
			{
				Capability: chat.Capability{
					Name:        "menu-keyword-handler",
					Description: "renders the service menu and seat lookup instructions",
					Interest: chat.InterestSet{
						Kinds:        []chat.EventKind{chat.EventKindKeywordReceived},
						KeywordNames: []string{KeywordMenu, KeywordSeatLookup},
					},
					RequiredServices: services,
				},
				Subscription: chat.NewDefaultSubscriptionSpec("menu-keywords"),
				Handler:      m.handleKeyword,
			},
			{
				Capability: chat.Capability{
					Name:        "menu-welcome-handler",
					Description: "welcomes users who add the bot",
					Interest: chat.InterestSet{
						Kinds: []chat.EventKind{chat.EventKindFollowed},
					},
					RequiredServices: []string{chat.ServiceReplyDispatcher},
				},
				Subscription: chat.NewDefaultSubscriptionSpec("menu-follows"),
				Handler:      m.handleFollow,
			},
			{
				Capability: chat.Capability{
					Name:        "menu-non-text-handler",
					Description: "answers stickers and images with the service menu",
					Interest: chat.InterestSet{
						Kinds: []chat.EventKind{chat.EventKindMessageReceived},
						MessageTypes: []chat.MessageType{
							chat.MessageTypeImage,
							chat.MessageTypeSticker,
							chat.MessageTypeOther,
						},
					},
					RequiredServices: services,
				},
				Subscription: chat.NewDefaultSubscriptionSpec("menu-non-text"),
				Handler:      m.handleNonText,
			},
		},
		Keywords: []chat.KeywordSpec{
			{Name: KeywordMenu, Texts: []string{"menu", "選單"}, Description: "show the service menu"},
			{
				Name:        KeywordSeatLookup,
				Texts:       []string{"座位查詢", "Seat Lookup"},
				Postbacks:   []string{KeywordSeatLookup},
				Description: "explain how to look up a seat",
			},
		},
	}
}

// OnRegister resolves dependencies required by this module.
func (m *Module) OnRegister(_ context.Context, runtime chat.ModuleRuntime) error {
	logger, err := chat.ResolveLogger(runtime.Services(), m.logger)
	if err != nil {
		return fmt.Errorf("menu resolve logger: %w", err)
	}
	m.logger = logger

	dispatcher, err := chat.ResolveAs[chat.ReplyDispatcher](runtime.Services(), chat.ServiceReplyDispatcher)
	if err != nil {
		return fmt.Errorf("menu resolve reply dispatcher: %w", err)
	}
	keywords, err := chat.ResolveAs[chat.KeywordCatalog](runtime.Services(), chat.ServiceKeywordCatalog)
	if err != nil {
		return fmt.Errorf("menu resolve keyword catalog: %w", err)
	}

	m.dispatcher = dispatcher
	m.keywords = keywords

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

	switch event.Keyword.Name {
	case KeywordMenu:
		return m.replyMenu(ctx, event)
	case KeywordSeatLookup:
		return m.reply(ctx, event, chat.TextMessage(seatLookupText))
	default:
		return nil
	}
}

func (m *Module) handleFollow(ctx context.Context, event *chat.Event) error {
	if event == nil || event.Kind != chat.EventKindFollowed {
		return nil
	}

	return m.reply(ctx, event, chat.TextMessage(welcomeText))
}

func (m *Module) handleNonText(ctx context.Context, event *chat.Event) error {
	if event == nil || event.Kind != chat.EventKindMessageReceived || event.Message == nil {
		return nil
	}
	if event.Message.Type == chat.MessageTypeText {
		return nil
	}

	return m.replyMenu(ctx, event)
}

func (m *Module) replyMenu(ctx context.Context, event *chat.Event) error {
	if m.keywords == nil {
		return fmt.Errorf("menu render: keyword catalog not configured")
	}
	registered, err := m.keywords.ListKeywords(ctx)
	if err != nil {
		return fmt.Errorf("menu list keywords: %w", err)
	}

	message, ok := renderMenu(registered)
	if !ok {
		m.logger.Warn("menu has no registered entries", "event_id", event.ID)
		message = chat.TextMessage(seatLookupText)
	}

	return m.reply(ctx, event, message)
}

func (m *Module) reply(ctx context.Context, event *chat.Event, messages ...chat.OutboundMessage) error {
	if m.dispatcher == nil {
		return fmt.Errorf("menu reply: reply dispatcher not configured")
	}
	target, err := chat.ReplyTargetFromEvent(event)
	if err != nil {
		return fmt.Errorf("menu derive reply target: %w", err)
	}
	if err := m.dispatcher.Reply(ctx, chat.ReplyRequest{Target: target, Messages: messages}); err != nil {
		return fmt.Errorf("menu reply: %w", err)
	}

	return nil
}

// renderMenu builds the buttons template from the entries whose keyword is registered.
func renderMenu(registered []chat.RegisteredKeyword) (chat.OutboundMessage, bool) {
	available := make(map[string]struct{}, len(registered))
	for _, keyword := range registered {
		available[keyword.Keyword.Name] = struct{}{}
	}

	actions := make([]chat.PostbackAction, 0, len(menuEntries))
	for _, entry := range menuEntries {
		if _, ok := available[entry.keyword]; !ok {
			continue
		}
		actions = append(actions, chat.PostbackAction{Label: entry.label, Data: entry.keyword})
	}
	if len(actions) == 0 {
		return chat.OutboundMessage{}, false
	}

	return chat.OutboundMessage{
		Type: chat.OutboundTypeButtons,
		Buttons: &chat.ButtonsTemplate{
			AltText: menuAltText,
			Title:   menuTitle,
			Text:    menuText,
			Actions: actions,
		},
	}, true
}

var (
	_ chat.Module          = (*Module)(nil)
	_ chat.ModuleRegistrar = (*Module)(nil)
)
