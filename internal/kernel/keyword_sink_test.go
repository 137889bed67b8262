package kernel

import (
	"context"
	"sync"
	"testing"

	"wedding-bot/pkg/chat"
)

type captureSink struct {
	mu     sync.Mutex
	events []*chat.Event
}

func (s *captureSink) Publish(_ context.Context, event *chat.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)

	return nil
}

func TestKeywordDerivingSinkPublish(t *testing.T) {
	t.Parallel()

	keywords := map[chat.KeywordTrigger]chat.KeywordSpec{
		chat.TextTrigger("座位查詢"):            {Name: "seat_lookup"},
		chat.TextTrigger("Seat Lookup"):     {Name: "seat_lookup"},
		chat.PostbackTrigger("seat_lookup"): {Name: "seat_lookup"},
		chat.TextTrigger("cleancache"):      {Name: "cleancache"},
	}
	postback := newTestEvent("p1", chat.EventKindPostbackReceived)
	postback.Postback.Data = "seat_lookup"
	textPostback := newTestEvent("p2", chat.EventKindPostbackReceived)
	textPostback.Postback.Data = "座位查詢"
	image := newTestEvent("i1", chat.EventKindMessageReceived)
	image.Message.Type = chat.MessageTypeImage
	image.Message.Text = "cleancache"

	tests := []struct {
		name        string
		event       *chat.Event
		wantKind    chat.EventKind
		wantKeyword string
	}{
		{name: "exact text becomes keyword", event: newTextEvent("t1", "座位查詢"), wantKind: chat.EventKindKeywordReceived, wantKeyword: "seat_lookup"},
		{name: "padded text is trimmed before matching", event: newTextEvent("t2", "  Seat Lookup\n"), wantKind: chat.EventKindKeywordReceived, wantKeyword: "seat_lookup"},
		{name: "postback data becomes keyword", event: postback, wantKind: chat.EventKindKeywordReceived, wantKeyword: "seat_lookup"},
		{name: "postback name typed as text passes through", event: newTextEvent("t5", "seat_lookup"), wantKind: chat.EventKindMessageReceived},
		{name: "text trigger sent as postback passes through", event: textPostback, wantKind: chat.EventKindPostbackReceived},
		{name: "case differs passes through", event: newTextEvent("t3", "CleanCache"), wantKind: chat.EventKindMessageReceived},
		{name: "free text passes through", event: newTextEvent("t4", "王小明"), wantKind: chat.EventKindMessageReceived},
		{name: "non text message passes through", event: image, wantKind: chat.EventKindMessageReceived},
		{name: "follow passes through", event: newTestEvent("f1", chat.EventKindFollowed), wantKind: chat.EventKindFollowed},
	}

	for _, testCase := range tests {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			base := &captureSink{}
			sink := &keywordDerivingSink{
				base: base,
				lookupKeyword: func(trigger chat.KeywordTrigger) (chat.KeywordSpec, bool) {
					spec, ok := keywords[trigger]
					return spec, ok
				},
			}
			if err := sink.Publish(context.Background(), testCase.event); err != nil {
				t.Fatalf("publish failed: %v", err)
			}

			if len(base.events) != 1 {
				t.Fatalf("published %d events, want exactly 1", len(base.events))
			}
			published := base.events[0]
			if published.Kind != testCase.wantKind {
				t.Fatalf("kind = %s, want %s", published.Kind, testCase.wantKind)
			}
			if testCase.wantKeyword == "" {
				if published != testCase.event {
					t.Fatal("unmatched event must be forwarded unchanged")
				}
				return
			}
			if published.Keyword == nil || published.Keyword.Name != testCase.wantKeyword {
				t.Fatalf("keyword = %+v, want %s", published.Keyword, testCase.wantKeyword)
			}
			if published.Keyword.SourceEventKind != testCase.event.Kind {
				t.Fatalf("source kind = %s, want %s", published.Keyword.SourceEventKind, testCase.event.Kind)
			}
			if published.ReplyToken != testCase.event.ReplyToken {
				t.Fatalf("reply token = %q, want %q", published.ReplyToken, testCase.event.ReplyToken)
			}
			if err := published.Validate(); err != nil {
				t.Fatalf("derived event invalid: %v", err)
			}
		})
	}
}

func TestKernelRoutesKeywordsToOwningModule(t *testing.T) {
	t.Parallel()

	kernelRuntime := New()
	t.Cleanup(func() {
		_ = kernelRuntime.EventBus().Close(context.Background())
	})

	keywordEvents := make(chan *chat.Event, 1)
	textEvents := make(chan *chat.Event, 1)
	module := &stubModule{
		name: "menu",
		spec: chat.ModuleSpec{
			Keywords: []chat.KeywordSpec{{Name: "menu", Texts: []string{"menu", "選單"}, Postbacks: []string{"open_menu"}}},
			Handlers: []chat.ModuleHandler{
				{
					Capability: chat.Capability{
						Name: "menu-keyword",
						Interest: chat.InterestSet{
							Kinds:        []chat.EventKind{chat.EventKindKeywordReceived},
							KeywordNames: []string{"menu"},
						},
					},
					Handler: func(_ context.Context, event *chat.Event) error {
						keywordEvents <- event
						return nil
					},
				},
				{
					Capability: chat.Capability{
						Name: "free-text",
						Interest: chat.InterestSet{
							Kinds:        []chat.EventKind{chat.EventKindMessageReceived},
							MessageTypes: []chat.MessageType{chat.MessageTypeText},
						},
					},
					Handler: func(_ context.Context, event *chat.Event) error {
						textEvents <- event
						return nil
					},
				},
			},
		},
	}
	if err := kernelRuntime.RegisterModule(context.Background(), module); err != nil {
		t.Fatalf("register module failed: %v", err)
	}

	sink := kernelRuntime.newDriverEventSink()
	if err := sink.Publish(context.Background(), newTextEvent("t1", "選單")); err != nil {
		t.Fatalf("publish keyword text failed: %v", err)
	}
	if err := sink.Publish(context.Background(), newTextEvent("t2", "Alice")); err != nil {
		t.Fatalf("publish free text failed: %v", err)
	}

	keywordEvent := <-keywordEvents
	if keywordEvent.Keyword.Matched != "選單" {
		t.Fatalf("matched = %q, want 選單", keywordEvent.Keyword.Matched)
	}
	textEvent := <-textEvents
	if textEvent.Message.Text != "Alice" {
		t.Fatalf("text = %q, want Alice", textEvent.Message.Text)
	}
	select {
	case extra := <-textEvents:
		t.Fatalf("keyword text must not reach the free text handler: %+v", extra)
	default:
	}
}
