package photos

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"wedding-bot/pkg/chat"
	"wedding-bot/pkg/content"
)

func TestModuleHandleKeyword(t *testing.T) {
	tests := []struct {
		name         string
		cfg          Config
		keyword      string
		actor        string
		selection    content.PhotoSelection
		reload       content.ReloadResult
		reloadErr    error
		wantCount    int
		wantConsumer string
		wantReloads  int
		wantTexts    []string
		wantImages   []string
	}{
		{
			name:    "photos sent as images",
			cfg:     Config{PerRequest: 2},
			keyword: KeywordWeddingPhoto,
			actor:   "U1",
			selection: content.PhotoSelection{Status: content.PhotosOK, Photos: []content.PhotoRecord{
				{ID: "a", URL: "https://cdn.example.com/a.jpg"},
				{ID: "b", URL: "https://cdn.example.com/b.jpg"},
			}},
			wantCount:    2,
			wantConsumer: "U1",
			wantImages:   []string{"https://cdn.example.com/a.jpg", "https://cdn.example.com/b.jpg"},
		},
		{
			name:         "per request clamped to reply limit",
			cfg:          Config{PerRequest: 40},
			keyword:      KeywordWeddingPhoto,
			actor:        "U1",
			selection:    content.PhotoSelection{Status: content.PhotosEmpty},
			wantCount:    content.MaxItemsPerResponse,
			wantConsumer: "U1",
			wantTexts:    []string{emptyText},
		},
		{
			name:         "catalog unavailable",
			keyword:      KeywordWeddingPhoto,
			actor:        "U1",
			selection:    content.PhotoSelection{Status: content.PhotosUnavailable},
			wantCount:    1,
			wantConsumer: "U1",
			wantTexts:    []string{unavailableText},
		},
		{
			name:        "reload reports count",
			keyword:     KeywordClearPhotoCache,
			actor:       "U1",
			reload:      content.ReloadResult{Count: 12},
			wantReloads: 1,
			wantTexts:   []string{"Successfully reloaded photo cache: 12 photos."},
		},
		{
			name:        "reload failure keeps old catalog",
			keyword:     KeywordClearPhotoCache,
			actor:       "U1",
			reloadErr:   content.ErrFetch,
			wantReloads: 1,
			wantTexts:   []string{reloadFailed},
		},
		{
			name:      "reload refused for guests",
			cfg:       Config{StaffIDs: []string{"STAFF"}},
			keyword:   KeywordClearPhotoCache,
			actor:     "U1",
			wantTexts: []string{staffOnlyText},
		},
	}

	for _, testCase := range tests {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			catalog := &photoCatalogStub{selection: testCase.selection, reload: testCase.reload, reloadErr: testCase.reloadErr}
			dispatcher := &captureDispatcher{}
			module := New(testCase.cfg)
			module.photos = catalog
			module.dispatcher = dispatcher

			event := newKeywordEvent(testCase.keyword)
			event.Actor.ID = testCase.actor
			if err := module.handleKeyword(context.Background(), event); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			calls := catalog.snapshot()
			if testCase.wantConsumer != "" {
				if len(calls.requests) != 1 {
					t.Fatalf("photo requests = %d, want 1", len(calls.requests))
				}
				if calls.requests[0].count != testCase.wantCount || calls.requests[0].consumer != testCase.wantConsumer {
					t.Fatalf("request = %+v", calls.requests[0])
				}
			}
			if calls.reloads != testCase.wantReloads {
				t.Fatalf("reloads = %d, want %d", calls.reloads, testCase.wantReloads)
			}

			requests := dispatcher.snapshot()
			if len(requests) != 1 {
				t.Fatalf("replies = %d, want 1", len(requests))
			}
			messages := requests[0].Messages
			if len(messages) != len(testCase.wantTexts)+len(testCase.wantImages) {
				t.Fatalf("messages = %+v", messages)
			}
			for index, want := range testCase.wantTexts {
				if messages[index].Type != chat.OutboundTypeText || messages[index].Text != want {
					t.Fatalf("message[%d] = %+v, want text %q", index, messages[index], want)
				}
			}
			for index, want := range testCase.wantImages {
				if messages[index].Type != chat.OutboundTypeImage || messages[index].ImageURL != want {
					t.Fatalf("message[%d] = %+v, want image %q", index, messages[index], want)
				}
			}
		})
	}
}

func TestModuleOnRegister(t *testing.T) {
	tests := []struct {
		name             string
		services         map[string]any
		wantErrSubstring string
	}{
		{
			name: "resolve dependencies succeeds",
			services: map[string]any{
				chat.ServiceReplyDispatcher: &captureDispatcher{},
				content.ServicePhotoCatalog: &photoCatalogStub{},
			},
		},
		{
			name:             "missing photo service fails",
			services:         map[string]any{chat.ServiceReplyDispatcher: &captureDispatcher{}},
			wantErrSubstring: "photos resolve photo service",
		},
		{
			name: "photo service of wrong type fails",
			services: map[string]any{
				chat.ServiceReplyDispatcher: &captureDispatcher{},
				content.ServicePhotoCatalog: "not a catalog",
			},
			wantErrSubstring: "unexpected type",
		},
	}

	for _, testCase := range tests {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			err := New(Config{}).OnRegister(context.Background(), moduleRuntimeStub{registry: serviceRegistryStub{values: testCase.services}})
			if testCase.wantErrSubstring == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), testCase.wantErrSubstring) {
				t.Fatalf("error = %v, want substring %q", err, testCase.wantErrSubstring)
			}
		})
	}
}

func TestModuleReplyErrorPropagates(t *testing.T) {
	t.Parallel()

	module := New(Config{})
	module.photos = &photoCatalogStub{selection: content.PhotoSelection{Status: content.PhotosEmpty}}
	module.dispatcher = &captureDispatcher{err: errors.New("reply token expired")}

	if err := module.handleKeyword(context.Background(), newKeywordEvent(KeywordWeddingPhoto)); err == nil {
		t.Fatal("expected reply error")
	}
}

func newKeywordEvent(name string) *chat.Event {
	return &chat.Event{
		ID:           "event-1",
		Kind:         chat.EventKindKeywordReceived,
		OccurredAt:   time.Unix(1, 0).UTC(),
		Platform:     chat.PlatformLINE,
		Source:       chat.EventSource{Platform: chat.PlatformLINE, ID: "line-main"},
		Conversation: chat.Conversation{ID: "U1", Type: chat.ConversationTypePrivate},
		Actor:        chat.Actor{ID: "U1"},
		ReplyToken:   "reply-1",
		Keyword: &chat.KeywordInvocation{
			Name:            name,
			Matched:         name,
			SourceEventKind: chat.EventKindPostbackReceived,
			RawInput:        name,
		},
	}
}

type photoRequest struct {
	count    int
	consumer string
}

type photoCalls struct {
	requests []photoRequest
	reloads  int
}

type photoCatalogStub struct {
	mu        sync.Mutex
	selection content.PhotoSelection
	reload    content.ReloadResult
	reloadErr error
	calls     photoCalls
}

func (s *photoCatalogStub) GetPhotos(_ context.Context, count int, consumerID string) content.PhotoSelection {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls.requests = append(s.calls.requests, photoRequest{count: count, consumer: consumerID})

	return s.selection
}

func (s *photoCatalogStub) ReloadCatalog(context.Context) (content.ReloadResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls.reloads++

	return s.reload, s.reloadErr
}

func (s *photoCatalogStub) snapshot() photoCalls {
	s.mu.Lock()
	defer s.mu.Unlock()

	return photoCalls{requests: append([]photoRequest(nil), s.calls.requests...), reloads: s.calls.reloads}
}

type captureDispatcher struct {
	mu       sync.Mutex
	err      error
	requests []chat.ReplyRequest
}

func (d *captureDispatcher) Reply(_ context.Context, request chat.ReplyRequest) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.requests = append(d.requests, request)

	return d.err
}

func (d *captureDispatcher) snapshot() []chat.ReplyRequest {
	d.mu.Lock()
	defer d.mu.Unlock()

	return append([]chat.ReplyRequest(nil), d.requests...)
}

type moduleRuntimeStub struct {
	registry chat.ServiceRegistry
}

func (s moduleRuntimeStub) Services() chat.ServiceRegistry {
	return s.registry
}

func (moduleRuntimeStub) Subscribe(
	context.Context,
	chat.InterestSet,
	chat.SubscriptionSpec,
	chat.EventHandler,
) (chat.Subscription, error) {
	return nil, nil
}

type serviceRegistryStub struct {
	values map[string]any
}

func (s serviceRegistryStub) Register(string, any) error {
	return nil
}

func (s serviceRegistryStub) Resolve(name string) (any, error) {
	value, ok := s.values[name]
	if !ok {
		return nil, chat.ErrServiceNotFound
	}

	return value, nil
}

func TestModuleSpecWeddingPhotoPostbackOnlyByName(t *testing.T) {
	t.Parallel()

	for _, keyword := range New(Config{}).Spec().Keywords {
		if err := keyword.Validate(); err != nil {
			t.Fatalf("keyword %s invalid: %v", keyword.Name, err)
		}
		if keyword.Name != KeywordWeddingPhoto {
			continue
		}
		for _, text := range keyword.Texts {
			if text == KeywordWeddingPhoto {
				t.Fatalf("%q must not be a text trigger", KeywordWeddingPhoto)
			}
		}
		if len(keyword.Postbacks) != 1 || keyword.Postbacks[0] != KeywordWeddingPhoto {
			t.Fatalf("postbacks = %v, want [%s]", keyword.Postbacks, KeywordWeddingPhoto)
		}
		return
	}
	t.Fatalf("keyword %s not declared", KeywordWeddingPhoto)
}
