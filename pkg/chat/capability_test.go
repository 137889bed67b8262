package chat

import "testing"

func TestInterestSetMatches(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		interest InterestSet
		event    *Event
		want     bool
	}{
		{
			name:     "kind filter matches",
			interest: InterestSet{Kinds: []EventKind{EventKindFollowed}},
			event:    &Event{Kind: EventKindFollowed},
			want:     true,
		},
		{
			name:     "kind filter rejects other kind",
			interest: InterestSet{Kinds: []EventKind{EventKindFollowed}},
			event:    &Event{Kind: EventKindMessageReceived, Message: &Message{Type: MessageTypeText}},
			want:     false,
		},
		{
			name:     "nil event never matches",
			interest: InterestSet{},
			event:    nil,
			want:     false,
		},
		{
			name: "keyword filter matches canonical name",
			interest: InterestSet{
				Kinds:        []EventKind{EventKindKeywordReceived},
				KeywordNames: []string{"menu"},
			},
			event: &Event{Kind: EventKindKeywordReceived, Keyword: &KeywordInvocation{Name: "menu"}},
			want:  true,
		},
		{
			name:     "keyword filter rejects missing payload",
			interest: InterestSet{KeywordNames: []string{"menu"}},
			event:    &Event{Kind: EventKindKeywordReceived},
			want:     false,
		},
		{
			name:     "message type filter rejects sticker",
			interest: InterestSet{MessageTypes: []MessageType{MessageTypeText}},
			event:    &Event{Kind: EventKindMessageReceived, Message: &Message{Type: MessageTypeSticker}},
			want:     false,
		},
		{
			name:     "source filter matches platform wildcard",
			interest: InterestSet{Sources: []EventSource{{Platform: PlatformLINE}}},
			event:    &Event{Kind: EventKindFollowed, Source: EventSource{Platform: PlatformLINE, ID: "line-main"}},
			want:     true,
		},
		{
			name:     "source filter rejects mismatch",
			interest: InterestSet{Sources: []EventSource{{Platform: PlatformLINE, ID: "line-main"}}},
			event:    &Event{Kind: EventKindFollowed, Source: EventSource{Platform: PlatformLINE, ID: "line-alt"}},
			want:     false,
		},
	}

	for _, testCase := range tests {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			if got := testCase.interest.Matches(testCase.event); got != testCase.want {
				t.Fatalf("Matches() = %v, want %v", got, testCase.want)
			}
		})
	}
}

func TestInterestSetAllows(t *testing.T) {
	t.Parallel()

	capability := InterestSet{
		Kinds:        []EventKind{EventKindKeywordReceived},
		KeywordNames: []string{"menu", "welcome"},
	}

	tests := []struct {
		name   string
		filter InterestSet
		want   bool
	}{
		{
			name:   "narrower filter allowed",
			filter: InterestSet{Kinds: []EventKind{EventKindKeywordReceived}, KeywordNames: []string{"menu"}},
			want:   true,
		},
		{
			name:   "undeclared keyword rejected",
			filter: InterestSet{Kinds: []EventKind{EventKindKeywordReceived}, KeywordNames: []string{"photo"}},
			want:   false,
		},
		{
			name:   "unrestricted kinds rejected",
			filter: InterestSet{KeywordNames: []string{"menu"}},
			want:   false,
		},
	}

	for _, testCase := range tests {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			if got := capability.Allows(testCase.filter); got != testCase.want {
				t.Fatalf("Allows() = %v, want %v", got, testCase.want)
			}
		})
	}
}
