package chat

import (
	"errors"
	"testing"
)

func TestReplyTargetFromEvent(t *testing.T) {
	t.Parallel()

	event := &Event{
		Kind:         EventKindFollowed,
		Source:       EventSource{Platform: PlatformLINE, ID: "line-main"},
		Conversation: Conversation{ID: "U1", Type: ConversationTypePrivate},
		ReplyToken:   "token-1",
	}
	target, err := ReplyTargetFromEvent(event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if target.Sink == nil || target.Sink.ID != "line-main" {
		t.Fatalf("sink = %+v, want line-main", target.Sink)
	}
	if target.ReplyToken != "token-1" {
		t.Fatalf("reply token = %q, want token-1", target.ReplyToken)
	}

	event.ReplyToken = ""
	if _, err := ReplyTargetFromEvent(event); !errors.Is(err, ErrInvalidOutboundRequest) {
		t.Fatalf("error = %v, want ErrInvalidOutboundRequest", err)
	}
}

func TestReplyRequestValidate(t *testing.T) {
	t.Parallel()

	target := ReplyTarget{Conversation: Conversation{ID: "U1"}, ReplyToken: "token-1"}
	tooMany := make([]OutboundMessage, MaxRepliesPerRequest+1)
	for index := range tooMany {
		tooMany[index] = TextMessage("hi")
	}

	tests := []struct {
		name    string
		request ReplyRequest
		wantErr bool
	}{
		{
			name:    "text and image",
			request: ReplyRequest{Target: target, Messages: []OutboundMessage{TextMessage("hi"), ImageMessage("https://x/y.png")}},
		},
		{
			name:    "empty batch",
			request: ReplyRequest{Target: target},
			wantErr: true,
		},
		{
			name:    "batch over limit",
			request: ReplyRequest{Target: target, Messages: tooMany},
			wantErr: true,
		},
		{
			name:    "empty text",
			request: ReplyRequest{Target: target, Messages: []OutboundMessage{TextMessage("")}},
			wantErr: true,
		},
		{
			name: "buttons without actions",
			request: ReplyRequest{Target: target, Messages: []OutboundMessage{{
				Type:    OutboundTypeButtons,
				Buttons: &ButtonsTemplate{AltText: "menu"},
			}}},
			wantErr: true,
		},
	}

	for _, testCase := range tests {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			err := testCase.request.Validate()
			if testCase.wantErr && err == nil {
				t.Fatal("expected error")
			}
			if !testCase.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}
