package chat

import (
	"context"
	"fmt"
)

// ServiceReplyDispatcher is the canonical service registry key for outbound replies.
const ServiceReplyDispatcher = "chat.reply_dispatcher"

// MaxRepliesPerRequest bounds how many messages one reply may carry.
const MaxRepliesPerRequest = 5

// ReplyDispatcher answers inbound events through the platform that produced them.
//
// Implementations should enforce platform-specific constraints while preserving
// these protocol-level request semantics.
type ReplyDispatcher interface {
	// Reply sends one batch of messages bound to an inbound reply token.
	Reply(ctx context.Context, request ReplyRequest) error
}

// SinkRef identifies one outbound sink by platform and driver instance.
type SinkRef struct {
	Platform Platform
	ID       string
}

// ReplyTarget identifies where a reply should be delivered.
type ReplyTarget struct {
	// Conversation identifies the destination conversation.
	Conversation Conversation
	// ReplyToken authorizes the reply on platforms that require one.
	ReplyToken string
	// Sink optionally pins the reply to one driver instance.
	Sink *SinkRef
}

// Validate checks target identity fields used for outbound routing.
func (t ReplyTarget) Validate() error {
	if t.Conversation.ID == "" {
		return fmt.Errorf("%w: missing conversation id", ErrInvalidOutboundRequest)
	}
	if t.ReplyToken == "" {
		return fmt.Errorf("%w: missing reply token", ErrInvalidOutboundRequest)
	}
	if t.Sink != nil && t.Sink.Platform == "" && t.Sink.ID == "" {
		return fmt.Errorf("%w: missing sink identity", ErrInvalidOutboundRequest)
	}

	return nil
}

// ReplyTargetFromEvent derives a reply target from an inbound event.
func ReplyTargetFromEvent(event *Event) (ReplyTarget, error) {
	if event == nil {
		return ReplyTarget{}, fmt.Errorf("%w: nil event", ErrInvalidOutboundRequest)
	}
	platform := event.Source.Platform
	if platform == "" {
		platform = event.Platform
	}
	target := ReplyTarget{
		Conversation: event.Conversation,
		ReplyToken:   event.ReplyToken,
	}
	if platform != "" || event.Source.ID != "" {
		target.Sink = &SinkRef{Platform: platform, ID: event.Source.ID}
	}
	if err := target.Validate(); err != nil {
		return ReplyTarget{}, fmt.Errorf("derive target from event %s: %w", event.Kind, err)
	}

	return target, nil
}

// OutboundType identifies the shape of one outbound message.
type OutboundType string

const (
	// OutboundTypeText is a plain text message.
	OutboundTypeText OutboundType = "text"
	// OutboundTypeImage is an image referenced by URL.
	OutboundTypeImage OutboundType = "image"
	// OutboundTypeButtons is a titled button menu whose buttons send postbacks.
	OutboundTypeButtons OutboundType = "buttons"
)

// OutboundMessage is one neutral outbound message.
type OutboundMessage struct {
	Type OutboundType
	// Text is the body for text messages.
	Text string
	// ImageURL is the full-size image for image messages.
	ImageURL string
	// PreviewURL is the thumbnail for image messages; ImageURL is used when empty.
	PreviewURL string
	// Buttons is the menu for buttons messages.
	Buttons *ButtonsTemplate
}

// ButtonsTemplate is a titled menu of postback buttons.
type ButtonsTemplate struct {
	AltText string
	Title   string
	Text    string
	Actions []PostbackAction
}

// PostbackAction is one menu button.
type PostbackAction struct {
	Label       string
	Data        string
	DisplayText string
}

// TextMessage builds a text outbound message.
func TextMessage(text string) OutboundMessage {
	return OutboundMessage{Type: OutboundTypeText, Text: text}
}

// ImageMessage builds an image outbound message that previews with the same URL.
func ImageMessage(url string) OutboundMessage {
	return OutboundMessage{Type: OutboundTypeImage, ImageURL: url, PreviewURL: url}
}

// Validate checks one outbound message payload.
func (m OutboundMessage) Validate() error {
	switch m.Type {
	case OutboundTypeText:
		if m.Text == "" {
			return fmt.Errorf("%w: missing message text", ErrInvalidOutboundRequest)
		}
	case OutboundTypeImage:
		if m.ImageURL == "" {
			return fmt.Errorf("%w: missing image url", ErrInvalidOutboundRequest)
		}
	case OutboundTypeButtons:
		if m.Buttons == nil || len(m.Buttons.Actions) == 0 {
			return fmt.Errorf("%w: buttons message requires actions", ErrInvalidOutboundRequest)
		}
		if m.Buttons.AltText == "" {
			return fmt.Errorf("%w: buttons message requires alt text", ErrInvalidOutboundRequest)
		}
	default:
		return fmt.Errorf("%w: unsupported message type %q", ErrInvalidOutboundRequest, m.Type)
	}

	return nil
}

// ReplyRequest describes one reply batch.
type ReplyRequest struct {
	// Target identifies where the reply should be sent.
	Target ReplyTarget
	// Messages are delivered in order.
	Messages []OutboundMessage
}

// Validate checks the request envelope before dispatch.
func (r ReplyRequest) Validate() error {
	if err := r.Target.Validate(); err != nil {
		return fmt.Errorf("validate reply target: %w", err)
	}
	if len(r.Messages) == 0 {
		return fmt.Errorf("%w: missing messages", ErrInvalidOutboundRequest)
	}
	if len(r.Messages) > MaxRepliesPerRequest {
		return fmt.Errorf(
			"%w: %d messages exceeds limit %d",
			ErrInvalidOutboundRequest,
			len(r.Messages),
			MaxRepliesPerRequest,
		)
	}
	for index, message := range r.Messages {
		if err := message.Validate(); err != nil {
			return fmt.Errorf("validate reply message[%d]: %w", index, err)
		}
	}

	return nil
}
