package chat

import (
	"fmt"
	"time"
)

// EventKind identifies a neutral domain event type.
type EventKind string

const (
	// EventKindMessageReceived is emitted for inbound messages that matched no keyword.
	EventKindMessageReceived EventKind = "message.received"
	// EventKindPostbackReceived is emitted for menu button postbacks that matched no keyword.
	EventKindPostbackReceived EventKind = "postback.received"
	// EventKindFollowed is emitted when a user adds the bot as a friend.
	EventKindFollowed EventKind = "conversation.followed"
	// EventKindKeywordReceived is derived by the kernel when message text or
	// postback data matches a registered keyword.
	EventKindKeywordReceived EventKind = "keyword.received"
)

// Platform identifies an external chat platform source.
type Platform string

const (
	// PlatformLINE is the LINE Messaging API.
	PlatformLINE Platform = "line"
)

// ConversationType identifies conversation scope.
type ConversationType string

const (
	// ConversationTypePrivate is a one-to-one conversation with a user.
	ConversationTypePrivate ConversationType = "private"
	// ConversationTypeGroup is a group conversation.
	ConversationTypeGroup ConversationType = "group"
	// ConversationTypeRoom is a multi-person room without a group profile.
	ConversationTypeRoom ConversationType = "room"
)

// MessageType identifies the payload shape of an inbound message.
type MessageType string

const (
	// MessageTypeText is a plain text message.
	MessageTypeText MessageType = "text"
	// MessageTypeImage is an image message.
	MessageTypeImage MessageType = "image"
	// MessageTypeSticker is a sticker message.
	MessageTypeSticker MessageType = "sticker"
	// MessageTypeOther covers every message type the bot does not interpret.
	MessageTypeOther MessageType = "other"
)

// EventSource identifies which configured driver instance produced an event.
type EventSource struct {
	// Platform identifies the upstream platform.
	Platform Platform
	// ID is the configured driver instance name.
	ID string
}

// Event is the neutral protocol envelope that all drivers publish and modules consume.
type Event struct {
	// ID is a stable identifier for this event instance.
	ID string
	// Kind selects which payload branch is expected.
	Kind EventKind
	// OccurredAt is the source-platform timestamp for the event.
	OccurredAt time.Time
	// Platform identifies the upstream platform that produced the event.
	Platform Platform
	// Source identifies the driver instance that produced the event.
	Source EventSource
	// Conversation identifies where the event happened.
	Conversation Conversation
	// Actor identifies who initiated the event when available.
	Actor Actor
	// ReplyToken is the platform token that authorizes one reply to this event.
	ReplyToken string
	// Message carries message content for message events.
	Message *Message
	// Postback carries menu button data for postback events.
	Postback *Postback
	// Keyword carries the matched keyword for derived keyword events.
	Keyword *KeywordInvocation
	// Metadata stores optional driver-provided key/value context.
	Metadata map[string]string
}

// Conversation identifies the neutral destination where an event occurred.
type Conversation struct {
	// ID is the stable conversation identifier on the source platform.
	ID string
	// Type describes the conversation scope.
	Type ConversationType
}

// Actor identifies the user that initiated an event.
type Actor struct {
	// ID is the stable user identifier on the source platform.
	ID string
	// DisplayName is the human-readable actor name when known.
	DisplayName string
}

// Message holds one inbound message.
type Message struct {
	// ID is the message identifier on the source platform.
	ID string
	// Type is the message payload type.
	Type MessageType
	// Text is the message text body for text messages.
	Text string
}

// Postback holds data attached to a pressed menu button.
type Postback struct {
	// Data is the opaque action payload.
	Data string
}

// ConsumerID returns the identity used for per-user bookkeeping.
//
// It prefers the actor and falls back to the conversation so group events
// without a user id still map to a stable identity.
func (e *Event) ConsumerID() string {
	if e == nil {
		return ""
	}
	if e.Actor.ID != "" {
		return e.Actor.ID
	}

	return e.Conversation.ID
}

// Validate checks event envelope and payload coherence.
func (e *Event) Validate() error {
	if e == nil {
		return fmt.Errorf("%w: nil event", ErrInvalidEvent)
	}
	if e.ID == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidEvent)
	}
	if e.Kind == "" {
		return fmt.Errorf("%w: missing kind", ErrInvalidEvent)
	}
	if e.OccurredAt.IsZero() {
		return fmt.Errorf("%w: missing occurred_at", ErrInvalidEvent)
	}
	if e.Conversation.ID == "" {
		return fmt.Errorf("%w: missing conversation id", ErrInvalidEvent)
	}

	return validatePayloadByKind(e)
}

// validatePayloadByKind enforces payload branch requirements for each event kind.
func validatePayloadByKind(e *Event) error {
	switch e.Kind {
	case EventKindMessageReceived:
		if e.Message == nil {
			return fmt.Errorf("%w: message.received requires message payload", ErrInvalidEvent)
		}
	case EventKindPostbackReceived:
		if e.Postback == nil {
			return fmt.Errorf("%w: postback.received requires postback payload", ErrInvalidEvent)
		}
	case EventKindKeywordReceived:
		if e.Keyword == nil {
			return fmt.Errorf("%w: keyword.received requires keyword payload", ErrInvalidEvent)
		}
	case EventKindFollowed:
	default:
		return fmt.Errorf("%w: unsupported kind %q", ErrInvalidEvent, e.Kind)
	}

	return nil
}
