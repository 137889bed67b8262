package line

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/line/line-bot-sdk-go/v8/linebot/webhook"

	"wedding-bot/pkg/chat"
)

// eventDecoder maps one parsed webhook event into a neutral event.
//
// A false result without error means the event is ignored.
type eventDecoder interface {
	Decode(event webhook.EventInterface, source chat.EventSource) (*chat.Event, bool, error)
}

// defaultDecoder decodes message, postback and follow events.
type defaultDecoder struct {
	now func() time.Time
}

func newDefaultDecoder() *defaultDecoder {
	return &defaultDecoder{now: time.Now}
}

// envelope holds the fields every decoded event type carries.
type envelope struct {
	eventType  string
	mode       webhook.EventMode
	timestamp  int64
	webhookID  string
	replyToken string
	source     webhook.SourceInterface
}

func (d *defaultDecoder) Decode(event webhook.EventInterface, source chat.EventSource) (*chat.Event, bool, error) {
	var (
		head     envelope
		kind     chat.EventKind
		message  *chat.Message
		postback *chat.Postback
	)

	switch typed := event.(type) {
	case webhook.MessageEvent:
		head = envelope{typed.GetType(), typed.Mode, typed.Timestamp, typed.WebhookEventId, typed.ReplyToken, typed.Source}
		kind = chat.EventKindMessageReceived
		if typed.Message == nil {
			return nil, false, fmt.Errorf("decode message event %s: missing message", typed.WebhookEventId)
		}
		message = decodeMessage(typed.Message)
	case webhook.PostbackEvent:
		head = envelope{typed.GetType(), typed.Mode, typed.Timestamp, typed.WebhookEventId, typed.ReplyToken, typed.Source}
		kind = chat.EventKindPostbackReceived
		if typed.Postback == nil {
			return nil, false, fmt.Errorf("decode postback event %s: missing postback", typed.WebhookEventId)
		}
		postback = &chat.Postback{Data: typed.Postback.Data}
	case webhook.FollowEvent:
		head = envelope{typed.GetType(), typed.Mode, typed.Timestamp, typed.WebhookEventId, typed.ReplyToken, typed.Source}
		kind = chat.EventKindFollowed
	default:
		return nil, false, nil
	}
	if head.mode == webhook.EventMode_STANDBY {
		return nil, false, nil
	}

	conversation, actor, err := decodeSource(head.source)
	if err != nil {
		return nil, false, fmt.Errorf("decode %s event: %w", head.eventType, err)
	}

	id := head.webhookID
	if id == "" {
		id = uuid.NewString()
	}
	occurredAt := d.now().UTC()
	if head.timestamp > 0 {
		occurredAt = time.UnixMilli(head.timestamp).UTC()
	}

	decoded := &chat.Event{
		ID:           id,
		Kind:         kind,
		OccurredAt:   occurredAt,
		Platform:     DriverPlatform,
		Source:       source,
		Conversation: conversation,
		Actor:        actor,
		ReplyToken:   head.replyToken,
		Message:      message,
		Postback:     postback,
	}
	if err := decoded.Validate(); err != nil {
		return nil, false, fmt.Errorf("decode %s event %s: %w", head.eventType, id, err)
	}

	return decoded, true, nil
}

func decodeSource(source webhook.SourceInterface) (chat.Conversation, chat.Actor, error) {
	switch typed := source.(type) {
	case webhook.UserSource:
		if typed.UserId == "" {
			return chat.Conversation{}, chat.Actor{}, fmt.Errorf("user source without userId")
		}
		return chat.Conversation{ID: typed.UserId, Type: chat.ConversationTypePrivate}, chat.Actor{ID: typed.UserId}, nil
	case webhook.GroupSource:
		if typed.GroupId == "" {
			return chat.Conversation{}, chat.Actor{}, fmt.Errorf("group source without groupId")
		}
		return chat.Conversation{ID: typed.GroupId, Type: chat.ConversationTypeGroup}, chat.Actor{ID: typed.UserId}, nil
	case webhook.RoomSource:
		if typed.RoomId == "" {
			return chat.Conversation{}, chat.Actor{}, fmt.Errorf("room source without roomId")
		}
		return chat.Conversation{ID: typed.RoomId, Type: chat.ConversationTypeRoom}, chat.Actor{ID: typed.UserId}, nil
	case nil:
		return chat.Conversation{}, chat.Actor{}, fmt.Errorf("missing source")
	default:
		return chat.Conversation{}, chat.Actor{}, fmt.Errorf("unsupported source type %q", source.GetType())
	}
}

func decodeMessage(content webhook.MessageContentInterface) *chat.Message {
	switch typed := content.(type) {
	case webhook.TextMessageContent:
		return &chat.Message{ID: typed.Id, Type: chat.MessageTypeText, Text: typed.Text}
	case webhook.ImageMessageContent:
		return &chat.Message{ID: typed.Id, Type: chat.MessageTypeImage}
	case webhook.StickerMessageContent:
		return &chat.Message{ID: typed.Id, Type: chat.MessageTypeSticker}
	default:
		return &chat.Message{Type: chat.MessageTypeOther}
	}
}
