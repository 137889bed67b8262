package chat

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// KeywordSpec declares exact-match triggers owned by a module.
//
// Inbound text messages are trimmed and compared against Texts; postback data
// is trimmed and compared against Postbacks. Name is never matched on its
// own. Matching is case-sensitive.
type KeywordSpec struct {
	// Name is the canonical keyword delivered to the owning module.
	Name string
	// Texts are text message inputs that resolve to Name.
	Texts []string
	// Postbacks are postback data values that resolve to Name.
	Postbacks []string
	// Description is a short human-readable summary.
	Description string
}

// KeywordTrigger is one input that resolves to a keyword. Kind is the event
// kind the input must arrive on.
type KeywordTrigger struct {
	Kind  EventKind
	Value string
}

// TextTrigger returns the trigger for a text message input.
func TextTrigger(value string) KeywordTrigger {
	return KeywordTrigger{Kind: EventKindMessageReceived, Value: value}
}

// PostbackTrigger returns the trigger for postback data.
func PostbackTrigger(value string) KeywordTrigger {
	return KeywordTrigger{Kind: EventKindPostbackReceived, Value: value}
}

func (t KeywordTrigger) String() string {
	if t.Kind == EventKindPostbackReceived {
		return "postback " + strconv.Quote(t.Value)
	}

	return "text " + strconv.Quote(t.Value)
}

// Validate checks that the keyword has at least one usable trigger.
func (s KeywordSpec) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return fmt.Errorf("validate keyword: empty name")
	}
	if strings.TrimSpace(s.Name) != s.Name {
		return fmt.Errorf("validate keyword %q: surrounding whitespace", s.Name)
	}
	if len(s.Texts)+len(s.Postbacks) == 0 {
		return fmt.Errorf("validate keyword %s: no triggers", s.Name)
	}
	for _, trigger := range s.Triggers() {
		if strings.TrimSpace(trigger.Value) == "" {
			return fmt.Errorf("validate keyword %s: empty %s trigger", s.Name, trigger.Kind)
		}
		if strings.TrimSpace(trigger.Value) != trigger.Value {
			return fmt.Errorf("validate keyword %s %s: surrounding whitespace", s.Name, trigger)
		}
	}

	return nil
}

// Triggers returns the text triggers followed by the postback triggers.
func (s KeywordSpec) Triggers() []KeywordTrigger {
	triggers := make([]KeywordTrigger, 0, len(s.Texts)+len(s.Postbacks))
	for _, text := range s.Texts {
		triggers = append(triggers, TextTrigger(text))
	}
	for _, data := range s.Postbacks {
		triggers = append(triggers, PostbackTrigger(data))
	}

	return triggers
}

// KeywordInvocation describes one matched keyword.
type KeywordInvocation struct {
	// Name is the canonical keyword name.
	Name string
	// Matched is the trimmed input that matched.
	Matched string
	// SourceEventKind is the kind of the inbound event the keyword came from.
	SourceEventKind EventKind
	// RawInput is the original text or postback data before trimming.
	RawInput string
}

// KeywordInput extracts the text that keyword matching applies to.
//
// Only text messages and postbacks are keyword candidates.
func KeywordInput(event *Event) (string, bool) {
	if event == nil {
		return "", false
	}

	switch event.Kind {
	case EventKindMessageReceived:
		if event.Message == nil || event.Message.Type != MessageTypeText {
			return "", false
		}
		return event.Message.Text, true
	case EventKindPostbackReceived:
		if event.Postback == nil {
			return "", false
		}
		return event.Postback.Data, true
	default:
		return "", false
	}
}

// ServiceKeywordCatalog is the canonical service registry key for keyword discovery.
const ServiceKeywordCatalog = "chat.keyword_catalog"

// RegisteredKeyword is one keyword registration and its owning module.
type RegisteredKeyword struct {
	ModuleName string
	Keyword    KeywordSpec
}

// KeywordCatalog lists every keyword registered with the kernel.
type KeywordCatalog interface {
	ListKeywords(ctx context.Context) ([]RegisteredKeyword, error)
}
