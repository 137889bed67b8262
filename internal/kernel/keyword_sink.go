package kernel

import (
	"context"
	"fmt"
	"strings"

	"wedding-bot/pkg/chat"
)

type keywordRegistration struct {
	moduleName string
	spec       chat.KeywordSpec
}

// registerModuleKeywords claims every trigger of keywords for moduleName.
// Registration is all-or-nothing.
func (k *Kernel) registerModuleKeywords(moduleName string, keywords []chat.KeywordSpec) error {
	if len(keywords) == 0 {
		return nil
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	claimed := make(map[chat.KeywordTrigger]chat.KeywordSpec)
	for index, keyword := range keywords {
		if err := keyword.Validate(); err != nil {
			return fmt.Errorf("register keyword[%d] for module %s: %w", index, moduleName, err)
		}
		for _, trigger := range keyword.Triggers() {
			if previous, exists := claimed[trigger]; exists {
				return fmt.Errorf("register keyword %s for module %s: trigger %s also declared by %s: %w",
					keyword.Name, moduleName, trigger, previous.Name, chat.ErrKeywordConflict)
			}
			if existing, exists := k.keywords[trigger]; exists {
				return fmt.Errorf("register keyword %s for module %s: trigger %s owned by module %s: %w",
					keyword.Name, moduleName, trigger, existing.moduleName, chat.ErrKeywordConflict)
			}
			claimed[trigger] = cloneKeywordSpec(keyword)
		}
	}

	for trigger, keyword := range claimed {
		k.keywords[trigger] = keywordRegistration{moduleName: moduleName, spec: keyword}
	}

	return nil
}

// unregisterModuleKeywords removes every trigger owned by one module.
func (k *Kernel) unregisterModuleKeywords(moduleName string) {
	k.mu.Lock()
	defer k.mu.Unlock()

	for trigger, registration := range k.keywords {
		if registration.moduleName == moduleName {
			delete(k.keywords, trigger)
		}
	}
}

func (k *Kernel) lookupKeyword(trigger chat.KeywordTrigger) (chat.KeywordSpec, bool) {
	k.mu.RLock()
	registration, exists := k.keywords[trigger]
	k.mu.RUnlock()
	if !exists {
		return chat.KeywordSpec{}, false
	}

	return cloneKeywordSpec(registration.spec), true
}

// newDriverEventSink wraps the bus with keyword derivation.
func (k *Kernel) newDriverEventSink() chat.EventSink {
	return &keywordDerivingSink{
		base:          k.bus,
		lookupKeyword: k.lookupKeyword,
	}
}

// keywordDerivingSink publishes keyword events in place of matching source
// events. Text is matched only against text triggers and postback data only
// against postback triggers. Unmatched events pass through unchanged.
type keywordDerivingSink struct {
	base          chat.EventSink
	lookupKeyword func(trigger chat.KeywordTrigger) (chat.KeywordSpec, bool)
}

// Publish forwards one event, replacing it with a keyword event on match.
func (s *keywordDerivingSink) Publish(ctx context.Context, event *chat.Event) error {
	if event == nil {
		return fmt.Errorf("publish keyword deriving sink: nil event")
	}
	if s.base == nil {
		return fmt.Errorf("publish keyword deriving sink: nil base sink")
	}

	input, ok := chat.KeywordInput(event)
	if ok {
		trigger := chat.KeywordTrigger{Kind: event.Kind, Value: strings.TrimSpace(input)}
		if spec, registered := s.lookupKeyword(trigger); registered {
			derived := derivedKeywordEvent(event, chat.KeywordInvocation{
				Name:            spec.Name,
				Matched:         trigger.Value,
				SourceEventKind: event.Kind,
				RawInput:        input,
			})
			if err := s.base.Publish(ctx, derived); err != nil {
				return fmt.Errorf("publish keyword %s: %w", spec.Name, err)
			}
			return nil
		}
	}

	if err := s.base.Publish(ctx, event); err != nil {
		return fmt.Errorf("publish source event %s: %w", event.Kind, err)
	}

	return nil
}

func derivedKeywordEvent(source *chat.Event, invocation chat.KeywordInvocation) *chat.Event {
	derived := &chat.Event{
		ID:           source.ID + "#keyword",
		Kind:         chat.EventKindKeywordReceived,
		OccurredAt:   source.OccurredAt,
		Platform:     source.Platform,
		Source:       source.Source,
		Conversation: source.Conversation,
		Actor:        source.Actor,
		ReplyToken:   source.ReplyToken,
		Keyword:      &invocation,
		Metadata:     cloneStringMap(source.Metadata),
	}
	if source.Message != nil {
		message := *source.Message
		derived.Message = &message
	}
	if source.Postback != nil {
		postback := *source.Postback
		derived.Postback = &postback
	}

	return derived
}

func cloneKeywordSpec(spec chat.KeywordSpec) chat.KeywordSpec {
	cloned := spec
	cloned.Texts = append([]string(nil), spec.Texts...)
	cloned.Postbacks = append([]string(nil), spec.Postbacks...)

	return cloned
}

func cloneStringMap(metadata map[string]string) map[string]string {
	if len(metadata) == 0 {
		return nil
	}

	cloned := make(map[string]string, len(metadata))
	for key, value := range metadata {
		cloned[key] = value
	}

	return cloned
}
