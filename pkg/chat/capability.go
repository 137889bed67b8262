package chat

// Capability describes what a module can process and what resources it requires.
type Capability struct {
	Name             string
	Description      string
	Interest         InterestSet
	RequiredServices []string
}

// InterestSet describes event selection criteria for capability negotiation.
type InterestSet struct {
	// Kinds restricts delivery to these event kinds.
	Kinds []EventKind
	// KeywordNames restricts keyword events to these canonical names.
	KeywordNames []string
	// MessageTypes restricts message events to these payload types.
	MessageTypes []MessageType
	// Sources restricts delivery to events from these driver instances.
	Sources []EventSource
}

// Matches reports whether an event satisfies the declared interest set.
func (i InterestSet) Matches(event *Event) bool {
	if event == nil {
		return false
	}
	if len(i.Kinds) > 0 && !contains(i.Kinds, event.Kind) {
		return false
	}
	if len(i.KeywordNames) > 0 {
		if event.Keyword == nil || !contains(i.KeywordNames, event.Keyword.Name) {
			return false
		}
	}
	if len(i.MessageTypes) > 0 {
		if event.Message == nil || !contains(i.MessageTypes, event.Message.Type) {
			return false
		}
	}
	if len(i.Sources) > 0 && !sourceMatches(i.Sources, event.Source) {
		return false
	}

	return true
}

// Allows reports whether this interest set can safely satisfy another filter.
func (i InterestSet) Allows(filter InterestSet) bool {
	if len(i.Kinds) > 0 && !allIncluded(filter.Kinds, i.Kinds) {
		return false
	}
	if len(i.KeywordNames) > 0 && !allIncluded(filter.KeywordNames, i.KeywordNames) {
		return false
	}
	if len(i.MessageTypes) > 0 && !allIncluded(filter.MessageTypes, i.MessageTypes) {
		return false
	}

	return true
}

// sourceMatches treats empty fields of a configured source as wildcards.
func sourceMatches(sources []EventSource, actual EventSource) bool {
	for _, source := range sources {
		if source.Platform != "" && source.Platform != actual.Platform {
			continue
		}
		if source.ID != "" && source.ID != actual.ID {
			continue
		}
		return true
	}

	return false
}

func contains[T comparable](items []T, target T) bool {
	for _, candidate := range items {
		if candidate == target {
			return true
		}
	}

	return false
}

// allIncluded reports whether subset is non-empty and fully contained in allowed.
func allIncluded[T comparable](subset, allowed []T) bool {
	if len(subset) == 0 {
		return false
	}
	for _, item := range subset {
		if !contains(allowed, item) {
			return false
		}
	}

	return true
}
