package driver

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"wedding-bot/pkg/chat"
)

type sink struct {
	ref        chat.SinkRef
	dispatcher chat.ReplyDispatcher
}

// CompositeReplyDispatcher sends each reply to the runtime named by its
// target sink. With exactly one sink configured the target may omit it.
type CompositeReplyDispatcher struct {
	sinks []sink
}

// NewCompositeReplyDispatcher collects the reply-capable runtimes. Runtimes
// without a ReplyDispatcher are skipped.
func NewCompositeReplyDispatcher(runtimes []Runtime) (*CompositeReplyDispatcher, error) {
	sinks := make([]sink, 0, len(runtimes))
	for _, runtime := range runtimes {
		if runtime.ReplyDispatcher == nil {
			continue
		}
		id := runtime.Source.ID
		if id == "" {
			return nil, fmt.Errorf("new composite reply dispatcher: missing sink id")
		}
		if slices.ContainsFunc(sinks, func(s sink) bool { return s.ref.ID == id }) {
			return nil, fmt.Errorf("new composite reply dispatcher: duplicate sink id %s", id)
		}
		sinks = append(sinks, sink{
			ref:        chat.SinkRef{Platform: runtime.Source.Platform, ID: id},
			dispatcher: runtime.ReplyDispatcher,
		})
	}
	slices.SortFunc(sinks, func(a, b sink) int { return strings.Compare(a.ref.ID, b.ref.ID) })

	return &CompositeReplyDispatcher{sinks: sinks}, nil
}

// Reply validates request and forwards it.
func (d *CompositeReplyDispatcher) Reply(ctx context.Context, request chat.ReplyRequest) error {
	if err := request.Validate(); err != nil {
		return fmt.Errorf("route reply: %w", err)
	}
	target, err := d.pick(request.Target.Sink)
	if err != nil {
		return fmt.Errorf("resolve sink for reply: %w", err)
	}
	if err := target.Reply(ctx, request); err != nil {
		return fmt.Errorf("route reply: %w", err)
	}

	return nil
}

// ListSinks returns the configured sinks sorted by id.
func (d *CompositeReplyDispatcher) ListSinks(ctx context.Context) ([]chat.SinkRef, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("list sinks: %w", err)
	}
	refs := make([]chat.SinkRef, len(d.sinks))
	for idx, s := range d.sinks {
		refs[idx] = s.ref
	}

	return refs, nil
}

func (d *CompositeReplyDispatcher) pick(ref *chat.SinkRef) (chat.ReplyDispatcher, error) {
	if d == nil {
		return nil, fmt.Errorf("nil dispatcher")
	}

	switch {
	case len(d.sinks) == 0:
		return nil, fmt.Errorf("%w: no sinks configured", chat.ErrOutboundUnsupported)
	case ref == nil && len(d.sinks) == 1:
		return d.sinks[0].dispatcher, nil
	case ref == nil:
		return nil, fmt.Errorf("%w: missing target sink", chat.ErrOutboundUnsupported)
	case ref.ID != "":
		return d.byID(*ref)
	case ref.Platform != "":
		return d.byPlatform(ref.Platform)
	default:
		return nil, fmt.Errorf("%w: empty sink reference", chat.ErrOutboundUnsupported)
	}
}

func (d *CompositeReplyDispatcher) byID(ref chat.SinkRef) (chat.ReplyDispatcher, error) {
	idx := slices.IndexFunc(d.sinks, func(s sink) bool { return s.ref.ID == ref.ID })
	if idx < 0 {
		return nil, fmt.Errorf("%w: sink %s not found", chat.ErrOutboundUnsupported, ref.ID)
	}
	found := d.sinks[idx]
	if ref.Platform != "" && found.ref.Platform != ref.Platform {
		return nil, fmt.Errorf(
			"%w: sink %s platform mismatch: expected %s got %s",
			chat.ErrOutboundUnsupported, ref.ID, ref.Platform, found.ref.Platform,
		)
	}

	return found.dispatcher, nil
}

func (d *CompositeReplyDispatcher) byPlatform(platform chat.Platform) (chat.ReplyDispatcher, error) {
	var match *sink
	for idx := range d.sinks {
		if d.sinks[idx].ref.Platform != platform {
			continue
		}
		if match != nil {
			return nil, fmt.Errorf("%w: ambiguous sink for platform %s", chat.ErrOutboundUnsupported, platform)
		}
		match = &d.sinks[idx]
	}
	if match == nil {
		return nil, fmt.Errorf("%w: no sink for platform %s", chat.ErrOutboundUnsupported, platform)
	}

	return match.dispatcher, nil
}
