// Package driver turns configured driver entries into running platform
// adapters and routes replies back to them.
package driver

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strings"

	"wedding-bot/pkg/chat"
)

// Definition is one entry of the "drivers" config list.
type Definition struct {
	Name    string
	Type    string
	Enabled bool
	// Config is the raw JSON object handed to the type's builder.
	Config []byte
}

// Runtime is a built driver plus the pieces the process wires around it.
type Runtime struct {
	Source          chat.EventSource
	Driver          chat.Driver
	ReplyDispatcher chat.ReplyDispatcher
	// Webhook is mounted on each of WebhookPaths by the HTTP server.
	Webhook      http.Handler
	WebhookPaths []string
}

// BuilderFunc builds the runtime for one definition.
type BuilderFunc func(ctx context.Context, definition Definition, logger *slog.Logger) (Runtime, error)

// Descriptor registers a driver type.
type Descriptor struct {
	Type     string
	Platform chat.Platform
	Builder  BuilderFunc
}

// Registry holds the known driver types. It is immutable once built.
type Registry struct {
	descriptors []Descriptor
}

// NewRegistry validates descriptors and indexes them by type.
func NewRegistry(descriptors []Descriptor) (*Registry, error) {
	sorted := slices.Clone(descriptors)
	slices.SortFunc(sorted, func(a, b Descriptor) int { return strings.Compare(a.Type, b.Type) })

	for idx, descriptor := range sorted {
		switch {
		case descriptor.Type == "":
			return nil, fmt.Errorf("new registry: empty descriptor type")
		case descriptor.Platform == "":
			return nil, fmt.Errorf("new registry type %s: empty platform", descriptor.Type)
		case descriptor.Builder == nil:
			return nil, fmt.Errorf("new registry type %s: nil builder", descriptor.Type)
		case idx > 0 && sorted[idx-1].Type == descriptor.Type:
			return nil, fmt.Errorf("new registry type %s: duplicate", descriptor.Type)
		}
	}

	return &Registry{descriptors: sorted}, nil
}

func (r *Registry) lookup(driverType string) (Descriptor, bool) {
	if r == nil {
		return Descriptor{}, false
	}
	idx, found := slices.BinarySearchFunc(r.descriptors, driverType, func(d Descriptor, target string) int {
		return strings.Compare(d.Type, target)
	})
	if !found {
		return Descriptor{}, false
	}

	return r.descriptors[idx], true
}

// Types lists the registered driver types in sorted order.
func (r *Registry) Types() []string {
	if r == nil {
		return nil
	}
	types := make([]string, 0, len(r.descriptors))
	for _, descriptor := range r.descriptors {
		types = append(types, descriptor.Type)
	}

	return types
}

// PlatformForType returns the platform a driver type speaks.
func (r *Registry) PlatformForType(driverType string) (chat.Platform, error) {
	descriptor, ok := r.lookup(driverType)
	if !ok {
		return "", fmt.Errorf("unsupported type %s", driverType)
	}

	return descriptor.Platform, nil
}

// BuildEnabled builds every enabled definition in order. An empty Source.ID
// is filled with the definition name.
func (r *Registry) BuildEnabled(ctx context.Context, definitions []Definition, logger *slog.Logger) ([]Runtime, error) {
	if r == nil {
		return nil, fmt.Errorf("build drivers: nil registry")
	}

	var runtimes []Runtime
	names := make(map[string]bool, len(definitions))
	for _, definition := range definitions {
		if !definition.Enabled {
			continue
		}
		runtime, err := r.build(ctx, definition, names, logger)
		if err != nil {
			return nil, err
		}
		runtimes = append(runtimes, runtime)
	}

	return runtimes, nil
}

func (r *Registry) build(ctx context.Context, definition Definition, names map[string]bool, logger *slog.Logger) (Runtime, error) {
	switch {
	case definition.Name == "":
		return Runtime{}, fmt.Errorf("build driver: empty name")
	case names[definition.Name]:
		return Runtime{}, fmt.Errorf("build driver %s: duplicate name", definition.Name)
	case definition.Type == "":
		return Runtime{}, fmt.Errorf("build driver %s: empty type", definition.Name)
	}
	names[definition.Name] = true

	label := fmt.Sprintf("build driver %s type %s", definition.Name, definition.Type)
	descriptor, ok := r.lookup(definition.Type)
	if !ok {
		return Runtime{}, fmt.Errorf("%s: unsupported type", label)
	}
	runtime, err := descriptor.Builder(ctx, definition, logger)
	if err != nil {
		return Runtime{}, fmt.Errorf("%s: %w", label, err)
	}
	if runtime.Driver == nil {
		return Runtime{}, fmt.Errorf("%s: nil driver", label)
	}
	if runtime.Source.Platform == "" {
		return Runtime{}, fmt.Errorf("%s: missing source platform", label)
	}
	if runtime.Source.ID == "" {
		runtime.Source.ID = definition.Name
	}

	return runtime, nil
}
