package driver

import (
	"context"
	"fmt"
	"log/slog"

	"wedding-bot/internal/driver/line"
)

// NewBuiltinRegistry returns a registry of every driver type compiled into
// the bot. Today that is only LINE.
func NewBuiltinRegistry() (*Registry, error) {
	return NewRegistry([]Descriptor{
		{Type: line.DriverType, Platform: line.DriverPlatform, Builder: buildLINE},
	})
}

func buildLINE(_ context.Context, definition Definition, logger *slog.Logger) (Runtime, error) {
	built, err := line.BuildRuntimeFromConfig(definition.Name, logger, definition.Config)
	if err != nil {
		return Runtime{}, fmt.Errorf("build line runtime from config: %w", err)
	}

	return Runtime{
		Source:          built.Source,
		Driver:          built.Driver,
		ReplyDispatcher: built.Replies,
		Webhook:         built.Driver,
		WebhookPaths:    built.WebhookPaths,
	}, nil
}
