package chat

import (
	"errors"
	"fmt"
	"log/slog"
)

// ServiceLogger names the shared *slog.Logger. Registering it is optional.
const ServiceLogger = "logger"

// ServiceRegistry is the name-to-value lookup shared by modules and drivers.
type ServiceRegistry interface {
	Register(name string, service any) error
	Resolve(name string) (any, error)
}

// ResolveAs resolves name and asserts the result to T.
func ResolveAs[T any](registry ServiceRegistry, name string) (T, error) {
	var typed T

	service, err := registry.Resolve(name)
	if err != nil {
		return typed, fmt.Errorf("resolve service %s: %w", name, err)
	}
	typed, ok := service.(T)
	if !ok {
		return typed, fmt.Errorf("resolve service %s: %w: got %T", name, ErrServiceType, service)
	}

	return typed, nil
}

// ResolveLogger returns the registered logger, or fallback when none is
// registered. A value of the wrong type is still an error.
func ResolveLogger(registry ServiceRegistry, fallback *slog.Logger) (*slog.Logger, error) {
	logger, err := ResolveAs[*slog.Logger](registry, ServiceLogger)
	switch {
	case err == nil:
		return logger, nil
	case errors.Is(err, ErrServiceNotFound):
		return fallback, nil
	default:
		return nil, err
	}
}
