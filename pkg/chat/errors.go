package chat

import "errors"

var (
	// ErrInvalidEvent indicates that an event does not satisfy protocol invariants.
	ErrInvalidEvent = errors.New("chat: invalid event")
	// ErrInvalidSubscription indicates that a subscription configuration is invalid.
	ErrInvalidSubscription = errors.New("chat: invalid subscription")
	// ErrSubscriptionClosed indicates that a subscription is no longer active.
	ErrSubscriptionClosed = errors.New("chat: subscription closed")
	// ErrEventDropped indicates a non-blocking backpressure drop.
	ErrEventDropped = errors.New("chat: event dropped due to backpressure")
	// ErrEventExpired indicates that an event waited in a queue past its reply window.
	ErrEventExpired = errors.New("chat: event expired before handling")
	// ErrServiceAlreadyRegistered indicates duplicate service registration.
	ErrServiceAlreadyRegistered = errors.New("chat: service already registered")
	// ErrServiceNotFound indicates a service lookup miss.
	ErrServiceNotFound = errors.New("chat: service not found")
	// ErrServiceType indicates that a registered service has an unexpected type.
	ErrServiceType = errors.New("chat: service has unexpected type")
	// ErrModuleAlreadyRegistered indicates duplicate module registration.
	ErrModuleAlreadyRegistered = errors.New("chat: module already registered")
	// ErrDriverAlreadyRegistered indicates duplicate driver registration.
	ErrDriverAlreadyRegistered = errors.New("chat: driver already registered")
	// ErrKeywordConflict indicates that two modules claim the same trigger.
	ErrKeywordConflict = errors.New("chat: keyword already registered")
	// ErrInvalidOutboundRequest indicates that a reply request is malformed.
	ErrInvalidOutboundRequest = errors.New("chat: invalid outbound request")
	// ErrOutboundUnsupported indicates that no sink can serve a reply request.
	ErrOutboundUnsupported = errors.New("chat: outbound unsupported")
)
