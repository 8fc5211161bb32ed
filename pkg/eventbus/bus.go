// Package eventbus provides the topic-based publish/subscribe channel shared
// by all marketplace services. Delivery is at-least-once with no ordering
// guarantee; handlers must tolerate redelivery. Three implementations exist:
// in-memory (tests, single-process deployments), Redis pub/sub, and Kafka.
package eventbus

import "context"

// Handler processes one delivered event. A non-nil error signals the bus that
// delivery failed; whether that triggers redelivery depends on the backend.
type Handler func(ctx context.Context, event *Event) error

// Subscription is a live attachment of a handler to a topic.
type Subscription interface {
	// Unsubscribe detaches the handler. Safe to call more than once.
	Unsubscribe() error
}

// Bus is the publish/subscribe channel between services.
//
// Subscribe is synchronous with respect to delivery: once it returns, the
// handler receives every event published to the topic afterwards. Callers that
// await acknowledgements rely on this to subscribe before publishing the
// triggering event.
type Bus interface {
	Publish(ctx context.Context, topic string, event *Event) error
	Subscribe(topic string, handler Handler) (Subscription, error)
	Close() error
}
