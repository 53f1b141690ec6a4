// Package events is the process-wide publish/subscribe channel that lets
// independent parts of the client (navbar, feed cards, the TUI) react to
// identity and cache changes without holding references to each other.
package events

import "time"

// Topics
const (
	TopicLogin           = "auth:login"
	TopicLogout          = "auth:logout"
	TopicProfileUpdated  = "profile:updated"
	TopicStorage         = "storage"
	TopicFeedUpdated     = "feed:updated"
	TopicCommentsUpdated = "comments:updated"
)

// Event is a single notification. Payload carries the changed fields.
type Event struct {
	Topic   string
	Payload map[string]any
	Time    time.Time
}

// New builds an event stamped with the current time
func New(topic string, payload map[string]any) Event {
	if payload == nil {
		payload = map[string]any{}
	}
	return Event{Topic: topic, Payload: payload, Time: time.Now()}
}

// Handler reacts to an event. Handlers run on the publisher's goroutine.
type Handler func(Event)

// Bus distributes events to subscribers.
type Bus interface {
	// Publish delivers an event to handlers and subscriptions of its topic
	// and to wildcard subscribers.
	Publish(event Event)

	// On registers a handler for one topic and returns its unsubscribe func.
	On(topic string, h Handler) (off func())

	// Subscribe returns a channel subscription for the given topics.
	// No topics means every topic.
	Subscribe(topics ...string) Subscription

	// Close shuts down the bus and all subscriptions.
	Close() error
}

// Subscription receives events.
type Subscription interface {
	// Events returns a channel of events for this subscription.
	Events() <-chan Event

	// Close unsubscribes and releases resources.
	Close() error
}
