// Package bus implements the same-tab notification bus: a synchronous,
// per-topic publish/subscribe mechanism that lets independently wired
// components react to state changes made by their siblings. The native
// cross-process change notification of the persisted store does not fire
// for the writer's own process, so anything that mutates shared state
// publishes here as well.
package bus

import (
	"log/slog"
	"sync"
)

// Topics published on the bus.
const (
	TopicStateUpdated   = "state-updated"
	TopicOpenUpload     = "open-upload-dialog"
	TopicCloseUpload    = "close-upload-dialog"
	TopicOpenLogin      = "open-login-dialog"
	TopicToast          = "toast"
	TopicProfileUpdated = "profile-updated"
)

// StateUpdate is the payload carried on TopicStateUpdated. Type is one of
// the protube.Update* discriminators; Context carries optional extra
// fields such as the video key that changed.
type StateUpdate struct {
	Type    string
	Context map[string]string
}

// Toast is the payload carried on TopicToast.
type Toast struct {
	Message string
}

// Handler receives the detail value passed to Publish.
type Handler func(detail any)

type subscription struct {
	fn Handler
	id uint64
}

// Bus fans published events out to subscribers of the matching topic.
// Delivery is synchronous and in subscription order; Publish returns only
// after every handler has run.
type Bus struct {
	logger *slog.Logger
	subs   map[string][]subscription
	mu     sync.Mutex
	nextID uint64
}

// New creates an empty bus.
func New(logger *slog.Logger) *Bus {
	return &Bus{
		logger: logger,
		subs:   make(map[string][]subscription),
	}
}

// Subscribe registers a handler for a topic and returns the function that
// releases the subscription. Components must call it on teardown so the
// bus never calls into a component that no longer exists. The returned
// function is safe to call more than once.
func (b *Bus) Subscribe(topic string, fn Handler) (unsubscribe func()) {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs[topic] = append(b.subs[topic], subscription{fn: fn, id: id})
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		subs := b.subs[topic]
		for i, s := range subs {
			if s.id == id {
				b.subs[topic] = append(subs[:i:i], subs[i+1:]...)
				return
			}
		}
	}
}

// Publish delivers detail to every handler currently subscribed to topic,
// in subscription order, before returning. Handlers subscribed or removed
// during delivery do not affect the in-flight fan-out.
func (b *Bus) Publish(topic string, detail any) {
	b.mu.Lock()
	subs := b.subs[topic]
	handlers := make([]Handler, len(subs))
	for i, s := range subs {
		handlers[i] = s.fn
	}
	b.mu.Unlock()

	b.logger.Debug("Publishing event", "topic", topic, "subscriber_count", len(handlers))

	for _, fn := range handlers {
		fn(detail)
	}
}
