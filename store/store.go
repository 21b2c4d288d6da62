// Package store implements the persisted key-value store that backs the
// client's local state: identity keys, cached entity lists, and small UI
// preference flags. Values survive restarts and are shared between every
// handle opened on the same backend, mirroring how browser storage is
// shared between tabs of one origin.
//
// The accessors follow a strict never-throws contract: a failing backend
// degrades reads to "absent" and writes to no-ops, because losing a
// preference must not take the client down. Failures are logged, never
// returned.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
)

// ErrNotExist is returned by backends when a key has no value.
var ErrNotExist = errors.New("store: key doesn't exist")

// IsNotExist checks if an error indicates a missing key.
func IsNotExist(err error) bool {
	return errors.Is(err, ErrNotExist)
}

// Backend is the raw persistence under the store.
type Backend interface {
	Read(ctx context.Context, key string) ([]byte, error)
	Write(ctx context.Context, key string, data []byte) error
	Remove(ctx context.Context, key string) error
	Keys(ctx context.Context) ([]string, error)
}

// validKey rejects path separators and anything else that could escape
// the backend's namespace. Store keys are fixed identifiers, so the
// allowed set is deliberately narrow.
func validKey(key string) bool {
	if key == "" || len(key) > 128 {
		return false
	}
	for _, c := range key {
		ok := (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') ||
			(c >= '0' && c <= '9') || c == '_' || c == '-' || c == '.'
		if !ok {
			return false
		}
	}
	return true
}

// Shared couples a backend with a change hub so every handle opened from
// it observes writes made through the other handles. A write never
// notifies the handle that made it; same-process components that depend
// on their own writes use the notification bus instead.
type Shared struct {
	backend Backend
	hub     *hub
}

// NewShared wraps a backend for multi-handle use.
func NewShared(backend Backend) *Shared {
	return &Shared{backend: backend, hub: newHub()}
}

// Open creates a handle on the shared backend.
func (s *Shared) Open(logger *slog.Logger) *Store {
	return &Store{
		backend: s.backend,
		hub:     s.hub,
		id:      s.hub.nextHandle(),
		logger:  logger,
	}
}

// Store is one handle on the persisted store.
type Store struct {
	backend Backend
	hub     *hub
	logger  *slog.Logger
	id      uint64
}

// New creates a standalone handle on a backend. State written through it
// is visible to handles of a different Shared wrapper only via the
// backend itself, without change notification.
func New(backend Backend, logger *slog.Logger) *Store {
	return NewShared(backend).Open(logger)
}

// Get returns the stored value for key. It reports false on absence and
// on any backend failure; it never fails loudly.
func (s *Store) Get(ctx context.Context, key string) (string, bool) {
	if !validKey(key) {
		s.logger.Warn("Rejecting invalid store key", "key", key)
		return "", false
	}
	data, err := s.backend.Read(ctx, key)
	if err != nil {
		if !IsNotExist(err) {
			s.logger.Warn("Store read failed, treating as absent", "key", key, "error", err)
		}
		return "", false
	}
	return string(data), true
}

// Set stores value under key. Failures are swallowed after logging;
// callers must not rely on the write having succeeded.
func (s *Store) Set(ctx context.Context, key, value string) {
	if !validKey(key) {
		s.logger.Warn("Rejecting invalid store key", "key", key)
		return
	}
	if err := s.backend.Write(ctx, key, []byte(value)); err != nil {
		s.logger.Warn("Store write failed, value dropped", "key", key, "error", err)
		return
	}
	s.hub.broadcast(s.id, key)
}

// Remove deletes key. Removing an absent key is a no-op.
func (s *Store) Remove(ctx context.Context, key string) {
	if !validKey(key) {
		return
	}
	if err := s.backend.Remove(ctx, key); err != nil && !IsNotExist(err) {
		s.logger.Warn("Store remove failed", "key", key, "error", err)
		return
	}
	s.hub.broadcast(s.id, key)
}

// Keys lists the currently stored keys. Used by the agent's state
// summary; failures degrade to an empty list.
func (s *Store) Keys(ctx context.Context) []string {
	keys, err := s.backend.Keys(ctx)
	if err != nil {
		s.logger.Warn("Store key listing failed", "error", err)
		return nil
	}
	return keys
}

// Subscribe registers fn to run whenever another handle on the same
// shared backend writes or removes a key. The returned function releases
// the subscription and must be called on teardown.
func (s *Store) Subscribe(fn func(key string)) (unsubscribe func()) {
	return s.hub.subscribe(s.id, fn)
}

// GetJSON parses the JSON stored under key into a T. On absence, parse
// failure, or any backend failure it returns fallback.
func GetJSON[T any](ctx context.Context, s *Store, key string, fallback T) T {
	raw, ok := s.Get(ctx, key)
	if !ok {
		return fallback
	}
	var v T
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		s.logger.Warn("Stored JSON is malformed, using fallback", "key", key, "error", err)
		return fallback
	}
	return v
}

// SetJSON marshals v and stores it under key, with the same swallowed
// failure contract as Set.
func SetJSON(ctx context.Context, s *Store, key string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		s.logger.Warn("Store JSON marshal failed, value dropped", "key", key, "error", err)
		return
	}
	s.Set(ctx, key, string(data))
}

// hub dispatches change notifications between handles of one Shared.
type hub struct {
	mu      sync.Mutex
	nextID  uint64
	nextSub uint64
	subs    []hubSub
}

type hubSub struct {
	fn     func(key string)
	handle uint64
	id     uint64
}

func newHub() *hub {
	return &hub{}
}

func (h *hub) nextHandle() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	return h.nextID
}

func (h *hub) subscribe(handle uint64, fn func(key string)) func() {
	h.mu.Lock()
	h.nextSub++
	id := h.nextSub
	h.subs = append(h.subs, hubSub{fn: fn, handle: handle, id: id})
	h.mu.Unlock()

	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		for i, sub := range h.subs {
			if sub.id == id {
				h.subs = append(h.subs[:i:i], h.subs[i+1:]...)
				return
			}
		}
	}
}

// broadcast notifies every subscriber except those belonging to the
// writing handle itself.
func (h *hub) broadcast(writer uint64, key string) {
	h.mu.Lock()
	var fns []func(key string)
	for _, sub := range h.subs {
		if sub.handle != writer {
			fns = append(fns, sub.fn)
		}
	}
	h.mu.Unlock()

	for _, fn := range fns {
		fn(key)
	}
}
