// Package toast implements the ephemeral notification slot: at most one
// message visible at a time, the newest replacing the current one, and
// automatic dismissal after a fixed delay. Toasts are never persisted.
package toast

import (
	"log/slog"
	"sync"
	"time"

	"protube-client/bus"
)

// DismissAfter is how long a toast stays visible.
const DismissAfter = 2500 * time.Millisecond

// Manager holds the single active toast.
type Manager struct {
	logger  *slog.Logger
	timer   *time.Timer
	current string
	delay   time.Duration
	gen     uint64
	mu      sync.Mutex
}

// New creates a manager with the standard dismiss delay.
func New(logger *slog.Logger) *Manager {
	return newWithDelay(DismissAfter, logger)
}

func newWithDelay(delay time.Duration, logger *slog.Logger) *Manager {
	return &Manager{logger: logger, delay: delay}
}

// Attach subscribes the manager to the bus toast topic and returns the
// unsubscribe function.
func (m *Manager) Attach(b *bus.Bus) (detach func()) {
	return b.Subscribe(bus.TopicToast, func(detail any) {
		t, ok := detail.(bus.Toast)
		if !ok {
			m.logger.Warn("Ignoring toast event with unexpected payload")
			return
		}
		m.Show(t.Message)
	})
}

// Show makes message the visible toast, replacing any current one and
// restarting the dismiss countdown.
func (m *Manager) Show(message string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.current = message
	m.gen++
	gen := m.gen

	if m.timer != nil {
		m.timer.Stop()
	}
	m.timer = time.AfterFunc(m.delay, func() {
		m.dismiss(gen)
	})

	m.logger.Debug("Toast shown", "message", message)
}

// dismiss clears the toast only if no newer one replaced it while the
// countdown ran.
func (m *Manager) dismiss(gen uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gen != gen {
		return
	}
	m.current = ""
}

// Current returns the visible toast, if any.
func (m *Manager) Current() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current, m.current != ""
}
