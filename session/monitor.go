// Package session tracks the external service's authentication status.
//
// The monitor never originates transitions: it mirrors the status reported by
// the threshold-key service at a bounded polling interval, de-duplicating
// repeated identical reads so dependent consumers are not notified spuriously.
package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.uber.org/atomic"

	"github.com/huahuahua1223/w3a-mpc/interfaces"
)

// DefaultPollInterval bounds how often the service status is observed.
const DefaultPollInterval = 300 * time.Millisecond

// Listener is notified once per observed status transition.
type Listener func(previous, current interfaces.SessionStatus)

// Monitor mirrors the threshold-key service's session status.
type Monitor struct {
	svc      interfaces.ThresholdKeyService
	interval time.Duration
	log      *slog.Logger

	current atomic.String

	mu        sync.Mutex
	listeners []Listener
}

// NewMonitor creates a monitor starting in Uninitialized. A non-positive
// interval falls back to DefaultPollInterval.
func NewMonitor(svc interfaces.ThresholdKeyService, interval time.Duration, log *slog.Logger) *Monitor {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	m := &Monitor{svc: svc, interval: interval, log: log}
	m.current.Store(string(interfaces.StatusUninitialized))
	return m
}

// Current returns the last observed status.
func (m *Monitor) Current() interfaces.SessionStatus {
	return interfaces.SessionStatus(m.current.Load())
}

// Subscribe registers a listener for future transitions. Listeners run on the
// polling goroutine and must not block.
func (m *Monitor) Subscribe(fn Listener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
}

// Poll observes the service status once. An unchanged read is a no-op;
// a change updates the mirror and notifies listeners.
func (m *Monitor) Poll() {
	observed := m.svc.Status()
	previous := interfaces.SessionStatus(m.current.Load())
	if observed == previous {
		return
	}

	m.current.Store(string(observed))
	m.log.Info("Session status changed", "from", string(previous), "to", string(observed))

	m.mu.Lock()
	listeners := make([]Listener, len(m.listeners))
	copy(listeners, m.listeners)
	m.mu.Unlock()

	for _, fn := range listeners {
		fn(previous, observed)
	}
}

// Run polls at the configured interval until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.Poll()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Poll()
		}
	}
}
