// Package health tracks whether the chat backend is reachable.
package health

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Checker performs a single reachability check.
type Checker interface {
	Health(ctx context.Context) error
}

// CheckerFunc adapts a function to the Checker interface.
type CheckerFunc func(ctx context.Context) error

func (f CheckerFunc) Health(ctx context.Context) error { return f(ctx) }

// MonitorOption configures a Monitor.
type MonitorOption func(*Monitor)

// WithOnChange registers a callback invoked whenever the connection state
// changes, including the first check result.
func WithOnChange(fn func(connected bool)) MonitorOption {
	return func(m *Monitor) { m.onChange = fn }
}

// WithLogger sets the monitor's logger.
func WithLogger(l *slog.Logger) MonitorOption {
	return func(m *Monitor) {
		if l != nil {
			m.logger = l
		}
	}
}

// Monitor polls a Checker at a fixed interval and keeps a binary
// connected/disconnected state. It never backs off.
type Monitor struct {
	checker  Checker
	interval time.Duration
	onChange func(bool)
	logger   *slog.Logger

	mu        sync.Mutex
	connected bool
	known     bool
}

func NewMonitor(checker Checker, interval time.Duration, opts ...MonitorOption) *Monitor {
	m := &Monitor{
		checker:  checker,
		interval: interval,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Run checks immediately and then once per interval until ctx is done. A
// non-positive interval checks only once.
func (m *Monitor) Run(ctx context.Context) {
	m.Check(ctx)
	if m.interval <= 0 {
		return
	}

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Check(ctx)
		}
	}
}

// Check runs one reachability check, records the result and returns it.
func (m *Monitor) Check(ctx context.Context) bool {
	err := m.checker.Health(ctx)
	if err != nil && ctx.Err() != nil {
		// Shutting down; a cancelled check says nothing about the backend.
		return m.Connected()
	}
	connected := err == nil

	m.mu.Lock()
	changed := !m.known || m.connected != connected
	m.connected = connected
	m.known = true
	m.mu.Unlock()

	if changed {
		if connected {
			m.logger.Info("Backend is reachable.")
		} else {
			m.logger.Warn("Backend is unreachable.", "error", err)
		}
		if m.onChange != nil {
			m.onChange(connected)
		}
	} else if err != nil {
		m.logger.Debug("Backend still unreachable.", "error", err)
	}
	return connected
}

// Connected reports the state recorded by the most recent check.
func (m *Monitor) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}
