package liveness

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// State is the liveness of the sensor stream.
type State string

const (
	StateFresh State = "fresh"
	StateStale State = "stale"
)

// Monitor tracks the last reading time and derives the stale flag.
// All exported methods are safe for concurrent use.
type Monitor struct {
	threshold time.Duration
	interval  time.Duration
	now       func() time.Time // injectable for deterministic tests

	lastUpdate atomic.Pointer[time.Time]

	mu    sync.Mutex
	state State
	subs  map[chan State]struct{}
}

// New returns a fresh Monitor whose last update is start.
func New(start time.Time, threshold, interval time.Duration) *Monitor {
	m := &Monitor{
		threshold: threshold,
		interval:  interval,
		now:       time.Now,
		state:     StateFresh,
		subs:      make(map[chan State]struct{}),
	}
	m.lastUpdate.Store(&start)
	return m
}

// NoteReading records a reading at now. Times earlier than the current last
// update are ignored so the last update never moves backwards.
func (m *Monitor) NoteReading(now time.Time) {
	for {
		prev := m.lastUpdate.Load()
		if !now.After(*prev) {
			return
		}
		if m.lastUpdate.CompareAndSwap(prev, &now) {
			return
		}
	}
}

// LastUpdate returns the time of the most recent reading, or the start time
// if none has arrived.
func (m *Monitor) LastUpdate() time.Time {
	return *m.lastUpdate.Load()
}

// Poll reports whether more than the threshold has elapsed between the last
// update and now. It has no side effects.
func (m *Monitor) Poll(now time.Time) bool {
	return now.Sub(m.LastUpdate()) > m.threshold
}

// State returns the state recorded by the most recent Check.
func (m *Monitor) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Check evaluates Poll at now, records the resulting state and notifies
// subscribers if it differs from the previous one.
func (m *Monitor) Check(now time.Time) State {
	next := StateFresh
	if m.Poll(now) {
		next = StateStale
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if next == m.state {
		return next
	}

	slog.Info("liveness: state changed",
		"from", m.state,
		"to", next,
		"since_last_reading", now.Sub(m.LastUpdate()).Round(time.Millisecond),
	)
	m.state = next
	for ch := range m.subs {
		publish(ch, next)
	}
	return next
}

// Subscribe returns a channel that receives every state transition and a
// function that cancels the subscription. A slow subscriber only ever sees
// the most recent transition.
func (m *Monitor) Subscribe() (<-chan State, func()) {
	ch := make(chan State, 1)
	m.mu.Lock()
	m.subs[ch] = struct{}{}
	m.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.subs, ch)
			m.mu.Unlock()
		})
	}
}

// Run calls Check on every tick until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) {
	t := time.NewTicker(m.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			m.Check(m.now())
		}
	}
}

// publish delivers s to ch, replacing an undelivered older value.
func publish(ch chan State, s State) {
	select {
	case ch <- s:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- s:
	default:
	}
}
