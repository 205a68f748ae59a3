// Package permission models the sensor access decision that must be made
// before the agent subscribes to a sensor source.
//
// A Gate starts in the decision it was created with. Wait blocks while the
// decision is Prompt and returns once Set moves it to Granted or Denied.
package permission

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Decision is the current state of a Gate.
type Decision string

const (
	Prompt  Decision = "prompt"
	Granted Decision = "granted"
	Denied  Decision = "denied"
)

// Parse converts a config value into a Decision.
func Parse(s string) (Decision, error) {
	switch d := Decision(s); d {
	case Prompt, Granted, Denied:
		return d, nil
	default:
		return "", fmt.Errorf("permission: unknown decision %q", s)
	}
}

// Gate holds the access decision and wakes waiters when it changes.
// All methods are safe for concurrent use.
type Gate struct {
	mu       sync.Mutex
	decision Decision
	changed  chan struct{} // closed and replaced on every change
}

// New returns a Gate holding d.
func New(d Decision) *Gate {
	return &Gate{decision: d, changed: make(chan struct{})}
}

// Decision returns the current decision.
func (g *Gate) Decision() Decision {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.decision
}

// Set records a new decision. Setting the current decision again is a no-op.
func (g *Gate) Set(d Decision) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if d == g.decision {
		return
	}
	slog.Info("permission: sensor access changed", "from", g.decision, "to", d)
	g.decision = d
	close(g.changed)
	g.changed = make(chan struct{})
}

// Wait blocks until the decision is not Prompt and reports whether access
// was granted. It returns ctx.Err() if ctx is cancelled first.
func (g *Gate) Wait(ctx context.Context) (bool, error) {
	for {
		g.mu.Lock()
		d, changed := g.decision, g.changed
		g.mu.Unlock()

		if d != Prompt {
			return d == Granted, nil
		}
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-changed:
		}
	}
}

// WaitGranted blocks until the decision is Granted, sitting through Prompt
// and Denied alike. A denial can be lifted later by a config reload; until
// then no sensor subscription exists.
func (g *Gate) WaitGranted(ctx context.Context) error {
	for {
		g.mu.Lock()
		d, changed := g.decision, g.changed
		g.mu.Unlock()

		if d == Granted {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-changed:
		}
	}
}

// WaitRevoked blocks while the decision is Granted and returns once it
// changes to anything else.
func (g *Gate) WaitRevoked(ctx context.Context) error {
	for {
		g.mu.Lock()
		d, changed := g.decision, g.changed
		g.mu.Unlock()

		if d != Granted {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-changed:
		}
	}
}
