package alerts

import (
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/pulsebridge/pulsebridge/pkg/types"
	"github.com/pulsebridge/pulsebridge/server/internal/config"
)

const (
	defaultCooldown = 15 * time.Minute
	maxHistoryLen   = 200
	recentWindow    = time.Hour
)

// Alert represents a single alert event produced by the rule engine.
type Alert struct {
	ID         string     `json:"id"`
	RuleName   string     `json:"rule_name"`
	AgentID    string     `json:"agent_id"`
	Key        string     `json:"key"` // reading that triggered the change
	Severity   string     `json:"severity"`
	Message    string     `json:"message"`
	Value      float64    `json:"value"`
	FiredAt    time.Time  `json:"fired_at"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
	State      string     `json:"state"` // "firing" | "resolved"
}

type rule struct {
	config.AlertRule
	cond condition
}

// Engine evaluates alert rules against incoming readings and delivers
// webhook notifications when rules fire or resolve.
//
// Engine is safe for concurrent use.
type Engine struct {
	rules    []rule
	webhooks []config.WebhookConfig
	now      func() time.Time
	client   *http.Client

	mu       sync.Mutex
	active   map[string]*Alert    // key: "ruleName:agentID"
	lastFire map[string]time.Time // last fire time per key (for cooldown)
	history  []*Alert             // recently resolved alerts

	deliveries sync.WaitGroup
}

// New creates an Engine from the server alert configuration. It fails if a
// rule condition cannot be parsed. An Engine with no rules is valid and
// Evaluate becomes a no-op.
func New(cfg config.AlertsConfig) (*Engine, error) {
	rules := make([]rule, 0, len(cfg.Rules))
	for _, r := range cfg.Rules {
		c, err := parseCondition(r.Condition)
		if err != nil {
			return nil, fmt.Errorf("alerts: rule %q: %w", r.Name, err)
		}
		if r.Severity == "" {
			r.Severity = "warning"
		}
		if r.Cooldown <= 0 {
			r.Cooldown = defaultCooldown
		}
		rules = append(rules, rule{AlertRule: r, cond: c})
	}
	return &Engine{
		rules:    rules,
		webhooks: cfg.Webhooks,
		now:      time.Now,
		client:   &http.Client{Timeout: 10 * time.Second},
		active:   make(map[string]*Alert),
		lastFire: make(map[string]time.Time),
	}, nil
}

// Evaluate tests every rule against rec as reported by agentID.
// Alerts that fire are stored and webhook delivery runs in the background.
// Firing alerts whose condition no longer holds are resolved.
func (e *Engine) Evaluate(rec types.Record, agentID string) {
	if len(e.rules) == 0 {
		return
	}
	if agentID == "" {
		agentID = "unknown"
	}

	now := e.now()
	for _, r := range e.rules {
		key := r.Name + ":" + agentID
		fires, value := r.cond.eval(rec)

		e.mu.Lock()
		var notify *Alert
		switch a, firing := e.active[key]; {
		case fires && !firing && now.Sub(e.lastFire[key]) >= r.Cooldown:
			a = &Alert{
				ID:       fmt.Sprintf("%s:%s:%d", r.Name, agentID, now.UnixNano()),
				RuleName: r.Name,
				AgentID:  agentID,
				Key:      rec.Key,
				Severity: r.Severity,
				Value:    value,
				Message: fmt.Sprintf("[%s] %s fired for %s: %s (bpm = %.1f at %s)",
					r.Severity, r.Name, agentID, r.Condition, value, rec.Timestamp),
				FiredAt: now,
				State:   "firing",
			}
			e.active[key] = a
			e.lastFire[key] = now
			cp := *a
			notify = &cp

		case !fires && firing:
			resolved := now
			a.State = "resolved"
			a.ResolvedAt = &resolved
			a.Key = rec.Key
			delete(e.active, key)

			e.history = append(e.history, a)
			if len(e.history) > maxHistoryLen {
				e.history = e.history[len(e.history)-maxHistoryLen:]
			}
			cp := *a
			notify = &cp
		}
		e.mu.Unlock()

		if notify == nil {
			continue
		}
		if notify.State == "firing" {
			slog.Warn("alerts: fired",
				"rule", r.Name,
				"agent_id", agentID,
				"bpm", value,
				"severity", r.Severity,
			)
		} else {
			slog.Info("alerts: resolved", "rule", r.Name, "agent_id", agentID)
		}
		e.deliveries.Add(1)
		go func() {
			defer e.deliveries.Done()
			e.deliver(notify)
		}()
	}
}

// Active returns copies of all currently firing alerts plus any alerts
// resolved within the past hour, newest first.
func (e *Engine) Active() []Alert {
	e.mu.Lock()
	defer e.mu.Unlock()

	cutoff := e.now().Add(-recentWindow)
	out := make([]Alert, 0, len(e.active))
	for _, a := range e.active {
		out = append(out, *a)
	}
	for _, a := range e.history {
		if a.ResolvedAt != nil && a.ResolvedAt.After(cutoff) {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FiredAt.After(out[j].FiredAt) })
	return out
}

// Wait blocks until in-flight webhook deliveries finish.
func (e *Engine) Wait() {
	e.deliveries.Wait()
}
