package store

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/pulsebridge/pulsebridge/pkg/types"
)

// Entry is a record together with who sent it and when it was stored.
type Entry struct {
	Record    types.Record `json:"record"`
	AgentID   string       `json:"agent_id,omitempty"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// Persister is durable storage behind a Store.
type Persister interface {
	Save(ctx context.Context, e Entry) error
	Delete(ctx context.Context, keys []string) error
	Load(ctx context.Context) ([]Entry, error)
	Close() error
}

// Store is a thread-safe reading store keyed by record key.
type Store struct {
	mu      sync.RWMutex
	data    map[string]Entry
	ttl     time.Duration
	now     func() time.Time // injectable for deterministic tests
	persist Persister
}

// New creates an in-memory Store with the given TTL. Zero disables eviction.
func New(ttl time.Duration) *Store {
	return &Store{
		data: make(map[string]Entry),
		ttl:  ttl,
		now:  time.Now,
	}
}

// Open creates a Store backed by p and loads p's current contents. Entries
// already past the TTL are dropped during the load.
func Open(ctx context.Context, ttl time.Duration, p Persister) (*Store, error) {
	s := New(ttl)
	s.persist = p

	entries, err := p.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("store: load: %w", err)
	}
	for _, e := range entries {
		s.data[e.Record.Key] = e
	}
	if n := s.Evict(s.now()); n > 0 {
		slog.Info("store: dropped expired readings on load", "count", n)
	}
	slog.Info("store: loaded readings", "count", s.Count())
	return s, nil
}

// Put stores rec, replacing any entry with the same key. With a persister
// attached the entry is saved there first; on failure memory is unchanged.
func (s *Store) Put(ctx context.Context, rec types.Record, agentID string) (Entry, error) {
	e := Entry{Record: rec, AgentID: agentID, UpdatedAt: s.now()}

	if s.persist != nil {
		if err := s.persist.Save(ctx, e); err != nil {
			return Entry{}, fmt.Errorf("store: save %s: %w", rec.Key, err)
		}
	}

	s.mu.Lock()
	s.data[rec.Key] = e
	s.mu.Unlock()
	return e, nil
}

// Get returns the live entry for key. Entries past the TTL are reported as
// missing even before Run evicts them.
func (s *Store) Get(key string) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.data[key]
	if !ok || !s.live(e, s.now()) {
		return Entry{}, false
	}
	return e, true
}

// List returns all live entries sorted by key. Keys are timestamp labels,
// so within one time zone this is chronological order.
func (s *Store) List() []Entry {
	s.mu.RLock()
	now := s.now()
	out := make([]Entry, 0, len(s.data))
	for _, e := range s.data {
		if s.live(e, now) {
			out = append(out, e)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Record.Key < out[j].Record.Key })
	return out
}

// Latest returns the most recently stored live entry. Ties go to the larger
// key.
func (s *Store) Latest() (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	now := s.now()

	var best Entry
	found := false
	for _, e := range s.data {
		if !s.live(e, now) {
			continue
		}
		if !found || e.UpdatedAt.After(best.UpdatedAt) ||
			(e.UpdatedAt.Equal(best.UpdatedAt) && e.Record.Key > best.Record.Key) {
			best, found = e, true
		}
	}
	return best, found
}

// Count returns the total number of entries currently held, including ones
// past the TTL.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// Evict removes entries whose UpdatedAt is not after now minus TTL, and
// deletes them from the persister. It returns the number removed.
func (s *Store) Evict(now time.Time) int {
	if s.ttl <= 0 {
		return 0
	}

	s.mu.Lock()
	var keys []string
	for k, e := range s.data {
		if !s.live(e, now) {
			delete(s.data, k)
			keys = append(keys, k)
		}
	}
	s.mu.Unlock()

	if len(keys) > 0 && s.persist != nil {
		if err := s.persist.Delete(context.Background(), keys); err != nil {
			slog.Error("store: delete expired readings failed", "count", len(keys), "err", err)
		}
	}
	return len(keys)
}

// Run starts the background eviction loop. It ticks at half the TTL
// (minimum 1 second) and blocks until ctx is cancelled. With a zero TTL it
// just waits for ctx.
func (s *Store) Run(ctx context.Context) {
	if s.ttl <= 0 {
		<-ctx.Done()
		return
	}
	interval := s.ttl / 2
	if interval < time.Second {
		interval = time.Second
	}
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := s.Evict(s.now()); n > 0 {
				slog.Debug("store: evicted expired readings", "count", n)
			}
		}
	}
}

// Close closes the persister, if any.
func (s *Store) Close() error {
	if s.persist == nil {
		return nil
	}
	return s.persist.Close()
}

func (s *Store) live(e Entry, now time.Time) bool {
	return s.ttl <= 0 || e.UpdatedAt.After(now.Add(-s.ttl))
}
