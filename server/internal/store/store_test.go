package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/pulsebridge/pulsebridge/pkg/types"
)

func record(key string, bpm float64) types.Record {
	return types.Record{Key: key, BPM: bpm, Timestamp: key}
}

// fixedClock returns a func() time.Time that always returns t.
func fixedClock(t time.Time) func() time.Time { return func() time.Time { return t } }

var base = time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)

func put(t *testing.T, st *Store, key string, bpm float64) {
	t.Helper()
	if _, err := st.Put(context.Background(), record(key, bpm), "wrist-01"); err != nil {
		t.Fatalf("Put(%s): %v", key, err)
	}
}

func TestPutAndGet(t *testing.T) {
	st := New(time.Hour)
	st.now = fixedClock(base)
	put(t, st, "2026-02-10_12:00:00", 71)

	e, ok := st.Get("2026-02-10_12:00:00")
	if !ok {
		t.Fatal("Get: expected entry, got none")
	}
	if e.Record.BPM != 71 || e.AgentID != "wrist-01" || !e.UpdatedAt.Equal(base) {
		t.Errorf("entry = %+v", e)
	}
}

func TestGet_Missing(t *testing.T) {
	st := New(time.Hour)
	if _, ok := st.Get("unknown"); ok {
		t.Fatal("Get on empty store: expected false, got true")
	}
}

func TestPut_SameKeyOverwrites(t *testing.T) {
	st := New(time.Hour)
	put(t, st, "2026-02-10_12:00:00", 70)
	put(t, st, "2026-02-10_12:00:00", 90)

	if st.Count() != 1 {
		t.Errorf("Count: got %d, want 1", st.Count())
	}
	e, _ := st.Get("2026-02-10_12:00:00")
	if e.Record.BPM != 90 {
		t.Errorf("BPM: got %v, want 90", e.Record.BPM)
	}
}

func TestList_SortedAndExcludesStale(t *testing.T) {
	st := New(5 * time.Minute)

	st.now = fixedClock(base.Add(-10 * time.Minute))
	put(t, st, "2026-02-10_11:50:00", 60)
	st.now = fixedClock(base.Add(-time.Minute))
	put(t, st, "2026-02-10_11:59:10", 75)
	put(t, st, "2026-02-10_11:59:00", 74)

	st.now = fixedClock(base)
	got := st.List()
	if len(got) != 2 {
		t.Fatalf("List: got %d entries, want 2", len(got))
	}
	if got[0].Record.Key != "2026-02-10_11:59:00" || got[1].Record.Key != "2026-02-10_11:59:10" {
		t.Errorf("List order: %s, %s", got[0].Record.Key, got[1].Record.Key)
	}
	if st.Count() != 3 {
		t.Errorf("Count includes stale: got %d, want 3", st.Count())
	}
}

func TestList_ZeroTTLKeepsEverything(t *testing.T) {
	st := New(0)
	st.now = fixedClock(base.Add(-365 * 24 * time.Hour))
	put(t, st, "old", 60)
	st.now = fixedClock(base)

	if n := len(st.List()); n != 1 {
		t.Errorf("List: got %d, want 1", n)
	}
	if n := st.Evict(base); n != 0 {
		t.Errorf("Evict with zero TTL removed %d", n)
	}
}

func TestLatest(t *testing.T) {
	st := New(time.Hour)
	if _, ok := st.Latest(); ok {
		t.Fatal("Latest on empty store: expected false")
	}

	st.now = fixedClock(base)
	put(t, st, "2026-02-10_12:00:00", 70)
	st.now = fixedClock(base.Add(10 * time.Second))
	put(t, st, "2026-02-10_12:00:10", 72)
	put(t, st, "2026-02-10_12:00:09", 99) // same UpdatedAt, smaller key

	e, ok := st.Latest()
	if !ok || e.Record.Key != "2026-02-10_12:00:10" {
		t.Errorf("Latest = %+v, %v", e, ok)
	}
}

func TestEvict_RemovesStale(t *testing.T) {
	st := New(5 * time.Minute)
	st.now = fixedClock(base)
	put(t, st, "a", 60)
	st.now = fixedClock(base.Add(4 * time.Minute))
	put(t, st, "b", 61)

	if n := st.Evict(base.Add(5 * time.Minute)); n != 1 {
		t.Errorf("Evict: removed %d, want 1", n)
	}
	if _, ok := st.Get("a"); ok {
		t.Error("a should have been evicted")
	}
	if _, ok := st.Get("b"); !ok {
		t.Error("b should remain")
	}
}

func TestRun_ZeroTTLReturnsOnCancel(t *testing.T) {
	st := New(0)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() { st.Run(ctx); close(done) }()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

// memPersister records persister calls.
type memPersister struct {
	mu      sync.Mutex
	saved   map[string]Entry
	deleted []string
	saveErr error
	closed  bool
}

func newMemPersister(entries ...Entry) *memPersister {
	p := &memPersister{saved: map[string]Entry{}}
	for _, e := range entries {
		p.saved[e.Record.Key] = e
	}
	return p
}

func (p *memPersister) Save(_ context.Context, e Entry) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.saveErr != nil {
		return p.saveErr
	}
	p.saved[e.Record.Key] = e
	return nil
}

func (p *memPersister) Delete(_ context.Context, keys []string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, k := range keys {
		delete(p.saved, k)
		p.deleted = append(p.deleted, k)
	}
	return nil
}

func (p *memPersister) Load(context.Context) ([]Entry, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Entry, 0, len(p.saved))
	for _, e := range p.saved {
		out = append(out, e)
	}
	return out, nil
}

func (p *memPersister) Close() error {
	p.closed = true
	return nil
}

func TestOpen_LoadsAndDropsExpired(t *testing.T) {
	p := newMemPersister(
		Entry{Record: record("fresh", 70), UpdatedAt: time.Now().Add(-time.Minute)},
		Entry{Record: record("expired", 60), UpdatedAt: time.Now().Add(-2 * time.Hour)},
	)
	st, err := Open(context.Background(), time.Hour, p)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if st.Count() != 1 {
		t.Errorf("Count: got %d, want 1", st.Count())
	}
	if _, ok := st.Get("fresh"); !ok {
		t.Error("fresh entry not loaded")
	}
	if len(p.deleted) != 1 || p.deleted[0] != "expired" {
		t.Errorf("deleted = %v, want [expired]", p.deleted)
	}
	if err := st.Close(); err != nil || !p.closed {
		t.Errorf("Close: err=%v closed=%v", err, p.closed)
	}
}

func TestPut_WriteThrough(t *testing.T) {
	p := newMemPersister()
	st, err := Open(context.Background(), time.Hour, p)
	if err != nil {
		t.Fatal(err)
	}
	put(t, st, "k1", 80)
	if _, ok := p.saved["k1"]; !ok {
		t.Error("Put did not reach the persister")
	}
}

func TestPut_PersistErrorLeavesMemoryUnchanged(t *testing.T) {
	p := newMemPersister()
	st, err := Open(context.Background(), time.Hour, p)
	if err != nil {
		t.Fatal(err)
	}
	p.saveErr = errors.New("disk full")

	if _, err := st.Put(context.Background(), record("k1", 80), ""); err == nil {
		t.Fatal("Put: expected error, got nil")
	}
	if st.Count() != 0 {
		t.Errorf("Count: got %d, want 0", st.Count())
	}
}

func TestConcurrentMixedOps(t *testing.T) {
	st := New(time.Hour)
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(3)
		go func(n int) {
			defer wg.Done()
			_, _ = st.Put(context.Background(), record(fmt.Sprintf("k%d", n%5), float64(n)), "")
		}(i)
		go func() {
			defer wg.Done()
			st.List()
		}()
		go func() {
			defer wg.Done()
			st.Latest()
		}()
	}
	wg.Wait()

	if st.Count() != 5 {
		t.Errorf("Count: got %d, want 5", st.Count())
	}
}

func TestGet_ExcludesStale(t *testing.T) {
	st := New(time.Minute)
	st.now = fixedClock(base)
	put(t, st, "k", 70)

	st.now = fixedClock(base.Add(2 * time.Minute))
	if _, ok := st.Get("k"); ok {
		t.Error("Get returned an entry past the TTL")
	}
	if st.Count() != 1 {
		t.Errorf("Count: got %d, want 1 before eviction", st.Count())
	}
}
