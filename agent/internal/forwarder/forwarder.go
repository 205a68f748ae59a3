package forwarder

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/pulsebridge/pulsebridge/agent/internal/telemetry"
	"github.com/pulsebridge/pulsebridge/pkg/types"
)

// Sink receives accepted records. Write may block; the forwarder always
// calls it off the Accept path.
type Sink interface {
	Write(ctx context.Context, rec types.Record) error
	Name() string
}

// Notifier is told about every accepted reading.
type Notifier interface {
	NoteReading(now time.Time)
}

// Reading is the most recent accepted value.
type Reading struct {
	BPM float64
	At  time.Time
}

// Options tunes a Forwarder. Zero values fall back to the defaults below.
type Options struct {
	ThrottleWindow time.Duration
	WriteTimeout   time.Duration
	Location       *time.Location
	Metrics        *telemetry.Metrics
}

const (
	defaultThrottleWindow = 10 * time.Second
	defaultWriteTimeout   = 10 * time.Second
)

// Forwarder filters readings, throttles sink writes and tracks the latest
// value. All exported methods are safe for concurrent use.
type Forwarder struct {
	sink     Sink
	notifier Notifier
	window   time.Duration
	timeout  time.Duration
	loc      *time.Location
	metrics  *telemetry.Metrics

	mu       sync.Mutex
	throttle ThrottleState
	latest   Reading
	hasValue bool

	inflight sync.WaitGroup
}

// New returns a Forwarder writing to sink and notifying n. n may be nil.
func New(sink Sink, n Notifier, opts Options) *Forwarder {
	if opts.ThrottleWindow <= 0 {
		opts.ThrottleWindow = defaultThrottleWindow
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = defaultWriteTimeout
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	return &Forwarder{
		sink:     sink,
		notifier: n,
		window:   opts.ThrottleWindow,
		timeout:  opts.WriteTimeout,
		loc:      opts.Location,
		metrics:  opts.Metrics,
	}
}

// Accept processes one reading taken at now. Callers should pass a
// non-decreasing now; time.Now() carries a monotonic reading that makes
// the throttle immune to wall-clock steps.
func (f *Forwarder) Accept(value float64, now time.Time) {
	if !Valid(value) {
		f.metrics.ReadingDiscarded()
		return
	}

	f.mu.Lock()
	f.latest = Reading{BPM: value, At: now}
	f.hasValue = true
	if f.notifier != nil {
		f.notifier.NoteReading(now)
	}
	f.metrics.ReadingAccepted(value)

	if !f.throttle.Allow(now, f.window) {
		f.mu.Unlock()
		f.metrics.ReadingThrottled()
		return
	}
	rec := types.NewRecord(value, now, f.loc)
	f.inflight.Add(1)
	f.mu.Unlock()

	go f.write(rec)
}

// Latest returns the most recent accepted reading and whether there is one.
func (f *Forwarder) Latest() (Reading, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.latest, f.hasValue
}

// LastSent returns the time of the last write that passed the throttle, or
// the zero time if none has.
func (f *Forwarder) LastSent() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.throttle.LastSent
}

// Wait blocks until every write started by Accept has finished.
func (f *Forwarder) Wait() {
	f.inflight.Wait()
}

// write performs one sink call and logs its outcome. Failures are not
// retried.
func (f *Forwarder) write(rec types.Record) {
	defer f.inflight.Done()

	ctx, cancel := context.WithTimeout(context.Background(), f.timeout)
	defer cancel()

	start := time.Now()
	err := f.sink.Write(ctx, rec)
	f.metrics.WriteFinished(err, time.Since(start))

	if err != nil {
		slog.Error("forwarder: sink write failed",
			"sink", f.sink.Name(), "key", rec.Key, "bpm", rec.BPM, "err", err)
		return
	}
	slog.Debug("forwarder: reading written",
		"sink", f.sink.Name(), "key", rec.Key, "bpm", rec.BPM)
}
