// Package display renders the current heart rate, or a reconnect prompt
// while the sensor stream is stale.
//
// A Surface samples the forwarder and the liveness monitor on its own tick.
// Each tick produces a Frame. The frame text is written to the configured
// writer only when it changes; every frame is pushed to WebSocket clients
// connected at /ws/display.
package display

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/pulsebridge/pulsebridge/agent/internal/forwarder"
	"github.com/pulsebridge/pulsebridge/agent/internal/liveness"
	"github.com/pulsebridge/pulsebridge/pkg/wshub"
)

// Readings supplies the most recent accepted reading.
type Readings interface {
	Latest() (forwarder.Reading, bool)
}

// Liveness supplies the stream state.
type Liveness interface {
	State() liveness.State
}

// Frame is one rendered display state.
type Frame struct {
	BPM   int       `json:"bpm"`
	Stale bool      `json:"stale"`
	Text  string    `json:"text"`
	At    time.Time `json:"at"`
}

// Message is the JSON envelope sent to WebSocket clients.
type Message struct {
	Event string `json:"event"`
	Data  Frame  `json:"data"`
}

// Options configures a Surface.
type Options struct {
	// Out receives the frame text, one line per change. Nil disables it.
	Out io.Writer
	// Prompt replaces the reading while the stream is stale.
	Prompt   string
	Interval time.Duration
}

// Surface is the display loop.
type Surface struct {
	readings Readings
	live     Liveness
	out      io.Writer
	prompt   string
	interval time.Duration
	now      func() time.Time
	hub      *wshub.Hub

	mu       sync.Mutex
	frame    Frame
	hasFrame bool
}

// New returns a Surface reading from r and l.
func New(r Readings, l Liveness, opts Options) *Surface {
	if opts.Interval <= 0 {
		opts.Interval = time.Second
	}
	s := &Surface{
		readings: r,
		live:     l,
		out:      opts.Out,
		prompt:   opts.Prompt,
		interval: opts.Interval,
		now:      time.Now,
	}
	s.hub = wshub.New(s.initialMessage)
	return s
}

// Render builds the frame for now, writes its text if it changed and
// broadcasts it.
func (s *Surface) Render(now time.Time) Frame {
	f := s.build(now)

	s.mu.Lock()
	changed := !s.hasFrame || s.frame.Text != f.Text
	s.frame, s.hasFrame = f, true
	s.mu.Unlock()

	if changed && s.out != nil {
		if _, err := fmt.Fprintln(s.out, f.Text); err != nil {
			slog.Warn("display: write failed", "err", err)
		}
	}
	if msg, err := json.Marshal(Message{Event: "frame", Data: f}); err == nil {
		s.hub.Broadcast(msg)
	}
	return f
}

func (s *Surface) build(now time.Time) Frame {
	f := Frame{At: now, Stale: s.live.State() == liveness.StateStale}
	if r, ok := s.readings.Latest(); ok {
		f.BPM = int(math.Round(r.BPM))
	}
	if f.Stale {
		f.Text = s.prompt
	} else {
		f.Text = fmt.Sprintf("%d BPM", f.BPM)
	}
	return f
}

// Current returns the last rendered frame.
func (s *Surface) Current() (Frame, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frame, s.hasFrame
}

// Run renders immediately and then every interval until ctx is cancelled,
// when it disconnects all WebSocket clients.
func (s *Surface) Run(ctx context.Context) {
	t := time.NewTicker(s.interval)
	defer t.Stop()
	defer s.hub.Close()

	s.Render(s.now())
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.Render(s.now())
		}
	}
}

// ServeHTTP serves the WebSocket frame stream.
func (s *Surface) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.hub.ServeHTTP(w, r)
}

// Clients returns the number of connected WebSocket clients.
func (s *Surface) Clients() int {
	return s.hub.Count()
}

func (s *Surface) initialMessage() ([]byte, bool) {
	f, ok := s.Current()
	if !ok {
		return nil, false
	}
	msg, err := json.Marshal(Message{Event: "frame", Data: f})
	return msg, err == nil
}
