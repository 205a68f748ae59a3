package sensor

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pulsebridge/pulsebridge/agent/internal/config"
)

// wearableMetrics is a typical exporter page from a wrist-worn device bridge.
const wearableMetrics = `
# HELP heart_rate_bpm Current heart rate in beats per minute.
# TYPE heart_rate_bpm gauge
heart_rate_bpm{device="watch-01"} 72.5
heart_rate_bpm{device="watch-02"} 64

# HELP sensor_battery_ratio Battery charge.
# TYPE sensor_battery_ratio gauge
sensor_battery_ratio 0.81
`

type collector struct {
	mu     sync.Mutex
	values []float64
	got    chan struct{}
}

func newCollector() *collector {
	return &collector{got: make(chan struct{}, 64)}
}

func (c *collector) handle(v float64, _ time.Time) {
	c.mu.Lock()
	c.values = append(c.values, v)
	c.mu.Unlock()
	c.got <- struct{}{}
}

func (c *collector) snapshot() []float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]float64(nil), c.values...)
}

func (c *collector) waitFor(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-c.got:
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for sample %d of %d", i+1, n)
		}
	}
}

func TestPromSource_DeliversFirstSample(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		_, _ = w.Write([]byte(wearableMetrics))
	}))
	defer srv.Close()

	s := newPromSource(config.SensorConfig{
		Endpoint:     srv.URL,
		Metric:       "heart_rate_bpm",
		PollInterval: 20 * time.Millisecond,
	}, srv.Client())

	c := newCollector()
	if err := s.Subscribe(context.Background(), c.handle); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	c.waitFor(t, 2)
	if err := s.Unsubscribe(); err != nil {
		t.Fatalf("Unsubscribe() error = %v", err)
	}

	for _, v := range c.snapshot() {
		if v != 72.5 {
			t.Errorf("sample = %v, want 72.5", v)
		}
	}
}

func TestPromSource_MissingMetricDeliversNothing(t *testing.T) {
	var hits int
	var mu sync.Mutex
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		mu.Lock()
		hits++
		mu.Unlock()
		_, _ = w.Write([]byte("sensor_battery_ratio 0.5\n"))
	}))
	defer srv.Close()

	s := newPromSource(config.SensorConfig{
		Endpoint:     srv.URL,
		Metric:       "heart_rate_bpm",
		PollInterval: 10 * time.Millisecond,
	}, srv.Client())

	c := newCollector()
	if err := s.Subscribe(context.Background(), c.handle); err != nil {
		t.Fatal(err)
	}
	time.Sleep(60 * time.Millisecond)
	_ = s.Unsubscribe()

	if got := c.snapshot(); len(got) != 0 {
		t.Errorf("samples = %v, want none", got)
	}
	mu.Lock()
	defer mu.Unlock()
	if hits == 0 {
		t.Error("endpoint was never polled")
	}
}

func TestPromSource_HTTPErrorDeliversNothing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	s := newPromSource(config.SensorConfig{Endpoint: srv.URL, Metric: "heart_rate_bpm"}, srv.Client())
	if _, err := s.read(context.Background()); err == nil {
		t.Fatal("read() expected error for 503, got nil")
	}
}

func TestPromSource_DoubleSubscribe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(wearableMetrics))
	}))
	defer srv.Close()

	s := newPromSource(config.SensorConfig{Endpoint: srv.URL, Metric: "heart_rate_bpm", PollInterval: time.Hour}, srv.Client())
	noop := func(float64, time.Time) {}
	if err := s.Subscribe(context.Background(), noop); err != nil {
		t.Fatal(err)
	}
	defer s.Unsubscribe()
	if err := s.Subscribe(context.Background(), noop); err != ErrSubscribed {
		t.Errorf("second Subscribe() = %v, want ErrSubscribed", err)
	}
}

func TestPromSource_UnsubscribeIdempotent(t *testing.T) {
	s := newPromSource(config.SensorConfig{}, http.DefaultClient)
	if err := s.Unsubscribe(); err != nil {
		t.Errorf("Unsubscribe() before Subscribe: %v", err)
	}
}

func TestFirstSample(t *testing.T) {
	mfs, err := parseMetrics(strings.NewReader(wearableMetrics))
	if err != nil {
		t.Fatal(err)
	}
	if v, ok := firstSample(mfs["heart_rate_bpm"]); !ok || v != 72.5 {
		t.Errorf("firstSample(heart_rate_bpm) = %v, %v", v, ok)
	}
	if _, ok := firstSample(mfs["absent"]); ok {
		t.Error("firstSample(nil) should report not found")
	}
}

func TestAuthRoundTripper(t *testing.T) {
	t.Setenv("SENSOR_KEY", "k1")
	t.Setenv("SENSOR_TOKEN", "t1")
	t.Setenv("SENSOR_PW", "p1")

	tests := []struct {
		name  string
		auth  config.AuthConfig
		check func(*http.Request) bool
	}{
		{"apikey", config.AuthConfig{Mode: "apikey", Header: "X-Sensor-Key", KeyEnv: "SENSOR_KEY"},
			func(r *http.Request) bool { return r.Header.Get("X-Sensor-Key") == "k1" }},
		{"bearer", config.AuthConfig{Mode: "bearer", TokenEnv: "SENSOR_TOKEN"},
			func(r *http.Request) bool { return r.Header.Get("Authorization") == "Bearer t1" }},
		{"basic", config.AuthConfig{Mode: "basic", Username: "u", PasswordEnv: "SENSOR_PW"},
			func(r *http.Request) bool { u, p, ok := r.BasicAuth(); return ok && u == "u" && p == "p1" }},
		{"none", config.AuthConfig{},
			func(r *http.Request) bool { return r.Header.Get("Authorization") == "" }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			result := make(chan bool, 1)
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				result <- tc.check(r)
			}))
			defer srv.Close()

			client, err := buildHTTPClient(config.SensorConfig{Auth: tc.auth})
			if err != nil {
				t.Fatal(err)
			}
			resp, err := client.Get(srv.URL)
			if err != nil {
				t.Fatal(err)
			}
			resp.Body.Close()
			if !<-result {
				t.Error("request did not carry the expected credentials")
			}
		})
	}
}

func TestNew_Types(t *testing.T) {
	for _, typ := range []string{"prometheus", "mqtt", "stdin"} {
		s, err := New(config.SensorConfig{Type: typ, Endpoint: "tcp://localhost:1883"})
		if err != nil {
			t.Fatalf("New(%q) error = %v", typ, err)
		}
		if s.Name() != typ {
			t.Errorf("New(%q).Name() = %q", typ, s.Name())
		}
	}
	if _, err := New(config.SensorConfig{Type: "bluetooth"}); err == nil {
		t.Error("New(bluetooth) expected error")
	}
}
