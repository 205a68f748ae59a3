package telemetry

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_Counters(t *testing.T) {
	m := New()
	m.ReadingAccepted(72)
	m.ReadingAccepted(75)
	m.ReadingDiscarded()
	m.ReadingThrottled()
	m.WriteFinished(nil, 10*time.Millisecond)
	m.WriteFinished(errors.New("boom"), 20*time.Millisecond)
	m.SetStale(true)

	if got := testutil.ToFloat64(m.accepted); got != 2 {
		t.Errorf("accepted = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.discarded); got != 1 {
		t.Errorf("discarded = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.throttled); got != 1 {
		t.Errorf("throttled = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.writes.WithLabelValues("ok")); got != 1 {
		t.Errorf("writes{ok} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.writes.WithLabelValues("error")); got != 1 {
		t.Errorf("writes{error} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.lastBPM); got != 75 {
		t.Errorf("last bpm = %v, want 75", got)
	}
	if got := testutil.ToFloat64(m.stale); got != 1 {
		t.Errorf("stale = %v, want 1", got)
	}
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	m.ReadingAccepted(1)
	m.ReadingDiscarded()
	m.ReadingThrottled()
	m.WriteFinished(nil, time.Second)
	m.SetStale(false)
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.ReadingAccepted(60)

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rr.Body)

	if !strings.Contains(string(body), ReadingsAcceptedTotal+" 1") {
		t.Errorf("exposition missing %s:\n%s", ReadingsAcceptedTotal, body)
	}
}
