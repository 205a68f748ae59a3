package sink

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pulsebridge/pulsebridge/agent/internal/config"
)

type captured struct {
	method string
	path   string
	auth   string
	body   map[string]any
}

func firebaseServer(t *testing.T, status int) (*httptest.Server, <-chan captured) {
	t.Helper()
	ch := make(chan captured, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		var body map[string]any
		_ = json.Unmarshal(raw, &body)
		ch <- captured{
			method: r.Method,
			path:   r.URL.EscapedPath(),
			auth:   r.URL.Query().Get("auth"),
			body:   body,
		}
		w.WriteHeader(status)
		if status == http.StatusOK {
			_, _ = w.Write(raw)
		} else {
			_, _ = w.Write([]byte(`{"error":"Permission denied"}`))
		}
	}))
	t.Cleanup(srv.Close)
	return srv, ch
}

func TestFirebaseSink_Write(t *testing.T) {
	t.Setenv("RTDB_SECRET", "db-secret")
	srv, ch := firebaseServer(t, http.StatusOK)

	s, err := newFirebaseSink(config.SinkConfig{
		Endpoint: srv.URL + "/",
		Path:     "/heartrate/",
		Auth:     config.AuthConfig{TokenEnv: "RTDB_SECRET"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Write(context.Background(), sampleRecord()); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	got := <-ch
	if got.method != http.MethodPut {
		t.Errorf("method = %s, want PUT", got.method)
	}
	if want := "/heartrate/2026-03-04_09:15:30.json"; got.path != want {
		t.Errorf("path = %q, want %q", got.path, want)
	}
	if got.auth != "db-secret" {
		t.Errorf("auth = %q", got.auth)
	}
	if got.body["bpm"] != 72.5 || got.body["timestamp"] != "2026-03-04_09:15:30" {
		t.Errorf("body = %v", got.body)
	}
	if _, ok := got.body["key"]; ok {
		t.Error("body should not carry the key")
	}
}

func TestFirebaseSink_NoToken(t *testing.T) {
	srv, ch := firebaseServer(t, http.StatusOK)
	s, err := newFirebaseSink(config.SinkConfig{Endpoint: srv.URL, Path: "heartrate"})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Write(context.Background(), sampleRecord()); err != nil {
		t.Fatal(err)
	}
	if got := <-ch; got.auth != "" {
		t.Errorf("auth param sent without a token: %q", got.auth)
	}
}

func TestFirebaseSink_Non2xx(t *testing.T) {
	srv, _ := firebaseServer(t, http.StatusUnauthorized)
	s, err := newFirebaseSink(config.SinkConfig{Endpoint: srv.URL, Path: "heartrate"})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Write(context.Background(), sampleRecord()); err == nil {
		t.Fatal("Write() expected error for 401, got nil")
	}
}

func TestFirebaseSink_BadEndpoint(t *testing.T) {
	if _, err := newFirebaseSink(config.SinkConfig{Endpoint: "not a url", Path: "x"}); err == nil {
		t.Error("expected error for relative endpoint")
	}
}
