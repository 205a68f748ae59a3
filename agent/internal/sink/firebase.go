package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pulsebridge/pulsebridge/agent/internal/config"
	"github.com/pulsebridge/pulsebridge/pkg/types"
)

// firebaseSink writes records through the Realtime Database REST API.
type firebaseSink struct {
	base   string
	path   string
	token  string
	client *http.Client
}

func newFirebaseSink(cfg config.SinkConfig) (*firebaseSink, error) {
	u, err := url.Parse(cfg.Endpoint)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("sink: firebase endpoint %q is not an absolute URL", cfg.Endpoint)
	}
	return &firebaseSink{
		base:   strings.TrimRight(cfg.Endpoint, "/"),
		path:   strings.Trim(cfg.Path, "/"),
		token:  cfg.Auth.Token(),
		client: &http.Client{Timeout: 30 * time.Second},
	}, nil
}

func (s *firebaseSink) Name() string { return "firebase" }

// url returns the child URL for key. Keys contain ':' which is legal in a
// path segment, so PathEscape leaves them readable.
func (s *firebaseSink) url(key string) string {
	u := s.base + "/" + s.path + "/" + url.PathEscape(key) + ".json"
	if s.token != "" {
		u += "?auth=" + url.QueryEscape(s.token)
	}
	return u
}

func (s *firebaseSink) Write(ctx context.Context, rec types.Record) error {
	body, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, s.url(rec.Key), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("firebase put %s: %w", rec.Key, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("firebase put %s: status %d: %s", rec.Key, resp.StatusCode, bytes.TrimSpace(msg))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func (s *firebaseSink) Close() error {
	s.client.CloseIdleConnections()
	return nil
}
