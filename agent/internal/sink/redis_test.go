package sink

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pulsebridge/pulsebridge/agent/internal/config"
)

type fakeRedis struct {
	sets      map[string]string
	published map[string][]string
	setErr    error
	pubErr    error
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{sets: map[string]string{}, published: map[string][]string{}}
}

func (f *fakeRedis) Set(_ context.Context, key string, value interface{}, _ time.Duration) *redis.StatusCmd {
	if f.setErr != nil {
		return redis.NewStatusResult("", f.setErr)
	}
	f.sets[key] = string(value.([]byte))
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Publish(_ context.Context, channel string, message interface{}) *redis.IntCmd {
	if f.pubErr != nil {
		return redis.NewIntResult(0, f.pubErr)
	}
	f.published[channel] = append(f.published[channel], string(message.([]byte)))
	return redis.NewIntResult(1, nil)
}

func (f *fakeRedis) Close() error { return nil }

func TestRedisSink_Write(t *testing.T) {
	fake := newFakeRedis()
	s := &redisSink{prefix: "heartrate", rdb: fake}

	if err := s.Write(context.Background(), sampleRecord()); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	stored, ok := fake.sets["heartrate:2026-03-04_09:15:30"]
	if !ok {
		t.Fatalf("no value stored; keys = %v", fake.sets)
	}
	var body map[string]any
	if err := json.Unmarshal([]byte(stored), &body); err != nil {
		t.Fatal(err)
	}
	if body["bpm"] != 72.5 {
		t.Errorf("stored bpm = %v", body["bpm"])
	}
	if msgs := fake.published["heartrate"]; len(msgs) != 1 || msgs[0] != stored {
		t.Errorf("published = %v", msgs)
	}
}

func TestRedisSink_SetError(t *testing.T) {
	fake := newFakeRedis()
	fake.setErr = errors.New("NOAUTH Authentication required")
	s := &redisSink{prefix: "heartrate", rdb: fake}

	if err := s.Write(context.Background(), sampleRecord()); err == nil {
		t.Fatal("Write() expected error, got nil")
	}
	if len(fake.published) != 0 {
		t.Error("published after a failed SET")
	}
}

func TestRedisSink_PublishErrorIsNotFatal(t *testing.T) {
	fake := newFakeRedis()
	fake.pubErr = errors.New("connection reset")
	s := &redisSink{prefix: "heartrate", rdb: fake}

	if err := s.Write(context.Background(), sampleRecord()); err != nil {
		t.Fatalf("Write() error = %v, want nil", err)
	}
}

func TestNew_Sinks(t *testing.T) {
	tests := []config.SinkConfig{
		{Type: "grpc", Endpoint: "localhost:50051", Path: "heartrate"},
		{Type: "firebase", Endpoint: "https://example-rtdb.firebaseio.com", Path: "heartrate"},
		{Type: "redis", Endpoint: "localhost:6379", Path: "heartrate"},
	}
	for _, cfg := range tests {
		s, err := New(cfg, "wrist-01")
		if err != nil {
			t.Fatalf("New(%s) error = %v", cfg.Type, err)
		}
		if s.Name() != cfg.Type {
			t.Errorf("Name() = %q, want %q", s.Name(), cfg.Type)
		}
		_ = s.Close()
	}
	if _, err := New(config.SinkConfig{Type: "kafka"}, ""); err == nil {
		t.Error("New(kafka) expected error")
	}
}
