package sink

import (
	"context"
	"fmt"

	"github.com/pulsebridge/pulsebridge/agent/internal/config"
	"github.com/pulsebridge/pulsebridge/pkg/types"
)

// Sink is a remote store for records.
type Sink interface {
	Write(ctx context.Context, rec types.Record) error
	Name() string
	Close() error
}

// New returns the Sink for cfg.Type. agentID is attached to every write
// where the store supports it.
func New(cfg config.SinkConfig, agentID string) (Sink, error) {
	switch cfg.Type {
	case "grpc":
		return newGRPCSink(cfg, agentID)
	case "firebase":
		return newFirebaseSink(cfg)
	case "redis":
		return newRedisSink(cfg)
	default:
		return nil, fmt.Errorf("sink: unsupported type %q", cfg.Type)
	}
}
