package receiver

import (
	"context"
	"log/slog"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/pulsebridge/pulsebridge/pkg/pulsev1"
	"github.com/pulsebridge/pulsebridge/server/internal/alerts"
	"github.com/pulsebridge/pulsebridge/server/internal/store"
)

// Receiver implements pulsev1.ReadingServiceServer.
type Receiver struct {
	pulsev1.UnimplementedReadingServiceServer
	store  *store.Store
	alerts *alerts.Engine
}

// New creates a Receiver that writes accepted readings to st and evaluates
// them against eng. eng may be nil.
func New(st *store.Store, eng *alerts.Engine) *Receiver {
	return &Receiver{store: st, alerts: eng}
}

// PutReading validates and stores one reading.
func (r *Receiver) PutReading(ctx context.Context, in *structpb.Struct) (*emptypb.Empty, error) {
	rec, err := pulsev1.RecordFromStruct(in)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if err := rec.Validate(); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	agentID := agentIDFrom(ctx)
	if _, err := r.store.Put(ctx, rec, agentID); err != nil {
		slog.Error("receiver: store failed", "key", rec.Key, "agent_id", agentID, "err", err)
		return nil, status.Error(codes.Internal, "store failed")
	}

	slog.Debug("receiver: reading stored",
		"key", rec.Key,
		"bpm", rec.BPM,
		"agent_id", agentID,
	)
	if r.alerts != nil {
		r.alerts.Evaluate(rec, agentID)
	}
	return &emptypb.Empty{}, nil
}

func agentIDFrom(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	if v := md.Get(pulsev1.AgentIDHeader); len(v) > 0 {
		return v[0]
	}
	return ""
}
