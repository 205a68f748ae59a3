package sensor

import (
	"context"
	"log/slog"
	"time"

	"github.com/pulsebridge/pulsebridge/agent/internal/permission"
)

// resubscribeDelay is how long Run waits after a failed Subscribe.
var resubscribeDelay = 5 * time.Second

// Run keeps src subscribed exactly while gate holds Granted. It blocks
// until ctx is cancelled and leaves src unsubscribed on return.
func Run(ctx context.Context, gate *permission.Gate, src Source, h Handler) {
	for {
		if d := gate.Decision(); d != permission.Granted {
			slog.Warn("sensor: access not granted, waiting", "source", src.Name(), "decision", d)
		}
		if err := gate.WaitGranted(ctx); err != nil {
			return
		}

		if err := src.Subscribe(ctx, h); err != nil {
			slog.Error("sensor: subscribe failed", "source", src.Name(), "err", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(resubscribeDelay):
				continue
			}
		}
		slog.Info("sensor: subscribed", "source", src.Name())

		err := gate.WaitRevoked(ctx)
		if uerr := src.Unsubscribe(); uerr != nil {
			slog.Warn("sensor: unsubscribe failed", "source", src.Name(), "err", uerr)
		}
		if err != nil {
			return
		}
		slog.Info("sensor: unsubscribed, access revoked", "source", src.Name())
	}
}
