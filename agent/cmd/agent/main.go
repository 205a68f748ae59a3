package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/pulsebridge/pulsebridge/agent/internal/config"
	"github.com/pulsebridge/pulsebridge/agent/internal/display"
	"github.com/pulsebridge/pulsebridge/agent/internal/forwarder"
	"github.com/pulsebridge/pulsebridge/agent/internal/liveness"
	"github.com/pulsebridge/pulsebridge/agent/internal/permission"
	"github.com/pulsebridge/pulsebridge/agent/internal/sensor"
	"github.com/pulsebridge/pulsebridge/agent/internal/sink"
	"github.com/pulsebridge/pulsebridge/agent/internal/telemetry"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	level := new(slog.LevelVar)
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	slog.Info("pulsebridge-agent starting", "config", *configPath)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	level.Set(cfg.Agent.SlogLevel())
	slog.Info("config loaded",
		"agent_id", cfg.Agent.ID,
		"sensor", cfg.Agent.Sensor.Type,
		"sink", cfg.Agent.Sink.Type,
		"throttle_window", cfg.Agent.Forwarder.ThrottleWindow,
	)

	if err := run(cfg, *configPath, level); err != nil {
		slog.Error("agent stopped", "err", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, configPath string, level *slog.LevelVar) error {
	a := cfg.Agent

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	loc, err := a.Forwarder.TimeLocation()
	if err != nil {
		return err
	}
	decision, err := permission.Parse(a.Sensor.Access)
	if err != nil {
		return err
	}

	src, err := sensor.New(a.Sensor)
	if err != nil {
		return err
	}
	out, err := sink.New(a.Sink, a.ID)
	if err != nil {
		return err
	}

	metrics := telemetry.New()
	monitor := liveness.New(time.Now(), a.Liveness.StaleThreshold, a.Liveness.TickInterval)
	fwd := forwarder.New(out, monitor, forwarder.Options{
		ThrottleWindow: a.Forwarder.ThrottleWindow,
		WriteTimeout:   a.Forwarder.WriteTimeout,
		Location:       loc,
		Metrics:        metrics,
	})

	var displayOut io.Writer
	if a.Display.Output == "stdout" {
		displayOut = os.Stdout
	}
	surface := display.New(fwd, monitor, display.Options{
		Out:      displayOut,
		Prompt:   a.Display.Prompt,
		Interval: a.Liveness.TickInterval,
	})

	gate := permission.New(decision)

	// Reload resolves a prompt decision, revokes access and changes the log
	// level. Sensor and sink settings take effect on restart.
	go func() {
		if err := config.Watch(ctx, configPath, func(updated *config.Config) {
			level.Set(updated.Agent.SlogLevel())
			if d, err := permission.Parse(updated.Agent.Sensor.Access); err == nil {
				gate.Set(d)
			}
		}); err != nil {
			slog.Error("config watcher stopped", "err", err)
		}
	}()

	states, unsubscribe := monitor.Subscribe()
	defer unsubscribe()

	var wg sync.WaitGroup
	wg.Add(4)
	go func() { defer wg.Done(); monitor.Run(ctx) }()
	go func() { defer wg.Done(); surface.Run(ctx) }()
	go func() {
		defer wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case s := <-states:
				metrics.SetStale(s == liveness.StateStale)
			}
		}
	}()
	go func() { defer wg.Done(); sensor.Run(ctx, gate, src, fwd.Accept) }()

	var srv *http.Server
	if a.HTTPPort > 0 {
		srv = &http.Server{
			Addr:              fmt.Sprintf(":%d", a.HTTPPort),
			Handler:           newMux(a.ID, fwd, monitor, surface, metrics),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			slog.Info("http listening", "addr", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("http server error", "err", err)
				cancel()
			}
		}()
	}

	<-ctx.Done()
	slog.Info("pulsebridge-agent shutting down")

	if srv != nil {
		shutCtx, shutCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutCancel()
		if err := srv.Shutdown(shutCtx); err != nil {
			slog.Error("http shutdown error", "err", err)
		}
	}

	wg.Wait()
	fwd.Wait()
	return out.Close()
}

type healthResponse struct {
	Status     string    `json:"status"`
	AgentID    string    `json:"agent_id"`
	Stream     string    `json:"stream"`
	LastUpdate time.Time `json:"last_update"`
	LastSent   time.Time `json:"last_sent"`
	BPM        *float64  `json:"bpm,omitempty"`
}

func newMux(agentID string, fwd *forwarder.Forwarder, monitor *liveness.Monitor, surface *display.Surface, metrics *telemetry.Metrics) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		resp := healthResponse{
			Status:     "ok",
			AgentID:    agentID,
			Stream:     string(monitor.State()),
			LastUpdate: monitor.LastUpdate().UTC(),
			LastSent:   fwd.LastSent().UTC(),
		}
		if r, ok := fwd.Latest(); ok {
			resp.BPM = &r.BPM
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	})
	mux.Handle("/metrics", metrics.Handler())
	mux.Handle("/ws/display", surface)
	return mux
}
