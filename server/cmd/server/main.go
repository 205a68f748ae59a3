package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"

	"github.com/pulsebridge/pulsebridge/pkg/pulsev1"
	"github.com/pulsebridge/pulsebridge/server/internal/alerts"
	"github.com/pulsebridge/pulsebridge/server/internal/api"
	"github.com/pulsebridge/pulsebridge/server/internal/auth"
	"github.com/pulsebridge/pulsebridge/server/internal/config"
	"github.com/pulsebridge/pulsebridge/server/internal/receiver"
	"github.com/pulsebridge/pulsebridge/server/internal/store"
	"github.com/pulsebridge/pulsebridge/server/internal/ws"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	level := new(slog.LevelVar)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	slog.Info("pulsebridge-server starting", "config", *configPath)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	s := cfg.Server
	level.Set(s.SlogLevel())

	slog.Info("config loaded",
		"grpc_port", s.GRPCPort,
		"http_port", s.HTTPPort,
		"auth_mode", s.Auth.Mode,
		"retention_ttl", s.Retention.TTL,
		"storage", s.Storage.Backend,
		"alert_rules", len(s.Alerts.Rules),
	)

	// Alerts engine: evaluates rules on every accepted reading.
	alertEngine, err := alerts.New(s.Alerts)
	if err != nil {
		slog.Error("failed to build alert rules", "err", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	st, err := openStore(ctx, s)
	if err != nil {
		slog.Error("failed to open store", "err", err)
		os.Exit(1)
	}
	defer st.Close() //nolint:errcheck
	go st.Run(ctx)

	// gRPC server with optional API key authentication interceptor.
	interceptor := auth.APIKeyInterceptor(s.Auth.Mode, s.Auth.EffectiveHeader(), s.Auth.Key())
	grpcSrv := grpc.NewServer(grpc.UnaryInterceptor(interceptor))
	pulsev1.RegisterReadingServiceServer(grpcSrv, receiver.New(st, alertEngine))

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", s.GRPCPort))
	if err != nil {
		slog.Error("failed to listen on gRPC port", "port", s.GRPCPort, "err", err)
		os.Exit(1)
	}

	go func() {
		slog.Info("gRPC receiver listening", "port", s.GRPCPort)
		if err := grpcSrv.Serve(lis); err != nil {
			slog.Error("gRPC server stopped", "err", err)
		}
	}()

	hub := ws.New(st, s.Stream.Interval)
	go hub.Run(ctx)

	// Combined HTTP server: REST API, RTDB-shaped writes and the stream.
	apiHandler := api.New(st, api.Options{
		RTDBPath:  s.RTDBPath,
		WriteAuth: auth.Middleware(s.Auth.Mode, s.Auth.EffectiveHeader(), s.Auth.Key()),
		Alerts:    alertEngine,
	})
	httpMux := http.NewServeMux()
	httpMux.Handle("/api/", apiHandler)
	httpMux.Handle("/db/", apiHandler)
	httpMux.Handle("/ws/stream", hub)

	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.HTTPPort),
		Handler:           httpMux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		slog.Info("HTTP server listening", "port", s.HTTPPort)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server stopped", "err", err)
		}
	}()

	<-ctx.Done()
	slog.Info("pulsebridge-server shutting down")
	grpcSrv.GracefulStop()

	shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
	defer done()
	httpSrv.Shutdown(shutdownCtx) //nolint:errcheck
	alertEngine.Wait()
}

// openStore builds the reading store for the configured backend.
func openStore(ctx context.Context, s config.ServerConfig) (*store.Store, error) {
	switch s.Storage.Backend {
	case config.BackendSQLite:
		db, err := store.OpenSQLite(ctx, s.Storage.Path)
		if err != nil {
			return nil, err
		}
		st, err := store.Open(ctx, s.Retention.TTL, db)
		if err != nil {
			db.Close() //nolint:errcheck
			return nil, err
		}
		slog.Info("store: sqlite backend", "path", s.Storage.Path, "loaded", st.Count())
		return st, nil
	default:
		return store.New(s.Retention.TTL), nil
	}
}
