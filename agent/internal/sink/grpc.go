package sink

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"

	"github.com/pulsebridge/pulsebridge/agent/internal/config"
	"github.com/pulsebridge/pulsebridge/pkg/pulsev1"
	"github.com/pulsebridge/pulsebridge/pkg/types"
)

// grpcSink sends records to a pulsebridge server.
type grpcSink struct {
	cfg     config.SinkConfig
	agentID string
	conn    *grpc.ClientConn
	client  pulsev1.ReadingServiceClient
}

func newGRPCSink(cfg config.SinkConfig, agentID string) (*grpcSink, error) {
	opts, err := dialOptions(cfg)
	if err != nil {
		return nil, err
	}
	// Dial does not block; the connection is established on first use.
	conn, err := grpc.Dial(cfg.Endpoint, opts...) //nolint:staticcheck // NewClient needs grpc 1.63
	if err != nil {
		return nil, fmt.Errorf("sink: dial %s: %w", cfg.Endpoint, err)
	}
	return newGRPCSinkConn(cfg, agentID, conn), nil
}

func newGRPCSinkConn(cfg config.SinkConfig, agentID string, conn *grpc.ClientConn) *grpcSink {
	return &grpcSink{
		cfg:     cfg,
		agentID: agentID,
		conn:    conn,
		client:  pulsev1.NewReadingServiceClient(conn),
	}
}

func (s *grpcSink) Name() string { return "grpc" }

func (s *grpcSink) Write(ctx context.Context, rec types.Record) error {
	md := metadata.Pairs(pulsev1.AgentIDHeader, s.agentID)
	if s.cfg.Auth.Mode == "apikey" {
		md.Set(s.cfg.Auth.EffectiveHeader(), s.cfg.Auth.Key())
	}
	ctx = metadata.NewOutgoingContext(ctx, md)

	if _, err := s.client.PutReading(ctx, pulsev1.RecordToStruct(rec)); err != nil {
		return fmt.Errorf("grpc put %s: %w", rec.Key, err)
	}
	return nil
}

func (s *grpcSink) Close() error {
	return s.conn.Close()
}

// dialOptions builds the transport credentials for cfg.
func dialOptions(cfg config.SinkConfig) ([]grpc.DialOption, error) {
	switch {
	case cfg.Auth.Mode == "mtls":
		creds, err := buildMTLSCreds(cfg.Auth, cfg.TLS)
		if err != nil {
			return nil, fmt.Errorf("sink: build mtls creds: %w", err)
		}
		return []grpc.DialOption{grpc.WithTransportCredentials(creds)}, nil

	case cfg.TLS.Enabled:
		creds := credentials.NewTLS(&tls.Config{
			InsecureSkipVerify: cfg.TLS.InsecureSkipVerify, //nolint:gosec // user-configured
		})
		return []grpc.DialOption{grpc.WithTransportCredentials(creds)}, nil

	default:
		return []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, nil
	}
}

// buildMTLSCreds loads client certificate and optional CA from the auth config.
func buildMTLSCreds(auth config.AuthConfig, tlsOpts config.TLSConfig) (credentials.TransportCredentials, error) {
	cert, err := tls.LoadX509KeyPair(auth.CertFile, auth.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("load client cert: %w", err)
	}

	tlsCfg := &tls.Config{
		Certificates:       []tls.Certificate{cert},
		InsecureSkipVerify: tlsOpts.InsecureSkipVerify, //nolint:gosec // user-configured
	}

	if auth.CAFile != "" {
		caPEM, err := os.ReadFile(auth.CAFile)
		if err != nil {
			return nil, fmt.Errorf("read ca file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caPEM) {
			return nil, fmt.Errorf("no valid certs in ca file %q", auth.CAFile)
		}
		tlsCfg.RootCAs = pool
	}

	return credentials.NewTLS(tlsCfg), nil
}
