package sensor

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/pulsebridge/pulsebridge/agent/internal/config"
)

const defaultFetchTimeout = 10 * time.Second

// ErrSubscribed is returned by Subscribe when the source is already running.
var ErrSubscribed = errors.New("sensor: already subscribed")

// Handler receives one raw sample and the time it was observed.
type Handler func(value float64, at time.Time)

// Source is the common interface implemented by every sample source.
type Source interface {
	Subscribe(ctx context.Context, h Handler) error
	Unsubscribe() error
	Name() string
}

// New returns the Source for cfg.Type.
func New(cfg config.SensorConfig) (Source, error) {
	switch cfg.Type {
	case "prometheus":
		client, err := buildHTTPClient(cfg)
		if err != nil {
			return nil, fmt.Errorf("sensor: build http client: %w", err)
		}
		return newPromSource(cfg, client), nil
	case "mqtt":
		tlsCfg, err := buildTLSConfig(cfg)
		if err != nil {
			return nil, fmt.Errorf("sensor: tls: %w", err)
		}
		return newMQTTSource(cfg, tlsCfg), nil
	case "stdin":
		return NewReaderSource("stdin", os.Stdin), nil
	default:
		return nil, fmt.Errorf("sensor: unsupported type %q", cfg.Type)
	}
}

// runner owns the background goroutine of a polling or reading source.
type runner struct {
	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func (r *runner) start(ctx context.Context, fn func(ctx context.Context)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		return ErrSubscribed
	}
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	r.cancel, r.done = cancel, done
	go func() {
		defer close(done)
		fn(ctx)
	}()
	return nil
}

// stop cancels the goroutine and waits for it to exit. Safe to call when
// not running.
func (r *runner) stop() {
	r.mu.Lock()
	cancel, done := r.cancel, r.done
	r.cancel, r.done = nil, nil
	r.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// authRoundTripper injects authentication headers into every outgoing request.
type authRoundTripper struct {
	base http.RoundTripper
	auth config.AuthConfig
}

func (t *authRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	switch t.auth.Mode {
	case "apikey":
		req = req.Clone(req.Context())
		req.Header.Set(t.auth.EffectiveHeader(), t.auth.Key())
	case "bearer":
		req = req.Clone(req.Context())
		req.Header.Set("Authorization", "Bearer "+t.auth.Token())
	case "basic":
		req = req.Clone(req.Context())
		req.SetBasicAuth(t.auth.Username, t.auth.Password())
	}
	return t.base.RoundTrip(req)
}

// buildHTTPClient constructs an http.Client for the sensor's auth and TLS settings.
func buildHTTPClient(cfg config.SensorConfig) (*http.Client, error) {
	tlsCfg, err := buildTLSConfig(cfg)
	if err != nil {
		return nil, err
	}
	if tlsCfg == nil {
		tlsCfg = &tls.Config{}
	}
	return &http.Client{
		Transport: &authRoundTripper{
			base: &http.Transport{TLSClientConfig: tlsCfg},
			auth: cfg.Auth,
		},
		Timeout: defaultFetchTimeout,
	}, nil
}

// buildTLSConfig returns nil when neither TLS nor mTLS is configured.
func buildTLSConfig(cfg config.SensorConfig) (*tls.Config, error) {
	if cfg.Auth.Mode != "mtls" && !cfg.TLS.Enabled && !cfg.TLS.InsecureSkipVerify {
		return nil, nil
	}
	tlsCfg := &tls.Config{
		InsecureSkipVerify: cfg.TLS.InsecureSkipVerify, //nolint:gosec // user-configured
	}
	if cfg.Auth.Mode != "mtls" {
		return tlsCfg, nil
	}

	cert, err := tls.LoadX509KeyPair(cfg.Auth.CertFile, cfg.Auth.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("load client cert: %w", err)
	}
	tlsCfg.Certificates = []tls.Certificate{cert}

	if cfg.Auth.CAFile != "" {
		caPEM, err := os.ReadFile(cfg.Auth.CAFile)
		if err != nil {
			return nil, fmt.Errorf("read ca file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caPEM) {
			return nil, fmt.Errorf("no valid certs found in ca file %q", cfg.Auth.CAFile)
		}
		tlsCfg.RootCAs = pool
	}
	return tlsCfg, nil
}
