package sensor

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"

	"github.com/pulsebridge/pulsebridge/agent/internal/config"
)

// promSource polls a Prometheus text endpoint and delivers the first sample
// of one metric family on every tick.
type promSource struct {
	cfg    config.SensorConfig
	client *http.Client
	now    func() time.Time

	runner
}

func newPromSource(cfg config.SensorConfig, client *http.Client) *promSource {
	return &promSource{cfg: cfg, client: client, now: time.Now}
}

func (s *promSource) Name() string { return "prometheus" }

// Subscribe polls once immediately, then every PollInterval until
// Unsubscribe or ctx is cancelled.
func (s *promSource) Subscribe(ctx context.Context, h Handler) error {
	interval := s.cfg.PollInterval
	if interval <= 0 {
		interval = config.DefaultPollInterval
	}
	return s.start(ctx, func(ctx context.Context) {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			s.poll(ctx, h)
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	})
}

func (s *promSource) Unsubscribe() error {
	s.stop()
	return nil
}

// poll performs one fetch. Failures are logged and produce no sample, so a
// broken endpoint shows up as a stale stream.
func (s *promSource) poll(ctx context.Context, h Handler) {
	v, err := s.read(ctx)
	if err != nil {
		if ctx.Err() == nil {
			slog.Warn("sensor: prometheus fetch failed", "endpoint", s.cfg.Endpoint, "err", err)
		}
		return
	}
	h(v, s.now())
}

func (s *promSource) read(ctx context.Context) (float64, error) {
	mfs, err := fetchMetrics(ctx, s.client, s.cfg.Endpoint)
	if err != nil {
		return 0, err
	}
	v, ok := firstSample(mfs[s.cfg.Metric])
	if !ok {
		return 0, fmt.Errorf("metric %q not present", s.cfg.Metric)
	}
	return v, nil
}

// fetchMetrics performs an HTTP GET to url and returns parsed metric families.
func fetchMetrics(ctx context.Context, client *http.Client, url string) (map[string]*dto.MetricFamily, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", string(expfmt.NewFormat(expfmt.TypeTextPlain)))

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http get: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return parseMetrics(resp.Body)
}

// parseMetrics decodes a Prometheus text exposition from r into metric families.
// A partial result with a non-fatal parse warning is still returned successfully.
func parseMetrics(r io.Reader) (map[string]*dto.MetricFamily, error) {
	var parser expfmt.TextParser
	mfs, err := parser.TextToMetricFamilies(r)
	if err != nil && len(mfs) == 0 {
		return nil, fmt.Errorf("parse prometheus text: %w", err)
	}
	return mfs, nil
}

// firstSample returns the value of the first gauge, counter or untyped
// sample in mf.
func firstSample(mf *dto.MetricFamily) (float64, bool) {
	if mf == nil {
		return 0, false
	}
	for _, m := range mf.GetMetric() {
		switch {
		case m.Gauge != nil:
			return m.Gauge.GetValue(), true
		case m.Counter != nil:
			return m.Counter.GetValue(), true
		case m.Untyped != nil:
			return m.Untyped.GetValue(), true
		}
	}
	return 0, false
}
