package sensor

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"
)

// readerSource reads one value per line. Blank lines and lines starting
// with '#' are skipped. A single scanner owns r for the life of the
// source; subscriptions only gate delivery, so a line read while
// unsubscribed waits for the next Subscribe.
type readerSource struct {
	name string
	r    io.Reader
	now  func() time.Time

	scan  sync.Once
	lines chan string

	runner
}

// NewReaderSource returns a Source that reads samples from r, one per line.
// Delivery ends at EOF; the stream then goes stale.
func NewReaderSource(name string, r io.Reader) Source {
	return &readerSource{name: name, r: r, now: time.Now, lines: make(chan string)}
}

func (s *readerSource) Name() string { return s.name }

func (s *readerSource) startScanner() {
	go func() {
		defer close(s.lines)
		sc := bufio.NewScanner(s.r)
		for sc.Scan() {
			s.lines <- sc.Text()
		}
		if err := sc.Err(); err != nil {
			slog.Error("sensor: read failed", "source", s.name, "err", err)
		}
	}()
}

func (s *readerSource) Subscribe(ctx context.Context, h Handler) error {
	s.scan.Do(s.startScanner)
	return s.start(ctx, func(ctx context.Context) {
		for {
			select {
			case <-ctx.Done():
				return
			case line, ok := <-s.lines:
				if !ok {
					slog.Info("sensor: input closed", "source", s.name)
					return
				}
				line = strings.TrimSpace(line)
				if line == "" || strings.HasPrefix(line, "#") {
					continue
				}
				v, err := strconv.ParseFloat(line, 64)
				if err != nil {
					slog.Debug("sensor: dropping unparseable line", "source", s.name, "line", line)
					continue
				}
				h(v, s.now())
			}
		}
	})
}

// Unsubscribe stops delivery. A read blocked on the underlying reader is
// left pending and its line goes to the next subscription.
func (s *readerSource) Unsubscribe() error {
	s.stop()
	return nil
}
