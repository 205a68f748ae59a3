package sensor

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/pulsebridge/pulsebridge/agent/internal/config"
)

const mqttWaitTimeout = 10 * time.Second

// mqttSource subscribes one broker topic.
type mqttSource struct {
	cfg config.SensorConfig
	tls *tls.Config
	now func() time.Time

	mu     sync.Mutex
	client mqtt.Client
}

func newMQTTSource(cfg config.SensorConfig, tlsCfg *tls.Config) *mqttSource {
	return &mqttSource{cfg: cfg, tls: tlsCfg, now: time.Now}
}

func (s *mqttSource) Name() string { return "mqtt" }

func (s *mqttSource) clientOptions() *mqtt.ClientOptions {
	opts := mqtt.NewClientOptions().
		AddBroker(s.cfg.Endpoint).
		SetClientID(s.cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectTimeout(mqttWaitTimeout)
	if s.cfg.Auth.Mode == "basic" {
		opts.SetUsername(s.cfg.Auth.Username)
		opts.SetPassword(s.cfg.Auth.Password())
	}
	if s.tls != nil {
		opts.SetTLSConfig(s.tls)
	}
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		slog.Warn("sensor: mqtt connection lost", "broker", s.cfg.Endpoint, "err", err)
	})
	return opts
}

// Subscribe connects to the broker and subscribes the configured topic.
// Delivery continues across reconnects until Unsubscribe.
func (s *mqttSource) Subscribe(_ context.Context, h Handler) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client != nil {
		return ErrSubscribed
	}

	client := mqtt.NewClient(s.clientOptions())
	if err := wait(client.Connect()); err != nil {
		return fmt.Errorf("sensor: mqtt connect %s: %w", s.cfg.Endpoint, err)
	}

	tok := client.Subscribe(s.cfg.Topic, 1, func(_ mqtt.Client, msg mqtt.Message) {
		v, err := parsePayload(msg.Payload())
		if err != nil {
			slog.Debug("sensor: dropping mqtt payload",
				"topic", msg.Topic(), "payload", string(msg.Payload()), "err", err)
			return
		}
		h(v, s.now())
	})
	if err := wait(tok); err != nil {
		client.Disconnect(250)
		return fmt.Errorf("sensor: mqtt subscribe %q: %w", s.cfg.Topic, err)
	}

	slog.Info("sensor: mqtt subscribed", "broker", s.cfg.Endpoint, "topic", s.cfg.Topic)
	s.client = client
	return nil
}

// Unsubscribe removes the topic subscription and disconnects.
func (s *mqttSource) Unsubscribe() error {
	s.mu.Lock()
	client := s.client
	s.client = nil
	s.mu.Unlock()
	if client == nil {
		return nil
	}
	err := wait(client.Unsubscribe(s.cfg.Topic))
	client.Disconnect(250)
	if err != nil {
		return fmt.Errorf("sensor: mqtt unsubscribe: %w", err)
	}
	return nil
}

func wait(tok mqtt.Token) error {
	if !tok.WaitTimeout(mqttWaitTimeout) {
		return errors.New("timed out")
	}
	return tok.Error()
}

type bpmPayload struct {
	BPM *float64 `json:"bpm"`
}

// parsePayload accepts a bare number or a JSON object with a bpm field.
func parsePayload(b []byte) (float64, error) {
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return 0, errors.New("empty payload")
	}
	if b[0] == '{' {
		var p bpmPayload
		if err := json.Unmarshal(b, &p); err != nil {
			return 0, err
		}
		if p.BPM == nil {
			return 0, errors.New("missing bpm field")
		}
		return *p.BPM, nil
	}
	return strconv.ParseFloat(string(b), 64)
}
