package source

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"codeberg.org/mutker/irrigatectl/internal/errors"
	"codeberg.org/mutker/irrigatectl/internal/logger"
	"codeberg.org/mutker/irrigatectl/internal/telemetry"
	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Payload is the wire form of one reading set on the telemetry topic.
type Payload struct {
	Timestamp time.Time          `json:"timestamp"`
	Readings  map[string]float64 `json:"readings"`
}

// Decode parses a telemetry payload into a complete reading set. A missing
// timestamp falls back to receivedAt. Unknown keys are rejected so a
// misconfigured device is noticed instead of silently ignored.
func Decode(data []byte, receivedAt time.Time) ([]telemetry.Reading, error) {
	errFactory := errors.New()

	var p Payload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, errFactory.Wrap(errors.ErrDecodePayload, err)
	}

	at := p.Timestamp
	if at.IsZero() {
		at = receivedAt
	}

	var unknown []string
	for key := range p.Readings {
		if _, err := telemetry.ParseMetric(key); err != nil {
			unknown = append(unknown, key)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, errFactory.WithData(errors.ErrDecodePayload, fmt.Sprintf("unknown metrics %v", unknown))
	}

	readings := make([]telemetry.Reading, 0, telemetry.MetricCount)
	for _, m := range telemetry.Metrics() {
		v, ok := p.Readings[m.String()]
		if !ok {
			return nil, errFactory.WithData(errors.ErrDecodePayload, "missing metric "+m.String())
		}
		readings = append(readings, telemetry.Reading{Metric: m, Value: v, Timestamp: at})
	}

	return readings, nil
}

// Subscriber caches the latest reading set published on the telemetry topic
// and serves it as a sampler.Source.
type Subscriber struct {
	client mqtt.Client
	topic  string
	qos    byte
	maxAge time.Duration
	now    func() time.Time
	logger logger.Logger

	latest   []telemetry.Reading
	received time.Time
	mu       sync.RWMutex
}

func NewSubscriber(client mqtt.Client, cfg Config, log logger.Logger) *Subscriber {
	if log == nil {
		log = logger.Nop()
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = DefaultConfig().MaxAge
	}
	return &Subscriber{
		client: client,
		topic:  cfg.TelemetryTopic,
		qos:    cfg.QoS,
		maxAge: cfg.MaxAge,
		now:    time.Now,
		logger: log,
	}
}

// Run subscribes and blocks until ctx ends, then unsubscribes.
func (s *Subscriber) Run(ctx context.Context) error {
	token := s.client.Subscribe(s.topic, s.qos, s.handle)
	if token.Wait() && token.Error() != nil {
		return errors.New().Wrap(errors.ErrSubscribe, token.Error()).WithMessage("failed to subscribe to " + s.topic)
	}
	s.logger.Info().Str("topic", s.topic).Msg("Subscribed to telemetry topic")

	<-ctx.Done()

	s.client.Unsubscribe(s.topic).WaitTimeout(time.Second)
	s.logger.Debug().Str("topic", s.topic).Msg("Unsubscribed from telemetry topic")

	return nil
}

func (s *Subscriber) handle(_ mqtt.Client, msg mqtt.Message) {
	if err := s.Ingest(msg.Payload()); err != nil {
		s.logger.WarnWithCode(err).Str("topic", msg.Topic()).Msg("Dropped telemetry payload")
	}
}

// Ingest decodes payload and, if it is a complete set, makes it the latest.
func (s *Subscriber) Ingest(payload []byte) error {
	now := s.now()
	readings, err := Decode(payload, now)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.latest = readings
	s.received = now
	s.mu.Unlock()

	return nil
}

// Latest returns the cached set. Nothing received yet, or a set older than
// max_age, is reported as source_unavailable.
func (s *Subscriber) Latest(ctx context.Context) ([]telemetry.Reading, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	errFactory := errors.New()
	if s.latest == nil {
		return nil, errFactory.WithMessage(errors.ErrSourceUnavailable, "no telemetry received on "+s.topic)
	}
	if age := s.now().Sub(s.received); age > s.maxAge {
		return nil, errFactory.WithData(errors.ErrSourceUnavailable,
			fmt.Sprintf("last telemetry is %s old", age.Truncate(time.Second)))
	}

	out := make([]telemetry.Reading, len(s.latest))
	copy(out, s.latest)

	return out, nil
}
