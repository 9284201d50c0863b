package sink

import (
	"context"
	"encoding/json"
	"time"

	"codeberg.org/mutker/irrigatectl/internal/dashboard"
	"codeberg.org/mutker/irrigatectl/internal/errors"
	"codeberg.org/mutker/irrigatectl/internal/logger"
	"codeberg.org/mutker/irrigatectl/internal/pump"
	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const publishTimeout = 5 * time.Second

// Command is the retained pump state message read by the device side.
type Command struct {
	Running   bool      `json:"running"`
	Mode      pump.Mode `json:"mode"`
	Timestamp time.Time `json:"timestamp"`
}

// Publisher mirrors pump state changes to an MQTT topic. Observe only queues
// the newest state; Run does the publishing so the dashboard loop never
// waits on the broker.
type Publisher struct {
	client  mqtt.Client
	topic   string
	qos     byte
	logger  logger.Logger
	pending chan Command

	// Owned by the dashboard loop.
	last     pump.State
	haveLast bool
}

func NewPublisher(client mqtt.Client, topic string, qos byte, log logger.Logger) *Publisher {
	if log == nil {
		log = logger.Nop()
	}
	return &Publisher{
		client:  client,
		topic:   topic,
		qos:     qos,
		logger:  log,
		pending: make(chan Command, 1),
	}
}

// Observe queues a command when the pump state differs from the last one seen.
func (p *Publisher) Observe(snap *dashboard.Snapshot) {
	if snap == nil || (p.haveLast && snap.Pump == p.last) {
		return
	}
	p.last = snap.Pump
	p.haveLast = true

	cmd := Command{Running: snap.Pump.Running, Mode: snap.Pump.Mode, Timestamp: snap.PumpChangedAt}
	select {
	case p.pending <- cmd:
		return
	default:
	}
	// Replace the unsent command; only the newest state matters.
	select {
	case <-p.pending:
	default:
	}
	select {
	case p.pending <- cmd:
	default:
	}
}

// Run publishes queued commands until ctx ends.
func (p *Publisher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case cmd := <-p.pending:
			if err := p.Publish(cmd); err != nil {
				p.logger.WarnWithCode(err).Str("topic", p.topic).Msg("Failed to publish pump state")
				continue
			}
			p.logger.Debug().
				Bool("running", cmd.Running).
				Str("mode", string(cmd.Mode)).
				Msg("Pump state published")
		}
	}
}

// Publish sends cmd as a retained message.
func (p *Publisher) Publish(cmd Command) error {
	errFactory := errors.New()

	payload, err := json.Marshal(cmd)
	if err != nil {
		return errFactory.Wrap(errors.ErrPublish, err)
	}

	token := p.client.Publish(p.topic, p.qos, true, payload)
	if !token.WaitTimeout(publishTimeout) {
		return errFactory.WithMessage(errors.ErrTimeout, "publish to "+p.topic+" timed out")
	}
	if err := token.Error(); err != nil {
		return errFactory.Wrap(errors.ErrPublish, err).WithMessage("failed to publish to " + p.topic)
	}

	return nil
}
