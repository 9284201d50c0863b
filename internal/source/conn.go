package source

import (
	"context"
	"time"

	"codeberg.org/mutker/irrigatectl/internal/errors"
	"codeberg.org/mutker/irrigatectl/internal/logger"
	"github.com/cenkalti/backoff/v4"
	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const (
	disconnectQuiesce     = 250 // ms
	defaultConnectRetries = 5
	defaultConnectBudget  = 10 * time.Second
)

// Config describes the broker connection and the topics the daemon uses.
type Config struct {
	Broker         string        `mapstructure:"broker"`
	ClientID       string        `mapstructure:"client_id"`
	Username       string        `mapstructure:"username"`
	Password       string        `mapstructure:"password"`
	TelemetryTopic string        `mapstructure:"telemetry_topic"`
	CommandTopic   string        `mapstructure:"command_topic"`
	QoS            byte          `mapstructure:"qos"`
	MaxAge         time.Duration `mapstructure:"max_age"`
	ConnectRetries uint64        `mapstructure:"connect_retries"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

func DefaultConfig() Config {
	return Config{
		Broker:         "tcp://localhost:1883",
		ClientID:       "irrigatectl",
		TelemetryTopic: "irrigation/telemetry",
		CommandTopic:   "irrigation/pump/state",
		QoS:            1,
		MaxAge:         30 * time.Second,
		ConnectRetries: defaultConnectRetries,
		ConnectTimeout: defaultConnectBudget,
	}
}

// Validate checks the fields required to reach the broker.
func (c Config) Validate() error {
	errFactory := errors.New()

	switch {
	case c.Broker == "":
		return errFactory.WithData(errors.ErrConfiguration, "mqtt broker is empty")
	case c.TelemetryTopic == "":
		return errFactory.WithData(errors.ErrConfiguration, "mqtt telemetry_topic is empty")
	case c.CommandTopic == "":
		return errFactory.WithData(errors.ErrConfiguration, "mqtt command_topic is empty")
	case c.QoS > 2:
		return errFactory.WithData(errors.ErrConfiguration, "mqtt qos must be 0, 1 or 2")
	case c.MaxAge <= 0:
		return errFactory.WithData(errors.ErrConfiguration, "mqtt max_age must be positive")
	}

	return nil
}

// ClientOptions builds the paho options for cfg. The session is persistent
// so the broker keeps our subscriptions across reconnects.
func ClientOptions(cfg Config, log logger.Logger) *mqtt.ClientOptions {
	if log == nil {
		log = logger.Nop()
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetUsername(cfg.Username)
	opts.SetPassword(cfg.Password)
	opts.SetCleanSession(false)
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(cfg.ConnectTimeout)
	opts.SetOnConnectHandler(func(mqtt.Client) {
		log.Info().Str("broker", cfg.Broker).Msg("Connected to MQTT broker")
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		log.Warn().Err(err).Str("broker", cfg.Broker).Msg("MQTT connection lost")
	})

	return opts
}

// Connect dials the broker, retrying with exponential backoff. The client is
// disconnected when ctx ends.
func Connect(ctx context.Context, cfg Config, log logger.Logger) (mqtt.Client, error) {
	return connect(ctx, cfg, log, mqtt.NewClient)
}

func connect(
	ctx context.Context, cfg Config, log logger.Logger, newClient func(*mqtt.ClientOptions) mqtt.Client,
) (mqtt.Client, error) {
	if log == nil {
		log = logger.Nop()
	}
	if cfg.ConnectRetries == 0 {
		cfg.ConnectRetries = defaultConnectRetries
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = defaultConnectBudget
	}

	opts := ClientOptions(cfg, log)

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = cfg.ConnectTimeout * time.Duration(cfg.ConnectRetries)

	var client mqtt.Client
	err := backoff.Retry(func() error {
		client = newClient(opts)
		token := client.Connect()
		if !token.WaitTimeout(cfg.ConnectTimeout) {
			// Stop the pending attempt so the next client can reuse the client ID.
			client.Disconnect(0)
			return errors.New().WithMessage(errors.ErrTimeout, "mqtt connect timed out")
		}
		if err := token.Error(); err != nil {
			log.Debug().Err(err).Str("broker", cfg.Broker).Msg("MQTT connect attempt failed")
			return err
		}
		return nil
	}, backoff.WithContext(backoff.WithMaxRetries(bo, cfg.ConnectRetries-1), ctx))
	if err != nil {
		return nil, errors.New().Wrap(errors.ErrBrokerConnect, err).
			WithMessage("failed to connect to " + cfg.Broker)
	}

	go func() {
		<-ctx.Done()
		client.Disconnect(disconnectQuiesce)
		log.Debug().Msg("MQTT connection closed")
	}()

	return client, nil
}
