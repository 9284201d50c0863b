package sampler

import (
	"context"
	"time"

	"codeberg.org/mutker/irrigatectl/internal/errors"
	"codeberg.org/mutker/irrigatectl/internal/logger"
	"codeberg.org/mutker/irrigatectl/internal/telemetry"
	"github.com/sony/gobreaker"
)

const (
	defaultFetchTimeout     = 2 * time.Second
	defaultBreakerFailures  = 3
	defaultBreakerOpenFor   = 30 * time.Second
	defaultBreakerResetSpan = time.Minute
)

// ExternalConfig tunes the external strategy.
type ExternalConfig struct {
	Timeout         time.Duration `mapstructure:"timeout"`
	BreakerFailures uint32        `mapstructure:"breaker_failures"`
	BreakerOpenFor  time.Duration `mapstructure:"breaker_open_for"`
}

func DefaultExternalConfig() ExternalConfig {
	return ExternalConfig{
		Timeout:         defaultFetchTimeout,
		BreakerFailures: defaultBreakerFailures,
		BreakerOpenFor:  defaultBreakerOpenFor,
	}
}

// External delegates to a Source behind a circuit breaker. A failing source
// costs one timeout per tick until the breaker opens, then nothing until it
// half-opens again. Failures are never retried within a tick.
type External struct {
	source  Source
	breaker *gobreaker.CircuitBreaker
	timeout time.Duration
	logger  logger.Logger
}

func NewExternal(source Source, cfg ExternalConfig, log logger.Logger) *External {
	if log == nil {
		log = logger.Nop()
	}
	def := DefaultExternalConfig()
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = def.BreakerFailures
	}
	if cfg.BreakerOpenFor <= 0 {
		cfg.BreakerOpenFor = def.BreakerOpenFor
	}

	failures := cfg.BreakerFailures
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:     "telemetry-source",
		Interval: defaultBreakerResetSpan,
		Timeout:  cfg.BreakerOpenFor,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Telemetry source breaker state changed")
		},
	})

	return &External{
		source:  source,
		breaker: breaker,
		timeout: cfg.Timeout,
		logger:  log,
	}
}

func (*External) Name() string {
	return string(KindExternal)
}

func (e *External) Sample(ctx context.Context, _ time.Time) ([]telemetry.Reading, error) {
	errFactory := errors.New()

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	res, err := e.breaker.Execute(func() (interface{}, error) {
		readings, err := e.source.Latest(ctx)
		if err != nil {
			return nil, err
		}
		if _, err := telemetry.NewSet(readings); err != nil {
			return nil, err
		}
		return readings, nil
	})
	if err != nil {
		return nil, errFactory.Wrap(errors.ErrSourceUnavailable, err)
	}

	return res.([]telemetry.Reading), nil
}

// BreakerState is the breaker state reported by /healthz.
func (e *External) BreakerState() string {
	return e.breaker.State().String()
}
