package sampler

import (
	"context"
	"fmt"
	"time"

	"codeberg.org/mutker/irrigatectl/internal/errors"
	"codeberg.org/mutker/irrigatectl/internal/logger"
	"codeberg.org/mutker/irrigatectl/internal/telemetry"
)

// Sampler turns scheduler ticks into complete reading sets.
type Sampler struct {
	strategy  Strategy
	scheduler Scheduler
	logger    logger.Logger
}

func New(strategy Strategy, scheduler Scheduler, log logger.Logger) (*Sampler, error) {
	errFactory := errors.New()
	if strategy == nil {
		return nil, errFactory.WithData(errors.ErrConfiguration, "sampler strategy is nil")
	}
	if scheduler == nil {
		return nil, errFactory.WithData(errors.ErrConfiguration, "sampler scheduler is nil")
	}
	if log == nil {
		log = logger.Nop()
	}

	return &Sampler{
		strategy:  strategy,
		scheduler: scheduler,
		logger:    log,
	}, nil
}

// Strategy returns the configured strategy.
func (s *Sampler) Strategy() Strategy {
	return s.strategy
}

// Ticks starts the schedule.
func (s *Sampler) Ticks(ctx context.Context) <-chan time.Time {
	s.logger.Debug().Str("strategy", s.strategy.Name()).Msg("Sampler schedule started")
	return s.scheduler.Start(ctx)
}

// Stop releases the schedule.
func (s *Sampler) Stop() {
	s.scheduler.Stop()
	s.logger.Debug().Msg("Sampler schedule stopped")
}

// Sample returns a full set for the tick at `at`, or a source_unavailable
// error. A tick never yields a partial set.
func (s *Sampler) Sample(ctx context.Context, at time.Time) (set telemetry.Set, err error) {
	errFactory := errors.New()

	defer func() {
		if r := recover(); r != nil {
			err = errFactory.WithData(errors.ErrSourceUnavailable, fmt.Sprintf("strategy %s panicked: %v", s.strategy.Name(), r))
		}
	}()

	readings, err := s.strategy.Sample(ctx, at)
	if err != nil {
		if errors.HasCode(err, errors.ErrSourceUnavailable) {
			return set, err
		}
		return set, errFactory.Wrap(errors.ErrSourceUnavailable, err)
	}

	set, err = telemetry.NewSet(readings)
	if err != nil {
		return set, errFactory.Wrap(errors.ErrSourceUnavailable, err).WithMessage("incomplete reading set")
	}

	return set, nil
}
