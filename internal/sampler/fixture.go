package sampler

import (
	"context"
	"sync"
	"time"

	"codeberg.org/mutker/irrigatectl/internal/errors"
	"codeberg.org/mutker/irrigatectl/internal/telemetry"
)

type fixtureStep struct {
	readings []telemetry.Reading
	values   []float64
	err      error
}

// Fixture replays queued reading sets in order. It is the deterministic
// stand-in for Synthetic and External in tests and demos.
type Fixture struct {
	steps []fixtureStep
	mu    sync.Mutex
}

func NewFixture() *Fixture {
	return &Fixture{}
}

func (*Fixture) Name() string {
	return "fixture"
}

// PushValues queues one set given as values in telemetry.Metrics() order.
// Readings are stamped with the tick time when served.
func (f *Fixture) PushValues(values ...float64) *Fixture {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.steps = append(f.steps, fixtureStep{values: append([]float64(nil), values...)})
	return f
}

// PushReadings queues a raw, possibly partial, reading set.
func (f *Fixture) PushReadings(readings ...telemetry.Reading) *Fixture {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.steps = append(f.steps, fixtureStep{readings: append([]telemetry.Reading(nil), readings...)})
	return f
}

// PushError queues a failing tick.
func (f *Fixture) PushError(err error) *Fixture {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.steps = append(f.steps, fixtureStep{err: err})
	return f
}

// Pending returns the number of queued steps.
func (f *Fixture) Pending() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.steps)
}

func (f *Fixture) Sample(_ context.Context, at time.Time) ([]telemetry.Reading, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.steps) == 0 {
		return nil, errors.New().WithMessage(errors.ErrSourceUnavailable, "fixture exhausted")
	}

	step := f.steps[0]
	f.steps = f.steps[1:]

	if step.err != nil {
		return nil, step.err
	}
	if step.readings != nil {
		return step.readings, nil
	}

	metrics := telemetry.Metrics()
	readings := make([]telemetry.Reading, 0, len(step.values))
	for i, v := range step.values {
		if i >= len(metrics) {
			break
		}
		readings = append(readings, telemetry.Reading{Metric: metrics[i], Value: v, Timestamp: at})
	}

	return readings, nil
}
