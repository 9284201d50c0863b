package sampler

import (
	"context"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"codeberg.org/mutker/irrigatectl/internal/telemetry"
)

// Range is a closed interval a synthetic metric is drawn from.
type Range struct {
	Low  float64
	High float64
}

// SyntheticRanges are the uniform draw ranges of the synthetic strategy.
var SyntheticRanges = [telemetry.MetricCount]Range{
	telemetry.SoilMoisture: {Low: 35, High: 65},
	telemetry.Temperature:  {Low: 20, High: 35},
	telemetry.Humidity:     {Low: 60, High: 80},
	telemetry.TankLevel:    {Low: 60, High: 100},
	telemetry.FlowRate:     {Low: 2, High: 7},
}

// Synthetic draws every metric uniformly from SyntheticRanges. Flow is only
// drawn while the pump runs and is 0 otherwise.
type Synthetic struct {
	rng     *rand.Rand
	running RunProbe
	mu      sync.Mutex
}

// NewSynthetic returns a synthetic strategy. A fixed seed gives a
// reproducible sequence.
func NewSynthetic(seed uint64, running RunProbe) *Synthetic {
	if running == nil {
		running = func() bool { return false }
	}
	return &Synthetic{
		rng:     rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		running: running,
	}
}

func (*Synthetic) Name() string {
	return string(KindSynthetic)
}

func (s *Synthetic) Sample(_ context.Context, at time.Time) ([]telemetry.Reading, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	running := s.running()
	readings := make([]telemetry.Reading, 0, telemetry.MetricCount)
	for _, m := range telemetry.Metrics() {
		value := 0.0
		if m != telemetry.FlowRate || running {
			value = s.draw(SyntheticRanges[m])
		}
		readings = append(readings, telemetry.Reading{Metric: m, Value: value, Timestamp: at})
	}

	return readings, nil
}

func (s *Synthetic) draw(r Range) float64 {
	v := r.Low + s.rng.Float64()*(r.High-r.Low)
	return math.Round(v*10) / 10
}
