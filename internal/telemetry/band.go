package telemetry

import (
	"fmt"
	"math"

	"codeberg.org/mutker/irrigatectl/internal/errors"
)

// Band is the acceptable and optimal range of a metric.
type Band struct {
	Min         float64 `mapstructure:"min" json:"min"`
	Max         float64 `mapstructure:"max" json:"max"`
	OptimalLow  float64 `mapstructure:"optimal_low" json:"optimalLow"`
	OptimalHigh float64 `mapstructure:"optimal_high" json:"optimalHigh"`
}

// Validate enforces min <= optimal_low <= optimal_high <= max.
func (b Band) Validate() error {
	errFactory := errors.New()

	for _, v := range []float64{b.Min, b.Max, b.OptimalLow, b.OptimalHigh} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return errFactory.WithData(errors.ErrConfiguration, "band bounds must be finite")
		}
	}

	switch {
	case b.Min > b.OptimalLow:
		return errFactory.WithData(errors.ErrConfiguration,
			fmt.Sprintf("min %g > optimal_low %g", b.Min, b.OptimalLow))
	case b.OptimalLow > b.OptimalHigh:
		return errFactory.WithData(errors.ErrConfiguration,
			fmt.Sprintf("optimal_low %g > optimal_high %g", b.OptimalLow, b.OptimalHigh))
	case b.OptimalHigh > b.Max:
		return errFactory.WithData(errors.ErrConfiguration,
			fmt.Sprintf("optimal_high %g > max %g", b.OptimalHigh, b.Max))
	}

	return nil
}

// Contains reports whether v is inside [min, max].
func (b Band) Contains(v float64) bool {
	return v >= b.Min && v <= b.Max
}

// Optimal reports whether v is inside [optimal_low, optimal_high].
func (b Band) Optimal(v float64) bool {
	return v >= b.OptimalLow && v <= b.OptimalHigh
}

// Clamp limits v to [min, max]. NaN clamps to min.
func (b Band) Clamp(v float64) float64 {
	if math.IsNaN(v) || v < b.Min {
		return b.Min
	}
	if v > b.Max {
		return b.Max
	}
	return v
}

// Position is the fraction of [min, max] covered by v, in [0, 1].
// A degenerate band (min == max) yields 0 below max and 1 at or above it.
func (b Band) Position(v float64) float64 {
	span := b.Max - b.Min
	if span <= 0 {
		if v >= b.Max {
			return 1
		}
		return 0
	}
	return (b.Clamp(v) - b.Min) / span
}

// Bands maps every metric to its band.
type Bands map[MetricID]Band

// DefaultBands returns the factory thresholds.
func DefaultBands() Bands {
	return Bands{
		SoilMoisture: {Min: 10, Max: 90, OptimalLow: 40, OptimalHigh: 70},
		Temperature:  {Min: 0, Max: 45, OptimalLow: 15, OptimalHigh: 35},
		Humidity:     {Min: 20, Max: 100, OptimalLow: 50, OptimalHigh: 80},
		TankLevel:    {Min: 0, Max: 100, OptimalLow: 30, OptimalHigh: 100},
		FlowRate:     {Min: 0, Max: 10, OptimalLow: 2, OptimalHigh: 7},
	}
}

// Validate checks that every metric has a band and every band is well formed.
func (bs Bands) Validate() error {
	errFactory := errors.New()

	for _, m := range Metrics() {
		b, ok := bs[m]
		if !ok {
			return errFactory.WithData(errors.ErrConfiguration, "missing band for "+m.String())
		}
		if err := b.Validate(); err != nil {
			return errFactory.Wrap(errors.ErrConfiguration, err).
				WithMessage("invalid band for " + m.String())
		}
	}

	return nil
}

// Clone returns an independent copy.
func (bs Bands) Clone() Bands {
	out := make(Bands, len(bs))
	for k, v := range bs {
		out[k] = v
	}
	return out
}
