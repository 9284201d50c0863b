package dashboard

import (
	"math"

	"codeberg.org/mutker/irrigatectl/internal/errors"
	"codeberg.org/mutker/irrigatectl/internal/telemetry"
	"codeberg.org/mutker/irrigatectl/internal/trend"
)

const (
	DefaultLabelLayout = "15:04:05"
	DefaultTolerance   = 0.5
)

// Config holds the aggregator settings that are fixed for a session.
type Config struct {
	Bands       telemetry.Bands
	Capacity    int
	LabelLayout string
	Tolerance   float64
}

func DefaultConfig() Config {
	return Config{
		Bands:       telemetry.DefaultBands(),
		Capacity:    trend.DefaultCapacity,
		LabelLayout: DefaultLabelLayout,
		Tolerance:   DefaultTolerance,
	}
}

func (c Config) Validate() error {
	errFactory := errors.New()

	if err := c.Bands.Validate(); err != nil {
		return err
	}
	if c.Capacity < 1 {
		return errFactory.WithData(errors.ErrConfiguration, "trend capacity must be at least 1")
	}
	if c.LabelLayout == "" {
		return errFactory.WithData(errors.ErrConfiguration, "trend label layout is empty")
	}
	if c.Tolerance < 0 || math.IsNaN(c.Tolerance) || math.IsInf(c.Tolerance, 0) {
		return errFactory.WithData(errors.ErrConfiguration, "trend tolerance must be a finite non-negative number")
	}

	return nil
}
