package sampler

import (
	"context"
	"time"

	"codeberg.org/mutker/irrigatectl/internal/telemetry"
)

// Strategy produces one reading set per call. Implementations may return
// partial sets or errors; the Sampler turns both into a skipped tick.
type Strategy interface {
	Name() string
	Sample(ctx context.Context, at time.Time) ([]telemetry.Reading, error)
}

// Source is an external telemetry feed, such as the MQTT subscriber.
type Source interface {
	Latest(ctx context.Context) ([]telemetry.Reading, error)
}

// RunProbe reports whether the pump is currently running.
type RunProbe func() bool

// Kind names a strategy in configuration.
type Kind string

const (
	KindSynthetic Kind = "synthetic"
	KindExternal  Kind = "external"
)

func (k Kind) Valid() bool {
	return k == KindSynthetic || k == KindExternal
}
