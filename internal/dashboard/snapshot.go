package dashboard

import (
	"time"

	"codeberg.org/mutker/irrigatectl/internal/pump"
	"codeberg.org/mutker/irrigatectl/internal/telemetry"
	"codeberg.org/mutker/irrigatectl/internal/trend"
	"github.com/google/uuid"
)

// MetricView is everything a renderer needs to draw one metric card.
// Reading holds the raw value; Value is the same value clamped to the band.
type MetricView struct {
	Metric     telemetry.MetricID   `json:"metric"`
	Title      string               `json:"title"`
	Unit       string               `json:"unit"`
	Reading    telemetry.Reading    `json:"reading"`
	Value      float64              `json:"value"`
	Status     telemetry.Status     `json:"status"`
	Descriptor telemetry.Descriptor `json:"descriptor"`
	Band       telemetry.Band       `json:"band"`
	Position   float64              `json:"position"`
	Trend      []trend.Point        `json:"trend"`
	Direction  trend.Direction      `json:"direction"`
}

// Snapshot is an immutable, internally consistent view of the dashboard.
// Once published it is never modified; a newer state is a new Snapshot.
// UpdatedAt is the time of the tick the readings come from; pump commands
// only move PumpChangedAt.
type Snapshot struct {
	ID            uuid.UUID                         `json:"id"`
	Tick          uint64                            `json:"tick"`
	UpdatedAt     time.Time                         `json:"updatedAt"`
	Metrics       [telemetry.MetricCount]MetricView `json:"metrics"`
	Pump          pump.State                        `json:"pump"`
	PumpChangedAt time.Time                         `json:"pumpChangedAt"`
	FlowRate      float64                           `json:"flowRate"`
	Stale         bool                              `json:"stale"`
	StaleSince    *time.Time                        `json:"staleSince,omitempty"`
	StaleReason   string                            `json:"staleReason,omitempty"`
	SkippedTicks  uint64                            `json:"skippedTicks"`
}

// Metric returns the view for m.
func (s *Snapshot) Metric(m telemetry.MetricID) MetricView {
	if !m.Valid() {
		return MetricView{Metric: m}
	}
	return s.Metrics[m]
}

// Worst is the most severe status across all metrics.
func (s *Snapshot) Worst() telemetry.Status {
	worst := telemetry.StatusGood
	for _, v := range s.Metrics {
		if v.Status > worst {
			worst = v.Status
		}
	}
	return worst
}

func newID() uuid.UUID {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New()
	}
	return id
}
