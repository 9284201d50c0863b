package telemetry

import (
	"fmt"
	"time"

	"codeberg.org/mutker/irrigatectl/internal/errors"
)

// MetricID identifies one of the sensor channels shown on the dashboard.
type MetricID int

const (
	SoilMoisture MetricID = iota
	Temperature
	Humidity
	TankLevel
	FlowRate
)

// MetricCount is the number of metrics in a complete reading set.
const MetricCount = 5

type metricInfo struct {
	key   string
	title string
	unit  string
}

var metricTable = [MetricCount]metricInfo{
	SoilMoisture: {key: "soil_moisture", title: "Soil Moisture", unit: "%"},
	Temperature:  {key: "temperature", title: "Temperature", unit: "°C"},
	Humidity:     {key: "humidity", title: "Humidity", unit: "%"},
	TankLevel:    {key: "tank_level", title: "Tank Level", unit: "%"},
	FlowRate:     {key: "flow_rate", title: "Flow Rate", unit: "L/min"},
}

// Metrics returns every MetricID in display order.
func Metrics() []MetricID {
	return []MetricID{SoilMoisture, Temperature, Humidity, TankLevel, FlowRate}
}

func (m MetricID) Valid() bool {
	return m >= SoilMoisture && m <= FlowRate
}

func (m MetricID) String() string {
	if !m.Valid() {
		return fmt.Sprintf("metric(%d)", int(m))
	}
	return metricTable[m].key
}

// Title is the human readable name of the metric.
func (m MetricID) Title() string {
	if !m.Valid() {
		return m.String()
	}
	return metricTable[m].title
}

func (m MetricID) Unit() string {
	if !m.Valid() {
		return ""
	}
	return metricTable[m].unit
}

// ParseMetric resolves a metric key such as "soil_moisture".
func ParseMetric(key string) (MetricID, error) {
	for _, m := range Metrics() {
		if metricTable[m].key == key {
			return m, nil
		}
	}
	return 0, errors.New().WithData(errors.ErrInvalidArgument, fmt.Sprintf("unknown metric %q", key))
}

func (m MetricID) MarshalText() ([]byte, error) {
	if !m.Valid() {
		return nil, errors.New().WithData(errors.ErrInvalidArgument, m.String())
	}
	return []byte(m.String()), nil
}

func (m *MetricID) UnmarshalText(text []byte) error {
	parsed, err := ParseMetric(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Reading is a single sensor value. It is a value type and never mutated
// after construction.
type Reading struct {
	Metric    MetricID  `json:"metric"`
	Value     float64   `json:"value"`
	Timestamp time.Time `json:"timestamp"`
}

// Set holds exactly one reading per metric, indexed by MetricID.
type Set [MetricCount]Reading

// NewSet checks that readings cover every metric exactly once. Partial or
// duplicated sets are rejected so that a tick updates all metrics or none.
func NewSet(readings []Reading) (Set, error) {
	var (
		set  Set
		seen [MetricCount]bool
	)

	if len(readings) != MetricCount {
		return set, errors.New().WithData(errors.ErrInvalidArgument,
			fmt.Sprintf("reading set has %d readings, want %d", len(readings), MetricCount))
	}

	for _, r := range readings {
		if !r.Metric.Valid() {
			return set, errors.New().WithData(errors.ErrInvalidArgument, "reading for "+r.Metric.String())
		}
		if seen[r.Metric] {
			return set, errors.New().WithData(errors.ErrInvalidArgument, "duplicate reading for "+r.Metric.String())
		}
		seen[r.Metric] = true
		set[r.Metric] = r
	}

	return set, nil
}

// Slice returns the readings in display order.
func (s Set) Slice() []Reading {
	out := make([]Reading, MetricCount)
	copy(out, s[:])
	return out
}
