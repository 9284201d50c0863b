package telemetry_test

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"codeberg.org/mutker/irrigatectl/internal/errors"
	"codeberg.org/mutker/irrigatectl/internal/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var exampleBand = telemetry.Band{Min: 10, Max: 90, OptimalLow: 40, OptimalHigh: 70}

func TestClassifyExamples(t *testing.T) {
	tests := []struct {
		value float64
		want  telemetry.Status
	}{
		{5, telemetry.StatusCritical},
		{20, telemetry.StatusWarning},
		{55, telemetry.StatusGood},
		{85, telemetry.StatusWarning},
		{95, telemetry.StatusCritical},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, telemetry.Classify(tt.value, exampleBand), "value %v", tt.value)
	}
}

func TestClassifyEdges(t *testing.T) {
	assert.Equal(t, telemetry.StatusGood, telemetry.Classify(40, exampleBand))
	assert.Equal(t, telemetry.StatusGood, telemetry.Classify(70, exampleBand))
	assert.Equal(t, telemetry.StatusWarning, telemetry.Classify(math.Nextafter(40, 0), exampleBand))
	assert.Equal(t, telemetry.StatusWarning, telemetry.Classify(math.Nextafter(70, 100), exampleBand))

	assert.Equal(t, telemetry.StatusWarning, telemetry.Classify(10, exampleBand))
	assert.Equal(t, telemetry.StatusWarning, telemetry.Classify(90, exampleBand))
	assert.Equal(t, telemetry.StatusCritical, telemetry.Classify(math.Nextafter(10, 0), exampleBand))
	assert.Equal(t, telemetry.StatusCritical, telemetry.Classify(math.Nextafter(90, 100), exampleBand))
}

func TestClassifyTotal(t *testing.T) {
	values := []float64{math.NaN(), math.Inf(1), math.Inf(-1), -1e308, 0, 1e308, -0.0}
	for _, v := range values {
		got := telemetry.Classify(v, exampleBand)
		assert.Contains(t, []telemetry.Status{telemetry.StatusGood, telemetry.StatusWarning, telemetry.StatusCritical}, got)
	}
	assert.Equal(t, telemetry.StatusCritical, telemetry.Classify(math.NaN(), exampleBand))
	assert.Equal(t, telemetry.StatusCritical, telemetry.Classify(math.Inf(1), exampleBand))
}

func TestDegenerateBand(t *testing.T) {
	b := telemetry.Band{Min: 50, Max: 50, OptimalLow: 50, OptimalHigh: 50}
	require.NoError(t, b.Validate())

	assert.Equal(t, telemetry.StatusGood, telemetry.Classify(50, b))
	assert.Equal(t, telemetry.StatusCritical, telemetry.Classify(49.9, b))
	assert.Equal(t, telemetry.StatusCritical, telemetry.Classify(50.1, b))

	assert.Equal(t, float64(1), b.Position(50))
	assert.Equal(t, float64(1), b.Position(80))
	assert.Equal(t, float64(0), b.Position(49.9))
	assert.Equal(t, float64(0), b.Position(math.NaN()))
	assert.Equal(t, float64(50), b.Clamp(-3))
}

func TestBandValidate(t *testing.T) {
	tests := []struct {
		name string
		band telemetry.Band
		msg  string
	}{
		{"min above optimal low", telemetry.Band{Min: 45, Max: 90, OptimalLow: 40, OptimalHigh: 70}, "min 45 > optimal_low 40"},
		{"optimal inverted", telemetry.Band{Min: 10, Max: 90, OptimalLow: 70, OptimalHigh: 40}, "optimal_low 70 > optimal_high 40"},
		{"optimal high above max", telemetry.Band{Min: 10, Max: 60, OptimalLow: 40, OptimalHigh: 70}, "optimal_high 70 > max 60"},
		{"nan", telemetry.Band{Min: math.NaN(), Max: 60, OptimalLow: 40, OptimalHigh: 50}, "finite"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.band.Validate()
			require.Error(t, err)
			assert.True(t, errors.HasCode(err, errors.ErrConfiguration))
			assert.Contains(t, err.Error(), tt.msg)
		})
	}

	require.NoError(t, exampleBand.Validate())
}

func TestBandsValidate(t *testing.T) {
	require.NoError(t, telemetry.DefaultBands().Validate())

	missing := telemetry.DefaultBands()
	delete(missing, telemetry.TankLevel)
	err := missing.Validate()
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrConfiguration))
	assert.Contains(t, err.Error(), "tank_level")

	broken := telemetry.DefaultBands()
	broken[telemetry.Humidity] = telemetry.Band{Min: 90, Max: 10}
	err = broken.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid band for humidity")
}

func TestClampAndPosition(t *testing.T) {
	assert.Equal(t, float64(10), exampleBand.Clamp(-5))
	assert.Equal(t, float64(90), exampleBand.Clamp(120))
	assert.Equal(t, float64(55), exampleBand.Clamp(55))
	assert.Equal(t, float64(10), exampleBand.Clamp(math.NaN()))

	assert.Equal(t, float64(0), exampleBand.Position(0))
	assert.Equal(t, 0.5, exampleBand.Position(50))
	assert.Equal(t, float64(1), exampleBand.Position(1000))
}

func TestDescriptors(t *testing.T) {
	assert.Equal(t, telemetry.Descriptor{Label: "Optimal", Tone: "success"}, telemetry.Describe(telemetry.StatusGood))
	assert.Equal(t, telemetry.Descriptor{Label: "Attention", Tone: "warning"}, telemetry.Describe(telemetry.StatusWarning))
	assert.Equal(t, telemetry.Descriptor{Label: "Critical", Tone: "destructive"}, telemetry.Describe(telemetry.StatusCritical))

	table := telemetry.Descriptors()
	assert.Len(t, table, 3)
	delete(table, telemetry.StatusGood)
	assert.Equal(t, "Optimal", telemetry.Describe(telemetry.StatusGood).Label)
}

func TestMetricText(t *testing.T) {
	for _, m := range telemetry.Metrics() {
		text, err := m.MarshalText()
		require.NoError(t, err)

		var back telemetry.MetricID
		require.NoError(t, back.UnmarshalText(text))
		assert.Equal(t, m, back)
	}

	_, err := telemetry.ParseMetric("wind_speed")
	assert.Error(t, err)

	assert.Equal(t, "L/min", telemetry.FlowRate.Unit())
	assert.Equal(t, "Soil Moisture", telemetry.SoilMoisture.Title())
}

func TestStatusJSON(t *testing.T) {
	b, err := json.Marshal(map[string]telemetry.Status{"s": telemetry.StatusCritical})
	require.NoError(t, err)
	assert.JSONEq(t, `{"s":"critical"}`, string(b))
}

func TestNewSet(t *testing.T) {
	now := time.Now()
	full := make([]telemetry.Reading, 0, telemetry.MetricCount)
	for _, m := range telemetry.Metrics() {
		full = append(full, telemetry.Reading{Metric: m, Value: float64(m), Timestamp: now})
	}

	set, err := telemetry.NewSet(full)
	require.NoError(t, err)
	assert.Equal(t, float64(telemetry.TankLevel), set[telemetry.TankLevel].Value)
	assert.Len(t, set.Slice(), telemetry.MetricCount)

	_, err = telemetry.NewSet(full[:4])
	assert.Error(t, err)

	dup := append([]telemetry.Reading{}, full...)
	dup[4] = dup[0]
	_, err = telemetry.NewSet(dup)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate")
}
