package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"codeberg.org/mutker/irrigatectl/internal/dashboard"
	"codeberg.org/mutker/irrigatectl/internal/errors"
	"codeberg.org/mutker/irrigatectl/internal/pump"
	"codeberg.org/mutker/irrigatectl/internal/telemetry"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSnapshot() *dashboard.Snapshot {
	snap := &dashboard.Snapshot{
		Tick:         7,
		UpdatedAt:    time.Unix(1717243200, 0),
		Pump:         pump.State{Running: true, Mode: pump.Manual},
		FlowRate:     4.5,
		Stale:        true,
		SkippedTicks: 2,
	}
	bands := telemetry.DefaultBands()
	for _, m := range telemetry.Metrics() {
		v := 50.0
		if m == telemetry.FlowRate {
			v = 4.5
		}
		status := telemetry.Classify(v, bands[m])
		snap.Metrics[m] = dashboard.MetricView{
			Metric:   m,
			Unit:     m.Unit(),
			Reading:  telemetry.Reading{Metric: m, Value: v},
			Status:   status,
			Position: bands[m].Position(v),
		}
	}
	return snap
}

func newService(t *testing.T) *service {
	t.Helper()
	c, err := NewService(DefaultConfig(), nil)
	require.NoError(t, err)
	svc, ok := c.(*service)
	require.True(t, ok)
	return svc
}

func TestObserve(t *testing.T) {
	svc := newService(t)
	svc.Observe(testSnapshot())
	svc.Observe(nil)

	assert.Equal(t, 50.0, testutil.ToFloat64(svc.reading.WithLabelValues("soil_moisture", "%")))
	assert.Equal(t, float64(telemetry.StatusCritical), testutil.ToFloat64(svc.status.WithLabelValues("temperature")))
	assert.Equal(t, float64(telemetry.StatusGood), testutil.ToFloat64(svc.status.WithLabelValues("soil_moisture")))
	assert.Equal(t, 0.5, testutil.ToFloat64(svc.position.WithLabelValues("soil_moisture")))
	assert.Equal(t, float64(1), testutil.ToFloat64(svc.running))
	assert.Equal(t, float64(0), testutil.ToFloat64(svc.auto))
	assert.Equal(t, 4.5, testutil.ToFloat64(svc.flow))
	assert.Equal(t, float64(1), testutil.ToFloat64(svc.stale))
	assert.Equal(t, float64(2), testutil.ToFloat64(svc.skipped))
	assert.Equal(t, float64(7), testutil.ToFloat64(svc.ticks))
	assert.Equal(t, float64(1717243200), testutil.ToFloat64(svc.updated))
	assert.Equal(t, float64(1), testutil.ToFloat64(svc.published))
}

func TestHandlerExposition(t *testing.T) {
	svc := newService(t)
	svc.Observe(testSnapshot())

	rec := httptest.NewRecorder()
	svc.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `irrigation_reading_value{metric="tank_level",unit="%"} 50`)
	assert.Contains(t, body, "irrigation_pump_running 1")
	assert.True(t, strings.Contains(body, "go_goroutines"))
}

func TestDisabledIsNoop(t *testing.T) {
	c, err := NewService(Config{Enabled: false}, nil)
	require.NoError(t, err)
	assert.False(t, c.Enabled())
	assert.NotPanics(t, func() { c.Observe(testSnapshot()) })

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestConfigValidate(t *testing.T) {
	_, err := NewService(Config{Enabled: true, Path: "metrics"}, nil)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrConfiguration))
	assert.True(t, errors.HasCode(err, ErrInvalidPath))

	require.NoError(t, Config{Enabled: false}.Validate())
}
