package trend_test

import (
	"strconv"
	"sync"
	"testing"

	"codeberg.org/mutker/irrigatectl/internal/errors"
	"codeberg.org/mutker/irrigatectl/internal/telemetry"
	"codeberg.org/mutker/irrigatectl/internal/trend"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func point(v float64) trend.Point {
	return trend.Point{Time: strconv.FormatFloat(v, 'f', -1, 64), Value: v}
}

func values(points []trend.Point) []float64 {
	out := make([]float64, len(points))
	for i, p := range points {
		out[i] = p.Value
	}
	return out
}

func TestWindowEvictsOldest(t *testing.T) {
	w, err := trend.NewWindow(3)
	require.NoError(t, err)

	for _, v := range []float64{1, 2, 3, 4} {
		w.Append(point(v))
	}

	assert.Equal(t, []float64{2, 3, 4}, values(w.Points()))
	assert.Equal(t, []string{"2", "3", "4"}, []string{w.Points()[0].Time, w.Points()[1].Time, w.Points()[2].Time})
}

func TestWindowFIFOLaw(t *testing.T) {
	for _, capacity := range []int{1, 2, 5, 12} {
		for _, k := range []int{0, 1, 7, 30} {
			w, err := trend.NewWindow(capacity)
			require.NoError(t, err)

			total := capacity + k
			for i := 1; i <= total; i++ {
				w.Append(point(float64(i)))
			}

			want := make([]float64, 0, capacity)
			for i := total - capacity + 1; i <= total; i++ {
				want = append(want, float64(i))
			}
			assert.Equal(t, capacity, w.Len())
			assert.Equal(t, want, values(w.Points()), "capacity=%d k=%d", capacity, k)
		}
	}
}

func TestWindowPartial(t *testing.T) {
	w, err := trend.NewWindow(4)
	require.NoError(t, err)
	assert.Empty(t, w.Points())

	w.Append(point(7))
	w.Append(point(8))
	assert.Equal(t, []float64{7, 8}, values(w.Points()))
	assert.Equal(t, 2, w.Len())
	assert.Equal(t, 4, w.Cap())
}

func TestPointsIsCopy(t *testing.T) {
	w, err := trend.NewWindow(2)
	require.NoError(t, err)
	w.Append(point(1))

	pts := w.Points()
	pts[0].Value = 99
	assert.Equal(t, []float64{1}, values(w.Points()))
}

func TestInvalidCapacity(t *testing.T) {
	_, err := trend.NewWindow(0)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrConfiguration))

	_, err = trend.NewSet(-1)
	assert.Error(t, err)
}

func TestDirection(t *testing.T) {
	w, err := trend.NewWindow(3)
	require.NoError(t, err)
	assert.Equal(t, trend.Stable, w.Direction(0.5))

	w.Append(point(10))
	assert.Equal(t, trend.Stable, w.Direction(0.5))

	w.Append(point(12))
	assert.Equal(t, trend.Up, w.Direction(0.5))

	w.Append(point(11.8))
	assert.Equal(t, trend.Stable, w.Direction(0.5))

	w.Append(point(4))
	assert.Equal(t, trend.Down, w.Direction(0.5))
}

func TestSetIsolatesMetrics(t *testing.T) {
	s, err := trend.NewSet(2)
	require.NoError(t, err)

	s.Append(telemetry.SoilMoisture, point(1))
	s.Append(telemetry.Temperature, point(20))
	s.Append(telemetry.SoilMoisture, point(2))
	s.Append(telemetry.SoilMoisture, point(3))
	s.Append(telemetry.MetricID(42), point(5))

	assert.Equal(t, []float64{2, 3}, values(s.Snapshot(telemetry.SoilMoisture)))
	assert.Equal(t, []float64{20}, values(s.Snapshot(telemetry.Temperature)))
	assert.Empty(t, s.Snapshot(telemetry.FlowRate))
	assert.Nil(t, s.Snapshot(telemetry.MetricID(42)))
}

func TestConcurrentSnapshot(t *testing.T) {
	w, err := trend.NewWindow(12)
	require.NoError(t, err)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			w.Append(point(float64(i)))
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			pts := w.Points()
			for j := 1; j < len(pts); j++ {
				assert.Equal(t, pts[j-1].Value+1, pts[j].Value)
			}
		}
	}()
	wg.Wait()
}
