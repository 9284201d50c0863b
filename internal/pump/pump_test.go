package pump_test

import (
	"sync"
	"testing"

	"codeberg.org/mutker/irrigatectl/internal/errors"
	"codeberg.org/mutker/irrigatectl/internal/logger"
	"codeberg.org/mutker/irrigatectl/internal/pump"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitialState(t *testing.T) {
	c := pump.New(logger.Nop())
	st, err := c.State()
	require.NoError(t, err)
	assert.Equal(t, pump.State{Running: false, Mode: pump.Auto}, st)
}

func TestExampleSequence(t *testing.T) {
	c := pump.New(logger.Nop())

	st, err := c.TogglePump()
	require.NoError(t, err)
	assert.Equal(t, pump.State{Running: true, Mode: pump.Auto}, st)

	st, err = c.ToggleMode()
	require.NoError(t, err)
	assert.Equal(t, pump.State{Running: true, Mode: pump.Manual}, st)
}

func TestTogglePumpInvolution(t *testing.T) {
	for _, startMode := range []pump.Mode{pump.Auto, pump.Manual} {
		c := pump.New(nil)
		if startMode == pump.Manual {
			_, err := c.ToggleMode()
			require.NoError(t, err)
		}
		before, err := c.State()
		require.NoError(t, err)

		_, err = c.TogglePump()
		require.NoError(t, err)
		after, err := c.TogglePump()
		require.NoError(t, err)

		assert.Equal(t, before, after)
	}
}

func TestAxisIndependence(t *testing.T) {
	c := pump.New(nil)

	for i := 0; i < 4; i++ {
		before, err := c.State()
		require.NoError(t, err)

		st, err := c.ToggleMode()
		require.NoError(t, err)
		assert.Equal(t, before.Running, st.Running, "mode toggle changed run state")
		assert.NotEqual(t, before.Mode, st.Mode)

		st2, err := c.TogglePump()
		require.NoError(t, err)
		assert.Equal(t, st.Mode, st2.Mode, "pump toggle changed mode")
		assert.NotEqual(t, st.Running, st2.Running)
	}
}

func TestFlowRateZeroWhenStopped(t *testing.T) {
	for _, sampled := range []float64{0, 2, 6.9, 1e9, -3} {
		assert.Equal(t, float64(0), pump.State{Running: false, Mode: pump.Auto}.FlowRate(sampled))
		assert.Equal(t, float64(0), pump.State{Running: false, Mode: pump.Manual}.FlowRate(sampled))
		assert.Equal(t, sampled, pump.State{Running: true, Mode: pump.Manual}.FlowRate(sampled))
	}
}

func TestUninitializedController(t *testing.T) {
	var c pump.Controller

	_, err := c.TogglePump()
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrInvalidState))
	assert.Contains(t, err.Error(), "not initialized")

	_, err = c.ToggleMode()
	assert.True(t, errors.HasCode(err, errors.ErrInvalidState))

	_, err = c.State()
	assert.True(t, errors.HasCode(err, errors.ErrInvalidState))

	assert.Error(t, c.Close())
}

func TestClosedController(t *testing.T) {
	c := pump.New(nil)
	require.NoError(t, c.Close())

	_, err := c.TogglePump()
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrInvalidState))
	assert.Contains(t, err.Error(), "closed")

	_, err = c.ToggleMode()
	assert.True(t, errors.HasCode(err, errors.ErrInvalidState))

	assert.Error(t, c.Close())
}

func TestConcurrentToggles(t *testing.T) {
	c := pump.New(nil)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = c.TogglePump()
		}()
	}
	wg.Wait()

	st, err := c.State()
	require.NoError(t, err)
	assert.False(t, st.Running, "an even number of toggles must return to stopped")
	assert.Equal(t, pump.Auto, st.Mode)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "stopped/auto", pump.Initial.String())
	assert.Equal(t, "running/manual", pump.State{Running: true, Mode: pump.Manual}.String())
}
