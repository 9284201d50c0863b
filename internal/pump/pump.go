package pump

import (
	"sync"

	"codeberg.org/mutker/irrigatectl/internal/errors"
	"codeberg.org/mutker/irrigatectl/internal/logger"
)

// Mode selects who drives the pump.
type Mode string

const (
	Manual Mode = "manual"
	Auto   Mode = "auto"
)

// State is the composite pump state. The two axes change independently.
type State struct {
	Running bool `json:"running"`
	Mode    Mode `json:"mode"`
}

// Initial is the state of a freshly created controller.
var Initial = State{Running: false, Mode: Auto}

func (s State) String() string {
	run := "stopped"
	if s.Running {
		run = "running"
	}
	return run + "/" + string(s.Mode)
}

// FlowRate derives the reported flow from the run state: a stopped pump
// reports zero regardless of what was sampled.
func (s State) FlowRate(sampled float64) float64 {
	if !s.Running {
		return 0
	}
	return sampled
}

// Controller owns the pump state for the life of a dashboard session.
// The zero value is not usable; create one with New.
type Controller struct {
	state       State
	initialized bool
	closed      bool
	mu          sync.RWMutex
	logger      logger.Logger
}

// New returns a controller in the Initial state.
func New(log logger.Logger) *Controller {
	if log == nil {
		log = logger.Nop()
	}
	return &Controller{
		state:       Initial,
		initialized: true,
		logger:      log,
	}
}

// TogglePump flips Stopped and Running. It is allowed in both modes;
// automatic policies go through this same entry point.
func (c *Controller) TogglePump() (State, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.checkLocked(); err != nil {
		return State{}, err
	}

	prev := c.state
	c.state.Running = !c.state.Running
	c.logger.Info().
		Str("from", prev.String()).
		Str("to", c.state.String()).
		Msg("Pump toggled")

	return c.state, nil
}

// ToggleMode flips Manual and Auto without touching the run state.
func (c *Controller) ToggleMode() (State, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.checkLocked(); err != nil {
		return State{}, err
	}

	if c.state.Mode == Auto {
		c.state.Mode = Manual
	} else {
		c.state.Mode = Auto
	}
	c.logger.Info().Str("mode", string(c.state.Mode)).Msg("Pump mode changed")

	return c.state, nil
}

// State returns the current state.
func (c *Controller) State() (State, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if err := c.checkLocked(); err != nil {
		return State{}, err
	}
	return c.state, nil
}

// Close ends the session. Later commands fail with invalid_state.
func (c *Controller) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.checkLocked(); err != nil {
		return err
	}
	c.closed = true
	c.logger.Debug().Str("state", c.state.String()).Msg("Pump controller closed")

	return nil
}

func (c *Controller) checkLocked() error {
	errFactory := errors.New()
	if !c.initialized {
		return errFactory.WithMessage(ErrNotInitialized, msgNotInitialized)
	}
	if c.closed {
		return errFactory.WithMessage(ErrClosed, msgClosed)
	}
	return nil
}
