package dashboard

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"codeberg.org/mutker/irrigatectl/internal/errors"
	"codeberg.org/mutker/irrigatectl/internal/logger"
	"codeberg.org/mutker/irrigatectl/internal/pump"
	"codeberg.org/mutker/irrigatectl/internal/sampler"
	"codeberg.org/mutker/irrigatectl/internal/telemetry"
	"codeberg.org/mutker/irrigatectl/internal/trend"
)

// Observer receives every published snapshot on the loop goroutine.
// Implementations must not block.
type Observer interface {
	Observe(snap *Snapshot)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(snap *Snapshot)

func (f ObserverFunc) Observe(snap *Snapshot) { f(snap) }

// Policy is the automatic pump rule. It is consulted after each successful
// tick while the pump is in Auto mode and returns whether the pump should
// be running. No policy is built in.
type Policy func(snap *Snapshot) bool

type Option func(*Aggregator)

func WithLogger(log logger.Logger) Option {
	return func(a *Aggregator) {
		if log != nil {
			a.logger = log
		}
	}
}

func WithPolicy(p Policy) Option {
	return func(a *Aggregator) { a.policy = p }
}

func WithObserver(o Observer) Option {
	return func(a *Aggregator) {
		if o != nil {
			a.observers = append(a.observers, o)
		}
	}
}

// WithClock replaces time.Now for the PumpChangedAt of pump commands.
func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) {
		if now != nil {
			a.now = now
		}
	}
}

type commandKind int

const (
	cmdTogglePump commandKind = iota
	cmdToggleMode
)

func (k commandKind) String() string {
	if k == cmdTogglePump {
		return "toggle_pump"
	}
	return "toggle_mode"
}

type commandResult struct {
	state pump.State
	err   error
}

type command struct {
	kind  commandKind
	reply chan commandResult
}

// Aggregator owns the dashboard state. All mutation happens on the goroutine
// running Run; readers only ever see whole published snapshots.
type Aggregator struct {
	cfg       Config
	sampler   *sampler.Sampler
	pump      *pump.Controller
	trends    *trend.Set
	policy    Policy
	observers []Observer
	now       func() time.Time
	logger    logger.Logger

	current  atomic.Pointer[Snapshot]
	commands chan command
	started  atomic.Bool
	done     chan struct{}

	subs    map[int]chan *Snapshot
	nextSub int
	subMu   sync.Mutex

	// Owned by the loop goroutine.
	lastSet     telemetry.Set
	haveSet     bool
	setRunning  bool
	pumpChanged time.Time
	ticks       uint64
	skipped     uint64
	staleSince  time.Time
	staleReason string
}

// New validates cfg and returns an aggregator that is not yet running.
func New(cfg Config, smp *sampler.Sampler, ctrl *pump.Controller, opts ...Option) (*Aggregator, error) {
	errFactory := errors.New()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if smp == nil {
		return nil, errFactory.WithData(errors.ErrConfiguration, "sampler is nil")
	}
	if ctrl == nil {
		return nil, errFactory.WithData(errors.ErrConfiguration, "pump controller is nil")
	}

	trends, err := trend.NewSet(cfg.Capacity)
	if err != nil {
		return nil, err
	}

	a := &Aggregator{
		cfg:      cfg,
		sampler:  smp,
		pump:     ctrl,
		trends:   trends,
		now:      time.Now,
		logger:   logger.Nop(),
		commands: make(chan command),
		done:     make(chan struct{}),
		subs:     make(map[int]chan *Snapshot),
	}
	a.cfg.Bands = cfg.Bands.Clone()

	for _, opt := range opts {
		opt(a)
	}

	return a, nil
}

// Run processes ticks and commands until ctx is cancelled. It may be called
// once; the scheduler is stopped on return.
func (a *Aggregator) Run(ctx context.Context) error {
	if !a.started.CompareAndSwap(false, true) {
		return errors.New().WithMessage(errors.ErrAlreadyRunning, "dashboard loop already started")
	}
	defer close(a.done)

	ticks := a.sampler.Ticks(ctx)
	defer a.sampler.Stop()

	a.logger.Info().
		Str("strategy", a.sampler.Strategy().Name()).
		Int("trend_capacity", a.cfg.Capacity).
		Msg("Dashboard loop started")

	for {
		select {
		case <-ctx.Done():
			a.logger.Info().Uint64("ticks", a.ticks).Msg("Dashboard loop stopped")
			return nil
		case at := <-ticks:
			a.processTick(ctx, at)
		case cmd := <-a.commands:
			a.execute(cmd)
		}
	}
}

// CurrentSnapshot returns the latest snapshot, or nil before the first
// successful tick. It never blocks.
func (a *Aggregator) CurrentSnapshot() *Snapshot {
	return a.current.Load()
}

// Running reports whether the loop is accepting commands.
func (a *Aggregator) Running() bool {
	if !a.started.Load() {
		return false
	}
	select {
	case <-a.done:
		return false
	default:
		return true
	}
}

// Bands returns a copy of the configured bands.
func (a *Aggregator) Bands() telemetry.Bands {
	return a.cfg.Bands.Clone()
}

// TogglePump flips the pump run state through the loop and returns the new
// state.
func (a *Aggregator) TogglePump(ctx context.Context) (pump.State, error) {
	return a.submit(ctx, cmdTogglePump)
}

// ToggleMode flips the pump mode through the loop and returns the new state.
func (a *Aggregator) ToggleMode(ctx context.Context) (pump.State, error) {
	return a.submit(ctx, cmdToggleMode)
}

func (a *Aggregator) submit(ctx context.Context, kind commandKind) (pump.State, error) {
	errFactory := errors.New()
	notRunning := errFactory.WithMessage(errors.ErrInvalidState, "dashboard loop is not running")

	if !a.started.Load() {
		return pump.State{}, notRunning
	}
	if err := ctx.Err(); err != nil {
		return pump.State{}, errFactory.Wrap(errors.ErrTimeout, err)
	}

	cmd := command{kind: kind, reply: make(chan commandResult, 1)}
	select {
	case a.commands <- cmd:
	case <-a.done:
		return pump.State{}, notRunning
	case <-ctx.Done():
		return pump.State{}, errFactory.Wrap(errors.ErrTimeout, ctx.Err())
	}

	// An accepted command is applied, so its result is reported even if ctx
	// ends meanwhile. The loop replies before it takes anything else.
	res := <-cmd.reply
	return res.state, res.err
}

func (a *Aggregator) execute(cmd command) {
	var (
		state pump.State
		err   error
	)

	switch cmd.kind {
	case cmdTogglePump:
		state, err = a.pump.TogglePump()
	case cmdToggleMode:
		state, err = a.pump.ToggleMode()
	}

	if err != nil {
		a.logger.WarnWithCode(err).Str("command", cmd.kind.String()).Msg("Pump command rejected")
	} else {
		a.refresh(state)
	}

	cmd.reply <- commandResult{state: state, err: err}
}

func (a *Aggregator) processTick(ctx context.Context, at time.Time) {
	set, err := a.sampler.Sample(ctx, at)
	if err != nil {
		a.skip(at, err)
		return
	}

	state, err := a.pump.State()
	if err != nil {
		a.skip(at, err)
		return
	}

	a.lastSet = set
	a.haveSet = true
	a.setRunning = state.Running
	if a.pumpChanged.IsZero() {
		a.pumpChanged = at
	}
	a.ticks++
	a.skipped = 0
	a.staleSince = time.Time{}
	a.staleReason = ""

	label := at.Format(a.cfg.LabelLayout)
	for _, m := range telemetry.Metrics() {
		band := a.cfg.Bands[m]
		a.trends.Append(m, trend.Point{Time: label, Value: band.Clamp(a.rawValue(m, state))})
	}

	snap := a.build(at, state)
	a.publish(snap)

	a.logger.Debug().
		Uint64("tick", snap.Tick).
		Str("pump", state.String()).
		Str("worst", snap.Worst().String()).
		Msg("Snapshot published")

	a.applyPolicy(snap)
}

// skip keeps the previous snapshot visible and marks it stale. Before the
// first successful tick there is nothing to re-publish.
func (a *Aggregator) skip(at time.Time, cause error) {
	if a.staleSince.IsZero() {
		a.staleSince = at
	}
	a.skipped++
	a.staleReason = cause.Error()

	a.logger.WarnWithCode(cause).
		Uint64("skipped_ticks", a.skipped).
		Msg("Tick skipped")

	prev := a.current.Load()
	if prev == nil {
		return
	}

	next := *prev
	a.markStale(&next)
	next.ID = newID()
	a.publish(&next)
}

// refresh publishes the current readings with a new pump state. Only ticks
// add trend points or move UpdatedAt.
func (a *Aggregator) refresh(state pump.State) {
	a.pumpChanged = a.now()

	prev := a.current.Load()
	if !a.haveSet || prev == nil {
		return
	}
	a.publish(a.build(prev.UpdatedAt, state))
}

func (a *Aggregator) applyPolicy(snap *Snapshot) {
	if a.policy == nil || snap.Pump.Mode != pump.Auto {
		return
	}
	if want := a.policy(snap); want == snap.Pump.Running {
		return
	}

	state, err := a.pump.TogglePump()
	if err != nil {
		a.logger.WarnWithCode(err).Msg("Automatic pump toggle rejected")
		return
	}
	a.logger.Info().Str("pump", state.String()).Msg("Automatic policy toggled pump")
	a.refresh(state)
}

// rawValue reports flow only while the pump runs and the set was sampled
// with it running, so a start command shows 0 until the next tick.
func (a *Aggregator) rawValue(m telemetry.MetricID, state pump.State) float64 {
	v := a.lastSet[m].Value
	if m != telemetry.FlowRate {
		return v
	}
	if !a.setRunning {
		return 0
	}
	return state.FlowRate(v)
}

func (a *Aggregator) build(updatedAt time.Time, state pump.State) *Snapshot {
	snap := &Snapshot{
		ID:            newID(),
		Tick:          a.ticks,
		UpdatedAt:     updatedAt,
		Pump:          state,
		PumpChangedAt: a.pumpChanged,
		FlowRate:      a.rawValue(telemetry.FlowRate, state),
	}

	for _, m := range telemetry.Metrics() {
		band := a.cfg.Bands[m]
		reading := a.lastSet[m]
		reading.Value = a.rawValue(m, state)
		status := telemetry.Classify(reading.Value, band)

		snap.Metrics[m] = MetricView{
			Metric:     m,
			Title:      m.Title(),
			Unit:       m.Unit(),
			Reading:    reading,
			Value:      band.Clamp(reading.Value),
			Status:     status,
			Descriptor: telemetry.Describe(status),
			Band:       band,
			Position:   band.Position(reading.Value),
			Trend:      a.trends.Snapshot(m),
			Direction:  a.trends.Window(m).Direction(a.cfg.Tolerance),
		}
	}

	a.markStale(snap)

	return snap
}

func (a *Aggregator) markStale(snap *Snapshot) {
	snap.SkippedTicks = a.skipped
	if a.staleSince.IsZero() {
		snap.Stale = false
		snap.StaleSince = nil
		snap.StaleReason = ""
		return
	}
	since := a.staleSince
	snap.Stale = true
	snap.StaleSince = &since
	snap.StaleReason = a.staleReason
}

func (a *Aggregator) publish(snap *Snapshot) {
	a.current.Store(snap)
	a.notify(snap)
	for _, o := range a.observers {
		o.Observe(snap)
	}
}
