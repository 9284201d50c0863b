package sampler

import (
	"context"
	"sync"
	"time"
)

// DefaultInterval is the refresh cadence.
const DefaultInterval = 5 * time.Second

// Scheduler drives ticks. Start is called once; Stop releases the schedule
// and is safe to call more than once.
type Scheduler interface {
	Start(ctx context.Context) <-chan time.Time
	Stop()
}

// IntervalScheduler ticks on a wall-clock interval.
type IntervalScheduler struct {
	interval time.Duration
	ticker   *time.Ticker
	done     chan struct{}
	stopped  bool
	mu       sync.Mutex
}

func NewIntervalScheduler(interval time.Duration) *IntervalScheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &IntervalScheduler{interval: interval}
}

func (s *IntervalScheduler) Interval() time.Duration {
	return s.interval
}

// Start begins ticking. The ticker is released when ctx ends or Stop is
// called, whichever comes first.
func (s *IntervalScheduler) Start(ctx context.Context) <-chan time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ticker != nil {
		return s.ticker.C
	}

	s.ticker = time.NewTicker(s.interval)
	s.done = make(chan struct{})
	go func(done <-chan struct{}) {
		select {
		case <-ctx.Done():
			s.Stop()
		case <-done:
		}
	}(s.done)

	return s.ticker.C
}

func (s *IntervalScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ticker == nil || s.stopped {
		return
	}
	s.ticker.Stop()
	close(s.done)
	s.stopped = true
}

// ManualScheduler ticks only when told to. Tick blocks until the consumer
// receives the tick, which keeps tests free of wall-clock sleeps.
type ManualScheduler struct {
	ticks   chan time.Time
	stopped chan struct{}
	once    sync.Once
}

func NewManualScheduler() *ManualScheduler {
	return &ManualScheduler{
		ticks:   make(chan time.Time),
		stopped: make(chan struct{}),
	}
}

func (s *ManualScheduler) Start(ctx context.Context) <-chan time.Time {
	go func() {
		select {
		case <-ctx.Done():
			s.Stop()
		case <-s.stopped:
		}
	}()
	return s.ticks
}

// Tick delivers at to the consumer. It returns false once stopped.
func (s *ManualScheduler) Tick(at time.Time) bool {
	select {
	case <-s.stopped:
		return false
	default:
	}

	select {
	case s.ticks <- at:
		return true
	case <-s.stopped:
		return false
	}
}

func (s *ManualScheduler) Stop() {
	s.once.Do(func() { close(s.stopped) })
}

// Stopped reports whether the schedule has been released.
func (s *ManualScheduler) Stopped() bool {
	select {
	case <-s.stopped:
		return true
	default:
		return false
	}
}
