package trend

import (
	"math"
	"sync"

	"codeberg.org/mutker/irrigatectl/internal/errors"
	"codeberg.org/mutker/irrigatectl/internal/telemetry"
)

// DefaultCapacity is the number of points kept per metric.
const DefaultCapacity = 12

// Point is one chart sample. Time is a preformatted x-axis label.
type Point struct {
	Time  string  `json:"time"`
	Value float64 `json:"value"`
}

// Direction summarizes the most recent movement in a window.
type Direction string

const (
	Up     Direction = "up"
	Down   Direction = "down"
	Stable Direction = "stable"
)

// Window is a fixed-capacity FIFO of points in insertion order.
type Window struct {
	points []Point
	start  int
	size   int
	mu     sync.RWMutex
}

// NewWindow returns an empty window holding at most capacity points.
func NewWindow(capacity int) (*Window, error) {
	if capacity < 1 {
		return nil, errors.New().WithData(errors.ErrConfiguration, "trend capacity must be at least 1")
	}
	return &Window{points: make([]Point, capacity)}, nil
}

// Append adds p, evicting the oldest point when the window is full.
func (w *Window) Append(p Point) {
	w.mu.Lock()
	defer w.mu.Unlock()

	capacity := len(w.points)
	if w.size < capacity {
		w.points[(w.start+w.size)%capacity] = p
		w.size++
		return
	}

	w.points[w.start] = p
	w.start = (w.start + 1) % capacity
}

// Points returns a copy of the window, oldest first.
func (w *Window) Points() []Point {
	w.mu.RLock()
	defer w.mu.RUnlock()

	out := make([]Point, w.size)
	for i := 0; i < w.size; i++ {
		out[i] = w.points[(w.start+i)%len(w.points)]
	}
	return out
}

func (w *Window) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.size
}

func (w *Window) Cap() int {
	return len(w.points)
}

// Direction compares the two newest points. Differences within tolerance
// count as stable, as does a window with fewer than two points.
func (w *Window) Direction(tolerance float64) Direction {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if w.size < 2 {
		return Stable
	}

	capacity := len(w.points)
	last := w.points[(w.start+w.size-1)%capacity].Value
	prev := w.points[(w.start+w.size-2)%capacity].Value
	diff := last - prev

	switch {
	case math.Abs(diff) <= tolerance:
		return Stable
	case diff > 0:
		return Up
	default:
		return Down
	}
}

// Set keeps one window per metric.
type Set struct {
	windows [telemetry.MetricCount]*Window
}

// NewSet creates a window of the given capacity for every metric.
func NewSet(capacity int) (*Set, error) {
	s := &Set{}
	for _, m := range telemetry.Metrics() {
		w, err := NewWindow(capacity)
		if err != nil {
			return nil, err
		}
		s.windows[m] = w
	}
	return s, nil
}

// Append adds p to the metric's window. Unknown metrics are ignored.
func (s *Set) Append(metric telemetry.MetricID, p Point) {
	if !metric.Valid() {
		return
	}
	s.windows[metric].Append(p)
}

// Snapshot returns a copy of the metric's points, oldest first.
func (s *Set) Snapshot(metric telemetry.MetricID) []Point {
	if !metric.Valid() {
		return nil
	}
	return s.windows[metric].Points()
}

// Window exposes the metric's window for read-only helpers like Direction.
func (s *Set) Window(metric telemetry.MetricID) *Window {
	if !metric.Valid() {
		return nil
	}
	return s.windows[metric]
}
