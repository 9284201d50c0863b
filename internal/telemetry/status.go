package telemetry

import (
	"math"

	"codeberg.org/mutker/irrigatectl/internal/errors"
)

// Status is the health classification of a reading.
type Status int

const (
	StatusGood Status = iota
	StatusWarning
	StatusCritical
)

func (s Status) String() string {
	switch s {
	case StatusGood:
		return "good"
	case StatusWarning:
		return "warning"
	case StatusCritical:
		return "critical"
	default:
		return "unknown"
	}
}

func (s Status) MarshalText() ([]byte, error) {
	if s < StatusGood || s > StatusCritical {
		return nil, errors.New().WithData(errors.ErrInvalidArgument, "status out of range")
	}
	return []byte(s.String()), nil
}

func (s *Status) UnmarshalText(text []byte) error {
	switch string(text) {
	case "good":
		*s = StatusGood
	case "warning":
		*s = StatusWarning
	case "critical":
		*s = StatusCritical
	default:
		return errors.New().WithData(errors.ErrInvalidArgument, "unknown status "+string(text))
	}
	return nil
}

// Classify maps a value to a Status against band. It is total: NaN and
// infinities are critical.
func Classify(value float64, band Band) Status {
	switch {
	case math.IsNaN(value):
		return StatusCritical
	case band.Optimal(value):
		return StatusGood
	case band.Contains(value):
		return StatusWarning
	default:
		return StatusCritical
	}
}

// Descriptor is the renderer-facing presentation of a Status. Renderers
// look it up here instead of keeping their own status-to-style mapping.
type Descriptor struct {
	Label string `json:"label"`
	Tone  string `json:"tone"`
}

var descriptors = map[Status]Descriptor{
	StatusGood:     {Label: "Optimal", Tone: "success"},
	StatusWarning:  {Label: "Attention", Tone: "warning"},
	StatusCritical: {Label: "Critical", Tone: "destructive"},
}

// Describe returns the descriptor for s.
func Describe(s Status) Descriptor {
	if d, ok := descriptors[s]; ok {
		return d
	}
	return Descriptor{Label: "Unknown", Tone: "muted"}
}

// Descriptors returns a copy of the whole table.
func Descriptors() map[Status]Descriptor {
	out := make(map[Status]Descriptor, len(descriptors))
	for k, v := range descriptors {
		out[k] = v
	}
	return out
}
