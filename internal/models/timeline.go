package models

import "time"

// Sample is one point of a step function: State holds from At until the next sample.
type Sample struct {
	At    time.Time `json:"at" msgpack:"at"`
	State State     `json:"state" msgpack:"state"`
}

// DaySeries is the render-ready sample series for one calendar day, or for the
// whole range when the timeline is drawn as a single strip.
type DaySeries struct {
	Day     time.Time `json:"day" msgpack:"day"` // local midnight in the display zone
	Label   string    `json:"label" msgpack:"label"`
	Samples []Sample  `json:"samples" msgpack:"samples"`
}

// Start returns the instant of the first sample.
func (d DaySeries) Start() time.Time {
	if len(d.Samples) == 0 {
		return d.Day
	}
	return d.Samples[0].At
}

// End returns the instant of the last sample.
func (d DaySeries) End() time.Time {
	if len(d.Samples) == 0 {
		return d.Day
	}
	return d.Samples[len(d.Samples)-1].At
}

// StateAt returns the state in effect at t using step semantics.
func (d DaySeries) StateAt(t time.Time) State {
	state := StateUp
	for _, s := range d.Samples {
		if s.At.After(t) {
			break
		}
		state = s.State
	}
	return state
}
