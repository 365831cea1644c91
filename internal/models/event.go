// Package models contains domain types for the link timeline.
package models

import (
	"fmt"
	"time"
)

// State is the binary link state.
type State int

const (
	StateDown State = 0
	StateUp   State = 1
)

// String returns the label used on the chart and in JSON.
func (s State) String() string {
	if s == StateDown {
		return "Down"
	}
	return "Up"
}

// MarshalText encodes the state as "Up" or "Down".
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText accepts "Up" or "Down".
func (s *State) UnmarshalText(text []byte) error {
	switch string(text) {
	case "Down":
		*s = StateDown
	case "Up":
		*s = StateUp
	default:
		return fmt.Errorf("unknown link state %q", text)
	}
	return nil
}

// Event is a single state change at an instant.
type Event struct {
	At    time.Time `json:"at" msgpack:"at"`
	State State     `json:"state" msgpack:"state"`
}

// Interval is a resolved outage: the link went down at Down and came back at Up.
// Down is always strictly before Up.
type Interval struct {
	Down time.Time `json:"down" msgpack:"down"`
	Up   time.Time `json:"up" msgpack:"up"`
}

// Duration returns how long the link was down.
func (iv Interval) Duration() time.Duration {
	return iv.Up.Sub(iv.Down)
}

// Events flattens the interval into its down and up events.
func (iv Interval) Events() [2]Event {
	return [2]Event{
		{At: iv.Down, State: StateDown},
		{At: iv.Up, State: StateUp},
	}
}
