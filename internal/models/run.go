package models

import "time"

// RunStatus represents the outcome of a render run.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusEmpty    RunStatus = "empty" // no intervals, nothing rendered
	RunStatusError    RunStatus = "error"
)

// Trigger names what started a run.
type Trigger string

const (
	TriggerStartup Trigger = "startup"
	TriggerChange  Trigger = "change"
	TriggerRefresh Trigger = "refresh"
)

// Run is one parse-and-render pass over the log.
type Run struct {
	ID               string       `json:"id"`
	Trigger          Trigger      `json:"trigger"`
	Status           RunStatus    `json:"status"`
	StartedAt        time.Time    `json:"startedAt"`
	FinishedAt       time.Time    `json:"finishedAt,omitempty"`
	ProcessingTimeMs int64        `json:"processingTimeMs,omitempty"`
	LogDigest        string       `json:"logDigest,omitempty"`
	IntervalCount    int          `json:"intervalCount"`
	DayCount         int          `json:"dayCount"`
	Stats            ParseStats   `json:"stats"`
	Errors           []ParseError `json:"errors,omitempty"`
	Error            string       `json:"error,omitempty"`
	Image            *FileInfo    `json:"image,omitempty"`
}

// NewRun creates a Run in running status.
func NewRun(id string, trigger Trigger, started time.Time) *Run {
	return &Run{
		ID:        id,
		Trigger:   trigger,
		Status:    RunStatusRunning,
		StartedAt: started,
		Errors:    make([]ParseError, 0),
	}
}

// Done reports whether the run has finished, successfully or not.
func (r *Run) Done() bool {
	return r.Status != RunStatusRunning
}
