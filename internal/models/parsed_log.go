package models

import "time"

// ParsedLog represents the result of interpreting a connectivity log.
type ParsedLog struct {
	Intervals []Interval   `json:"intervals"`
	Errors    []ParseError `json:"errors,omitempty"`
	Stats     ParseStats   `json:"stats"`
	TimeRange *TimeRange   `json:"timeRange,omitempty"`
}

// ParseStats counts what the interpreter saw and what it dropped.
type ParseStats struct {
	Lines            int `json:"lines"`
	DownMarkers      int `json:"downMarkers"`
	UpMarkers        int `json:"upMarkers"`
	UnmatchedUps     int `json:"unmatchedUps"`
	OverwrittenDowns int `json:"overwrittenDowns"`
	Voided           int `json:"voided"`
	Rejected         int `json:"rejected"`
	OpenAtEOF        int `json:"openAtEof"`
}

// TimeRange represents a time window.
type TimeRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// ParseError represents a recoverable problem with a single log line.
type ParseError struct {
	Line    int    `json:"line"`
	Content string `json:"content"`
	Reason  string `json:"reason"`
}

// NewParsedLog creates a new empty ParsedLog.
func NewParsedLog() *ParsedLog {
	return &ParsedLog{
		Intervals: make([]Interval, 0),
		Errors:    make([]ParseError, 0),
	}
}
