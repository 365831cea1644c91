package models

import "time"

// DaySummary aggregates outages for one calendar day in the display zone.
type DaySummary struct {
	Day          string        `json:"day"` // YYYY-MM-DD
	Outages      int           `json:"outages"`
	Downtime     time.Duration `json:"downtime"`
	Longest      time.Duration `json:"longest"`
	Observed     time.Duration `json:"observed"`
	Availability float64       `json:"availability"` // 0..1
}
