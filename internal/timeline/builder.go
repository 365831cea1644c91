// Package timeline turns resolved outages into render-ready step series.
package timeline

import (
	"sort"
	"time"

	"github.com/netcheck/linkwatch/internal/models"
)

// DayLabelLayout is used for each row label, e.g. "Mon Jan 01".
const DayLabelLayout = "Mon Jan 02"

// InitialState is assumed before the first recorded event.
const InitialState = models.StateUp

// Options configure the builder. Zero Options use time.Local and time.Now.
type Options struct {
	Location *time.Location
	Now      func() time.Time
	// ThroughToday extends the covered days up to the current day even when the
	// last event is older.
	ThroughToday bool
}

func (o Options) location() *time.Location {
	if o.Location == nil {
		return time.Local
	}
	return o.Location
}

func (o Options) now() time.Time {
	if o.Now == nil {
		return time.Now().In(o.location())
	}
	return o.Now().In(o.location())
}

// Events flattens intervals into state changes ordered by instant.
func Events(intervals []models.Interval, loc *time.Location) []models.Event {
	events := make([]models.Event, 0, len(intervals)*2)
	for _, iv := range intervals {
		for _, ev := range iv.Events() {
			ev.At = ev.At.In(loc)
			events = append(events, ev)
		}
	}
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].At.Before(events[j].At)
	})
	return events
}

// BuildDays returns one series per calendar day from the first day with data through
// the last (or today, with ThroughToday). Each series starts at local midnight with the
// inherited state and ends at 23:59:59, or at now for the current day.
func BuildDays(intervals []models.Interval, opts Options) []models.DaySeries {
	loc := opts.location()
	now := opts.now()
	events := Events(intervals, loc)

	first, last, ok := dayRange(events, now, opts.ThroughToday)
	if !ok {
		return nil
	}
	today := midnight(now)

	days := make([]models.DaySeries, 0, daysBetween(first, last)+1)
	state := InitialState
	idx := 0
	for day := first; !day.After(last); day = nextMidnight(day) {
		end := nextMidnight(day)
		isToday := day.Equal(today)

		samples := []models.Sample{{At: day, State: state}}
		for ; idx < len(events) && events[idx].At.Before(end); idx++ {
			ev := events[idx]
			if isToday && ev.At.After(now) {
				// Never draw into the future; later events stay unconsumed.
				break
			}
			samples = append(samples, models.Sample{At: ev.At, State: ev.State})
			state = ev.State
		}

		terminal := end.Add(-time.Second)
		if isToday {
			terminal = now
		}
		if lastAt := samples[len(samples)-1].At; terminal.Before(lastAt) {
			terminal = lastAt
		}
		samples = append(samples, models.Sample{At: terminal, State: state})

		days = append(days, models.DaySeries{
			Day:     day,
			Label:   day.Format(DayLabelLayout),
			Samples: samples,
		})
	}
	return days
}

// BuildRange returns a single continuous series covering the same days as BuildDays.
func BuildRange(intervals []models.Interval, opts Options) (models.DaySeries, bool) {
	days := BuildDays(intervals, opts)
	if len(days) == 0 {
		return models.DaySeries{}, false
	}

	samples := make([]models.Sample, 0, len(days)*2)
	samples = append(samples, days[0].Samples[0])
	for _, d := range days {
		// Drop each day's seed and terminal; they only repeat the carried state.
		samples = append(samples, d.Samples[1:len(d.Samples)-1]...)
	}
	lastDay := days[len(days)-1]
	samples = append(samples, lastDay.Samples[len(lastDay.Samples)-1])

	label := days[0].Label
	if len(days) > 1 {
		label += " - " + lastDay.Label
	}
	return models.DaySeries{Day: days[0].Day, Label: label, Samples: samples}, true
}

// dayRange picks the first and last local midnights to cover. Days after today are
// never covered.
func dayRange(events []models.Event, now time.Time, throughToday bool) (first, last time.Time, ok bool) {
	if len(events) == 0 {
		return time.Time{}, time.Time{}, false
	}
	today := midnight(now)
	first = midnight(events[0].At)
	if first.After(today) {
		return time.Time{}, time.Time{}, false
	}
	last = midnight(events[len(events)-1].At)
	if throughToday || last.After(today) {
		last = today
	}
	return first, last, true
}

func midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func nextMidnight(day time.Time) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, day.Location())
}

func daysBetween(a, b time.Time) int {
	n := 0
	for d := a; d.Before(b); d = nextMidnight(d) {
		n++
	}
	return n
}
