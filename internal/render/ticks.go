package render

import (
	"time"

	"gonum.org/v1/plot"
)

// hourTicks labels the shared daily axis every hour, "12 AM" through "11 PM".
type hourTicks struct{}

func (hourTicks) Ticks(min, max float64) []plot.Tick {
	ticks := make([]plot.Tick, 0, 24)
	for h := 0; h < 24; h++ {
		v := float64(h * 3600)
		if v < min || v > max {
			continue
		}
		label := time.Date(2000, 1, 1, h, 0, 0, 0, time.UTC).Format("03 PM")
		ticks = append(ticks, plot.Tick{Value: v, Label: label})
	}
	return ticks
}

// rangeTicks labels an absolute axis of unix seconds, picking a step that keeps
// roughly a dozen labels.
type rangeTicks struct {
	loc *time.Location
}

var tickSteps = []time.Duration{
	time.Hour,
	3 * time.Hour,
	6 * time.Hour,
	12 * time.Hour,
	24 * time.Hour,
	7 * 24 * time.Hour,
}

func (t rangeTicks) Ticks(min, max float64) []plot.Tick {
	if max <= min {
		return nil
	}
	span := time.Duration(max-min) * time.Second
	step := tickSteps[len(tickSteps)-1]
	for _, s := range tickSteps {
		if span/s <= 14 {
			step = s
			break
		}
	}

	start := time.Unix(int64(min), 0).In(t.loc)
	y, m, d := start.Date()
	cur := time.Date(y, m, d, 0, 0, 0, 0, t.loc)
	for cur.Before(start) {
		cur = cur.Add(step)
	}

	var ticks []plot.Tick
	for ; float64(cur.Unix()) <= max; cur = cur.Add(step) {
		layout := "Jan 02 03 PM"
		if step >= 24*time.Hour {
			layout = "Mon Jan 02"
		}
		ticks = append(ticks, plot.Tick{Value: float64(cur.Unix()), Label: cur.Format(layout)})
	}
	return ticks
}
