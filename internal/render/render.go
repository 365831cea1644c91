// Package render draws sample series as a step-function PNG.
package render

import (
	"errors"
	"fmt"
	"image/color"
	"io"
	"math"
	"time"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/netcheck/linkwatch/internal/models"
)

// ErrNothingToRender is returned for an empty series list.
var ErrNothingToRender = errors.New("nothing to render")

// Mode selects how series are laid out.
type Mode string

const (
	// ModeDaily draws one row per day with a shared midnight-to-midnight axis.
	ModeDaily Mode = "daily"
	// ModeStrip draws a single row on an absolute time axis.
	ModeStrip Mode = "strip"
)

// ParseMode validates a configured mode name.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeDaily, ModeStrip:
		return Mode(s), nil
	case "":
		return ModeDaily, nil
	}
	return "", fmt.Errorf("unknown render mode %q", s)
}

const (
	defaultWidth     = 12 * vg.Inch
	defaultRowHeight = 2 * vg.Inch
	secondsPerDay    = 24 * 60 * 60
)

var lineColor = color.RGBA{R: 0xd3, G: 0x2f, B: 0x2f, A: 0xff}

// Renderer draws the timeline chart.
type Renderer struct {
	Mode      Mode
	Location  *time.Location
	Title     string
	Width     vg.Length
	RowHeight vg.Length
}

// Render writes a PNG with one row per series.
func (r *Renderer) Render(w io.Writer, series []models.DaySeries) error {
	if len(series) == 0 {
		return ErrNothingToRender
	}
	width, rowHeight := r.Width, r.RowHeight
	if width <= 0 {
		width = defaultWidth
	}
	if rowHeight <= 0 {
		rowHeight = defaultRowHeight
	}

	rows := make([][]*plot.Plot, 0, len(series))
	for i, s := range series {
		p, err := r.row(s)
		if err != nil {
			return fmt.Errorf("plot %s: %w", s.Label, err)
		}
		if i == 0 {
			p.Title.Text = r.Title
		}
		if i == len(series)-1 {
			p.X.Label.Text = "Time (" + r.zoneName(s) + ")"
		}
		rows = append(rows, []*plot.Plot{p})
	}

	img := vgimg.New(width, rowHeight*vg.Length(len(series)))
	dc := draw.New(img)
	tiles := draw.Tiles{
		Rows: len(series),
		Cols: 1,
		PadX: vg.Millimeter,
		PadY: vg.Millimeter,
	}
	canvases := plot.Align(rows, tiles, dc)
	for i := range rows {
		rows[i][0].Draw(canvases[i][0])
	}

	png := vgimg.PngCanvas{Canvas: img}
	if _, err := png.WriteTo(w); err != nil {
		return fmt.Errorf("encode png: %w", err)
	}
	return nil
}

func (r *Renderer) row(s models.DaySeries) (*plot.Plot, error) {
	p := plot.New()
	p.Y.Label.Text = s.Label
	p.Y.Min, p.Y.Max = -0.2, 1.2
	p.Y.Tick.Marker = plot.ConstantTicks([]plot.Tick{
		{Value: float64(models.StateDown), Label: models.StateDown.String()},
		{Value: float64(models.StateUp), Label: models.StateUp.String()},
	})

	xys := make(plotter.XYs, len(s.Samples))
	switch r.Mode {
	case ModeStrip:
		for i, sample := range s.Samples {
			xys[i] = plotter.XY{X: float64(sample.At.Unix()), Y: float64(sample.State)}
		}
		p.X.Min, p.X.Max = float64(s.Start().Unix()), float64(s.End().Unix())
		p.X.Tick.Marker = rangeTicks{loc: r.location()}
	default:
		for i, sample := range s.Samples {
			xys[i] = plotter.XY{X: secondOfDay(s.Day, sample.At), Y: float64(sample.State)}
		}
		p.X.Min, p.X.Max = 0, secondsPerDay-1
		p.X.Tick.Marker = hourTicks{}
	}
	p.X.Tick.Label.Rotation = math.Pi / 4
	p.X.Tick.Label.XAlign = draw.XRight
	p.X.Tick.Label.YAlign = draw.YCenter

	line, err := plotter.NewLine(xys)
	if err != nil {
		return nil, err
	}
	line.StepStyle = plotter.PostStep
	line.LineStyle.Width = vg.Points(2)
	line.LineStyle.Color = lineColor

	grid := plotter.NewGrid()
	grid.Horizontal.Width = 0
	p.Add(grid, line)
	return p, nil
}

func (r *Renderer) location() *time.Location {
	if r.Location == nil {
		return time.Local
	}
	return r.Location
}

func (r *Renderer) zoneName(s models.DaySeries) string {
	name, _ := s.Start().In(r.location()).Zone()
	return name
}

// secondOfDay maps an instant onto the shared 00:00..23:59:59 axis of its row.
// Rows line up by wall-clock time, so DST days keep their hour marks.
func secondOfDay(day, at time.Time) float64 {
	if at.Before(day) {
		return 0
	}
	y, mon, d := day.Date()
	if !at.Before(time.Date(y, mon, d+1, 0, 0, 0, 0, day.Location())) {
		return secondsPerDay - 1
	}
	hh, mm, ss := at.In(day.Location()).Clock()
	wall := float64(hh*3600+mm*60+ss) + float64(at.Nanosecond())/float64(time.Second)
	if wall > secondsPerDay-1 {
		return secondsPerDay - 1
	}
	return wall
}
