// Package pipeline runs read, parse, build and render passes over the connectivity log.
package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/netcheck/linkwatch/internal/models"
	"github.com/netcheck/linkwatch/internal/parser"
	"github.com/netcheck/linkwatch/internal/render"
	"github.com/netcheck/linkwatch/internal/session"
	"github.com/netcheck/linkwatch/internal/storage"
	"github.com/netcheck/linkwatch/internal/timeline"
	"github.com/zeebo/xxh3"
)

// Renderer draws day series onto w.
type Renderer interface {
	Render(w io.Writer, series []models.DaySeries) error
}

// Summarizer aggregates outages per day.
type Summarizer interface {
	Summarize(ctx context.Context, intervals []models.Interval, days []models.DaySeries, now time.Time) ([]models.DaySummary, error)
}

// Observer is told about every finished run. snap is nil for failed runs.
type Observer interface {
	RunFinished(run models.Run, snap *session.Snapshot)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(run models.Run, snap *session.Snapshot)

// RunFinished calls f.
func (f ObserverFunc) RunFinished(run models.Run, snap *session.Snapshot) {
	f(run, snap)
}

// Config describes what a pass reads and writes.
type Config struct {
	LogPath      string
	ImageName    string
	Location     *time.Location
	Mode         render.Mode
	ThroughToday bool
	Now          func() time.Time
}

// Pipeline performs one pass at a time. It is driven by a single Runner and is
// not safe for concurrent Run calls.
type Pipeline struct {
	cfg       Config
	store     storage.Store
	renderer  Renderer
	reporter  Summarizer
	sessions  *session.Manager
	observers []Observer
}

// New creates a pipeline. reporter may be nil to skip the daily summary.
func New(cfg Config, store storage.Store, renderer Renderer, reporter Summarizer, sessions *session.Manager) *Pipeline {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Mode == "" {
		cfg.Mode = render.ModeDaily
	}
	return &Pipeline{
		cfg:      cfg,
		store:    store,
		renderer: renderer,
		reporter: reporter,
		sessions: sessions,
	}
}

// Observe registers o for run notifications. Call before the runner starts.
func (p *Pipeline) Observe(o Observer) {
	p.observers = append(p.observers, o)
}

// Run performs one full pass and records it in the session manager. Failures are
// recorded on the returned run as well as returned.
func (p *Pipeline) Run(ctx context.Context, trigger models.Trigger) (run *models.Run, err error) {
	run = p.sessions.StartRun(trigger)
	short := run.ID[:8]

	var snap *session.Snapshot
	defer func() {
		if r := recover(); r != nil {
			fmt.Printf("[Pipeline %s] PANIC recovered: %v\n", short, r)
			err = fmt.Errorf("run panicked: %v", r)
		}
		if err != nil {
			p.sessions.Fail(run, err)
			fmt.Printf("[Pipeline %s] ERROR: %v\n", short, err)
			snap = nil
		} else {
			p.sessions.Finish(run, snap)
		}
		for _, o := range p.observers {
			o.RunFinished(*run, snap)
		}
	}()

	snap, err = p.pass(ctx, run)
	return run, err
}

func (p *Pipeline) pass(ctx context.Context, run *models.Run) (*session.Snapshot, error) {
	data, err := readLog(p.cfg.LogPath)
	if err != nil {
		return nil, err
	}
	run.LogDigest = fmt.Sprintf("%016x", xxh3.Hash(data))

	parsed, err := parser.Interpret(bytes.NewReader(data), parser.Options{
		Location: p.cfg.Location,
		Logf:     log.Printf,
	})
	if err != nil {
		return nil, fmt.Errorf("interpret %s: %w", p.cfg.LogPath, err)
	}

	// One instant for the whole pass keeps every day consistent.
	now := p.cfg.Now().In(p.cfg.Location)
	topts := timeline.Options{
		Location:     p.cfg.Location,
		Now:          func() time.Time { return now },
		ThroughToday: p.cfg.ThroughToday,
	}
	days := timeline.BuildDays(parsed.Intervals, topts)
	snap := &session.Snapshot{Log: parsed, Days: days, Now: now}
	if rng, ok := timeline.BuildRange(parsed.Intervals, topts); ok {
		snap.Range = &rng
	}

	run.Stats = parsed.Stats
	run.Errors = parsed.Errors
	run.IntervalCount = len(parsed.Intervals)
	run.DayCount = len(days)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	image, err := p.render(snap)
	switch {
	case errors.Is(err, render.ErrNothingToRender):
		run.Status = models.RunStatusEmpty
	case err != nil:
		return nil, err
	default:
		run.Status = models.RunStatusComplete
		run.Image = image
	}

	if p.reporter != nil && len(days) > 0 {
		summary, err := p.reporter.Summarize(ctx, parsed.Intervals, days, now)
		if err != nil {
			// The chart is already published; a missing summary is not fatal.
			fmt.Printf("[Pipeline %s] summary failed: %v\n", run.ID[:8], err)
		} else {
			snap.Summary = summary
		}
	}

	run.FinishedAt = p.cfg.Now()
	run.ProcessingTimeMs = run.FinishedAt.Sub(run.StartedAt).Milliseconds()
	return snap, nil
}

// render writes the image atomically. An empty timeline leaves any previous image
// untouched and returns ErrNothingToRender.
func (p *Pipeline) render(snap *session.Snapshot) (*models.FileInfo, error) {
	if len(snap.Log.Intervals) == 0 {
		return nil, render.ErrNothingToRender
	}

	var series []models.DaySeries
	if p.cfg.Mode == render.ModeStrip {
		if snap.Range != nil {
			series = []models.DaySeries{*snap.Range}
		}
	} else {
		series = snap.Days
	}
	if len(series) == 0 {
		return nil, render.ErrNothingToRender
	}

	info, err := p.store.WriteAtomic(p.cfg.ImageName, func(w io.Writer) error {
		return p.renderer.Render(w, series)
	})
	if err != nil {
		return nil, fmt.Errorf("render %s: %w", p.cfg.ImageName, err)
	}
	return info, nil
}

// readLog returns the log contents. A missing file reads as empty.
func readLog(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}
