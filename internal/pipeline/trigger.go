package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/netcheck/linkwatch/internal/models"
)

// Trigger coalesces change notifications for one file. At most one pass is ever
// pending; notifications that arrive while one is pending are absorbed by it.
type Trigger struct {
	path    string
	pending chan models.Trigger
}

// NewTrigger creates a trigger for path.
func NewTrigger(path string) (*Trigger, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", path, err)
	}
	return &Trigger{
		path:    filepath.Clean(abs),
		pending: make(chan models.Trigger, 1),
	}, nil
}

// Path returns the absolute path the trigger reacts to.
func (t *Trigger) Path() string {
	return t.path
}

// Notify requests a pass if path names the watched file. It never blocks and
// reports whether the path matched.
func (t *Trigger) Notify(path string) bool {
	abs, err := filepath.Abs(path)
	if err != nil || filepath.Clean(abs) != t.path {
		return false
	}
	t.fire(models.TriggerChange)
	return true
}

// Refresh requests a pass regardless of file changes.
func (t *Trigger) Refresh() {
	t.fire(models.TriggerRefresh)
}

func (t *Trigger) fire(kind models.Trigger) {
	select {
	case t.pending <- kind:
	default:
	}
}

// C delivers pending requests.
func (t *Trigger) C() <-chan models.Trigger {
	return t.pending
}

// Runner is the single consumer of a Trigger.
type Runner struct {
	pipeline *Pipeline
	trigger  *Trigger
	refresh  time.Duration
}

// NewRunner creates a runner. A refresh of zero disables the periodic pass.
func NewRunner(p *Pipeline, t *Trigger, refresh time.Duration) *Runner {
	return &Runner{pipeline: p, trigger: t, refresh: refresh}
}

// Run performs the startup pass, then one pass per pending request until ctx is
// done. Failed passes are logged by the pipeline and do not stop the loop.
func (r *Runner) Run(ctx context.Context) error {
	r.pipeline.Run(ctx, models.TriggerStartup)

	var tick <-chan time.Time
	if r.refresh > 0 {
		ticker := time.NewTicker(r.refresh)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-tick:
			r.trigger.Refresh()
		case kind := <-r.trigger.C():
			if ctx.Err() != nil {
				return nil
			}
			r.pipeline.Run(ctx, kind)
		}
	}
}
