// Package session keeps the history of render runs and the latest published snapshot.
package session

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/netcheck/linkwatch/internal/models"
)

// DefaultMaxRuns bounds the history when the caller passes zero
const DefaultMaxRuns = 50

// Snapshot is everything one successful run produced. It is never modified after
// Finish publishes it.
type Snapshot struct {
	Run     models.Run          `json:"run"`
	Log     *models.ParsedLog   `json:"log"`
	Days    []models.DaySeries  `json:"days"`
	Range   *models.DaySeries   `json:"range,omitempty"`
	Summary []models.DaySummary `json:"summary,omitempty"`
	Now     time.Time           `json:"now"`
}

// Manager tracks runs. Reads come from the HTTP layer, writes from the single
// pipeline worker.
type Manager struct {
	runs    map[string]*runState
	order   []string // oldest first
	latest  *Snapshot
	mu      sync.RWMutex
	maxRuns int
	now     func() time.Time
}

type runState struct {
	Run *models.Run
}

// NewManager creates a run history holding at most maxRuns entries.
func NewManager(maxRuns int) *Manager {
	if maxRuns <= 0 {
		maxRuns = DefaultMaxRuns
	}
	return &Manager{
		runs:    make(map[string]*runState),
		maxRuns: maxRuns,
		now:     time.Now,
	}
}

// StartRun registers a new run and returns a copy the caller fills in.
func (m *Manager) StartRun(trigger models.Trigger) *models.Run {
	run := models.NewRun(uuid.New().String(), trigger, m.now())

	m.mu.Lock()
	defer m.mu.Unlock()

	stored := *run
	m.runs[run.ID] = &runState{Run: &stored}
	m.order = append(m.order, run.ID)
	m.trimLocked()

	return run
}

// Finish records the final state of run. A non-nil snapshot becomes the latest
// published result; failed runs pass nil and leave the previous one in place.
// An empty run does not replace a snapshot whose image is still being served,
// so the published data always matches the published image.
func (m *Manager) Finish(run *models.Run, snap *Snapshot) {
	if run.FinishedAt.IsZero() {
		run.FinishedAt = m.now()
	}
	if run.ProcessingTimeMs == 0 {
		run.ProcessingTimeMs = run.FinishedAt.Sub(run.StartedAt).Milliseconds()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	stored := *run
	if state, ok := m.runs[run.ID]; ok {
		state.Run = &stored
	} else {
		m.runs[run.ID] = &runState{Run: &stored}
		m.order = append(m.order, run.ID)
		m.trimLocked()
	}

	if snap == nil {
		return
	}
	if run.Status == models.RunStatusEmpty && m.latest != nil && m.latest.Run.Image != nil {
		return
	}
	snap.Run = stored
	m.latest = snap
}

// Fail marks run as errored.
func (m *Manager) Fail(run *models.Run, err error) {
	run.Status = models.RunStatusError
	run.Error = err.Error()
	m.Finish(run, nil)
}

// Latest returns the most recent published snapshot.
func (m *Manager) Latest() (*Snapshot, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.latest, m.latest != nil
}

// Get returns a run by ID.
func (m *Manager) Get(id string) (models.Run, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state, ok := m.runs[id]
	if !ok {
		return models.Run{}, false
	}
	return *state.Run, true
}

// Recent returns up to limit runs, newest first. limit <= 0 returns all.
func (m *Manager) Recent(limit int) []models.Run {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.Run, 0, len(m.order))
	for i := len(m.order) - 1; i >= 0; i-- {
		if limit > 0 && len(out) >= limit {
			break
		}
		out = append(out, *m.runs[m.order[i]].Run)
	}
	return out
}

// Len returns how many runs are held.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.runs)
}

// CleanupOldRuns removes finished runs older than maxAge. The run behind the
// latest snapshot is always kept.
func (m *Manager) CleanupOldRuns(maxAge time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := m.now().Add(-maxAge)
	removed := 0
	kept := m.order[:0]
	for _, id := range m.order {
		run := m.runs[id].Run
		if m.removable(run) && run.FinishedAt.Before(cutoff) {
			delete(m.runs, id)
			removed++
			continue
		}
		kept = append(kept, id)
	}
	m.order = kept

	if removed > 0 {
		fmt.Printf("[Manager] Cleaned up %d aged runs\n", removed)
	}
	return removed
}

// trimLocked drops the oldest finished runs once the history is over capacity.
func (m *Manager) trimLocked() {
	excess := len(m.order) - m.maxRuns
	if excess <= 0 {
		return
	}

	var victims []string
	for _, id := range m.order {
		if len(victims) >= excess {
			break
		}
		if m.removable(m.runs[id].Run) {
			victims = append(victims, id)
		}
	}
	if len(victims) == 0 {
		return
	}

	drop := make(map[string]struct{}, len(victims))
	for _, id := range victims {
		drop[id] = struct{}{}
		delete(m.runs, id)
	}
	kept := m.order[:0]
	for _, id := range m.order {
		if _, ok := drop[id]; !ok {
			kept = append(kept, id)
		}
	}
	m.order = kept
}

func (m *Manager) removable(run *models.Run) bool {
	if !run.Done() {
		return false
	}
	return m.latest == nil || m.latest.Run.ID != run.ID
}

// ErrorCounts groups recorded parse errors of a snapshot by reason, most frequent first.
func (s *Snapshot) ErrorCounts() []ReasonCount {
	if s == nil || s.Log == nil {
		return nil
	}
	counts := make(map[string]int)
	for _, e := range s.Log.Errors {
		counts[e.Reason]++
	}
	out := make([]ReasonCount, 0, len(counts))
	for reason, n := range counts {
		out = append(out, ReasonCount{Reason: reason, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Reason < out[j].Reason
	})
	return out
}

// ReasonCount is the number of rejected lines sharing a reason.
type ReasonCount struct {
	Reason string `json:"reason"`
	Count  int    `json:"count"`
}
