package status

import (
	"context"
	"sync"
	"time"

	"github.com/MrSnakeDoc/nomad-reconciler/internal/reconcile"
)

// Tracker keeps the report of the last completed cycle for the status server.
// It is written by the scheduler loop and read by HTTP handlers; the sweeps
// never read it.
type Tracker struct {
	mu        sync.RWMutex
	last      *reconcile.Report
	cycles    int
	lastCycle time.Time
}

// NewTracker creates an empty tracker
func NewTracker() *Tracker {
	return &Tracker{}
}

// Record stores a copy of report as the latest one.
func (t *Tracker) Record(_ context.Context, report *reconcile.Report) error {
	if report == nil {
		return nil
	}
	cp := *report

	t.mu.Lock()
	defer t.mu.Unlock()

	t.last = &cp
	t.cycles++
	t.lastCycle = report.FinishedAt
	return nil
}

// Last returns the latest report, if any.
func (t *Tracker) Last() (*reconcile.Report, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.last == nil {
		return nil, false
	}
	cp := *t.last
	return &cp, true
}

// Ready reports whether at least one cycle completed.
func (t *Tracker) Ready() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.last != nil
}

// Cycles returns the number of recorded cycles.
func (t *Tracker) Cycles() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.cycles
}

// LastCycle returns when the last recorded cycle finished.
func (t *Tracker) LastCycle() time.Time {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.lastCycle
}
