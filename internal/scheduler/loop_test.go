package scheduler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/nomad-reconciler/internal/logger"
	"github.com/MrSnakeDoc/nomad-reconciler/internal/metrics"
	"github.com/MrSnakeDoc/nomad-reconciler/internal/reconcile"
)

type fakeCycler struct {
	runs    int
	fail    error
	failAt  int
	onCycle func(run int, ctx context.Context)
}

func (f *fakeCycler) RunCycle(ctx context.Context) (*reconcile.Report, error) {
	f.runs++
	if f.onCycle != nil {
		f.onCycle(f.runs, ctx)
	}
	now := time.Now()
	report := &reconcile.Report{CycleID: "c", StartedAt: now, FinishedAt: now.Add(time.Millisecond)}
	if f.fail != nil && f.runs == f.failAt {
		return report, f.fail
	}
	return report, nil
}

type recordingSink struct {
	mu      sync.Mutex
	reports []*reconcile.Report
	err     error
}

func (s *recordingSink) Record(_ context.Context, r *reconcile.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports = append(s.reports, r)
	return s.err
}

var errStop = errors.New("stop requested")

func TestLoopOneshotRunsOnce(t *testing.T) {
	c := &fakeCycler{}
	sink := &recordingSink{}

	err := NewLoop(c, logger.Nop(), nil, time.Hour, true, sink).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, c.runs)
	assert.Len(t, sink.reports, 1)
}

func TestLoopFatalErrorTerminates(t *testing.T) {
	boom := errors.New("boom")
	c := &fakeCycler{fail: boom, failAt: 2}
	sink := &recordingSink{}
	m := metrics.New()

	err := NewLoop(c, logger.Nop(), m, time.Millisecond, false, sink).Run(context.Background())
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 2, c.runs)
	// the failed cycle is not published
	assert.Len(t, sink.reports, 1)
}

func TestLoopSinkErrorDoesNotFailCycle(t *testing.T) {
	c := &fakeCycler{}
	bad := &recordingSink{err: errors.New("redis down")}
	good := &recordingSink{}

	err := NewLoop(c, logger.Nop(), nil, time.Hour, true, bad, good).Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, bad.reports, 1)
	assert.Len(t, good.reports, 1)
}

func TestLoopCancelledDuringCycleFinishesCycle(t *testing.T) {
	ctx, cancel := context.WithCancelCause(context.Background())
	c := &fakeCycler{onCycle: func(run int, cctx context.Context) {
		cancel(errStop)
		// the cycle context ignores the cancellation
		assert.NoError(t, cctx.Err())
	}}
	sink := &recordingSink{}

	err := NewLoop(c, logger.Nop(), nil, time.Hour, false, sink).Run(ctx)
	require.ErrorIs(t, err, errStop)
	assert.Equal(t, 1, c.runs)
	assert.Len(t, sink.reports, 1)
}

func TestLoopCancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancelCause(context.Background())
	cancel(errStop)
	c := &fakeCycler{}

	err := NewLoop(c, logger.Nop(), nil, time.Millisecond, false).Run(ctx)
	require.ErrorIs(t, err, errStop)
	assert.Zero(t, c.runs)
}

func TestLoopRepeatsAfterInterval(t *testing.T) {
	ctx, cancel := context.WithCancelCause(context.Background())
	c := &fakeCycler{onCycle: func(run int, _ context.Context) {
		if run == 3 {
			cancel(errStop)
		}
	}}
	m := metrics.New()

	err := NewLoop(c, logger.Nop(), m, time.Millisecond, false).Run(ctx)
	require.ErrorIs(t, err, errStop)
	assert.Equal(t, 3, c.runs)
	assert.Contains(t, string(mustScrape(t, m)), `nomad_reconciler_cycles_total{result="success"} 3`)
}

func mustScrape(t *testing.T, m *metrics.Metrics) []byte {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	return rec.Body.Bytes()
}
