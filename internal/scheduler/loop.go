package scheduler

import (
	"context"
	"time"

	"github.com/MrSnakeDoc/nomad-reconciler/internal/logger"
	"github.com/MrSnakeDoc/nomad-reconciler/internal/metrics"
	"github.com/MrSnakeDoc/nomad-reconciler/internal/reconcile"
)

// DefaultSinkTimeout bounds a single report sink call.
const DefaultSinkTimeout = 5 * time.Second

// Cycler runs one reconciliation cycle.
type Cycler interface {
	RunCycle(ctx context.Context) (*reconcile.Report, error)
}

// ReportSink receives the report of every completed cycle.
type ReportSink interface {
	Record(ctx context.Context, report *reconcile.Report) error
}

// Loop drives cycles until a fatal error, a signal or the end of a oneshot run.
type Loop struct {
	engine      Cycler
	logger      logger.Logger
	metrics     *metrics.Metrics
	interval    time.Duration
	oneshot     bool
	sinks       []ReportSink
	sinkTimeout time.Duration
}

// NewLoop creates a new scheduler loop
func NewLoop(engine Cycler, log logger.Logger, m *metrics.Metrics, interval time.Duration, oneshot bool, sinks ...ReportSink) *Loop {
	return &Loop{
		engine:      engine,
		logger:      log,
		metrics:     m,
		interval:    interval,
		oneshot:     oneshot,
		sinks:       sinks,
		sinkTimeout: DefaultSinkTimeout,
	}
}

// Run blocks until the loop terminates. Cancellation of ctx is only observed
// between cycles and while waiting; a running cycle always completes. The
// returned error is context.Cause(ctx) on cancellation, the cycle error on a
// fatal failure, and nil after a oneshot cycle.
func (l *Loop) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return context.Cause(ctx)
		}

		report, err := l.engine.RunCycle(context.WithoutCancel(ctx))
		if err != nil {
			l.metrics.ObserveCycle(metrics.ResultFatal, report.Duration())
			return err
		}
		l.metrics.ObserveCycle(metrics.ResultSuccess, report.Duration())
		l.logger.Info("cycle completed",
			logger.String("cycle_id", report.CycleID),
			logger.Duration("duration", report.Duration()),
			logger.Int("deleted_services", report.DeletedServices),
			logger.Int("restarted_allocations", len(report.RestartedAllocations)))

		l.publish(ctx, report)

		if l.oneshot {
			return nil
		}

		l.logger.Info("waiting next loop", logger.Duration("interval", l.interval))
		timer := time.NewTimer(l.interval)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return context.Cause(ctx)
		}
	}
}

// publish hands the report to every sink. Sink failures never fail the cycle.
func (l *Loop) publish(ctx context.Context, report *reconcile.Report) {
	for _, sink := range l.sinks {
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.sinkTimeout)
		if err := sink.Record(sctx, report); err != nil {
			l.logger.Warn("failed to record cycle report",
				logger.String("cycle_id", report.CycleID),
				logger.Error(err))
		}
		cancel()
	}
}
