package reconcile

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/MrSnakeDoc/nomad-reconciler/internal/logger"
	"github.com/MrSnakeDoc/nomad-reconciler/internal/metrics"
	"github.com/MrSnakeDoc/nomad-reconciler/internal/nomad"
)

// Orchestrator is the part of the Nomad API the sweeps drive.
type Orchestrator interface {
	ListServices(ctx context.Context, params nomad.Params) ([]nomad.ServiceNamespace, error)
	GetService(ctx context.Context, name string, params nomad.Params) ([]nomad.ServiceRegistration, error)
	GetAllocation(ctx context.Context, id string, params nomad.Params) (*nomad.Allocation, error)
	DeleteService(ctx context.Context, name, id string, params nomad.Params) (bool, error)

	ListJobs(ctx context.Context, params nomad.Params) ([]nomad.JobStub, error)
	ListJobAllocations(ctx context.Context, jobID string, params nomad.Params) ([]nomad.AllocationStub, error)
	ListJobServices(ctx context.Context, jobID string, params nomad.Params) ([]nomad.ServiceRegistration, error)
	RestartAllocation(ctx context.Context, id string, body nomad.RestartRequest, params nomad.Params) (*nomad.WriteResponse, error)
	StopAllocation(ctx context.Context, id string, params nomad.Params) (*nomad.WriteResponse, error)
}

// Options tunes the engine.
type Options struct {
	// SkipEmptyServiceRestart disables the empty-service sweep.
	SkipEmptyServiceRestart bool
	// StrictOrphanLookup narrows orphan detection to a 404 allocation lookup.
	StrictOrphanLookup bool
}

// Engine runs the orphan sweep then the empty-service sweep once per cycle.
// It holds no state between cycles.
type Engine struct {
	client  Orchestrator
	logger  logger.Logger
	metrics *metrics.Metrics
	opts    Options
	now     func() time.Time
	newID   func() string
}

// NewEngine creates a new reconciliation engine
func NewEngine(client Orchestrator, log logger.Logger, m *metrics.Metrics, opts Options) *Engine {
	return &Engine{
		client:  client,
		logger:  log,
		metrics: m,
		opts:    opts,
		now:     time.Now,
		newID:   func() string { return uuid.NewString() },
	}
}

// RunCycle performs one reconciliation cycle. The returned report is never
// nil and reflects the work done up to the point of failure.
func (e *Engine) RunCycle(ctx context.Context) (*Report, error) {
	report := &Report{
		CycleID:           e.newID(),
		StartedAt:         e.now(),
		EmptyServiceSweep: !e.opts.SkipEmptyServiceRestart,
	}
	defer func() { report.FinishedAt = e.now() }()

	if err := e.sweepOrphans(ctx, report); err != nil {
		return report, err
	}

	if e.opts.SkipEmptyServiceRestart {
		e.logger.Debug("empty service sweep disabled",
			logger.String("cycle_id", report.CycleID))
		return report, nil
	}

	if err := e.sweepEmptyServices(ctx, report); err != nil {
		return report, err
	}
	return report, nil
}
