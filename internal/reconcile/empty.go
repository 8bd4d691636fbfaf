package reconcile

import (
	"context"
	"fmt"
	"strings"

	"github.com/MrSnakeDoc/nomad-reconciler/internal/logger"
	"github.com/MrSnakeDoc/nomad-reconciler/internal/nomad"
)

// eligible reports whether a job takes part in the empty-service sweep.
// Absent fields satisfy the filter.
func eligible(job nomad.JobStub) bool {
	if job.Type != nil && *job.Type != nomad.JobTypeService {
		return false
	}
	if job.Status != nil && *job.Status != nomad.JobStatusRunning {
		return false
	}
	return true
}

func (e *Engine) sweepEmptyServices(ctx context.Context, report *Report) error {
	e.logger.Info("checking empty services on running jobs",
		logger.String("cycle_id", report.CycleID))

	jobs, err := e.client.ListJobs(ctx, nomad.Namespace(nomad.NamespaceAll))
	if err != nil {
		return fmt.Errorf("list jobs: %w", err)
	}

	for _, job := range jobs {
		if !eligible(job) {
			continue
		}
		if err := e.inspectJob(ctx, job, report); err != nil {
			return err
		}
	}

	if len(report.RestartedAllocations) == 0 {
		e.logger.Info("no empty service found")
	} else {
		e.logger.Info("restarted allocations with empty services",
			logger.Int("count", len(report.RestartedAllocations)),
			logger.String("allocations", strings.Join(report.RestartedAllocations, ", ")))
	}
	return nil
}

func (e *Engine) inspectJob(ctx context.Context, job nomad.JobStub, report *Report) error {
	params := nomad.Namespace(job.Namespace)

	stubs, err := e.client.ListJobAllocations(ctx, job.ID, params)
	if nomad.IsNotFound(err) {
		e.logger.Debug("job disappeared since listing", logger.String("job", job.ID))
		return nil
	}
	if err != nil {
		return fmt.Errorf("list allocations of job %s: %w", job.ID, err)
	}

	for _, stub := range stubs {
		alloc, err := e.client.GetAllocation(ctx, stub.ID, params)
		if nomad.IsNotFound(err) {
			e.logger.Debug("allocation disappeared since listing",
				logger.String("job", job.ID),
				logger.String("allocation_id", stub.ID))
			continue
		}
		if err != nil {
			return fmt.Errorf("get allocation %s of job %s: %w", stub.ID, job.ID, err)
		}

		// Asked to stop but still around: force it.
		if alloc.DesiredStatus == nomad.DesiredStop {
			if err := e.forceStop(ctx, job, alloc.ID, report); err != nil {
				return err
			}
			continue
		}

		if err := e.checkAllocationServices(ctx, job, alloc, report); err != nil {
			return err
		}
	}
	return nil
}

// checkAllocationServices restarts the allocation when its task groups declare
// services but the job has none registered. At most one restart per allocation.
func (e *Engine) checkAllocationServices(ctx context.Context, job nomad.JobStub, alloc *nomad.Allocation, report *Report) error {
	if alloc.Job == nil {
		return nil
	}

	for _, group := range alloc.Job.TaskGroups {
		declared := group.DeclaredServices()
		e.logger.Debug("declared services",
			logger.String("job", job.ID),
			logger.String("allocation_id", alloc.ID),
			logger.String("task_group", group.Name),
			logger.Int("count", len(declared)),
			logger.String("namespace", job.Namespace))

		// no services, ex: csi plugins
		if len(declared) == 0 {
			continue
		}

		published, err := e.client.ListJobServices(ctx, job.ID, nomad.Namespace(job.Namespace))
		if err != nil {
			return fmt.Errorf("list services of job %s: %w", job.ID, err)
		}
		if len(published) > 0 {
			return nil
		}

		e.logger.Info("job services not registered, restarting allocation",
			logger.String("job", job.ID),
			logger.String("allocation_id", alloc.ID),
			logger.String("namespace", job.Namespace))
		return e.restart(ctx, job, alloc.ID, report)
	}
	return nil
}

func (e *Engine) restart(ctx context.Context, job nomad.JobStub, allocID string, report *Report) error {
	_, err := e.client.RestartAllocation(ctx, allocID, nomad.RestartRequest{AllTasks: true}, nomad.Namespace(job.Namespace))
	if err != nil {
		if nomad.IsNotAuthorized(err) {
			return fmt.Errorf("restart allocation %s: %w", allocID, err)
		}
		report.FailedRestarts++
		e.metrics.AllocationRestarted(false)
		e.logger.Error("failed to restart allocation",
			logger.String("job", job.ID),
			logger.String("allocation_id", allocID),
			logger.Error(err))
		return nil
	}

	e.metrics.AllocationRestarted(true)
	report.RestartedAllocations = append(report.RestartedAllocations, allocationKey(job.ID, allocID))
	return nil
}

func (e *Engine) forceStop(ctx context.Context, job nomad.JobStub, allocID string, report *Report) error {
	e.logger.Info("allocation desired to stop but still present, forcing stop",
		logger.String("job", job.ID),
		logger.String("allocation_id", allocID))

	_, err := e.client.StopAllocation(ctx, allocID, nomad.Namespace(job.Namespace))
	if err != nil {
		if nomad.IsNotAuthorized(err) {
			return fmt.Errorf("stop allocation %s: %w", allocID, err)
		}
		report.FailedStops++
		e.metrics.AllocationStopped(false)
		e.logger.Error("failed to stop allocation",
			logger.String("job", job.ID),
			logger.String("allocation_id", allocID),
			logger.Error(err))
		return nil
	}

	e.metrics.AllocationStopped(true)
	report.StoppedAllocations = append(report.StoppedAllocations, allocationKey(job.ID, allocID))
	return nil
}
