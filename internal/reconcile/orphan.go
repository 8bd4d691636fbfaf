package reconcile

import (
	"context"
	"fmt"
	"strings"

	"github.com/MrSnakeDoc/nomad-reconciler/internal/logger"
	"github.com/MrSnakeDoc/nomad-reconciler/internal/nomad"
)

// LookupResult classifies a single allocation lookup.
type LookupResult int

const (
	// AllocationFound means the registration is healthy.
	AllocationFound LookupResult = iota
	// AllocationNotFound means the API answered with a non-success status.
	AllocationNotFound
	// AllocationUnreachable means the API could not be reached.
	AllocationUnreachable
)

func (r LookupResult) String() string {
	switch r {
	case AllocationFound:
		return "found"
	case AllocationNotFound:
		return "not_found"
	case AllocationUnreachable:
		return "unreachable"
	default:
		return "unknown"
	}
}

// classifyLookup maps the outcome of GetAllocation to a LookupResult.
func classifyLookup(err error) LookupResult {
	switch {
	case err == nil:
		return AllocationFound
	case nomad.IsTransport(err):
		return AllocationUnreachable
	default:
		return AllocationNotFound
	}
}

// isOrphan decides whether a failed lookup marks the registration as orphan.
// By default any failure does (a 403, a 500 or an outage included). In strict
// mode only a 404 does and every other failure is returned as fatal.
func (e *Engine) isOrphan(result LookupResult, err error) (bool, error) {
	if result == AllocationFound {
		return false, nil
	}
	if !e.opts.StrictOrphanLookup {
		return true, nil
	}
	if nomad.IsNotFound(err) {
		return true, nil
	}
	return false, fmt.Errorf("allocation lookup: %w", err)
}

func (e *Engine) sweepOrphans(ctx context.Context, report *Report) error {
	e.logger.Info("checking invalid services on published services",
		logger.String("cycle_id", report.CycleID))

	namespaces, err := e.client.ListServices(ctx, nomad.Namespace(nomad.NamespaceAll))
	if err != nil {
		return fmt.Errorf("list services: %w", err)
	}

	for _, ns := range namespaces {
		e.logger.Debug("found services in namespace",
			logger.String("namespace", ns.Namespace),
			logger.Int("count", len(ns.Services)))

		for _, svc := range ns.Services {
			if err := e.inspectService(ctx, ns.Namespace, svc.ServiceName, report); err != nil {
				return err
			}
		}
	}

	if len(report.InvalidServices) == 0 {
		e.logger.Info("no invalid service found")
	} else {
		e.logger.Info("found invalid services to clean up",
			logger.Int("count", len(report.InvalidServices)),
			logger.Int("deleted", report.DeletedServices),
			logger.Int("failed", report.FailedDeletes),
			logger.String("services", strings.Join(report.InvalidServices, ", ")))
	}
	return nil
}

func (e *Engine) inspectService(ctx context.Context, namespace, name string, report *Report) error {
	registrations, err := e.client.GetService(ctx, name, nomad.Namespace(namespace))
	if err != nil {
		return fmt.Errorf("get service %s: %w", name, err)
	}

	e.logger.Debug("service registrations",
		logger.String("service", name),
		logger.Int("count", len(registrations)))

	for i, reg := range registrations {
		e.logger.Debug("registration",
			logger.String("service", name),
			logger.Int("index", i),
			logger.String("id", reg.ID),
			logger.String("allocation_id", reg.AllocID),
			logger.String("datacenter", reg.Datacenter),
			logger.String("namespace", reg.Namespace),
			logger.String("address", reg.Address),
			logger.Int("port", reg.Port))

		_, lookupErr := e.client.GetAllocation(ctx, reg.AllocID, nomad.Namespace(namespace))
		result := classifyLookup(lookupErr)

		orphan, err := e.isOrphan(result, lookupErr)
		if err != nil {
			return fmt.Errorf("service %s (%s): %w", name, reg.ID, err)
		}
		if !orphan {
			continue
		}

		e.logger.Debug("found invalid service, allocation does not exist",
			logger.String("service", name),
			logger.String("id", reg.ID),
			logger.String("allocation_id", reg.AllocID),
			logger.String("lookup", result.String()),
			logger.Error(lookupErr))
		report.InvalidServices = append(report.InvalidServices, name)
		e.metrics.OrphanFound()

		if err := e.deleteRegistration(ctx, namespace, name, reg.ID, report); err != nil {
			return err
		}
	}
	return nil
}

// deleteRegistration removes one orphan. Only a 403 is returned; any other
// failure is logged and the sweep goes on.
func (e *Engine) deleteRegistration(ctx context.Context, namespace, name, id string, report *Report) error {
	deleted, err := e.client.DeleteService(ctx, name, id, nomad.Namespace(namespace))
	if err != nil && nomad.IsNotAuthorized(err) {
		return fmt.Errorf("delete service %s (%s): %w", name, id, err)
	}
	e.metrics.ServiceDeleted(deleted)

	if deleted {
		report.DeletedServices++
		e.logger.Info("deleted invalid service",
			logger.String("service", name),
			logger.String("id", id),
			logger.String("namespace", namespace))
		return nil
	}

	report.FailedDeletes++
	fields := []logger.Field{
		logger.String("service", name),
		logger.String("id", id),
		logger.String("namespace", namespace),
	}
	if err != nil {
		fields = append(fields, logger.Error(err))
	}
	e.logger.Error("failed to delete invalid service", fields...)
	return nil
}
