package reconcile

import (
	"context"
	"errors"
	"net/http"

	"github.com/MrSnakeDoc/nomad-reconciler/internal/nomad"
)

// fakeNomad is an in-memory Orchestrator that records every mutating call.
type fakeNomad struct {
	namespaces    []nomad.ServiceNamespace
	registrations map[string][]nomad.ServiceRegistration // service name -> registrations
	allocations   map[string]*nomad.Allocation           // alloc id -> allocation
	allocErrors   map[string]error                       // alloc id -> lookup error
	jobs          []nomad.JobStub
	jobAllocs     map[string][]nomad.AllocationStub      // job id -> stubs
	jobServices   map[string][]nomad.ServiceRegistration // job id -> published

	listServicesErr error
	listJobsErr     error
	deleteStatus    map[string]int // registration id -> status, default 200
	restartErr      error
	stopErr         error

	calls       []string
	deletes     []string // "name/id"
	restarts    []nomad.RestartRequest
	restartIDs  []string
	stops       []string
	allocGets   []string
	jobSvcCalls []string
}

func newFakeNomad() *fakeNomad {
	return &fakeNomad{
		registrations: map[string][]nomad.ServiceRegistration{},
		allocations:   map[string]*nomad.Allocation{},
		allocErrors:   map[string]error{},
		jobAllocs:     map[string][]nomad.AllocationStub{},
		jobServices:   map[string][]nomad.ServiceRegistration{},
		deleteStatus:  map[string]int{},
	}
}

func responseErr(status int) error {
	re := nomad.ResponseError{Method: http.MethodGet, URL: "http://nomad/v1/x", StatusCode: status, Status: http.StatusText(status)}
	if status == http.StatusForbidden {
		return &nomad.NotAuthorizedError{ResponseError: re}
	}
	return &re
}

func transportErr() error {
	return &nomad.TransportError{Method: http.MethodGet, URL: "http://nomad/v1/x", Err: errors.New("connection refused")}
}

func (f *fakeNomad) ListServices(_ context.Context, _ nomad.Params) ([]nomad.ServiceNamespace, error) {
	f.calls = append(f.calls, "ListServices")
	return f.namespaces, f.listServicesErr
}

func (f *fakeNomad) GetService(_ context.Context, name string, _ nomad.Params) ([]nomad.ServiceRegistration, error) {
	f.calls = append(f.calls, "GetService")
	return f.registrations[name], nil
}

func (f *fakeNomad) GetAllocation(_ context.Context, id string, _ nomad.Params) (*nomad.Allocation, error) {
	f.calls = append(f.calls, "GetAllocation")
	f.allocGets = append(f.allocGets, id)
	if err, ok := f.allocErrors[id]; ok {
		return nil, err
	}
	alloc, ok := f.allocations[id]
	if !ok {
		return nil, responseErr(http.StatusNotFound)
	}
	return alloc, nil
}

func (f *fakeNomad) DeleteService(_ context.Context, name, id string, _ nomad.Params) (bool, error) {
	f.calls = append(f.calls, "DeleteService")
	f.deletes = append(f.deletes, name+"/"+id)
	status, ok := f.deleteStatus[id]
	if !ok {
		status = http.StatusOK
	}
	if status == http.StatusForbidden {
		return false, responseErr(status)
	}
	return status == http.StatusOK, nil
}

func (f *fakeNomad) ListJobs(_ context.Context, _ nomad.Params) ([]nomad.JobStub, error) {
	f.calls = append(f.calls, "ListJobs")
	return f.jobs, f.listJobsErr
}

func (f *fakeNomad) ListJobAllocations(_ context.Context, jobID string, _ nomad.Params) ([]nomad.AllocationStub, error) {
	f.calls = append(f.calls, "ListJobAllocations")
	return f.jobAllocs[jobID], nil
}

func (f *fakeNomad) ListJobServices(_ context.Context, jobID string, _ nomad.Params) ([]nomad.ServiceRegistration, error) {
	f.calls = append(f.calls, "ListJobServices")
	f.jobSvcCalls = append(f.jobSvcCalls, jobID)
	return f.jobServices[jobID], nil
}

func (f *fakeNomad) RestartAllocation(_ context.Context, id string, body nomad.RestartRequest, _ nomad.Params) (*nomad.WriteResponse, error) {
	f.calls = append(f.calls, "RestartAllocation")
	f.restartIDs = append(f.restartIDs, id)
	f.restarts = append(f.restarts, body)
	if f.restartErr != nil {
		return nil, f.restartErr
	}
	return &nomad.WriteResponse{}, nil
}

func (f *fakeNomad) StopAllocation(_ context.Context, id string, _ nomad.Params) (*nomad.WriteResponse, error) {
	f.calls = append(f.calls, "StopAllocation")
	f.stops = append(f.stops, id)
	if f.stopErr != nil {
		return nil, f.stopErr
	}
	return &nomad.WriteResponse{}, nil
}

func strPtr(s string) *string { return &s }

func serviceJob(id string) nomad.JobStub {
	return nomad.JobStub{ID: id, Namespace: "default", Type: strPtr("service"), Status: strPtr("running")}
}

func allocWithGroups(id, desired string, groups ...nomad.TaskGroup) *nomad.Allocation {
	return &nomad.Allocation{ID: id, DesiredStatus: desired, Job: &nomad.Job{TaskGroups: groups}}
}
