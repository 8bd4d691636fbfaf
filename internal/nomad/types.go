package nomad

// Only the fields read by the reconciler are decoded; everything else in the
// payloads is ignored.

// ServiceNamespace is one entry of GET /v1/services.
type ServiceNamespace struct {
	Namespace string        `json:"Namespace"`
	Services  []ServiceStub `json:"Services"`
}

// ServiceStub names a service published in a namespace.
type ServiceStub struct {
	ServiceName string   `json:"ServiceName"`
	Tags        []string `json:"Tags,omitempty"`
}

// ServiceRegistration is one published instance of a service.
type ServiceRegistration struct {
	ID          string   `json:"ID"`
	ServiceName string   `json:"ServiceName"`
	Namespace   string   `json:"Namespace"`
	NodeID      string   `json:"NodeID"`
	Datacenter  string   `json:"Datacenter"`
	JobID       string   `json:"JobID"`
	AllocID     string   `json:"AllocID"`
	Address     string   `json:"Address"`
	Port        int      `json:"Port"`
	Tags        []string `json:"Tags,omitempty"`
}

// JobStub is one entry of GET /v1/jobs. Type and Status are pointers so an
// absent field can be told apart from an empty one.
type JobStub struct {
	ID        string  `json:"ID"`
	Name      string  `json:"Name"`
	Namespace string  `json:"Namespace"`
	Type      *string `json:"Type"`
	Status    *string `json:"Status"`
}

// Job is the subset of a job specification embedded in allocations.
type Job struct {
	ID         string      `json:"ID"`
	Namespace  string      `json:"Namespace"`
	Type       *string     `json:"Type"`
	Status     *string     `json:"Status"`
	TaskGroups []TaskGroup `json:"TaskGroups"`
}

// TaskGroup declares services directly or through its tasks.
type TaskGroup struct {
	Name     string    `json:"Name"`
	Services []Service `json:"Services"`
	Tasks    []Task    `json:"Tasks"`
}

// Task is a single unit of work inside a task group.
type Task struct {
	Name     string    `json:"Name"`
	Services []Service `json:"Services"`
}

// Service is a service declaration in a job specification.
type Service struct {
	Name      string `json:"Name"`
	PortLabel string `json:"PortLabel,omitempty"`
	Provider  string `json:"Provider,omitempty"`
}

// AllocationStub is one entry of GET /v1/job/{id}/allocations.
type AllocationStub struct {
	ID            string `json:"ID"`
	Namespace     string `json:"Namespace"`
	JobID         string `json:"JobID"`
	TaskGroup     string `json:"TaskGroup"`
	DesiredStatus string `json:"DesiredStatus"`
	ClientStatus  string `json:"ClientStatus"`
}

// Allocation is the full allocation returned by GET /v1/allocation/{id}.
type Allocation struct {
	ID            string `json:"ID"`
	Namespace     string `json:"Namespace"`
	JobID         string `json:"JobID"`
	TaskGroup     string `json:"TaskGroup"`
	DesiredStatus string `json:"DesiredStatus"`
	ClientStatus  string `json:"ClientStatus"`
	Job           *Job   `json:"Job"`
}

// RestartRequest is the body of POST /v1/client/allocation/{id}/restart.
type RestartRequest struct {
	TaskName string `json:"TaskName,omitempty"`
	AllTasks bool   `json:"AllTasks"`
}

// WriteResponse is returned by the mutating allocation endpoints.
type WriteResponse struct {
	EvalID string `json:"EvalID,omitempty"`
	Index  uint64 `json:"Index,omitempty"`
}

const (
	JobTypeService   = "service"
	JobStatusRunning = "running"
	DesiredStatusRun = "run"
	DesiredStop      = "stop"

	// NamespaceAll spans every namespace in list calls.
	NamespaceAll = "*"
)

// DeclaredServices returns the group's own services, or when the group
// declares none (nil), the union of its tasks' services.
func (tg TaskGroup) DeclaredServices() []Service {
	if tg.Services != nil {
		return tg.Services
	}
	var out []Service
	for _, task := range tg.Tasks {
		out = append(out, task.Services...)
	}
	return out
}
