package reconcile

import (
	"fmt"
	"time"
)

// Report summarizes one cycle. It is handed to sinks and never read back.
type Report struct {
	CycleID    string    `json:"cycle_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	// InvalidServices lists service names once per orphaned registration, so
	// a name can repeat.
	InvalidServices []string `json:"invalid_services"`
	DeletedServices int      `json:"deleted_services"`
	FailedDeletes   int      `json:"failed_deletes"`

	EmptyServiceSweep    bool     `json:"empty_service_sweep"`
	RestartedAllocations []string `json:"restarted_allocations"` // "{job}:{alloc}"
	FailedRestarts       int      `json:"failed_restarts"`
	StoppedAllocations   []string `json:"stopped_allocations"` // "{job}:{alloc}"
	FailedStops          int      `json:"failed_stops"`
}

// Duration is the wall time of the cycle.
func (r *Report) Duration() time.Duration {
	if r == nil || r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

func allocationKey(jobID, allocID string) string {
	return fmt.Sprintf("%s:%s", jobID, allocID)
}
