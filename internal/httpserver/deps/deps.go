package deps

import (
	"context"
	"time"

	"github.com/MrSnakeDoc/nomad-reconciler/internal/logger"
	"github.com/MrSnakeDoc/nomad-reconciler/internal/metrics"
	"github.com/MrSnakeDoc/nomad-reconciler/internal/status"
)

// Pinger checks an optional backend, ex: the redis report store.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Deps struct {
	Logger       logger.Logger
	StartTime    time.Time
	Version      string
	Commit       string
	BuildDate    string
	GoVersion    string
	TimeNow      func() time.Time // for testing, defaults to time.Now
	AllowedCIDRs []string         // IPs allowed to access /status and /metrics
	Tracker      *status.Tracker  // last cycle report
	Metrics      *metrics.Metrics // served on /metrics
	ReportStore  Pinger           // nil when the redis sink is disabled
	Interval     time.Duration    // wait between cycles
}

func (d Deps) Now() time.Time {
	if d.TimeNow != nil {
		return d.TimeNow()
	}
	return time.Now()
}
