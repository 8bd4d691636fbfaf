package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/MrSnakeDoc/nomad-reconciler/internal/httpserver/deps"
	"github.com/MrSnakeDoc/nomad-reconciler/internal/reconcile"
)

type componentStatus struct {
	OK      bool   `json:"ok"`
	Enabled bool   `json:"enabled"`
	Error   string `json:"error,omitempty"`
}

type statusResponse struct {
	State      string                     `json:"state"`
	Cycles     int                        `json:"cycles"`
	LastCycle  string                     `json:"last_cycle,omitempty"`
	NextCycle  string                     `json:"next_cycle,omitempty"`
	LastReport *reconcile.Report          `json:"last_report,omitempty"`
	Components map[string]componentStatus `json:"components"`
}

// Status reports the last cycle and the state of the optional report sink.
func Status(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-store")

		resp := statusResponse{
			State: "starting",
			Components: map[string]componentStatus{
				"redis": checkReportStore(r.Context(), d),
			},
		}

		if d.Tracker != nil {
			if report, ok := d.Tracker.Last(); ok {
				resp.State = "running"
				resp.LastReport = report
				resp.Cycles = d.Tracker.Cycles()
				last := d.Tracker.LastCycle()
				resp.LastCycle = last.Format(time.RFC3339)
				if d.Interval > 0 {
					resp.NextCycle = last.Add(d.Interval).Format(time.RFC3339)
				}
			}
		}

		if c := resp.Components["redis"]; c.Enabled && !c.OK && resp.State == "running" {
			resp.State = "degraded"
		}

		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(resp)
	}
}

func checkReportStore(ctx context.Context, d deps.Deps) componentStatus {
	if d.ReportStore == nil {
		return componentStatus{OK: true, Enabled: false}
	}

	ctx, cancel := context.WithTimeout(ctx, 1*time.Second)
	defer cancel()

	if err := d.ReportStore.Ping(ctx); err != nil {
		return componentStatus{OK: false, Enabled: true, Error: err.Error()}
	}
	return componentStatus{OK: true, Enabled: true}
}
