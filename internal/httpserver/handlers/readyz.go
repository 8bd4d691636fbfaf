package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/MrSnakeDoc/nomad-reconciler/internal/httpserver/deps"
)

type readyzResponse struct {
	Ready  bool `json:"ready"`
	Cycles int  `json:"cycles"`
}

// Readyz answers 503 until the first cycle completed.
func Readyz(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-store")

		ready := d.Tracker != nil && d.Tracker.Ready()
		code := http.StatusOK
		if !ready {
			code = http.StatusServiceUnavailable
		}
		cycles := 0
		if d.Tracker != nil {
			cycles = d.Tracker.Cycles()
		}

		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(readyzResponse{
			Ready:  ready,
			Cycles: cycles,
		})
	}
}
