package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/nomad-reconciler/internal/httpserver/deps"
	"github.com/MrSnakeDoc/nomad-reconciler/internal/httpserver/mw"
)

func init() { Register(registerMetrics) }

func registerMetrics(r chi.Router, d deps.Deps) {
	if d.Metrics == nil {
		return
	}
	r.With(mw.AllowOnlyCIDRs(d.AllowedCIDRs, d.Logger)).Method("GET", "/metrics", d.Metrics.Handler())
}
