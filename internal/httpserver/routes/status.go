package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/nomad-reconciler/internal/httpserver/deps"
	"github.com/MrSnakeDoc/nomad-reconciler/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/nomad-reconciler/internal/httpserver/mw"
)

func init() { Register(registerStatus) }

func registerStatus(r chi.Router, d deps.Deps) {
	r.With(mw.AllowOnlyCIDRs(d.AllowedCIDRs, d.Logger)).Get("/status", handlers.Status(d))
}
