// Package api serves the local control API used by the daemon: preference
// reads and writes, manual sync triggers, log producers and health.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hyperengineering/courier"
	"github.com/rs/zerolog"
)

// NewRouter creates a chi router with middleware and all control API routes
// bound to client.
func NewRouter(client *courier.Client, log zerolog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestLogger(log))
	r.Use(Recovery(log))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", health(client))

		r.Get("/preferences", getPreferences(client))
		r.Put("/preferences", updatePreferences(client))
		r.Get("/preferences/{key}", getPreference(client))
		r.Put("/preferences/{key}", updatePreference(client))

		r.Post("/sync", syncPreferences(client))
		r.Post("/sync/force", forceSync(client))
		r.Post("/sync/logs", syncLogs(client))
		r.Get("/sync/status", syncStatus(client))

		r.Post("/logs/calls", recordCall(client))
		r.Post("/logs/sms", recordSMS(client))
	})

	return r
}
