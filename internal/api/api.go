// Package api exposes the HTTP control surface.
//
// All operations address one guild and forward into its playback engine.
// Inputs arrive as query parameters; responses are JSON. State-conflict
// no-ops (skip with nothing playing, resume while not paused) return 200
// with a descriptive status rather than an error.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/ahribot/foxbox/internal/app/admission"
	"github.com/ahribot/foxbox/internal/app/guild"
	"github.com/ahribot/foxbox/internal/audio"
)

// API bundles the control surface dependencies.
type API struct {
	registry  *guild.Registry
	directory audio.Directory
	admission *admission.Chain
}

// New creates the API handler set.
func New(registry *guild.Registry, directory audio.Directory, chain *admission.Chain) *API {
	return &API{
		registry:  registry,
		directory: directory,
		admission: chain,
	}
}

// Router builds the chi router for the control surface.
func (a *API) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/", a.handleRoot)

	r.Route("/guilds/{guildID}", func(r chi.Router) {
		r.Post("/say", a.handleSay)
		r.Post("/play", a.handlePlay)
		r.Post("/skip", a.handleSkip)
		r.Post("/stop", a.handleStop)
		r.Post("/pause", a.handlePause)
		r.Post("/resume", a.handleResume)
		r.Post("/volume", a.handleVolume)
		r.Get("/queue", a.handleQueue)
		r.Post("/leave", a.handleLeave)
	})

	return r
}

// handleRoot returns the static liveness payload.
func (a *API) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "foxbox is purring"})
}
