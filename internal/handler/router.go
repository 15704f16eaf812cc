package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/hongslab/aga-care/backend/internal/config"
	familyHandler "github.com/hongslab/aga-care/backend/internal/handler/family"
	identityHandler "github.com/hongslab/aga-care/backend/internal/handler/identity"
	"github.com/hongslab/aga-care/backend/internal/handler/live"
	middlewarePkg "github.com/hongslab/aga-care/backend/internal/middleware"
	identityService "github.com/hongslab/aga-care/backend/internal/service/identity"
	"github.com/hongslab/aga-care/backend/internal/service/session"
	"github.com/hongslab/aga-care/backend/internal/service/syncer"
	"github.com/hongslab/aga-care/backend/pkg/utils"
)

// NewRouter wires HTTP routes to core services. manager is nil when
// the AI key is absent; the chat surface then answers 503 with a
// remediation hint while identity, reads and profile edits keep
// working.
func NewRouter(cfg *config.Config, identitySvc identityService.Provider, sy *syncer.Synchronizer, manager *session.Manager) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	r.Route("/api", func(api chi.Router) {
		api.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			utils.RespondJSON(w, http.StatusOK, map[string]string{
				"status": "ok",
				"ai":     string(cfg.Status()),
			})
		})

		identityHandler.New(identitySvc).RegisterRoutes(api)

		// Every family route requires a verified device identity.
		api.Group(func(fam chi.Router) {
			fam.Use(middlewarePkg.RequireDevice(identitySvc))

			familyHandler.New(sy, manager).RegisterRoutes(fam)
			live.New(sy, manager).RegisterRoutes(fam)
		})
	})

	return r
}
