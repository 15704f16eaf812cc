package identity

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	identityService "github.com/hongslab/aga-care/backend/internal/service/identity"
	"github.com/hongslab/aga-care/backend/pkg/utils"
)

// Handler issues device identities.
type Handler struct {
	provider identityService.Provider
}

func New(provider identityService.Provider) *Handler {
	return &Handler{provider: provider}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/identity", h.handleIssue)
}

// handleIssue mints a new anonymous device identity. Clients persist
// the returned id locally and present it on every family route.
func (h *Handler) handleIssue(w http.ResponseWriter, r *http.Request) {
	dev, err := h.provider.Issue(r.Context())
	if err != nil {
		log.Printf("[identity] issue failed: %v", err)
		utils.RespondError(w, http.StatusInternalServerError, "failed to issue identity")
		return
	}

	utils.RespondJSON(w, http.StatusCreated, dev)
}
