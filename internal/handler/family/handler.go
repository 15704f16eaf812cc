package family

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	middlewarePkg "github.com/hongslab/aga-care/backend/internal/middleware"
	familyModel "github.com/hongslab/aga-care/backend/internal/model/family"
	"github.com/hongslab/aga-care/backend/internal/service/session"
	"github.com/hongslab/aga-care/backend/internal/service/syncer"
	"github.com/hongslab/aga-care/backend/pkg/utils"
)

const unconfiguredMessage = "AI is not configured; set GEMINI_API_KEY and restart the server"

// Handler serves the family conversation document over plain HTTP.
type Handler struct {
	synchronizer *syncer.Synchronizer
	manager      *session.Manager
}

// New creates the family handler. manager is nil when the AI key is
// absent; the message endpoint then answers 503 while reads and
// profile edits keep working.
func New(sy *syncer.Synchronizer, manager *session.Manager) *Handler {
	return &Handler{synchronizer: sy, manager: manager}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/families/{familyID}", h.handleGetState)
	r.Put("/families/{familyID}/profile", h.handleUpdateProfile)
	r.Post("/families/{familyID}/messages", h.handleSubmitMessage)
}

func (h *Handler) handleGetState(w http.ResponseWriter, r *http.Request) {
	familyID := chi.URLParam(r, "familyID")

	snap, err := h.synchronizer.Current(r.Context(), familyID)
	if err != nil {
		log.Printf("[family] load failed for family=%s: %v", familyID, err)
		utils.RespondError(w, http.StatusInternalServerError, "failed to load family state")
		return
	}

	utils.RespondJSON(w, http.StatusOK, snap)
}

func (h *Handler) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	familyID := chi.URLParam(r, "familyID")

	var profile familyModel.BabyProfile
	if err := json.NewDecoder(r.Body).Decode(&profile); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := profile.Validate(); err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.synchronizer.Publish(r.Context(), familyID, syncer.Patch{BabyProfile: &profile}); err != nil {
		log.Printf("[family] profile publish failed for family=%s: %v", familyID, err)
		utils.RespondError(w, http.StatusInternalServerError, "failed to save profile")
		return
	}

	snap, err := h.synchronizer.Current(r.Context(), familyID)
	if err != nil {
		log.Printf("[family] load after profile update failed for family=%s: %v", familyID, err)
		utils.RespondError(w, http.StatusInternalServerError, "failed to load family state")
		return
	}

	utils.RespondJSON(w, http.StatusOK, snap)
}

func (h *Handler) handleSubmitMessage(w http.ResponseWriter, r *http.Request) {
	familyID := chi.URLParam(r, "familyID")

	if h.manager == nil {
		utils.RespondError(w, http.StatusServiceUnavailable, unconfiguredMessage)
		return
	}

	dev, ok := middlewarePkg.DeviceFrom(r.Context())
	if !ok {
		utils.RespondError(w, http.StatusUnauthorized, "device identity required")
		return
	}

	var payload struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ctrl, err := h.manager.Open(r.Context(), familyID, dev)
	if err != nil {
		log.Printf("[family] open session failed for family=%s: %v", familyID, err)
		utils.RespondError(w, sessionErrorStatus(err), "failed to open session")
		return
	}

	res, err := ctrl.Submit(r.Context(), payload.Text)
	if err != nil {
		switch {
		case errors.Is(err, session.ErrEmptyInput):
			utils.RespondError(w, http.StatusBadRequest, "text is required")
		case errors.Is(err, session.ErrSubmissionInFlight):
			utils.RespondError(w, http.StatusConflict, "a reply is already being generated for this session")
		case errors.Is(err, session.ErrSessionClosed):
			utils.RespondError(w, http.StatusConflict, "session is closed")
		default:
			log.Printf("[family] submit failed for family=%s: %v", familyID, err)
			utils.RespondError(w, http.StatusInternalServerError, "failed to submit message")
		}
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"emergency": res.Emergency,
		"reply":     res.Reply,
		"state":     res.State,
	})
}

func sessionErrorStatus(err error) int {
	switch session.CodeOf(err) {
	case session.ErrorConfig:
		return http.StatusServiceUnavailable
	case session.ErrorAuth:
		return http.StatusUnauthorized
	case session.ErrorSync:
		return http.StatusBadGateway
	default:
		if errors.Is(err, session.ErrFamilyIDRequired) {
			return http.StatusBadRequest
		}
		return http.StatusInternalServerError
	}
}
