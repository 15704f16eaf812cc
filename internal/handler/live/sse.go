package live

import (
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hongslab/aga-care/backend/pkg/utils"
)

const heartbeatInterval = 25 * time.Second

// handleStream serves the family document as a Server-Sent Events
// stream: the current snapshot on connect, then one event per update.
// Read-only fallback for clients without WebSocket support.
func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
	familyID := chi.URLParam(r, "familyID")

	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	sub, err := h.synchronizer.Subscribe(r.Context(), familyID)
	if err != nil {
		log.Printf("[sse] subscribe failed for family=%s: %v", familyID, err)
		utils.RespondError(w, http.StatusInternalServerError, "failed to subscribe to family")
		return
	}
	defer sub.Close()

	utils.SetupSSEHeaders(w)

	ctx := r.Context()
	log.Printf("[sse] opening snapshot stream for family=%s", familyID)

	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Printf("[sse] closing snapshot stream for family=%s", familyID)
			return
		case snap, open := <-sub.Snapshots():
			if !open {
				return
			}
			utils.SendSSEEvent(w, flusher, "snapshot", snap)
		case t := <-ticker.C:
			utils.SendSSEEvent(w, flusher, "heartbeat", map[string]any{
				"time": t.UTC().Format(time.RFC3339),
			})
		}
	}
}
