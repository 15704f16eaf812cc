package live

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	middlewarePkg "github.com/hongslab/aga-care/backend/internal/middleware"
	"github.com/hongslab/aga-care/backend/internal/model/device"
	familyModel "github.com/hongslab/aga-care/backend/internal/model/family"
	"github.com/hongslab/aga-care/backend/internal/service/session"
	"github.com/hongslab/aga-care/backend/internal/service/syncer"
)

const (
	readDeadline = 60 * time.Second
	pingInterval = 54 * time.Second
)

// Handler pushes family snapshots to connected devices and accepts
// submissions over the same socket.
type Handler struct {
	synchronizer *syncer.Synchronizer
	manager      *session.Manager
	upgrader     websocket.Upgrader
}

// New creates the live handler. manager is nil when the AI key is
// absent; snapshot pushes still work, message submissions are refused.
func New(sy *syncer.Synchronizer, manager *session.Manager) *Handler {
	return &Handler{
		synchronizer: sy,
		manager:      manager,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/families/{familyID}/ws", h.handleWebSocket)
	r.Get("/families/{familyID}/stream", h.handleStream)
}

type inboundMessage struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
}

type outgoingMessage struct {
	Type      string      `json:"type"`
	FamilyID  string      `json:"familyId,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// safeConn serializes writes: the snapshot pusher and submission
// results run on separate goroutines over one socket.
type safeConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *safeConn) writeJSON(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(v)
}

func (c *safeConn) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(websocket.PingMessage, nil)
}

func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	familyID := chi.URLParam(r, "familyID")
	if familyID == "" {
		http.Error(w, "familyID is required", http.StatusBadRequest)
		return
	}

	dev, ok := middlewarePkg.DeviceFrom(r.Context())
	if !ok {
		http.Error(w, "device identity required", http.StatusUnauthorized)
		return
	}

	sub, err := h.synchronizer.Subscribe(r.Context(), familyID)
	if err != nil {
		log.Printf("[websocket] subscribe failed for family=%s: %v", familyID, err)
		http.Error(w, "failed to subscribe to family", http.StatusInternalServerError)
		return
	}
	defer sub.Close()

	rawConn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[websocket] upgrade failed: %v", err)
		return
	}
	defer rawConn.Close()

	log.Printf("[websocket] new connection family=%s device=%s", familyID, dev.ID)

	conn := &safeConn{conn: rawConn}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	rawConn.SetReadDeadline(time.Now().Add(readDeadline))
	rawConn.SetPongHandler(func(string) error {
		rawConn.SetReadDeadline(time.Now().Add(readDeadline))
		return nil
	})

	go h.pingLoop(ctx, conn)
	go h.pushSnapshots(ctx, conn, familyID, sub)

	h.send(conn, familyID, "connected", map[string]interface{}{
		"deviceId": dev.ID,
		"ai":       h.manager != nil,
	})

	for {
		select {
		case <-ctx.Done():
			return
		default:
			var msg inboundMessage
			if err := rawConn.ReadJSON(&msg); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					log.Printf("[websocket] read error: %v", err)
				}
				return
			}

			rawConn.SetReadDeadline(time.Now().Add(readDeadline))
			h.handleMessage(ctx, conn, familyID, dev, &msg)
		}
	}
}

// pushSnapshots forwards every document snapshot to the socket until
// the connection or the subscription ends.
func (h *Handler) pushSnapshots(ctx context.Context, conn *safeConn, familyID string, sub *syncer.Subscription) {
	for {
		select {
		case <-ctx.Done():
			return
		case snap, ok := <-sub.Snapshots():
			if !ok {
				return
			}
			h.send(conn, familyID, "snapshot", snap)
		}
	}
}

func (h *Handler) handleMessage(ctx context.Context, conn *safeConn, familyID string, dev device.Device, msg *inboundMessage) {
	switch msg.Type {
	case "message":
		h.handleSubmission(ctx, conn, familyID, dev, msg.Data)
	case "profile":
		h.handleProfile(ctx, conn, familyID, dev, msg.Data)
	default:
		h.sendError(conn, "unsupported message type: "+msg.Type)
	}
}

func (h *Handler) handleSubmission(ctx context.Context, conn *safeConn, familyID string, dev device.Device, raw json.RawMessage) {
	if h.manager == nil {
		h.sendError(conn, "AI is not configured; set GEMINI_API_KEY and restart the server")
		return
	}

	var payload struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		h.sendError(conn, "invalid message payload")
		return
	}

	ctrl, err := h.manager.Open(ctx, familyID, dev)
	if err != nil {
		h.sendError(conn, "failed to open session")
		return
	}

	// The model round trip can outlast the read deadline, so it runs
	// off the read loop; the result is written through the shared lock.
	go func() {
		res, err := ctrl.Submit(ctx, payload.Text)
		if err != nil {
			switch {
			case errors.Is(err, session.ErrSubmissionInFlight):
				h.sendError(conn, "a reply is already being generated")
			case errors.Is(err, session.ErrEmptyInput):
				h.sendError(conn, "text is required")
			case errors.Is(err, session.ErrSessionClosed):
				// connection raced a teardown, nothing to report
			default:
				h.sendError(conn, "failed to submit message")
			}
			return
		}

		h.send(conn, familyID, "reply", map[string]interface{}{
			"emergency": res.Emergency,
			"reply":     res.Reply,
		})
	}()
}

func (h *Handler) handleProfile(ctx context.Context, conn *safeConn, familyID string, dev device.Device, raw json.RawMessage) {
	var profile familyModel.BabyProfile
	if err := json.Unmarshal(raw, &profile); err != nil {
		h.sendError(conn, "invalid profile payload")
		return
	}
	if err := profile.Validate(); err != nil {
		h.sendError(conn, err.Error())
		return
	}

	// Sessions exist only when the AI is configured; fall back to a
	// direct publish so profile edits always work.
	if h.manager != nil {
		if ctrl, err := h.manager.Open(ctx, familyID, dev); err == nil {
			if err := ctrl.UpdateProfile(ctx, profile); err != nil {
				h.sendError(conn, "failed to save profile")
			}
			return
		}
	}

	if err := h.synchronizer.Publish(ctx, familyID, syncer.Patch{BabyProfile: &profile}); err != nil {
		h.sendError(conn, "failed to save profile")
	}
}

func (h *Handler) send(conn *safeConn, familyID, msgType string, data interface{}) {
	msg := outgoingMessage{
		Type:      msgType,
		FamilyID:  familyID,
		Data:      data,
		Timestamp: time.Now().Unix(),
	}
	if err := conn.writeJSON(msg); err != nil {
		log.Printf("[websocket] write %s failed: %v", msgType, err)
	}
}

func (h *Handler) sendError(conn *safeConn, message string) {
	msg := outgoingMessage{
		Type:      "error",
		Data:      map[string]string{"message": message},
		Timestamp: time.Now().Unix(),
	}
	if err := conn.writeJSON(msg); err != nil {
		log.Printf("[websocket] write error failed: %v", err)
	}
}

func (h *Handler) pingLoop(ctx context.Context, conn *safeConn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.ping(); err != nil {
				return
			}
		}
	}
}
