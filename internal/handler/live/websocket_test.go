package live

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	middlewarePkg "github.com/hongslab/aga-care/backend/internal/middleware"
	"github.com/hongslab/aga-care/backend/internal/model/device"
	familyModel "github.com/hongslab/aga-care/backend/internal/model/family"
	identityService "github.com/hongslab/aga-care/backend/internal/service/identity"
	"github.com/hongslab/aga-care/backend/internal/service/session"
	"github.com/hongslab/aga-care/backend/internal/service/syncer"
)

type stubResponder struct {
	reply string
}

func (s stubResponder) GenerateReply(ctx context.Context, familyID string, profile familyModel.BabyProfile, history []familyModel.Message, input string) (string, error) {
	return s.reply, nil
}

type envelope struct {
	Type     string          `json:"type"`
	FamilyID string          `json:"familyId"`
	Data     json.RawMessage `json:"data"`
}

func setupServer(t *testing.T) (*httptest.Server, *syncer.Synchronizer, device.Device) {
	t.Helper()

	idSvc := identityService.NewService()
	dev, err := idSvc.Issue(context.Background())
	if err != nil {
		t.Fatalf("issue identity failed: %v", err)
	}

	sy := syncer.New(syncer.NewMemoryStore())
	manager, err := session.NewManager(sy, stubResponder{reply: "체온을 먼저 재보세요."})
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	t.Cleanup(manager.CloseAll)

	r := chi.NewRouter()
	r.Group(func(g chi.Router) {
		g.Use(middlewarePkg.RequireDevice(idSvc))
		New(sy, manager).RegisterRoutes(g)
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, sy, dev
}

func dialFamily(t *testing.T, srv *httptest.Server, familyID, deviceID string) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/families/" + familyID + "/ws?deviceId=" + deviceID
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readUntil(t *testing.T, conn *websocket.Conn, msgType string) envelope {
	t.Helper()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		var env envelope
		if err := conn.ReadJSON(&env); err != nil {
			t.Fatalf("waiting for %q envelope: %v", msgType, err)
		}
		if env.Type == msgType {
			return env
		}
	}
}

func TestWebSocketRejectsUnknownDevice(t *testing.T) {
	srv, _, _ := setupServer(t)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/families/fam-ws/ws?deviceId=not-issued"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		conn.Close()
		t.Fatal("dial succeeded for an unknown device")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("handshake status = %v, want 401", resp)
	}
}

func TestWebSocketPushesSnapshots(t *testing.T) {
	srv, sy, dev := setupServer(t)

	conn := dialFamily(t, srv, "fam-push", dev.ID)

	readUntil(t, conn, "connected")
	first := readUntil(t, conn, "snapshot")

	var initial syncer.Snapshot
	if err := json.Unmarshal(first.Data, &initial); err != nil {
		t.Fatalf("decode snapshot failed: %v", err)
	}
	if initial.Found {
		t.Error("initial snapshot Found = true for a fresh family")
	}

	profile := familyModel.BabyProfile{Name: "하은이", BirthDate: "2026-08-01", FeedingType: familyModel.FeedingBreast}
	if err := sy.Publish(context.Background(), "fam-push", syncer.Patch{BabyProfile: &profile}); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	env := readUntil(t, conn, "snapshot")
	var snap syncer.Snapshot
	if err := json.Unmarshal(env.Data, &snap); err != nil {
		t.Fatalf("decode snapshot failed: %v", err)
	}
	if !snap.Found || snap.State.BabyProfile != profile {
		t.Errorf("pushed snapshot = %+v, want the published profile", snap)
	}
}

func TestWebSocketSubmission(t *testing.T) {
	srv, _, dev := setupServer(t)

	conn := dialFamily(t, srv, "fam-submit", dev.ID)
	readUntil(t, conn, "connected")

	submit := map[string]interface{}{
		"type": "message",
		"data": map[string]string{"text": "아기 체온이 37.2도예요"},
	}
	if err := conn.WriteJSON(submit); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	env := readUntil(t, conn, "reply")
	var body struct {
		Emergency bool                `json:"emergency"`
		Reply     familyModel.Message `json:"reply"`
	}
	if err := json.Unmarshal(env.Data, &body); err != nil {
		t.Fatalf("decode reply failed: %v", err)
	}
	if body.Emergency {
		t.Error("Emergency = true for a routine temperature")
	}
	if body.Reply.Text != "체온을 먼저 재보세요." {
		t.Errorf("reply = %q, want the stub answer", body.Reply.Text)
	}
}

func TestWebSocketProfileUpdateBroadcasts(t *testing.T) {
	srv, _, dev := setupServer(t)

	conn := dialFamily(t, srv, "fam-profile", dev.ID)
	readUntil(t, conn, "connected")

	profile := familyModel.BabyProfile{Name: "도윤이", BirthDate: "2026-07-15", FeedingType: familyModel.FeedingMixed}
	raw, _ := json.Marshal(profile)
	update := map[string]interface{}{
		"type": "profile",
		"data": json.RawMessage(raw),
	}
	if err := conn.WriteJSON(update); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		env := readUntil(t, conn, "snapshot")
		var snap syncer.Snapshot
		if err := json.Unmarshal(env.Data, &snap); err != nil {
			t.Fatalf("decode snapshot failed: %v", err)
		}
		if snap.Found && snap.State.BabyProfile == profile {
			return
		}
	}
	t.Fatal("never received a snapshot carrying the updated profile")
}

func TestWebSocketRejectsUnknownType(t *testing.T) {
	srv, _, dev := setupServer(t)

	conn := dialFamily(t, srv, "fam-unknown", dev.ID)
	readUntil(t, conn, "connected")

	if err := conn.WriteJSON(map[string]string{"type": "audio"}); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	env := readUntil(t, conn, "error")
	var data map[string]string
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatalf("decode error payload failed: %v", err)
	}
	if !strings.Contains(data["message"], "unsupported message type") {
		t.Errorf("error message = %q", data["message"])
	}
}
