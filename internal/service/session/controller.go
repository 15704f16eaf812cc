package session

import (
	"context"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/hongslab/aga-care/backend/internal/analysis/triage"
	"github.com/hongslab/aga-care/backend/internal/model/device"
	"github.com/hongslab/aga-care/backend/internal/model/family"
	"github.com/hongslab/aga-care/backend/internal/service/syncer"
)

// SyncState mirrors the lifecycle a session moves through against the
// shared document: subscribing until the first snapshot arrives, synced
// while deliveries flow, error after a failed publish. Errors are
// recoverable; the next successful publish returns the state to synced.
type SyncState string

const (
	SyncUnsynced    SyncState = "unsynced"
	SyncSubscribing SyncState = "subscribing"
	SyncSynced      SyncState = "synced"
	SyncError       SyncState = "error"
)

// Responder produces an assistant reply for one user turn.
type Responder interface {
	GenerateReply(ctx context.Context, familyID string, profile family.BabyProfile, history []family.Message, input string) (string, error)
}

// SubmitResult is the outcome of one accepted submission. Reply is the
// assistant message that was appended, error bubbles included.
type SubmitResult struct {
	Emergency bool
	Reply     family.Message
	State     family.ConversationState
}

// Controller owns one (family, device) session: it subscribes to the
// family document, applies every snapshot as the new local truth, and
// serializes submissions against the AI responder.
type Controller struct {
	familyID     string
	device       device.Device
	synchronizer *syncer.Synchronizer
	responder    Responder
	now          func() time.Time

	cancel context.CancelFunc
	sub    *syncer.Subscription
	done   chan struct{}

	mu        sync.Mutex
	state     family.ConversationState
	syncState SyncState
	seeded    bool
	inFlight  bool
	closed    bool
}

func newController(sy *syncer.Synchronizer, responder Responder, familyID string, dev device.Device, now func() time.Time) *Controller {
	return &Controller{
		familyID:     familyID,
		device:       dev,
		synchronizer: sy,
		responder:    responder,
		now:          now,
		done:         make(chan struct{}),
		syncState:    SyncUnsynced,
	}
}

// start subscribes to the family document and launches the snapshot
// consumer. The consumer outlives the request context: the session ends
// on Close, not when the opening HTTP request returns.
func (c *Controller) start(ctx context.Context) error {
	c.mu.Lock()
	c.syncState = SyncSubscribing
	c.mu.Unlock()

	sub, err := c.synchronizer.Subscribe(ctx, c.familyID)
	if err != nil {
		c.setSyncState(SyncError)
		return newError(ErrorSync, "subscribe_failed", err)
	}
	c.sub = sub

	runCtx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel

	// The subscription buffers the initial snapshot, so it can be
	// applied here before any submission runs. Seeding a fresh family
	// therefore completes before Open returns.
	select {
	case snap, ok := <-sub.Snapshots():
		if ok {
			c.apply(runCtx, snap)
		}
	default:
	}

	go c.consume(runCtx)
	return nil
}

func (c *Controller) consume(ctx context.Context) {
	defer close(c.done)
	for snap := range c.sub.Snapshots() {
		c.apply(ctx, snap)
	}
}

// apply installs a snapshot as the local truth. A missing document is
// seeded exactly once with the default profile and the creation
// welcome, and the seed is published so the second device converges on
// the same greeting. An existing document with no messages gets a
// local-only return greeting, never written back.
func (c *Controller) apply(ctx context.Context, snap syncer.Snapshot) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}

	if !snap.Found {
		if c.seeded {
			c.mu.Unlock()
			return
		}
		c.seeded = true
		c.state = family.ConversationState{
			BabyProfile: family.DefaultProfile(c.now()),
			Messages:    []family.Message{family.WelcomeOnCreate(c.familyID)},
		}
		c.syncState = SyncSynced
		seed := c.state.Clone()
		c.mu.Unlock()

		// SeedIfAbsent never overwrites: if another writer created the
		// document while this snapshot was in flight, that document is
		// broadcast back and replaces the optimistic seed above.
		if err := c.synchronizer.SeedIfAbsent(ctx, c.familyID, seed); err != nil {
			log.Printf("[session] seed failed for family=%s: %v", c.familyID, err)
			c.setSyncState(SyncError)
		}
		return
	}

	state := snap.State.Clone()
	if len(state.Messages) == 0 {
		state.Messages = []family.Message{family.WelcomeOnReturn(c.familyID)}
	}
	c.state = state
	c.seeded = true
	c.syncState = SyncSynced
	c.mu.Unlock()
}

// Submit handles one user turn: triage the text, append it locally,
// ask the responder, append the reply (or an inline error bubble when
// the model fails), and publish the updated transcript. At most one
// submission runs at a time; results that resolve after Close are
// discarded.
func (c *Controller) Submit(ctx context.Context, text string) (SubmitResult, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return SubmitResult{}, ErrEmptyInput
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return SubmitResult{}, ErrSessionClosed
	}
	if c.inFlight {
		c.mu.Unlock()
		return SubmitResult{}, ErrSubmissionInFlight
	}
	c.inFlight = true
	emergency := triage.Detect(text)
	profile := c.state.BabyProfile
	// base is the transcript captured at submission time; the user turn
	// and the reply are both appended onto it when the round trip ends,
	// so the pair stays adjacent even if a remote snapshot replaces the
	// local state while the model is working.
	base := append([]family.Message(nil), c.state.Messages...)
	userTurn := family.Message{Role: family.RoleUser, Text: text}
	c.state.Messages = append(c.state.Messages, userTurn)
	c.mu.Unlock()

	replyText, aiErr := c.responder.GenerateReply(ctx, c.familyID, profile, base, text)

	c.mu.Lock()
	if c.closed {
		c.inFlight = false
		c.mu.Unlock()
		return SubmitResult{}, ErrSessionClosed
	}
	reply := family.Message{Role: family.RoleAssistant, Text: replyText}
	if aiErr != nil {
		wrapped := newError(ErrorAIRequest, "generate_failed", aiErr)
		log.Printf("[session] %v (family=%s)", wrapped, c.familyID)
		reply = family.Message{Role: family.RoleAssistant, Text: "⚠️ 오류: " + aiErr.Error(), IsError: true}
	}
	messages := make([]family.Message, 0, len(base)+2)
	messages = append(messages, base...)
	messages = append(messages, userTurn, reply)
	c.state.Messages = append([]family.Message(nil), messages...)
	stateCopy := c.state.Clone()
	c.inFlight = false
	c.mu.Unlock()

	if err := c.synchronizer.Publish(ctx, c.familyID, syncer.Patch{Messages: messages}); err != nil {
		log.Printf("[session] publish failed for family=%s: %v", c.familyID, err)
		c.setSyncState(SyncError)
	}
	return SubmitResult{Emergency: emergency, Reply: reply, State: stateCopy}, nil
}

// UpdateProfile validates and publishes a new baby profile. Messages
// are untouched.
func (c *Controller) UpdateProfile(ctx context.Context, profile family.BabyProfile) error {
	if err := profile.Validate(); err != nil {
		return err
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrSessionClosed
	}
	c.state.BabyProfile = profile
	c.mu.Unlock()

	if err := c.synchronizer.Publish(ctx, c.familyID, syncer.Patch{BabyProfile: &profile}); err != nil {
		c.setSyncState(SyncError)
		return newError(ErrorSync, "profile_publish_failed", err)
	}
	return nil
}

// Snapshot returns a copy of the local state and the sync indicator.
func (c *Controller) Snapshot() (family.ConversationState, SyncState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Clone(), c.syncState
}

func (c *Controller) FamilyID() string      { return c.familyID }
func (c *Controller) Device() device.Device { return c.device }

func (c *Controller) setSyncState(s SyncState) {
	c.mu.Lock()
	c.syncState = s
	c.mu.Unlock()
}

// Close tears the session down: no further submissions are accepted
// and in-flight AI results are dropped on arrival.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	if c.cancel != nil {
		c.cancel()
	}
	if c.sub != nil {
		c.sub.Close()
		<-c.done
	}
}
