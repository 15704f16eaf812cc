package syncer

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/hongslab/aga-care/backend/internal/model/family"
)

const (
	// snapshotBuffer bounds the per-subscription channel. Every
	// delivery is a full document, so a slow subscriber that misses an
	// intermediate snapshot still converges on the next one.
	snapshotBuffer = 8

	publishMaxAttempts = 3
	publishRetryDelay  = 200 * time.Millisecond
)

// Snapshot is a full copy of the shared document delivered to a
// subscriber on subscribe and on every change. Found=false means the
// document does not exist yet; the synchronizer never creates it
// server-side, the first session seeds it.
type Snapshot struct {
	FamilyID string                   `json:"familyId"`
	Found    bool                     `json:"found"`
	State    family.ConversationState `json:"state"`
}

// Patch is a shallow, field-level merge: a nil field leaves the remote
// value untouched, a set field replaces it wholesale. Messages are
// always replaced as a whole array; there is no per-message append.
type Patch struct {
	BabyProfile *family.BabyProfile
	Messages    []family.Message
}

// Subscription is a live feed of snapshots for one family identifier.
type Subscription struct {
	familyID string
	ch       chan Snapshot
	once     sync.Once
	detach   func()
}

// Snapshots returns the delivery channel. It is closed on Close.
func (s *Subscription) Snapshots() <-chan Snapshot {
	return s.ch
}

// Close tears the subscription down; it is safe to call twice.
func (s *Subscription) Close() {
	s.once.Do(s.detach)
}

// Synchronizer binds family identifiers to documents in the backing
// store and fans full snapshots out to all subscribers, the publisher
// included. Writes are last-write-wins at field granularity; there is
// no locking across participants.
type Synchronizer struct {
	store DocumentStore

	mu     sync.Mutex
	subs   map[string]map[int]*Subscription
	nextID int

	now func() time.Time
}

// New wires a Synchronizer around the injected document store.
func New(store DocumentStore) *Synchronizer {
	return &Synchronizer{
		store: store,
		subs:  make(map[string]map[int]*Subscription),
		now:   time.Now,
	}
}

// Subscribe opens a live subscription and delivers the current
// document (or a Found=false snapshot) immediately. The load,
// registration and initial delivery all happen under the hub lock: a
// publish that finishes its save while the load is running has to wait
// in broadcast and is then delivered as the next snapshot, so a write
// can never fall into the gap between the initial read and the
// registration.
func (s *Synchronizer) Subscribe(ctx context.Context, familyID string) (*Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, found, err := s.store.Load(ctx, familyID)
	if err != nil {
		return nil, fmt.Errorf("syncer: subscribe %q: %w", familyID, err)
	}

	id := s.nextID
	s.nextID++

	sub := &Subscription{
		familyID: familyID,
		ch:       make(chan Snapshot, snapshotBuffer),
	}
	sub.detach = func() { s.remove(familyID, id) }

	if s.subs[familyID] == nil {
		s.subs[familyID] = make(map[int]*Subscription)
	}
	s.subs[familyID][id] = sub
	// Initial delivery under the same lock so it can never race a
	// concurrent Close of the channel or reorder after a broadcast.
	sub.ch <- Snapshot{FamilyID: familyID, Found: found, State: state}

	return sub, nil
}

// Publish merges the patch into the remote document and delivers the
// resulting snapshot to every subscriber of the family. Store failures
// are retried a bounded number of times with jitter before giving up.
func (s *Synchronizer) Publish(ctx context.Context, familyID string, patch Patch) error {
	var merged family.ConversationState

	err := withRetry(ctx, publishMaxAttempts, func() error {
		current, _, err := s.store.Load(ctx, familyID)
		if err != nil {
			return err
		}

		merged = current.Clone()
		if patch.BabyProfile != nil {
			merged.BabyProfile = *patch.BabyProfile
		}
		if patch.Messages != nil {
			merged.Messages = append([]family.Message(nil), patch.Messages...)
		}
		merged.LastUpdated = family.Stamp(s.now())

		return s.store.Save(ctx, familyID, merged)
	})
	if err != nil {
		return fmt.Errorf("syncer: publish %q: %w", familyID, err)
	}

	s.broadcast(Snapshot{FamilyID: familyID, Found: true, State: merged})
	return nil
}

// SeedIfAbsent writes the state only when no document exists yet, then
// broadcasts whichever document ends up current. A concurrent writer
// that got there first keeps its document and the seed is discarded,
// so a stale Found=false read can never overwrite real history.
func (s *Synchronizer) SeedIfAbsent(ctx context.Context, familyID string, state family.ConversationState) error {
	var current family.ConversationState

	err := withRetry(ctx, publishMaxAttempts, func() error {
		existing, found, err := s.store.Load(ctx, familyID)
		if err != nil {
			return err
		}
		if found {
			current = existing
			return nil
		}

		current = state.Clone()
		current.LastUpdated = family.Stamp(s.now())
		return s.store.Save(ctx, familyID, current)
	})
	if err != nil {
		return fmt.Errorf("syncer: seed %q: %w", familyID, err)
	}

	s.broadcast(Snapshot{FamilyID: familyID, Found: true, State: current})
	return nil
}

// Current reads the document once without subscribing.
func (s *Synchronizer) Current(ctx context.Context, familyID string) (Snapshot, error) {
	state, found, err := s.store.Load(ctx, familyID)
	if err != nil {
		return Snapshot{}, fmt.Errorf("syncer: load %q: %w", familyID, err)
	}
	return Snapshot{FamilyID: familyID, Found: found, State: state}, nil
}

func (s *Synchronizer) broadcast(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, sub := range s.subs[snap.FamilyID] {
		snap := snap
		snap.State = snap.State.Clone()
		select {
		case sub.ch <- snap:
		default:
			// Subscriber is not draining; the next full snapshot
			// supersedes this one anyway.
			log.Printf("[syncer] dropped snapshot for family=%s", snap.FamilyID)
		}
	}
}

func (s *Synchronizer) remove(familyID string, id int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if subs, ok := s.subs[familyID]; ok {
		if sub, ok := subs[id]; ok {
			delete(subs, id)
			close(sub.ch)
		}
		if len(subs) == 0 {
			delete(s.subs, familyID)
		}
	}
}

func withRetry(ctx context.Context, attempts int, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			delay := publishRetryDelay<<(attempt-1) + time.Duration(rand.Int63n(int64(publishRetryDelay)))
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}

		if lastErr = fn(); lastErr == nil {
			return nil
		}
	}
	return lastErr
}
