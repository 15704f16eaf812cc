package syncer

import (
	"context"
	"sync"

	"github.com/hongslab/aga-care/backend/internal/model/family"
)

// DocumentStore is the keyed store holding one ConversationState per
// family identifier. Load reports found=false when no document exists;
// the store never auto-creates documents.
type DocumentStore interface {
	Load(ctx context.Context, familyID string) (family.ConversationState, bool, error)
	Save(ctx context.Context, familyID string, state family.ConversationState) error
}

// MemoryStore implements DocumentStore with a mutex-guarded map. It is
// the default backend and the one used throughout the tests.
type MemoryStore struct {
	mu   sync.RWMutex
	docs map[string]family.ConversationState
}

// NewMemoryStore returns an empty in-memory document store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[string]family.ConversationState)}
}

// Load returns a deep copy of the stored document.
func (s *MemoryStore) Load(_ context.Context, familyID string) (family.ConversationState, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, ok := s.docs[familyID]
	if !ok {
		return family.ConversationState{}, false, nil
	}
	return state.Clone(), true, nil
}

// Save overwrites the document for the family identifier.
func (s *MemoryStore) Save(_ context.Context, familyID string, state family.ConversationState) error {
	s.mu.Lock()
	s.docs[familyID] = state.Clone()
	s.mu.Unlock()
	return nil
}
