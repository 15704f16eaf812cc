package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/hongslab/aga-care/backend/internal/model/device"
	"github.com/hongslab/aga-care/backend/internal/service/syncer"
)

// Manager holds the live controllers, one per (family, device) pair.
// Two devices in the same family get independent sessions over the
// same shared document, which is what keeps them converging.
type Manager struct {
	synchronizer *syncer.Synchronizer
	responder    Responder
	now          func() time.Time

	mu          sync.Mutex
	controllers map[string]*Controller
}

func NewManager(sy *syncer.Synchronizer, responder Responder) (*Manager, error) {
	if sy == nil {
		return nil, errors.New("synchronizer must not be nil")
	}
	if responder == nil {
		return nil, errors.New("responder must not be nil")
	}
	return &Manager{
		synchronizer: sy,
		responder:    responder,
		now:          time.Now,
		controllers:  make(map[string]*Controller),
	}, nil
}

func sessionKey(familyID, deviceID string) string {
	return familyID + "|" + deviceID
}

// Open returns the existing controller for this (family, device) pair
// or starts a new one.
func (m *Manager) Open(ctx context.Context, familyID string, dev device.Device) (*Controller, error) {
	familyID = strings.TrimSpace(familyID)
	if familyID == "" {
		return nil, ErrFamilyIDRequired
	}
	key := sessionKey(familyID, dev.ID)

	m.mu.Lock()
	if c, ok := m.controllers[key]; ok {
		m.mu.Unlock()
		return c, nil
	}
	m.mu.Unlock()

	c := newController(m.synchronizer, m.responder, familyID, dev, m.now)
	if err := c.start(ctx); err != nil {
		return nil, err
	}

	m.mu.Lock()
	if existing, ok := m.controllers[key]; ok {
		// lost the race; keep the first one
		m.mu.Unlock()
		c.Close()
		return existing, nil
	}
	m.controllers[key] = c
	m.mu.Unlock()
	return c, nil
}

// Release closes and forgets the session for this pair, if any. Called
// when a device leaves its family room.
func (m *Manager) Release(familyID, deviceID string) {
	key := sessionKey(familyID, deviceID)

	m.mu.Lock()
	c, ok := m.controllers[key]
	if ok {
		delete(m.controllers, key)
	}
	m.mu.Unlock()

	if ok {
		c.Close()
	}
}

// CloseAll tears down every live session. Used on server shutdown.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	controllers := make([]*Controller, 0, len(m.controllers))
	for _, c := range m.controllers {
		controllers = append(controllers, c)
	}
	m.controllers = make(map[string]*Controller)
	m.mu.Unlock()

	for _, c := range controllers {
		c.Close()
	}
}
