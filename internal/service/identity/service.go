package identity

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hongslab/aga-care/backend/internal/model/device"
)

// ErrUnknownDevice is returned when an id was never issued here.
var ErrUnknownDevice = errors.New("device identity not recognized")

// Provider issues and verifies anonymous per-device identities.
// Callers must treat an Issue failure as "session not ready" and never
// proceed with an empty id.
type Provider interface {
	Issue(ctx context.Context) (device.Device, error)
	Verify(ctx context.Context, id string) (device.Device, error)
}

// Service is the in-memory Provider implementation.
type Service struct {
	mu      sync.RWMutex
	devices map[string]device.Device
	now     func() time.Time
}

// NewService bootstraps an empty identity registry.
func NewService() *Service {
	return &Service{
		devices: make(map[string]device.Device),
		now:     time.Now,
	}
}

// Issue mints a fresh opaque identity for a device.
func (s *Service) Issue(_ context.Context) (device.Device, error) {
	d := device.Device{
		ID:       uuid.NewString(),
		IssuedAt: s.now().UTC(),
	}

	s.mu.Lock()
	s.devices[d.ID] = d
	s.mu.Unlock()

	return d, nil
}

// Verify resolves a previously issued identity.
func (s *Service) Verify(_ context.Context, id string) (device.Device, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.devices[id]
	if !ok {
		return device.Device{}, ErrUnknownDevice
	}
	return d, nil
}
