package settings

import (
	"context"
	"sync"
)

// Store persists terminal settings that operators toggle at runtime.
type Store interface {
	WineEnabled(ctx context.Context) (bool, error)
	SetWineEnabled(ctx context.Context, enabled bool) error
}

// MemoryStore keeps settings for the lifetime of the process.
type MemoryStore struct {
	mu          sync.RWMutex
	wineEnabled bool
}

func NewMemoryStore(wineEnabled bool) *MemoryStore {
	return &MemoryStore{wineEnabled: wineEnabled}
}

func (s *MemoryStore) WineEnabled(ctx context.Context) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.wineEnabled, nil
}

func (s *MemoryStore) SetWineEnabled(ctx context.Context, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.wineEnabled = enabled
	return nil
}
