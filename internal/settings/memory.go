package settings

import (
	"context"
	"sync"

	"chatarchiver/internal/domain"
)

// MemoryStore keeps settings in process memory.
type MemoryStore struct {
	mu sync.Mutex
	s  domain.Settings
}

// NewMemoryStore starts from domain.DefaultSettings.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{s: domain.DefaultSettings()}
}

func (m *MemoryStore) Load(ctx context.Context) (domain.Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return sanitize(m.s), nil
}

func (m *MemoryStore) Update(ctx context.Context, patch domain.SettingsPatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.s = patch.Apply(m.s)
	return nil
}

func (m *MemoryStore) Close() error { return nil }
