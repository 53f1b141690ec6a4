package session

import (
	"context"
	"sync"

	"github.com/existflow/instafeed/internal/model"
)

// MemoryStore keeps the session in process memory
type MemoryStore struct {
	mu sync.RWMutex
	s  *model.Session
}

// NewMemoryStore returns an empty MemoryStore
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Load(_ context.Context) (*model.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.s == nil {
		return nil, nil
	}
	cp := *m.s
	return &cp, nil
}

func (m *MemoryStore) Save(_ context.Context, s model.Session) error {
	m.mu.Lock()
	m.s = &s
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Clear(_ context.Context) error {
	m.mu.Lock()
	m.s = nil
	m.mu.Unlock()
	return nil
}
