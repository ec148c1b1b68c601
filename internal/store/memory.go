package store

import (
	"context"
	"sync"

	"application-intake/internal/models"
)

// MemoryStore keeps drafts in process. Used for development and tests.
type MemoryStore struct {
	mu     sync.Mutex
	drafts map[string]*models.Draft
	opts   Options
}

var _ DraftStore = (*MemoryStore)(nil)

func NewMemoryStore(opts Options) *MemoryStore {
	return &MemoryStore{drafts: make(map[string]*models.Draft), opts: opts}
}

func (m *MemoryStore) Name() string { return "memory" }

func (m *MemoryStore) Get(_ context.Context, userID string) (*models.Draft, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cloneDraft(m.drafts[userID]), nil
}

func (m *MemoryStore) Save(_ context.Context, req *models.SaveRequest) (*models.Draft, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	draft, err := apply(m.drafts[req.UserID], req, m.opts)
	if err != nil {
		return nil, err
	}
	m.drafts[req.UserID] = draft
	return cloneDraft(draft), nil
}

func (m *MemoryStore) Ping(context.Context) error { return nil }
