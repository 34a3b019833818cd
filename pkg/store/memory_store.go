package store

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"animeavatar/pkg/domain"
)

// MemoryStore keeps sessions and generations in-process. Used by tests
// and local development without Postgres.
type MemoryStore struct {
	mu          sync.RWMutex
	sessions    map[string]domain.Session // key: session ID
	tokens      map[string]string         // session token -> session ID
	generations map[string]domain.Generation
}

// NewMemoryStore initializes an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions:    make(map[string]domain.Session),
		tokens:      make(map[string]string),
		generations: make(map[string]domain.Generation),
	}
}

// GetSessionByToken resolves a client token to its session.
func (m *MemoryStore) GetSessionByToken(token string) (domain.Session, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.tokens[token]
	if !ok {
		return domain.Session{}, false, nil
	}
	return m.sessions[id], true, nil
}

// CreateSession stores a new session.
func (m *MemoryStore) CreateSession(s domain.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.tokens[s.SessionToken]; exists {
		return fmt.Errorf("session token already exists")
	}
	m.sessions[s.ID] = s
	m.tokens[s.SessionToken] = s.ID
	return nil
}

// CreateGeneration stores a new generation.
func (m *MemoryStore) CreateGeneration(g domain.Generation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.generations[g.ID] = g
	return nil
}

// GetGeneration retrieves a generation by ID.
func (m *MemoryStore) GetGeneration(id string) (domain.Generation, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	g, ok := m.generations[id]
	return g, ok, nil
}

// SetGenerationStatus updates the status field only.
func (m *MemoryStore) SetGenerationStatus(id string, status domain.GenerationStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.generations[id]
	if !ok {
		return nil
	}
	g.Status = status
	m.generations[id] = g
	return nil
}

// MarkProcessing advances to processing and records the prompt.
func (m *MemoryStore) MarkProcessing(id string, prompt string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.generations[id]
	if !ok {
		return nil
	}
	g.Status = domain.StatusProcessing
	g.PromptUsed = &prompt
	m.generations[id] = g
	return nil
}

// CompleteGeneration marks completion with an avatar URL.
func (m *MemoryStore) CompleteGeneration(id string, avatarURL string, completedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.generations[id]
	if !ok {
		return nil
	}
	g.Status = domain.StatusCompleted
	g.AvatarURL = &avatarURL
	g.CompletedAt = &completedAt
	m.generations[id] = g
	return nil
}

// ListGenerationsBySession returns a session's generations newest-first.
func (m *MemoryStore) ListGenerationsBySession(sessionID string, limit, offset int) ([]domain.Generation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Generation, 0)
	for _, g := range m.generations {
		if g.SessionID == sessionID {
			res = append(res, g)
		}
	}
	sort.Slice(res, func(i, j int) bool {
		return res[i].CreatedAt.After(res[j].CreatedAt)
	})
	if offset >= len(res) {
		return []domain.Generation{}, nil
	}
	res = res[offset:]
	if limit > 0 && limit < len(res) {
		res = res[:limit]
	}
	return res, nil
}
