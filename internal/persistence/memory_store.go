package persistence

import (
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/Aidin1998/codemeet/internal/matching"
	apperrors "github.com/Aidin1998/codemeet/pkg/errors"
)

// MemoryStore keeps committed matches in process memory. Writes made through
// a scope become visible only on Commit.
type MemoryStore struct {
	mu      sync.RWMutex
	matches map[uuid.UUID]matching.Match
	order   []uuid.UUID
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{matches: make(map[uuid.UUID]matching.Match)}
}

func (s *MemoryStore) Begin(ctx context.Context) (matching.Scope, error) {
	return &memoryScope{store: s}, nil
}

func (s *MemoryStore) FindByID(ctx context.Context, id uuid.UUID) (*matching.Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.matches[id]
	if !ok {
		return nil, apperrors.ErrNotFound.Explain("match %s", id)
	}
	return &m, nil
}

// ListByParticipant returns the user's matches, newest first
func (s *MemoryStore) ListByParticipant(ctx context.Context, userID string, limit int) ([]*matching.Match, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*matching.Match
	for _, id := range slices.Backward(s.order) {
		m := s.matches[id]
		if !m.IsParticipant(userID) {
			continue
		}
		out = append(out, &m)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *MemoryStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

func (s *MemoryStore) commit(pending []matching.Match) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range pending {
		if _, exists := s.matches[m.ID]; exists {
			return apperrors.ErrConflict.Explain("match %s already exists", m.ID)
		}
	}
	for _, m := range pending {
		s.matches[m.ID] = m
		s.order = append(s.order, m.ID)
	}
	return nil
}

type memoryScope struct {
	store   *MemoryStore
	pending []matching.Match
	done    bool
}

func (s *memoryScope) Matches() matching.MatchRepository { return s }

func (s *memoryScope) Insert(ctx context.Context, m *matching.Match) error {
	if s.done {
		return errors.New("scope already finished")
	}
	s.pending = append(s.pending, *m)
	return nil
}

func (s *memoryScope) Commit(ctx context.Context) error {
	if s.done {
		return errors.New("scope already finished")
	}
	s.done = true
	return s.store.commit(s.pending)
}

func (s *memoryScope) Rollback(ctx context.Context) error {
	s.done = true
	s.pending = nil
	return nil
}
