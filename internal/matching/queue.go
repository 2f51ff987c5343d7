package matching

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/Aidin1998/codemeet/pkg/errors"
)

// QueueStore is the process-wide registry of waiting users, keyed by user
// id. Every mutation is a single-key atomic operation; there is no store-wide
// lock, so enqueue/dequeue never wait on a pairing scan.
type QueueStore struct {
	entries sync.Map // userID -> QueueEntry
	size    atomic.Int64
	now     func() time.Time
}

// NewQueueStore creates an empty queue. A nil clock defaults to UTC wall time.
func NewQueueStore(now func() time.Time) *QueueStore {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &QueueStore{now: now}
}

// Enqueue inserts a fresh entry for the user, or fails with ErrConflict if
// the user already has a live entry.
func (s *QueueStore) Enqueue(userID string, role Role, difficulty Difficulty, enableVideo bool) (QueueEntry, error) {
	if userID == "" {
		return QueueEntry{}, apperrors.ErrInvalidArgument.Explain("user id is required")
	}

	entry := QueueEntry{
		QueueID:     uuid.New(),
		UserID:      userID,
		Role:        role,
		Difficulty:  difficulty,
		EnableVideo: enableVideo,
		EnteredAt:   s.now(),
	}
	// Count first so a racing Dequeue of the new entry cannot drive size
	// below zero.
	s.size.Add(1)
	if _, loaded := s.entries.LoadOrStore(userID, entry); loaded {
		s.size.Add(-1)
		return QueueEntry{}, apperrors.ErrConflict.Explain("user %s is already in the match queue", userID)
	}
	return entry, nil
}

// Dequeue removes the user's entry. It reports whether an entry was removed.
func (s *QueueStore) Dequeue(userID string) bool {
	if _, loaded := s.entries.LoadAndDelete(userID); loaded {
		s.size.Add(-1)
		return true
	}
	return false
}

// GetEntry returns the user's live entry, if any.
func (s *QueueStore) GetEntry(userID string) (QueueEntry, bool) {
	v, ok := s.entries.Load(userID)
	if !ok {
		return QueueEntry{}, false
	}
	return v.(QueueEntry), true
}

func (s *QueueStore) IsQueued(userID string) bool {
	_, ok := s.entries.Load(userID)
	return ok
}

// AheadCount is the number of entries that entered strictly before the
// user. It is for status display only.
func (s *QueueStore) AheadCount(userID string) int {
	own, ok := s.GetEntry(userID)
	if !ok {
		return 0
	}
	ahead := 0
	s.entries.Range(func(_, v any) bool {
		if v.(QueueEntry).EnteredAt.Before(own.EnteredAt) {
			ahead++
		}
		return true
	})
	return ahead
}

// Count is the number of live entries. A concurrent failed Enqueue may
// briefly overstate it by one.
func (s *QueueStore) Count() int {
	return max(0, int(s.size.Load()))
}

// RemovePair removes both users. Missing entries are ignored.
func (s *QueueStore) RemovePair(userID1, userID2 string) {
	s.Dequeue(userID1)
	s.Dequeue(userID2)
}

// Snapshot copies the current entries in no particular order.
func (s *QueueStore) Snapshot() []QueueEntry {
	var out []QueueEntry
	s.entries.Range(func(_, v any) bool {
		out = append(out, v.(QueueEntry))
		return true
	})
	return out
}
