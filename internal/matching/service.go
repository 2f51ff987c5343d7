package matching

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	apperrors "github.com/Aidin1998/codemeet/pkg/errors"
)

// QueueService is the caller-facing surface over the queue store.
type QueueService struct {
	store  *QueueStore
	gate   OpportunityGate
	logger *zap.Logger
}

// JoinResult is returned to a user who entered the queue.
type JoinResult struct {
	QueueID    uuid.UUID   `json:"queueId"`
	Status     QueueStatus `json:"status"`
	AheadCount int         `json:"aheadCount"`
	EnteredAt  time.Time   `json:"enteredAt"`
}

// QueueStatusView describes a user's position. Absent users get the zero
// value with IsQueued false.
type QueueStatusView struct {
	QueueID    *uuid.UUID   `json:"queueId"`
	IsQueued   bool         `json:"isQueued"`
	Status     *QueueStatus `json:"status"`
	AheadCount int          `json:"aheadCount"`
	EnteredAt  *time.Time   `json:"enteredAt"`
}

func NewQueueService(store *QueueStore, gate OpportunityGate, logger *zap.Logger) *QueueService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QueueService{store: store, gate: gate, logger: logger}
}

// JoinQueue enqueues the user. Users who may be interviewed must hold at
// least one opportunity at join time; the scheduler consumes it later.
func (s *QueueService) JoinQueue(ctx context.Context, userID string, role Role, difficulty Difficulty, enableVideo bool) (JoinResult, error) {
	if userID == "" {
		return JoinResult{}, apperrors.ErrInvalidArgument.Explain("user id is required")
	}
	if !role.Valid() {
		return JoinResult{}, apperrors.ErrInvalidArgument.Explain("invalid role %d", uint8(role))
	}
	if !difficulty.Valid() {
		return JoinResult{}, apperrors.ErrInvalidArgument.Explain("invalid difficulty %d", uint8(difficulty))
	}
	if s.store.IsQueued(userID) {
		return JoinResult{}, apperrors.ErrConflict.Explain("user %s is already in the match queue", userID)
	}

	if role.CanBeInterviewee() {
		has, err := s.gate.HasOpportunity(ctx, userID)
		if err != nil {
			return JoinResult{}, err
		}
		if !has {
			return JoinResult{}, apperrors.ErrInsufficientOpportunities.Explain("user %s has no interview opportunities left", userID)
		}
	}

	entry, err := s.store.Enqueue(userID, role, difficulty, enableVideo)
	if err != nil {
		return JoinResult{}, err
	}

	s.logger.Info("User joined match queue",
		zap.String("user_id", userID),
		zap.Stringer("role", role),
		zap.Stringer("difficulty", difficulty),
		zap.Bool("video", enableVideo))

	return JoinResult{
		QueueID:    entry.QueueID,
		Status:     QueueStatusWaiting,
		AheadCount: s.store.AheadCount(userID),
		EnteredAt:  entry.EnteredAt,
	}, nil
}

func (s *QueueService) LeaveQueue(ctx context.Context, userID string) error {
	if !s.store.Dequeue(userID) {
		return apperrors.ErrNotFound.Explain("user %s is not in the match queue", userID)
	}
	s.logger.Info("User left match queue", zap.String("user_id", userID))
	return nil
}

func (s *QueueService) GetQueueStatus(ctx context.Context, userID string) QueueStatusView {
	entry, ok := s.store.GetEntry(userID)
	if !ok {
		return QueueStatusView{}
	}
	status := QueueStatusWaiting
	return QueueStatusView{
		QueueID:    &entry.QueueID,
		IsQueued:   true,
		Status:     &status,
		AheadCount: s.store.AheadCount(userID),
		EnteredAt:  &entry.EnteredAt,
	}
}
