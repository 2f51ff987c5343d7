// Package persistence stores matches. Each scheduler pair runs in its own
// Scope: a gorm transaction, or a buffered in-memory write set.
package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Aidin1998/codemeet/internal/matching"
	apperrors "github.com/Aidin1998/codemeet/pkg/errors"
	"github.com/Aidin1998/codemeet/pkg/models"
)

const DefaultHistoryLimit = 50

// GormMatchRepository implements match storage using GORM
type GormMatchRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewGormMatchRepository(db *gorm.DB, logger *zap.Logger) *GormMatchRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GormMatchRepository{db: db, logger: logger}
}

// Migrate creates the matches table
func (r *GormMatchRepository) Migrate() error {
	return r.db.AutoMigrate(&models.Match{})
}

// Insert writes a new match row
func (r *GormMatchRepository) Insert(ctx context.Context, m *matching.Match) error {
	record := toRecord(m)
	if err := r.db.WithContext(ctx).Create(&record).Error; err != nil {
		r.logger.Error("Failed to insert match",
			zap.String("match_id", m.ID.String()),
			zap.Error(err))
		return fmt.Errorf("failed to insert match: %w", err)
	}
	return nil
}

// Update saves the mutable lifecycle fields of an existing match
func (r *GormMatchRepository) Update(ctx context.Context, m *matching.Match) error {
	res := r.db.WithContext(ctx).Model(&models.Match{}).
		Where("id = ?", m.ID).
		Updates(map[string]interface{}{
			"status":         string(m.Status),
			"document_url":   m.DocumentURL,
			"video_room_url": m.VideoRoomURL,
			"ready_at":       m.ReadyAt,
			"completed_at":   m.CompletedAt,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to update match: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperrors.ErrNotFound.Explain("match %s", m.ID)
	}
	return nil
}

func (r *GormMatchRepository) FindByID(ctx context.Context, id uuid.UUID) (*matching.Match, error) {
	var record models.Match
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.ErrNotFound.Explain("match %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load match: %w", err)
	}
	return toDomain(record)
}

// ListByParticipant returns the user's matches, newest first
func (r *GormMatchRepository) ListByParticipant(ctx context.Context, userID string, limit int) ([]*matching.Match, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	var records []models.Match
	err := r.db.WithContext(ctx).
		Where("interviewee_id = ? OR interviewer_id = ?", userID, userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list matches: %w", err)
	}

	out := make([]*matching.Match, 0, len(records))
	for _, rec := range records {
		m, err := toDomain(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

// GormScopeFactory opens one database transaction per scope
type GormScopeFactory struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewGormScopeFactory(db *gorm.DB, logger *zap.Logger) *GormScopeFactory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GormScopeFactory{db: db, logger: logger}
}

func (f *GormScopeFactory) Begin(ctx context.Context) (matching.Scope, error) {
	tx := f.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", tx.Error)
	}
	return &gormScope{tx: tx, matches: NewGormMatchRepository(tx, f.logger)}, nil
}

type gormScope struct {
	tx      *gorm.DB
	matches *GormMatchRepository
	done    bool
}

func (s *gormScope) Matches() matching.MatchRepository { return s.matches }

func (s *gormScope) Commit(ctx context.Context) error {
	if s.done {
		return errors.New("scope already finished")
	}
	s.done = true
	if err := s.tx.Commit().Error; err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *gormScope) Rollback(ctx context.Context) error {
	if s.done {
		return nil
	}
	s.done = true
	return s.tx.Rollback().Error
}

func toRecord(m *matching.Match) models.Match {
	return models.Match{
		ID:                  m.ID,
		IntervieweeID:       m.IntervieweeID,
		InterviewerID:       m.InterviewerID,
		Difficulty:          m.Difficulty.String(),
		EnableVideo:         m.EnableVideo,
		Status:              string(m.Status),
		DocumentURL:         m.DocumentURL,
		VideoRoomURL:        m.VideoRoomURL,
		SuggestedQuestionID: m.SuggestedQuestionID,
		CreatedAt:           m.CreatedAt,
		ReadyAt:             m.ReadyAt,
		CompletedAt:         m.CompletedAt,
	}
}

func toDomain(rec models.Match) (*matching.Match, error) {
	difficulty, err := matching.ParseDifficulty(rec.Difficulty)
	if err != nil {
		return nil, fmt.Errorf("match %s: %w", rec.ID, err)
	}
	return &matching.Match{
		ID:                  rec.ID,
		IntervieweeID:       rec.IntervieweeID,
		InterviewerID:       rec.InterviewerID,
		Difficulty:          difficulty,
		EnableVideo:         rec.EnableVideo,
		Status:              matching.MatchStatus(rec.Status),
		DocumentURL:         rec.DocumentURL,
		VideoRoomURL:        rec.VideoRoomURL,
		SuggestedQuestionID: rec.SuggestedQuestionID,
		CreatedAt:           rec.CreatedAt,
		ReadyAt:             rec.ReadyAt,
		CompletedAt:         rec.CompletedAt,
	}, nil
}
