package models

import (
	"time"

	"github.com/google/uuid"
)

// UserOpportunity holds a user's balance of interview opportunities
type UserOpportunity struct {
	UserID           string     `json:"user_id" gorm:"primaryKey;size:64" validate:"required,max=64"`
	Balance          int        `json:"balance" gorm:"not null;default:0" validate:"min=0"`
	LastDailyAwardAt *time.Time `json:"last_daily_award_at"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// Match is the persisted record of a paired interview session
type Match struct {
	ID                  uuid.UUID  `json:"id" gorm:"primaryKey;type:uuid"`
	IntervieweeID       string     `json:"interviewee_id" gorm:"size:64;not null;index"`
	InterviewerID       string     `json:"interviewer_id" gorm:"size:64;not null;index"`
	Difficulty          string     `json:"difficulty" gorm:"size:16;not null"` // easy, medium, hard
	EnableVideo         bool       `json:"enable_video"`
	Status              string     `json:"status" gorm:"size:16;not null;index"` // pending, ready, completed, canceled
	DocumentURL         string     `json:"document_url" gorm:"size:512"`
	VideoRoomURL        *string    `json:"video_room_url" gorm:"size:512"`
	SuggestedQuestionID *int       `json:"suggested_question_id"`
	CreatedAt           time.Time  `json:"created_at" gorm:"index"`
	ReadyAt             *time.Time `json:"ready_at"`
	CompletedAt         *time.Time `json:"completed_at"`
}

// TableName keeps the table name stable across renames of the struct
func (Match) TableName() string {
	return "matches"
}

// OpportunityTransaction is an append-only audit row for balance changes
type OpportunityTransaction struct {
	ID        uuid.UUID `json:"id" gorm:"primaryKey;type:uuid"`
	UserID    string    `json:"user_id" gorm:"size:64;not null;index"`
	Delta     int       `json:"delta"`
	Reason    string    `json:"reason" gorm:"size:32"` // initial, consume, award, daily
	CreatedAt time.Time `json:"created_at"`
}
