package matching

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/Aidin1998/codemeet/pkg/errors"
)

// Match is the persisted outcome of a successful pairing.
//
// Transitions go through the methods: Pending -> Ready -> Completed, and
// Canceled from any state but Completed.
type Match struct {
	ID                  uuid.UUID
	IntervieweeID       string
	InterviewerID       string
	Difficulty          Difficulty
	EnableVideo         bool
	Status              MatchStatus
	DocumentURL         string
	VideoRoomURL        *string
	SuggestedQuestionID *int
	CreatedAt           time.Time
	ReadyAt             *time.Time
	CompletedAt         *time.Time

	events []DomainEvent
}

// DomainEvent is recorded by the aggregate and drained after commit.
type DomainEvent interface {
	EventName() string
	AggregateID() uuid.UUID
	OccurredAt() time.Time
}

type MatchCreated struct {
	MatchID             uuid.UUID  `json:"matchId"`
	IntervieweeID       string     `json:"intervieweeId"`
	InterviewerID       string     `json:"interviewerId"`
	Difficulty          Difficulty `json:"difficulty"`
	EnableVideo         bool       `json:"enableVideo"`
	SuggestedQuestionID *int       `json:"suggestedQuestionId,omitempty"`
	At                  time.Time  `json:"occurredAt"`
}

func (e MatchCreated) EventName() string { return "match.created" }
func (e MatchCreated) AggregateID() uuid.UUID { return e.MatchID }
func (e MatchCreated) OccurredAt() time.Time { return e.At }

type MatchReady struct {
	MatchID      uuid.UUID `json:"matchId"`
	DocumentURL  string    `json:"documentUrl"`
	VideoRoomURL *string   `json:"videoRoomUrl,omitempty"`
	At           time.Time `json:"occurredAt"`
}

func (e MatchReady) EventName() string { return "match.ready" }
func (e MatchReady) AggregateID() uuid.UUID { return e.MatchID }
func (e MatchReady) OccurredAt() time.Time { return e.At }

// NewMatch creates a Pending match between two distinct users.
func NewMatch(intervieweeID, interviewerID string, difficulty Difficulty, enableVideo bool, suggestedQuestionID *int) (*Match, error) {
	if intervieweeID == "" {
		return nil, apperrors.ErrInvalidArgument.Explain("interviewee id cannot be empty")
	}
	if interviewerID == "" {
		return nil, apperrors.ErrInvalidArgument.Explain("interviewer id cannot be empty")
	}
	if intervieweeID == interviewerID {
		return nil, apperrors.ErrInvalidArgument.Explain("interviewee and interviewer cannot be the same user")
	}

	now := time.Now().UTC()
	m := &Match{
		ID:                  uuid.New(),
		IntervieweeID:       intervieweeID,
		InterviewerID:       interviewerID,
		Difficulty:          difficulty,
		EnableVideo:         enableVideo,
		Status:              MatchStatusPending,
		SuggestedQuestionID: suggestedQuestionID,
		CreatedAt:           now,
	}
	m.record(MatchCreated{
		MatchID:             m.ID,
		IntervieweeID:       intervieweeID,
		InterviewerID:       interviewerID,
		Difficulty:          difficulty,
		EnableVideo:         enableVideo,
		SuggestedQuestionID: suggestedQuestionID,
		At:                  now,
	})
	return m, nil
}

// MarkReady assigns the session resources. A video room is required when
// video is enabled.
func (m *Match) MarkReady(documentURL string, videoRoomURL *string) error {
	if m.Status != MatchStatusPending {
		return apperrors.ErrInvalidStateTransition.Explain("cannot mark match %s ready with status %s", m.ID, m.Status)
	}
	if strings.TrimSpace(documentURL) == "" {
		return apperrors.ErrInvalidStateTransition.Explain("match %s: document url cannot be empty", m.ID)
	}
	if m.EnableVideo && (videoRoomURL == nil || strings.TrimSpace(*videoRoomURL) == "") {
		return apperrors.ErrInvalidStateTransition.Explain("match %s: video room url is required when video is enabled", m.ID)
	}

	now := time.Now().UTC()
	m.DocumentURL = documentURL
	m.VideoRoomURL = videoRoomURL
	m.Status = MatchStatusReady
	m.ReadyAt = &now
	m.record(MatchReady{MatchID: m.ID, DocumentURL: documentURL, VideoRoomURL: videoRoomURL, At: now})
	return nil
}

func (m *Match) Complete() error {
	if m.Status != MatchStatusReady {
		return apperrors.ErrInvalidStateTransition.Explain("cannot complete match %s with status %s", m.ID, m.Status)
	}
	now := time.Now().UTC()
	m.Status = MatchStatusCompleted
	m.CompletedAt = &now
	return nil
}

func (m *Match) Cancel() error {
	if m.Status == MatchStatusCompleted {
		return apperrors.ErrInvalidStateTransition.Explain("cannot cancel completed match %s", m.ID)
	}
	m.Status = MatchStatusCanceled
	return nil
}

func (m *Match) IsParticipant(userID string) bool {
	return userID != "" && (m.IntervieweeID == userID || m.InterviewerID == userID)
}

// RoleOf returns the single role the user plays in this match.
func (m *Match) RoleOf(userID string) (Role, bool) {
	switch {
	case userID == "":
		return 0, false
	case m.IntervieweeID == userID:
		return RoleInterviewee, true
	case m.InterviewerID == userID:
		return RoleInterviewer, true
	}
	return 0, false
}

// PullEvents returns the recorded events and clears them.
func (m *Match) PullEvents() []DomainEvent {
	events := m.events
	m.events = nil
	return events
}

func (m *Match) record(e DomainEvent) {
	m.events = append(m.events, e)
}

// MatchFactory builds matches from pairs and assigns their resources.
type MatchFactory struct {
	documentURLTemplate string
	videoURLTemplate    string
}

// NewMatchFactory takes fmt templates with a single %s for the match id.
func NewMatchFactory(documentURLTemplate, videoURLTemplate string) *MatchFactory {
	return &MatchFactory{
		documentURLTemplate: documentURLTemplate,
		videoURLTemplate:    videoURLTemplate,
	}
}

// Create builds a Pending match; the interviewee's video preference is used
// since pairing guarantees both sides agree.
func (f *MatchFactory) Create(pair MatchPair) (*Match, error) {
	return NewMatch(
		pair.Interviewee.UserID,
		pair.Interviewer.UserID,
		pair.CommonDifficulty,
		pair.Interviewee.EnableVideo,
		nil,
	)
}

// AssignResources generates the document url, and the video room url when
// video is enabled, then marks the match ready.
func (f *MatchFactory) AssignResources(m *Match) error {
	documentURL := fmt.Sprintf(f.documentURLTemplate, m.ID)
	var videoRoomURL *string
	if m.EnableVideo {
		u := fmt.Sprintf(f.videoURLTemplate, m.ID)
		videoRoomURL = &u
	}
	return m.MarkReady(documentURL, videoRoomURL)
}
