// Package matching implements the interview match queue, the FIFO pairing
// engine, the Match aggregate and the periodic scheduler that turns
// compatible queue entries into persisted matches.
package matching

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/Aidin1998/codemeet/pkg/errors"
)

// Role is a flag set of the interview roles a user accepts.
type Role uint8

const (
	RoleInterviewee Role = 1 << iota
	RoleInterviewer

	RoleBoth = RoleInterviewee | RoleInterviewer
)

// CanBeInterviewee reports whether the set contains the interviewee role.
func (r Role) CanBeInterviewee() bool { return r&RoleInterviewee != 0 }

// CanInterview reports whether the set contains the interviewer role.
func (r Role) CanInterview() bool { return r&RoleInterviewer != 0 }

// Valid reports whether r is a non-empty subset of RoleBoth.
func (r Role) Valid() bool { return r != 0 && r&^RoleBoth == 0 }

func (r Role) String() string {
	switch r {
	case RoleInterviewee:
		return "interviewee"
	case RoleInterviewer:
		return "interviewer"
	case RoleBoth:
		return "both"
	default:
		return fmt.Sprintf("role(%d)", uint8(r))
	}
}

// ParseRole parses the lowercase wire name of a role.
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "interviewee":
		return RoleInterviewee, nil
	case "interviewer":
		return RoleInterviewer, nil
	case "both":
		return RoleBoth, nil
	}
	return 0, apperrors.ErrInvalidArgument.Explain("unknown role %q", s)
}

func (r Role) MarshalText() ([]byte, error) {
	if !r.Valid() {
		return nil, apperrors.ErrInvalidArgument.Explain("invalid role %d", uint8(r))
	}
	return []byte(r.String()), nil
}

func (r *Role) UnmarshalText(b []byte) error {
	parsed, err := ParseRole(string(b))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// Difficulty is a flag set of problem difficulties. A resolved match
// difficulty always holds exactly one flag.
type Difficulty uint8

const (
	DifficultyEasy Difficulty = 1 << iota
	DifficultyMedium
	DifficultyHard

	DifficultyBoth = DifficultyEasy | DifficultyMedium | DifficultyHard
)

// Valid reports whether d is a non-empty subset of DifficultyBoth.
func (d Difficulty) Valid() bool { return d != 0 && d&^DifficultyBoth == 0 }

// Has reports whether every flag of f is present in d.
func (d Difficulty) Has(f Difficulty) bool { return f != 0 && d&f == f }

func (d Difficulty) String() string {
	switch d {
	case DifficultyEasy:
		return "easy"
	case DifficultyMedium:
		return "medium"
	case DifficultyHard:
		return "hard"
	case DifficultyBoth:
		return "both"
	default:
		var parts []string
		for _, f := range []Difficulty{DifficultyEasy, DifficultyMedium, DifficultyHard} {
			if d.Has(f) {
				parts = append(parts, f.String())
			}
		}
		if len(parts) == 0 || d&^DifficultyBoth != 0 {
			return fmt.Sprintf("difficulty(%d)", uint8(d))
		}
		return strings.Join(parts, "|")
	}
}

// ParseDifficulty parses a wire name, accepting "|" separated combinations
// such as "easy|hard".
func ParseDifficulty(s string) (Difficulty, error) {
	var d Difficulty
	for _, part := range strings.Split(strings.ToLower(strings.TrimSpace(s)), "|") {
		switch strings.TrimSpace(part) {
		case "easy":
			d |= DifficultyEasy
		case "medium":
			d |= DifficultyMedium
		case "hard":
			d |= DifficultyHard
		case "both", "all":
			d |= DifficultyBoth
		default:
			return 0, apperrors.ErrInvalidArgument.Explain("unknown difficulty %q", s)
		}
	}
	return d, nil
}

func (d Difficulty) MarshalText() ([]byte, error) {
	if !d.Valid() {
		return nil, apperrors.ErrInvalidArgument.Explain("invalid difficulty %d", uint8(d))
	}
	return []byte(d.String()), nil
}

func (d *Difficulty) UnmarshalText(b []byte) error {
	parsed, err := ParseDifficulty(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// MatchStatus is the lifecycle state of a Match.
type MatchStatus string

const (
	MatchStatusPending   MatchStatus = "pending"
	MatchStatusReady     MatchStatus = "ready"
	MatchStatusCompleted MatchStatus = "completed"
	MatchStatusCanceled  MatchStatus = "canceled"
)

// QueueStatus is reported to users waiting in the queue.
type QueueStatus string

const QueueStatusWaiting QueueStatus = "waiting"

// QueueEntry is a user's transient record of waiting to be matched.
type QueueEntry struct {
	QueueID     uuid.UUID  `json:"queueId"`
	UserID      string     `json:"userId"`
	Role        Role       `json:"role"`
	Difficulty  Difficulty `json:"difficulty"`
	EnableVideo bool       `json:"enableVideo"`
	EnteredAt   time.Time  `json:"enteredAt"`
}

// MatchPair is produced by the engine for a single tick and consumed
// immediately by the scheduler.
type MatchPair struct {
	Interviewee      QueueEntry
	Interviewer      QueueEntry
	CommonDifficulty Difficulty
}
