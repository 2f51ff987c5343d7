package matching

import (
	"context"

	"github.com/google/uuid"
)

// OpportunityGate guards the interviewee side of a match. TryConsume must be
// atomic per user: concurrent calls against a balance of one succeed at most
// once.
type OpportunityGate interface {
	HasOpportunity(ctx context.Context, userID string) (bool, error)
	TryConsume(ctx context.Context, userID string) (bool, error)
	Award(ctx context.Context, userID string, amount int) error
}

// MatchRepository stores matches inside a Scope.
type MatchRepository interface {
	Insert(ctx context.Context, m *Match) error
}

// Scope is a unit of work. Nothing written through Matches is visible until
// Commit returns nil; Rollback after Commit is a no-op.
type Scope interface {
	Matches() MatchRepository
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// ScopeFactory opens one Scope per pair so that failures stay isolated.
type ScopeFactory interface {
	Begin(ctx context.Context) (Scope, error)
}

// Notifier delivers user-facing match notifications. Delivery is best effort;
// callers log errors and continue.
type Notifier interface {
	MatchFound(ctx context.Context, matchID uuid.UUID, intervieweeID, interviewerID string) error
	MatchReady(ctx context.Context, userID string, matchID uuid.UUID, documentURL string, videoRoomURL *string) error
	InsufficientOpportunities(ctx context.Context, userID string) error
	QueueTimeout(ctx context.Context, userID string) error
}

// EventPublisher receives domain events after the owning match is committed.
type EventPublisher interface {
	Publish(ctx context.Context, events []DomainEvent) error
}
