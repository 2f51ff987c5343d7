package notification

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/Aidin1998/codemeet/internal/matching"
)

// Fanout calls every sink in order and joins their errors. A failing sink
// does not stop delivery to the others.
type Fanout []matching.Notifier

func (f Fanout) MatchFound(ctx context.Context, matchID uuid.UUID, intervieweeID, interviewerID string) error {
	var errs []error
	for _, n := range f {
		errs = append(errs, n.MatchFound(ctx, matchID, intervieweeID, interviewerID))
	}
	return errors.Join(errs...)
}

func (f Fanout) MatchReady(ctx context.Context, userID string, matchID uuid.UUID, documentURL string, videoRoomURL *string) error {
	var errs []error
	for _, n := range f {
		errs = append(errs, n.MatchReady(ctx, userID, matchID, documentURL, videoRoomURL))
	}
	return errors.Join(errs...)
}

func (f Fanout) InsufficientOpportunities(ctx context.Context, userID string) error {
	var errs []error
	for _, n := range f {
		errs = append(errs, n.InsufficientOpportunities(ctx, userID))
	}
	return errors.Join(errs...)
}

func (f Fanout) QueueTimeout(ctx context.Context, userID string) error {
	var errs []error
	for _, n := range f {
		errs = append(errs, n.QueueTimeout(ctx, userID))
	}
	return errors.Join(errs...)
}
