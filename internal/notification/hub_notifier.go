package notification

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Aidin1998/codemeet/internal/matching"
)

// HubNotifier pushes notifications to users connected to the websocket hub
type HubNotifier struct {
	hub    *Hub
	logger *zap.Logger
}

func NewHubNotifier(hub *Hub, logger *zap.Logger) *HubNotifier {
	return &HubNotifier{hub: hub, logger: logger}
}

func (n *HubNotifier) MatchFound(ctx context.Context, matchID uuid.UUID, intervieweeID, interviewerID string) error {
	if err := n.push(matchFoundFor(matchID, intervieweeID, matching.RoleInterviewee.String(), interviewerID)); err != nil {
		return err
	}
	return n.push(matchFoundFor(matchID, interviewerID, matching.RoleInterviewer.String(), intervieweeID))
}

func (n *HubNotifier) MatchReady(ctx context.Context, userID string, matchID uuid.UUID, documentURL string, videoRoomURL *string) error {
	return n.push(matchReadyFor(matchID, userID, documentURL, videoRoomURL))
}

func (n *HubNotifier) InsufficientOpportunities(ctx context.Context, userID string) error {
	return n.push(insufficientFor(userID))
}

func (n *HubNotifier) QueueTimeout(ctx context.Context, userID string) error {
	return n.push(queueTimeoutFor(userID))
}

func (n *HubNotifier) push(note UserNotification) error {
	data, err := json.Marshal(note)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}
	delivered := n.hub.SendToUser(note.UserID, data)
	n.logger.Debug("Pushed notification",
		zap.String("type", string(note.Type)),
		zap.String("user_id", note.UserID),
		zap.Int("connections", delivered))
	return nil
}
