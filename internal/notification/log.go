package notification

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// LogNotifier writes notifications to the log only
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.Named("notification")}
}

func (n *LogNotifier) MatchFound(ctx context.Context, matchID uuid.UUID, intervieweeID, interviewerID string) error {
	n.logger.Info("Match found",
		zap.String("match_id", matchID.String()),
		zap.String("interviewee_id", intervieweeID),
		zap.String("interviewer_id", interviewerID))
	return nil
}

func (n *LogNotifier) MatchReady(ctx context.Context, userID string, matchID uuid.UUID, documentURL string, videoRoomURL *string) error {
	fields := []zap.Field{
		zap.String("user_id", userID),
		zap.String("match_id", matchID.String()),
		zap.String("document_url", documentURL),
	}
	if videoRoomURL != nil {
		fields = append(fields, zap.String("video_room_url", *videoRoomURL))
	}
	n.logger.Info("Match ready", fields...)
	return nil
}

func (n *LogNotifier) InsufficientOpportunities(ctx context.Context, userID string) error {
	n.logger.Info("Insufficient opportunities", zap.String("user_id", userID))
	return nil
}

func (n *LogNotifier) QueueTimeout(ctx context.Context, userID string) error {
	n.logger.Info("Queue timeout", zap.String("user_id", userID))
	return nil
}
