package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/Aidin1998/codemeet/internal/matching"
)

const (
	DefaultNotificationsTopic = "codemeet.match.notifications"
	DefaultEventsTopic        = "codemeet.match.events"
)

// KafkaConfig contains configuration for the kafka writer
type KafkaConfig struct {
	Brokers            []string      `json:"brokers"`
	NotificationsTopic string        `json:"notifications_topic"`
	EventsTopic        string        `json:"events_topic"`
	WriteTimeout       time.Duration `json:"write_timeout"`
	BatchTimeout       time.Duration `json:"batch_timeout"`
	RequiredAcks       int           `json:"required_acks"`
	Compression        string        `json:"compression"`
	RetryMax           int           `json:"retry_max"`
}

// DefaultKafkaConfig returns the default writer configuration
func DefaultKafkaConfig() KafkaConfig {
	return KafkaConfig{
		Brokers:            []string{"localhost:9092"},
		NotificationsTopic: DefaultNotificationsTopic,
		EventsTopic:        DefaultEventsTopic,
		WriteTimeout:       5 * time.Second,
		BatchTimeout:       10 * time.Millisecond,
		RequiredAcks:       int(kafka.RequireOne),
		Compression:        "snappy",
		RetryMax:           3,
	}
}

// messageWriter is the subset of *kafka.Writer used here
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaNotifier publishes user notifications and domain events as JSON.
// Notifications are keyed by user id, events by match id.
type KafkaNotifier struct {
	writer             messageWriter
	notificationsTopic string
	eventsTopic        string
	logger             *zap.Logger
}

func NewKafkaNotifier(cfg KafkaConfig, logger *zap.Logger) *KafkaNotifier {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Balancer:     &kafka.Hash{},
		BatchTimeout: cfg.BatchTimeout,
		WriteTimeout: cfg.WriteTimeout,
		RequiredAcks: kafka.RequiredAcks(cfg.RequiredAcks),
		MaxAttempts:  cfg.RetryMax,
	}

	// Set compression
	switch cfg.Compression {
	case "gzip":
		writer.Compression = kafka.Gzip
	case "lz4":
		writer.Compression = kafka.Lz4
	case "zstd":
		writer.Compression = kafka.Zstd
	case "none":
	default:
		writer.Compression = kafka.Snappy
	}

	return newKafkaNotifier(writer, cfg, logger)
}

func newKafkaNotifier(writer messageWriter, cfg KafkaConfig, logger *zap.Logger) *KafkaNotifier {
	if cfg.NotificationsTopic == "" {
		cfg.NotificationsTopic = DefaultNotificationsTopic
	}
	if cfg.EventsTopic == "" {
		cfg.EventsTopic = DefaultEventsTopic
	}
	return &KafkaNotifier{
		writer:             writer,
		notificationsTopic: cfg.NotificationsTopic,
		eventsTopic:        cfg.EventsTopic,
		logger:             logger,
	}
}

func (n *KafkaNotifier) MatchFound(ctx context.Context, matchID uuid.UUID, intervieweeID, interviewerID string) error {
	return n.publish(ctx,
		matchFoundFor(matchID, intervieweeID, matching.RoleInterviewee.String(), interviewerID),
		matchFoundFor(matchID, interviewerID, matching.RoleInterviewer.String(), intervieweeID))
}

func (n *KafkaNotifier) MatchReady(ctx context.Context, userID string, matchID uuid.UUID, documentURL string, videoRoomURL *string) error {
	return n.publish(ctx, matchReadyFor(matchID, userID, documentURL, videoRoomURL))
}

func (n *KafkaNotifier) InsufficientOpportunities(ctx context.Context, userID string) error {
	return n.publish(ctx, insufficientFor(userID))
}

func (n *KafkaNotifier) QueueTimeout(ctx context.Context, userID string) error {
	return n.publish(ctx, queueTimeoutFor(userID))
}

// Publish writes committed domain events to the events topic
func (n *KafkaNotifier) Publish(ctx context.Context, events []matching.DomainEvent) error {
	if len(events) == 0 {
		return nil
	}

	msgs := make([]kafka.Message, 0, len(events))
	for _, e := range events {
		body := EventMessage{
			BaseMessage: newBase(eventType(e), e.AggregateID().String()),
			AggregateID: e.AggregateID().String(),
			Payload:     e,
		}
		body.Timestamp = e.OccurredAt()
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal event %s: %w", e.EventName(), err)
		}
		msgs = append(msgs, kafka.Message{
			Topic: n.eventsTopic,
			Key:   []byte(e.AggregateID().String()),
			Value: data,
			Time:  e.OccurredAt(),
		})
	}

	if err := n.writer.WriteMessages(ctx, msgs...); err != nil {
		n.logger.Error("Failed to publish events", zap.Error(err), zap.Int("count", len(msgs)))
		return fmt.Errorf("failed to publish events: %w", err)
	}
	n.logger.Debug("Publishing events", zap.Int("count", len(msgs)))
	return nil
}

func (n *KafkaNotifier) publish(ctx context.Context, notes ...UserNotification) error {
	msgs := make([]kafka.Message, 0, len(notes))
	for _, note := range notes {
		data, err := json.Marshal(note)
		if err != nil {
			return fmt.Errorf("failed to marshal notification: %w", err)
		}
		msgs = append(msgs, kafka.Message{
			Topic: n.notificationsTopic,
			Key:   []byte(note.UserID),
			Value: data,
			Time:  note.Timestamp,
		})
	}

	if err := n.writer.WriteMessages(ctx, msgs...); err != nil {
		n.logger.Error("Failed to publish notification",
			zap.String("type", string(notes[0].Type)),
			zap.Error(err))
		return fmt.Errorf("failed to publish notification: %w", err)
	}
	n.logger.Debug("Publishing notification",
		zap.String("type", string(notes[0].Type)),
		zap.Int("count", len(msgs)))
	return nil
}

// Close flushes and closes the writer
func (n *KafkaNotifier) Close() error {
	return n.writer.Close()
}

func eventType(e matching.DomainEvent) MessageType {
	switch e.(type) {
	case matching.MatchCreated:
		return MsgMatchCreatedEvent
	case matching.MatchReady:
		return MsgMatchReadyEvent
	}
	return MessageType("event." + e.EventName())
}
