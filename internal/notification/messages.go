// Package notification delivers match notifications to users through zap
// logs, kafka topics and websocket connections.
package notification

import (
	"time"

	"github.com/google/uuid"
)

// MessageType defines the type of message being sent
type MessageType string

const (
	// User notifications
	MsgMatchFound                MessageType = "match.found"
	MsgMatchReady                MessageType = "match.ready"
	MsgInsufficientOpportunities MessageType = "match.insufficient_opportunities"
	MsgQueueTimeout              MessageType = "match.queue_timeout"

	// Domain events
	MsgMatchCreatedEvent MessageType = "event.match.created"
	MsgMatchReadyEvent   MessageType = "event.match.ready"
)

const (
	messageVersion = "1.0"
	messageSource  = "codemeet-matching"
)

// BaseMessage contains common fields for all messages
type BaseMessage struct {
	MessageID     string      `json:"message_id"`
	Type          MessageType `json:"type"`
	Timestamp     time.Time   `json:"timestamp"`
	Version       string      `json:"version"`
	Source        string      `json:"source"`
	CorrelationID string      `json:"correlation_id,omitempty"`
}

func newBase(t MessageType, correlationID string) BaseMessage {
	return BaseMessage{
		MessageID:     uuid.NewString(),
		Type:          t,
		Timestamp:     time.Now().UTC(),
		Version:       messageVersion,
		Source:        messageSource,
		CorrelationID: correlationID,
	}
}

// UserNotification is the payload pushed to a single user
type UserNotification struct {
	BaseMessage
	UserID       string  `json:"user_id"`
	MatchID      string  `json:"match_id,omitempty"`
	Role         string  `json:"role,omitempty"`
	PartnerID    string  `json:"partner_id,omitempty"`
	DocumentURL  string  `json:"document_url,omitempty"`
	VideoRoomURL *string `json:"video_room_url,omitempty"`
	Reason       string  `json:"reason,omitempty"`
}

// EventMessage wraps a domain event for the events topic
type EventMessage struct {
	BaseMessage
	AggregateID string      `json:"aggregate_id"`
	Payload     interface{} `json:"payload"`
}

func matchFoundFor(matchID uuid.UUID, userID, role, partnerID string) UserNotification {
	return UserNotification{
		BaseMessage: newBase(MsgMatchFound, matchID.String()),
		UserID:      userID,
		MatchID:     matchID.String(),
		Role:        role,
		PartnerID:   partnerID,
	}
}

func matchReadyFor(matchID uuid.UUID, userID, documentURL string, videoRoomURL *string) UserNotification {
	return UserNotification{
		BaseMessage:  newBase(MsgMatchReady, matchID.String()),
		UserID:       userID,
		MatchID:      matchID.String(),
		DocumentURL:  documentURL,
		VideoRoomURL: videoRoomURL,
	}
}

func insufficientFor(userID string) UserNotification {
	return UserNotification{
		BaseMessage: newBase(MsgInsufficientOpportunities, ""),
		UserID:      userID,
		Reason:      "no interview opportunities left",
	}
}

func queueTimeoutFor(userID string) UserNotification {
	return UserNotification{
		BaseMessage: newBase(MsgQueueTimeout, ""),
		UserID:      userID,
		Reason:      "queue wait timed out",
	}
}
