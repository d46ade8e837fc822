package models

import (
	"fmt"
	"time"
)

// MessageStatus represents the delivery lifecycle state of a message.
type MessageStatus string

const (
	// MessageQueued means the message awaits delivery (initial state, and
	// the state a worker resets to when scheduling a retry).
	MessageQueued MessageStatus = "queued"
	// MessageProcessing means a worker currently holds the message.
	MessageProcessing MessageStatus = "processing"
	// MessageDelivered is terminal success; DeliveredAt is set and never cleared.
	MessageDelivered MessageStatus = "delivered"
	// MessageFailed is terminal failure; no further attempts are made.
	MessageFailed MessageStatus = "failed"
)

// IsValid checks if the status is a valid MessageStatus.
func (s MessageStatus) IsValid() bool {
	switch s {
	case MessageQueued, MessageProcessing, MessageDelivered, MessageFailed:
		return true
	}
	return false
}

// IsTerminal reports whether no further transitions are allowed.
func (s MessageStatus) IsTerminal() bool {
	return s == MessageDelivered || s == MessageFailed
}

// Message represents a persisted message with privacy-preserving fields.
//
// The sender number is stored only as a salted SHA-256 hex digest and the
// body only as a versioned ciphertext. KeyVersion names the encryption key
// used for this row and is retained forever so rotation never strands data.
type Message struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	MessageID     string     `gorm:"uniqueIndex;not null;size:36" json:"message_id"`
	ClientID      string     `gorm:"not null;size:255;index:idx_messages_client_query,priority:1" json:"client_id"`
	SenderHash    string     `gorm:"not null;size:64" json:"sender_hash"`
	EncryptedBody []byte     `gorm:"not null" json:"-"`
	KeyVersion    int        `gorm:"not null;default:1" json:"key_version"`
	Status        string     `gorm:"default:queued;size:20;index:idx_messages_client_query,priority:2;index:idx_messages_worker_query,priority:1" json:"status"`
	Domain        string     `gorm:"size:255" json:"domain"`
	AttemptCount  int        `gorm:"default:0;index:idx_messages_worker_query,priority:2" json:"attempt_count"`
	LastError     string     `gorm:"size:1024" json:"last_error,omitempty"`
	CreatedAt     time.Time  `gorm:"autoCreateTime;index:idx_messages_client_query,priority:3" json:"created_at"`
	QueuedAt      time.Time  `gorm:"index:idx_messages_worker_query,priority:3" json:"queued_at"`
	DeliveredAt   *time.Time `json:"delivered_at,omitempty"`
	LastAttemptAt *time.Time `json:"last_attempt_at,omitempty"`
}

// TableName returns the table name for Message.
func (Message) TableName() string {
	return "messages"
}

// Validate checks if the message record is well-formed.
func (m *Message) Validate() error {
	if m.MessageID == "" {
		return fmt.Errorf("message_id is required")
	}
	if m.ClientID == "" {
		return fmt.Errorf("client_id is required")
	}
	if m.Status != "" && !MessageStatus(m.Status).IsValid() {
		return fmt.Errorf("invalid status %q", m.Status)
	}
	return nil
}

// CanTransitionTo reports whether the lifecycle permits moving to next.
// Terminal states admit nothing; delivery requires queued or processing.
func (m *Message) CanTransitionTo(next MessageStatus) bool {
	current := MessageStatus(m.Status)
	if current.IsTerminal() {
		return false
	}
	switch next {
	case MessageQueued, MessageProcessing, MessageFailed:
		return true
	case MessageDelivered:
		return current == MessageQueued || current == MessageProcessing
	}
	return false
}
