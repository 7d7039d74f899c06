// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// SENDER TYPE
// =============================================================================

// Sender identifies who authored a message.
type Sender string

const (
	SenderUser   Sender = "user"
	SenderBot    Sender = "bot"
	SenderSystem Sender = "system"
)

// String returns the string representation of the sender.
func (s Sender) String() string {
	return string(s)
}

// DisplayName returns a human-readable name for the sender.
func (s Sender) DisplayName() string {
	switch s {
	case SenderUser:
		return "You"
	case SenderBot:
		return "EchoFlow"
	case SenderSystem:
		return "System"
	default:
		return string(s)
	}
}

// Valid reports whether s is one of the known senders.
func (s Sender) Valid() bool {
	switch s {
	case SenderUser, SenderBot, SenderSystem:
		return true
	}
	return false
}

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// Message represents a single message in a conversation.
//
// Timestamps serialize as RFC 3339 with nanosecond precision, which is what
// encoding/json does for time.Time.
type Message struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Sender    Sender    `json:"sender"`
	Timestamp time.Time `json:"timestamp"`

	// IsLoading marks a transient placeholder awaiting the backend.
	IsLoading bool `json:"isLoading,omitempty"`
}

// NewMessage creates a message with a generated ID stamped now.
func NewMessage(sender Sender, text string) Message {
	return Message{
		ID:        NewMessageID(),
		Text:      text,
		Sender:    sender,
		Timestamp: time.Now(),
	}
}

// NewPlaceholder creates a loading bot message.
func NewPlaceholder(text string) Message {
	m := NewMessage(SenderBot, text)
	m.IsLoading = true
	return m
}

// NewMessageID returns a fresh message identifier.
func NewMessageID() string {
	return uuid.NewString()
}

// IsUser reports whether the message was authored by the user.
func (m Message) IsUser() bool {
	return m.Sender == SenderUser
}

// CountBySender returns how many messages in msgs were sent by s.
func CountBySender(msgs []Message, s Sender) int {
	n := 0
	for _, m := range msgs {
		if m.Sender == s {
			n++
		}
	}
	return n
}

// CloneMessages returns a copy of msgs that callers may mutate freely.
func CloneMessages(msgs []Message) []Message {
	if msgs == nil {
		return []Message{}
	}
	out := make([]Message, len(msgs))
	copy(out, msgs)
	return out
}
