// Package domain contains core domain types for the cgpt application.
package domain

import (
	"errors"
	"fmt"
	"time"
)

// Conversation is a persisted, ordered sequence of messages under one chat ID.
type Conversation struct {
	ChatID    string    `json:"chat_id"`
	Messages  []Message `json:"messages"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

var (
	errEmptyChatID      = errors.New("conversation has empty chat_id")
	errMissingPreamble  = errors.New("conversation must start with a system message")
	errMultiplePreamble = errors.New("conversation has more than one system message")
)

// NewConversation builds a conversation from an initial message list.
func NewConversation(chatID string, messages []Message) *Conversation {
	now := time.Now().UTC()
	return &Conversation{
		ChatID:    chatID,
		Messages:  append([]Message(nil), messages...),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Append adds messages to the end of the conversation.
func (c *Conversation) Append(msgs ...Message) {
	c.Messages = append(c.Messages, msgs...)
	c.UpdatedAt = time.Now().UTC()
}

// Contents projects the message texts in conversation order.
func (c *Conversation) Contents() []string {
	out := make([]string, 0, len(c.Messages))
	for _, m := range c.Messages {
		out = append(out, m.Content)
	}
	return out
}

// Clone returns a deep copy.
func (c *Conversation) Clone() *Conversation {
	if c == nil {
		return nil
	}
	cp := *c
	cp.Messages = append([]Message(nil), c.Messages...)
	return &cp
}

// Validate checks that the conversation opens with exactly one system message
// followed by alternating user and assistant turns.
func (c *Conversation) Validate() error {
	if c.ChatID == "" {
		return errEmptyChatID
	}
	if len(c.Messages) == 0 || c.Messages[0].Role != RoleSystem {
		return errMissingPreamble
	}
	for i, m := range c.Messages[1:] {
		if m.Role == RoleSystem {
			return errMultiplePreamble
		}
		want := RoleUser
		if i%2 == 1 {
			want = RoleAssistant
		}
		if m.Role != want {
			return fmt.Errorf("message %d: expected role %q, got %q", i+1, want, m.Role)
		}
	}
	return nil
}
