package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SaveMessage appends one message to an existing conversation. The insert,
// the message_count increment and the updated_at bump happen in a single
// transaction so the cached count can never drift from the real row count.
// A dangling conversation id trips the foreign-key constraint and surfaces
// as a storage error — callers are expected to create the conversation first.
func (s *Store) SaveMessage(ctx context.Context, conversationID string, role Role, content string, isError bool) (*Message, error) {
	if conversationID == "" {
		return nil, fmt.Errorf("conversation id is required")
	}
	if !role.Valid() {
		return nil, fmt.Errorf("invalid role %q", role)
	}

	msg := &Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		Timestamp:      time.Now().UnixMilli(),
		Error:          isError,
	}

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `INSERT INTO messages (id, conversation_id, role, content, timestamp, error)
		VALUES (?, ?, ?, ?, ?, ?)`,
		msg.ID, msg.ConversationID, msg.Role, msg.Content, msg.Timestamp, msg.Error)
	if err != nil {
		return nil, fmt.Errorf("failed to save message: %w", err)
	}

	_, err = tx.ExecContext(ctx, `UPDATE conversations
		SET message_count = message_count + 1, updated_at = ? WHERE id = ?`,
		msg.Timestamp, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to touch conversation: %w", err)
	}

	// The first user message names the conversation unless the user already
	// renamed it.
	if role == RoleUser {
		_, err = tx.ExecContext(ctx, `UPDATE conversations SET title = ? WHERE id = ? AND title = ''`,
			deriveTitle(content), conversationID)
		if err != nil {
			return nil, fmt.Errorf("failed to set conversation title: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit message: %w", err)
	}
	return msg, nil
}
