package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// CreateConversation inserts a new empty conversation, optionally anchored by
// a screenshot data URL. The content hash is computed here, at creation, and
// never changes.
func (s *Store) CreateConversation(ctx context.Context, screenshot string) (*Conversation, error) {
	now := time.Now().UnixMilli()
	conv := &Conversation{
		ID:         uuid.NewString(),
		Screenshot: screenshot,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if screenshot != "" {
		conv.ScreenshotHash = hashScreenshot(screenshot)
	}

	_, err := s.conn.ExecContext(ctx, `INSERT INTO conversations
		(id, screenshot_data_url, screenshot_hash, title, created_at, updated_at, message_count, starred, archived)
		VALUES (?, ?, ?, '', ?, ?, 0, 0, 0)`,
		conv.ID, nullable(conv.Screenshot), nullable(conv.ScreenshotHash), conv.CreatedAt, conv.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}
	return conv, nil
}

// GetConversation returns a single conversation or ErrNotFound.
func (s *Store) GetConversation(ctx context.Context, id string) (*Conversation, error) {
	var (
		conv             Conversation
		screenshot, hash sql.NullString
	)
	err := s.conn.QueryRowContext(ctx, `SELECT id, screenshot_data_url, screenshot_hash, title,
		created_at, updated_at, message_count, starred, archived
		FROM conversations WHERE id = ?`, id).
		Scan(&conv.ID, &screenshot, &hash, &conv.Title, &conv.CreatedAt, &conv.UpdatedAt,
			&conv.MessageCount, &conv.Starred, &conv.Archived)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}
	conv.Screenshot = screenshot.String
	conv.ScreenshotHash = hash.String
	return &conv, nil
}

// GetConversationWithMessages returns the full record plus its messages in
// timestamp order. The message list is never partially populated: a missing
// conversation yields ErrNotFound and nothing else.
func (s *Store) GetConversationWithMessages(ctx context.Context, id string) (*ConversationWithMessages, error) {
	conv, err := s.GetConversation(ctx, id)
	if err != nil {
		return nil, err
	}

	rows, err := s.conn.QueryContext(ctx, `SELECT id, conversation_id, role, content, timestamp, error
		FROM messages WHERE conversation_id = ? ORDER BY timestamp ASC, rowid ASC`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	result := &ConversationWithMessages{Conversation: *conv, Messages: []Message{}}
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Role, &m.Content, &m.Timestamp, &m.Error); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		result.Messages = append(result.Messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read messages: %w", err)
	}
	return result, nil
}

// ListConversations returns summaries ordered by most recent activity.
// Archived conversations are hidden unless filters.Archived is set;
// filters.Starred additionally restricts to starred ones.
func (s *Store) ListConversations(ctx context.Context, limit, offset int, filters ListFilters) ([]ConversationSummary, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	query := `SELECT c.id, c.screenshot_hash, c.title, c.created_at, c.updated_at,
			c.message_count, c.starred, c.archived,
			(SELECT m.content FROM messages m WHERE m.conversation_id = c.id AND m.role = 'user'
				ORDER BY m.timestamp ASC, m.rowid ASC LIMIT 1),
			(SELECT m.content FROM messages m WHERE m.conversation_id = c.id AND m.role = 'assistant'
				ORDER BY m.timestamp ASC, m.rowid ASC LIMIT 1)
		FROM conversations c
		WHERE c.archived = ?`
	args := []any{filters.Archived}
	if filters.Starred {
		query += ` AND c.starred = 1`
	}
	query += ` ORDER BY c.updated_at DESC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	defer rows.Close()

	summaries := []ConversationSummary{}
	for rows.Next() {
		var (
			sum                             ConversationSummary
			hash, firstUser, firstAssistant sql.NullString
		)
		if err := rows.Scan(&sum.ID, &hash, &sum.Title, &sum.CreatedAt, &sum.UpdatedAt,
			&sum.MessageCount, &sum.Starred, &sum.Archived, &firstUser, &firstAssistant); err != nil {
			return nil, fmt.Errorf("failed to scan conversation: %w", err)
		}
		sum.ScreenshotHash = hash.String
		if sum.Title == "" {
			sum.Title = deriveTitle(firstUser.String)
		}
		sum.Preview = derivePreview(firstAssistant.String)
		summaries = append(summaries, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read conversations: %w", err)
	}
	return summaries, nil
}

// Update applies the non-nil fields of upd and bumps updated_at. An all-nil
// update writes nothing at all.
func (s *Store) Update(ctx context.Context, id string, upd UpdateConversation) error {
	set := []string{}
	args := []any{}
	if upd.Title != nil {
		set = append(set, "title = ?")
		args = append(args, *upd.Title)
	}
	if upd.Starred != nil {
		set = append(set, "starred = ?")
		args = append(args, *upd.Starred)
	}
	if upd.Archived != nil {
		set = append(set, "archived = ?")
		args = append(args, *upd.Archived)
	}
	if len(set) == 0 {
		return nil
	}
	set = append(set, "updated_at = ?")
	args = append(args, time.Now().UnixMilli(), id)

	result, err := s.conn.ExecContext(ctx,
		"UPDATE conversations SET "+strings.Join(set, ", ")+" WHERE id = ?", args...)
	if err != nil {
		return fmt.Errorf("failed to update conversation: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update conversation: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a conversation; the engine's ON DELETE CASCADE removes its
// messages in the same statement. No separate message delete exists anywhere.
func (s *Store) Delete(ctx context.Context, id string) error {
	result, err := s.conn.ExecContext(ctx, `DELETE FROM conversations WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete conversation: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete conversation: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// SaveCompleteConversation persists a whole prompt/answer sequence assembled
// elsewhere (a transient UI surface) as one conversation, atomically: a
// mid-sequence failure persists nothing.
func (s *Store) SaveCompleteConversation(ctx context.Context, screenshot string, items []ExchangeItem) (*Conversation, error) {
	now := time.Now().UnixMilli()
	conv := &Conversation{
		ID:           uuid.NewString(),
		Screenshot:   screenshot,
		CreatedAt:    now,
		UpdatedAt:    now,
		MessageCount: len(items) * 2,
	}
	if screenshot != "" {
		conv.ScreenshotHash = hashScreenshot(screenshot)
	}
	if len(items) > 0 {
		conv.Title = deriveTitle(items[0].Prompt)
	}

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `INSERT INTO conversations
		(id, screenshot_data_url, screenshot_hash, title, created_at, updated_at, message_count, starred, archived)
		VALUES (?, ?, ?, ?, ?, ?, ?, 0, 0)`,
		conv.ID, nullable(conv.Screenshot), nullable(conv.ScreenshotHash), conv.Title,
		conv.CreatedAt, conv.UpdatedAt, conv.MessageCount)
	if err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}

	ts := now
	for _, item := range items {
		pairs := []struct {
			role    Role
			content string
			isErr   bool
		}{
			{RoleUser, item.Prompt, false},
			{RoleAssistant, item.Answer, item.Error},
		}
		for _, p := range pairs {
			_, err = tx.ExecContext(ctx, `INSERT INTO messages (id, conversation_id, role, content, timestamp, error)
				VALUES (?, ?, ?, ?, ?, ?)`,
				uuid.NewString(), conv.ID, p.role, p.content, ts, p.isErr)
			if err != nil {
				return nil, fmt.Errorf("failed to save message: %w", err)
			}
			ts++
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit conversation: %w", err)
	}
	return conv, nil
}

func hashScreenshot(screenshot string) string {
	sum := sha256.Sum256([]byte(screenshot))
	return hex.EncodeToString(sum[:])
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
