package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/creastat/convstore"
	"github.com/creastat/convstore/session"
	"github.com/google/uuid"
)

// CreateConversation inserts a conversation. ID and LastModified are filled in when empty.
func (s *Store) CreateConversation(ctx context.Context, conv *convstore.Conversation) error {
	if conv.ID == "" {
		conv.ID = uuid.NewString()
	}
	if conv.Title == "" {
		conv.Title = convstore.UntitledTitle
	}
	if conv.LastModified.IsZero() {
		conv.LastModified = time.UnixMilli(s.nowMillis())
	}

	stmt := fmt.Sprintf(`INSERT INTO conversation (id, owner_handle, title, last_modified) VALUES (%s, %s, %s, %s)`,
		s.placeholder(1), s.placeholder(2), s.placeholder(3), s.placeholder(4))
	if _, err := s.db.ExecContext(ctx, stmt, conv.ID, conv.OwnerHandle, conv.Title, conv.LastModified.UnixMilli()); err != nil {
		return fmt.Errorf("failed to create conversation: %w", err)
	}
	return nil
}

// GetConversation implements session.LogService.
func (s *Store) GetConversation(ctx context.Context, id string) (*convstore.Conversation, error) {
	query := `SELECT id, owner_handle, title, last_modified FROM conversation WHERE id = ` + s.placeholder(1)

	var (
		conv     convstore.Conversation
		modified int64
	)
	err := s.db.QueryRowContext(ctx, query, id).Scan(&conv.ID, &conv.OwnerHandle, &conv.Title, &modified)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, convstore.ErrConversationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}
	conv.LastModified = time.UnixMilli(modified)
	return &conv, nil
}

// ListConversations returns the owner's conversations, most recently modified first.
func (s *Store) ListConversations(ctx context.Context, owner string) ([]convstore.Conversation, error) {
	query := `SELECT id, owner_handle, title, last_modified FROM conversation
	          WHERE owner_handle = ` + s.placeholder(1) + ` ORDER BY last_modified DESC, id`
	rows, err := s.db.QueryContext(ctx, query, owner)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	defer rows.Close()

	var list []convstore.Conversation
	for rows.Next() {
		var (
			c        convstore.Conversation
			modified int64
		)
		if err := rows.Scan(&c.ID, &c.OwnerHandle, &c.Title, &modified); err != nil {
			return nil, err
		}
		c.LastModified = time.UnixMilli(modified)
		list = append(list, c)
	}
	return list, rows.Err()
}

// SetTitleIfUntitled implements session.LogService as a single conditional UPDATE.
func (s *Store) SetTitleIfUntitled(ctx context.Context, id, title string) (bool, error) {
	stmt := fmt.Sprintf(`UPDATE conversation SET title = %s
	         WHERE id = %s AND LOWER(TRIM(title)) = 'untitled'`,
		s.placeholder(1), s.placeholder(2))
	res, err := s.db.ExecContext(ctx, stmt, title, id)
	if err != nil {
		return false, fmt.Errorf("failed to set title: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n > 0 {
		return true, nil
	}

	// Distinguish "already titled" from "no such conversation"
	if _, err := s.GetConversation(ctx, id); err != nil {
		return false, err
	}
	return false, nil
}

// RenameConversation sets the title unconditionally.
func (s *Store) RenameConversation(ctx context.Context, id, title string) error {
	stmt := fmt.Sprintf(`UPDATE conversation SET title = %s, last_modified = %s WHERE id = %s`,
		s.placeholder(1), s.placeholder(2), s.placeholder(3))
	return s.execOne(ctx, stmt, title, s.nowMillis(), id)
}

// TouchLastModified implements session.LogService.
func (s *Store) TouchLastModified(ctx context.Context, id string) error {
	stmt := fmt.Sprintf(`UPDATE conversation SET last_modified = %s WHERE id = %s`,
		s.placeholder(1), s.placeholder(2))
	return s.execOne(ctx, stmt, s.nowMillis(), id)
}

// DeleteConversation deletes a conversation and all of its messages.
func (s *Store) DeleteConversation(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM message WHERE conv_id = `+s.placeholder(1), id); err != nil {
		return fmt.Errorf("failed to delete messages: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM conversation WHERE id = `+s.placeholder(1), id)
	if err != nil {
		return fmt.Errorf("failed to delete conversation: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return convstore.ErrConversationNotFound
	}
	return tx.Commit()
}

// execOne runs stmt and maps "no row touched" to ErrConversationNotFound.
func (s *Store) execOne(ctx context.Context, stmt string, args ...any) error {
	res, err := s.db.ExecContext(ctx, stmt, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return convstore.ErrConversationNotFound
	}
	return nil
}

var _ session.LogService = (*Store)(nil)
