package sqlstore

import (
	"context"
	"fmt"
	"time"

	"github.com/creastat/convstore"
	"github.com/google/uuid"
)

// AppendMessage appends an entry to the conversation log. ID and CreatedAt are filled in when empty.
func (s *Store) AppendMessage(ctx context.Context, entry *convstore.LogEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.UnixMilli(s.nowMillis())
	}

	stmt := fmt.Sprintf(`INSERT INTO message (id, conv_id, sender, content, created_ts) VALUES (%s, %s, %s, %s, %s)`,
		s.placeholder(1), s.placeholder(2), s.placeholder(3), s.placeholder(4), s.placeholder(5))
	if _, err := s.db.ExecContext(ctx, stmt,
		entry.ID, entry.ConversationID, entry.Sender, entry.Content, entry.CreatedAt.UnixMilli(),
	); err != nil {
		return fmt.Errorf("failed to append message: %w", err)
	}
	return nil
}

// ListMessages implements session.LogService. Messages come back in append order.
func (s *Store) ListMessages(ctx context.Context, id string) ([]convstore.LogEntry, error) {
	query := `SELECT id, conv_id, sender, content, created_ts FROM message
	          WHERE conv_id = ` + s.placeholder(1) + ` ORDER BY seq ASC`
	rows, err := s.db.QueryContext(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	list := []convstore.LogEntry{}
	for rows.Next() {
		var (
			e       convstore.LogEntry
			created int64
		)
		if err := rows.Scan(&e.ID, &e.ConversationID, &e.Sender, &e.Content, &created); err != nil {
			return nil, err
		}
		e.CreatedAt = time.UnixMilli(created)
		list = append(list, e)
	}
	return list, rows.Err()
}
