package database

import (
	"context"
	"database/sql"
	"errors"
)

// ErrConversationNotFound is returned when no snapshot exists for a key.
var ErrConversationNotFound = errors.New("conversation not found")

// SaveConversation overwrites the snapshot for key in a single statement, so a
// reader always sees either the previous snapshot or the new one.
func (s *sqliteDB) SaveConversation(ctx context.Context, key string, userID int64, data []byte) error {
	_, err := s.ExecWithRetry(ctx, `
		INSERT INTO conversations (key, user_id, data)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			user_id = excluded.user_id,
			data = excluded.data,
			updated_at = CURRENT_TIMESTAMP
	`, key, userID, data)
	return err
}

func (s *sqliteDB) GetConversation(ctx context.Context, key string) ([]byte, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx,
		"SELECT data FROM conversations WHERE key = ?", key,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrConversationNotFound
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (s *sqliteDB) DeleteConversation(ctx context.Context, key string) error {
	_, err := s.ExecWithRetry(ctx, "DELETE FROM conversations WHERE key = ?", key)
	return err
}
