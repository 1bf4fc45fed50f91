package database

import (
	"context"
	"database/sql"
	"time"
)

type Database interface {
	GetDB() *sql.DB

	Exec(query string, args ...any) (sql.Result, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
	Close() error
	ExecWithRetry(ctx context.Context, query string, args ...any) (sql.Result, error)

	GetUser(userID int64) (*User, error)
	SaveUser(user User) error

	// Conversation snapshots, one row per user key.
	SaveConversation(ctx context.Context, key string, userID int64, data []byte) error
	GetConversation(ctx context.Context, key string) ([]byte, error)
	DeleteConversation(ctx context.Context, key string) error

	PurgeOldTasks(retentionDays int) error
}

type User struct {
	ID        int64     `json:"id"`
	PublicID  string    `json:"public_id"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (u User) Equal(user User) bool {
	return u.FirstName == user.FirstName &&
		u.LastName == user.LastName &&
		u.Username == user.Username &&
		user.PublicID != ""
}
