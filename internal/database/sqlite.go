package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/akidev/akibot/internal/config"
	"github.com/akidev/akibot/internal/logger"
)

type sqliteDB struct {
	db     *sql.DB
	logger logger.Logger
}

// NewSQLiteDB opens the database, verifies it answers and applies pending
// migrations. A single connection sidesteps most SQLITE_BUSY contention.
func NewSQLiteDB(cfg *config.Config, log logger.Logger) (Database, error) {
	dsn := cfg.GetDatabaseDSN()

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	log.WithField("DSN", dsn).Debug("Database alive")

	if err := Migrate(db); err != nil {
		return nil, err
	}

	return &sqliteDB{db: db, logger: log}, nil
}

func (s *sqliteDB) Exec(query string, args ...any) (sql.Result, error) {
	return s.db.Exec(query, args...)
}

func (s *sqliteDB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.db.ExecContext(ctx, query, args...)
}

func (s *sqliteDB) Query(query string, args ...any) (*sql.Rows, error) {
	return s.db.Query(query, args...)
}

func (s *sqliteDB) QueryRow(query string, args ...any) *sql.Row {
	return s.db.QueryRow(query, args...)
}

func (s *sqliteDB) Close() error {
	return s.db.Close()
}

// ExecWithRetry retries a write a few times when the database is locked,
// backing off a little longer each attempt.
func (s *sqliteDB) ExecWithRetry(ctx context.Context, query string, args ...any) (sql.Result, error) {
	var res sql.Result
	var err error
	for attempt := 1; attempt <= 3; attempt++ {
		res, err = s.ExecContext(ctx, query, args...)
		if err == nil || !strings.Contains(err.Error(), "database is locked") {
			return res, err
		}
		s.logger.WithFields(logger.Fields{
			"attempt": attempt,
			"query":   query,
			"error":   err.Error(),
		}).Warn("Database locked, retrying...")
		time.Sleep(time.Duration(attempt) * 100 * time.Millisecond)
	}
	return res, err
}

func (s *sqliteDB) PurgeOldTasks(retentionDays int) error {
	_, err := s.db.Exec(
		"DELETE FROM tasks WHERE status IN ('complete', 'failed') AND last_attempt < datetime('now', ?)",
		fmt.Sprintf("-%d days", retentionDays),
	)
	return err
}

func (s *sqliteDB) GetDB() *sql.DB {
	return s.db
}
