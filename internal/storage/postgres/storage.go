package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

type Storage struct {
	db *sql.DB
	*SessionRepository
}

func NewStorage(db *sql.DB) *Storage {
	return &Storage{
		db:                db,
		SessionRepository: NewSessionRepository(db),
	}
}

// PurgeExpiredSessions removes rows past their expiry. Redis expires keys on
// its own; the postgres backend needs an explicit sweep.
func (s *Storage) PurgeExpiredSessions(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= now()`)
	if err != nil {
		return 0, fmt.Errorf("purge expired sessions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}
