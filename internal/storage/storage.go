package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lfhwnqe/gen-novel-gateway/internal/models"
)

var ErrSessionNotFound = errors.New("session not found")

// SessionRepository is the durable half of the two-location session state.
// All writes must go through the session manager in internal/service.
type SessionRepository interface {
	SaveSession(ctx context.Context, sid string, session models.Session, ttl time.Duration) error
	GetSession(ctx context.Context, sid string) (*models.Session, error)
	DeleteSession(ctx context.Context, sid string) error
	DeleteAllUserSessions(ctx context.Context, userID string) error
}

type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}
