package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lfhwnqe/gen-novel-gateway/internal/models"
	"github.com/lfhwnqe/gen-novel-gateway/internal/storage"
)

type SessionRepository struct {
	db storage.DBTX
}

func NewSessionRepository(db storage.DBTX) *SessionRepository {
	return &SessionRepository{db: db}
}

func (r *SessionRepository) SaveSession(ctx context.Context, sid string, session models.Session, ttl time.Duration) error {
	query := `INSERT INTO sessions (sid, access_token, refresh_token, user_id, username, email, role, expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (sid) DO UPDATE SET
			access_token = EXCLUDED.access_token,
			refresh_token = EXCLUDED.refresh_token,
			expires_at = EXCLUDED.expires_at,
			updated_at = EXCLUDED.updated_at`
	_, err := r.db.ExecContext(
		ctx,
		query,
		sid,
		session.AccessToken,
		session.RefreshToken,
		session.User.UserID,
		session.User.Username,
		session.User.Email,
		session.User.Role,
		time.Now().Add(ttl),
		session.CreatedAt,
		session.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert session: %w", err)
	}
	return nil
}

func (r *SessionRepository) GetSession(ctx context.Context, sid string) (*models.Session, error) {
	var session models.Session
	query := `SELECT access_token, refresh_token, user_id, username, email, role, created_at, updated_at
		FROM sessions WHERE sid = $1 AND expires_at > now()`
	err := r.db.QueryRowContext(ctx, query, sid).Scan(
		&session.AccessToken,
		&session.RefreshToken,
		&session.User.UserID,
		&session.User.Username,
		&session.User.Email,
		&session.User.Role,
		&session.CreatedAt,
		&session.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("session %s: %w", sid, storage.ErrSessionNotFound)
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return &session, nil
}

func (r *SessionRepository) DeleteSession(ctx context.Context, sid string) error {
	query := `DELETE FROM sessions WHERE sid = $1`
	_, err := r.db.ExecContext(ctx, query, sid)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

func (r *SessionRepository) DeleteAllUserSessions(ctx context.Context, userID string) error {
	query := `DELETE FROM sessions WHERE user_id = $1`
	_, err := r.db.ExecContext(ctx, query, userID)
	if err != nil {
		return fmt.Errorf("delete user sessions: %w", err)
	}
	return nil
}
