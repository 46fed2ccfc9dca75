package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lfhwnqe/gen-novel-gateway/internal/models"
	"github.com/lfhwnqe/gen-novel-gateway/internal/storage"
	"github.com/lfhwnqe/gen-novel-gateway/internal/util"
)

// CookieSink receives the cookie half of a session write. echo.Context
// satisfies it.
type CookieSink interface {
	SetCookie(cookie *http.Cookie)
}

// SessionManager owns the session state in both of its locations: the
// durable repository and the browser cookies. No other code path writes
// either one.
type SessionManager struct {
	repo storage.SessionRepository
	cfg  *util.SessionConfig
	log  *zap.SugaredLogger
}

func NewSessionManager(repo storage.SessionRepository, cfg *util.SessionConfig, log *zap.SugaredLogger) *SessionManager {
	return &SessionManager{repo: repo, cfg: cfg, log: log}
}

// Create mints a session ID for a freshly logged-in user and persists the
// session through the single write path.
func (m *SessionManager) Create(ctx context.Context, session models.Session, cookies CookieSink) (string, error) {
	sid := uuid.NewString()
	now := time.Now()
	session.CreatedAt = now
	session.UpdatedAt = now

	if err := m.Save(ctx, sid, session, cookies); err != nil {
		return "", err
	}
	return sid, nil
}

// Save writes the durable record and then the cookie mirror, in that order.
// Pass a nil sink when no browser response is at hand; the caller owning a
// response must mirror via WriteCookies afterwards.
func (m *SessionManager) Save(ctx context.Context, sid string, session models.Session, cookies CookieSink) error {
	if err := m.repo.SaveSession(ctx, sid, session, m.cfg.SessionTTL); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	if cookies != nil {
		m.WriteCookies(cookies, sid, &session)
	}
	return nil
}

func (m *SessionManager) Load(ctx context.Context, sid string) (*models.Session, error) {
	return m.repo.GetSession(ctx, sid)
}

// Clear removes both locations. Clearing an already-cleared session is a
// no-op, so concurrent logout paths cannot trip over each other.
func (m *SessionManager) Clear(ctx context.Context, sid string, cookies CookieSink) error {
	if err := m.repo.DeleteSession(ctx, sid); err != nil && !errors.Is(err, storage.ErrSessionNotFound) {
		return fmt.Errorf("delete session: %w", err)
	}
	if cookies != nil {
		m.ClearCookies(cookies)
	}
	return nil
}

// ClearAllForUser revokes every session of a user ("log out everywhere").
func (m *SessionManager) ClearAllForUser(ctx context.Context, userID string) error {
	if err := m.repo.DeleteAllUserSessions(ctx, userID); err != nil {
		return fmt.Errorf("delete user sessions: %w", err)
	}
	return nil
}

// SIDCookieName is the cookie the routing guard keys on.
func (m *SessionManager) SIDCookieName() string {
	return m.cfg.SIDCookieName
}

// WriteCookies mirrors the session onto a browser response: the session-ID
// cookie and the short-lived access-token cookie the routing guard reads.
func (m *SessionManager) WriteCookies(cookies CookieSink, sid string, session *models.Session) {
	cookies.SetCookie(m.newCookie(m.cfg.SIDCookieName, sid, m.cfg.SessionTTL))
	cookies.SetCookie(m.newCookie(m.cfg.TokenCookieName, session.AccessToken, m.accessCookieTTL(session.AccessToken)))
}

func (m *SessionManager) ClearCookies(cookies CookieSink) {
	expired := -1 * time.Second
	cookies.SetCookie(m.newCookie(m.cfg.SIDCookieName, "", expired))
	cookies.SetCookie(m.newCookie(m.cfg.TokenCookieName, "", expired))
}

func (m *SessionManager) newCookie(name, value string, ttl time.Duration) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   m.cfg.CookieDomain,
		MaxAge:   int(ttl / time.Second),
		Secure:   m.cfg.CookieSecure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}

// accessCookieTTL sizes the token cookie from the JWT exp claim, shaved by
// the leeway so the cookie never outlives the token on skewed clocks. Opaque
// or already-expired tokens fall back to the configured TTL.
func (m *SessionManager) accessCookieTTL(token string) time.Duration {
	exp, err := AccessTokenExpiry(token)
	if err != nil {
		return m.cfg.AccessCookieTTL
	}
	until := time.Until(exp) - util.JWTLeeWay
	if until <= 0 {
		return m.cfg.AccessCookieTTL
	}
	return until
}
