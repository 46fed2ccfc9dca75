package memory

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/lfhwnqe/gen-novel-gateway/internal/models"
	"github.com/lfhwnqe/gen-novel-gateway/internal/storage"
)

type sessionEntry struct {
	session   models.Session
	expiresAt time.Time
}

type InMemorySessionManager struct {
	mu       sync.RWMutex
	sessions map[string]sessionEntry
	log      *zap.SugaredLogger
}

func NewSessionRepository(log *zap.SugaredLogger) storage.SessionRepository {
	return &InMemorySessionManager{
		sessions: make(map[string]sessionEntry),
		log:      log,
	}
}

func (m *InMemorySessionManager) SaveSession(ctx context.Context, sid string, session models.Session, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sessions[sid] = sessionEntry{session: session, expiresAt: time.Now().Add(ttl)}
	m.log.Debugw("Session saved", "sid", sid, "userID", session.User.UserID, "ttl", ttl)

	return nil
}

func (m *InMemorySessionManager) GetSession(ctx context.Context, sid string) (*models.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, ok := m.sessions[sid]
	if !ok || time.Now().After(entry.expiresAt) {
		m.log.Debugw("Session not found", "sid", sid)
		return nil, storage.ErrSessionNotFound
	}

	session := entry.session
	return &session, nil
}

func (m *InMemorySessionManager) DeleteSession(ctx context.Context, sid string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.sessions, sid)

	return nil
}

func (m *InMemorySessionManager) DeleteAllUserSessions(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for sid, entry := range m.sessions {
		if entry.session.User.UserID == userID {
			delete(m.sessions, sid)
		}
	}

	return nil
}
