package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/lfhwnqe/gen-novel-gateway/internal/models"
	"github.com/lfhwnqe/gen-novel-gateway/internal/storage"
)

const sessionKeyPrefix = "session:"

type SessionRepository struct {
	client *redis.Client
}

func NewSessionRepository(client *redis.Client) *SessionRepository {
	return &SessionRepository{client: client}
}

func (r *SessionRepository) SaveSession(ctx context.Context, sid string, session models.Session, ttl time.Duration) error {
	payload, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	if err := r.client.Set(ctx, sessionKey(sid), payload, ttl).Err(); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (r *SessionRepository) GetSession(ctx context.Context, sid string) (*models.Session, error) {
	payload, err := r.client.Get(ctx, sessionKey(sid)).Bytes()
	if err == redis.Nil {
		return nil, storage.ErrSessionNotFound
	} else if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}

	var session models.Session
	if err := json.Unmarshal(payload, &session); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	return &session, nil
}

func (r *SessionRepository) DeleteSession(ctx context.Context, sid string) error {
	if err := r.client.Del(ctx, sessionKey(sid)).Err(); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (r *SessionRepository) DeleteAllUserSessions(ctx context.Context, userID string) error {
	iter := r.client.Scan(ctx, 0, sessionKeyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()

		payload, err := r.client.Get(ctx, key).Bytes()
		if err == redis.Nil {
			continue
		} else if err != nil {
			return fmt.Errorf("get session %s: %w", key, err)
		}

		var session models.Session
		if err := json.Unmarshal(payload, &session); err != nil {
			continue
		}
		if session.User.UserID != userID {
			continue
		}
		if err := r.client.Del(ctx, key).Err(); err != nil {
			return fmt.Errorf("delete session %s: %w", key, err)
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("scan sessions: %w", err)
	}
	return nil
}

func sessionKey(sid string) string {
	return sessionKeyPrefix + sid
}
