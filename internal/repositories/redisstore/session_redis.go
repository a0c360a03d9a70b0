package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/evolvere-edu/evolvere-api/internal/models"
	"github.com/evolvere-edu/evolvere-api/internal/repositories"
)

const (
	sessionPrefix     = "session:"
	userSessionPrefix = "user_sessions:"
)

// SessionRedis stores sessions as JSON values whose redis TTL matches the
// session expiry. A per-user set indexes tokens for bulk logout.
type SessionRedis struct {
	client *redis.Client
	now    func() time.Time
}

func NewSessionRedis(client *redis.Client) repositories.SessionRepository {
	return &SessionRedis{client: client, now: time.Now}
}

func sessionKey(token string) string {
	return sessionPrefix + token
}

func userKey(userID uint) string {
	return fmt.Sprintf("%s%d", userSessionPrefix, userID)
}

func (s *SessionRedis) ttl(expiresAt time.Time) time.Duration {
	ttl := expiresAt.Sub(s.now())
	if ttl < time.Second {
		ttl = time.Second
	}
	return ttl
}

func (s *SessionRedis) Create(ctx context.Context, session *models.Session) error {
	if session.CreatedAt.IsZero() {
		session.CreatedAt = s.now()
	}
	data, err := json.Marshal(storedSession{Session: *session, Token: session.Token})
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	ttl := s.ttl(session.ExpiresAt)
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, sessionKey(session.Token), data, ttl)
	pipe.SAdd(ctx, userKey(session.UserID), session.Token)
	pipe.Expire(ctx, userKey(session.UserID), ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}
	return nil
}

// storedSession keeps the token, which models.Session hides from JSON.
type storedSession struct {
	models.Session
	Token string `json:"token"`
}

func (s *SessionRedis) Get(ctx context.Context, token string) (*models.Session, error) {
	data, err := s.client.Get(ctx, sessionKey(token)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("get session: %w", repositories.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	var stored storedSession
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	session := stored.Session
	session.Token = stored.Token
	return &session, nil
}

func (s *SessionRedis) Touch(ctx context.Context, token string, expiresAt time.Time) error {
	session, err := s.Get(ctx, token)
	if err != nil {
		return err
	}
	session.ExpiresAt = expiresAt
	return s.Create(ctx, session)
}

func (s *SessionRedis) Delete(ctx context.Context, token string) error {
	session, err := s.Get(ctx, token)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil
		}
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, sessionKey(token))
	pipe.SRem(ctx, userKey(session.UserID), token)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

func (s *SessionRedis) DeleteByUser(ctx context.Context, userID uint) error {
	tokens, err := s.client.SMembers(ctx, userKey(userID)).Result()
	if err != nil {
		return fmt.Errorf("failed to list user sessions: %w", err)
	}

	keys := make([]string, 0, len(tokens)+1)
	for _, token := range tokens {
		keys = append(keys, sessionKey(token))
	}
	keys = append(keys, userKey(userID))
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to delete user sessions: %w", err)
	}
	return nil
}

// DeleteExpired is a no-op; redis expires keys on its own.
func (s *SessionRedis) DeleteExpired(context.Context, time.Time) (int64, error) {
	return 0, nil
}
