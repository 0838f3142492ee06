package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var ErrInvalidSession = errors.New("invalid session")

// Authenticator resolves a bearer token to a profile id.
type Authenticator interface {
	Resolve(ctx context.Context, token string) (string, error)
}

// TokenStore keeps session tokens in redis with a TTL.
type TokenStore struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewTokenStore connects to redis. A failed ping is logged, not fatal: the
// service degrades to rejecting all sessions rather than refusing to start.
func NewTokenStore(redisURL string, ttl time.Duration, logger *zap.Logger) *TokenStore {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		opts = &redis.Options{Addr: redisURL}
	}
	client := redis.NewClient(opts)

	if err := client.Ping(context.Background()).Err(); err != nil {
		logger.Warn("redis connection failed at startup", zap.Error(err))
	} else {
		logger.Info("redis connected", zap.String("addr", opts.Addr))
	}

	return &TokenStore{client: client, ttl: ttl, logger: logger}
}

// CreateSession issues a fresh token for the profile.
func (s *TokenStore) CreateSession(ctx context.Context, profileID string) (string, error) {
	token, err := newSessionKey()
	if err != nil {
		return "", fmt.Errorf("generate session key: %w", err)
	}
	if err := s.client.Set(ctx, sessionKey(token), profileID, s.ttl).Err(); err != nil {
		return "", fmt.Errorf("store session: %w", err)
	}
	return token, nil
}

// Resolve maps a token back to its profile id.
func (s *TokenStore) Resolve(ctx context.Context, token string) (string, error) {
	profileID, err := s.client.Get(ctx, sessionKey(token)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrInvalidSession
	}
	if err != nil {
		return "", err
	}
	return profileID, nil
}

// RevokeSession deletes a token.
func (s *TokenStore) RevokeSession(ctx context.Context, token string) error {
	return s.client.Del(ctx, sessionKey(token)).Err()
}

// Close releases the redis client.
func (s *TokenStore) Close() error {
	return s.client.Close()
}

func sessionKey(token string) string {
	return "session:" + token
}

func newSessionKey() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
