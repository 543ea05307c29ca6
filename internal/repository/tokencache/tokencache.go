// Package tokencache keeps live session tokens in redis.
//
// A token is live while its key exists. Keys are sha256 of the token, so the store never holds
// a usable credential, and expire together with the token itself.
package tokencache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nkiryanov/taskauth/internal/apperrors"
	"github.com/nkiryanov/taskauth/internal/models"
)

const (
	defaultKeyPrefix = "taskauth"

	accessKind  = "at"
	refreshKind = "rt"
)

type Store struct {
	client redis.Cmdable
	prefix string

	now func() time.Time
}

type Option func(*Store)

// Key prefix, "taskauth" by default
func WithKeyPrefix(prefix string) Option {
	return func(s *Store) { s.prefix = prefix }
}

// Clock used to compute key lifetimes
func WithNow(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func New(client redis.Cmdable, opts ...Option) *Store {
	s := &Store{
		client: client,
		prefix: defaultKeyPrefix,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) key(kind string, token string) string {
	sum := sha256.Sum256([]byte(token))
	return s.prefix + ":" + kind + ":" + hex.EncodeToString(sum[:])
}

// Save marks both tokens live until they expire
func (s *Store) Save(ctx context.Context, pair models.JWTPair) error {
	now := s.now()
	access, refresh := pair.Access(), pair.Refresh()

	accessTTL := access.ExpiresAt().Sub(now)
	refreshTTL := refresh.ExpiresAt().Sub(now)
	if accessTTL <= 0 || refreshTTL <= 0 {
		return fmt.Errorf("cache error: %w: token pair is already expired", apperrors.ErrValidation)
	}

	subject := access.Subject().String()

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.key(accessKind, access.Encoded()), subject, accessTTL)
	pipe.Set(ctx, s.key(refreshKind, refresh.Encoded()), subject, refreshTTL)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("cache error: %w", err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, pair models.JWTPair) error {
	err := s.client.Del(ctx,
		s.key(accessKind, pair.Access().Encoded()),
		s.key(refreshKind, pair.Refresh().Encoded()),
	).Err()
	if err != nil {
		return fmt.Errorf("cache error: %w", err)
	}
	return nil
}

func (s *Store) RefreshTokenExists(ctx context.Context, refresh string) (bool, error) {
	return s.exists(ctx, s.key(refreshKind, refresh))
}

func (s *Store) AccessTokenExists(ctx context.Context, access string) (bool, error) {
	return s.exists(ctx, s.key(accessKind, access))
}

func (s *Store) exists(ctx context.Context, key string) (bool, error) {
	n, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("cache error: %w", err)
	}
	return n == 1, nil
}
