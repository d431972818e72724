// Package revocation keeps a denylist of access-token IDs whose sessions
// were logged out before the token expired. Entries live in redis with a
// TTL equal to the token's remaining lifetime, so the list stays small.
package revocation

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "revoked:jti:"

type Store struct {
	redisdb *redis.Client
}

type Config struct {
	Addr     string
	Password string
	DB       int
}

func New(cfg Config) *Store {
	redisdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})

	return &Store{redisdb: redisdb}
}

// Ping checks redis connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.redisdb.Ping(ctx).Err()
}

func (s *Store) Close() error {
	return s.redisdb.Close()
}

// Revoke marks a token id as logged out until it would have expired anyway.
func (s *Store) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	if ttl <= 0 {
		// already expired, nothing to deny
		return nil
	}

	return s.redisdb.Set(ctx, keyPrefix+jti, 1, ttl).Err()
}

// IsRevoked reports whether a token id is on the denylist. Errors are
// returned to the caller, who decides whether to degrade open or closed.
func (s *Store) IsRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := s.redisdb.Exists(ctx, keyPrefix+jti).Result()

	if err != nil {
		return false, err
	}

	return n > 0, nil
}
