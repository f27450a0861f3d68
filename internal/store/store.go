// Package store persists sessions behind a get/set/delete interface with TTL.
// Two drivers exist: an in-memory map for tests and single-node runs, and
// redis for everything else.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ledastudio/tablehost/backend/internal/model/booking"
)

var (
	ErrInvalidConfig    = errors.New("invalid store configuration")
	ErrInvalidStoreType = errors.New("unknown store type")
)

// Store is the session persistence capability.
type Store interface {
	// Get retrieves a session. A missing or expired key returns (nil, nil).
	Get(ctx context.Context, id string) (*booking.Session, error)

	// Set persists a session with the given TTL.
	Set(ctx context.Context, sess *booking.Session, ttl time.Duration) error

	// Delete removes a session.
	Delete(ctx context.Context, id string) error

	// Close releases driver resources.
	Close() error
}

// Type selects the driver.
type Type string

const (
	TypeMemory Type = "memory"
	TypeRedis  Type = "redis"
)

// Option configures a store.
type Option func(*storeConfig)

type storeConfig struct {
	redisClient *redis.Client
}

// WithRedisClient sets the client for the redis driver.
func WithRedisClient(client *redis.Client) Option {
	return func(c *storeConfig) {
		c.redisClient = client
	}
}

// New creates a Store of the given type.
func New(storeType Type, opts ...Option) (Store, error) {
	cfg := &storeConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	switch storeType {
	case TypeMemory:
		return newMemoryStore(), nil
	case TypeRedis:
		if cfg.redisClient == nil {
			return nil, ErrInvalidConfig
		}
		return &redisStore{client: cfg.redisClient}, nil
	default:
		return nil, ErrInvalidStoreType
	}
}
