package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"

	"github.com/ledastudio/tablehost/backend/internal/model/booking"
)

// redisStore persists sessions as sonic-encoded blobs keyed by session id,
// with the TTL carried on the key itself.
type redisStore struct {
	client *redis.Client
}

func redisKey(id string) string {
	return "session:" + id
}

func (s *redisStore) Get(ctx context.Context, id string) (*booking.Session, error) {
	blob, err := s.client.Get(ctx, redisKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var sess booking.Session
	if err := sonic.Unmarshal(blob, &sess); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", id, err)
	}
	return &sess, nil
}

func (s *redisStore) Set(ctx context.Context, sess *booking.Session, ttl time.Duration) error {
	blob, err := sonic.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", sess.ID, err)
	}
	if err := s.client.Set(ctx, redisKey(sess.ID), blob, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (s *redisStore) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, redisKey(id)).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

func (s *redisStore) Close() error {
	return s.client.Close()
}
