// Package cache holds the rendered-page cache used by the listing routes.
package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	DefaultPrefix = "yatube:page:"
	opTimeout     = 2 * time.Second
	resetBatch    = 200
)

// Storage implements fiber.Storage on top of Redis. Every key is namespaced
// with a prefix so Reset only drops page cache entries.
type Storage struct {
	rdb    *redis.Client
	prefix string
}

func NewStorage(rdb *redis.Client, prefix string) *Storage {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Storage{rdb: rdb, prefix: prefix}
}

func (s *Storage) Get(key string) ([]byte, error) {
	if key == "" {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	val, err := s.rdb.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	return val, err
}

func (s *Storage) Set(key string, val []byte, exp time.Duration) error {
	if key == "" || len(val) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	return s.rdb.Set(ctx, s.prefix+key, val, exp).Err()
}

func (s *Storage) Delete(key string) error {
	if key == "" {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	return s.rdb.Del(ctx, s.prefix+key).Err()
}

// Reset drops every cached page.
func (s *Storage) Reset() error {
	return s.Clear(context.Background())
}

// Clear is Reset with a caller supplied context. Keys are collected before
// any is deleted; deleting mid-scan lets the cursor skip entries.
func (s *Storage) Clear(ctx context.Context) error {
	var keys []string
	iter := s.rdb.Scan(ctx, 0, s.prefix+"*", resetBatch).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}

	for start := 0; start < len(keys); start += resetBatch {
		end := min(start+resetBatch, len(keys))
		if err := s.rdb.Del(ctx, keys[start:end]...).Err(); err != nil {
			return err
		}
	}
	return nil
}

// Close is a no-op: the Redis client is owned by the server.
func (s *Storage) Close() error {
	return nil
}
