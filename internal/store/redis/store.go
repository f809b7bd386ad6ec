// Package redis is a Redis-backed second tier for the anchor embedding cache.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/crimson-sun/anchorsense/internal/model"
)

const keyPrefix = "anchorsense:anchors:"

// DefaultTTL is how long anchor embeddings stay in Redis.
const DefaultTTL = 7 * 24 * time.Hour

// Store keeps anchor embeddings in Redis as JSON under keyPrefix+key.
type Store struct {
	rdb goredis.Cmdable
	ttl time.Duration
}

// New creates a Store on rdb. A non-positive ttl uses DefaultTTL.
func New(rdb goredis.Cmdable, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{rdb: rdb, ttl: ttl}
}

// Connect parses a redis:// URL and returns a client.
func Connect(redisURL string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("redis: parse URL: %w", err)
	}
	return goredis.NewClient(opts), nil
}

func (s *Store) Get(ctx context.Context, key string) (*model.AnchorEmbeddings, bool, error) {
	data, err := s.rdb.Get(ctx, keyPrefix+key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis: get anchors: %w", err)
	}
	var emb model.AnchorEmbeddings
	if err := json.Unmarshal(data, &emb); err != nil {
		return nil, false, fmt.Errorf("redis: decode anchors: %w", err)
	}
	return &emb, true, nil
}

func (s *Store) Set(ctx context.Context, key string, emb *model.AnchorEmbeddings) error {
	data, err := json.Marshal(emb)
	if err != nil {
		return fmt.Errorf("redis: encode anchors: %w", err)
	}
	if err := s.rdb.Set(ctx, keyPrefix+key, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis: set anchors: %w", err)
	}
	return nil
}

