package wizard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/JonMunkholm/fileentity/internal/core"
	"github.com/redis/go-redis/v9"
)

// RedisStore keeps sessions as JSON strings that expire with the session.
// A sorted set indexes session ids by deadline and a hash remembers each
// session's temporary object, so the sweeper can still clean up uploads
// after Redis has expired the session itself.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

// RedisOption configures a RedisStore.
type RedisOption func(*RedisStore)

// WithKeyPrefix sets the key prefix. Default is "fileentity".
func WithKeyPrefix(prefix string) RedisOption {
	return func(s *RedisStore) {
		s.prefix = prefix
	}
}

// NewRedisStore returns a store using client.
//
//	store := NewRedisStore(
//	    redis.NewClient(&redis.Options{Addr: "localhost:6379"}),
//	    WithKeyPrefix("uploads"),
//	)
func NewRedisStore(client redis.UniversalClient, opts ...RedisOption) *RedisStore {
	s := &RedisStore{client: client, prefix: "fileentity"}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (r *RedisStore) sessionKey(id string) string {
	return r.prefix + ":session:" + id
}

func (r *RedisStore) expiryKey() string {
	return r.prefix + ":sessions:expiry"
}

func (r *RedisStore) tempKey() string {
	return r.prefix + ":sessions:temp"
}

func ttlFor(s *Session) time.Duration {
	ttl := time.Until(s.ExpiresAt)
	if ttl < time.Second {
		ttl = time.Second
	}
	return ttl
}

func (r *RedisStore) index(ctx context.Context, pipe redis.Pipeliner, s *Session) {
	pipe.ZAdd(ctx, r.expiryKey(), redis.Z{Score: float64(s.ExpiresAt.Unix()), Member: s.ID})
	if s.Upload.TempURI != "" {
		pipe.HSet(ctx, r.tempKey(), s.ID, s.Upload.TempURI)
	} else {
		pipe.HDel(ctx, r.tempKey(), s.ID)
	}
}

func (r *RedisStore) Create(ctx context.Context, s *Session) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	ok, err := r.client.SetNX(ctx, r.sessionKey(s.ID), data, ttlFor(s)).Result()
	if err != nil {
		return fmt.Errorf("redis setnx failed: %w", err)
	}
	if !ok {
		return fmt.Errorf("session %q exists: %w", s.ID, core.ErrConflict)
	}

	pipe := r.client.Pipeline()
	r.index(ctx, pipe, s)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis pipeline failed: %w", err)
	}
	return nil
}

func (r *RedisStore) Load(ctx context.Context, id string) (*Session, error) {
	data, err := r.client.Get(ctx, r.sessionKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, sessionNotFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	return &s, nil
}

// Update runs the version check and the write inside WATCH/MULTI so two
// concurrent submissions for one session cannot both succeed.
func (r *RedisStore) Update(ctx context.Context, s *Session, expectedVersion int64) error {
	key := r.sessionKey(s.ID)

	err := r.client.Watch(ctx, func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return sessionNotFound(s.ID)
		}
		if err != nil {
			return fmt.Errorf("redis get failed: %w", err)
		}

		var cur Session
		if err := json.Unmarshal(data, &cur); err != nil {
			return fmt.Errorf("unmarshal session: %w", err)
		}
		if cur.Version != expectedVersion {
			return versionConflict(s.ID, expectedVersion)
		}

		next := s.Clone()
		next.Version = expectedVersion + 1
		payload, err := json.Marshal(next)
		if err != nil {
			return fmt.Errorf("marshal session: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, ttlFor(next))
			r.index(ctx, pipe, next)
			return nil
		})
		return err
	}, key)

	if errors.Is(err, redis.TxFailedErr) {
		return versionConflict(s.ID, expectedVersion)
	}
	if err != nil {
		return err
	}
	s.Version = expectedVersion + 1
	return nil
}

func (r *RedisStore) Delete(ctx context.Context, id string) error {
	pipe := r.client.TxPipeline()
	pipe.Del(ctx, r.sessionKey(id))
	pipe.ZRem(ctx, r.expiryKey(), id)
	pipe.HDel(ctx, r.tempKey(), id)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func (r *RedisStore) Expired(ctx context.Context, now time.Time) ([]*Session, error) {
	ids, err := r.client.ZRangeByScore(ctx, r.expiryKey(), &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(now.Unix(), 10),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("redis zrangebyscore failed: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	uris, err := r.client.HMGet(ctx, r.tempKey(), ids...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis hmget failed: %w", err)
	}

	out := make([]*Session, len(ids))
	for i, id := range ids {
		s := &Session{ID: id}
		if uri, ok := uris[i].(string); ok {
			s.Upload.TempURI = uri
		}
		out[i] = s
	}
	return out, nil
}
