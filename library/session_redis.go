package library

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"readingroom/domain"
)

// RedisSessionStore keeps the session in Redis so several terminals on one
// workstation share a login.
type RedisSessionStore struct {
	client *redis.Client
	prefix string
	logger *zap.Logger
}

// NewRedisSessionStore builds a Redis-backed session store. Keys live under prefix.
func NewRedisSessionStore(addr, password string, db int, prefix string, logger *zap.Logger) *RedisSessionStore {
	if prefix == "" {
		prefix = "readingroom:session:"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisSessionStore{
		client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
			DB:       db,
		}),
		prefix: prefix,
		logger: logger,
	}
}

func (s *RedisSessionStore) key(name string) string { return s.prefix + name }

func (s *RedisSessionStore) Get(ctx context.Context) (domain.Session, bool) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	vals, err := s.client.MGet(ctx, s.key(keyToken), s.key(keyRefresh), s.key(keyUser)).Result()
	if err != nil {
		s.logger.Warn("Failed to read session from redis", zap.Error(err))
		return domain.Session{}, false
	}
	str := func(v any) string {
		if v == nil {
			return ""
		}
		sv, _ := v.(string)
		return sv
	}
	token := str(vals[0])
	if token == "" {
		return domain.Session{}, false
	}
	return decodeSession(token, str(vals[1]), str(vals[2]), s.logger)
}

func (s *RedisSessionStore) Set(ctx context.Context, sess domain.Session) error {
	pairs, err := encodeSession(sess)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for k, v := range pairs {
			pipe.Set(ctx, s.key(k), v, 0)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (s *RedisSessionStore) Clear(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := s.client.Del(ctx, s.key(keyUser), s.key(keyToken), s.key(keyRefresh)).Err(); err != nil && err != redis.Nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

func (s *RedisSessionStore) Close() error { return s.client.Close() }
