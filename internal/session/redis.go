package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	redisKeyPrefix = "ari:session:"
	redisIndexKey  = "ari:sessions"
)

// RedisStore keeps sessions as JSON blobs so a restart does not lose
// in-flight intakes.
type RedisStore struct {
	redis *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{redis: client}
}

func (s *RedisStore) key(chatID int64) string {
	return fmt.Sprintf("%s%d", redisKeyPrefix, chatID)
}

func (s *RedisStore) Get(ctx context.Context, chatID int64) (*Session, error) {
	data, err := s.redis.Get(ctx, s.key(chatID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get session %d: %w", chatID, err)
	}

	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("decode session %d: %w", chatID, err)
	}
	return &sess, nil
}

func (s *RedisStore) Save(ctx context.Context, sess *Session) error {
	c := sess.Clone()
	c.UpdatedAt = time.Now()

	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode session %d: %w", sess.ChatID, err)
	}

	pipe := s.redis.TxPipeline()
	pipe.Set(ctx, s.key(sess.ChatID), data, 0)
	pipe.SAdd(ctx, redisIndexKey, sess.ChatID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis save session %d: %w", sess.ChatID, err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, chatID int64) error {
	pipe := s.redis.TxPipeline()
	pipe.Del(ctx, s.key(chatID))
	pipe.SRem(ctx, redisIndexKey, chatID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis delete session %d: %w", chatID, err)
	}
	return nil
}

func (s *RedisStore) Len(ctx context.Context) (int, error) {
	n, err := s.redis.SCard(ctx, redisIndexKey).Result()
	if err != nil {
		return 0, fmt.Errorf("redis count sessions: %w", err)
	}
	return int(n), nil
}
