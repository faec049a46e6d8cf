package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pocketwise/server/internal/agent/model"
	errx "github.com/pocketwise/server/internal/core/error"
	logx "github.com/pocketwise/server/pkg/logger"
)

// RedisStateStore checkpoints whole-thread state as one JSON document per
// thread key.
type RedisStateStore struct {
	rdb redis.Cmdable
	ttl time.Duration
}

func NewRedisStateStore(rdb redis.Cmdable, ttl time.Duration) *RedisStateStore {
	return &RedisStateStore{rdb: rdb, ttl: ttl}
}

func (r *RedisStateStore) stateKey(threadID string) string {
	return fmt.Sprintf("thread:%s:state", threadID)
}

// Load returns the checkpointed state for a thread, or nil when the thread
// has never been saved.
func (r *RedisStateStore) Load(ctx context.Context, threadID string) (*model.ConversationState, error) {
	key := r.stateKey(threadID)

	raw, err := r.rdb.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		logx.Error().Err(err).Str("key", key).Msg("failed to load thread state from redis")
		return nil, errx.WrapRedis(err)
	}

	var state model.ConversationState
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		logx.Error().Err(err).Str("thread_id", threadID).Msg("failed to unmarshal thread state")
		return nil, fmt.Errorf("unmarshal thread state: %w", err)
	}
	return &state, nil
}

// Save overwrites the checkpoint for a thread and extends its TTL on touch.
func (r *RedisStateStore) Save(ctx context.Context, threadID string, state *model.ConversationState) error {
	b, err := json.Marshal(state)
	if err != nil {
		logx.Error().Err(err).Str("thread_id", threadID).Msg("failed to marshal thread state")
		return fmt.Errorf("marshal thread state: %w", err)
	}
	key := r.stateKey(threadID)

	if err := r.rdb.Set(ctx, key, b, r.ttl).Err(); err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to save thread state to redis")
		return errx.WrapRedis(err)
	}
	return nil
}

// Delete removes a thread's checkpoint.
func (r *RedisStateStore) Delete(ctx context.Context, threadID string) error {
	key := r.stateKey(threadID)
	if err := r.rdb.Del(ctx, key).Err(); err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to delete thread state from redis")
		return errx.WrapRedis(err)
	}
	return nil
}

var _ model.StateStore = (*RedisStateStore)(nil)
