package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/Little-Star888/agenttask/internal/model"
)

const (
	// DefaultRedisPrefix namespaces every key written by RedisStore.
	DefaultRedisPrefix = "agenttask"

	maxUpdateRetries = 10
)

// Compile-time interface satisfaction check.
var _ Store = (*RedisStore)(nil)

// RedisStore implements Store on Redis. Each task is one JSON string key;
// a hash of summaries serves listing without decoding steps. Both are always
// written in the same MULTI/EXEC block.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(ctx context.Context, opts *redis.Options, prefix string) (*RedisStore, error) {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &RedisStore{client: client, prefix: prefix}, nil
}

// Close closes the Redis client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) taskKey(id string) string {
	return s.prefix + ":task:" + id
}

func (s *RedisStore) summariesKey() string {
	return s.prefix + ":summaries"
}

// SaveTask creates or overwrites a task definition. Overwrites run in a
// WATCHed transaction so the creation time of the record being replaced is
// carried over even under concurrent writers.
func (s *RedisStore) SaveTask(ctx context.Context, name string, cfg model.TaskConfig, id string) (*model.Task, error) {
	cfg, _, err := prepareSave(name, cfg)
	if err != nil {
		return nil, err
	}

	if id != "" {
		t, err := s.overwrite(ctx, id, name, cfg)
		if err == nil {
			return t, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
	}

	ts := now()
	t := &model.Task{ID: model.NewTaskID(), Name: name, Config: cfg, CreatedAt: ts, UpdatedAt: ts}
	rec, sum, err := encodeRecord(t)
	if err != nil {
		return nil, err
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.taskKey(t.ID), rec, 0)
		pipe.HSet(ctx, s.summariesKey(), t.ID, sum)
		return nil
	})
	if err != nil {
		return nil, storageErr("insert task", err)
	}
	return t, nil
}

func (s *RedisStore) overwrite(ctx context.Context, id, name string, cfg model.TaskConfig) (*model.Task, error) {
	key := s.taskKey(id)

	for range maxUpdateRetries {
		var saved *model.Task
		err := s.client.Watch(ctx, func(tx *redis.Tx) error {
			raw, err := tx.Get(ctx, key).Bytes()
			if errors.Is(err, redis.Nil) {
				return ErrNotFound
			}
			if err != nil {
				return err
			}
			var prev model.Task
			if err := json.Unmarshal(raw, &prev); err != nil {
				return fmt.Errorf("decode task: %w", err)
			}

			t := &model.Task{ID: id, Name: name, Config: cfg, CreatedAt: prev.CreatedAt, UpdatedAt: now()}
			rec, sum, err := encodeRecord(t)
			if err != nil {
				return err
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, rec, 0)
				pipe.HSet(ctx, s.summariesKey(), id, sum)
				return nil
			})
			if err == nil {
				saved = t
			}
			return err
		}, key)

		switch {
		case err == nil:
			return saved, nil
		case errors.Is(err, redis.TxFailedErr):
			continue
		case errors.Is(err, ErrNotFound):
			return nil, ErrNotFound
		default:
			return nil, storageErr("update task", err)
		}
	}
	return nil, storageErr("update task", fmt.Errorf("task %s: too many concurrent writers", id))
}

// GetTask retrieves a task by ID.
func (s *RedisStore) GetTask(ctx context.Context, id string) (*model.Task, error) {
	raw, err := s.client.Get(ctx, s.taskKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, storageErr("get task", err)
	}
	t := &model.Task{}
	if err := json.Unmarshal(raw, t); err != nil {
		return nil, storageErr("decode task", err)
	}
	return t, nil
}

// ListTasks returns task summaries, most recently updated first.
func (s *RedisStore) ListTasks(ctx context.Context) ([]model.TaskSummary, error) {
	all, err := s.client.HGetAll(ctx, s.summariesKey()).Result()
	if err != nil {
		return nil, storageErr("list tasks", err)
	}

	summaries := make([]model.TaskSummary, 0, len(all))
	for _, raw := range all {
		var ts model.TaskSummary
		if err := json.Unmarshal([]byte(raw), &ts); err != nil {
			return nil, storageErr("decode summary", err)
		}
		summaries = append(summaries, ts)
	}
	sortSummaries(summaries)
	return summaries, nil
}

// DeleteTask removes a task by ID.
func (s *RedisStore) DeleteTask(ctx context.Context, id string) error {
	var del *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		del = pipe.Del(ctx, s.taskKey(id))
		pipe.HDel(ctx, s.summariesKey(), id)
		return nil
	})
	if err != nil {
		return storageErr("delete task", err)
	}
	if del.Val() == 0 {
		return ErrNotFound
	}
	return nil
}

func encodeRecord(t *model.Task) (rec, sum []byte, err error) {
	if rec, err = json.Marshal(t); err != nil {
		return nil, nil, fmt.Errorf("encode task: %w", err)
	}
	if sum, err = json.Marshal(t.Summary()); err != nil {
		return nil, nil, fmt.Errorf("encode summary: %w", err)
	}
	return rec, sum, nil
}
