package progress

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
	apperrors "github.com/sweetpotato0/docarag/errors"
)

// RedisStore persists tasks in Redis so progress survives process restarts
// and is visible across replicas.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string        // key prefix for namespacing
	TTL      time.Duration // 0 means no expiration
}

// NewRedisStore creates a Redis-backed task store.
func NewRedisStore(config *RedisConfig) *RedisStore {
	if config == nil {
		config = &RedisConfig{Addr: "localhost:6379"}
	}
	if config.Prefix == "" {
		config.Prefix = "docarag:task:"
	}

	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})
	return &RedisStore{
		client: client,
		prefix: config.Prefix,
		ttl:    config.TTL,
	}
}

// NewRedisStoreWithClient wraps an existing client, mainly for tests.
func NewRedisStoreWithClient(client *redis.Client, prefix string, ttl time.Duration) *RedisStore {
	if prefix == "" {
		prefix = "docarag:task:"
	}
	return &RedisStore{client: client, prefix: prefix, ttl: ttl}
}

func (s *RedisStore) key(id string) string { return s.prefix + id }

func (s *RedisStore) setKey() string { return s.prefix + "all" }

// Put implements Store.
func (s *RedisStore) Put(ctx context.Context, task *Task) error {
	if task == nil || task.ID == "" {
		return fmt.Errorf("%w: task must have an id", apperrors.ErrInvalidInput)
	}

	data, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("marshal task: %w", err)
	}
	if err := s.client.Set(ctx, s.key(task.ID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("store task in redis: %w", err)
	}
	if err := s.client.SAdd(ctx, s.setKey(), task.ID).Err(); err != nil {
		return fmt.Errorf("register task id: %w", err)
	}
	return nil
}

// Get implements Store.
func (s *RedisStore) Get(ctx context.Context, id string) (*Task, error) {
	data, err := s.client.Get(ctx, s.key(id)).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, fmt.Errorf("task %s: %w", id, apperrors.ErrNotFound)
		}
		return nil, fmt.Errorf("get task from redis: %w", err)
	}

	var task Task
	if err := json.Unmarshal([]byte(data), &task); err != nil {
		return nil, fmt.Errorf("unmarshal task: %w", err)
	}
	return &task, nil
}

// List implements Store.
func (s *RedisStore) List(ctx context.Context) ([]*Task, error) {
	ids, err := s.client.SMembers(ctx, s.setKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("list task ids: %w", err)
	}

	tasks := make([]*Task, 0, len(ids))
	for _, id := range ids {
		task, err := s.Get(ctx, id)
		if err != nil {
			if apperrors.Is(err, apperrors.ErrNotFound) {
				// expired entry, drop it from the index
				s.client.SRem(ctx, s.setKey(), id)
				continue
			}
			return nil, err
		}
		tasks = append(tasks, task)
	}

	sort.Slice(tasks, func(i, j int) bool {
		if tasks[i].CreatedAt.Equal(tasks[j].CreatedAt) {
			return tasks[i].ID < tasks[j].ID
		}
		return tasks[i].CreatedAt.Before(tasks[j].CreatedAt)
	})
	return tasks, nil
}

// Delete implements Store.
func (s *RedisStore) Delete(ctx context.Context, id string) error {
	removed, err := s.client.Del(ctx, s.key(id)).Result()
	if err != nil {
		return fmt.Errorf("delete task from redis: %w", err)
	}
	if removed == 0 {
		return fmt.Errorf("task %s: %w", id, apperrors.ErrNotFound)
	}
	if err := s.client.SRem(ctx, s.setKey(), id).Err(); err != nil {
		return fmt.Errorf("deregister task id: %w", err)
	}
	return nil
}

// Close releases the underlying connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
