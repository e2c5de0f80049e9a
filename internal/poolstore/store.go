// Package poolstore is the optional Redis-backed persistence layer for
// TaskPool.Restore (spec.md §4.6's "deserialize" path): it persists and
// reloads serialized pool-instance arguments so a ThrottledTaskPool can
// resume its throttling state across a restart of the driving process.
// Scheduler/task state itself remains out of scope per spec.md
// Non-goals, this store only ever holds the bytes a Restorable
// instance hands it, never a *coretask.Task.
//
// Grounded on the teacher's internal/queue.RedisQueue client
// construction and internal/queue.DLQ's key-naming convention.
package poolstore

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/maumercado/corosched/internal/config"
	"github.com/maumercado/corosched/internal/metrics"
)

// Store is a namespaced key/value façade over a Redis client, used to
// save and reload the serialized arguments behind a Restorable pool
// item.
type Store struct {
	client *redis.Client
	prefix string
}

// New connects to Redis per cfg and verifies the connection with a
// bounded Ping, same as the teacher's NewRedisQueue.
func New(cfg config.RedisConfig, prefix string) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		MaxRetries:   cfg.MaxRetries,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("poolstore: failed to connect to Redis: %w", err)
	}

	return &Store{client: client, prefix: prefix}, nil
}

func (s *Store) key(id string) string {
	return s.prefix + ":" + id
}

// Save persists data under id, with no expiry, pool instances are
// expected to be explicitly Deleted once their owning TaskPool no
// longer needs to survive a restart for that id.
func (s *Store) Save(ctx context.Context, id string, data []byte) error {
	start := time.Now()
	err := s.client.Set(ctx, s.key(id), data, 0).Err()
	metrics.RecordRedisOperation("save", time.Since(start).Seconds())
	if err != nil {
		metrics.RecordRedisError("save")
		return fmt.Errorf("poolstore: save %s: %w", id, err)
	}
	return nil
}

// Load retrieves the bytes previously saved under id. Returns
// redis.Nil-wrapped error (unwrap with errors.Is(err, redis.Nil)) if
// nothing was ever saved under that id.
func (s *Store) Load(ctx context.Context, id string) ([]byte, error) {
	start := time.Now()
	data, err := s.client.Get(ctx, s.key(id)).Bytes()
	metrics.RecordRedisOperation("load", time.Since(start).Seconds())
	if err != nil {
		if err != redis.Nil {
			metrics.RecordRedisError("load")
		}
		return nil, err
	}
	return data, nil
}

// Delete removes a persisted entry. No-op if it doesn't exist.
func (s *Store) Delete(ctx context.Context, id string) error {
	start := time.Now()
	err := s.client.Del(ctx, s.key(id)).Err()
	metrics.RecordRedisOperation("delete", time.Since(start).Seconds())
	if err != nil {
		metrics.RecordRedisError("delete")
		return fmt.Errorf("poolstore: delete %s: %w", id, err)
	}
	return nil
}

// Keys lists every id currently persisted under this Store's prefix, via
// SCAN rather than KEYS to avoid blocking the Redis server on a large
// keyspace.
func (s *Store) Keys(ctx context.Context) ([]string, error) {
	start := time.Now()
	var ids []string
	iter := s.client.Scan(ctx, 0, s.prefix+":*", 0).Iterator()
	for iter.Next(ctx) {
		ids = append(ids, iter.Val()[len(s.prefix)+1:])
	}
	err := iter.Err()
	metrics.RecordRedisOperation("keys", time.Since(start).Seconds())
	if err != nil {
		metrics.RecordRedisError("keys")
		return nil, fmt.Errorf("poolstore: keys: %w", err)
	}
	return ids, nil
}

// Close releases the underlying Redis client's connections.
func (s *Store) Close() error {
	return s.client.Close()
}
