package redis

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/goodtune/sitetime/internal/config"
	"github.com/goodtune/sitetime/internal/storage"
	"github.com/redis/go-redis/v9"
)

const (
	valuePrefix = "sitetime:kv:"
	indexSet    = "sitetime:index"
)

var (
	putScript    = redis.NewScript(putValueScript)
	deleteScript = redis.NewScript(deleteValueScript)
)

// Store implements the storage.Store interface using Redis
type Store struct {
	client *redis.Client
}

// Open creates a new Redis-backed storage instance
func Open(cfg config.RedisConfig) (*Store, error) {
	// Parse timeouts
	dialTimeout, err := time.ParseDuration(cfg.DialTimeout)
	if err != nil {
		return nil, fmt.Errorf("invalid dial_timeout: %w", err)
	}

	readTimeout, err := time.ParseDuration(cfg.ReadTimeout)
	if err != nil {
		return nil, fmt.Errorf("invalid read_timeout: %w", err)
	}

	writeTimeout, err := time.ParseDuration(cfg.WriteTimeout)
	if err != nil {
		return nil, fmt.Errorf("invalid write_timeout: %w", err)
	}

	// Determine address
	addr := cfg.Host
	if cfg.Port > 0 {
		addr = fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	}

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  dialTimeout,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	})

	// Ping to verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Store{client: client}, nil
}

// Close closes the Redis connection
func (s *Store) Close() error {
	return s.client.Close()
}

// Get returns the value stored under key
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := s.client.Get(ctx, valuePrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return value, nil
}

// Put writes value under key and indexes it
func (s *Store) Put(ctx context.Context, key string, value []byte) error {
	if value == nil {
		value = []byte{}
	}
	keys := []string{valuePrefix + key, indexSet}
	return putScript.Run(ctx, s.client, keys, key, value).Err()
}

// Delete removes key and its index entry
func (s *Store) Delete(ctx context.Context, key string) error {
	keys := []string{valuePrefix + key, indexSet}
	return deleteScript.Run(ctx, s.client, keys, key).Err()
}

// Keys lists indexed keys with the given prefix. Index entries whose value
// has disappeared (expired or deleted out of band) are dropped.
func (s *Store) Keys(ctx context.Context, prefix string) ([]string, error) {
	members, err := s.client.SMembers(ctx, indexSet).Result()
	if err != nil {
		return nil, err
	}

	candidates := make([]string, 0, len(members))
	for _, member := range members {
		if strings.HasPrefix(member, prefix) {
			candidates = append(candidates, member)
		}
	}
	if len(candidates) == 0 {
		return []string{}, nil
	}

	// Use pipeline to check existence in one round trip
	pipe := s.client.Pipeline()
	cmds := make([]*redis.IntCmd, len(candidates))
	for i, key := range candidates {
		cmds[i] = pipe.Exists(ctx, valuePrefix+key)
	}
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, err
	}

	keys := make([]string, 0, len(candidates))
	var stale []any
	for i, cmd := range cmds {
		if cmd.Val() > 0 {
			keys = append(keys, candidates[i])
		} else {
			stale = append(stale, candidates[i])
		}
	}
	if len(stale) > 0 {
		if err := s.client.SRem(ctx, indexSet, stale...).Err(); err != nil {
			return nil, fmt.Errorf("prune key index: %w", err)
		}
	}

	sort.Strings(keys)
	return keys, nil
}
