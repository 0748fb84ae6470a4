package storage

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	redisDialTimeout  = 3 * time.Second
	redisReadTimeout  = 2 * time.Second
	redisWriteTimeout = 2 * time.Second

	// streamField is the single field each stream entry stores its
	// JSON payload under.
	streamField = "album"

	keyPrefix = "albumd:"
)

// NewRedisClient parses a Redis URL and returns a verified client.
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("storage: invalid redis URL: %w", err)
	}
	opts.DialTimeout = redisDialTimeout
	opts.ReadTimeout = redisReadTimeout
	opts.WriteTimeout = redisWriteTimeout

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("storage: redis ping failed: %w", err)
	}
	log.Printf("storage: connected to cache store at %s", opts.Addr)
	return client, nil
}

// RedisStream implements album.RecencyStream on a Redis stream under a fixed,
// prefix-namespaced key. The client is borrowed.
type RedisStream struct {
	client *redis.Client
	key    string
}

// NewRedisStream wraps the named stream; name is namespaced under the
// application prefix.
func NewRedisStream(client *redis.Client, name string) *RedisStream {
	return &RedisStream{client: client, key: keyPrefix + name}
}

// Key returns the fully namespaced stream key.
func (s *RedisStream) Key() string { return s.key }

// Add appends a payload and returns the generated entry id.
func (s *RedisStream) Add(ctx context.Context, payload []byte) (string, error) {
	id, err := s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: s.key,
		Values: map[string]interface{}{streamField: payload},
	}).Result()
	if err != nil {
		return "", fmt.Errorf("storage: stream add failed: %w", err)
	}
	return id, nil
}

// Remove deletes an entry by id. Removing an absent entry is not an error;
// XDEL simply reports zero deletions.
func (s *RedisStream) Remove(ctx context.Context, entryID string) error {
	if err := s.client.XDel(ctx, s.key, entryID).Err(); err != nil {
		return fmt.Errorf("storage: stream remove failed: %w", err)
	}
	return nil
}

// Recent returns up to count payloads in reverse chronological order.
func (s *RedisStream) Recent(ctx context.Context, count int64) ([][]byte, error) {
	messages, err := s.client.XRevRangeN(ctx, s.key, "+", "-", count).Result()
	if err != nil {
		return nil, fmt.Errorf("storage: stream range failed: %w", err)
	}

	payloads := make([][]byte, 0, len(messages))
	for _, msg := range messages {
		value, ok := msg.Values[streamField]
		if !ok {
			log.Printf("storage: stream entry %s has no %s field, skipping", msg.ID, streamField)
			continue
		}
		switch v := value.(type) {
		case string:
			payloads = append(payloads, []byte(v))
		case []byte:
			payloads = append(payloads, v)
		default:
			log.Printf("storage: stream entry %s has unexpected payload type %T, skipping", msg.ID, value)
		}
	}
	return payloads, nil
}
