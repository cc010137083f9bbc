package widget

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	redisKeyPrefix  = "seemenu:widget:"
	redisMaxRetries = 5
)

// ErrStoreContention is returned when an update keeps losing the optimistic
// lock to concurrent writers.
var ErrStoreContention = errors.New("widget state changed concurrently, giving up")

// RedisStore shares widget state between server instances.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

// NewRedisClient parses url and checks the server answers.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

func redisKey(id string) string {
	return redisKeyPrefix + id
}

// redisFileKey holds the photo bytes of one selection, kept apart from the
// state record so Update never moves them.
func redisFileKey(id string, selection int64) string {
	return redisKey(id) + ":file:" + strconv.FormatInt(selection, 10)
}

// Health pings the Redis server.
func (r *RedisStore) Health(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Load returns the state together with the selected photo's bytes. A state
// whose bytes have expired is returned without a file.
func (r *RedisStore) Load(ctx context.Context, id string) (*State, error) {
	s, err := r.get(ctx, r.client, redisKey(id))
	if err != nil || s.File == nil {
		return s, err
	}

	data, err := r.client.Get(ctx, redisFileKey(id, s.Selection)).Bytes()
	if errors.Is(err, redis.Nil) {
		s.File = nil
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load menu photo: %w", err)
	}
	file := *s.File
	file.Data = data
	s.File = &file
	return s, nil
}

func (r *RedisStore) get(ctx context.Context, c redis.Cmdable, key string) (*State, error) {
	raw, err := c.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return &State{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load widget state: %w", err)
	}

	var s State
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("failed to decode widget state: %w", err)
	}
	return &s, nil
}

// Update uses WATCH/MULTI so a concurrent writer forces a retry instead of
// being overwritten. fn sees the state without photo bytes; the bytes are
// written only when fn swaps in a new file.
func (r *RedisStore) Update(ctx context.Context, id string, fn func(*State) error) error {
	key := redisKey(id)

	txf := func(tx *redis.Tx) error {
		s, err := r.get(ctx, tx, key)
		if err != nil {
			return err
		}
		prevFile, prevSelection := s.File, s.Selection

		if err := fn(s); err != nil {
			return err
		}
		s.UpdatedAt = time.Now()

		raw, err := json.Marshal(s)
		if err != nil {
			return fmt.Errorf("failed to encode widget state: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			switch {
			case s.File != prevFile:
				if prevFile != nil {
					pipe.Del(ctx, redisFileKey(id, prevSelection))
				}
				if s.File != nil {
					pipe.Set(ctx, redisFileKey(id, s.Selection), s.File.Data, r.ttl)
				}
			case s.File != nil:
				pipe.Expire(ctx, redisFileKey(id, s.Selection), r.ttl)
			}
			pipe.Set(ctx, key, raw, r.ttl)
			return nil
		})
		return err
	}

	for i := 0; i < redisMaxRetries; i++ {
		err := r.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return ErrStoreContention
}
