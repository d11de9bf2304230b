package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	DEFAULT_REDIS_KEY = "chat:messages"
	DEFAULT_REDIS_CAP = 10000
)

// redisCmdable is the subset of *redis.Client the store uses.
type redisCmdable interface {
	SAdd(ctx context.Context, key string, members ...interface{}) *redis.IntCmd
	RPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	LTrim(ctx context.Context, key string, start, stop int64) *redis.StatusCmd
	LRange(ctx context.Context, key string, start, stop int64) *redis.StringSliceCmd
	Ping(ctx context.Context) *redis.StatusCmd
}

// Redis keeps records as JSON in a capped list. Ids already seen are
// remembered in a companion set so a retried save is not appended twice.
type Redis struct {
	client redisCmdable
	closer func() error
	key    string
	maxLen int64
	log    zerolog.Logger
}

func OpenRedis(ctx context.Context, cfg Config, log zerolog.Logger) (*Redis, error) {
	if strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil, fmt.Errorf("redis address is required")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPass,
		DB:       cfg.RedisDB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	r := newRedis(client, cfg.RedisKey, cfg.RedisCap, log)
	r.closer = client.Close
	log.Info().Str("addr", cfg.RedisAddr).Str("key", r.key).Msg("redis store ready")
	return r, nil
}

func newRedis(client redisCmdable, key string, maxLen int64, log zerolog.Logger) *Redis {
	if strings.TrimSpace(key) == "" {
		key = DEFAULT_REDIS_KEY
	}
	if maxLen <= 0 {
		maxLen = DEFAULT_REDIS_CAP
	}
	return &Redis{client: client, key: key, maxLen: maxLen, log: log}
}

func (r *Redis) SaveMessage(ctx context.Context, rec Record) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	added, err := r.client.SAdd(ctx, r.key+":ids", rec.ID).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if added == 0 {
		return nil
	}
	if err := r.client.RPush(ctx, r.key, payload).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err := r.client.LTrim(ctx, r.key, -r.maxLen, -1).Err(); err != nil {
		r.log.Warn().Err(err).Msg("trim message list")
	}
	return nil
}

func (r *Redis) FetchLatest(ctx context.Context, limit int) ([]Record, error) {
	start := int64(0)
	if limit > 0 {
		start = -int64(limit)
	}
	values, err := r.client.LRange(ctx, r.key, start, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	records := make([]Record, 0, len(values))
	for _, v := range values {
		var rec Record
		if err := json.Unmarshal([]byte(v), &rec); err != nil {
			r.log.Warn().Err(err).Msg("skip undecodable record")
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

func (r *Redis) Health(ctx context.Context) bool {
	return r.client.Ping(ctx).Err() == nil
}

func (r *Redis) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer()
}
