package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/teeshirtminute/tm-autoreply/internal/domain"
	"github.com/teeshirtminute/tm-autoreply/internal/repository"
)

const defaultCounterKey = "autoreply:daily_counter"

// KEYS[1] counter hash; ARGV: date key, phone, last-at.
var incrementScript = goredis.NewScript(`
if redis.call("HGET", KEYS[1], "date_key") ~= ARGV[1] then
  redis.call("HSET", KEYS[1], "date_key", ARGV[1], "count", 0)
end
local count = redis.call("HINCRBY", KEYS[1], "count", 1)
redis.call("HSET", KEYS[1], "last_phone", ARGV[2], "last_at", ARGV[3])
return count
`)

var _ repository.CounterStore = (*RedisCounterStore)(nil)

// RedisCounterStore keeps the daily send counter in a Redis hash. Increment
// runs as one script, so concurrent sends never lose an update.
type RedisCounterStore struct {
	client *goredis.Client
	key    string
	loc    *time.Location
	script *goredis.Script
}

func NewRedisCounterStore(client *goredis.Client, loc *time.Location) (*RedisCounterStore, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if loc == nil {
		loc = time.Local
	}

	return &RedisCounterStore{
		client: client,
		key:    defaultCounterKey,
		loc:    loc,
		script: incrementScript,
	}, nil
}

func (s *RedisCounterStore) Increment(ctx context.Context, phoneNumber string, at time.Time) (*domain.DailySendCounter, error) {
	if s == nil || s.client == nil || s.script == nil {
		return nil, fmt.Errorf("counter store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	dateKey := domain.DateKey(at, s.loc)
	lastAt := at.UTC()
	count, err := s.script.Run(ctx, s.client, []string{s.key},
		dateKey,
		phoneNumber,
		lastAt.Format(time.RFC3339Nano),
	).Int()
	if err != nil {
		return nil, fmt.Errorf("failed to increment daily counter: %w", err)
	}

	return &domain.DailySendCounter{
		Count:     count,
		DateKey:   dateKey,
		LastPhone: phoneNumber,
		LastAt:    lastAt,
	}, nil
}

func (s *RedisCounterStore) Get(ctx context.Context) (*domain.DailySendCounter, error) {
	if s == nil || s.client == nil {
		return nil, fmt.Errorf("counter store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	fields, err := s.client.HGetAll(ctx, s.key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read daily counter: %w", err)
	}

	counter := &domain.DailySendCounter{
		DateKey:   fields["date_key"],
		LastPhone: fields["last_phone"],
	}
	if raw := fields["count"]; raw != "" {
		count, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid daily counter value %q: %w", raw, err)
		}
		counter.Count = count
	}
	if raw := fields["last_at"]; raw != "" {
		lastAt, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return nil, fmt.Errorf("invalid daily counter timestamp %q: %w", raw, err)
		}
		counter.LastAt = lastAt
	}
	return counter, nil
}
