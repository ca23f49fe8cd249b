package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	limiter "github.com/ulule/limiter/v3"
	limiterredis "github.com/ulule/limiter/v3/drivers/store/redis"
)

// FixedWindow adapts ulule/limiter to the Allower contract.
type FixedWindow struct {
	Limiter *limiter.Limiter
}

// NewFixedWindow builds a Redis-backed limiter from a formatted rate such as "120-M".
func NewFixedWindow(client *redis.Client, prefix, formatted string) (FixedWindow, error) {
	rate, err := limiter.NewRateFromFormatted(formatted)
	if err != nil {
		return FixedWindow{}, fmt.Errorf("ratelimit: parse rate %q: %w", formatted, err)
	}
	store, err := limiterredis.NewStoreWithOptions(client, limiter.StoreOptions{Prefix: prefix})
	if err != nil {
		return FixedWindow{}, fmt.Errorf("ratelimit: redis store: %w", err)
	}
	return FixedWindow{Limiter: limiter.New(store, rate)}, nil
}

// Allow implements Allower.
func (f FixedWindow) Allow(ctx context.Context, key string) (Decision, error) {
	if f.Limiter == nil {
		return Decision{Allowed: true}, nil
	}
	res, err := f.Limiter.Get(ctx, key)
	if err != nil {
		return Decision{}, err
	}
	return Decision{
		Allowed:   !res.Reached,
		Limit:     int(res.Limit),
		Remaining: int(res.Remaining),
		Reset:     time.Unix(res.Reset, 0),
	}, nil
}
