// Package ratelimit throttles requests per key. Two backends share the
// Allower contract: a Redis sorted-set sliding window and a fixed-window
// limiter built on ulule/limiter.
package ratelimit

import (
	"context"
	"time"
)

// Decision reports the outcome of a single Allow call.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	Reset     time.Time
}

// Allower records one event for key and decides whether it is within limits.
type Allower interface {
	Allow(ctx context.Context, key string) (Decision, error)
}
