package store

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound = errors.New("not found")
)

// Storage is the time-windowed key/value primitive shared by the rate
// limiter, DDoS guard and incident responder. Implementations must make
// IncrEx atomic: concurrent increments on the same key may never lose a
// count or reset an existing window's expiry.
type Storage interface {
	Get(ctx context.Context, key string, val any) error
	Set(ctx context.Context, key string, val any, expiresIn time.Duration) error
	Delete(ctx context.Context, key string) error
	Expire(ctx context.Context, key string, expiresAt time.Time) error
	Incr(ctx context.Context, key string, delta int64) (int64, error)
	// IncrEx increments key by delta and applies expiresIn only if the key
	// has no expiry yet, so the first increment of a window fixes its end.
	IncrEx(ctx context.Context, key string, delta int64, expiresIn time.Duration) (int64, error)
}
