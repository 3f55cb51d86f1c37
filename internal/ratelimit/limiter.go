package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/wardenhq/warden/internal/store"
)

// Result is the outcome of one limit check.
type Result struct {
	Allowed   bool
	Limit     int64
	Remaining int64
	ResetTime time.Time
	Total     int64
}

type Limiter struct {
	storage store.Storage
	now     func() time.Time
}

func NewLimiter(storage store.Storage) *Limiter {
	return &Limiter{
		storage: storage,
		now:     time.Now,
	}
}

// Check increments the caller's window counter and evaluates it against the
// policy. If the counter store is unreachable the request is allowed:
// availability outranks strict enforcement.
func (l *Limiter) Check(ctx context.Context, policy Policy, identity string) (Result, error) {
	return l.check(ctx, policy, identity, policy.MaxRequests)
}

func (l *Limiter) check(ctx context.Context, policy Policy, identity string, limit int64) (Result, error) {
	windowSeconds := int64(policy.Window / time.Second)
	windowIndex := l.now().Unix() / windowSeconds
	key := fmt.Sprintf("%s:%s:%d", policy.ID, identity, windowIndex)

	count, err := l.storage.IncrEx(ctx, key, 1, policy.Window)
	if err != nil {
		slog.Warn("rate limit store unreachable, failing open", "policy", policy.ID, "error", err)
		return Result{Allowed: true, Limit: limit, Remaining: limit}, err
	}

	remaining := limit - count
	if remaining < 0 {
		remaining = 0
	}
	return Result{
		Allowed:   count <= limit,
		Limit:     limit,
		Remaining: remaining,
		ResetTime: time.Unix((windowIndex+1)*windowSeconds, 0),
		Total:     count,
	}, nil
}

// TierSource resolves an identity to its account tier.
type TierSource interface {
	Tier(ctx context.Context, identity string) (Tier, error)
}

// AdaptiveLimiter scales policy thresholds by account tier, falling back to
// the free tier when the lookup fails.
type AdaptiveLimiter struct {
	*Limiter
	tiers TierSource
}

func NewAdaptiveLimiter(limiter *Limiter, tiers TierSource) *AdaptiveLimiter {
	return &AdaptiveLimiter{Limiter: limiter, tiers: tiers}
}

func (l *AdaptiveLimiter) Check(ctx context.Context, policy Policy, identity string) (Result, error) {
	tier := TierFree
	if l.tiers != nil && identity != "" {
		resolved, err := l.tiers.Tier(ctx, identity)
		if err == nil {
			if _, known := tierMultipliers[resolved]; known {
				tier = resolved
			}
		}
	}
	return l.check(ctx, policy, identity, policy.MaxRequests*tierMultipliers[tier])
}
