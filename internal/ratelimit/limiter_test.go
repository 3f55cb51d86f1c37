package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/wardenhq/warden/internal/store"
)

func newTestLimiter() *Limiter {
	return NewLimiter(store.NewMemoryStorage())
}

func TestCheckCountsWithinWindow(t *testing.T) {
	ctx := context.Background()
	limiter := newTestLimiter()
	policy := Policy{ID: "test", Window: time.Minute, MaxRequests: 5}

	for i := int64(1); i <= 5; i++ {
		result, err := limiter.Check(ctx, policy, "203.0.113.7")
		if err != nil {
			t.Fatal(err)
		}
		if !result.Allowed {
			t.Errorf("request %d denied under limit", i)
		}
		if result.Total != i {
			t.Errorf("request %d: total = %d", i, result.Total)
		}
		if result.Remaining != 5-i {
			t.Errorf("request %d: remaining = %d", i, result.Remaining)
		}
	}
}

func TestCheckBoundary(t *testing.T) {
	ctx := context.Background()
	limiter := newTestLimiter()
	policy := Policy{ID: "test", Window: time.Minute, MaxRequests: 3}

	var last Result
	for i := 0; i < 3; i++ {
		last, _ = limiter.Check(ctx, policy, "id")
	}
	if !last.Allowed {
		t.Error("request at maxRequests must be allowed")
	}

	over, _ := limiter.Check(ctx, policy, "id")
	if over.Allowed {
		t.Error("request at maxRequests+1 must be denied")
	}
	if over.Remaining != 0 {
		t.Errorf("remaining = %d past the limit", over.Remaining)
	}
}

func TestCheckWindowBoundaryResets(t *testing.T) {
	ctx := context.Background()
	limiter := newTestLimiter()
	policy := Policy{ID: "test", Window: time.Minute, MaxRequests: 2}

	base := time.Date(2026, 3, 1, 10, 0, 30, 0, time.UTC)
	limiter.now = func() time.Time { return base }
	limiter.Check(ctx, policy, "id")
	limiter.Check(ctx, policy, "id")
	limiter.Check(ctx, policy, "id")

	// crossing the window boundary starts counting from 1 again
	limiter.now = func() time.Time { return base.Add(time.Minute) }
	result, err := limiter.Check(ctx, policy, "id")
	if err != nil {
		t.Fatal(err)
	}
	if result.Total != 1 || !result.Allowed {
		t.Errorf("fresh window: total = %d allowed = %v", result.Total, result.Allowed)
	}
	wantReset := result.ResetTime.Unix()
	if wantReset%60 != 0 || wantReset <= limiter.now().Unix() {
		t.Errorf("reset time %v not aligned to next window boundary", result.ResetTime)
	}
}

func TestCheckIsolatesIdentities(t *testing.T) {
	ctx := context.Background()
	limiter := newTestLimiter()
	policy := Policy{ID: "test", Window: time.Minute, MaxRequests: 1}

	limiter.Check(ctx, policy, "a")
	result, _ := limiter.Check(ctx, policy, "b")
	if result.Total != 1 {
		t.Errorf("identities share a counter: total = %d", result.Total)
	}
}

type failingStorage struct {
	store.Storage
}

func (failingStorage) IncrEx(ctx context.Context, key string, delta int64, expiresIn time.Duration) (int64, error) {
	return 0, errors.New("store unreachable")
}

func TestCheckFailsOpen(t *testing.T) {
	ctx := context.Background()
	limiter := NewLimiter(failingStorage{})
	policy := Policy{ID: "test", Window: time.Minute, MaxRequests: 1}

	result, err := limiter.Check(ctx, policy, "id")
	if err == nil {
		t.Error("expected error to surface for logging")
	}
	if !result.Allowed {
		t.Error("store failure must fail open")
	}
}

type staticTiers struct {
	tier Tier
	err  error
}

func (s staticTiers) Tier(ctx context.Context, identity string) (Tier, error) {
	return s.tier, s.err
}

func TestAdaptiveLimiterTiers(t *testing.T) {
	ctx := context.Background()
	policy := Policy{ID: "test", Window: time.Minute, MaxRequests: 2}

	premium := NewAdaptiveLimiter(newTestLimiter(), staticTiers{tier: TierPremium})
	var result Result
	for i := 0; i < 10; i++ {
		result, _ = premium.Check(ctx, policy, "u1")
	}
	if !result.Allowed {
		t.Error("premium tier should allow 10 requests against a base limit of 2")
	}
	if result.Limit != 10 {
		t.Errorf("premium limit = %d, want 10", result.Limit)
	}
}

func TestAdaptiveLimiterFallsBackToFree(t *testing.T) {
	ctx := context.Background()
	policy := Policy{ID: "test", Window: time.Minute, MaxRequests: 2}

	limiter := NewAdaptiveLimiter(newTestLimiter(), staticTiers{err: errors.New("lookup failed")})
	limiter.Check(ctx, policy, "u1")
	limiter.Check(ctx, policy, "u1")
	result, _ := limiter.Check(ctx, policy, "u1")
	if result.Allowed {
		t.Error("tier lookup failure must fall back to the lowest tier")
	}
}

func TestSelectPolicy(t *testing.T) {
	tests := []struct {
		method string
		path   string
		want   string
	}{
		{"POST", "/auth/login", "auth"},
		{"POST", "/auth/reset-password", "password_reset"},
		{"GET", "/search", "search"},
		{"POST", "/upload/images", "upload"},
		{"POST", "/articles", "content_write"},
		{"GET", "/articles/42", "general_api"},
	}
	for _, tt := range tests {
		if got := SelectPolicy(tt.method, tt.path); got.ID != tt.want {
			t.Errorf("SelectPolicy(%s %s) = %s, want %s", tt.method, tt.path, got.ID, tt.want)
		}
	}
}
