package ddos

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/wardenhq/warden/internal/store"
	"github.com/wardenhq/warden/params"
)

// BlockRecord marks an IP as denied until a deadline. It lives in the TTL
// store keyed by the raw IP and expires on its own; only hashed forms of
// the IP ever reach a log sink.
type BlockRecord struct {
	BlockedUntil time.Time `json:"blockedUntil"`
	Reason       string    `json:"reason"`
}

// Verdict is the outcome of one per-IP check.
type Verdict struct {
	Blocked    bool
	Suspicious bool
	Count      int64
	Record     *BlockRecord
}

// SuspicionReporter receives IPs that crossed the advisory threshold. The
// default wiring only logs them; escalation is an explicit opt-in.
type SuspicionReporter func(ip string, count int64)

type Guard struct {
	counters store.Storage
	blocks   store.Storage
	now      func() time.Time
	reporter SuspicionReporter

	mu         sync.Mutex
	suspicious map[string]time.Time
	order      []string
}

func NewGuard(storage store.Storage) *Guard {
	return &Guard{
		counters:   store.StorageWithPrefix(storage, params.DDoSKeyPrefix),
		blocks:     store.StorageWithPrefix(storage, params.BlockKeyPrefix),
		now:        time.Now,
		suspicious: make(map[string]time.Time),
	}
}

// SetSuspicionReporter subscribes to advisory threshold crossings.
func (g *Guard) SetSuspicionReporter(reporter SuspicionReporter) {
	g.reporter = reporter
}

// Check runs the per-IP heuristic. An already blocked IP is denied without
// touching its counter; store failures fail open.
func (g *Guard) Check(ctx context.Context, ip string) (Verdict, error) {
	var record BlockRecord
	err := g.blocks.Get(ctx, ip, &record)
	if err == nil && g.now().Before(record.BlockedUntil) {
		return Verdict{Blocked: true, Record: &record}, nil
	}
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		slog.Warn("ddos block lookup failed, failing open", "error", err)
		return Verdict{}, err
	}

	count, err := g.counters.IncrEx(ctx, ip, 1, params.DDoSWindow)
	if err != nil {
		slog.Warn("ddos counter unreachable, failing open", "error", err)
		return Verdict{}, err
	}

	verdict := Verdict{Count: count}
	switch {
	case count > params.DDoSBlockThreshold:
		blocked, err := g.Block(ctx, ip, params.DDoSBlockDuration, "request flood")
		if err != nil {
			return verdict, err
		}
		verdict.Blocked = true
		verdict.Record = blocked
	case count > params.DDoSSuspectThreshold:
		verdict.Suspicious = true
		g.markSuspicious(ip)
		if g.reporter != nil {
			g.reporter(ip, count)
		}
	}
	return verdict, nil
}

// Block denies an IP for the given duration. Also used by the incident
// responder to escalate repeat offenders.
func (g *Guard) Block(ctx context.Context, ip string, duration time.Duration, reason string) (*BlockRecord, error) {
	record := BlockRecord{
		BlockedUntil: g.now().Add(duration),
		Reason:       reason,
	}
	if err := g.blocks.Set(ctx, ip, record, duration); err != nil {
		return nil, err
	}
	return &record, nil
}

// Unblock lifts a block before its deadline.
func (g *Guard) Unblock(ctx context.Context, ip string) error {
	err := g.blocks.Delete(ctx, ip)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	return err
}

// IsBlocked reports whether the IP currently has an active block.
func (g *Guard) IsBlocked(ctx context.Context, ip string) (bool, *BlockRecord) {
	var record BlockRecord
	if err := g.blocks.Get(ctx, ip, &record); err != nil {
		return false, nil
	}
	if g.now().After(record.BlockedUntil) {
		return false, nil
	}
	return true, &record
}

func (g *Guard) markSuspicious(ip string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.suspicious[ip]; !ok {
		g.order = append(g.order, ip)
		if len(g.order) > params.SuspiciousIPTrackerLimit {
			oldest := g.order[0]
			g.order = g.order[1:]
			delete(g.suspicious, oldest)
		}
	}
	g.suspicious[ip] = g.now()
}

// SuspiciousIPs returns the advisory set, oldest first.
func (g *Guard) SuspiciousIPs() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]string, len(g.order))
	copy(out, g.order)
	return out
}
