package incident

import (
	"context"
	"log/slog"
	"time"

	"github.com/wardenhq/warden/internal/ddos"
	"github.com/wardenhq/warden/internal/privacy"
	"github.com/wardenhq/warden/internal/security"
	"github.com/wardenhq/warden/internal/store"
	"github.com/wardenhq/warden/params"
)

// Blocker hard-blocks an IP. Satisfied by the DDoS guard.
type Blocker interface {
	Block(ctx context.Context, ip string, duration time.Duration, reason string) (*ddos.BlockRecord, error)
}

// Responder receives every security event after the pipeline resolves. It
// records the event, and escalates an IP to a hard block once it
// accumulates enough blockworthy events inside the incident window, even
// when no single stage blocked on its own.
type Responder struct {
	counters store.Storage
	blocker  Blocker
	history  *security.History
	logger   *privacy.Logger
}

func NewResponder(storage store.Storage, blocker Blocker, history *security.History, logger *privacy.Logger) *Responder {
	return &Responder{
		counters: store.StorageWithPrefix(storage, params.IncidentKeyPrefix),
		blocker:  blocker,
		history:  history,
		logger:   logger,
	}
}

func (r *Responder) Record(ctx context.Context, ev security.Event) {
	r.history.Add(ev)
	r.logEvent(ctx, ev)

	if !blockworthy(ev) {
		return
	}
	count, err := r.counters.IncrEx(ctx, ev.Request.IP, 1, params.IncidentWindow)
	if err != nil {
		slog.Warn("incident counter unreachable", "error", err)
		return
	}
	if count < params.IncidentBlockThreshold {
		return
	}
	if _, err := r.blocker.Block(ctx, ev.Request.IP, params.IncidentBlockDuration, "repeat offender"); err != nil {
		slog.Error("incident escalation failed", "error", err)
		return
	}
	escalation := security.Event{
		Type:      security.EventIncidentBlock,
		Severity:  security.SeverityCritical,
		Detail:    "repeat offender escalated to hard block",
		Request:   ev.Request,
		Blocked:   true,
		Timestamp: time.Now(),
	}
	r.history.Add(escalation)
	r.logEvent(ctx, escalation)
}

func (r *Responder) logEvent(ctx context.Context, ev security.Event) {
	if r.logger == nil {
		return
	}
	err := r.logger.Log(ctx, privacy.Entry{
		Level:    severityLevel(ev.Severity),
		Category: privacy.CategorySecurity,
		Message:  string(ev.Type) + ": " + ev.Detail,
		Metadata: map[string]any{
			"eventType": string(ev.Type),
			"severity":  string(ev.Severity),
			"method":    ev.Request.Method,
			"path":      ev.Request.Path,
			"blocked":   ev.Blocked,
			"ip":        ev.Request.IP, // converted to ipHash by the sanitizer
		},
		Classification: privacy.ClassConfidential,
		IP:             ev.Request.IP,
		UserAgent:      ev.Request.UserAgent,
	})
	if err != nil {
		slog.Warn("failed to persist security event", "type", ev.Type, "error", err)
	}
}

func blockworthy(ev security.Event) bool {
	return ev.Blocked || ev.Severity == security.SeverityCritical
}

func severityLevel(s security.Severity) privacy.Level {
	switch s {
	case security.SeverityCritical:
		return privacy.LevelCritical
	case security.SeverityHigh:
		return privacy.LevelError
	case security.SeverityMedium:
		return privacy.LevelWarn
	default:
		return privacy.LevelInfo
	}
}
