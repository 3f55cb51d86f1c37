package privacy

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/wardenhq/warden/model"
)

// Entry is a privacy-classified log call. Raw identity fields go in here;
// only their hashes ever reach a repository.
type Entry struct {
	Level          Level
	Category       Category
	Message        string
	Metadata       map[string]any
	Classification Classification
	UserID         string
	SessionID      string
	IP             string
	UserAgent      string
}

// AuditEntry records a data-changing action. Always stored as confidential.
type AuditEntry struct {
	UserID     string
	Action     string
	Resource   string
	ResourceID string
	OldValues  map[string]any
	NewValues  map[string]any
	Metadata   map[string]any
	IP         string
	UserAgent  string
	Success    bool
}

type Logger struct {
	production bool
	hasher     *Hasher
	policies   map[Category]RetentionPolicy
	logs       LogRepository
	audits     AuditRepository
	now        func() time.Time
}

func NewLogger(production bool, hasher *Hasher, policies map[Category]RetentionPolicy, logs LogRepository, audits AuditRepository) *Logger {
	if policies == nil {
		policies = DefaultRetentionPolicies()
	}
	return &Logger{
		production: production,
		hasher:     hasher,
		policies:   policies,
		logs:       logs,
		audits:     audits,
		now:        time.Now,
	}
}

// Hasher exposes the identity hasher so the compliance manager can compute
// lookup hashes consistent with stored entries.
func (l *Logger) Hasher() *Hasher {
	return l.hasher
}

func (l *Logger) Log(ctx context.Context, e Entry) error {
	if l.production && e.Level.Verbose() {
		return nil
	}
	if !e.Classification.Valid() {
		e.Classification = ClassInternal
	}
	if e.Category == "" {
		e.Category = CategorySystem
	}

	metadata := SanitizeMetadata(e.Metadata, e.Classification, l.hasher.HashIP)
	entry := &model.LogEntry{
		ID:             model.GenerateID(),
		Timestamp:      l.now(),
		Level:          string(e.Level),
		Category:       string(e.Category),
		Message:        scrubbedMessage(e.Message, e.Classification),
		Metadata:       encodeMetadata(metadata),
		UserHash:       l.hasher.HashIdentity(e.UserID),
		SessionHash:    l.hasher.HashIdentity(e.SessionID),
		IPHash:         l.hasher.HashIP(e.IP),
		UserAgent:      e.UserAgent,
		Classification: string(e.Classification),
	}
	if err := l.logs.Create(ctx, entry); err != nil {
		return err
	}
	l.enforceRetention(ctx)
	return nil
}

// Audit stores an audit record and mirrors it as an INFO log entry. Old and
// new values are sanitized at creation and never touched again.
func (l *Logger) Audit(ctx context.Context, e AuditEntry) error {
	record := &model.AuditRecord{
		ID:         model.GenerateID(),
		Timestamp:  l.now(),
		UserHash:   l.hasher.HashIdentity(e.UserID),
		Action:     e.Action,
		Resource:   e.Resource,
		ResourceID: e.ResourceID,
		OldValues:  encodeMetadata(SanitizeMetadata(e.OldValues, ClassConfidential, l.hasher.HashIP)),
		NewValues:  encodeMetadata(SanitizeMetadata(e.NewValues, ClassConfidential, l.hasher.HashIP)),
		IPHash:     l.hasher.HashIP(e.IP),
		UserAgent:  e.UserAgent,
		Success:    e.Success,
	}
	if err := l.audits.Create(ctx, record); err != nil {
		return err
	}
	metadata := e.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	metadata["action"] = e.Action
	metadata["resource"] = e.Resource
	return l.Log(ctx, Entry{
		Level:          LevelInfo,
		Category:       CategoryAudit,
		Message:        fmt.Sprintf("audit: %s %s", e.Action, e.Resource),
		Metadata:       metadata,
		Classification: ClassConfidential,
		UserID:         e.UserID,
		IP:             e.IP,
		UserAgent:      e.UserAgent,
	})
}

// SweepReport summarizes one retention enforcement pass.
type SweepReport struct {
	Purged     int64 `json:"purged"`
	Anonymized int64 `json:"anonymized"`
}

// Sweep purges entries past their retention and applies due anonymization
// steps exactly once per entry. Safe to run concurrently with live writes:
// it only touches rows older than its own cutoffs.
func (l *Logger) Sweep(ctx context.Context) (SweepReport, error) {
	var report SweepReport
	now := l.now()

	for category, policy := range l.policies {
		cutoff := now.AddDate(0, 0, -policy.RetentionDays)
		purged, err := l.logs.DeleteOlderThan(ctx, category, cutoff)
		if err != nil {
			return report, err
		}
		report.Purged += purged

		if len(policy.Schedule) == 0 {
			continue
		}
		first := policy.Schedule[0].AfterDays
		candidates, err := l.logs.FindAnonymizable(ctx, category, now.AddDate(0, 0, -first))
		if err != nil {
			return report, err
		}
		for i := range candidates {
			entry := &candidates[i]
			ageDays := int(now.Sub(entry.Timestamp).Hours() / 24)
			for _, step := range policy.dueSteps(ageDays) {
				applyStepToLog(entry, step)
			}
			entry.Anonymized = true
			if err := l.logs.Update(ctx, entry); err != nil {
				return report, err
			}
			report.Anonymized++
		}
	}

	auditPolicy := l.policies[CategoryAudit]
	purged, err := l.audits.DeleteOlderThan(ctx, now.AddDate(0, 0, -auditPolicy.RetentionDays))
	if err != nil {
		return report, err
	}
	report.Purged += purged
	if len(auditPolicy.Schedule) > 0 {
		first := auditPolicy.Schedule[0].AfterDays
		candidates, err := l.audits.FindAnonymizable(ctx, now.AddDate(0, 0, -first))
		if err != nil {
			return report, err
		}
		for i := range candidates {
			record := &candidates[i]
			ageDays := int(now.Sub(record.Timestamp).Hours() / 24)
			for _, step := range auditPolicy.dueSteps(ageDays) {
				applyStepToAudit(record, step)
			}
			record.Anonymized = true
			if err := l.audits.Update(ctx, record); err != nil {
				return report, err
			}
			report.Anonymized++
		}
	}
	return report, nil
}

func (l *Logger) enforceRetention(ctx context.Context) {
	if _, err := l.Sweep(ctx); err != nil {
		slog.Warn("retention sweep failed", "error", err)
	}
}

func applyStepToLog(entry *model.LogEntry, step AnonymizeStep) {
	switch step.Action {
	case ActionHash:
		// identity fields were hashed at write time
	case ActionRemove:
		for _, field := range step.Fields {
			switch field {
			case "userId":
				entry.UserHash = ""
			case "sessionId":
				entry.SessionHash = ""
			case "userAgent":
				entry.UserAgent = ""
			}
		}
	case ActionAggregate:
		entry.Metadata = `{"aggregated":true}`
	}
}

func applyStepToAudit(record *model.AuditRecord, step AnonymizeStep) {
	switch step.Action {
	case ActionHash:
		// already hashed at write time
	case ActionRemove:
		for _, field := range step.Fields {
			switch field {
			case "userId":
				record.UserHash = ""
			case "userAgent":
				record.UserAgent = ""
			}
		}
	case ActionAggregate:
		record.OldValues = `{"aggregated":true}`
		record.NewValues = `{"aggregated":true}`
	}
}

// UserLogs bundles everything stored under one user's identity hash.
type UserLogs struct {
	Entries      []model.LogEntry    `json:"entries"`
	AuditRecords []model.AuditRecord `json:"auditRecords"`
}

func (l *Logger) UserLogs(ctx context.Context, userID string) (*UserLogs, error) {
	userHash := l.hasher.HashIdentity(userID)
	entries, err := l.logs.FindByUserHash(ctx, userHash)
	if err != nil {
		return nil, err
	}
	records, err := l.audits.FindByUserHash(ctx, userHash)
	if err != nil {
		return nil, err
	}
	return &UserLogs{Entries: entries, AuditRecords: records}, nil
}

// DeleteUserLogs hard-deletes everything stored under the user's identity
// hash and writes an audit record of the erasure, so the deletion itself
// stays provable.
func (l *Logger) DeleteUserLogs(ctx context.Context, userID string) (int64, error) {
	userHash := l.hasher.HashIdentity(userID)
	deleted, err := l.logs.DeleteByUserHash(ctx, userHash)
	if err != nil {
		return 0, err
	}
	deletedAudits, err := l.audits.DeleteByUserHash(ctx, userHash)
	if err != nil {
		return deleted, err
	}
	// recorded as a system action: attributing it to the user would recreate
	// a row under the hash that was just erased
	auditErr := l.Audit(ctx, AuditEntry{
		Action:   "DELETE",
		Resource: "user_logs",
		NewValues: map[string]any{
			"userHash":       userHash,
			"deletedEntries": deleted,
			"deletedAudits":  deletedAudits,
		},
		Success: true,
	})
	return deleted, auditErr
}

func encodeMetadata(metadata SanitizedMetadata) string {
	if len(metadata) == 0 {
		return ""
	}
	data, err := json.Marshal(metadata)
	if err != nil {
		return ""
	}
	return string(data)
}
