package privacy

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/wardenhq/warden/model"
)

type LogRepository interface {
	Create(ctx context.Context, entry *model.LogEntry) error
	Update(ctx context.Context, entry *model.LogEntry) error
	All(ctx context.Context) ([]model.LogEntry, error)
	FindByUserHash(ctx context.Context, userHash string) ([]model.LogEntry, error)
	DeleteByUserHash(ctx context.Context, userHash string) (int64, error)
	DeleteOlderThan(ctx context.Context, category Category, cutoff time.Time) (int64, error)
	FindAnonymizable(ctx context.Context, category Category, cutoff time.Time) ([]model.LogEntry, error)
}

type AuditRepository interface {
	Create(ctx context.Context, record *model.AuditRecord) error
	Update(ctx context.Context, record *model.AuditRecord) error
	All(ctx context.Context) ([]model.AuditRecord, error)
	FindByUserHash(ctx context.Context, userHash string) ([]model.AuditRecord, error)
	DeleteByUserHash(ctx context.Context, userHash string) (int64, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
	FindAnonymizable(ctx context.Context, cutoff time.Time) ([]model.AuditRecord, error)
}

// memoryLogRepository keeps entries in process memory. Used by tests and by
// single-node deployments that run without MySQL.
type memoryLogRepository struct {
	mu      sync.RWMutex
	entries map[uint64]*model.LogEntry
}

func NewMemoryLogRepository() LogRepository {
	return &memoryLogRepository{entries: make(map[uint64]*model.LogEntry)}
}

func (r *memoryLogRepository) Create(ctx context.Context, entry *model.LogEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := *entry
	r.entries[entry.ID] = &stored
	return nil
}

func (r *memoryLogRepository) Update(ctx context.Context, entry *model.LogEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := *entry
	r.entries[entry.ID] = &stored
	return nil
}

func (r *memoryLogRepository) All(ctx context.Context) ([]model.LogEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entries := make([]model.LogEntry, 0, len(r.entries))
	for _, entry := range r.entries {
		entries = append(entries, *entry)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Timestamp.Before(entries[j].Timestamp) })
	return entries, nil
}

func (r *memoryLogRepository) FindByUserHash(ctx context.Context, userHash string) ([]model.LogEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var entries []model.LogEntry
	for _, entry := range r.entries {
		if entry.UserHash == userHash {
			entries = append(entries, *entry)
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Timestamp.Before(entries[j].Timestamp) })
	return entries, nil
}

func (r *memoryLogRepository) DeleteByUserHash(ctx context.Context, userHash string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var deleted int64
	for id, entry := range r.entries {
		if entry.UserHash == userHash {
			delete(r.entries, id)
			deleted++
		}
	}
	return deleted, nil
}

func (r *memoryLogRepository) DeleteOlderThan(ctx context.Context, category Category, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var deleted int64
	for id, entry := range r.entries {
		if entry.Category == string(category) && entry.Timestamp.Before(cutoff) {
			delete(r.entries, id)
			deleted++
		}
	}
	return deleted, nil
}

func (r *memoryLogRepository) FindAnonymizable(ctx context.Context, category Category, cutoff time.Time) ([]model.LogEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var entries []model.LogEntry
	for _, entry := range r.entries {
		if entry.Category == string(category) && !entry.Anonymized && entry.Timestamp.Before(cutoff) {
			entries = append(entries, *entry)
		}
	}
	return entries, nil
}

type memoryAuditRepository struct {
	mu      sync.RWMutex
	records map[uint64]*model.AuditRecord
}

func NewMemoryAuditRepository() AuditRepository {
	return &memoryAuditRepository{records: make(map[uint64]*model.AuditRecord)}
}

func (r *memoryAuditRepository) Create(ctx context.Context, record *model.AuditRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := *record
	r.records[record.ID] = &stored
	return nil
}

func (r *memoryAuditRepository) Update(ctx context.Context, record *model.AuditRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := *record
	r.records[record.ID] = &stored
	return nil
}

func (r *memoryAuditRepository) All(ctx context.Context) ([]model.AuditRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	records := make([]model.AuditRecord, 0, len(r.records))
	for _, record := range r.records {
		records = append(records, *record)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Timestamp.Before(records[j].Timestamp) })
	return records, nil
}

func (r *memoryAuditRepository) FindByUserHash(ctx context.Context, userHash string) ([]model.AuditRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var records []model.AuditRecord
	for _, record := range r.records {
		if record.UserHash == userHash {
			records = append(records, *record)
		}
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Timestamp.Before(records[j].Timestamp) })
	return records, nil
}

func (r *memoryAuditRepository) DeleteByUserHash(ctx context.Context, userHash string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var deleted int64
	for id, record := range r.records {
		if record.UserHash == userHash {
			delete(r.records, id)
			deleted++
		}
	}
	return deleted, nil
}

func (r *memoryAuditRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var deleted int64
	for id, record := range r.records {
		if record.Timestamp.Before(cutoff) {
			delete(r.records, id)
			deleted++
		}
	}
	return deleted, nil
}

func (r *memoryAuditRepository) FindAnonymizable(ctx context.Context, cutoff time.Time) ([]model.AuditRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var records []model.AuditRecord
	for _, record := range r.records {
		if !record.Anonymized && record.Timestamp.Before(cutoff) {
			records = append(records, *record)
		}
	}
	return records, nil
}
