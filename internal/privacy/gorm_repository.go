package privacy

import (
	"context"
	"time"

	"github.com/wardenhq/warden/model"
	"gorm.io/gorm"
)

type gormLogRepository struct {
	db *gorm.DB
}

func NewGormLogRepository(db *gorm.DB) LogRepository {
	return &gormLogRepository{db: db}
}

func (r *gormLogRepository) Create(ctx context.Context, entry *model.LogEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *gormLogRepository) Update(ctx context.Context, entry *model.LogEntry) error {
	return r.db.WithContext(ctx).Save(entry).Error
}

func (r *gormLogRepository) All(ctx context.Context) ([]model.LogEntry, error) {
	var entries []model.LogEntry
	err := r.db.WithContext(ctx).Order("timestamp").Find(&entries).Error
	return entries, err
}

func (r *gormLogRepository) FindByUserHash(ctx context.Context, userHash string) ([]model.LogEntry, error) {
	var entries []model.LogEntry
	err := r.db.WithContext(ctx).Where("user_hash = ?", userHash).Order("timestamp").Find(&entries).Error
	return entries, err
}

func (r *gormLogRepository) DeleteByUserHash(ctx context.Context, userHash string) (int64, error) {
	result := r.db.WithContext(ctx).Where("user_hash = ?", userHash).Delete(&model.LogEntry{})
	return result.RowsAffected, result.Error
}

func (r *gormLogRepository) DeleteOlderThan(ctx context.Context, category Category, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("category = ? AND timestamp < ?", string(category), cutoff).
		Delete(&model.LogEntry{})
	return result.RowsAffected, result.Error
}

func (r *gormLogRepository) FindAnonymizable(ctx context.Context, category Category, cutoff time.Time) ([]model.LogEntry, error) {
	var entries []model.LogEntry
	err := r.db.WithContext(ctx).
		Where("category = ? AND anonymized = ? AND timestamp < ?", string(category), false, cutoff).
		Find(&entries).Error
	return entries, err
}

type gormAuditRepository struct {
	db *gorm.DB
}

func NewGormAuditRepository(db *gorm.DB) AuditRepository {
	return &gormAuditRepository{db: db}
}

func (r *gormAuditRepository) Create(ctx context.Context, record *model.AuditRecord) error {
	return r.db.WithContext(ctx).Create(record).Error
}

func (r *gormAuditRepository) Update(ctx context.Context, record *model.AuditRecord) error {
	return r.db.WithContext(ctx).Save(record).Error
}

func (r *gormAuditRepository) All(ctx context.Context) ([]model.AuditRecord, error) {
	var records []model.AuditRecord
	err := r.db.WithContext(ctx).Order("timestamp").Find(&records).Error
	return records, err
}

func (r *gormAuditRepository) FindByUserHash(ctx context.Context, userHash string) ([]model.AuditRecord, error) {
	var records []model.AuditRecord
	err := r.db.WithContext(ctx).Where("user_hash = ?", userHash).Order("timestamp").Find(&records).Error
	return records, err
}

func (r *gormAuditRepository) DeleteByUserHash(ctx context.Context, userHash string) (int64, error) {
	result := r.db.WithContext(ctx).Where("user_hash = ?", userHash).Delete(&model.AuditRecord{})
	return result.RowsAffected, result.Error
}

func (r *gormAuditRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Where("timestamp < ?", cutoff).Delete(&model.AuditRecord{})
	return result.RowsAffected, result.Error
}

func (r *gormAuditRepository) FindAnonymizable(ctx context.Context, cutoff time.Time) ([]model.AuditRecord, error) {
	var records []model.AuditRecord
	err := r.db.WithContext(ctx).
		Where("anonymized = ? AND timestamp < ?", false, cutoff).
		Find(&records).Error
	return records, err
}
