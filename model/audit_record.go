package model

import "time"

// AuditRecord captures a data-changing action. Old/new values are sanitized
// at creation and never rewritten afterwards.
type AuditRecord struct {
	ID         uint64    `gorm:"primaryKey"`
	Timestamp  time.Time `gorm:"index;not null"`
	UserHash   string    `gorm:"size:64;index"`
	Action     string    `gorm:"size:32;not null;index"` // CREATE, UPDATE, DELETE, EXPORT...
	Resource   string    `gorm:"size:64;not null;index"`
	ResourceID string    `gorm:"size:64"`
	OldValues  string    `gorm:"size:4096"` // JSON, personal-data fields stripped
	NewValues  string    `gorm:"size:4096"` // JSON, personal-data fields stripped
	IPHash     string    `gorm:"size:64"`
	UserAgent  string    `gorm:"size:512"`
	Success    bool      `gorm:"not null"`
	Anonymized bool      `gorm:"not null;default:false"`
}

func (AuditRecord) TableName() string {
	return "audit_record"
}
