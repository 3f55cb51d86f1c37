package model

import "time"

// LogEntry is a privacy-classified log record. Identity fields are stored
// hashed only; the anonymization sweep may null or collapse fields in place
// once the entry ages past its policy's thresholds.
type LogEntry struct {
	ID             uint64    `gorm:"primaryKey"`
	Timestamp      time.Time `gorm:"index;not null"`
	Level          string    `gorm:"size:8;not null;index"`
	Category       string    `gorm:"size:32;not null;index"` // security, authentication, audit, user_activity, system, error
	Message        string    `gorm:"size:2048;not null"`
	Metadata       string    `gorm:"size:4096"` // JSON, sanitized before write
	UserHash       string    `gorm:"size:64;index"`
	SessionHash    string    `gorm:"size:64"`
	IPHash         string    `gorm:"size:64"`
	UserAgent      string    `gorm:"size:512"`
	Classification string    `gorm:"size:16;not null"`
	Anonymized     bool      `gorm:"not null;default:false"`
}

func (LogEntry) TableName() string {
	return "log_entry"
}
