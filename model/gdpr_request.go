package model

import "time"

// GDPRRequest is a data-subject request moving through the compliance
// state machine. Owned by the compliance manager; the privacy logger only
// supplies data the handlers read.
type GDPRRequest struct {
	ID                 string    `gorm:"primaryKey;size:36"`
	UserID             string    `gorm:"size:64;not null;index"`
	UserEmail          string    `gorm:"size:255;not null"`
	Right              string    `gorm:"size:32;not null;index"`
	Status             string    `gorm:"size:16;not null;index"`
	Description        string    `gorm:"size:1024"`
	Metadata           string    `gorm:"size:2048"` // JSON
	RequestDate        time.Time `gorm:"not null"`
	ExpirationDate     time.Time `gorm:"not null;index"`
	CompletedDate      *time.Time
	Verified           bool   `gorm:"not null;default:false"`
	VerificationMethod string `gorm:"size:32;not null"`
	ProcessorNotes     string `gorm:"size:2048"`
}

func (GDPRRequest) TableName() string {
	return "gdpr_request"
}
