package models

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ReminderRun records one execution of a scheduled scan+remind cycle.
type ReminderRun struct {
	ID string `gorm:"primaryKey;type:text"`

	ScheduleID string `gorm:"type:text;not null;index"`
	UserID     string `gorm:"type:text;not null;index"`

	// queued|running|succeeded|failed|skipped
	Status string `gorm:"type:text;not null;index"`

	// UTC unix seconds.
	ScheduledFor int64  `gorm:"not null"`
	StartedAt    *int64 `gorm:""`
	FinishedAt   *int64 `gorm:""`

	// Bounded failure detail; not a full error chain.
	Error string `gorm:"type:text"`

	// Number of unreplied mentions found by the run's scan.
	MentionCount int `gorm:"not null;default:0"`

	CreatedAt int64 `gorm:"autoCreateTime"`
	UpdatedAt int64 `gorm:"autoUpdateTime"`
}

func (r *ReminderRun) BeforeCreate(_ *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}
