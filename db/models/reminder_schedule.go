package models

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Reminder cadences accepted by the slash command and the CLI.
const (
	CadenceHourly = "hourly"
	CadenceDaily  = "daily"
	CadenceWeekly = "weekly"
)

// ValidCadence reports whether s is a supported cadence keyword.
func ValidCadence(s string) bool {
	switch s {
	case CadenceHourly, CadenceDaily, CadenceWeekly:
		return true
	}
	return false
}

// ReminderSchedule is one user's standing request for periodic unreplied-mention
// reminders. One schedule per user; setting a new cadence replaces the old one.
type ReminderSchedule struct {
	ID string `gorm:"primaryKey;type:text"`

	UserID  string `gorm:"type:text;not null;uniqueIndex"`
	Cadence string `gorm:"type:text;not null"`
	Enabled bool   `gorm:"not null;default:1"`

	// Derived schedule state (UTC unix seconds).
	LastRunAt *int64 `gorm:""`
	NextRunAt *int64 `gorm:"index"`

	CreatedAt int64 `gorm:"autoCreateTime"`
	UpdatedAt int64 `gorm:"autoUpdateTime"`
}

func (s *ReminderSchedule) BeforeCreate(_ *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}
