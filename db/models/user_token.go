package models

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// UserToken holds the OAuth user token obtained via the authorize flow.
// Scans run with the user's own token when one is stored, so the walk sees
// the channels that user can see; otherwise the workspace bot token is used.
type UserToken struct {
	ID string `gorm:"primaryKey;type:text"`

	UserID      string `gorm:"type:text;not null;uniqueIndex"`
	TeamID      string `gorm:"type:text"`
	AccessToken string `gorm:"type:text;not null"`

	CreatedAt int64 `gorm:"autoCreateTime"`
	UpdatedAt int64 `gorm:"autoUpdateTime"`
}

func (t *UserToken) BeforeCreate(_ *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return nil
}
