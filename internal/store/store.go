// Package store provides the durable reminder-schedule and token CRUD used by
// the command endpoints, the CLI, and the reminder service.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cw35/slackminder/db/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrNotFound = errors.New("not found")

type Store struct {
	db *gorm.DB
}

func New(gdb *gorm.DB) (*Store, error) {
	if gdb == nil {
		return nil, fmt.Errorf("nil db")
	}
	return &Store{db: gdb}, nil
}

// UpsertSchedule creates or replaces the user's reminder schedule with the
// given cadence. NextRunAt is cleared so the scheduler recomputes it.
func (s *Store) UpsertSchedule(ctx context.Context, userID, cadence string) (models.ReminderSchedule, error) {
	userID = strings.TrimSpace(userID)
	cadence = strings.ToLower(strings.TrimSpace(cadence))
	if userID == "" {
		return models.ReminderSchedule{}, fmt.Errorf("user id is required")
	}
	if !models.ValidCadence(cadence) {
		return models.ReminderSchedule{}, fmt.Errorf("invalid cadence %q", cadence)
	}

	schedule := models.ReminderSchedule{
		UserID:  userID,
		Cadence: cadence,
		Enabled: true,
	}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.Assignments(map[string]any{
				"cadence":     cadence,
				"enabled":     true,
				"next_run_at": nil,
				"updated_at":  time.Now().UTC().Unix(),
			}),
		}).
		Create(&schedule).Error
	if err != nil {
		return models.ReminderSchedule{}, err
	}

	var saved models.ReminderSchedule
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&saved).Error; err != nil {
		return models.ReminderSchedule{}, err
	}
	return saved, nil
}

func (s *Store) GetSchedule(ctx context.Context, userID string) (models.ReminderSchedule, error) {
	var schedule models.ReminderSchedule
	err := s.db.WithContext(ctx).Where("user_id = ?", strings.TrimSpace(userID)).First(&schedule).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.ReminderSchedule{}, ErrNotFound
	}
	if err != nil {
		return models.ReminderSchedule{}, err
	}
	return schedule, nil
}

func (s *Store) ListSchedules(ctx context.Context) ([]models.ReminderSchedule, error) {
	var schedules []models.ReminderSchedule
	if err := s.db.WithContext(ctx).Order("created_at").Find(&schedules).Error; err != nil {
		return nil, err
	}
	return schedules, nil
}

// DeleteSchedule removes the user's schedule. Deleting a schedule that does
// not exist reports ErrNotFound.
func (s *Store) DeleteSchedule(ctx context.Context, userID string) error {
	res := s.db.WithContext(ctx).
		Where("user_id = ?", strings.TrimSpace(userID)).
		Delete(&models.ReminderSchedule{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// SaveUserToken stores or replaces the OAuth user token for userID.
func (s *Store) SaveUserToken(ctx context.Context, userID, teamID, accessToken string) error {
	userID = strings.TrimSpace(userID)
	accessToken = strings.TrimSpace(accessToken)
	if userID == "" {
		return fmt.Errorf("user id is required")
	}
	if accessToken == "" {
		return fmt.Errorf("access token is required")
	}
	token := models.UserToken{
		UserID:      userID,
		TeamID:      strings.TrimSpace(teamID),
		AccessToken: accessToken,
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.Assignments(map[string]any{
				"team_id":      token.TeamID,
				"access_token": accessToken,
				"updated_at":   time.Now().UTC().Unix(),
			}),
		}).
		Create(&token).Error
}

// GetUserToken returns the stored OAuth token for userID, or ErrNotFound.
func (s *Store) GetUserToken(ctx context.Context, userID string) (models.UserToken, error) {
	var token models.UserToken
	err := s.db.WithContext(ctx).Where("user_id = ?", strings.TrimSpace(userID)).First(&token).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.UserToken{}, ErrNotFound
	}
	if err != nil {
		return models.UserToken{}, err
	}
	return token, nil
}
