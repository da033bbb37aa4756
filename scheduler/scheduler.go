// Package scheduler drives periodic reminder scans: a tick loop enqueues a
// run when a schedule's next_run_at passes, worker loops claim queued runs and
// execute the scan+remind cycle.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cw35/slackminder/db/models"
	"github.com/cw35/slackminder/internal/reminder"
	"gorm.io/gorm"
)

const (
	StatusQueued    = "queued"
	StatusRunning   = "running"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
	StatusSkipped   = "skipped"

	defaultTimeout = 10 * time.Minute
)

type Config struct {
	Enabled     bool
	Concurrency int
	Tick        time.Duration

	// Per-run timeout for one scan+remind cycle.
	RunTimeout time.Duration

	// Max characters stored in reminder_runs.error (bounded metadata only).
	MaxErrorChars int
}

func DefaultConfig() Config {
	return Config{
		Enabled:       false,
		Concurrency:   1,
		Tick:          30 * time.Second,
		RunTimeout:    defaultTimeout,
		MaxErrorChars: 2000,
	}
}

type Scheduler struct {
	db      *gorm.DB
	log     *slog.Logger
	cfg     Config
	service *reminder.Service

	wg sync.WaitGroup

	wakeCh chan struct{}
}

func New(gdb *gorm.DB, service *reminder.Service, cfg Config, log *slog.Logger) (*Scheduler, error) {
	if gdb == nil {
		return nil, fmt.Errorf("nil db")
	}
	if service == nil {
		return nil, fmt.Errorf("nil reminder service")
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.Tick <= 0 {
		cfg.Tick = 30 * time.Second
	}
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = defaultTimeout
	}
	if cfg.MaxErrorChars <= 0 {
		cfg.MaxErrorChars = 2000
	}
	if log == nil {
		log = slog.Default()
	}
	return &Scheduler{
		db:      gdb,
		log:     log,
		cfg:     cfg,
		service: service,
		wakeCh:  make(chan struct{}, 1),
	}, nil
}

func (s *Scheduler) Start(ctx context.Context) error {
	if !s.cfg.Enabled {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if err := s.recoverOrphanedRuns(ctx); err != nil {
		return err
	}
	if err := s.reconcileNextRunAt(ctx, time.Now().UTC().Unix()); err != nil {
		return err
	}

	s.log.Info("scheduler_start", "concurrency", s.cfg.Concurrency, "tick_ms", s.cfg.Tick.Milliseconds())

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.scheduleLoop(ctx)
	}()

	for i := 0; i < s.cfg.Concurrency; i++ {
		s.wg.Add(1)
		go func(workerID int) {
			defer s.wg.Done()
			s.workerLoop(ctx, workerID)
		}(i + 1)
	}

	// Kick workers to process any pre-existing queued runs on startup.
	s.wakeWorkers()
	return nil
}

func (s *Scheduler) Wait() {
	s.wg.Wait()
}

func (s *Scheduler) wakeWorkers() {
	select {
	case s.wakeCh <- struct{}{}:
	default:
	}
}

func (s *Scheduler) recoverOrphanedRuns(ctx context.Context) error {
	now := time.Now().UTC().Unix()
	res := s.db.WithContext(ctx).
		Model(&models.ReminderRun{}).
		Where("status = ?", StatusRunning).
		Updates(map[string]any{
			"status":      StatusFailed,
			"finished_at": now,
			"error":       "process restarted",
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		s.log.Warn("scheduler_recovered_orphaned_runs", "count", res.RowsAffected)
	}
	return nil
}

func (s *Scheduler) scheduleLoop(ctx context.Context) {
	t := time.NewTicker(s.cfg.Tick)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("scheduler_stop", "reason", ctx.Err().Error())
			return
		case <-t.C:
			now := time.Now().UTC().Unix()
			if err := s.tick(ctx, now); err != nil {
				s.log.Warn("scheduler_tick_error", "error", err.Error())
			}
		}
	}
}

func (s *Scheduler) tick(ctx context.Context, now int64) error {
	// Set NextRunAt for any enabled schedules missing it (new or re-set ones).
	if err := s.reconcileMissingNextRunAt(ctx, now); err != nil {
		return err
	}

	var due []models.ReminderSchedule
	if err := s.db.WithContext(ctx).
		Where("enabled = ?", true).
		Where("next_run_at IS NOT NULL AND next_run_at <= ?", now).
		Find(&due).Error; err != nil {
		return err
	}
	for _, schedule := range due {
		if _, err := s.enqueueIfDue(ctx, schedule.ID, now); err != nil {
			s.log.Warn("scheduler_enqueue_error", "schedule_id", schedule.ID, "error", err.Error())
		}
	}
	return nil
}

func (s *Scheduler) reconcileMissingNextRunAt(ctx context.Context, now int64) error {
	var schedules []models.ReminderSchedule
	if err := s.db.WithContext(ctx).
		Where("enabled = ?", true).
		Where("next_run_at IS NULL").
		Find(&schedules).Error; err != nil {
		return err
	}
	for _, schedule := range schedules {
		next, err := nextRunAt(schedule, now)
		if err != nil {
			s.log.Warn("scheduler_schedule_invalid", "schedule_id", schedule.ID, "error", err.Error())
			_ = s.db.WithContext(ctx).Model(&models.ReminderSchedule{}).Where("id = ?", schedule.ID).Update("enabled", false).Error
			continue
		}
		_ = s.db.WithContext(ctx).Model(&models.ReminderSchedule{}).Where("id = ?", schedule.ID).Update("next_run_at", next).Error
	}
	return nil
}

func (s *Scheduler) reconcileNextRunAt(ctx context.Context, now int64) error {
	var schedules []models.ReminderSchedule
	if err := s.db.WithContext(ctx).Where("enabled = ?", true).Find(&schedules).Error; err != nil {
		return err
	}

	for _, schedule := range schedules {
		next, err := nextRunAt(schedule, now)
		if err != nil {
			s.log.Warn("scheduler_schedule_invalid", "schedule_id", schedule.ID, "error", err.Error())
			_ = s.db.WithContext(ctx).Model(&models.ReminderSchedule{}).Where("id = ?", schedule.ID).Update("enabled", false).Error
			continue
		}
		// Misfire policy is skip: a next_run_at in the past advances to the
		// next future slot instead of firing a backlog of reminders.
		if schedule.NextRunAt == nil || *schedule.NextRunAt < now {
			_ = s.db.WithContext(ctx).Model(&models.ReminderSchedule{}).Where("id = ?", schedule.ID).Update("next_run_at", next).Error
		}
	}
	return nil
}

func (s *Scheduler) enqueueIfDue(ctx context.Context, scheduleID string, now int64) (bool, error) {
	queued := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var schedule models.ReminderSchedule
		if err := tx.Where("id = ?", scheduleID).First(&schedule).Error; err != nil {
			return err
		}
		if !schedule.Enabled || schedule.NextRunAt == nil {
			return nil
		}
		scheduledFor := *schedule.NextRunAt
		if scheduledFor > now {
			return nil
		}

		next, err := nextRunAt(schedule, scheduledFor)
		if err != nil {
			_ = tx.Model(&models.ReminderSchedule{}).Where("id = ?", schedule.ID).Update("enabled", false).Error
			return fmt.Errorf("compute next: %w", err)
		}
		updates := map[string]any{
			"last_run_at": scheduledFor,
			"next_run_at": next,
		}

		// Overlap policy is forbid: a still-active run for the schedule turns
		// this slot into a skipped run rather than a second concurrent scan.
		var activeCount int64
		if err := tx.Model(&models.ReminderRun{}).
			Where("schedule_id = ? AND status IN ?", schedule.ID, []string{StatusQueued, StatusRunning}).
			Count(&activeCount).Error; err != nil {
			return err
		}
		if activeCount > 0 {
			s.log.Info("scheduler_overlap_forbid", "schedule_id", schedule.ID, "scheduled_for", scheduledFor)
			run := models.ReminderRun{
				ScheduleID:   schedule.ID,
				UserID:       schedule.UserID,
				Status:       StatusSkipped,
				ScheduledFor: scheduledFor,
				Error:        "overlap_forbid: prior run still active",
			}
			if err := tx.Create(&run).Error; err != nil {
				return err
			}
			return tx.Model(&models.ReminderSchedule{}).Where("id = ?", schedule.ID).Updates(updates).Error
		}

		run := models.ReminderRun{
			ScheduleID:   schedule.ID,
			UserID:       schedule.UserID,
			Status:       StatusQueued,
			ScheduledFor: scheduledFor,
		}
		if err := tx.Create(&run).Error; err != nil {
			return err
		}
		queued = true
		return tx.Model(&models.ReminderSchedule{}).Where("id = ?", schedule.ID).Updates(updates).Error
	})
	if err != nil {
		return false, err
	}
	if queued {
		s.wakeWorkers()
	}
	return queued, nil
}

func (s *Scheduler) workerLoop(ctx context.Context, workerID int) {
	idleWait := s.cfg.Tick
	if idleWait <= 0 {
		idleWait = 60 * time.Second
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.wakeCh:
		case <-time.After(idleWait):
		}

		for {
			run, ok, err := s.claimNextQueuedRun(ctx)
			if err != nil {
				s.log.Warn("scheduler_claim_error", "worker", workerID, "error", err.Error())
				break
			}
			if !ok {
				break
			}

			if err := s.executeRun(ctx, workerID, *run); err != nil {
				s.log.Warn("scheduler_run_error", "worker", workerID, "run_id", run.ID, "schedule_id", run.ScheduleID, "error", err.Error())
			}
		}
	}
}

func (s *Scheduler) claimNextQueuedRun(ctx context.Context) (*models.ReminderRun, bool, error) {
	var r models.ReminderRun
	res := s.db.WithContext(ctx).
		Where("status = ?", StatusQueued).
		Order("scheduled_for asc").
		Limit(1).
		Find(&r)
	if res.Error != nil {
		return nil, false, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, false, nil
	}
	now := time.Now().UTC().Unix()
	res2 := s.db.WithContext(ctx).
		Model(&models.ReminderRun{}).
		Where("id = ? AND status = ?", r.ID, StatusQueued).
		Updates(map[string]any{"status": StatusRunning, "started_at": now})
	if res2.Error != nil {
		return nil, false, res2.Error
	}
	if res2.RowsAffected == 0 {
		return nil, false, nil
	}
	r.Status = StatusRunning
	r.StartedAt = &now
	return &r, true, nil
}

func (s *Scheduler) executeRun(ctx context.Context, workerID int, run models.ReminderRun) error {
	runCtx, cancel := context.WithTimeout(ctx, s.cfg.RunTimeout)
	defer cancel()

	s.log.Info("scheduler_run_start", "worker", workerID, "run_id", run.ID, "user_id", run.UserID)

	count, err := s.service.ScanAndRemind(runCtx, run.UserID)
	if err != nil {
		status := StatusFailed
		if errors.Is(err, reminder.ErrScanInProgress) {
			status = StatusSkipped
		}
		return s.finishRun(run.ID, status, truncateString(err.Error(), s.cfg.MaxErrorChars), count)
	}
	return s.finishRun(run.ID, StatusSucceeded, "", count)
}

func (s *Scheduler) finishRun(runID, status, errStr string, mentionCount int) error {
	now := time.Now().UTC().Unix()
	return s.db.
		Model(&models.ReminderRun{}).
		Where("id = ?", runID).
		Updates(map[string]any{
			"status":        status,
			"finished_at":   now,
			"error":         errStr,
			"mention_count": mentionCount,
		}).Error
}

func truncateString(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	return s[:max]
}
