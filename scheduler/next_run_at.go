package scheduler

import (
	"fmt"
	"time"

	"github.com/cw35/slackminder/db/models"
)

// CadenceInterval maps a cadence keyword to its wall-clock interval.
func CadenceInterval(cadence string) (time.Duration, error) {
	switch cadence {
	case models.CadenceHourly:
		return time.Hour, nil
	case models.CadenceDaily:
		return 24 * time.Hour, nil
	case models.CadenceWeekly:
		return 7 * 24 * time.Hour, nil
	}
	return 0, fmt.Errorf("unknown cadence %q", cadence)
}

func nextRunAt(schedule models.ReminderSchedule, afterUnix int64) (int64, error) {
	interval, err := CadenceInterval(schedule.Cadence)
	if err != nil {
		return 0, err
	}
	after := time.Unix(afterUnix, 0).UTC()
	return after.Add(interval).Unix(), nil
}
