package scheduler

import (
	"fmt"

	"github.com/robfig/cron/v3"
)

// scheduleParser accepts standard 5-field cron expressions
// (minute hour day month weekday)
var scheduleParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// ValidateSchedule reports whether expr is a valid cron expression. It is
// injected into the source domain as its ScheduleValidator.
func ValidateSchedule(expr string) error {
	if _, err := scheduleParser.Parse(expr); err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}
	return nil
}
