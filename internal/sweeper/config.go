package sweeper

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/reelforge/reelforge/internal/config"
)

// TimeOfDay is a wall-clock moment within a day.
type TimeOfDay struct {
	Hour   int
	Minute int
}

// ParseTimeOfDay parses "HH:MM".
func ParseTimeOfDay(value string) (TimeOfDay, error) {
	parts := strings.SplitN(strings.TrimSpace(value), ":", 2)
	if len(parts) != 2 {
		return TimeOfDay{}, fmt.Errorf("invalid time of day %q", value)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return TimeOfDay{}, fmt.Errorf("invalid hour in %q", value)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return TimeOfDay{}, fmt.Errorf("invalid minute in %q", value)
	}
	return TimeOfDay{Hour: hour, Minute: minute}, nil
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// Config controls sweep schedule and job limits.
type Config struct {
	// DailyAt is the wall-clock time of the daily sweep.
	DailyAt TimeOfDay
	// MonthlyAt is the wall-clock time of the monthly sweep, run on
	// MonthlyDay of each month. MonthlyDay is clamped to the last day of
	// short months.
	MonthlyAt  TimeOfDay
	MonthlyDay int
	JobTimeout time.Duration
	Location   *time.Location
}

func DefaultConfig() Config {
	return Config{
		DailyAt:    TimeOfDay{Hour: 0, Minute: 0},
		MonthlyAt:  TimeOfDay{Hour: 0, Minute: 5},
		MonthlyDay: 1,
		JobTimeout: 5 * time.Minute,
		Location:   time.Local,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.MonthlyDay <= 0 || c.MonthlyDay > 31 {
		c.MonthlyDay = defaults.MonthlyDay
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = defaults.JobTimeout
	}
	if c.Location == nil {
		c.Location = defaults.Location
	}
	return c
}

// ProvideConfig builds the sweep schedule from application config.
func ProvideConfig(cfg config.Config) (Config, error) {
	dailyAt, err := ParseTimeOfDay(cfg.SweepDailyAt)
	if err != nil {
		return Config{}, fmt.Errorf("SWEEP_DAILY_AT: %w", err)
	}
	monthlyAt, err := ParseTimeOfDay(cfg.SweepMonthlyAt)
	if err != nil {
		return Config{}, fmt.Errorf("SWEEP_MONTHLY_AT: %w", err)
	}
	loc, err := time.LoadLocation(cfg.SweepTimezone)
	if err != nil {
		return Config{}, fmt.Errorf("SWEEP_TIMEZONE: %w", err)
	}
	return Config{
		DailyAt:    dailyAt,
		MonthlyAt:  monthlyAt,
		MonthlyDay: cfg.SweepMonthlyDay,
		Location:   loc,
	}.withDefaults(), nil
}
