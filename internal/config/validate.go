package config

import (
	"fmt"
	"time"
)

// Validate performs business-rule validation on the loaded configuration and
// resolves derived fields. Load calls it automatically.
func (c *Config) Validate() error {
	kc := c.Auth.Keycloak()
	if err := kc.Validate(); err != nil {
		return fmt.Errorf("auth keycloak: %w", err)
	}

	if err := c.Timesheet.validate(); err != nil {
		return fmt.Errorf("timesheet: %w", err)
	}

	if c.Redis.Addr != "" && c.Redis.LockTTL <= 0 {
		return fmt.Errorf("redis.lock_ttl must be > 0 (got %s)", c.Redis.LockTTL)
	}

	return nil
}

func (t *TimesheetConfig) validate() error {
	if t.DailyCapHours <= 0 || t.DailyCapHours > 24 {
		return fmt.Errorf("daily_cap_hours must be in (0, 24] (got %v)", t.DailyCapHours)
	}
	if t.ManualStartHour < 0 || t.ManualStartHour > 23 {
		return fmt.Errorf("manual_start_hour must be in [0, 23] (got %d)", t.ManualStartHour)
	}

	loc, err := time.LoadLocation(t.Timezone)
	if err != nil {
		return fmt.Errorf("timezone %q: %w", t.Timezone, err)
	}
	t.Location = loc

	return nil
}
