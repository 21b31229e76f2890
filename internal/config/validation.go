package config

import (
	"fmt"
	"time"

	"github.com/tradeforge/gexpin/internal/market"
)

// Validate rejects unusable configuration at startup, before any position
// is touched.
func (c *Config) Validate() error {
	if c.Mode != "paper" && c.Mode != "live" {
		return fmt.Errorf("mode must be \"paper\" or \"live\", got %q", c.Mode)
	}
	if len(c.Markets) == 0 {
		return fmt.Errorf("at least one market is required")
	}
	for _, code := range c.Markets {
		if _, err := market.Lookup(code); err != nil {
			return err
		}
	}
	if c.Broker.APIKey == "" {
		return fmt.Errorf("broker api_key is required (set GEXPIN_API_KEY env var)")
	}
	if c.Broker.Account == "" {
		return fmt.Errorf("broker account is required (set GEXPIN_ACCOUNT env var)")
	}
	if c.Broker.RatePerSecond < 1 {
		return fmt.Errorf("broker rate_per_second must be >= 1")
	}

	for name, clock := range map[string]string{
		"entry.window_start":      c.Entry.WindowStart,
		"entry.window_end":        c.Entry.WindowEnd,
		"entry.last_entry_cutoff": c.Entry.LastEntryCutoff,
		"exit.eod_close_time":     c.Exit.EODCloseTime,
	} {
		if _, _, err := ParseClock(clock); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}

	for _, day := range c.Entry.ExcludedWeekdays {
		if _, err := ParseWeekday(day); err != nil {
			return err
		}
	}

	if c.Entry.TargetPct <= 0 || c.Entry.TargetPct >= 1 {
		return fmt.Errorf("entry.target_pct must be in (0, 1)")
	}
	if c.Entry.Quantity < 1 {
		return fmt.Errorf("entry.quantity must be >= 1")
	}
	if c.Entry.MaxOpenPositions < 1 {
		return fmt.Errorf("entry.max_open_positions must be >= 1")
	}
	if c.Exit.StopLossPct <= 0 {
		return fmt.Errorf("exit.stop_loss_pct must be positive")
	}
	if c.Exit.EmergencyStopPct <= c.Exit.StopLossPct {
		return fmt.Errorf("exit.emergency_stop_pct must exceed exit.stop_loss_pct")
	}
	if c.Exit.TickIntervalSec < 1 {
		return fmt.Errorf("exit.tick_interval_sec must be >= 1")
	}
	if c.Exit.TrailingLockPct >= c.Exit.TrailingArmPct {
		return fmt.Errorf("exit.trailing_lock_pct must be below exit.trailing_arm_pct")
	}
	return nil
}

// ParseClock parses an "HH:MM" wall-clock string.
func ParseClock(s string) (hour, minute int, err error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid clock time %q (want HH:MM): %w", s, err)
	}
	return t.Hour(), t.Minute(), nil
}

// ParseWeekday parses a weekday name.
func ParseWeekday(s string) (time.Weekday, error) {
	days := map[string]time.Weekday{
		"Sunday": time.Sunday, "Monday": time.Monday, "Tuesday": time.Tuesday,
		"Wednesday": time.Wednesday, "Thursday": time.Thursday,
		"Friday": time.Friday, "Saturday": time.Saturday,
	}
	d, ok := days[s]
	if !ok {
		return 0, fmt.Errorf("invalid weekday %q", s)
	}
	return d, nil
}
