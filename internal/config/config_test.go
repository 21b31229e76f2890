package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaultsWithCredentials(t *testing.T) {
	t.Setenv("GEXPIN_API_KEY", "test-key")
	t.Setenv("GEXPIN_ACCOUNT", "test-acct")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Mode != "paper" {
		t.Errorf("default mode = %q, want paper", cfg.Mode)
	}
	if len(cfg.Markets) != 1 || cfg.Markets[0] != "SPX" {
		t.Errorf("default markets = %v", cfg.Markets)
	}
	if cfg.Exit.StopLossPct != 0.10 || cfg.Exit.EmergencyStopPct != 0.40 {
		t.Errorf("default stops = %.2f / %.2f", cfg.Exit.StopLossPct, cfg.Exit.EmergencyStopPct)
	}
	if cfg.Broker.APIKey != "test-key" || cfg.Broker.Account != "test-acct" {
		t.Error("credentials not read from environment")
	}
	if cfg.IsLive() {
		t.Error("paper mode reported as live")
	}
}

func TestLoadMissingCredentials(t *testing.T) {
	t.Setenv("GEXPIN_API_KEY", "")
	t.Setenv("GEXPIN_ACCOUNT", "")

	if _, err := Load(""); err == nil {
		t.Fatal("expected validation error without credentials")
	}
}

func TestLoadYAMLFile(t *testing.T) {
	t.Setenv("GEXPIN_API_KEY", "test-key")
	t.Setenv("GEXPIN_ACCOUNT", "test-acct")

	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := strings.Join([]string{
		"mode: live",
		"markets:",
		"  - SPX",
		"  - NDX",
		"entry:",
		"  window_start: \"10:00\"",
		"exit:",
		"  stop_loss_pct: 0.12",
	}, "\n")
	if err := os.WriteFile(path, []byte(yaml), 0600); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.IsLive() {
		t.Error("mode not read from file")
	}
	if len(cfg.Markets) != 2 {
		t.Errorf("markets = %v", cfg.Markets)
	}
	if cfg.Entry.WindowStart != "10:00" {
		t.Errorf("window start = %q", cfg.Entry.WindowStart)
	}
	if cfg.Exit.StopLossPct != 0.12 {
		t.Errorf("stop = %.2f", cfg.Exit.StopLossPct)
	}
	// Untouched keys keep their defaults.
	if cfg.Entry.WindowEnd != "14:30" {
		t.Errorf("window end default lost: %q", cfg.Entry.WindowEnd)
	}
}

func TestValidateRejections(t *testing.T) {
	base := func() *Config {
		t.Setenv("GEXPIN_API_KEY", "k")
		t.Setenv("GEXPIN_ACCOUNT", "a")
		cfg, err := Load("")
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		return cfg
	}

	cases := []struct {
		name string
		mod  func(*Config)
	}{
		{"bad mode", func(c *Config) { c.Mode = "backtest" }},
		{"no markets", func(c *Config) { c.Markets = nil }},
		{"unknown market", func(c *Config) { c.Markets = []string{"DAX"} }},
		{"bad clock", func(c *Config) { c.Entry.WindowStart = "9am" }},
		{"bad weekday", func(c *Config) { c.Entry.ExcludedWeekdays = []string{"Funday"} }},
		{"target out of range", func(c *Config) { c.Entry.TargetPct = 1.5 }},
		{"emergency below stop", func(c *Config) { c.Exit.EmergencyStopPct = 0.05 }},
		{"lock above arm", func(c *Config) { c.Exit.TrailingLockPct = 0.50 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := base()
			tc.mod(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestParseClock(t *testing.T) {
	h, m, err := ParseClock("15:45")
	if err != nil || h != 15 || m != 45 {
		t.Errorf("ParseClock(15:45) = %d:%d, %v", h, m, err)
	}
	if _, _, err := ParseClock("25:00"); err == nil {
		t.Error("expected error for hour 25")
	}
}

func TestParseWeekday(t *testing.T) {
	d, err := ParseWeekday("Friday")
	if err != nil || d != time.Friday {
		t.Errorf("ParseWeekday(Friday) = %v, %v", d, err)
	}
	if _, err := ParseWeekday("friday"); err == nil {
		t.Error("weekday names are case-sensitive")
	}
}
