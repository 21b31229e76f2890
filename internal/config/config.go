package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Mode    string        `mapstructure:"mode"` // "paper" or "live"
	Markets []string      `mapstructure:"markets"`
	Broker  BrokerConfig  `mapstructure:"broker"`
	Entry   EntryConfig   `mapstructure:"entry"`
	Exit    ExitConfig    `mapstructure:"exit"`
	Store   StoreConfig   `mapstructure:"store"`
	Server  ServerConfig  `mapstructure:"server"`
	Logging LoggingConfig `mapstructure:"logging"`
}

type BrokerConfig struct {
	BaseURL       string `mapstructure:"base_url"`
	StreamURL     string `mapstructure:"stream_url"`
	APIKey        string `mapstructure:"api_key"`
	Account       string `mapstructure:"account"`
	RatePerSecond int    `mapstructure:"rate_per_second"`
	TimeoutSec    int    `mapstructure:"timeout_sec"`
	RetryCount    int    `mapstructure:"retry_count"`
	RetryDelaySec int    `mapstructure:"retry_delay_sec"`
}

type EntryConfig struct {
	WindowStart         string   `mapstructure:"window_start"`      // ET, "HH:MM"
	WindowEnd           string   `mapstructure:"window_end"`        // ET
	LastEntryCutoff     string   `mapstructure:"last_entry_cutoff"` // ET, hard cutoff near the close
	PostOpenBlackoutMin int      `mapstructure:"post_open_blackout_min"`
	VolFloor            float64  `mapstructure:"vol_floor"`
	VolCeiling          float64  `mapstructure:"vol_ceiling"`
	VolSpikeMax         float64  `mapstructure:"vol_spike_max"` // index points over the lookback
	VolSpikeLookbackMin int      `mapstructure:"vol_spike_lookback_min"`
	RSIPeriod           int      `mapstructure:"rsi_period"`
	RSIMin              float64  `mapstructure:"rsi_min"`
	RSIMax              float64  `mapstructure:"rsi_max"`
	ExcludedWeekdays    []string `mapstructure:"excluded_weekdays"`
	MaxOvernightGapPct  float64  `mapstructure:"max_overnight_gap_pct"`
	MaxSlippageFraction float64  `mapstructure:"max_slippage_fraction"` // of expected credit
	MaxOpenPositions    int      `mapstructure:"max_open_positions"`    // per market
	TargetPct           float64  `mapstructure:"target_pct"`
	Quantity            int      `mapstructure:"quantity"`
	FillTimeoutSec      int      `mapstructure:"fill_timeout_sec"`
	FillPollSec         int      `mapstructure:"fill_poll_sec"`
}

type ExitConfig struct {
	TickIntervalSec     int     `mapstructure:"tick_interval_sec"`
	StopLossPct         float64 `mapstructure:"stop_loss_pct"` // single authoritative stop value
	EmergencyStopPct    float64 `mapstructure:"emergency_stop_pct"`
	GracePeriodSec      int     `mapstructure:"grace_period_sec"`
	TrailingArmPct      float64 `mapstructure:"trailing_arm_pct"`
	TrailingLockPct     float64 `mapstructure:"trailing_lock_pct"` // initial lock once armed
	TrailingStepPct     float64 `mapstructure:"trailing_step_pct"` // lock rise per equal peak rise
	HoldProfitPct       float64 `mapstructure:"hold_profit_pct"`
	HoldMaxVol          float64 `mapstructure:"hold_max_vol"`
	HoldMinRemainingMin int     `mapstructure:"hold_min_remaining_min"`
	EODCloseTime        string  `mapstructure:"eod_close_time"` // ET
}

type StoreConfig struct {
	PositionsFile string `mapstructure:"positions_file"`
	LockFile      string `mapstructure:"lock_file"`
	TradeLogFile  string `mapstructure:"trade_log_file"`
}

type ServerConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

type LoggingConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Directory string `mapstructure:"directory"`
	Level     string `mapstructure:"level"`
}

func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("mode", "paper")
	v.SetDefault("markets", []string{"SPX"})
	v.SetDefault("broker.base_url", "https://api.tradier.com")
	v.SetDefault("broker.stream_url", "wss://ws.tradier.com/v1/markets/events")
	v.SetDefault("broker.rate_per_second", 2)
	v.SetDefault("broker.timeout_sec", 30)
	v.SetDefault("broker.retry_count", 3)
	v.SetDefault("broker.retry_delay_sec", 2)
	v.SetDefault("entry.window_start", "09:45")
	v.SetDefault("entry.window_end", "14:30")
	v.SetDefault("entry.last_entry_cutoff", "15:15")
	v.SetDefault("entry.post_open_blackout_min", 15)
	v.SetDefault("entry.vol_floor", 10.0)
	v.SetDefault("entry.vol_ceiling", 28.0)
	v.SetDefault("entry.vol_spike_max", 1.5)
	v.SetDefault("entry.vol_spike_lookback_min", 5)
	v.SetDefault("entry.rsi_period", 14)
	v.SetDefault("entry.rsi_min", 30.0)
	v.SetDefault("entry.rsi_max", 70.0)
	v.SetDefault("entry.excluded_weekdays", []string{})
	v.SetDefault("entry.max_overnight_gap_pct", 0.01)
	v.SetDefault("entry.max_slippage_fraction", 0.25)
	v.SetDefault("entry.max_open_positions", 2)
	v.SetDefault("entry.target_pct", 0.50)
	v.SetDefault("entry.quantity", 1)
	v.SetDefault("entry.fill_timeout_sec", 45)
	v.SetDefault("entry.fill_poll_sec", 3)
	v.SetDefault("exit.tick_interval_sec", 15)
	v.SetDefault("exit.stop_loss_pct", 0.10)
	v.SetDefault("exit.emergency_stop_pct", 0.40)
	v.SetDefault("exit.grace_period_sec", 180)
	v.SetDefault("exit.trailing_arm_pct", 0.40)
	v.SetDefault("exit.trailing_lock_pct", 0.25)
	v.SetDefault("exit.trailing_step_pct", 0.10)
	v.SetDefault("exit.hold_profit_pct", 0.80)
	v.SetDefault("exit.hold_max_vol", 16.0)
	v.SetDefault("exit.hold_min_remaining_min", 60)
	v.SetDefault("exit.eod_close_time", "15:45")
	v.SetDefault("store.positions_file", "state/positions.json")
	v.SetDefault("store.lock_file", "state/evaluate.lock")
	v.SetDefault("store.trade_log_file", "state/trades.jsonl")
	v.SetDefault("server.enabled", false)
	v.SetDefault("server.addr", ":8780")
	v.SetDefault("logging.enabled", true)
	v.SetDefault("logging.directory", "logs")
	v.SetDefault("logging.level", "info")

	// Environment variable support
	v.SetEnvPrefix("GEXPIN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	// Explicitly bind nested keys to env vars
	_ = v.BindEnv("broker.api_key", "GEXPIN_API_KEY")
	_ = v.BindEnv("broker.account", "GEXPIN_ACCOUNT")

	// Load config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("default")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// IsLive reports whether real orders will be placed. Live mode enables
// the momentum and day-of-week gates.
func (c *Config) IsLive() bool {
	return c.Mode == "live"
}
