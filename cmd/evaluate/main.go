// Command evaluate runs one entry evaluation cycle. It is triggered
// externally at fixed wall-clock instants; it performs no scheduling of
// its own.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/tradeforge/gexpin/internal/broker"
	"github.com/tradeforge/gexpin/internal/config"
	"github.com/tradeforge/gexpin/internal/entry"
	"github.com/tradeforge/gexpin/internal/lock"
	"github.com/tradeforge/gexpin/internal/market"
	"github.com/tradeforge/gexpin/internal/notify"
	"github.com/tradeforge/gexpin/internal/position"
)

var (
	cfgFile    string
	verbose    bool
	dryRun     bool
	onlyMarket string
	logger     *zap.Logger
	cfg        *config.Config
)

func setupLogger(verbose bool, logCfg *config.LoggingConfig) (*zap.Logger, error) {
	var zapConfig zap.Config
	if verbose {
		zapConfig = zap.NewDevelopmentConfig()
	} else {
		zapConfig = zap.NewProductionConfig()
		zapConfig.DisableStacktrace = true
	}

	if logCfg != nil && logCfg.Level != "" {
		var level zapcore.Level
		if err := level.UnmarshalText([]byte(logCfg.Level)); err == nil {
			zapConfig.Level = zap.NewAtomicLevelAt(level)
		}
	}

	if logCfg != nil && logCfg.Enabled {
		if err := os.MkdirAll(logCfg.Directory, 0755); err != nil {
			return nil, fmt.Errorf("creating logs directory: %w", err)
		}
		timestamp := time.Now().Format("2006-01-02_15-04-05")
		logFile := filepath.Join(logCfg.Directory, fmt.Sprintf("evaluate_%s.log", timestamp))
		zapConfig.OutputPaths = append(zapConfig.OutputPaths, logFile)
	}

	return zapConfig.Build()
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Run one 0DTE credit-spread entry evaluation cycle",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "help" || cmd.Name() == "completion" {
				var err error
				logger, err = setupLogger(verbose, nil)
				return err
			}

			var err error
			cfg, err = config.Load(cfgFile)
			if err != nil {
				return err
			}

			logger, err = setupLogger(verbose, &cfg.Logging)
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context())
		},
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", os.Getenv("GEXPIN_CONFIG"), "config file path (or set GEXPIN_CONFIG)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.Flags().BoolVar(&dryRun, "dry-run", false, "evaluate gates and strikes without placing orders")
	rootCmd.Flags().StringVarP(&onlyMarket, "market", "m", "", "evaluate a single market code instead of all configured")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	defer func() { _ = logger.Sync() }()

	// One evaluator instance system-wide. The guard is released on exit;
	// the lock file itself stays put.
	guard, err := lock.Acquire(cfg.Store.LockFile)
	if err != nil {
		if errors.Is(err, lock.ErrHeld) {
			logger.Warn("another evaluation cycle is running, exiting")
			return nil
		}
		return err
	}
	defer func() { _ = guard.Release() }()

	client := broker.NewClient(
		cfg.Broker.BaseURL,
		cfg.Broker.APIKey,
		cfg.Broker.Account,
		cfg.Broker.RatePerSecond,
		time.Duration(cfg.Broker.TimeoutSec)*time.Second,
		time.Duration(cfg.Broker.RetryDelaySec)*time.Second,
		cfg.Broker.RetryCount,
		logger,
	)

	notifyCfg := notify.LoadConfig()
	if err := notifyCfg.Validate(); err != nil {
		return err
	}
	notifier := notify.New(notifyCfg, logger)

	store := position.NewStore(cfg.Store.PositionsFile)
	clock := market.NewClock()
	evaluator := entry.NewEvaluator(client, store, notifier, clock, cfg, logger, dryRun)

	markets := cfg.Markets
	if onlyMarket != "" {
		markets = []string{onlyMarket}
	}

	var failed bool
	for _, code := range markets {
		if err := evaluator.Run(ctx, code); err != nil {
			logger.Error("evaluation cycle failed", zap.String("market", code), zap.Error(err))
			failed = true
		}
	}
	if failed {
		return errors.New("one or more evaluation cycles failed")
	}
	return nil
}
