// Command monitor runs the position exit loop: it polls the shared
// position store and drives every open position through the exit policy
// until closed.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
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
	"github.com/tradeforge/gexpin/internal/exit"
	"github.com/tradeforge/gexpin/internal/market"
	"github.com/tradeforge/gexpin/internal/notify"
	"github.com/tradeforge/gexpin/internal/position"
	"github.com/tradeforge/gexpin/internal/server"
	"github.com/tradeforge/gexpin/internal/tradelog"
)

var (
	cfgFile string
	verbose bool
	logger  *zap.Logger
	cfg     *config.Config
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
		logFile := filepath.Join(logCfg.Directory, fmt.Sprintf("monitor_%s.log", timestamp))
		zapConfig.OutputPaths = append(zapConfig.OutputPaths, logFile)
	}

	return zapConfig.Build()
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "monitor",
		Short: "Monitor open 0DTE positions against the exit policy",
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

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	defer func() { _ = logger.Sync() }()

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
	trades := tradelog.New(cfg.Store.TradeLogFile)
	clock := market.NewClock()

	// Streamed prices are a fast-path supplement; the monitor works fine
	// on REST polls alone.
	var stream *broker.Stream
	if cfg.Broker.StreamURL != "" {
		symbols := make([]string, 0, len(cfg.Markets))
		for _, code := range cfg.Markets {
			idx, err := market.Lookup(code)
			if err != nil {
				return err
			}
			symbols = append(symbols, idx.Symbol)
		}
		stream = broker.NewStream(cfg.Broker.StreamURL, cfg.Broker.APIKey, symbols, logger)
		go stream.Run(ctx)
	}

	if cfg.Server.Enabled {
		srv := &http.Server{
			Addr:              cfg.Server.Addr,
			Handler:           server.New(store, trades, clock, logger).Router(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			logger.Info("status server listening", zap.String("addr", cfg.Server.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("status server failed", zap.Error(err))
			}
		}()
		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	monitor := exit.NewMonitor(client, store, trades, notifier, clock, cfg, logger, stream)
	return monitor.Run(ctx)
}
