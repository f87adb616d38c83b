package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"trading_assistant/config"
	"trading_assistant/internal/aggregator"
	"trading_assistant/internal/engine"
	"trading_assistant/internal/exchange"
	"trading_assistant/internal/metrics"
	"trading_assistant/internal/orchestrator"
	"trading_assistant/internal/risk"
	"trading_assistant/internal/storage"
	"trading_assistant/internal/strategy"
	"trading_assistant/internal/telegram"
)

// paperBalance is the starting equity when live trading is disabled.
var paperBalance = decimal.NewFromInt(10000)

func main() {
	log := newLogger(os.Getenv("LOG_LEVEL"))

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("configuration invalid")
	}
	log = newLogger(cfg.LogLevel)

	// run owns every resource so its defers fire even on a fatal loop error;
	// os.Exit lives only here, after they have run.
	if err := run(cfg, log); err != nil {
		log.Error().Err(err).Msg("trading loop halted")
		os.Exit(1)
	}
	log.Info().Msg("shutdown complete")
}

func run(cfg *config.Config, log zerolog.Logger) error {
	log.Info().Strs("symbols", cfg.Trading.Symbols).
		Bool("testnet", cfg.Testnet).Bool("live", cfg.TradingEnabled).
		Msg("starting trading assistant")

	if err := os.MkdirAll(filepath.Dir(cfg.DatabasePath), 0o755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}
	db, err := storage.Open(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	futuresClient := exchange.NewFuturesClient(cfg.BinanceAPIKey, cfg.BinanceSecretKey, cfg.Testnet, log)
	var client exchange.Client = futuresClient
	if !cfg.TradingEnabled {
		log.Warn().Msg("live trading disabled, orders go to the paper client")
		client = exchange.NewPaperClient(paperBalance, futuresClient, log)
	}

	strategies, err := strategy.BuildAll(cfg.Strategies, log)
	if err != nil {
		return fmt.Errorf("strategy configuration invalid: %w", err)
	}
	if len(strategies) == 0 {
		return fmt.Errorf("no strategies enabled")
	}

	riskMgr := risk.New(cfg.Risk, log)
	agg := aggregator.New(cfg.Trading.MinStrength, log)

	eng := engine.New(client, db.Trades(), db.Positions(), nil, log)
	if err := eng.Restore(); err != nil {
		return fmt.Errorf("restore positions: %w", err)
	}

	orch := orchestrator.New(cfg.Trading, client, strategies, agg, riskMgr, eng,
		db.Candles(), db.Trades(), nil, log)

	if cfg.TelegramToken != "" {
		bot, err := telegram.NewBot(cfg.TelegramToken, cfg.AuthorizedUserID, orch, db.Trades(), log)
		if err != nil {
			return fmt.Errorf("telegram bot: %w", err)
		}
		eng.SetNotifier(bot)
		orch.SetNotifier(bot)
		go bot.Start()
		defer bot.Shutdown()
	}

	srv := metrics.Serve(cfg.MetricsAddr)
	defer srv.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		orch.Stop()
	}()

	return orch.Run(ctx)
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		Level(lvl).With().Timestamp().Logger()
}
