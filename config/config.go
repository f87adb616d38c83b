package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// StrategyConfig configures one evaluator. Weight is consumed only by the
// aggregator; the evaluator itself never reads it.
type StrategyConfig struct {
	Enabled    bool               `json:"enabled"`
	Weight     float64            `json:"weight"`
	Parameters map[string]float64 `json:"parameters"`

	StopLossPct   float64 `json:"stop_loss_percentage"`
	TakeProfitPct float64 `json:"take_profit_percentage"`
}

// Param returns a named parameter or the given default when unset.
func (c StrategyConfig) Param(key string, def float64) float64 {
	if v, ok := c.Parameters[key]; ok {
		return v
	}
	return def
}

// RiskConfig holds the hard portfolio caps.
type RiskConfig struct {
	MaxPositionNotional decimal.Decimal
	MaxDailyLoss        decimal.Decimal
	MaxPositions        int
	RiskFraction        float64
}

// TradingConfig drives the orchestrator loop.
type TradingConfig struct {
	Symbols         []string
	Interval        string
	CandleLimit     int
	RefreshInterval time.Duration
	Cooldown        time.Duration
	MinStrength     float64
}

type Config struct {
	BinanceAPIKey    string
	BinanceSecretKey string
	Testnet          bool
	TradingEnabled   bool

	TelegramToken    string
	AuthorizedUserID int64

	MetricsAddr  string
	LogLevel     string
	DatabasePath string

	Trading    TradingConfig
	Risk       RiskConfig
	Strategies map[string]StrategyConfig
}

// jsonConfig mirrors the on-disk config file layout.
type jsonConfig struct {
	Trading struct {
		DefaultSymbols  []string `json:"default_symbols"`
		Interval        string   `json:"interval"`
		CandleLimit     int      `json:"candle_limit"`
		RefreshInterval int      `json:"refresh_interval"`
		CooldownMinutes int      `json:"cooldown_minutes"`
		MinStrength     float64  `json:"min_strength"`
		RiskManagement  struct {
			MaxPositionSizeUSD float64 `json:"max_position_size_usd"`
			MaxDailyLossUSD    float64 `json:"max_daily_loss_usd"`
			MaxPositions       int     `json:"max_positions"`
			RiskPercentage     float64 `json:"risk_percentage"`
		} `json:"risk_management"`
	} `json:"trading"`
	Strategies map[string]StrategyConfig `json:"strategies"`
	Database   struct {
		Path string `json:"path"`
	} `json:"database"`
	Logging struct {
		Level string `json:"level"`
	} `json:"logging"`
	Metrics struct {
		Addr string `json:"addr"`
	} `json:"metrics"`
}

func defaults() *Config {
	return &Config{
		MetricsAddr:  ":9090",
		LogLevel:     "info",
		DatabasePath: "data/trading.db",
		Trading: TradingConfig{
			Symbols:         []string{"BTCUSDT", "ETHUSDT", "SOLUSDT"},
			Interval:        "15m",
			CandleLimit:     200,
			RefreshInterval: 60 * time.Second,
			Cooldown:        5 * time.Minute,
			MinStrength:     0.8,
		},
		Risk: RiskConfig{
			MaxPositionNotional: decimal.NewFromInt(1000),
			MaxDailyLoss:        decimal.NewFromInt(100),
			MaxPositions:        3,
			RiskFraction:        0.02,
		},
		Strategies: map[string]StrategyConfig{
			"trend_following": {Enabled: true, Weight: 1.0, StopLossPct: 2.0, TakeProfitPct: 5.0},
			"rsi_macd":        {Enabled: true, Weight: 1.0, StopLossPct: 2.0, TakeProfitPct: 5.0},
			"breakout":        {Enabled: true, Weight: 1.0, StopLossPct: 2.0, TakeProfitPct: 5.0},
			"volume_spike":    {Enabled: true, Weight: 1.0, StopLossPct: 2.0, TakeProfitPct: 5.0},
		},
	}
}

// Load reads .env (when present), the JSON config file named by CONFIG_PATH
// and environment overrides, in that order.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := defaults()

	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config/config.json"
	}
	if raw, err := os.ReadFile(path); err == nil {
		if err := cfg.applyFile(raw); err != nil {
			return nil, fmt.Errorf("config %s: %w", path, err)
		}
	}

	cfg.BinanceAPIKey = os.Getenv("BINANCE_API_KEY")
	cfg.BinanceSecretKey = os.Getenv("BINANCE_SECRET_KEY")
	cfg.Testnet = envBool("BINANCE_TESTNET", true)
	cfg.TradingEnabled = envBool("TRADING_ENABLED", false)
	cfg.TelegramToken = os.Getenv("TELEGRAM_BOT_TOKEN")

	if v := os.Getenv("AUTHORIZED_USER_ID"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid AUTHORIZED_USER_ID: %w", err)
		}
		cfg.AuthorizedUserID = id
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("DATABASE_PATH"); v != "" {
		cfg.DatabasePath = v
	}
	if v := os.Getenv("METRICS_ADDR"); v != "" {
		cfg.MetricsAddr = v
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyFile(raw []byte) error {
	var jc jsonConfig
	if err := json.Unmarshal(raw, &jc); err != nil {
		return err
	}

	if len(jc.Trading.DefaultSymbols) > 0 {
		c.Trading.Symbols = jc.Trading.DefaultSymbols
	}
	if jc.Trading.Interval != "" {
		c.Trading.Interval = jc.Trading.Interval
	}
	if jc.Trading.CandleLimit > 0 {
		c.Trading.CandleLimit = jc.Trading.CandleLimit
	}
	if jc.Trading.RefreshInterval > 0 {
		c.Trading.RefreshInterval = time.Duration(jc.Trading.RefreshInterval) * time.Second
	}
	if jc.Trading.CooldownMinutes > 0 {
		c.Trading.Cooldown = time.Duration(jc.Trading.CooldownMinutes) * time.Minute
	}
	if jc.Trading.MinStrength > 0 {
		c.Trading.MinStrength = jc.Trading.MinStrength
	}

	rm := jc.Trading.RiskManagement
	if rm.MaxPositionSizeUSD > 0 {
		c.Risk.MaxPositionNotional = decimal.NewFromFloat(rm.MaxPositionSizeUSD)
	}
	if rm.MaxDailyLossUSD > 0 {
		c.Risk.MaxDailyLoss = decimal.NewFromFloat(rm.MaxDailyLossUSD)
	}
	if rm.MaxPositions > 0 {
		c.Risk.MaxPositions = rm.MaxPositions
	}
	if rm.RiskPercentage > 0 {
		c.Risk.RiskFraction = rm.RiskPercentage
	}

	for name, sc := range jc.Strategies {
		base, ok := c.Strategies[name]
		if !ok {
			// Unknown names are rejected later by the strategy registry;
			// keep the block so the error names the offender.
			base = StrategyConfig{Weight: 1.0, StopLossPct: 2.0, TakeProfitPct: 5.0}
		}
		base.Enabled = sc.Enabled
		if sc.Weight > 0 {
			base.Weight = sc.Weight
		}
		if sc.Parameters != nil {
			base.Parameters = sc.Parameters
		}
		if sc.StopLossPct > 0 {
			base.StopLossPct = sc.StopLossPct
		}
		if sc.TakeProfitPct > 0 {
			base.TakeProfitPct = sc.TakeProfitPct
		}
		c.Strategies[name] = base
	}

	if jc.Database.Path != "" {
		c.DatabasePath = jc.Database.Path
	}
	if jc.Logging.Level != "" {
		c.LogLevel = jc.Logging.Level
	}
	if jc.Metrics.Addr != "" {
		c.MetricsAddr = jc.Metrics.Addr
	}
	return nil
}

func (c *Config) validate() error {
	if len(c.Trading.Symbols) == 0 {
		return fmt.Errorf("no trading symbols configured")
	}
	if c.Risk.RiskFraction <= 0 || c.Risk.RiskFraction >= 1 {
		return fmt.Errorf("risk_percentage must be in (0,1), got %f", c.Risk.RiskFraction)
	}
	if c.Trading.MinStrength <= 0 {
		return fmt.Errorf("min_strength must be positive")
	}
	return nil
}

func envBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
