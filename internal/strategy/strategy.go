// Package strategy contains the technical-analysis evaluators. Each one
// consumes a candle window and emits at most one signal per invocation;
// their weights are applied later by the aggregator, never here.
package strategy

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"trading_assistant/config"
	"trading_assistant/internal/models"
)

// Strategy is the common evaluator contract. Evaluate returns (nil, nil)
// when the window is too short, the evaluator is disabled, or no setup is
// present; an error means the evaluation itself failed and the caller
// decides whether to continue.
type Strategy interface {
	Name() string
	Evaluate(candles []models.Candle, symbol string) (*models.TradingSignal, error)
	RequiredCandles() int
	Weight() float64
	Enabled() bool
}

// Base carries the per-strategy configuration and the advisory helpers all
// evaluators share.
type Base struct {
	name string
	cfg  config.StrategyConfig
	log  zerolog.Logger
}

func newBase(name string, cfg config.StrategyConfig, log zerolog.Logger) Base {
	return Base{
		name: name,
		cfg:  cfg,
		log:  log.With().Str("strategy", name).Logger(),
	}
}

func (b Base) Name() string    { return b.name }
func (b Base) Weight() float64 { return b.cfg.Weight }
func (b Base) Enabled() bool   { return b.cfg.Enabled }

// stopLoss offsets the reference price by the configured percentage in the
// direction that protects the position.
func (b Base) stopLoss(t models.SignalType, price decimal.Decimal) *decimal.Decimal {
	pct := decimal.NewFromFloat(b.cfg.StopLossPct / 100)
	var v decimal.Decimal
	if t == models.SignalBuy {
		v = price.Mul(decimal.NewFromInt(1).Sub(pct))
	} else {
		v = price.Mul(decimal.NewFromInt(1).Add(pct))
	}
	return &v
}

func (b Base) takeProfit(t models.SignalType, price decimal.Decimal) *decimal.Decimal {
	pct := decimal.NewFromFloat(b.cfg.TakeProfitPct / 100)
	var v decimal.Decimal
	if t == models.SignalBuy {
		v = price.Mul(decimal.NewFromInt(1).Add(pct))
	} else {
		v = price.Mul(decimal.NewFromInt(1).Sub(pct))
	}
	return &v
}

// signal assembles the common fields of an emitted signal.
func (b Base) signal(t models.SignalType, symbol string, confidence float64,
	price decimal.Decimal, reason string, ind map[string]string) *models.TradingSignal {

	return &models.TradingSignal{
		StrategyName:        b.name,
		Symbol:              symbol,
		Type:                t,
		Strength:            models.StrengthFromConfidence(confidence),
		Confidence:          confidence,
		Price:               price,
		Timestamp:           time.Now(),
		Indicators:          ind,
		Reason:              reason,
		SuggestedStopLoss:   b.stopLoss(t, price),
		SuggestedTakeProfit: b.takeProfit(t, price),
	}
}

// New resolves a strategy by its configuration name. Unknown names are a
// configuration error and must be rejected before the trading loop starts.
func New(name string, cfg config.StrategyConfig, log zerolog.Logger) (Strategy, error) {
	switch name {
	case "trend_following":
		return NewTrendFollowing(cfg, log), nil
	case "rsi_macd":
		return NewRsiMacd(cfg, log), nil
	case "breakout":
		return NewBreakout(cfg, log), nil
	case "volume_spike":
		return NewVolumeSpike(cfg, log), nil
	default:
		return nil, fmt.Errorf("unknown strategy: %s", name)
	}
}

// BuildAll instantiates every enabled strategy in the configuration map.
// Unknown names fail even when disabled, so a typo in the config cannot
// silently drop a strategy.
func BuildAll(cfgs map[string]config.StrategyConfig, log zerolog.Logger) ([]Strategy, error) {
	out := make([]Strategy, 0, len(cfgs))
	for name, cfg := range cfgs {
		s, err := New(name, cfg, log)
		if err != nil {
			return nil, err
		}
		if !cfg.Enabled {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}
