package strategy

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"trading_assistant/config"
	"trading_assistant/internal/models"
)

// Breakout detects closes beyond a well-tested local extreme. The lookback
// window excludes the trailing confirmation candles, and an extreme only
// counts when enough candles touched it within the threshold band.
type Breakout struct {
	Base
}

func NewBreakout(cfg config.StrategyConfig, log zerolog.Logger) *Breakout {
	return &Breakout{Base: newBase("breakout", cfg, log)}
}

func (s *Breakout) RequiredCandles() int {
	lookback := int(s.cfg.Param("lookback_period", 20))
	confirmation := int(s.cfg.Param("confirmation_candles", 2))
	return lookback + confirmation
}

func (s *Breakout) Evaluate(candles []models.Candle, symbol string) (*models.TradingSignal, error) {
	if !s.Enabled() || len(candles) < s.RequiredCandles() {
		return nil, nil
	}

	lookback := int(s.cfg.Param("lookback_period", 20))
	confirmation := int(s.cfg.Param("confirmation_candles", 2))
	minTouches := int(s.cfg.Param("min_touchpoints", 3))
	threshold := decimal.NewFromFloat(s.cfg.Param("threshold", 0.003))

	hist := candles[len(candles)-lookback-confirmation : len(candles)-confirmation]
	confirm := candles[len(candles)-confirmation:]

	highest := hist[0].High
	lowest := hist[0].Low
	for _, c := range hist[1:] {
		if c.High.GreaterThan(highest) {
			highest = c.High
		}
		if c.Low.LessThan(lowest) {
			lowest = c.Low
		}
	}

	one := decimal.NewFromInt(1)
	highBand := highest.Mul(one.Sub(threshold))
	lowBand := lowest.Mul(one.Add(threshold))
	var touchHigh, touchLow int
	for _, c := range hist {
		if c.High.GreaterThanOrEqual(highBand) {
			touchHigh++
		}
		if c.Low.LessThanOrEqual(lowBand) {
			touchLow++
		}
	}
	if touchHigh < minTouches && touchLow < minTouches {
		return nil, nil
	}

	buyLevel := highest.Mul(one.Add(threshold))
	sellLevel := lowest.Mul(one.Sub(threshold))
	price := candles[len(candles)-1].Close

	// First qualifying close wins; the buy side is checked before the sell
	// side within each confirmation candle, matching how touch counts and
	// confirmation share one threshold band.
	var sigType models.SignalType
	var confidence float64
	var reason string
	for _, c := range confirm {
		if c.Close.GreaterThan(buyLevel) {
			sigType = models.SignalBuy
			confidence = min(0.9, 0.5+float64(touchHigh)/float64(minTouches)*0.1)
			reason = fmt.Sprintf("Breakout above local high %s", highest.StringFixed(4))
			break
		}
		if c.Close.LessThan(sellLevel) {
			sigType = models.SignalSell
			confidence = min(0.9, 0.5+float64(touchLow)/float64(minTouches)*0.1)
			reason = fmt.Sprintf("Breakout below local low %s", lowest.StringFixed(4))
			break
		}
	}
	if sigType == "" || confidence < 0.5 {
		return nil, nil
	}

	ind := map[string]string{
		"highest_high": highest.String(),
		"lowest_low":   lowest.String(),
		"touch_high":   fmt.Sprint(touchHigh),
		"touch_low":    fmt.Sprint(touchLow),
	}
	return s.signal(sigType, symbol, confidence, price, reason, ind), nil
}
