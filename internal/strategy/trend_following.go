package strategy

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"trading_assistant/config"
	"trading_assistant/internal/indicators"
	"trading_assistant/internal/models"
)

// TrendFollowing trades fast/slow EMA crossovers, with price momentum and
// volume expansion as confidence bonuses.
type TrendFollowing struct {
	Base
}

func NewTrendFollowing(cfg config.StrategyConfig, log zerolog.Logger) *TrendFollowing {
	return &TrendFollowing{Base: newBase("trend_following", cfg, log)}
}

func (s *TrendFollowing) RequiredCandles() int {
	slow := int(s.cfg.Param("slow_period", 21))
	return slow + 10
}

func (s *TrendFollowing) Evaluate(candles []models.Candle, symbol string) (*models.TradingSignal, error) {
	if !s.Enabled() || len(candles) < s.RequiredCandles() {
		return nil, nil
	}

	fastPeriod := int(s.cfg.Param("fast_period", 9))
	slowPeriod := int(s.cfg.Param("slow_period", 21))

	fastMA := indicators.EMA(candles, fastPeriod)
	slowMA := indicators.EMA(candles, slowPeriod)
	if len(fastMA) < 2 || len(slowMA) < 2 {
		return nil, nil
	}

	fastCur := fastMA[len(fastMA)-1]
	fastPrev := fastMA[len(fastMA)-2]
	slowCur := slowMA[len(slowMA)-1]
	slowPrev := slowMA[len(slowMA)-2]
	price := candles[len(candles)-1].Close

	var sigType models.SignalType
	var reason string
	switch {
	case fastPrev.LessThanOrEqual(slowPrev) && fastCur.GreaterThan(slowCur):
		sigType = models.SignalBuy
		reason = fmt.Sprintf("Fast MA (%s) crossed above slow MA (%s)",
			fastCur.StringFixed(4), slowCur.StringFixed(4))
	case fastPrev.GreaterThanOrEqual(slowPrev) && fastCur.LessThan(slowCur):
		sigType = models.SignalSell
		reason = fmt.Sprintf("Fast MA (%s) crossed below slow MA (%s)",
			fastCur.StringFixed(4), slowCur.StringFixed(4))
	default:
		return nil, nil
	}

	momentum := priceMomentum(candles[len(candles)-10:])
	volumeOK := volumeConfirmation(candles[len(candles)-3:])

	confidence := 0.6
	if (sigType == models.SignalBuy && momentum > 0) ||
		(sigType == models.SignalSell && momentum < 0) {
		confidence += 0.2
	}
	if volumeOK {
		confidence += 0.1
	}
	if confidence < 0.5 {
		return nil, nil
	}

	ind := map[string]string{
		"fast_ma":        fastCur.String(),
		"slow_ma":        slowCur.String(),
		"fast_period":    fmt.Sprint(fastPeriod),
		"slow_period":    fmt.Sprint(slowPeriod),
		"price_momentum": fmt.Sprintf("%.6f", momentum),
		"volume_confirm": fmt.Sprint(volumeOK),
	}
	return s.signal(sigType, symbol, confidence, price, reason, ind), nil
}

// priceMomentum is the relative close-to-close change over the window,
// positive for a rising trend.
func priceMomentum(candles []models.Candle) float64 {
	if len(candles) < 2 {
		return 0
	}
	start := candles[0].Close
	end := candles[len(candles)-1].Close
	if start.IsZero() {
		return 0
	}
	m, _ := end.Sub(start).Div(start).Float64()
	return m
}

// volumeConfirmation reports whether the latest volume exceeds the prior
// candles' average by more than 20%.
func volumeConfirmation(candles []models.Candle) bool {
	if len(candles) < 3 {
		return false
	}
	sum := decimal.Zero
	for _, c := range candles[:len(candles)-1] {
		sum = sum.Add(c.Volume)
	}
	avg := sum.Div(decimal.NewFromInt(int64(len(candles) - 1)))
	return candles[len(candles)-1].Volume.GreaterThan(avg.Mul(decimal.RequireFromString("1.2")))
}
