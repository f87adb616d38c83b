package strategy

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"trading_assistant/config"
	"trading_assistant/internal/indicators"
	"trading_assistant/internal/models"
)

// RsiMacd combines the relative-strength oscillator with the MACD lines,
// counting independent bullish/bearish conditions each cycle.
type RsiMacd struct {
	Base
}

func NewRsiMacd(cfg config.StrategyConfig, log zerolog.Logger) *RsiMacd {
	return &RsiMacd{Base: newBase("rsi_macd", cfg, log)}
}

func (s *RsiMacd) RequiredCandles() int {
	rsiPeriod := int(s.cfg.Param("rsi_period", 14))
	macdSlow := int(s.cfg.Param("macd_slow", 26))
	macdSignal := int(s.cfg.Param("macd_signal", 9))

	need := macdSlow + macdSignal
	if rsiPeriod > need {
		need = rsiPeriod
	}
	return need + 10
}

func (s *RsiMacd) Evaluate(candles []models.Candle, symbol string) (*models.TradingSignal, error) {
	if !s.Enabled() || len(candles) < s.RequiredCandles() {
		return nil, nil
	}

	rsiPeriod := int(s.cfg.Param("rsi_period", 14))
	overbought := s.cfg.Param("rsi_overbought", 70)
	oversold := s.cfg.Param("rsi_oversold", 30)
	macdFast := int(s.cfg.Param("macd_fast", 12))
	macdSlow := int(s.cfg.Param("macd_slow", 26))
	macdSignal := int(s.cfg.Param("macd_signal", 9))

	rsi := indicators.RSI(candles, rsiPeriod)
	macdLine, signalLine, histogram := indicators.MACD(candles, macdFast, macdSlow, macdSignal)
	if len(rsi) < 2 || len(macdLine) < 2 || len(signalLine) < 2 || len(histogram) < 2 {
		return nil, nil
	}

	rsiCur, rsiPrev := rsi[len(rsi)-1], rsi[len(rsi)-2]
	macdCur, macdPrev := macdLine[len(macdLine)-1], macdLine[len(macdLine)-2]
	sigCur, sigPrev := signalLine[len(signalLine)-1], signalLine[len(signalLine)-2]
	histCur, histPrev := histogram[len(histogram)-1], histogram[len(histogram)-2]
	price := candles[len(candles)-1].Close

	var bullish, bearish float64
	var bullReasons, bearReasons []string

	if rsiPrev <= oversold && rsiCur > oversold {
		bullish++
		bullReasons = append(bullReasons, fmt.Sprintf("RSI exiting oversold (%.1f)", rsiCur))
	}
	if macdPrev.LessThanOrEqual(sigPrev) && macdCur.GreaterThan(sigCur) {
		bullish++
		bullReasons = append(bullReasons, "MACD bullish crossover")
	}
	if histCur.GreaterThan(histPrev) && histCur.IsPositive() {
		bullish++
		bullReasons = append(bullReasons, "MACD histogram accelerating")
	}
	if rsiCur < 50 && rsiCur > rsiPrev {
		bullish += 0.5
		bullReasons = append(bullReasons, "RSI momentum up")
	}

	if rsiPrev >= overbought && rsiCur < overbought {
		bearish++
		bearReasons = append(bearReasons, fmt.Sprintf("RSI exiting overbought (%.1f)", rsiCur))
	}
	if macdPrev.GreaterThanOrEqual(sigPrev) && macdCur.LessThan(sigCur) {
		bearish++
		bearReasons = append(bearReasons, "MACD bearish crossover")
	}
	if histCur.LessThan(histPrev) && histCur.IsNegative() {
		bearish++
		bearReasons = append(bearReasons, "MACD histogram decelerating")
	}
	if rsiCur > 50 && rsiCur < rsiPrev {
		bearish += 0.5
		bearReasons = append(bearReasons, "RSI momentum down")
	}

	var sigType models.SignalType
	var confidence float64
	var reasons []string
	switch {
	case bullish >= 2 && bullish > bearish:
		sigType = models.SignalBuy
		confidence = min(0.9, 0.4+bullish*0.15)
		reasons = bullReasons
	case bearish >= 2 && bearish > bullish:
		sigType = models.SignalSell
		confidence = min(0.9, 0.4+bearish*0.15)
		reasons = bearReasons
	default:
		return nil, nil
	}
	if confidence < 0.5 {
		return nil, nil
	}

	// Do not fight the oscillator's own extreme zone.
	if sigType == models.SignalBuy && rsiCur > overbought {
		return nil, nil
	}
	if sigType == models.SignalSell && rsiCur < oversold {
		return nil, nil
	}

	ind := map[string]string{
		"rsi":             fmt.Sprintf("%.2f", rsiCur),
		"rsi_previous":    fmt.Sprintf("%.2f", rsiPrev),
		"macd":            macdCur.String(),
		"macd_signal":     sigCur.String(),
		"macd_histogram":  histCur.String(),
		"bullish_signals": fmt.Sprintf("%.1f", bullish),
		"bearish_signals": fmt.Sprintf("%.1f", bearish),
	}
	return s.signal(sigType, symbol, confidence, price, strings.Join(reasons, "; "), ind), nil
}
