package strategy

import (
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"trading_assistant/config"
	"trading_assistant/internal/models"
)

var nopLog = zerolog.Nop()

// bar is a compact candle literal for tests.
type bar struct {
	open, high, low, close, volume float64
}

func buildCandles(bars []bar) []models.Candle {
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	out := make([]models.Candle, len(bars))
	for i, b := range bars {
		out[i] = models.Candle{
			Symbol:    "BTCUSDT",
			Timestamp: base.Add(time.Duration(i) * 15 * time.Minute),
			Open:      decimal.NewFromFloat(b.open),
			High:      decimal.NewFromFloat(b.high),
			Low:       decimal.NewFromFloat(b.low),
			Close:     decimal.NewFromFloat(b.close),
			Volume:    decimal.NewFromFloat(b.volume),
		}
	}
	return out
}

// flatBars produces candles from closes only, with constant volume.
func flatBars(volume float64, closes ...float64) []models.Candle {
	bars := make([]bar, len(closes))
	for i, c := range closes {
		bars[i] = bar{open: c, high: c, low: c, close: c, volume: volume}
	}
	return buildCandles(bars)
}

func decimalFromInt(i int64) decimal.Decimal { return decimal.NewFromInt(i) }

func enabledConfig(params map[string]float64) config.StrategyConfig {
	return config.StrategyConfig{
		Enabled:       true,
		Weight:        1.0,
		Parameters:    params,
		StopLossPct:   2.0,
		TakeProfitPct: 5.0,
	}
}
