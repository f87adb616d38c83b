package strategy

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"trading_assistant/config"
	"trading_assistant/internal/models"
)

// VolumeSpike fires when the current candle's volume exceeds its trailing
// average by a configured multiple and the intrabar return confirms a
// direction.
type VolumeSpike struct {
	Base
}

func NewVolumeSpike(cfg config.StrategyConfig, log zerolog.Logger) *VolumeSpike {
	return &VolumeSpike{Base: newBase("volume_spike", cfg, log)}
}

func (s *VolumeSpike) RequiredCandles() int {
	period := int(s.cfg.Param("volume_period", 20))
	return period + 1
}

func (s *VolumeSpike) Evaluate(candles []models.Candle, symbol string) (*models.TradingSignal, error) {
	if !s.Enabled() || len(candles) < s.RequiredCandles() {
		return nil, nil
	}

	period := int(s.cfg.Param("volume_period", 20))
	volThreshold := decimal.NewFromFloat(s.cfg.Param("volume_threshold", 2.0))
	priceThreshold := decimal.NewFromFloat(s.cfg.Param("price_change_threshold", 0.01))

	hist := candles[len(candles)-period-1 : len(candles)-1]
	current := candles[len(candles)-1]

	sum := decimal.Zero
	for _, c := range hist {
		sum = sum.Add(c.Volume)
	}
	avgVol := sum.Div(decimal.NewFromInt(int64(period)))
	if current.Volume.LessThanOrEqual(avgVol.Mul(volThreshold)) {
		return nil, nil
	}

	if current.Open.IsZero() {
		return nil, nil
	}
	priceChange := current.Close.Sub(current.Open).Div(current.Open)

	var sigType models.SignalType
	switch {
	case priceChange.GreaterThanOrEqual(priceThreshold):
		sigType = models.SignalBuy
	case priceChange.LessThanOrEqual(priceThreshold.Neg()):
		sigType = models.SignalSell
	default:
		return nil, nil
	}

	change, _ := priceChange.Abs().Float64()
	confidence := min(0.9, 0.5+change*5)
	if confidence < 0.5 {
		return nil, nil
	}

	reason := fmt.Sprintf("Volume spike %s > avg %s", current.Volume.StringFixed(2), avgVol.StringFixed(2))
	ind := map[string]string{
		"avg_volume":     avgVol.String(),
		"current_volume": current.Volume.String(),
		"price_change":   priceChange.String(),
	}
	return s.signal(sigType, symbol, confidence, current.Close, reason, ind), nil
}
