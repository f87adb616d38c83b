package aggregator

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"trading_assistant/internal/models"
)

var nopLog = zerolog.Nop()

func sig(strategy, symbol string, t models.SignalType, confidence float64) *models.TradingSignal {
	return &models.TradingSignal{
		StrategyName: strategy,
		Symbol:       symbol,
		Type:         t,
		Strength:     models.StrengthFromConfidence(confidence),
		Confidence:   confidence,
		Price:        decimal.NewFromInt(100),
	}
}

func TestDecideBuyDominates(t *testing.T) {
	a := New(0.8, nopLog)
	signals := []*models.TradingSignal{
		sig("trend_following", "BTCUSDT", models.SignalBuy, 0.9),
		sig("volume_spike", "BTCUSDT", models.SignalSell, 0.3),
	}
	weights := map[string]float64{"trend_following": 1, "volume_spike": 1}

	d := a.Decide("BTCUSDT", signals, weights, nil)
	if d == nil || d.Type != models.SignalBuy {
		t.Fatalf("expected buy decision, got %+v", d)
	}
	if d.Representative.StrategyName != "trend_following" {
		t.Fatalf("representative = %s, want trend_following", d.Representative.StrategyName)
	}
	if d.BuyScore != 0.9 || d.SellScore != 0.3 {
		t.Fatalf("scores = (%f, %f), want (0.9, 0.3)", d.BuyScore, d.SellScore)
	}
}

func TestDecideEqualSides(t *testing.T) {
	a := New(0.8, nopLog)
	signals := []*models.TradingSignal{
		sig("trend_following", "BTCUSDT", models.SignalBuy, 0.9),
		sig("breakout", "BTCUSDT", models.SignalSell, 0.9),
	}
	if d := a.Decide("BTCUSDT", signals, nil, nil); d != nil {
		t.Fatalf("expected no decision on a tie, got %+v", d)
	}
}

func TestDecideBelowFloor(t *testing.T) {
	a := New(0.8, nopLog)
	signals := []*models.TradingSignal{
		sig("trend_following", "BTCUSDT", models.SignalBuy, 0.7),
	}
	if d := a.Decide("BTCUSDT", signals, nil, nil); d != nil {
		t.Fatalf("expected no decision below the floor, got %+v", d)
	}
}

func TestDecideWeightsTipTheScale(t *testing.T) {
	a := New(0.8, nopLog)
	signals := []*models.TradingSignal{
		sig("trend_following", "BTCUSDT", models.SignalBuy, 0.6),
		sig("breakout", "BTCUSDT", models.SignalSell, 0.9),
	}
	weights := map[string]float64{"trend_following": 2, "breakout": 0.5}

	d := a.Decide("BTCUSDT", signals, weights, nil)
	if d == nil || d.Type != models.SignalBuy {
		t.Fatalf("expected weighted buy decision, got %+v", d)
	}
}

func TestDecideSuppressesReEntry(t *testing.T) {
	a := New(0.8, nopLog)
	signals := []*models.TradingSignal{
		sig("trend_following", "BTCUSDT", models.SignalBuy, 0.9),
	}
	open := &models.Position{Symbol: "BTCUSDT", Side: models.TradeBuy}
	if d := a.Decide("BTCUSDT", signals, nil, open); d != nil {
		t.Fatalf("expected re-entry suppression, got %+v", d)
	}

	// An opposite-side decision against an open position goes through so
	// the engine can flip.
	open.Side = models.TradeSell
	if d := a.Decide("BTCUSDT", signals, nil, open); d == nil || d.Type != models.SignalBuy {
		t.Fatalf("expected flip decision against a short, got %+v", d)
	}
}

func TestDecideRepresentativeIsStrongest(t *testing.T) {
	a := New(0.8, nopLog)
	signals := []*models.TradingSignal{
		sig("trend_following", "BTCUSDT", models.SignalBuy, 0.6),
		sig("rsi_macd", "BTCUSDT", models.SignalBuy, 0.85),
	}
	d := a.Decide("BTCUSDT", signals, nil, nil)
	if d == nil || d.Representative.StrategyName != "rsi_macd" {
		t.Fatalf("expected strongest buy signal as representative, got %+v", d)
	}
}

func TestDecideIgnoresForeignSymbols(t *testing.T) {
	a := New(0.8, nopLog)
	signals := []*models.TradingSignal{
		sig("trend_following", "ETHUSDT", models.SignalBuy, 0.9),
	}
	if d := a.Decide("BTCUSDT", signals, nil, nil); d != nil {
		t.Fatalf("expected no decision from foreign-symbol signals, got %+v", d)
	}
}
