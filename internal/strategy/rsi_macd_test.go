package strategy

import (
	"testing"

	"trading_assistant/internal/models"
)

// Short periods so the oscillators react within a few candles.
func rsiMacdParams(oversold, overbought float64) map[string]float64 {
	return map[string]float64{
		"rsi_period":     3,
		"rsi_oversold":   oversold,
		"rsi_overbought": overbought,
		"macd_fast":      2,
		"macd_slow":      4,
		"macd_signal":    2,
	}
}

func TestRsiMacdBullishConditions(t *testing.T) {
	s := NewRsiMacd(enabledConfig(rsiMacdParams(40, 75)), nopLog)

	// Twenty declining candles push the oscillator to the floor and hold
	// the MACD line under its signal; one strong recovery candle fires
	// three bullish conditions at once (oversold exit, MACD crossover,
	// histogram acceleration).
	closes := make([]float64, 0, 21)
	for i := 0; i < 20; i++ {
		closes = append(closes, 200-2*float64(i))
	}
	candles := flatBars(1000, append(closes, 172)...)

	sig, err := s.Evaluate(candles, "ETHUSDT")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sig == nil || sig.Type != models.SignalBuy {
		t.Fatalf("expected buy signal, got %+v", sig)
	}
	// Three conditions: min(0.9, 0.4 + 3*0.15).
	if sig.Confidence < 0.84 || sig.Confidence > 0.86 {
		t.Fatalf("confidence = %f, want 0.85", sig.Confidence)
	}
	if sig.Strength != models.StrengthStrong {
		t.Fatalf("strength = %s, want strong", sig.Strength)
	}
}

func TestRsiMacdOppositeExtremeVeto(t *testing.T) {
	// The crash candle satisfies three bearish conditions but also drives
	// the oscillator under the oversold threshold, so the sell must be
	// discarded.
	s := NewRsiMacd(enabledConfig(rsiMacdParams(25, 60)), nopLog)

	closes := make([]float64, 0, 21)
	for i := 0; i < 20; i++ {
		closes = append(closes, 100+2*float64(i))
	}
	candles := flatBars(1000, append(closes, 110)...)

	sig, err := s.Evaluate(candles, "ETHUSDT")
	if err != nil || sig != nil {
		t.Fatalf("expected the sell to be vetoed in the oversold zone, got (%v, %v)", sig, err)
	}
}

func TestRsiMacdBearishConditions(t *testing.T) {
	// Same crash, but with the oversold floor out of the way the sell is
	// allowed through.
	s := NewRsiMacd(enabledConfig(rsiMacdParams(10, 60)), nopLog)

	closes := make([]float64, 0, 21)
	for i := 0; i < 20; i++ {
		closes = append(closes, 100+2*float64(i))
	}
	candles := flatBars(1000, append(closes, 110)...)

	sig, err := s.Evaluate(candles, "ETHUSDT")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sig == nil || sig.Type != models.SignalSell {
		t.Fatalf("expected sell signal, got %+v", sig)
	}
}

func TestRsiMacdQuietMarket(t *testing.T) {
	s := NewRsiMacd(enabledConfig(rsiMacdParams(40, 75)), nopLog)

	// A monotonic grind up produces at most one condition, which is below
	// the two-condition floor.
	closes := make([]float64, 25)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}
	sig, err := s.Evaluate(flatBars(1000, closes...), "ETHUSDT")
	if err != nil || sig != nil {
		t.Fatalf("expected no signal, got (%v, %v)", sig, err)
	}
}

func TestRsiMacdShortWindow(t *testing.T) {
	s := NewRsiMacd(enabledConfig(rsiMacdParams(40, 75)), nopLog)
	sig, err := s.Evaluate(flatBars(1000, 1, 2, 3, 4, 5), "ETHUSDT")
	if err != nil || sig != nil {
		t.Fatalf("expected (nil, nil) below the required window, got (%v, %v)", sig, err)
	}
}
