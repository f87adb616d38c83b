package indicators

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"trading_assistant/internal/models"
)

func candlesFromCloses(closes ...float64) []models.Candle {
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	out := make([]models.Candle, len(closes))
	for i, c := range closes {
		price := decimal.NewFromFloat(c)
		out[i] = models.Candle{
			Symbol:    "BTCUSDT",
			Timestamp: base.Add(time.Duration(i) * 15 * time.Minute),
			Open:      price,
			High:      price,
			Low:       price,
			Close:     price,
			Volume:    decimal.NewFromInt(1000),
		}
	}
	return out
}

func TestSMAShortInput(t *testing.T) {
	if got := SMA(candlesFromCloses(1, 2), 3); got != nil {
		t.Fatalf("expected nil for short input, got %v", got)
	}
}

func TestSMASequence(t *testing.T) {
	sma := SMA(candlesFromCloses(1, 2, 3, 4, 5), 3)
	want := []string{"2", "3", "4"}
	if len(sma) != len(want) {
		t.Fatalf("expected %d values, got %d", len(want), len(sma))
	}
	for i, w := range want {
		if !sma[i].Equal(decimal.RequireFromString(w)) {
			t.Fatalf("sma[%d] = %s, want %s", i, sma[i], w)
		}
	}
}

func TestEMASeedIsSMA(t *testing.T) {
	candles := candlesFromCloses(10, 20, 30, 40)
	ema := EMA(candles, 3)
	if len(ema) != 2 {
		t.Fatalf("expected 2 values, got %d", len(ema))
	}
	if !ema[0].Equal(decimal.NewFromInt(20)) {
		t.Fatalf("seed = %s, want 20", ema[0])
	}
	// ema[1] = 40*0.5 + 20*0.5 = 30 with k = 2/(3+1)
	if !ema[1].Equal(decimal.NewFromInt(30)) {
		t.Fatalf("ema[1] = %s, want 30", ema[1])
	}
}

// Appending one candle must not change any earlier EMA value, because the
// recurrence is seeded from the same leading history.
func TestEMAStableUnderAppend(t *testing.T) {
	closes := []float64{100, 101, 99, 103, 105, 102, 104, 108, 107, 110}
	base := EMA(candlesFromCloses(closes...), 4)
	extended := EMA(candlesFromCloses(append(closes, 112)...), 4)

	if len(extended) != len(base)+1 {
		t.Fatalf("expected one extra value, got %d vs %d", len(extended), len(base))
	}
	for i := range base {
		if !base[i].Equal(extended[i]) {
			t.Fatalf("ema[%d] changed after append: %s vs %s", i, base[i], extended[i])
		}
	}
}

func TestRSIZeroLossIsHundred(t *testing.T) {
	for _, period := range []int{3, 7, 14} {
		closes := make([]float64, period+5)
		for i := range closes {
			closes[i] = 100 + float64(i) // strictly rising, no losses
		}
		rsi := RSI(candlesFromCloses(closes...), period)
		if len(rsi) == 0 {
			t.Fatalf("period %d: expected values", period)
		}
		for i, v := range rsi {
			if v != 100 {
				t.Fatalf("period %d: rsi[%d] = %f, want exactly 100", period, i, v)
			}
		}
	}
}

func TestRSIShortInput(t *testing.T) {
	if got := RSI(candlesFromCloses(1, 2, 3), 14); got != nil {
		t.Fatalf("expected nil, got %v", got)
	}
}

func TestRSIMidrange(t *testing.T) {
	// Alternating gains and losses of equal size should hover at 50.
	closes := []float64{100, 101, 100, 101, 100, 101, 100, 101, 100}
	rsi := RSI(candlesFromCloses(closes...), 4)
	if len(rsi) == 0 {
		t.Fatal("expected values")
	}
	last := rsi[len(rsi)-1]
	if last < 40 || last > 60 {
		t.Fatalf("expected rsi near 50, got %f", last)
	}
}

func TestMACDShortInput(t *testing.T) {
	macd, signal, hist := MACD(candlesFromCloses(1, 2, 3), 12, 26, 9)
	if macd != nil || signal != nil || hist != nil {
		t.Fatal("expected three empty sequences below the slow window")
	}
}

func TestMACDAlignment(t *testing.T) {
	closes := make([]float64, 60)
	for i := range closes {
		closes[i] = 100 + float64(i%7)
	}
	macd, signal, hist := MACD(candlesFromCloses(closes...), 12, 26, 9)
	if len(macd) != 60-26+1 {
		t.Fatalf("macd length = %d, want %d", len(macd), 60-26+1)
	}
	if len(signal) != len(macd)-9+1 {
		t.Fatalf("signal length = %d, want %d", len(signal), len(macd)-9+1)
	}
	if len(hist) != len(signal) {
		t.Fatalf("histogram length = %d, want %d", len(hist), len(signal))
	}
	// Histogram is main minus signal at the aligned index.
	start := len(macd) - len(signal)
	for i := range signal {
		want := macd[i+start].Sub(signal[i])
		if !hist[i].Equal(want) {
			t.Fatalf("hist[%d] = %s, want %s", i, hist[i], want)
		}
	}
}
