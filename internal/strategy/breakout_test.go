package strategy

import (
	"testing"

	"trading_assistant/internal/models"
)

func breakoutStrategy() *Breakout {
	return NewBreakout(enabledConfig(map[string]float64{
		"lookback_period":      20,
		"confirmation_candles": 2,
		"min_touchpoints":      3,
		"threshold":            0.003,
	}), nopLog)
}

// rangeBars builds a 20-candle range with the extremes touched at the given
// indices, plus trailing confirmation candles. The first bar is a single wide
// candle so that untouched extremes are only ever reached once.
func rangeBars(touchHighIdx, touchLowIdx []int, confirm ...bar) []models.Candle {
	bars := make([]bar, 0, 22)
	for i := 0; i < 20; i++ {
		b := bar{open: 100, high: 102, low: 98, close: 100, volume: 1000}
		if i == 0 {
			b.high, b.low = 106, 94
		}
		for _, idx := range touchHighIdx {
			if i == idx {
				b.high = 110
			}
		}
		for _, idx := range touchLowIdx {
			if i == idx {
				b.low = 90
			}
		}
		bars = append(bars, b)
	}
	bars = append(bars, confirm...)
	return buildCandles(bars)
}

func TestBreakoutAboveResistance(t *testing.T) {
	s := breakoutStrategy()

	// Resistance at 110 touched three times; the second confirmation
	// candle closes above 110 * 1.003.
	candles := rangeBars([]int{5, 10, 15}, nil,
		bar{open: 100, high: 105, low: 99, close: 100, volume: 1000},
		bar{open: 100, high: 112, low: 99, close: 111, volume: 1000},
	)

	sig, err := s.Evaluate(candles, "SOLUSDT")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sig == nil || sig.Type != models.SignalBuy {
		t.Fatalf("expected buy signal, got %+v", sig)
	}
	// Three touches at min_touchpoints=3: min(0.9, 0.5 + 1*0.1).
	if sig.Confidence < 0.59 || sig.Confidence > 0.61 {
		t.Fatalf("confidence = %f, want 0.6", sig.Confidence)
	}
}

func TestBreakoutBelowSupport(t *testing.T) {
	s := breakoutStrategy()

	candles := rangeBars(nil, []int{2, 8, 14},
		bar{open: 100, high: 105, low: 88, close: 89, volume: 1000},
		bar{open: 89, high: 92, low: 88, close: 90, volume: 1000},
	)

	sig, err := s.Evaluate(candles, "SOLUSDT")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sig == nil || sig.Type != models.SignalSell {
		t.Fatalf("expected sell signal, got %+v", sig)
	}
}

func TestBreakoutInsufficientTouches(t *testing.T) {
	s := breakoutStrategy()

	// Two touches on the high side, below min_touchpoints, so even a clean
	// breakout close stays silent.
	candles := rangeBars([]int{5, 10}, nil,
		bar{open: 100, high: 105, low: 99, close: 100, volume: 1000},
		bar{open: 100, high: 112, low: 99, close: 111, volume: 1000},
	)

	sig, err := s.Evaluate(candles, "SOLUSDT")
	if err != nil || sig != nil {
		t.Fatalf("expected no signal without enough touchpoints, got (%v, %v)", sig, err)
	}
}

func TestBreakoutNoConfirmationClose(t *testing.T) {
	s := breakoutStrategy()

	// Touches are there but both confirmation candles close inside the
	// range.
	candles := rangeBars([]int{5, 10, 15}, nil,
		bar{open: 100, high: 105, low: 99, close: 100, volume: 1000},
		bar{open: 100, high: 109, low: 99, close: 104, volume: 1000},
	)

	sig, err := s.Evaluate(candles, "SOLUSDT")
	if err != nil || sig != nil {
		t.Fatalf("expected no signal without a confirming close, got (%v, %v)", sig, err)
	}
}

func TestBreakoutShortWindow(t *testing.T) {
	s := breakoutStrategy()
	sig, err := s.Evaluate(flatBars(1000, 1, 2, 3), "SOLUSDT")
	if err != nil || sig != nil {
		t.Fatalf("expected (nil, nil) below the required window, got (%v, %v)", sig, err)
	}
}
