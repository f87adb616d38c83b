package strategy

import (
	"testing"

	"trading_assistant/internal/models"
)

func volumeSpikeStrategy() *VolumeSpike {
	return NewVolumeSpike(enabledConfig(map[string]float64{
		"volume_period":          5,
		"volume_threshold":       2,
		"price_change_threshold": 0.01,
	}), nopLog)
}

func spikeBars(spike bar) []models.Candle {
	bars := make([]bar, 0, 6)
	for i := 0; i < 5; i++ {
		bars = append(bars, bar{open: 100, high: 101, low: 99, close: 100, volume: 1000})
	}
	return buildCandles(append(bars, spike))
}

func TestVolumeSpikeBullish(t *testing.T) {
	s := volumeSpikeStrategy()

	candles := spikeBars(bar{open: 100, high: 103, low: 99, close: 102, volume: 2500})
	sig, err := s.Evaluate(candles, "ETHUSDT")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sig == nil || sig.Type != models.SignalBuy {
		t.Fatalf("expected buy signal, got %+v", sig)
	}
	// 2% intrabar move: 0.5 + 0.02*5.
	if sig.Confidence < 0.59 || sig.Confidence > 0.61 {
		t.Fatalf("confidence = %f, want 0.6", sig.Confidence)
	}
}

func TestVolumeSpikeBearish(t *testing.T) {
	s := volumeSpikeStrategy()

	candles := spikeBars(bar{open: 100, high: 101, low: 97, close: 98, volume: 2500})
	sig, err := s.Evaluate(candles, "ETHUSDT")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sig == nil || sig.Type != models.SignalSell {
		t.Fatalf("expected sell signal, got %+v", sig)
	}
}

func TestVolumeSpikeFlatPrice(t *testing.T) {
	s := volumeSpikeStrategy()

	// Volume qualifies but the intrabar move stays inside the threshold.
	candles := spikeBars(bar{open: 100, high: 101, low: 99, close: 100.5, volume: 2500})
	sig, err := s.Evaluate(candles, "ETHUSDT")
	if err != nil || sig != nil {
		t.Fatalf("expected no signal on a flat spike, got (%v, %v)", sig, err)
	}
}

func TestVolumeSpikeBelowMultiple(t *testing.T) {
	s := volumeSpikeStrategy()

	candles := spikeBars(bar{open: 100, high: 103, low: 99, close: 102, volume: 1900})
	sig, err := s.Evaluate(candles, "ETHUSDT")
	if err != nil || sig != nil {
		t.Fatalf("expected no signal without a volume spike, got (%v, %v)", sig, err)
	}
}

func TestVolumeSpikeShortWindow(t *testing.T) {
	s := volumeSpikeStrategy()
	sig, err := s.Evaluate(flatBars(1000, 1, 2, 3), "ETHUSDT")
	if err != nil || sig != nil {
		t.Fatalf("expected (nil, nil) below the required window, got (%v, %v)", sig, err)
	}
}
