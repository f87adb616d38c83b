package strategy

import (
	"strings"
	"testing"

	"trading_assistant/config"
)

func TestNewRejectsUnknownName(t *testing.T) {
	_, err := New("momentum_wave", enabledConfig(nil), nopLog)
	if err == nil || !strings.Contains(err.Error(), "momentum_wave") {
		t.Fatalf("expected unknown-strategy error, got %v", err)
	}
}

func TestBuildAllSkipsDisabled(t *testing.T) {
	cfgs := map[string]config.StrategyConfig{
		"trend_following": enabledConfig(nil),
		"breakout":        {Enabled: false, Weight: 1},
	}
	built, err := BuildAll(cfgs, nopLog)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(built) != 1 || built[0].Name() != "trend_following" {
		t.Fatalf("expected only trend_following, got %d strategies", len(built))
	}
}

func TestBuildAllFailsOnUnknown(t *testing.T) {
	cfgs := map[string]config.StrategyConfig{
		"trend_following": enabledConfig(nil),
		"astrology":       enabledConfig(nil),
	}
	if _, err := BuildAll(cfgs, nopLog); err == nil {
		t.Fatal("expected error for unknown strategy name")
	}
}

func TestBuildAllFailsOnUnknownDisabled(t *testing.T) {
	cfgs := map[string]config.StrategyConfig{
		"trend_following": enabledConfig(nil),
		"astrology":       {Enabled: false, Weight: 1},
	}
	if _, err := BuildAll(cfgs, nopLog); err == nil {
		t.Fatal("expected error for unknown strategy name even when disabled")
	}
}

func TestStopLossTakeProfitDirections(t *testing.T) {
	s := NewTrendFollowing(enabledConfig(nil), nopLog)
	candles := flatBars(1000, 100)
	price := candles[0].Close

	sl := s.stopLoss("buy", price)
	tp := s.takeProfit("buy", price)
	if !sl.LessThan(price) || !tp.GreaterThan(price) {
		t.Fatalf("buy advisory levels inverted: sl=%s tp=%s", sl, tp)
	}

	sl = s.stopLoss("sell", price)
	tp = s.takeProfit("sell", price)
	if !sl.GreaterThan(price) || !tp.LessThan(price) {
		t.Fatalf("sell advisory levels inverted: sl=%s tp=%s", sl, tp)
	}
}
