// Package orchestrator drives the analysis loop: fetch candles, run the
// evaluators, aggregate, size, execute, review risk, sleep, repeat.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"trading_assistant/config"
	"trading_assistant/internal/aggregator"
	"trading_assistant/internal/engine"
	"trading_assistant/internal/exchange"
	"trading_assistant/internal/metrics"
	"trading_assistant/internal/models"
	"trading_assistant/internal/risk"
	"trading_assistant/internal/storage"
	"trading_assistant/internal/strategy"
)

// persistedCandles is how many trailing candles are written back per symbol
// per cycle.
const persistedCandles = 10

// Notifier is told about events that must be surfaced loudly.
type Notifier interface {
	Halted(reason string)
}

// Status is an immutable snapshot of the loop, safe to read from other
// goroutines.
type Status struct {
	Running       bool
	Strategies    []string
	LastCycle     time.Time
	LastAnalysis  map[string]time.Time
	CyclesRun     int
	OpenPositions []*models.Position
	DailyPnL      decimal.Decimal
}

type Orchestrator struct {
	cfg        config.TradingConfig
	client     exchange.Client
	strategies []strategy.Strategy
	weights    map[string]float64
	agg        *aggregator.Aggregator
	riskMgr    *risk.Manager
	eng        *engine.Engine
	candles    storage.CandleStore
	trades     storage.TradeStore
	notifier   Notifier
	log        zerolog.Logger

	lastAnalysis map[string]time.Time
	stopped      atomic.Bool

	mu     sync.Mutex
	status Status
}

func New(cfg config.TradingConfig, client exchange.Client, strategies []strategy.Strategy,
	agg *aggregator.Aggregator, riskMgr *risk.Manager, eng *engine.Engine,
	candles storage.CandleStore, trades storage.TradeStore,
	notifier Notifier, log zerolog.Logger) *Orchestrator {

	weights := make(map[string]float64, len(strategies))
	names := make([]string, 0, len(strategies))
	for _, s := range strategies {
		weights[s.Name()] = s.Weight()
		names = append(names, s.Name())
	}
	return &Orchestrator{
		status:       Status{Strategies: names},
		cfg:          cfg,
		client:       client,
		strategies:   strategies,
		weights:      weights,
		agg:          agg,
		riskMgr:      riskMgr,
		eng:          eng,
		candles:      candles,
		trades:       trades,
		notifier:     notifier,
		log:          log.With().Str("component", "orchestrator").Logger(),
		lastAnalysis: make(map[string]time.Time),
	}
}

// SetNotifier wires the loud-failure sink after construction.
func (o *Orchestrator) SetNotifier(n Notifier) { o.notifier = n }

// Stop requests a cooperative shutdown. The flag is honored between symbols
// and between cycles; in-flight I/O for the current symbol completes first.
func (o *Orchestrator) Stop() { o.stopped.Store(true) }

func (o *Orchestrator) Status() Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.status
}

// Run executes cycles until the context is cancelled, Stop is called, or a
// fatal condition trips the circuit breaker. A fatal error is returned;
// cooperative shutdown returns nil.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.log.Info().Strs("symbols", o.cfg.Symbols).
		Dur("refresh", o.cfg.RefreshInterval).Msg("trading loop started")
	o.setRunning(true)
	defer o.setRunning(false)

	for {
		if o.shouldStop(ctx) {
			return nil
		}
		if err := o.runCycle(ctx); err != nil {
			o.log.Error().Err(err).Msg("trading loop halted")
			if o.notifier != nil {
				o.notifier.Halted(err.Error())
			}
			return err
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(o.cfg.RefreshInterval):
		}
	}
}

// runCycle analyzes every symbol, then runs the portfolio risk review. Only
// the review's daily-loss breach is fatal; per-symbol failures are logged
// and skipped.
func (o *Orchestrator) runCycle(ctx context.Context) error {
	for _, symbol := range o.cfg.Symbols {
		if o.shouldStop(ctx) {
			return nil
		}
		now := time.Now()
		if last, ok := o.lastAnalysis[symbol]; ok && now.Sub(last) < o.cfg.Cooldown {
			o.log.Debug().Str("symbol", symbol).Msg("cooldown, skipped")
			continue
		}
		if err := o.analyzeSymbol(ctx, symbol); err != nil {
			metrics.SymbolErrorsTotal.WithLabelValues(symbol).Inc()
			o.log.Error().Err(err).Str("symbol", symbol).Msg("symbol analysis failed")
			continue
		}
		o.lastAnalysis[symbol] = now
	}

	dailyPnL, err := o.dailyPnL()
	if err != nil {
		o.log.Error().Err(err).Msg("daily pnl query failed")
		dailyPnL = decimal.Zero
	}
	if err := o.riskMgr.Review(o.eng.Positions(), dailyPnL); err != nil {
		if errors.Is(err, risk.ErrDailyLossBreached) {
			return err
		}
		o.log.Warn().Err(err).Msg("risk review")
	}

	metrics.CyclesTotal.Inc()
	o.snapshot(dailyPnL)
	return nil
}

func (o *Orchestrator) analyzeSymbol(ctx context.Context, symbol string) error {
	candles, err := o.client.GetCandles(ctx, symbol, o.cfg.Interval, o.cfg.CandleLimit)
	if err != nil {
		return fmt.Errorf("fetch candles: %w", err)
	}
	if len(candles) == 0 {
		return fmt.Errorf("no candles for %s", symbol)
	}

	signals := o.evaluate(candles, symbol)
	o.persistCandles(candles)

	decision := o.agg.Decide(symbol, signals, o.weights, o.eng.Position(symbol))
	if decision == nil {
		return nil
	}
	metrics.DecisionsTotal.WithLabelValues(symbol, string(decision.Type)).Inc()

	equity, err := o.client.GetBalance(ctx)
	if err != nil {
		return fmt.Errorf("fetch balance: %w", err)
	}
	quantity := o.riskMgr.PositionSize(decision.Representative, equity)

	if err := o.eng.Execute(ctx, decision, quantity); err != nil {
		metrics.TradesTotal.WithLabelValues(symbol, string(decision.Type), "failed").Inc()
		return fmt.Errorf("execute decision: %w", err)
	}
	metrics.TradesTotal.WithLabelValues(symbol, string(decision.Type), "filled").Inc()
	return nil
}

// evaluate runs every strategy over the window. One evaluator failing does
// not block the others; its contribution is simply absent this cycle.
func (o *Orchestrator) evaluate(candles []models.Candle, symbol string) []*models.TradingSignal {
	var signals []*models.TradingSignal
	for _, s := range o.strategies {
		sig, err := s.Evaluate(candles, symbol)
		if err != nil {
			o.log.Error().Err(err).Str("strategy", s.Name()).Str("symbol", symbol).
				Msg("evaluator failed")
			continue
		}
		if sig == nil {
			continue
		}
		metrics.SignalsTotal.WithLabelValues(s.Name(), string(sig.Type)).Inc()
		o.log.Info().Str("strategy", s.Name()).Str("symbol", symbol).
			Str("type", string(sig.Type)).Float64("confidence", sig.Confidence).
			Str("reason", sig.Reason).Msg("signal")
		signals = append(signals, sig)
	}
	return signals
}

func (o *Orchestrator) persistCandles(candles []models.Candle) {
	start := len(candles) - persistedCandles
	if start < 0 {
		start = 0
	}
	for _, c := range candles[start:] {
		if err := o.candles.Save(c); err != nil {
			o.log.Warn().Err(err).Str("symbol", c.Symbol).
				Time("timestamp", c.Timestamp).Msg("candle save failed")
		}
	}
}

// dailyPnL sums the realized P&L of trades closed since UTC midnight.
func (o *Orchestrator) dailyPnL() (decimal.Decimal, error) {
	now := time.Now().UTC()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	trades, err := o.trades.QueryByDateRange(midnight, now.Add(time.Second))
	if err != nil {
		return decimal.Zero, err
	}

	total := decimal.Zero
	for _, t := range trades {
		if t.Status == models.TradeClosed && t.PnL != nil {
			total = total.Add(*t.PnL)
		}
	}
	return total, nil
}

func (o *Orchestrator) shouldStop(ctx context.Context) bool {
	return o.stopped.Load() || ctx.Err() != nil
}

func (o *Orchestrator) setRunning(running bool) {
	o.mu.Lock()
	o.status.Running = running
	o.mu.Unlock()
}

func (o *Orchestrator) snapshot(dailyPnL decimal.Decimal) {
	positions := o.eng.Positions()
	metrics.OpenPositions.Set(float64(len(positions)))
	pnl, _ := dailyPnL.Float64()
	metrics.DailyPnL.Set(pnl)

	stamped := make(map[string]time.Time, len(o.lastAnalysis))
	for symbol, t := range o.lastAnalysis {
		stamped[symbol] = t
	}

	o.mu.Lock()
	o.status.LastCycle = time.Now()
	o.status.LastAnalysis = stamped
	o.status.CyclesRun++
	o.status.OpenPositions = positions
	o.status.DailyPnL = dailyPnL
	o.mu.Unlock()
}
