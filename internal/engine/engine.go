// Package engine turns accepted decisions into trades and position
// lifecycle transitions. It is the only writer of position state.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"trading_assistant/internal/aggregator"
	"trading_assistant/internal/exchange"
	"trading_assistant/internal/models"
	"trading_assistant/internal/storage"
)

// Notifier receives trade lifecycle events. Implementations must not block
// the trading loop for long.
type Notifier interface {
	TradeOpened(t *models.Trade)
	TradeClosed(t *models.Trade)
}

// Engine holds the per-symbol position state machine. States are flat and
// open(side); an opposite-side decision closes first and may reopen in the
// same cycle.
type Engine struct {
	client    exchange.Client
	trades    storage.TradeStore
	posStore  storage.PositionStore
	notifier  Notifier
	log       zerolog.Logger
	positions map[string]*models.Position
}

func New(client exchange.Client, trades storage.TradeStore, positions storage.PositionStore,
	notifier Notifier, log zerolog.Logger) *Engine {

	return &Engine{
		client:    client,
		trades:    trades,
		posStore:  positions,
		notifier:  notifier,
		log:       log.With().Str("component", "engine").Logger(),
		positions: make(map[string]*models.Position),
	}
}

// SetNotifier wires the event sink after construction; the notifier itself
// may need the engine's owner to exist first.
func (e *Engine) SetNotifier(n Notifier) { e.notifier = n }

// Restore reloads open positions from the store so a restart resumes with
// the exposure it had.
func (e *Engine) Restore() error {
	stored, err := e.posStore.GetAll()
	if err != nil {
		return fmt.Errorf("restore positions: %w", err)
	}
	for _, p := range stored {
		e.positions[p.Symbol] = p
	}
	if len(stored) > 0 {
		e.log.Info().Int("count", len(stored)).Msg("positions restored")
	}
	return nil
}

// Position returns the current exposure for a symbol, nil when flat.
func (e *Engine) Position(symbol string) *models.Position {
	return e.positions[symbol]
}

// Positions returns the current open exposure across all symbols.
func (e *Engine) Positions() []*models.Position {
	out := make([]*models.Position, 0, len(e.positions))
	for _, p := range e.positions {
		out = append(out, p)
	}
	return out
}

// Execute applies one accepted decision. An open opposite-side position is
// closed synchronously before the new side opens; a same-side decision is a
// no-op since the aggregator already suppresses re-entry.
func (e *Engine) Execute(ctx context.Context, d *aggregator.Decision, quantity decimal.Decimal) error {
	if d == nil || d.Representative == nil {
		return nil
	}
	if quantity.Sign() <= 0 {
		e.log.Warn().Str("symbol", d.Symbol).Msg("zero quantity, decision dropped")
		return nil
	}
	side := models.TradeBuy
	if d.Type == models.SignalSell {
		side = models.TradeSell
	}

	if pos := e.positions[d.Symbol]; pos != nil {
		if pos.Side == side {
			return nil
		}
		if err := e.closePosition(ctx, pos, d.Representative); err != nil {
			return err
		}
	}
	return e.openPosition(ctx, side, d.Representative, quantity)
}

func (e *Engine) openPosition(ctx context.Context, side models.TradeSide,
	sig *models.TradingSignal, quantity decimal.Decimal) error {

	trade := e.newTrade(sig.Symbol, side, quantity, sig.Price, sig.StrategyName)
	trade.StopLoss = sig.SuggestedStopLoss
	trade.TakeProfit = sig.SuggestedTakeProfit
	if err := e.trades.Save(trade); err != nil {
		return fmt.Errorf("save trade: %w", err)
	}

	orderID, err := e.client.PlaceOrder(ctx, exchange.OrderRequest{
		Symbol:     sig.Symbol,
		Side:       side,
		Quantity:   quantity,
		Type:       models.OrderMarket,
		Price:      sig.Price,
		StopLoss:   sig.SuggestedStopLoss,
		TakeProfit: sig.SuggestedTakeProfit,
	})
	if err != nil {
		e.cancelTrade(trade, err)
		return fmt.Errorf("open %s %s: %w", side, sig.Symbol, err)
	}

	now := time.Now()
	trade.Status = models.TradeOpen
	trade.ExecutedAt = &now
	trade.EntryPrice = &sig.Price
	trade.ExchangeOrderID = orderID
	if err := e.trades.Update(trade); err != nil {
		e.log.Error().Err(err).Str("trade_id", trade.ID).Msg("trade update failed")
	}

	pos := &models.Position{
		Symbol:       sig.Symbol,
		Side:         side,
		Size:         quantity,
		EntryPrice:   sig.Price,
		CurrentPrice: sig.Price,
		CreatedAt:    now,
	}
	e.positions[sig.Symbol] = pos
	if err := e.posStore.Save(pos); err != nil {
		e.log.Error().Err(err).Str("symbol", sig.Symbol).Msg("position save failed")
	}

	e.log.Info().Str("symbol", sig.Symbol).Str("side", string(side)).
		Str("qty", quantity.String()).Str("price", sig.Price.String()).
		Str("strategy", sig.StrategyName).Msg("position opened")
	if e.notifier != nil {
		e.notifier.TradeOpened(trade)
	}
	return nil
}

// closePosition emits an opposite-side trade for the position's full size at
// the signal's reference price and removes the position.
func (e *Engine) closePosition(ctx context.Context, pos *models.Position, sig *models.TradingSignal) error {
	side := pos.Side.Opposite()
	trade := e.newTrade(pos.Symbol, side, pos.Size, sig.Price, sig.StrategyName)
	if err := e.trades.Save(trade); err != nil {
		return fmt.Errorf("save close trade: %w", err)
	}

	orderID, err := e.client.PlaceOrder(ctx, exchange.OrderRequest{
		Symbol:   pos.Symbol,
		Side:     side,
		Quantity: pos.Size,
		Type:     models.OrderMarket,
		Price:    sig.Price,
	})
	if err != nil {
		e.cancelTrade(trade, err)
		return fmt.Errorf("close %s: %w", pos.Symbol, err)
	}

	now := time.Now()
	pnl := sig.Price.Sub(pos.EntryPrice).Mul(pos.Size)
	if pos.Side == models.TradeSell {
		pnl = pnl.Neg()
	}
	trade.Status = models.TradeClosed
	trade.ExecutedAt = &now
	trade.ClosedAt = &now
	trade.EntryPrice = &pos.EntryPrice
	trade.ExitPrice = &sig.Price
	trade.PnL = &pnl
	trade.ExchangeOrderID = orderID
	if err := e.trades.Update(trade); err != nil {
		e.log.Error().Err(err).Str("trade_id", trade.ID).Msg("trade update failed")
	}

	delete(e.positions, pos.Symbol)
	if _, err := e.posStore.Close(pos.Symbol); err != nil {
		e.log.Error().Err(err).Str("symbol", pos.Symbol).Msg("position close failed")
	}

	e.log.Info().Str("symbol", pos.Symbol).Str("pnl", pnl.String()).
		Msg("position closed")
	if e.notifier != nil {
		e.notifier.TradeClosed(trade)
	}
	return nil
}

func (e *Engine) newTrade(symbol string, side models.TradeSide, qty, price decimal.Decimal, strategy string) *models.Trade {
	return &models.Trade{
		ID:           uuid.NewString(),
		Symbol:       symbol,
		Side:         side,
		Quantity:     qty,
		Price:        price,
		OrderType:    models.OrderMarket,
		Status:       models.TradePending,
		StrategyName: strategy,
		CreatedAt:    time.Now(),
	}
}

func (e *Engine) cancelTrade(trade *models.Trade, cause error) {
	trade.Status = models.TradeCancelled
	trade.Notes = cause.Error()
	if err := e.trades.Update(trade); err != nil {
		e.log.Error().Err(err).Str("trade_id", trade.ID).Msg("trade update failed")
	}
}
