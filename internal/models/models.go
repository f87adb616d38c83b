package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Candle is one immutable OHLCV sample for a fixed time bucket.
// Prices and volume are exact decimals so indicator recursion does not
// accumulate binary rounding drift.
type Candle struct {
	Symbol    string
	Timestamp time.Time
	Open      decimal.Decimal
	High      decimal.Decimal
	Low       decimal.Decimal
	Close     decimal.Decimal
	Volume    decimal.Decimal
}

// IsBullish reports whether the candle closed above its open.
func (c Candle) IsBullish() bool {
	return c.Close.GreaterThan(c.Open)
}

// BodySize is the absolute distance between open and close.
func (c Candle) BodySize() decimal.Decimal {
	return c.Close.Sub(c.Open).Abs()
}

type SignalType string

const (
	SignalBuy  SignalType = "buy"
	SignalSell SignalType = "sell"
	SignalHold SignalType = "hold"
)

type SignalStrength string

const (
	StrengthWeak     SignalStrength = "weak"
	StrengthModerate SignalStrength = "moderate"
	StrengthStrong   SignalStrength = "strong"
)

// StrengthFromConfidence maps a confidence scalar to its discrete tier:
// weak < 0.6 <= moderate < 0.8 <= strong.
func StrengthFromConfidence(confidence float64) SignalStrength {
	switch {
	case confidence >= 0.8:
		return StrengthStrong
	case confidence >= 0.6:
		return StrengthModerate
	default:
		return StrengthWeak
	}
}

// TradingSignal is one strategy's directional opinion for one symbol at one
// point in time. Signals are ephemeral value objects consumed by the
// aggregator; they are never persisted as authoritative state.
type TradingSignal struct {
	StrategyName string
	Symbol       string
	Type         SignalType
	Strength     SignalStrength
	Confidence   float64 // 0-1
	Price        decimal.Decimal
	Timestamp    time.Time

	// Indicator snapshot for observability, not decision input.
	Indicators map[string]string
	Reason     string

	// Risk advisories.
	SuggestedStopLoss     *decimal.Decimal
	SuggestedTakeProfit   *decimal.Decimal
	SuggestedPositionSize *decimal.Decimal
}

type TradeSide string

const (
	TradeBuy  TradeSide = "buy"
	TradeSell TradeSide = "sell"
)

// Opposite returns the closing side for this side.
func (s TradeSide) Opposite() TradeSide {
	if s == TradeBuy {
		return TradeSell
	}
	return TradeBuy
}

type TradeStatus string

const (
	TradePending   TradeStatus = "pending"
	TradeOpen      TradeStatus = "open"
	TradeClosed    TradeStatus = "closed"
	TradeCancelled TradeStatus = "cancelled"
)

type OrderType string

const (
	OrderMarket    OrderType = "market"
	OrderLimit     OrderType = "limit"
	OrderStop      OrderType = "stop"
	OrderStopLimit OrderType = "stop_limit"
)

// Trade is the durable record of one execution attempt and its outcome.
// Created by the trading engine on decision acceptance, updated on exchange
// acknowledgement, never mutated by strategies.
type Trade struct {
	ID           string
	Symbol       string
	Side         TradeSide
	Quantity     decimal.Decimal
	Price        decimal.Decimal
	OrderType    OrderType
	Status       TradeStatus
	StrategyName string

	CreatedAt  time.Time
	ExecutedAt *time.Time
	ClosedAt   *time.Time

	StopLoss   *decimal.Decimal
	TakeProfit *decimal.Decimal

	EntryPrice *decimal.Decimal
	ExitPrice  *decimal.Decimal
	PnL        *decimal.Decimal
	Commission *decimal.Decimal

	ExchangeOrderID string
	Notes           string
}

// Position is the current open exposure for a symbol. At most one position
// exists per symbol at any time.
type Position struct {
	Symbol        string
	Side          TradeSide
	Size          decimal.Decimal
	EntryPrice    decimal.Decimal
	CurrentPrice  decimal.Decimal
	UnrealizedPnL decimal.Decimal
	Margin        decimal.Decimal
	Leverage      int
	CreatedAt     time.Time
}

// MarketValue is size times the live mark price.
func (p Position) MarketValue() decimal.Decimal {
	return p.Size.Mul(p.CurrentPrice)
}

// StrategyMetrics is a derived rollup over the trades a strategy produced.
// It is recomputed on demand and never treated as authoritative state.
type StrategyMetrics struct {
	StrategyName  string
	TotalTrades   int
	WinningTrades int
	LosingTrades  int
	TotalPnL      decimal.Decimal
	WinRate       float64
	AvgWin        decimal.Decimal
	AvgLoss       decimal.Decimal
	ProfitFactor  float64
	UpdatedAt     time.Time
}

// Update recomputes the rollup from a trade set. Trades without a settled
// PnL are counted in the total but contribute nothing else.
func (m *StrategyMetrics) Update(trades []*Trade) {
	m.TotalTrades = len(trades)
	m.WinningTrades = 0
	m.LosingTrades = 0
	m.TotalPnL = decimal.Zero
	m.WinRate = 0
	m.AvgWin = decimal.Zero
	m.AvgLoss = decimal.Zero
	m.ProfitFactor = 0

	totalWins := decimal.Zero
	totalLosses := decimal.Zero
	for _, t := range trades {
		if t.PnL == nil {
			continue
		}
		m.TotalPnL = m.TotalPnL.Add(*t.PnL)
		if t.PnL.IsPositive() {
			m.WinningTrades++
			totalWins = totalWins.Add(*t.PnL)
		} else if t.PnL.IsNegative() {
			m.LosingTrades++
			totalLosses = totalLosses.Add(t.PnL.Abs())
		}
	}

	if m.TotalTrades > 0 {
		m.WinRate = float64(m.WinningTrades) / float64(m.TotalTrades)
	}
	if m.WinningTrades > 0 {
		m.AvgWin = totalWins.Div(decimal.NewFromInt(int64(m.WinningTrades)))
	}
	if m.LosingTrades > 0 {
		m.AvgLoss = totalLosses.Div(decimal.NewFromInt(int64(m.LosingTrades)))
	}
	if totalLosses.IsPositive() {
		m.ProfitFactor, _ = totalWins.Div(totalLosses).Float64()
	}
	m.UpdatedAt = time.Now()
}
