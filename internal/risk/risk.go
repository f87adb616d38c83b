// Package risk sizes positions from account equity and enforces the hard
// portfolio caps.
package risk

import (
	"errors"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"trading_assistant/config"
	"trading_assistant/internal/models"
)

// ErrDailyLossBreached halts the trading loop. Recovery requires an
// operator restart.
var ErrDailyLossBreached = errors.New("daily loss limit breached")

type Manager struct {
	cfg config.RiskConfig
	log zerolog.Logger
}

func New(cfg config.RiskConfig, log zerolog.Logger) *Manager {
	return &Manager{
		cfg: cfg,
		log: log.With().Str("component", "risk").Logger(),
	}
}

// PositionSize converts a signal into an order quantity. The risk budget is
// equity times the configured fraction, spread over the distance to the
// signal's stop-loss advisory. Signals without a stop fall back to one
// percent of equity in notional. The result is clamped so the notional
// never exceeds the configured cap.
func (m *Manager) PositionSize(sig *models.TradingSignal, equity decimal.Decimal) decimal.Decimal {
	if sig == nil || sig.Price.IsZero() || equity.Sign() <= 0 {
		return decimal.Zero
	}

	var qty decimal.Decimal
	if sig.SuggestedStopLoss != nil && !sig.SuggestedStopLoss.Equal(sig.Price) {
		budget := equity.Mul(decimal.NewFromFloat(m.cfg.RiskFraction))
		stopDistance := sig.Price.Sub(*sig.SuggestedStopLoss).Abs()
		qty = budget.Div(stopDistance)
	} else {
		qty = equity.Mul(decimal.NewFromFloat(0.01)).Div(sig.Price)
	}

	maxQty := m.cfg.MaxPositionNotional.Div(sig.Price)
	if qty.GreaterThan(maxQty) {
		m.log.Debug().Str("symbol", sig.Symbol).
			Str("qty", qty.String()).Str("max_qty", maxQty.String()).
			Msg("position size clamped to notional cap")
		qty = maxQty
	}
	return qty
}

// Review runs the portfolio-level checks. Too many open positions is a
// warning only. A daily realized loss past the cap returns
// ErrDailyLossBreached and the caller must stop trading.
func (m *Manager) Review(positions []*models.Position, dailyPnL decimal.Decimal) error {
	if len(positions) > m.cfg.MaxPositions {
		m.log.Warn().Int("open", len(positions)).Int("max", m.cfg.MaxPositions).
			Msg("open position count above limit")
	}

	if dailyPnL.LessThan(m.cfg.MaxDailyLoss.Neg()) {
		m.log.Error().Str("daily_pnl", dailyPnL.String()).
			Str("max_daily_loss", m.cfg.MaxDailyLoss.String()).
			Msg("daily loss limit breached, halting")
		return ErrDailyLossBreached
	}
	return nil
}
