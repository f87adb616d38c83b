// Package storage persists trades, positions, and candles. The rest of the
// system depends on the store interfaces only; the sqlite implementation
// lives behind them.
package storage

import (
	"time"

	"trading_assistant/internal/models"
)

type TradeStore interface {
	Save(t *models.Trade) error
	Update(t *models.Trade) error
	QueryByDateRange(start, end time.Time) ([]*models.Trade, error)
	QueryOpen() ([]*models.Trade, error)
	QueryByStrategy(name string) ([]*models.Trade, error)
}

type PositionStore interface {
	Save(p *models.Position) error
	Update(p *models.Position) error
	GetBySymbol(symbol string) (*models.Position, error)
	GetAll() ([]*models.Position, error)
	Close(symbol string) (bool, error)
}

// CandleStore keeps a trailing window of market data per symbol. Save is
// idempotent on (symbol, timestamp).
type CandleStore interface {
	Save(c models.Candle) error
	Recent(symbol string, limit int) ([]models.Candle, error)
}
