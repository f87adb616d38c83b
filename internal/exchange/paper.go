package exchange

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"trading_assistant/internal/models"
)

// paperFeeRate approximates the venue's taker fee on each fill.
var paperFeeRate = decimal.NewFromFloat(0.0005)

// PaperClient simulates order execution against live market data. Candles
// come from the wrapped data source; fills happen at the request's
// reference price, so dry runs follow the same code path as live trading.
type PaperClient struct {
	data Client
	log  zerolog.Logger

	mu        sync.RWMutex
	balance   decimal.Decimal
	positions map[string]*models.Position
}

func NewPaperClient(initialBalance decimal.Decimal, data Client, log zerolog.Logger) *PaperClient {
	return &PaperClient{
		data:      data,
		log:       log.With().Str("component", "paper").Logger(),
		balance:   initialBalance,
		positions: make(map[string]*models.Position),
	}
}

func (p *PaperClient) GetCandles(ctx context.Context, symbol, interval string, limit int) ([]models.Candle, error) {
	return p.data.GetCandles(ctx, symbol, interval, limit)
}

func (p *PaperClient) PlaceOrder(ctx context.Context, req OrderRequest) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	price := req.Price
	fee := req.Quantity.Mul(price).Mul(paperFeeRate)
	p.balance = p.balance.Sub(fee)

	existing := p.positions[req.Symbol]
	switch {
	case existing == nil:
		p.positions[req.Symbol] = &models.Position{
			Symbol:       req.Symbol,
			Side:         req.Side,
			Size:         req.Quantity,
			EntryPrice:   price,
			CurrentPrice: price,
			CreatedAt:    time.Now(),
		}
	case existing.Side == req.Side:
		p.merge(existing, req.Quantity, price)
	default:
		p.reduce(existing, req.Quantity, price, req.Side)
	}

	orderID := "paper-" + uuid.NewString()
	p.log.Info().Str("symbol", req.Symbol).Str("side", string(req.Side)).
		Str("qty", req.Quantity.String()).Str("price", price.String()).
		Str("order_id", orderID).Msg("paper fill")
	return orderID, nil
}

// merge folds a same-side fill into the position at the size-weighted
// average entry.
func (p *PaperClient) merge(pos *models.Position, qty, price decimal.Decimal) {
	total := pos.Size.Add(qty)
	pos.EntryPrice = pos.EntryPrice.Mul(pos.Size).Add(price.Mul(qty)).Div(total)
	pos.Size = total
	pos.CurrentPrice = price
}

// reduce books realized P&L for the covered size; any remainder flips the
// position to the incoming side.
func (p *PaperClient) reduce(pos *models.Position, qty, price decimal.Decimal, side models.TradeSide) {
	covered := decimal.Min(qty, pos.Size)
	pnl := price.Sub(pos.EntryPrice).Mul(covered)
	if pos.Side == models.TradeSell {
		pnl = pnl.Neg()
	}
	p.balance = p.balance.Add(pnl)

	remainder := qty.Sub(pos.Size)
	switch {
	case remainder.Sign() > 0:
		pos.Side = side
		pos.Size = remainder
		pos.EntryPrice = price
		pos.CurrentPrice = price
		pos.CreatedAt = time.Now()
	case pos.Size.Equal(covered) && remainder.IsZero():
		delete(p.positions, pos.Symbol)
	default:
		pos.Size = pos.Size.Sub(covered)
		pos.CurrentPrice = price
	}
}

func (p *PaperClient) GetBalance(ctx context.Context) (decimal.Decimal, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.balance, nil
}

func (p *PaperClient) GetPositions(ctx context.Context) ([]*models.Position, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]*models.Position, 0, len(p.positions))
	for _, pos := range p.positions {
		snapshot := *pos
		out = append(out, &snapshot)
	}
	return out, nil
}
