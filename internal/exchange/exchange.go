// Package exchange is the boundary to the derivatives venue. The decision
// pipeline only sees the Client interface; retry and wire details stay on
// this side of it.
package exchange

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/adshao/go-binance/v2/futures"
	"github.com/jpillora/backoff"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"trading_assistant/internal/models"
)

// OrderRequest carries everything the venue needs to fill an order. Price is
// the signal's reference price, used for paper fills and logging; market
// orders on the live client fill at the venue's price regardless.
type OrderRequest struct {
	Symbol     string
	Side       models.TradeSide
	Quantity   decimal.Decimal
	Type       models.OrderType
	Price      decimal.Decimal
	StopLoss   *decimal.Decimal
	TakeProfit *decimal.Decimal
}

// Client is the venue capability the orchestrator consumes. PlaceOrder
// returns the exchange order id; an error means the order was not accepted.
type Client interface {
	GetCandles(ctx context.Context, symbol, interval string, limit int) ([]models.Candle, error)
	PlaceOrder(ctx context.Context, req OrderRequest) (string, error)
	GetBalance(ctx context.Context) (decimal.Decimal, error)
	GetPositions(ctx context.Context) ([]*models.Position, error)
}

// The pinned futures package only exports the LIMIT and MARKET order types;
// the conditional close-position types are sent as their wire strings.
const (
	orderTypeStopMarket       = futures.OrderType("STOP_MARKET")
	orderTypeTakeProfitMarket = futures.OrderType("TAKE_PROFIT_MARKET")
)

// FuturesClient talks to Binance USD-M futures.
type FuturesClient struct {
	client *futures.Client
	log    zerolog.Logger
}

func NewFuturesClient(apiKey, secretKey string, testnet bool, log zerolog.Logger) *FuturesClient {
	if testnet {
		futures.UseTestnet = true
	}
	return &FuturesClient{
		client: futures.NewClient(apiKey, secretKey),
		log:    log.With().Str("component", "exchange").Logger(),
	}
}

// GetCandles fetches up to limit klines, retrying transient failures a few
// times before giving up. The venue may return fewer candles than asked.
func (c *FuturesClient) GetCandles(ctx context.Context, symbol, interval string, limit int) ([]models.Candle, error) {
	b := &backoff.Backoff{Min: 250 * time.Millisecond, Max: 3 * time.Second, Jitter: true}

	var klines []*futures.Kline
	var err error
	for attempt := 0; attempt < 3; attempt++ {
		klines, err = c.client.NewKlinesService().
			Symbol(symbol).
			Interval(interval).
			Limit(limit).
			Do(ctx)
		if err == nil {
			break
		}
		c.log.Warn().Err(err).Str("symbol", symbol).Int("attempt", attempt+1).
			Msg("kline fetch failed")
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(b.Duration()):
		}
	}
	if err != nil {
		return nil, fmt.Errorf("fetch klines %s: %w", symbol, err)
	}

	candles := make([]models.Candle, 0, len(klines))
	for _, k := range klines {
		candle, err := candleFromKline(symbol, k)
		if err != nil {
			return nil, err
		}
		candles = append(candles, candle)
	}
	return candles, nil
}

func candleFromKline(symbol string, k *futures.Kline) (models.Candle, error) {
	fields := [5]string{k.Open, k.High, k.Low, k.Close, k.Volume}
	var parsed [5]decimal.Decimal
	for i, s := range fields {
		d, err := decimal.NewFromString(s)
		if err != nil {
			return models.Candle{}, fmt.Errorf("parse kline field %q: %w", s, err)
		}
		parsed[i] = d
	}
	return models.Candle{
		Symbol:    symbol,
		Timestamp: time.UnixMilli(k.OpenTime),
		Open:      parsed[0],
		High:      parsed[1],
		Low:       parsed[2],
		Close:     parsed[3],
		Volume:    parsed[4],
	}, nil
}

func (c *FuturesClient) PlaceOrder(ctx context.Context, req OrderRequest) (string, error) {
	side := futures.SideTypeBuy
	if req.Side == models.TradeSell {
		side = futures.SideTypeSell
	}

	svc := c.client.NewCreateOrderService().
		Symbol(req.Symbol).
		Side(side).
		Quantity(req.Quantity.String())
	switch req.Type {
	case models.OrderLimit:
		svc = svc.Type(futures.OrderTypeLimit).
			TimeInForce(futures.TimeInForceTypeGTC).
			Price(req.Price.String())
	default:
		svc = svc.Type(futures.OrderTypeMarket)
	}

	order, err := svc.Do(ctx)
	if err != nil {
		return "", fmt.Errorf("place %s %s: %w", req.Side, req.Symbol, err)
	}
	orderID := strconv.FormatInt(order.OrderID, 10)

	// Protective orders ride alongside the entry; losing one is logged but
	// does not fail the fill that already happened.
	if req.StopLoss != nil {
		if err := c.placeProtective(ctx, req, orderTypeStopMarket, *req.StopLoss); err != nil {
			c.log.Warn().Err(err).Str("symbol", req.Symbol).Msg("stop-loss order rejected")
		}
	}
	if req.TakeProfit != nil {
		if err := c.placeProtective(ctx, req, orderTypeTakeProfitMarket, *req.TakeProfit); err != nil {
			c.log.Warn().Err(err).Str("symbol", req.Symbol).Msg("take-profit order rejected")
		}
	}

	c.log.Info().Str("symbol", req.Symbol).Str("side", string(req.Side)).
		Str("qty", req.Quantity.String()).Str("order_id", orderID).
		Msg("order placed")
	return orderID, nil
}

func (c *FuturesClient) placeProtective(ctx context.Context, req OrderRequest,
	kind futures.OrderType, trigger decimal.Decimal) error {

	side := futures.SideTypeSell
	if req.Side == models.TradeSell {
		side = futures.SideTypeBuy
	}
	_, err := c.client.NewCreateOrderService().
		Symbol(req.Symbol).
		Side(side).
		Type(kind).
		StopPrice(trigger.String()).
		ClosePosition(true).
		Do(ctx)
	return err
}

func (c *FuturesClient) GetBalance(ctx context.Context) (decimal.Decimal, error) {
	account, err := c.client.NewGetAccountService().Do(ctx)
	if err != nil {
		return decimal.Zero, fmt.Errorf("fetch account: %w", err)
	}
	for _, asset := range account.Assets {
		if asset.Asset == "USDT" {
			return decimal.NewFromString(asset.WalletBalance)
		}
	}
	return decimal.Zero, nil
}

func (c *FuturesClient) GetPositions(ctx context.Context) ([]*models.Position, error) {
	account, err := c.client.NewGetAccountService().Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch account: %w", err)
	}

	var out []*models.Position
	for _, p := range account.Positions {
		amt, err := decimal.NewFromString(p.PositionAmt)
		if err != nil || amt.IsZero() {
			continue
		}
		entry, _ := decimal.NewFromString(p.EntryPrice)
		pnl, _ := decimal.NewFromString(p.UnrealizedProfit)
		leverage, _ := strconv.Atoi(p.Leverage)

		side := models.TradeBuy
		if amt.Sign() < 0 {
			side = models.TradeSell
		}
		out = append(out, &models.Position{
			Symbol:        p.Symbol,
			Side:          side,
			Size:          amt.Abs(),
			EntryPrice:    entry,
			CurrentPrice:  entry,
			UnrealizedPnL: pnl,
			Leverage:      leverage,
		})
	}
	return out, nil
}
