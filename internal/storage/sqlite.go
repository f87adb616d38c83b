package storage

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"trading_assistant/internal/models"
)

// Decimals are stored as text so values round-trip exactly; timestamps as
// RFC 3339 so date-range queries compare lexicographically.
const schema = `
CREATE TABLE IF NOT EXISTS trades (
	id                TEXT PRIMARY KEY,
	symbol            TEXT NOT NULL,
	side              TEXT NOT NULL,
	quantity          TEXT NOT NULL,
	price             TEXT NOT NULL,
	order_type        TEXT NOT NULL,
	status            TEXT NOT NULL,
	strategy_name     TEXT NOT NULL,
	created_at        TEXT NOT NULL,
	executed_at       TEXT,
	closed_at         TEXT,
	stop_loss         TEXT,
	take_profit       TEXT,
	entry_price       TEXT,
	exit_price        TEXT,
	pnl               TEXT,
	commission        TEXT,
	exchange_order_id TEXT NOT NULL DEFAULT '',
	notes             TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_trades_created ON trades(created_at);
CREATE INDEX IF NOT EXISTS idx_trades_strategy ON trades(strategy_name);

CREATE TABLE IF NOT EXISTS positions (
	symbol         TEXT PRIMARY KEY,
	side           TEXT NOT NULL,
	size           TEXT NOT NULL,
	entry_price    TEXT NOT NULL,
	current_price  TEXT NOT NULL,
	unrealized_pnl TEXT NOT NULL,
	margin         TEXT NOT NULL,
	leverage       INTEGER NOT NULL,
	created_at     TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS candles (
	symbol    TEXT NOT NULL,
	timestamp TEXT NOT NULL,
	open      TEXT NOT NULL,
	high      TEXT NOT NULL,
	low       TEXT NOT NULL,
	close     TEXT NOT NULL,
	volume    TEXT NOT NULL,
	PRIMARY KEY (symbol, timestamp)
);
`

// DB owns the sqlite handle and hands out the typed repositories.
type DB struct {
	db *sql.DB
}

func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// sqlite tolerates one writer; the loop is single-threaded anyway.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &DB{db: db}, nil
}

func (d *DB) Close() error { return d.db.Close() }

func (d *DB) Trades() TradeStore       { return &tradeRepo{db: d.db} }
func (d *DB) Positions() PositionStore { return &positionRepo{db: d.db} }
func (d *DB) Candles() CandleStore     { return &candleRepo{db: d.db} }

type tradeRepo struct {
	db *sql.DB
}

func (r *tradeRepo) Save(t *models.Trade) error {
	_, err := r.db.Exec(`INSERT INTO trades
		(id, symbol, side, quantity, price, order_type, status, strategy_name,
		 created_at, executed_at, closed_at, stop_loss, take_profit,
		 entry_price, exit_price, pnl, commission, exchange_order_id, notes)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		t.ID, t.Symbol, string(t.Side), t.Quantity.String(), t.Price.String(),
		string(t.OrderType), string(t.Status), t.StrategyName,
		formatTime(t.CreatedAt), nullTime(t.ExecutedAt), nullTime(t.ClosedAt),
		nullDecimal(t.StopLoss), nullDecimal(t.TakeProfit),
		nullDecimal(t.EntryPrice), nullDecimal(t.ExitPrice),
		nullDecimal(t.PnL), nullDecimal(t.Commission),
		t.ExchangeOrderID, t.Notes)
	if err != nil {
		return fmt.Errorf("save trade %s: %w", t.ID, err)
	}
	return nil
}

func (r *tradeRepo) Update(t *models.Trade) error {
	res, err := r.db.Exec(`UPDATE trades SET
		status = ?, executed_at = ?, closed_at = ?,
		entry_price = ?, exit_price = ?, pnl = ?, commission = ?,
		exchange_order_id = ?, notes = ?
		WHERE id = ?`,
		string(t.Status), nullTime(t.ExecutedAt), nullTime(t.ClosedAt),
		nullDecimal(t.EntryPrice), nullDecimal(t.ExitPrice),
		nullDecimal(t.PnL), nullDecimal(t.Commission),
		t.ExchangeOrderID, t.Notes, t.ID)
	if err != nil {
		return fmt.Errorf("update trade %s: %w", t.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("update trade %s: not found", t.ID)
	}
	return nil
}

const tradeColumns = `id, symbol, side, quantity, price, order_type, status,
	strategy_name, created_at, executed_at, closed_at, stop_loss, take_profit,
	entry_price, exit_price, pnl, commission, exchange_order_id, notes`

func (r *tradeRepo) QueryByDateRange(start, end time.Time) ([]*models.Trade, error) {
	rows, err := r.db.Query(`SELECT `+tradeColumns+` FROM trades
		WHERE created_at >= ? AND created_at < ? ORDER BY created_at`,
		formatTime(start), formatTime(end))
	if err != nil {
		return nil, fmt.Errorf("query trades by range: %w", err)
	}
	return scanTrades(rows)
}

func (r *tradeRepo) QueryOpen() ([]*models.Trade, error) {
	rows, err := r.db.Query(`SELECT `+tradeColumns+` FROM trades
		WHERE status IN (?, ?) ORDER BY created_at`,
		string(models.TradePending), string(models.TradeOpen))
	if err != nil {
		return nil, fmt.Errorf("query open trades: %w", err)
	}
	return scanTrades(rows)
}

func (r *tradeRepo) QueryByStrategy(name string) ([]*models.Trade, error) {
	rows, err := r.db.Query(`SELECT `+tradeColumns+` FROM trades
		WHERE strategy_name = ? ORDER BY created_at`, name)
	if err != nil {
		return nil, fmt.Errorf("query trades by strategy: %w", err)
	}
	return scanTrades(rows)
}

func scanTrades(rows *sql.Rows) ([]*models.Trade, error) {
	defer rows.Close()

	var out []*models.Trade
	for rows.Next() {
		var t models.Trade
		var side, orderType, status, createdAt string
		var quantity, price string
		var executedAt, closedAt sql.NullString
		var stopLoss, takeProfit, entryPrice, exitPrice, pnl, commission sql.NullString
		err := rows.Scan(&t.ID, &t.Symbol, &side, &quantity, &price,
			&orderType, &status, &t.StrategyName, &createdAt,
			&executedAt, &closedAt, &stopLoss, &takeProfit,
			&entryPrice, &exitPrice, &pnl, &commission,
			&t.ExchangeOrderID, &t.Notes)
		if err != nil {
			return nil, fmt.Errorf("scan trade: %w", err)
		}

		t.Side = models.TradeSide(side)
		t.OrderType = models.OrderType(orderType)
		t.Status = models.TradeStatus(status)
		if t.Quantity, err = decimal.NewFromString(quantity); err != nil {
			return nil, fmt.Errorf("trade %s quantity: %w", t.ID, err)
		}
		if t.Price, err = decimal.NewFromString(price); err != nil {
			return nil, fmt.Errorf("trade %s price: %w", t.ID, err)
		}
		if t.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, fmt.Errorf("trade %s created_at: %w", t.ID, err)
		}
		if t.ExecutedAt, err = parseNullTime(executedAt); err != nil {
			return nil, err
		}
		if t.ClosedAt, err = parseNullTime(closedAt); err != nil {
			return nil, err
		}
		if t.StopLoss, err = parseNullDecimal(stopLoss); err != nil {
			return nil, err
		}
		if t.TakeProfit, err = parseNullDecimal(takeProfit); err != nil {
			return nil, err
		}
		if t.EntryPrice, err = parseNullDecimal(entryPrice); err != nil {
			return nil, err
		}
		if t.ExitPrice, err = parseNullDecimal(exitPrice); err != nil {
			return nil, err
		}
		if t.PnL, err = parseNullDecimal(pnl); err != nil {
			return nil, err
		}
		if t.Commission, err = parseNullDecimal(commission); err != nil {
			return nil, err
		}
		out = append(out, &t)
	}
	return out, rows.Err()
}

type positionRepo struct {
	db *sql.DB
}

func (r *positionRepo) Save(p *models.Position) error {
	_, err := r.db.Exec(`INSERT OR REPLACE INTO positions
		(symbol, side, size, entry_price, current_price, unrealized_pnl,
		 margin, leverage, created_at)
		VALUES (?,?,?,?,?,?,?,?,?)`,
		p.Symbol, string(p.Side), p.Size.String(), p.EntryPrice.String(),
		p.CurrentPrice.String(), p.UnrealizedPnL.String(),
		p.Margin.String(), p.Leverage, formatTime(p.CreatedAt))
	if err != nil {
		return fmt.Errorf("save position %s: %w", p.Symbol, err)
	}
	return nil
}

func (r *positionRepo) Update(p *models.Position) error { return r.Save(p) }

func (r *positionRepo) GetBySymbol(symbol string) (*models.Position, error) {
	row := r.db.QueryRow(`SELECT symbol, side, size, entry_price,
		current_price, unrealized_pnl, margin, leverage, created_at
		FROM positions WHERE symbol = ?`, symbol)
	p, err := scanPosition(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return p, err
}

func (r *positionRepo) GetAll() ([]*models.Position, error) {
	rows, err := r.db.Query(`SELECT symbol, side, size, entry_price,
		current_price, unrealized_pnl, margin, leverage, created_at
		FROM positions ORDER BY symbol`)
	if err != nil {
		return nil, fmt.Errorf("query positions: %w", err)
	}
	defer rows.Close()

	var out []*models.Position
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *positionRepo) Close(symbol string) (bool, error) {
	res, err := r.db.Exec(`DELETE FROM positions WHERE symbol = ?`, symbol)
	if err != nil {
		return false, fmt.Errorf("close position %s: %w", symbol, err)
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPosition(row rowScanner) (*models.Position, error) {
	var p models.Position
	var side, size, entry, current, pnl, margin, createdAt string
	err := row.Scan(&p.Symbol, &side, &size, &entry, &current, &pnl,
		&margin, &p.Leverage, &createdAt)
	if err != nil {
		return nil, err
	}

	p.Side = models.TradeSide(side)
	if p.Size, err = decimal.NewFromString(size); err != nil {
		return nil, fmt.Errorf("position %s size: %w", p.Symbol, err)
	}
	if p.EntryPrice, err = decimal.NewFromString(entry); err != nil {
		return nil, fmt.Errorf("position %s entry: %w", p.Symbol, err)
	}
	if p.CurrentPrice, err = decimal.NewFromString(current); err != nil {
		return nil, fmt.Errorf("position %s mark: %w", p.Symbol, err)
	}
	if p.UnrealizedPnL, err = decimal.NewFromString(pnl); err != nil {
		return nil, fmt.Errorf("position %s pnl: %w", p.Symbol, err)
	}
	if p.Margin, err = decimal.NewFromString(margin); err != nil {
		return nil, fmt.Errorf("position %s margin: %w", p.Symbol, err)
	}
	if p.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("position %s created_at: %w", p.Symbol, err)
	}
	return &p, nil
}

type candleRepo struct {
	db *sql.DB
}

func (r *candleRepo) Save(c models.Candle) error {
	_, err := r.db.Exec(`INSERT OR REPLACE INTO candles
		(symbol, timestamp, open, high, low, close, volume)
		VALUES (?,?,?,?,?,?,?)`,
		c.Symbol, formatTime(c.Timestamp), c.Open.String(), c.High.String(),
		c.Low.String(), c.Close.String(), c.Volume.String())
	if err != nil {
		return fmt.Errorf("save candle %s@%s: %w", c.Symbol, c.Timestamp, err)
	}
	return nil
}

func (r *candleRepo) Recent(symbol string, limit int) ([]models.Candle, error) {
	rows, err := r.db.Query(`SELECT symbol, timestamp, open, high, low, close, volume
		FROM (SELECT * FROM candles WHERE symbol = ?
		      ORDER BY timestamp DESC LIMIT ?)
		ORDER BY timestamp`, symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("query candles %s: %w", symbol, err)
	}
	defer rows.Close()

	var out []models.Candle
	for rows.Next() {
		var c models.Candle
		var ts, open, high, low, closePx, volume string
		if err := rows.Scan(&c.Symbol, &ts, &open, &high, &low, &closePx, &volume); err != nil {
			return nil, fmt.Errorf("scan candle: %w", err)
		}
		if c.Timestamp, err = parseTime(ts); err != nil {
			return nil, err
		}
		if c.Open, err = decimal.NewFromString(open); err != nil {
			return nil, err
		}
		if c.High, err = decimal.NewFromString(high); err != nil {
			return nil, err
		}
		if c.Low, err = decimal.NewFromString(low); err != nil {
			return nil, err
		}
		if c.Close, err = decimal.NewFromString(closePx); err != nil {
			return nil, err
		}
		if c.Volume, err = decimal.NewFromString(volume); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Fixed-width fraction keeps lexicographic order equal to time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string { return t.UTC().Format(timeLayout) }

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func parseNullTime(s sql.NullString) (*time.Time, error) {
	if !s.Valid {
		return nil, nil
	}
	t, err := parseTime(s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func nullDecimal(d *decimal.Decimal) any {
	if d == nil {
		return nil
	}
	return d.String()
}

func parseNullDecimal(s sql.NullString) (*decimal.Decimal, error) {
	if !s.Valid {
		return nil, nil
	}
	d, err := decimal.NewFromString(s.String)
	if err != nil {
		return nil, err
	}
	return &d, nil
}
