// Package journal is the append-only trade log plus the per-day overview
// table, both backed by the same flat SQLite file as the rest of this
// repo's persistence layer (section 4.8/6).
package journal

import (
	"context"
	"database/sql"

	_ "modernc.org/sqlite"

	"github.com/nitinkhare/stockrs-go/internal/stockerr"
	"github.com/nitinkhare/stockrs-go/internal/types"
)

func dsn(path string) string {
	return path + "?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
}

// Journal owns the trading.db handle: an append-only "trading" table (one
// row per filled order) and an "overview" table (one row per trading
// date, mutated across the day via Insert/Update/Finalize).
type Journal struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS trading (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	date TEXT NOT NULL,
	time TEXT NOT NULL,
	stock TEXT NOT NULL,
	side TEXT NOT NULL,
	qty INTEGER NOT NULL,
	price REAL NOT NULL,
	fee REAL NOT NULL,
	strategy TEXT NOT NULL,
	avg_price REAL NOT NULL,
	profit REAL NOT NULL,
	roi REAL NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_trading_date ON trading(date);
CREATE TABLE IF NOT EXISTS overview (
	date TEXT PRIMARY KEY,
	open REAL NOT NULL,
	high REAL NOT NULL,
	low REAL NOT NULL,
	close REAL NOT NULL,
	volume INTEGER NOT NULL,
	turnover REAL NOT NULL,
	profit REAL NOT NULL,
	roi REAL NOT NULL,
	fee REAL NOT NULL,
	finalized INTEGER NOT NULL DEFAULT 0
);
`

// Open opens (creating if absent) the journal database and ensures both
// tables exist, matching stadam23-Eve-flipper's migrate()-on-open pattern.
func Open(path string) (*Journal, error) {
	db, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, stockerr.Wrap(stockerr.KindDatabase, "journal", "open", err)
	}
	if err := db.Ping(); err != nil {
		return nil, stockerr.Wrap(stockerr.KindDatabase, "journal", "ping", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, stockerr.Wrap(stockerr.KindDatabase, "journal", "migrate", err)
	}
	return &Journal{db: db}, nil
}

// Close closes the underlying handle.
func (j *Journal) Close() error {
	return j.db.Close()
}

// RecordTrade appends one filled-order row. The trading table is
// append-only — there is no Update or Delete path, so recorded history is
// never mutated.
func (j *Journal) RecordTrade(ctx context.Context, t types.Trade) error {
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO trading (date, time, stock, side, qty, price, fee, strategy, avg_price, profit, roi)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.Date, t.Time, string(t.Stock), string(t.Side), t.Qty, t.Price, t.Fee, t.Strategy, t.AvgPrice, t.Profit, t.ROI)
	if err != nil {
		return stockerr.Wrap(stockerr.KindDatabase, "journal", "insert trade", err)
	}
	return nil
}

// InsertOverview creates the day's overview row from the opening equity, the
// first of the Insert/Update/Finalize lifecycle described in section 4.8.
// A day already present is left untouched (idempotent under restart).
func (j *Journal) InsertOverview(ctx context.Context, date string, open float64) error {
	_, err := j.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO overview (date, open, high, low, close, volume, turnover, profit, roi, fee, finalized)
		VALUES (?, ?, ?, ?, ?, 0, 0, 0, 0, 0, 0)`,
		date, open, open, open, open)
	if err != nil {
		return stockerr.Wrap(stockerr.KindDatabase, "journal", "insert overview", err)
	}
	return nil
}

// UpdateOverview folds one more observed price/volume tick into the day's
// running high/low/close/volume/turnover, called as trades and mark
// updates occur through the day.
func (j *Journal) UpdateOverview(ctx context.Context, date string, price float64, volumeDelta int, turnoverDelta float64) error {
	_, err := j.db.ExecContext(ctx, `
		UPDATE overview
		SET high = MAX(high, ?),
		    low = MIN(low, ?),
		    close = ?,
		    volume = volume + ?,
		    turnover = turnover + ?
		WHERE date = ? AND finalized = 0`,
		price, price, price, volumeDelta, turnoverDelta, date)
	if err != nil {
		return stockerr.Wrap(stockerr.KindDatabase, "journal", "update overview", err)
	}
	return nil
}

// Finalize marks the overview row closed per section 4.8's exact formula:
// profit = close - open (total account equity change over the day), roi =
// profit/open*100, fee and turnover summed from the day's filled trades.
func (j *Journal) Finalize(ctx context.Context, date string) error {
	var totalFee, totalTurnover sql.NullFloat64
	err := j.db.QueryRowContext(ctx, `SELECT SUM(fee), SUM(price * qty) FROM trading WHERE date = ?`, date).Scan(&totalFee, &totalTurnover)
	if err != nil {
		return stockerr.Wrap(stockerr.KindDatabase, "journal", "aggregate day trades", err)
	}

	var open, close float64
	if err := j.db.QueryRowContext(ctx, `SELECT open, close FROM overview WHERE date = ?`, date).Scan(&open, &close); err != nil {
		return stockerr.Wrap(stockerr.KindDatabase, "journal", "read overview open/close", err)
	}

	profit := close - open
	var roi float64
	if open != 0 {
		roi = profit / open * 100
	}

	_, err = j.db.ExecContext(ctx, `
		UPDATE overview SET profit = ?, fee = ?, turnover = ?, roi = ?, finalized = 1 WHERE date = ?`,
		profit, totalFee.Float64, totalTurnover.Float64, roi, date)
	if err != nil {
		return stockerr.Wrap(stockerr.KindDatabase, "journal", "finalize overview", err)
	}
	return nil
}

// LastOpenDate returns the most recent overview date not yet finalized;
// ok is false if every known day is finalized. The Runner does not call
// it: a run always starts from its configured start date.
func (j *Journal) LastOpenDate(ctx context.Context) (date string, ok bool, err error) {
	row := j.db.QueryRowContext(ctx, `SELECT date FROM overview WHERE finalized = 0 ORDER BY date DESC LIMIT 1`)
	if scanErr := row.Scan(&date); scanErr != nil {
		if scanErr == sql.ErrNoRows {
			return "", false, nil
		}
		return "", false, stockerr.Wrap(stockerr.KindDatabase, "journal", "read last open date", scanErr)
	}
	return date, true, nil
}

// AllTrades returns every trade ever recorded, in insertion order, for
// reporting tools that summarize a whole run rather than one day.
func (j *Journal) AllTrades(ctx context.Context) ([]types.Trade, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT date, time, stock, side, qty, price, fee, strategy, avg_price, profit, roi
		FROM trading ORDER BY id ASC`)
	if err != nil {
		return nil, stockerr.Wrap(stockerr.KindDatabase, "journal", "query all trades", err)
	}
	defer rows.Close()

	var out []types.Trade
	for rows.Next() {
		var t types.Trade
		var stock, side string
		if err := rows.Scan(&t.Date, &t.Time, &stock, &side, &t.Qty, &t.Price, &t.Fee, &t.Strategy, &t.AvgPrice, &t.Profit, &t.ROI); err != nil {
			return nil, stockerr.Wrap(stockerr.KindParsing, "journal", "scan trade", err)
		}
		t.Stock = types.StockCode(stock)
		t.Side = types.Side(side)
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, stockerr.Wrap(stockerr.KindDatabase, "journal", "iterate all trades", err)
	}
	return out, nil
}

// OverviewRange returns every overview row with date in [from, to]
// (inclusive, "YYYY-MM-DD" lexical comparison), ascending by date — the
// source of equity-curve and drawdown reporting.
func (j *Journal) OverviewRange(ctx context.Context, from, to string) ([]types.DayOverview, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT date, open, high, low, close, volume, turnover, profit, roi, fee
		FROM overview WHERE date BETWEEN ? AND ? ORDER BY date ASC`, from, to)
	if err != nil {
		return nil, stockerr.Wrap(stockerr.KindDatabase, "journal", "query overview range", err)
	}
	defer rows.Close()

	var out []types.DayOverview
	for rows.Next() {
		var o types.DayOverview
		if err := rows.Scan(&o.Date, &o.Open, &o.High, &o.Low, &o.Close, &o.Volume, &o.Turnover, &o.Profit, &o.ROI, &o.Fee); err != nil {
			return nil, stockerr.Wrap(stockerr.KindParsing, "journal", "scan overview", err)
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, stockerr.Wrap(stockerr.KindDatabase, "journal", "iterate overview range", err)
	}
	return out, nil
}

// TradesOnDate returns every trade recorded for date, in insertion order —
// used for report generation (cmd/daily-stats). Finalize aggregates with
// its own SUM query instead.
func (j *Journal) TradesOnDate(ctx context.Context, date string) ([]types.Trade, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT date, time, stock, side, qty, price, fee, strategy, avg_price, profit, roi
		FROM trading WHERE date = ? ORDER BY id ASC`, date)
	if err != nil {
		return nil, stockerr.Wrap(stockerr.KindDatabase, "journal", "query trades on date", err)
	}
	defer rows.Close()

	var out []types.Trade
	for rows.Next() {
		var t types.Trade
		var stock, side string
		if err := rows.Scan(&t.Date, &t.Time, &stock, &side, &t.Qty, &t.Price, &t.Fee, &t.Strategy, &t.AvgPrice, &t.Profit, &t.ROI); err != nil {
			return nil, stockerr.Wrap(stockerr.KindParsing, "journal", "scan trade", err)
		}
		t.Stock = types.StockCode(stock)
		t.Side = types.Side(side)
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, stockerr.Wrap(stockerr.KindDatabase, "journal", "iterate trades", err)
	}
	return out, nil
}
