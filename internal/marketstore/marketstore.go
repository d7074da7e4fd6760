// Package marketstore is the read-only source of 5-minute and daily OHLCV
// bars, one SQLite file per granularity and one table per stock (named
// A<code>), opened with the same pragma-tuned DSN convention used
// throughout this repo's persistence layer.
package marketstore

import (
	"database/sql"
	"fmt"
	"sort"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/nitinkhare/stockrs-go/internal/stockerr"
	"github.com/nitinkhare/stockrs-go/internal/types"
)

// dsn builds the pragma-tuned SQLite connection string: WAL journaling,
// a busy timeout so concurrent readers don't fail immediately, and foreign
// keys enabled for referential tables elsewhere in the repo.
func dsn(path string) string {
	return path + "?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
}

// Store is the read-only MarketStore: one handle over the 5-minute bar
// database, one over the daily bar database.
type Store struct {
	fiveMin *sql.DB
	daily   *sql.DB

	morningStart int // HHMM, inclusive
	morningEnd   int // HHMM, inclusive
	lateStart    int // optional late-open window start, 0 if unused
	lateEnd      int
}

// Config configures the morning-window boundaries (section 3: default
// 09:05..=09:30, optional late-open 10:05..=10:30).
type Config struct {
	MorningStartHHMM int
	MorningEndHHMM   int
	LateStartHHMM    int
	LateEndHHMM      int
}

// Open opens the two bar databases. This package only reads from them, but
// the connections use the ordinary read-write DSN, not SQLite's read-only
// mode.
func Open(fiveMinPath, dailyPath string, cfg Config) (*Store, error) {
	fm, err := sql.Open("sqlite", dsn(fiveMinPath))
	if err != nil {
		return nil, stockerr.Wrap(stockerr.KindDatabase, "marketstore", "open 5m db", err)
	}
	if err := fm.Ping(); err != nil {
		return nil, stockerr.Wrap(stockerr.KindDatabase, "marketstore", "ping 5m db", err)
	}

	dl, err := sql.Open("sqlite", dsn(dailyPath))
	if err != nil {
		fm.Close()
		return nil, stockerr.Wrap(stockerr.KindDatabase, "marketstore", "open daily db", err)
	}
	if err := dl.Ping(); err != nil {
		fm.Close()
		dl.Close()
		return nil, stockerr.Wrap(stockerr.KindDatabase, "marketstore", "ping daily db", err)
	}

	return &Store{
		fiveMin:      fm,
		daily:        dl,
		morningStart: cfg.MorningStartHHMM,
		morningEnd:   cfg.MorningEndHHMM,
		lateStart:    cfg.LateStartHHMM,
		lateEnd:      cfg.LateEndHHMM,
	}, nil
}

// Close closes both handles. Called on Runner.on_end.
func (s *Store) Close() error {
	err1 := s.fiveMin.Close()
	err2 := s.daily.Close()
	if err1 != nil {
		return err1
	}
	return err2
}

func tableExists(db *sql.DB, name string) (bool, error) {
	var got string
	err := db.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name = ?`, name).Scan(&got)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Morning returns every 5-minute bar for (stock, date) whose YYYYMMDDHHMM
// falls in the configured morning window(s), ordered by time.
func (s *Store) Morning(stock types.StockCode, date int) (types.MorningWindow, error) {
	table := stock.TableName()
	ok, err := tableExists(s.fiveMin, table)
	if err != nil {
		return types.MorningWindow{}, stockerr.Wrap(stockerr.KindDatabase, "marketstore", "check table existence", err)
	}
	if !ok {
		return types.MorningWindow{}, stockerr.New(stockerr.KindNoStockData, "marketstore", fmt.Sprintf("table %s missing", table))
	}

	lo1, hi1 := int64(date)*10000+int64(s.morningStart), int64(date)*10000+int64(s.morningEnd)
	query := fmt.Sprintf(`SELECT date, open, high, low, close, volume FROM %s WHERE date BETWEEN ? AND ?`, table)
	args := []any{lo1, hi1}
	if s.lateStart != 0 && s.lateEnd != 0 {
		lo2, hi2 := int64(date)*10000+int64(s.lateStart), int64(date)*10000+int64(s.lateEnd)
		query = fmt.Sprintf(`SELECT date, open, high, low, close, volume FROM %s WHERE date BETWEEN ? AND ? OR date BETWEEN ? AND ?`, table)
		args = append(args, lo2, hi2)
	}
	query += " ORDER BY date ASC"

	rows, err := s.fiveMin.Query(query, args...)
	if err != nil {
		return types.MorningWindow{}, stockerr.Wrap(stockerr.KindDatabase, "marketstore", "query morning window", err)
	}
	defer rows.Close()

	var win types.MorningWindow
	for rows.Next() {
		var b types.Bar5m
		if err := rows.Scan(&b.Ts, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return types.MorningWindow{}, stockerr.Wrap(stockerr.KindParsing, "marketstore", "scan bar5m", err)
		}
		win.Bars = append(win.Bars, b)
	}
	if err := rows.Err(); err != nil {
		return types.MorningWindow{}, stockerr.Wrap(stockerr.KindDatabase, "marketstore", "iterate morning window", err)
	}
	return win, nil
}

// DailyPrevN returns the n daily bars strictly before asof, in ascending
// order. This is the primary lookahead-discipline boundary: callers must
// never relax the strict "<" on asof.
func (s *Store) DailyPrevN(stock types.StockCode, asof, n int) ([]types.BarDaily, error) {
	table := stock.TableName()
	ok, err := tableExists(s.daily, table)
	if err != nil {
		return nil, stockerr.Wrap(stockerr.KindDatabase, "marketstore", "check table existence", err)
	}
	if !ok {
		return nil, stockerr.New(stockerr.KindNoStockData, "marketstore", fmt.Sprintf("table %s missing", table))
	}

	query := fmt.Sprintf(`SELECT date, open, high, low, close, volume FROM %s WHERE date < ? ORDER BY date DESC LIMIT ?`, table)
	rows, err := s.daily.Query(query, asof, n)
	if err != nil {
		return nil, stockerr.Wrap(stockerr.KindDatabase, "marketstore", "query daily_prev_n", err)
	}
	defer rows.Close()

	var out []types.BarDaily
	for rows.Next() {
		var b types.BarDaily
		if err := rows.Scan(&b.Date, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, stockerr.Wrap(stockerr.KindParsing, "marketstore", "scan bardaily", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, stockerr.Wrap(stockerr.KindDatabase, "marketstore", "iterate daily_prev_n", err)
	}
	// reverse DESC -> ASC
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// DailyRange returns daily bars with d1 <= date < d2 (open interval on the
// upper bound, per section 4.3 — most features want the strict upper bound
// to forbid lookahead; callers needing an inclusive upper bound pass d2+1).
func (s *Store) DailyRange(stock types.StockCode, d1, d2 int) ([]types.BarDaily, error) {
	table := stock.TableName()
	ok, err := tableExists(s.daily, table)
	if err != nil {
		return nil, stockerr.Wrap(stockerr.KindDatabase, "marketstore", "check table existence", err)
	}
	if !ok {
		return nil, stockerr.New(stockerr.KindNoStockData, "marketstore", fmt.Sprintf("table %s missing", table))
	}

	query := fmt.Sprintf(`SELECT date, open, high, low, close, volume FROM %s WHERE date >= ? AND date < ? ORDER BY date ASC`, table)
	rows, err := s.daily.Query(query, d1, d2)
	if err != nil {
		return nil, stockerr.Wrap(stockerr.KindDatabase, "marketstore", "query daily_range", err)
	}
	defer rows.Close()

	var out []types.BarDaily
	for rows.Next() {
		var b types.BarDaily
		if err := rows.Scan(&b.Date, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, stockerr.Wrap(stockerr.KindParsing, "marketstore", "scan bardaily", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, stockerr.Wrap(stockerr.KindDatabase, "marketstore", "iterate daily_range", err)
	}
	return out, nil
}

// TopByTurnover ranks every known stock by its most recent daily bar
// strictly before date (turnover = close * volume) and returns the top n
// codes, skipping anything in exclude. A stock with no daily bar before
// date (not yet listed, or a gap in the feed) is silently skipped rather
// than erroring — this is the default candidate-universe enumeration for
// the Predictor (section 4.5 step 1), not a lookup of a single known
// stock, so partial coverage is expected.
func (s *Store) TopByTurnover(date int, n int, exclude []types.StockCode) ([]types.StockCode, error) {
	excluded := make(map[types.StockCode]struct{}, len(exclude))
	for _, e := range exclude {
		excluded[e] = struct{}{}
	}

	rows, err := s.daily.Query(`SELECT name FROM sqlite_master WHERE type = 'table' AND name LIKE 'A%'`)
	if err != nil {
		return nil, stockerr.Wrap(stockerr.KindDatabase, "marketstore", "list stock tables", err)
	}
	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return nil, stockerr.Wrap(stockerr.KindParsing, "marketstore", "scan table name", err)
		}
		tables = append(tables, name)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, stockerr.Wrap(stockerr.KindDatabase, "marketstore", "iterate stock tables", err)
	}
	rows.Close()

	type ranked struct {
		stock    types.StockCode
		turnover float64
	}
	candidates := make([]ranked, 0, len(tables))
	for _, table := range tables {
		stock := types.StockCode(strings.TrimPrefix(table, "A"))
		if _, skip := excluded[stock]; skip {
			continue
		}

		var close, volume int64
		query := fmt.Sprintf(`SELECT close, volume FROM %s WHERE date < ? ORDER BY date DESC LIMIT 1`, table)
		err := s.daily.QueryRow(query, date).Scan(&close, &volume)
		if err == sql.ErrNoRows {
			continue
		}
		if err != nil {
			return nil, stockerr.Wrap(stockerr.KindDatabase, "marketstore", fmt.Sprintf("query prior turnover for %s", table), err)
		}
		candidates = append(candidates, ranked{stock: stock, turnover: float64(close) * float64(volume)})
	}

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].turnover > candidates[j].turnover })
	if n > 0 && len(candidates) > n {
		candidates = candidates[:n]
	}
	out := make([]types.StockCode, len(candidates))
	for i, c := range candidates {
		out[i] = c.stock
	}
	return out, nil
}

// PriceAt returns the close of the 5-minute bar at exactly the given
// YYYYMMDDHHMM minute, used for mark-to-market.
func (s *Store) PriceAt(stock types.StockCode, ymdhm int64) (float64, error) {
	table := stock.TableName()
	ok, err := tableExists(s.fiveMin, table)
	if err != nil {
		return 0, stockerr.Wrap(stockerr.KindDatabase, "marketstore", "check table existence", err)
	}
	if !ok {
		return 0, stockerr.New(stockerr.KindNoStockData, "marketstore", fmt.Sprintf("table %s missing", table))
	}

	var close int64
	query := fmt.Sprintf(`SELECT close FROM %s WHERE date = ?`, table)
	err = s.fiveMin.QueryRow(query, ymdhm).Scan(&close)
	if err == sql.ErrNoRows {
		return 0, stockerr.New(stockerr.KindPriceInquiry, "marketstore", fmt.Sprintf("no bar for %s at %d", stock, ymdhm))
	}
	if err != nil {
		return 0, stockerr.Wrap(stockerr.KindDatabase, "marketstore", "query price_at", err)
	}
	return float64(close), nil
}
