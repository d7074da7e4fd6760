package feature

import (
	"database/sql"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/stretchr/testify/require"

	"github.com/nitinkhare/stockrs-go/internal/marketstore"
	"github.com/nitinkhare/stockrs-go/internal/types"
)

func seedTable(t *testing.T, path, table string, rows [][]any) {
	t.Helper()
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()
	_, err = db.Exec(`CREATE TABLE ` + table + ` (date INTEGER, open INTEGER, high INTEGER, low INTEGER, close INTEGER, volume INTEGER)`)
	require.NoError(t, err)
	for _, r := range rows {
		_, err := db.Exec(`INSERT INTO `+table+` (date, open, high, low, close, volume) VALUES (?, ?, ?, ?, ?, ?)`, r...)
		require.NoError(t, err)
	}
}

func newTestStore(t *testing.T) (*marketstore.Store, types.StockCode) {
	t.Helper()
	dir := t.TempDir()
	fivePath := filepath.Join(dir, "stock.db")
	dailyPath := filepath.Join(dir, "daily.db")
	stock := types.StockCode("005930")
	table := stock.TableName()

	seedTable(t, fivePath, table, [][]any{
		{int64(202306010900), 1000, 1010, 990, 1005, 100},
		{int64(202306010905), 1005, 1020, 1000, 1015, 110},
		{int64(202306010930), 1015, 1030, 1010, 1025, 120},
	})

	dailyRows := make([][]any, 0, 60)
	base := 20230401
	price := 900
	for i := 0; i < 60; i++ {
		d := base + i
		dailyRows = append(dailyRows, []any{d, price, price + 20, price - 20, price + 5, 1000 + i})
		price += 1
	}
	seedTable(t, dailyPath, table, dailyRows)

	store, err := marketstore.Open(fivePath, dailyPath, marketstore.Config{MorningStartHHMM: 900, MorningEndHHMM: 930})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store, stock
}

func TestDay1CurrentPriceRatio(t *testing.T) {
	store, stock := newTestStore(t)
	win, err := store.Morning(stock, 20230601)
	require.NoError(t, err)

	e := NewEngine()
	b := Bundle{Stock: stock, Asof: 20230601, Window: win, Market: store}

	v, known, err := e.Eval("day1.current_price_ratio", b)
	require.NoError(t, err)
	require.True(t, known)
	require.InDelta(t, (1025.0-1000.0)/1000.0, v, 1e-9)
}

func TestDay1PricePositionRatio(t *testing.T) {
	store, stock := newTestStore(t)
	win, err := store.Morning(stock, 20230601)
	require.NoError(t, err)

	e := NewEngine()
	b := Bundle{Stock: stock, Asof: 20230601, Window: win, Market: store}

	v, _, err := e.Eval("day1.price_position_ratio", b)
	require.NoError(t, err)
	require.GreaterOrEqual(t, v, 0.0)
	require.LessOrEqual(t, v, 1.0)
}

func TestUnknownFeatureYieldsZeroWithoutError(t *testing.T) {
	store, stock := newTestStore(t)
	win, err := store.Morning(stock, 20230601)
	require.NoError(t, err)

	e := NewEngine()
	b := Bundle{Stock: stock, Asof: 20230601, Window: win, Market: store}

	v, known, err := e.Eval("day99.does_not_exist", b)
	require.NoError(t, err)
	require.False(t, known)
	require.Equal(t, 0.0, v)
}

func TestDay28PivotOrdering(t *testing.T) {
	store, stock := newTestStore(t)
	win, err := store.Morning(stock, 20230601)
	require.NoError(t, err)

	e := NewEngine()
	b := Bundle{Stock: stock, Asof: 20230601, Window: win, Market: store}

	pivot, known, err := e.Eval("day28.pivot", b)
	require.NoError(t, err)
	require.True(t, known)

	r1, _, err := e.Eval("day28.r1", b)
	require.NoError(t, err)
	s1, _, err := e.Eval("day28.s1", b)
	require.NoError(t, err)

	require.Greater(t, r1, pivot)
	require.Less(t, s1, pivot)
}

func TestDay22RollingMeanReturnEvaluates(t *testing.T) {
	store, stock := newTestStore(t)
	win, err := store.Morning(stock, 20230601)
	require.NoError(t, err)

	e := NewEngine()
	b := Bundle{Stock: stock, Asof: 20230601, Window: win, Market: store}

	_, known, err := e.Eval("day22.rolling_mean_return_20", b)
	require.NoError(t, err)
	require.True(t, known)
}

// TestDay19GapPercentMatchesScenario4 matches section 8 scenario 4 verbatim:
// prior close 10,000, today open 10,600 -> clip(0.06, -0.1, 0.1)*10 = 0.6.
func TestDay19GapPercentMatchesScenario4(t *testing.T) {
	dir := t.TempDir()
	fivePath := filepath.Join(dir, "stock.db")
	dailyPath := filepath.Join(dir, "daily.db")
	stock := types.StockCode("005930")
	table := stock.TableName()

	seedTable(t, fivePath, table, [][]any{
		{int64(202306020900), 10600, 10650, 10580, 10620, 100},
	})
	seedTable(t, dailyPath, table, [][]any{
		{20230601, 9900, 10050, 9880, 10000, 1000},
	})

	store, err := marketstore.Open(fivePath, dailyPath, marketstore.Config{MorningStartHHMM: 900, MorningEndHHMM: 930})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	win, err := store.Morning(stock, 20230602)
	require.NoError(t, err)

	e := NewEngine()
	b := Bundle{Stock: stock, Asof: 20230602, Window: win, Market: store}

	v, known, err := e.Eval("day19.gap_percent", b)
	require.NoError(t, err)
	require.True(t, known)
	require.InDelta(t, 0.6, v, 1e-9)

	flag, _, err := e.Eval("day19.gap_up_flag", b)
	require.NoError(t, err)
	require.Equal(t, 1.0, flag)
}

func TestEvalVectorCollectsAllNames(t *testing.T) {
	store, stock := newTestStore(t)
	win, err := store.Morning(stock, 20230601)
	require.NoError(t, err)

	e := NewEngine()
	b := Bundle{Stock: stock, Asof: 20230601, Window: win, Market: store}

	vec, err := e.EvalVector([]string{"day1.current_price_ratio", "day99.missing"}, b)
	require.NoError(t, err)
	require.Contains(t, vec, "day1.current_price_ratio")
	require.Equal(t, 0.0, vec["day99.missing"])
}
