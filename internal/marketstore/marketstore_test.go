package marketstore

import (
	"database/sql"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/stretchr/testify/require"

	"github.com/nitinkhare/stockrs-go/internal/types"
)

func seedDB(t *testing.T, path, table, schema string, rows [][]any) {
	t.Helper()
	db, err := sql.Open("sqlite", dsn(path))
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(`CREATE TABLE ` + table + ` (` + schema + `)`)
	require.NoError(t, err)

	for _, r := range rows {
		_, err := db.Exec(`INSERT INTO `+table+` (date, open, high, low, close, volume) VALUES (?, ?, ?, ?, ?, ?)`, r...)
		require.NoError(t, err)
	}
}

func TestMorningWindowOrderedAndBounded(t *testing.T) {
	dir := t.TempDir()
	fivePath := filepath.Join(dir, "stock.db")
	dailyPath := filepath.Join(dir, "daily.db")

	seedDB(t, fivePath, "A005930", "date INTEGER, open INTEGER, high INTEGER, low INTEGER, close INTEGER, volume INTEGER", [][]any{
		{int64(202306010900), 70000, 70100, 69900, 70050, 1000},
		{int64(202306010905), 70050, 70200, 70000, 70150, 1100},
		{int64(202306010930), 70150, 70300, 70100, 70250, 1200},
		{int64(202306011000), 70250, 70400, 70200, 70350, 1300}, // outside window
	})
	seedDB(t, dailyPath, "A005930", "date INTEGER, open INTEGER, high INTEGER, low INTEGER, close INTEGER, volume INTEGER", nil)

	store, err := Open(fivePath, dailyPath, Config{MorningStartHHMM: 900, MorningEndHHMM: 930})
	require.NoError(t, err)
	defer store.Close()

	win, err := store.Morning(types.StockCode("005930"), 20230601)
	require.NoError(t, err)
	require.Len(t, win.Bars, 3)
	require.Equal(t, int64(70250), win.Bars[2].Close)
}

func TestMorningMissingTableIsNoStockData(t *testing.T) {
	dir := t.TempDir()
	fivePath := filepath.Join(dir, "stock.db")
	dailyPath := filepath.Join(dir, "daily.db")

	seedDB(t, fivePath, "A005930", "date INTEGER, open INTEGER, high INTEGER, low INTEGER, close INTEGER, volume INTEGER", nil)
	seedDB(t, dailyPath, "A005930", "date INTEGER, open INTEGER, high INTEGER, low INTEGER, close INTEGER, volume INTEGER", nil)

	store, err := Open(fivePath, dailyPath, Config{MorningStartHHMM: 900, MorningEndHHMM: 930})
	require.NoError(t, err)
	defer store.Close()

	_, err = store.Morning(types.StockCode("999999"), 20230601)
	require.Error(t, err)
}

func TestDailyPrevNExcludesAsofAndOrdersAscending(t *testing.T) {
	dir := t.TempDir()
	fivePath := filepath.Join(dir, "stock.db")
	dailyPath := filepath.Join(dir, "daily.db")
	seedDB(t, fivePath, "A005930", "date INTEGER, open INTEGER, high INTEGER, low INTEGER, close INTEGER, volume INTEGER", nil)
	seedDB(t, dailyPath, "A005930", "date INTEGER, open INTEGER, high INTEGER, low INTEGER, close INTEGER, volume INTEGER", [][]any{
		{20230529, 100, 110, 90, 105, 10},
		{20230530, 105, 115, 95, 110, 11},
		{20230531, 110, 120, 100, 115, 12},
		{20230601, 115, 125, 105, 120, 13}, // asof date, must be excluded
	})

	store, err := Open(fivePath, dailyPath, Config{MorningStartHHMM: 900, MorningEndHHMM: 930})
	require.NoError(t, err)
	defer store.Close()

	bars, err := store.DailyPrevN(types.StockCode("005930"), 20230601, 2)
	require.NoError(t, err)
	require.Len(t, bars, 2)
	require.Equal(t, 20230530, bars[0].Date)
	require.Equal(t, 20230531, bars[1].Date)
}

func TestPriceAtReadsExactMinute(t *testing.T) {
	dir := t.TempDir()
	fivePath := filepath.Join(dir, "stock.db")
	dailyPath := filepath.Join(dir, "daily.db")
	seedDB(t, fivePath, "A005930", "date INTEGER, open INTEGER, high INTEGER, low INTEGER, close INTEGER, volume INTEGER", [][]any{
		{int64(202306010905), 70050, 70200, 70000, 70150, 1100},
	})
	seedDB(t, dailyPath, "A005930", "date INTEGER, open INTEGER, high INTEGER, low INTEGER, close INTEGER, volume INTEGER", nil)

	store, err := Open(fivePath, dailyPath, Config{MorningStartHHMM: 900, MorningEndHHMM: 930})
	require.NoError(t, err)
	defer store.Close()

	price, err := store.PriceAt(types.StockCode("005930"), 202306010905)
	require.NoError(t, err)
	require.Equal(t, 70150.0, price)

	_, err = store.PriceAt(types.StockCode("005930"), 202306010910)
	require.Error(t, err)
}

func TestTopByTurnoverRanksDescendingAndHonorsExclude(t *testing.T) {
	dir := t.TempDir()
	fivePath := filepath.Join(dir, "stock.db")
	dailyPath := filepath.Join(dir, "daily.db")

	schema := "date INTEGER, open INTEGER, high INTEGER, low INTEGER, close INTEGER, volume INTEGER"
	// turnover = close * volume: 005930 -> 100*1000=100000, 000660 -> 200*900=180000, 035420 -> 50*500=25000
	seedDB(t, dailyPath, "A005930", schema, [][]any{{20230531, 95, 105, 90, 100, 1000}})
	seedDB(t, dailyPath, "A000660", schema, [][]any{{20230531, 190, 210, 180, 200, 900}})
	seedDB(t, dailyPath, "A035420", schema, [][]any{{20230531, 48, 55, 45, 50, 500}})
	seedDB(t, fivePath, "A005930", schema, nil)
	seedDB(t, fivePath, "A000660", schema, nil)
	seedDB(t, fivePath, "A035420", schema, nil)

	store, err := Open(fivePath, dailyPath, Config{MorningStartHHMM: 900, MorningEndHHMM: 930})
	require.NoError(t, err)
	defer store.Close()

	top, err := store.TopByTurnover(20230601, 2, nil)
	require.NoError(t, err)
	require.Equal(t, []types.StockCode{"000660", "005930"}, top)

	top, err = store.TopByTurnover(20230601, 2, []types.StockCode{"000660"})
	require.NoError(t, err)
	require.Equal(t, []types.StockCode{"005930", "035420"}, top)
}

func TestTopByTurnoverSkipsStockWithNoPriorBar(t *testing.T) {
	dir := t.TempDir()
	fivePath := filepath.Join(dir, "stock.db")
	dailyPath := filepath.Join(dir, "daily.db")

	schema := "date INTEGER, open INTEGER, high INTEGER, low INTEGER, close INTEGER, volume INTEGER"
	seedDB(t, dailyPath, "A005930", schema, [][]any{{20230601, 95, 105, 90, 100, 1000}}) // not strictly before asof
	seedDB(t, fivePath, "A005930", schema, nil)

	store, err := Open(fivePath, dailyPath, Config{MorningStartHHMM: 900, MorningEndHHMM: 930})
	require.NoError(t, err)
	defer store.Close()

	top, err := store.TopByTurnover(20230601, 5, nil)
	require.NoError(t, err)
	require.Empty(t, top)
}
