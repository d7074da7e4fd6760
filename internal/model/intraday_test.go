package model

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/stretchr/testify/require"

	"github.com/nitinkhare/stockrs-go/internal/marketstore"
	"github.com/nitinkhare/stockrs-go/internal/predictor"
	"github.com/nitinkhare/stockrs-go/internal/types"
)

type fakePredictor struct {
	stock types.StockCode
}

func (f fakePredictor) Predict(ctx context.Context, candidates []types.StockCode, asof int) (predictor.Candidate, error) {
	return predictor.Candidate{Stock: f.stock, Score: 1}, nil
}

// recordingPredictor captures the candidate slice it was asked to score,
// so tests can assert the universe a strategy built without depending on
// a real Backend/feature.Engine chain.
type recordingPredictor struct {
	stock types.StockCode
	got   *[]types.StockCode
}

func (f recordingPredictor) Predict(ctx context.Context, candidates []types.StockCode, asof int) (predictor.Candidate, error) {
	*f.got = candidates
	return predictor.Candidate{Stock: f.stock, Score: 1}, nil
}

func seedDailyOnly(t *testing.T, dailyPath, table string, row []any) {
	t.Helper()
	db, err := sql.Open("sqlite", dailyPath)
	require.NoError(t, err)
	defer db.Close()
	_, err = db.Exec(`CREATE TABLE ` + table + ` (date INTEGER, open INTEGER, high INTEGER, low INTEGER, close INTEGER, volume INTEGER)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO `+table+` (date, open, high, low, close, volume) VALUES (?, ?, ?, ?, ?, ?)`, row...)
	require.NoError(t, err)
}

func TestIntradayCandidateTopNRanksByTurnoverAndExcludes(t *testing.T) {
	dir := t.TempDir()
	fivePath := filepath.Join(dir, "stock.db")
	dailyPath := filepath.Join(dir, "daily.db")

	seedDailyOnly(t, dailyPath, "A005930", []any{20230531, 95, 105, 90, 100, 1000}) // turnover 100000
	seedDailyOnly(t, dailyPath, "A000660", []any{20230531, 190, 210, 180, 200, 900}) // turnover 180000
	seedDailyOnly(t, dailyPath, "A035420", []any{20230531, 48, 55, 45, 50, 500})     // turnover 25000
	fdb, err := sql.Open("sqlite", fivePath)
	require.NoError(t, err)
	for _, table := range []string{"A005930", "A000660", "A035420"} {
		_, err = fdb.Exec(`CREATE TABLE ` + table + ` (date INTEGER, open INTEGER, high INTEGER, low INTEGER, close INTEGER, volume INTEGER)`)
		require.NoError(t, err)
	}
	require.NoError(t, fdb.Close())

	store, err := marketstore.Open(fivePath, dailyPath, marketstore.Config{MorningStartHHMM: 900, MorningEndHHMM: 930})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	var got []types.StockCode
	pred := recordingPredictor{stock: "000660", got: &got}
	m := NewIntraday(IntradayConfig{
		CandidateTopN: 2,
		ExcludeList:   []types.StockCode{"035420"},
		EntryTimeHHMM: 930,
	})

	order, err := m.OnEvent(context.Background(), Bundle{
		Ts: 202306010930, Date: 20230601, Market: store, Pred: pred,
		AvailableCash: 100000, PriceAt: constPrice(200),
	})
	require.NoError(t, err)
	require.NotNil(t, order)
	require.Equal(t, []types.StockCode{"000660", "005930"}, got)
}

func newIntradayForTest() (*Intraday, fakePredictor) {
	cfg := IntradayConfig{
		Candidates:        []types.StockCode{"005930"},
		EntryTimeHHMM:     930,
		LatestFlattenHHMM: 1200,
		StopLossPct:       0.02,
		TakeProfitPct:     0.03,
		TrailingStopPct:   0.01,
	}
	return NewIntraday(cfg), fakePredictor{stock: "005930"}
}

func TestIntradayEntersAtConfiguredTime(t *testing.T) {
	m, pred := newIntradayForTest()
	ctx := context.Background()

	order, err := m.OnEvent(ctx, Bundle{Ts: 202306010900, Date: 20230601, Pred: pred, AvailableCash: 100000, PriceAt: constPrice(100)})
	require.NoError(t, err)
	require.Nil(t, order)
	require.Equal(t, waitingForEntry, m.state)

	order, err = m.OnEvent(ctx, Bundle{Ts: 202306010930, Date: 20230601, Pred: pred, AvailableCash: 100000, PriceAt: constPrice(100)})
	require.NoError(t, err)
	require.NotNil(t, order)
	require.Equal(t, types.SideBuy, order.Side)
	require.Equal(t, uint32(1000), order.Qty)
	require.Equal(t, holding, m.state)
}

func TestIntradayStopLossClosesPosition(t *testing.T) {
	m, pred := newIntradayForTest()
	ctx := context.Background()

	_, err := m.OnEvent(ctx, Bundle{Ts: 202306010930, Date: 20230601, Pred: pred, AvailableCash: 100000, PriceAt: constPrice(100)})
	require.NoError(t, err)

	order, err := m.OnEvent(ctx, Bundle{Ts: 202306010935, Pred: pred, PriceAt: constPrice(97.5)})
	require.NoError(t, err)
	require.NotNil(t, order)
	require.Equal(t, types.SideSell, order.Side)
	require.Equal(t, intradayClosed, m.state)
}

func TestIntradayTakeProfitSellsHalfThenTrailingStopClosesRest(t *testing.T) {
	m, pred := newIntradayForTest()
	ctx := context.Background()

	_, err := m.OnEvent(ctx, Bundle{Ts: 202306010930, Date: 20230601, Pred: pred, AvailableCash: 100000, PriceAt: constPrice(100)})
	require.NoError(t, err)
	require.Equal(t, uint32(1000), m.qty)

	order, err := m.OnEvent(ctx, Bundle{Ts: 202306010940, Pred: pred, PriceAt: constPrice(104)})
	require.NoError(t, err)
	require.NotNil(t, order)
	require.Equal(t, types.SideSell, order.Side)
	require.Equal(t, uint32(500), order.Qty)
	require.Equal(t, partialSold, m.state)
	require.Equal(t, uint32(500), m.qty)

	order, err = m.OnEvent(ctx, Bundle{Ts: 202306010945, Pred: pred, PriceAt: constPrice(106)})
	require.NoError(t, err)
	require.Nil(t, order)

	order, err = m.OnEvent(ctx, Bundle{Ts: 202306010950, Pred: pred, PriceAt: constPrice(104.8)})
	require.NoError(t, err)
	require.NotNil(t, order)
	require.Equal(t, types.SideSell, order.Side)
	require.Equal(t, uint32(500), order.Qty)
	require.Equal(t, intradayClosed, m.state)
}

func TestIntradayForcedFlattenAtLatestTime(t *testing.T) {
	m, pred := newIntradayForTest()
	ctx := context.Background()

	_, err := m.OnEvent(ctx, Bundle{Ts: 202306010930, Date: 20230601, Pred: pred, AvailableCash: 100000, PriceAt: constPrice(100)})
	require.NoError(t, err)

	order, err := m.OnEvent(ctx, Bundle{Ts: 202306011200, Pred: pred, PriceAt: constPrice(101)})
	require.NoError(t, err)
	require.NotNil(t, order)
	require.Equal(t, types.SideSell, order.Side)
	require.Equal(t, uint32(1000), order.Qty)
	require.Equal(t, intradayClosed, m.state)
}

func TestIntradayResetClearsPositionState(t *testing.T) {
	m, pred := newIntradayForTest()
	ctx := context.Background()

	_, err := m.OnEvent(ctx, Bundle{Ts: 202306010930, Date: 20230601, Pred: pred, AvailableCash: 100000, PriceAt: constPrice(100)})
	require.NoError(t, err)
	require.Equal(t, holding, m.state)

	require.NoError(t, m.ResetForNewDay(ctx, 20230602))
	require.Equal(t, waitingForEntry, m.state)
	require.Equal(t, uint32(0), m.qty)
}
