// Package main is the entry point for the stockrs-go trading engine.
//
// It loads the TOML configuration, constructs every component the Runner
// drives (Calendar, TimeService, MarketStore, FeatureEngine, Predictor,
// ExecutionBackend, Broker, Journal, Model, risk Manager, CircuitBreaker),
// then runs the single-threaded event loop until the cursor passes
// end_date, a fatal error occurs, or the process receives SIGINT/SIGTERM.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/phuslu/log"

	"github.com/nitinkhare/stockrs-go/internal/broker"
	"github.com/nitinkhare/stockrs-go/internal/calendar"
	"github.com/nitinkhare/stockrs-go/internal/config"
	"github.com/nitinkhare/stockrs-go/internal/execution"
	"github.com/nitinkhare/stockrs-go/internal/feature"
	"github.com/nitinkhare/stockrs-go/internal/journal"
	"github.com/nitinkhare/stockrs-go/internal/marketstore"
	"github.com/nitinkhare/stockrs-go/internal/model"
	"github.com/nitinkhare/stockrs-go/internal/predictor"
	"github.com/nitinkhare/stockrs-go/internal/risk"
	"github.com/nitinkhare/stockrs-go/internal/runner"
	"github.com/nitinkhare/stockrs-go/internal/stockerr"
	"github.com/nitinkhare/stockrs-go/internal/timeservice"
	"github.com/nitinkhare/stockrs-go/internal/token"
	"github.com/nitinkhare/stockrs-go/internal/types"
)

func main() {
	configPath := flag.String("config", "config.toml", "path to the engine's TOML configuration")
	modeFlag := flag.String("mode", "", "override trading.default_mode: real, paper, or backtest")
	tradingDBFlag := flag.String("trading-db", "", "override database.trading_db_path")
	modelFlag := flag.String("model", "", "override model_prediction.strategy: fixed_time or intraday_prediction")
	flag.Parse()

	if err := run(*configPath, *modeFlag, *tradingDBFlag, *modelFlag); err != nil {
		log.DefaultLogger.Error().Err(err).Msg("engine: fatal")
		os.Exit(1)
	}
}

func run(configPath, modeOverride, tradingDBOverride, modelOverride string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if modeOverride != "" {
		cfg.Trading.DefaultMode = config.Mode(modeOverride)
	}
	if tradingDBOverride != "" {
		cfg.Database.TradingDBPath = tradingDBOverride
	}
	if modelOverride != "" {
		cfg.ModelPrediction.Strategy = modelOverride
	}
	if err := cfg.Validate(); err != nil {
		return stockerr.Wrap(stockerr.KindConfig, "main", "validate overridden config", err)
	}

	logger := buildLogger(cfg.Logging)

	cal, err := calendar.Load(cfg.TimeManagement.TradingDatesFilePath, cfg.TimeManagement.MarketCloseFilePath)
	if err != nil {
		return err
	}

	sched, tsMode, err := buildSchedule(cfg)
	if err != nil {
		return err
	}
	ts, err := timeservice.New(cal, sched, tsMode)
	if err != nil {
		return err
	}

	market, err := marketstore.Open(cfg.Database.StockDBPath, cfg.Database.DailyDBPath, buildMarketConfig(cfg.TimeManagement))
	if err != nil {
		return err
	}

	j, err := journal.Open(cfg.Database.TradingDBPath)
	if err != nil {
		return err
	}

	engine := feature.NewEngine()

	backend, equitySrc, err := buildExecutionBackend(cfg, logger)
	if err != nil {
		return err
	}
	brk := broker.New(backend, j)

	weights := make(map[string]float64, len(cfg.ModelPrediction.FeatureNames))
	for _, name := range cfg.ModelPrediction.FeatureNames {
		weights[name] = 1.0
	}
	scoringBackend := predictor.LinearBackend{Weights: weights}
	pred := predictor.New(engine, scoringBackend, market, cal, predictor.Config{
		FeatureNames: cfg.ModelPrediction.FeatureNames,
		Concurrency:  cfg.Performance.WorkerThreads,
	})

	riskMgr := risk.NewManager(cfg.RiskManagement)
	cb := risk.NewCircuitBreaker(cfg.RiskManagement.CircuitBreaker, logger)

	watcher := config.NewWatcher(configPath, cfg, logger)
	watcher.OnChange(func(_, newCfg *config.Config) {
		riskMgr.UpdateConfig(newCfg.RiskManagement)
		cb.UpdateConfig(newCfg.RiskManagement.CircuitBreaker)
	})
	if err := watcher.Start(); err != nil {
		logger.Warn().Err(err).Msg("main: config hot-reload disabled, initial stat failed")
	} else {
		defer watcher.Stop()
	}

	mdl, err := buildModel(cfg)
	if err != nil {
		return err
	}

	r := runner.New(runner.Config{
		Calendar:  cal,
		Time:      ts,
		Market:    market,
		Engine:    engine,
		Broker:    brk,
		Equity:    equitySrc,
		Journal:   j,
		Model:     mdl,
		Predictor: pred,
		Risk:      riskMgr,
		Breaker:   cb,
		Logger:    logger,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		r.Stop()
		ts.Stop()
	}()

	return r.Run(ctx)
}

func buildLogger(cfg config.LoggingConfig) *log.Logger {
	level := log.InfoLevel
	switch strings.ToLower(cfg.Level) {
	case "error":
		level = log.ErrorLevel
	case "warn":
		level = log.WarnLevel
	case "debug":
		level = log.DebugLevel
	case "trace":
		level = log.TraceLevel
	}
	return &log.Logger{Level: level, Writer: &log.ConsoleWriter{}}
}

// buildSchedule turns TimeManagementConfig's string fields into the
// integer YYYYMMDD/HHMM shapes timeservice.ScheduleConfig expects, and
// picks Simulated pacing for backtest runs, WallClock for real/paper.
func buildSchedule(cfg *config.Config) (timeservice.ScheduleConfig, timeservice.Mode, error) {
	start, err := parseYMD(cfg.TimeManagement.StartDate)
	if err != nil {
		return timeservice.ScheduleConfig{}, 0, err
	}
	end, err := parseYMD(cfg.TimeManagement.EndDate)
	if err != nil {
		return timeservice.ScheduleConfig{}, 0, err
	}
	tradingStart, err := parseHHMM(cfg.TimeManagement.TradingStartTime)
	if err != nil {
		return timeservice.ScheduleConfig{}, 0, err
	}
	tradingEnd, err := parseHHMM(cfg.TimeManagement.TradingEndTime)
	if err != nil {
		return timeservice.ScheduleConfig{}, 0, err
	}

	var morningEnd int
	if cfg.TimeManagement.MorningWindowEnd != "" {
		morningEnd, err = parseHHMM(cfg.TimeManagement.MorningWindowEnd)
		if err != nil {
			return timeservice.ScheduleConfig{}, 0, err
		}
	}

	intervalMinutes := cfg.TimeManagement.EventCheckIntervalSec / 60
	if cfg.TimeManagement.EventCheckIntervalSec > 0 && intervalMinutes == 0 {
		intervalMinutes = 1
	}

	sched := timeservice.ScheduleConfig{
		StartDate:                 start,
		EndDate:                   end,
		TradingStartHHMM:          tradingStart,
		TradingEndHHMM:            tradingEnd,
		MorningWindowEndHHMM:      morningEnd,
		EventCheckIntervalMinutes: intervalMinutes,
	}

	mode := timeservice.WallClock
	if cfg.Trading.DefaultMode == config.ModeBacktest {
		mode = timeservice.Simulated
	}
	return sched, mode, nil
}

func buildMarketConfig(cfg config.TimeManagementConfig) marketstore.Config {
	morningStart, morningEnd := 905, 930
	if cfg.MorningWindowStart != "" {
		if v, err := parseHHMM(cfg.MorningWindowStart); err == nil {
			morningStart = v
		}
	}
	if cfg.MorningWindowEnd != "" {
		if v, err := parseHHMM(cfg.MorningWindowEnd); err == nil {
			morningEnd = v
		}
	}
	return marketstore.Config{MorningStartHHMM: morningStart, MorningEndHHMM: morningEnd}
}

// equitySource mirrors runner's unexported interface so this package can
// pass nil (Real/Paper) or a *execution.Backtest without importing an
// internal type.
type equitySource interface {
	Equity(markPrice func(types.StockCode) float64) float64
	HoldingQty(stock types.StockCode) uint32
}

func buildExecutionBackend(cfg *config.Config, logger *log.Logger) (execution.Backend, equitySource, error) {
	switch cfg.Trading.DefaultMode {
	case config.ModeBacktest:
		pf := types.NewPortfolio(cfg.Trading.InitialCapital)
		bt := execution.NewBacktest(pf, execution.BacktestConfig{
			BuyFeeRate:        cfg.Trading.BuyFeeRate,
			SellFeeRate:       cfg.Trading.SellFeeRate,
			BuySlippageRate:   cfg.Trading.BuySlippageRate,
			SellSlippageRate:  cfg.Trading.SellSlippageRate,
			AllowNegativeCash: cfg.Trading.AllowNegativeCash,
		})
		return bt, bt, nil

	case config.ModeReal, config.ModePaper:
		kind := "real"
		baseURL, accountNumber, tokenPath := cfg.BrokerageAPI.RealBaseURL, cfg.BrokerageAPI.RealAccountNumber, cfg.TokenManagement.RealTokenFilePath
		if cfg.Trading.DefaultMode == config.ModePaper {
			kind = "paper"
			baseURL, accountNumber, tokenPath = cfg.BrokerageAPI.PaperBaseURL, cfg.BrokerageAPI.PaperAccountNumber, cfg.TokenManagement.PaperTokenFilePath
		}

		refreshBuffer := time.Duration(cfg.TokenManagement.RefreshBufferMin) * time.Minute
		store, err := token.Open(tokenPath, tokenPath+".bak", refreshBuffer)
		if err != nil {
			return nil, nil, err
		}
		entry, ok := store.Get(kind)
		if !ok {
			return nil, nil, stockerr.New(stockerr.KindToken, "main", fmt.Sprintf("no valid %s token available; run the brokerage login flow to populate %s", kind, tokenPath))
		}

		live := execution.NewLive(execution.LiveConfig{
			BaseURL:         baseURL,
			AccessToken:     entry.AccessToken,
			AccountNumber:   accountNumber,
			RateLimitPerSec: cfg.Performance.APIRateLimit,
		})
		return live, nil, nil

	default:
		return nil, nil, stockerr.New(stockerr.KindConfig, "main", fmt.Sprintf("unknown trading mode %q", cfg.Trading.DefaultMode))
	}
}

func buildModel(cfg *config.Config) (model.Model, error) {
	switch cfg.ModelPrediction.Strategy {
	case "fixed_time":
		buyTime, err := parseHHMM(cfg.ModelPrediction.FixedTimeBuyTime)
		if err != nil {
			return nil, err
		}
		sellTime, err := parseHHMM(cfg.ModelPrediction.FixedTimeSellTime)
		if err != nil {
			return nil, err
		}
		return model.NewFixedTime(model.FixedTimeConfig{
			Stock:        types.StockCode(cfg.ModelPrediction.FixedTimeStock),
			BuyTimeHHMM:  buyTime,
			SellTimeHHMM: sellTime,
			Qty:          cfg.ModelPrediction.FixedTimeQty,
		}), nil

	case "intraday_prediction", "":
		// The default candidate universe (section 4.5 step 1) is the top
		// TopVolumeStocks stocks by prior-day turnover, looked up fresh
		// each day from the MarketStore. IntradayCandidatesFilePath is
		// repurposed as the configurable exclusion list named in that
		// same step (e.g. delisted or halted codes to never trade); when
		// TopVolumeStocks is 0 it instead serves as the original fixed
		// candidate list, so existing configs keep working unchanged.
		excludeOrFixed, err := readStockList(cfg.ModelPrediction.IntradayCandidatesFilePath)
		if err != nil {
			return nil, err
		}
		entryTime, err := parseHHMMOptional(cfg.ModelPrediction.IntradayEntryTime)
		if err != nil {
			return nil, err
		}
		flattenTime, err := parseHHMMOptional(cfg.ModelPrediction.IntradayLatestFlattenTime)
		if err != nil {
			return nil, err
		}
		intradayCfg := model.IntradayConfig{
			CandidateTopN:     int(cfg.ModelPrediction.TopVolumeStocks),
			EntryTimeHHMM:     entryTime,
			LatestFlattenHHMM: flattenTime,
			StopLossPct:       cfg.ModelPrediction.StopLossPct,
			TakeProfitPct:     cfg.ModelPrediction.TakeProfitPct,
			TrailingStopPct:   cfg.ModelPrediction.TrailingStopPct,
			CashFraction:      cfg.ModelPrediction.CashFraction,
		}
		if intradayCfg.CandidateTopN > 0 {
			intradayCfg.ExcludeList = excludeOrFixed
		} else {
			intradayCfg.Candidates = excludeOrFixed
		}
		return model.NewIntraday(intradayCfg), nil

	default:
		return nil, stockerr.New(stockerr.KindConfig, "main", fmt.Sprintf("unknown model_prediction.strategy %q", cfg.ModelPrediction.Strategy))
	}
}

// readStockList reads a newline-separated stock-code file. An empty path
// yields an empty list rather than an error, since callers use this both
// for a fixed candidate universe and for the (optional) turnover-ranking
// exclusion list.
func readStockList(path string) ([]types.StockCode, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, stockerr.Wrap(stockerr.KindConfig, "main", "open candidates file", err)
	}
	defer f.Close()

	var out []types.StockCode
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		out = append(out, types.StockCode(line))
	}
	if err := sc.Err(); err != nil {
		return nil, stockerr.Wrap(stockerr.KindIO, "main", "scan candidates file", err)
	}
	return out, nil
}

func parseYMD(s string) (int, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return 0, stockerr.Wrap(stockerr.KindConfig, "main", fmt.Sprintf("parse date %q", s), err)
	}
	return t.Year()*10000 + int(t.Month())*100 + t.Day(), nil
}

func parseHHMM(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, stockerr.Wrap(stockerr.KindConfig, "main", fmt.Sprintf("parse time %q", s), err)
	}
	return t.Hour()*100 + t.Minute(), nil
}

func parseHHMMOptional(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	return parseHHMM(s)
}
