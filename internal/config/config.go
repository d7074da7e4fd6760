// Package config loads and validates the engine's TOML configuration.
// Loaded once at startup into a single construct-once handle; components
// receive only the sub-config slice they need, never the raw file.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"

	"github.com/nitinkhare/stockrs-go/internal/stockerr"
)

// Mode selects which ExecutionBackend variant the Runner drives.
type Mode string

const (
	ModeReal     Mode = "real"
	ModePaper    Mode = "paper"
	ModeBacktest Mode = "backtest"
)

// Config is the top-level TOML document, mirroring section 6 verbatim.
type Config struct {
	Trading          TradingConfig          `toml:"trading" validate:"required"`
	TimeManagement   TimeManagementConfig   `toml:"time_management" validate:"required"`
	Database         DatabaseConfig         `toml:"database" validate:"required"`
	OnnxModel        OnnxModelConfig        `toml:"onnx_model"`
	TokenManagement  TokenManagementConfig  `toml:"token_management"`
	RiskManagement   RiskManagementConfig   `toml:"risk_management"`
	ModelPrediction  ModelPredictionConfig  `toml:"model_prediction"`
	Logging          LoggingConfig          `toml:"logging"`
	Performance      PerformanceConfig      `toml:"performance"`
	BrokerageAPI     BrokerageAPIConfig     `toml:"brokerage_api"`
}

// TradingConfig controls mode selection and the Backtest backend's
// fee/slippage/capital parameters (section 4.6/6).
type TradingConfig struct {
	DefaultMode      Mode    `toml:"default_mode" validate:"required,oneof=real paper backtest"`
	InitialCapital   float64 `toml:"initial_capital" validate:"required,gt=0"`
	BuyFeeRate       float64 `toml:"buy_fee_rate" validate:"gte=0,lt=1"`
	SellFeeRate      float64 `toml:"sell_fee_rate" validate:"gte=0,lt=1"`
	BuySlippageRate  float64 `toml:"buy_slippage_rate" validate:"gte=0,lt=1"`
	SellSlippageRate float64 `toml:"sell_slippage_rate" validate:"gte=0,lt=1"`
	AllowNegativeCash bool   `toml:"allow_negative_cash"`
}

// TimeManagementConfig drives the TimeService schedule (section 4.2/6).
type TimeManagementConfig struct {
	StartDate             string `toml:"start_date" validate:"required"`
	EndDate               string `toml:"end_date" validate:"required"`
	TradingStartTime      string `toml:"trading_start_time" validate:"required"`
	TradingEndTime        string `toml:"trading_end_time" validate:"required"`
	EventCheckIntervalSec int    `toml:"event_check_interval" validate:"gt=0"`
	TradingDatesFilePath  string `toml:"trading_dates_file_path" validate:"required"`
	MarketCloseFilePath   string `toml:"market_close_file_path" validate:"required"`
	MorningWindowStart    string `toml:"morning_window_start"`
	MorningWindowEnd      string `toml:"morning_window_end"`
}

// DatabaseConfig names the three flat SQLite files (section 5/6).
type DatabaseConfig struct {
	StockDBPath   string `toml:"stock_db_path" validate:"required"`
	DailyDBPath   string `toml:"daily_db_path" validate:"required"`
	TradingDBPath string `toml:"trading_db_path" validate:"required"`
}

// OnnxModelConfig is opaque to the core; only paths are threaded through.
type OnnxModelConfig struct {
	ModelInfoPath       string `toml:"model_info_path"`
	ModelFilePath       string `toml:"model_file_path"`
	FeaturesFilePath    string `toml:"features_file_path"`
	ExtraStocksFilePath string `toml:"extra_stocks_file_path"`
}

// TokenManagementConfig feeds the TokenStore (section 4.12).
type TokenManagementConfig struct {
	RealTokenFilePath   string `toml:"real_token_file_path"`
	PaperTokenFilePath  string `toml:"paper_token_file_path"`
	RefreshBufferMin    int    `toml:"refresh_buffer_minutes" validate:"gte=0"`
}

// RiskManagementConfig gates order sizing ahead of the Broker.
type RiskManagementConfig struct {
	DailyMaxLoss        uint64  `toml:"daily_max_loss"`
	MaxInvestmentRatio  float64 `toml:"max_investment_ratio" validate:"gte=0,lte=1"`
	MaxSingleStockRatio float64 `toml:"max_single_stock_ratio" validate:"gte=0,lte=1"`
	VarConfidenceLevel  float64 `toml:"var_confidence_level" validate:"gte=0,lte=1"`

	CircuitBreaker CircuitBreakerConfig `toml:"circuit_breaker"`
}

// CircuitBreakerConfig trips the Runner's trading halt after repeated
// backend/order failures, independent of any single Order's own risk
// checks.
type CircuitBreakerConfig struct {
	MaxConsecutiveFailures int `toml:"max_consecutive_failures"`
	MaxFailuresPerHour     int `toml:"max_failures_per_hour"`
	CooldownMinutes        int `toml:"cooldown_minutes"`
}

// ModelPredictionConfig tunes the Predictor (section 4.5) and the two
// reference Model strategies (section 4.9), which have no other home in
// the TOML document.
type ModelPredictionConfig struct {
	BuyThreshold      float64  `toml:"buy_threshold"`
	SellThreshold     float64  `toml:"sell_threshold"`
	TopVolumeStocks   uint32   `toml:"top_volume_stocks" validate:"gte=0"` // N for the default top-N-by-prior-day-turnover candidate universe; 0 falls back to a fixed list
	NormalizeFeatures bool     `toml:"normalize_features"`
	FeatureNames      []string `toml:"feature_names"`

	// Strategy selects the Model wired by the Runner; the --model CLI flag
	// overrides this when set.
	Strategy string `toml:"strategy" validate:"omitempty,oneof=fixed_time intraday_prediction"`

	FixedTimeStock    string `toml:"fixed_time_stock"`
	FixedTimeBuyTime  string `toml:"fixed_time_buy_time"`
	FixedTimeSellTime string `toml:"fixed_time_sell_time"`
	FixedTimeQty      uint32 `toml:"fixed_time_qty"`

	// IntradayCandidatesFilePath is the exclusion list for the turnover-ranked
	// universe when TopVolumeStocks > 0, or the fixed candidate list itself
	// when TopVolumeStocks is 0.
	IntradayCandidatesFilePath string  `toml:"intraday_candidates_file_path"`
	IntradayEntryTime          string  `toml:"intraday_entry_time"`
	IntradayLatestFlattenTime  string  `toml:"intraday_latest_flatten_time"`
	StopLossPct                float64 `toml:"stop_loss_pct"`
	TakeProfitPct              float64 `toml:"take_profit_pct"`
	TrailingStopPct            float64 `toml:"trailing_stop_pct"`
	CashFraction               float64 `toml:"cash_fraction"`
}

// LoggingConfig drives the phuslu/log sink level.
type LoggingConfig struct {
	Level       string `toml:"level" validate:"omitempty,oneof=error warn info debug trace"`
	FilePath    string `toml:"file_path"`
	MaxFileSize uint64 `toml:"max_file_size"`
	MaxFiles    uint32 `toml:"max_files"`
}

// PerformanceConfig sizes pools/limiters shared by several components
// (SQLite pool, rate limiter, Predictor worker count); see SPEC_FULL.md 12.
type PerformanceConfig struct {
	DBPoolSize    int `toml:"db_pool_size" validate:"gte=0"`
	APIRateLimit  int `toml:"api_rate_limit" validate:"gte=0"`
	WorkerThreads int `toml:"worker_threads" validate:"gte=0"`
	CacheSizeMB   int `toml:"cache_size_mb" validate:"gte=0"`
}

// BrokerageAPIConfig holds per-mode credentials; empty/placeholder values
// are rejected in live mode by validateLiveMode.
type BrokerageAPIConfig struct {
	RealAppKey            string `toml:"real_app_key"`
	RealAppSecret          string `toml:"real_app_secret"`
	RealBaseURL            string `toml:"real_base_url"`
	RealAccountNumber      string `toml:"real_account_number"`
	PaperAppKey            string `toml:"paper_app_key"`
	PaperAppSecret         string `toml:"paper_app_secret"`
	PaperBaseURL           string `toml:"paper_base_url"`
	PaperAccountNumber     string `toml:"paper_account_number"`
}

var validate = validator.New()

// Load reads and validates the TOML document at path, applying environment
// overrides before validation per section 6.
func Load(path string) (*Config, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, stockerr.Wrap(stockerr.KindConfig, "config", "resolve path", err)
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, stockerr.Wrap(stockerr.KindConfig, "config", fmt.Sprintf("read file %s", absPath), err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, stockerr.Wrap(stockerr.KindParsing, "config", "parse toml", err)
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, stockerr.Wrap(stockerr.KindValidation, "config", "validate", err)
	}

	return &cfg, nil
}

// applyEnvOverrides mirrors original_source/stockrs/src/config.rs's
// apply_env_overrides: database paths, credentials, and log level may be
// overridden without touching the TOML file.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("STOCK_DB_PATH"); v != "" {
		c.Database.StockDBPath = v
	}
	if v := os.Getenv("DAILY_DB_PATH"); v != "" {
		c.Database.DailyDBPath = v
	}
	if v := os.Getenv("TRADING_DB_PATH"); v != "" {
		c.Database.TradingDBPath = v
	}
	if v := os.Getenv("ONNX_MODEL_INFO_PATH"); v != "" {
		c.OnnxModel.ModelInfoPath = v
	}
	if v := os.Getenv("BROKERAGE_REAL_APP_KEY"); v != "" {
		c.BrokerageAPI.RealAppKey = v
	}
	if v := os.Getenv("BROKERAGE_REAL_APP_SECRET"); v != "" {
		c.BrokerageAPI.RealAppSecret = v
	}
	if v := os.Getenv("BROKERAGE_PAPER_APP_KEY"); v != "" {
		c.BrokerageAPI.PaperAppKey = v
	}
	if v := os.Getenv("BROKERAGE_PAPER_APP_SECRET"); v != "" {
		c.BrokerageAPI.PaperAppSecret = v
	}
	if v := os.Getenv("STOCKRS_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// Validate runs struct-tag validation plus the live-mode safety checks the
// tag language can't express (cross-field comparisons, placeholder
// detection).
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	if c.Trading.DefaultMode == ModeReal {
		if err := c.validateLiveMode(); err != nil {
			return fmt.Errorf("live mode: %w", err)
		}
	}
	return nil
}

const placeholder = "CHANGE_ME"

// validateLiveMode enforces extra safety checks when running against the
// real brokerage, mirroring the teacher's validateLiveMode safety caps.
func (c *Config) validateLiveMode() error {
	if c.BrokerageAPI.RealAppKey == "" || c.BrokerageAPI.RealAppKey == placeholder {
		return fmt.Errorf("brokerage_api.real_app_key must be set for live trading")
	}
	if c.BrokerageAPI.RealAppSecret == "" || c.BrokerageAPI.RealAppSecret == placeholder {
		return fmt.Errorf("brokerage_api.real_app_secret must be set for live trading")
	}
	if c.BrokerageAPI.RealAccountNumber == "" {
		return fmt.Errorf("brokerage_api.real_account_number is required for live trading")
	}
	if c.RiskManagement.MaxSingleStockRatio > 0.7 {
		return fmt.Errorf("risk_management.max_single_stock_ratio cannot exceed 0.7 in live mode (got %.2f)", c.RiskManagement.MaxSingleStockRatio)
	}
	if c.RiskManagement.MaxInvestmentRatio > 0.95 {
		return fmt.Errorf("risk_management.max_investment_ratio cannot exceed 0.95 in live mode (got %.2f)", c.RiskManagement.MaxInvestmentRatio)
	}
	return nil
}
