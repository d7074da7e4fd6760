// Package config - watcher.go provides config file hot-reload support.
//
// The watcher polls the config file for changes (stat-based, every 5 seconds)
// and notifies registered callbacks when risk parameters change.
//
// Only risk_management is reloadable. Database paths, trading mode, and
// other structural settings require an engine restart, since the
// components that depend on them open handles once at start.
package config

import (
	"os"
	"sync"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/phuslu/log"
)

// Watcher monitors the config file for changes and invokes callbacks when
// risk-related fields change. Stat-based polling, no external watch
// dependency required.
type Watcher struct {
	path     string
	logger   *log.Logger
	mu       sync.RWMutex
	current  *Config
	lastMod  time.Time
	onChange []func(old, new *Config)
	done     chan struct{}
	stopped  bool
}

// NewWatcher creates a watcher for the given config file path. initial is
// the currently loaded config. The watcher does not start until Start() is
// called.
func NewWatcher(path string, initial *Config, logger *log.Logger) *Watcher {
	if logger == nil {
		logger = &log.DefaultLogger
	}
	return &Watcher{
		path:    path,
		logger:  logger,
		current: initial,
		done:    make(chan struct{}),
	}
}

// OnChange registers a callback invoked when the config file changes and
// the new config passes validation. Only risk_management changes trigger
// callbacks.
func (w *Watcher) OnChange(fn func(old, new *Config)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onChange = append(w.onChange, fn)
}

// Start begins polling in a background goroutine. Returns an error if the
// initial file stat fails.
func (w *Watcher) Start() error {
	info, err := os.Stat(w.path)
	if err != nil {
		return err
	}
	w.lastMod = info.ModTime()
	w.logger.Info().Str("path", w.path).Msg("config watcher started")

	go w.pollLoop()
	return nil
}

// Stop stops the config watcher. Safe to call multiple times.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.stopped {
		w.stopped = true
		close(w.done)
		w.logger.Info().Msg("config watcher stopped")
	}
}

// Current returns the most recently loaded valid config.
func (w *Watcher) Current() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

func (w *Watcher) pollLoop() {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return
		case <-ticker.C:
			w.checkForChanges()
		}
	}
}

func (w *Watcher) checkForChanges() {
	info, err := os.Stat(w.path)
	if err != nil {
		w.logger.Warn().Err(err).Msg("config watcher: stat error")
		return
	}
	if !info.ModTime().After(w.lastMod) {
		return
	}
	w.lastMod = info.ModTime()

	data, err := os.ReadFile(w.path)
	if err != nil {
		w.logger.Warn().Err(err).Msg("config watcher: read error")
		return
	}

	var newCfg Config
	if err := toml.Unmarshal(data, &newCfg); err != nil {
		w.logger.Warn().Err(err).Msg("config watcher: parse error, keeping old config")
		return
	}
	if err := newCfg.Validate(); err != nil {
		w.logger.Warn().Err(err).Msg("config watcher: validation error, keeping old config")
		return
	}

	w.mu.RLock()
	oldCfg := w.current
	w.mu.RUnlock()

	if !riskConfigChanged(oldCfg.RiskManagement, newCfg.RiskManagement) {
		return
	}
	w.logRiskChanges(oldCfg.RiskManagement, newCfg.RiskManagement)

	w.mu.Lock()
	w.current = &newCfg
	callbacks := make([]func(old, new *Config), len(w.onChange))
	copy(callbacks, w.onChange)
	w.mu.Unlock()

	for _, fn := range callbacks {
		fn(oldCfg, &newCfg)
	}
}

func riskConfigChanged(old, new RiskManagementConfig) bool {
	return old != new
}

func (w *Watcher) logRiskChanges(old, new RiskManagementConfig) {
	if old.MaxInvestmentRatio != new.MaxInvestmentRatio {
		w.logger.Info().Float64("old", old.MaxInvestmentRatio).Float64("new", new.MaxInvestmentRatio).Msg("risk_management.max_investment_ratio changed")
	}
	if old.MaxSingleStockRatio != new.MaxSingleStockRatio {
		w.logger.Info().Float64("old", old.MaxSingleStockRatio).Float64("new", new.MaxSingleStockRatio).Msg("risk_management.max_single_stock_ratio changed")
	}
	if old.DailyMaxLoss != new.DailyMaxLoss {
		w.logger.Info().Uint64("old", old.DailyMaxLoss).Uint64("new", new.DailyMaxLoss).Msg("risk_management.daily_max_loss changed")
	}
	if old.VarConfidenceLevel != new.VarConfidenceLevel {
		w.logger.Info().Float64("old", old.VarConfidenceLevel).Float64("new", new.VarConfidenceLevel).Msg("risk_management.var_confidence_level changed")
	}
}
