// Package config - watcher.go provides config file hot-reload support.
//
// The watcher polls the config file for changes (stat-based, every 5 seconds)
// and notifies registered callbacks when risk parameters change.
//
// Only risk configuration is reloadable. Data provider settings, store
// paths, and other structural settings require a restart.
package config

import (
	"encoding/json"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ConfigWatcher monitors the config file for changes and invokes callbacks
// when risk-related fields change. It uses stat-based polling (no external
// dependencies like fsnotify required).
type ConfigWatcher struct {
	path     string
	logger   zerolog.Logger
	mu       sync.RWMutex
	current  *Config
	lastMod  time.Time
	onChange []func(old, new *Config)
	done     chan struct{}
	stopped  bool
}

// NewConfigWatcher creates a watcher for the given config file path.
// initial is the currently loaded config. The watcher does not start
// until Start() is called.
func NewConfigWatcher(path string, initial *Config, logger zerolog.Logger) *ConfigWatcher {
	return &ConfigWatcher{
		path:    path,
		logger:  logger.With().Str("component", "config-watcher").Logger(),
		current: initial,
		done:    make(chan struct{}),
	}
}

// OnChange registers a callback that will be called when the config file
// changes and the new config passes validation. Multiple callbacks may
// be registered. Callbacks receive the old and new config values.
func (w *ConfigWatcher) OnChange(fn func(old, new *Config)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onChange = append(w.onChange, fn)
}

// Start begins polling the config file for changes. It returns immediately;
// the watcher runs in a background goroutine. Returns an error if the
// initial file stat fails.
func (w *ConfigWatcher) Start() error {
	info, err := os.Stat(w.path)
	if err != nil {
		return err
	}
	w.lastMod = info.ModTime()
	w.logger.Info().Str("path", w.path).Msg("watching config for changes")

	go w.pollLoop()
	return nil
}

// Stop stops the config watcher. Safe to call multiple times.
func (w *ConfigWatcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.stopped {
		w.stopped = true
		close(w.done)
		w.logger.Info().Msg("stopped")
	}
}

// Current returns the most recently loaded valid config.
func (w *ConfigWatcher) Current() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

func (w *ConfigWatcher) pollLoop() {
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

func (w *ConfigWatcher) checkForChanges() {
	info, err := os.Stat(w.path)
	if err != nil {
		w.logger.Warn().Err(err).Msg("stat error")
		return
	}

	if !info.ModTime().After(w.lastMod) {
		return
	}
	w.lastMod = info.ModTime()

	data, err := os.ReadFile(w.path)
	if err != nil {
		w.logger.Warn().Err(err).Msg("read error")
		return
	}

	w.mu.RLock()
	oldCfg := w.current
	w.mu.RUnlock()

	newCfg := *oldCfg
	if err := json.Unmarshal(data, &newCfg); err != nil {
		w.logger.Warn().Err(err).Msg("parse error, keeping old config")
		return
	}

	if err := newCfg.Validate(); err != nil {
		w.logger.Warn().Err(err).Msg("validation error, keeping old config")
		return
	}

	if !riskConfigChanged(oldCfg.Risk, newCfg.Risk) {
		w.logger.Debug().Msg("file changed but risk config unchanged, skipping")
		return
	}

	w.logRiskChanges(oldCfg.Risk, newCfg.Risk)

	w.mu.Lock()
	w.current = &newCfg
	callbacks := make([]func(old, new *Config), len(w.onChange))
	copy(callbacks, w.onChange)
	w.mu.Unlock()

	for _, fn := range callbacks {
		fn(oldCfg, &newCfg)
	}
}

// riskConfigChanged returns true if any reloadable risk field changed.
func riskConfigChanged(old, new RiskConfig) bool {
	if old.MaxRiskPerTradePercent != new.MaxRiskPerTradePercent {
		return true
	}
	if old.MaxRiskPerTradeFixed != new.MaxRiskPerTradeFixed {
		return true
	}
	if old.MaxStockPositions != new.MaxStockPositions {
		return true
	}
	if old.MaxPerSector != new.MaxPerSector {
		return true
	}
	if old.MaxSectorCapitalPct != new.MaxSectorCapitalPct {
		return true
	}
	if old.MaxHoldWeeks != new.MaxHoldWeeks {
		return true
	}
	if old.Trailing != new.Trailing {
		return true
	}
	if old.BearMarketProtection != new.BearMarketProtection ||
		old.BearMarketMode != new.BearMarketMode ||
		old.BearMarketExitPositions != new.BearMarketExitPositions {
		return true
	}
	return false
}

func (w *ConfigWatcher) logRiskChanges(old, new RiskConfig) {
	if old.MaxRiskPerTradePercent != new.MaxRiskPerTradePercent {
		w.logger.Info().Float64("old", old.MaxRiskPerTradePercent).Float64("new", new.MaxRiskPerTradePercent).Msg("max_risk_per_trade_percent changed")
	}
	if old.MaxStockPositions != new.MaxStockPositions {
		w.logger.Info().Int("old", old.MaxStockPositions).Int("new", new.MaxStockPositions).Msg("max_stock_positions changed")
	}
	if old.MaxPerSector != new.MaxPerSector {
		w.logger.Info().Int("old", old.MaxPerSector).Int("new", new.MaxPerSector).Msg("max_per_sector changed")
	}
	if old.MaxHoldWeeks != new.MaxHoldWeeks {
		w.logger.Info().Int("old", old.MaxHoldWeeks).Int("new", new.MaxHoldWeeks).Msg("max_hold_weeks changed")
	}
	if old.Trailing != new.Trailing {
		w.logger.Info().
			Float64("trigger_pct", new.Trailing.TriggerPct).
			Float64("distance_pct", new.Trailing.DistancePct).
			Float64("min_lock_pct", new.Trailing.MinLockPct).
			Msg("trailing stop config changed")
	}
	if old.BearMarketProtection != new.BearMarketProtection || old.BearMarketMode != new.BearMarketMode {
		w.logger.Info().Bool("enabled", new.BearMarketProtection).Str("mode", string(new.BearMarketMode)).Msg("bear market protection changed")
	}
}
