// Package backtest implements the weekly-cadence Backtest Simulator: the
// Mon -> Tue -> Wed/Thu -> Fri state machine that drives signal
// generation, entries, trailing stops, and exits over historical data.
//
// The simulator is pure CPU-bound numerical code; all market data must
// already be loaded into memory by the caller (the Market Store is an
// I/O concern that lives outside this package).
package backtest

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/nitinkhare/swingdss/internal/bar"
	"github.com/nitinkhare/swingdss/internal/config"
	"github.com/nitinkhare/swingdss/internal/indicator"
	"github.com/nitinkhare/swingdss/internal/market"
	"github.com/nitinkhare/swingdss/internal/portfolio"
	"github.com/nitinkhare/swingdss/internal/regime"
	"github.com/nitinkhare/swingdss/internal/risk"
)

// Position is an open trade tracked by the simulator.
type Position struct {
	Symbol         string
	Strategy       string
	Regime         regime.Regime
	EntryDate      time.Time
	EntryWeek      int
	EntryPrice     float64
	StopLoss       float64
	TargetPrice    float64
	Quantity       int
	OriginalQty    int
	RiskAmountEUR  float64
	CapitalEUR     float64
	HighestPrice   float64
	ATR            float64
	TrailingActive bool
}

// ExitReason enumerates why a position was closed.
type ExitReason string

const (
	ExitStopLoss      ExitReason = "stop_loss"
	ExitTrailingStop  ExitReason = "trailing_stop"
	ExitMaxHold       ExitReason = "max_hold"
	ExitForcedClose   ExitReason = "forced_close"
	ExitBearMarket    ExitReason = "bear_market_exit"
)

// TradeOutcome is a closed position converted into a record for metrics.
type TradeOutcome struct {
	Symbol      string
	Strategy    string
	Regime      regime.Regime
	EntryDate   time.Time
	ExitDate    time.Time
	EntryPrice  float64
	ExitPrice   float64
	Quantity    int
	ExitReason  ExitReason
	PnLUSD      float64
	PnLEUR      float64
	RMultiple   float64
}

// EquityPoint is one weekly equity-curve sample, taken at Friday close.
type EquityPoint struct {
	Date   time.Time
	Equity float64
}

// Simulator runs the weekly state machine over a preloaded universe.
type Simulator struct {
	data       map[string]bar.Series // symbol -> full history covering [start, end]
	benchmark  bar.Series
	calendar   *market.Calendar
	portfolio  *portfolio.Manager
	riskCfg    config.RiskConfig
	filters    config.FilterConfig
	sectors    portfolio.SectorMap
	fxRate     float64
	cash       float64
	initial    float64
	weekIndex  int
	open       map[string]*Position
	pending    []portfolio.RankedSignal
	slots      int
	trades     []TradeOutcome
	equity     []EquityPoint
	drawdown   risk.DrawdownState
}

// Config bundles the simulator's static dependencies and starting state.
type Config struct {
	Data           map[string]bar.Series
	Benchmark      bar.Series
	Calendar       *market.Calendar
	Portfolio      *portfolio.Manager
	RiskConfig     config.RiskConfig
	Filters        config.FilterConfig
	Sectors        portfolio.SectorMap
	FXRate         float64
	InitialCapital float64
}

// NewSimulator creates a Simulator starting fully in cash.
func NewSimulator(cfg Config) *Simulator {
	return &Simulator{
		data:      cfg.Data,
		benchmark: cfg.Benchmark,
		calendar:  cfg.Calendar,
		portfolio: cfg.Portfolio,
		riskCfg:   cfg.RiskConfig,
		filters:   cfg.Filters,
		sectors:   cfg.Sectors,
		fxRate:    cfg.FXRate,
		cash:      cfg.InitialCapital,
		initial:   cfg.InitialCapital,
		open:      make(map[string]*Position),
	}
}

// Run walks [start, end] day by day, applying the weekly state machine.
func (s *Simulator) Run(ctx context.Context, start, end time.Time) (*Result, error) {
	s.drawdown = risk.NewDrawdownState(s.initial, start)

	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if !s.calendar.IsTradingDay(d) {
			continue
		}
		weekday := market.WeekdayIndex(d)

		s.drawdown = s.drawdown.UpdateMonthlyDrawdown(s.equityMTM(d), d)

		switch weekday {
		case 0:
			s.runMonday(ctx, d)
		case 1:
			s.runTuesday(d)
		case 2, 3:
			s.runMidweek(d, false)
		case 4:
			s.runMidweek(d, true)
		}

		if weekday == 4 {
			s.equity = append(s.equity, EquityPoint{Date: d, Equity: s.equityMTM(d)})
		}
	}

	s.forceCloseAll(end)

	return s.computeResult(start, end), nil
}

// runMonday generates the week's candidate plan, applying bear-market
// protection and the ADX<15 skip-week rule.
func (s *Simulator) runMonday(ctx context.Context, d time.Time) {
	s.weekIndex++
	s.pending = nil

	benchAsOf := s.benchmark.AsOf(d)
	snap := regime.Detect(benchAsOf)

	slots := s.drawdown.EffectiveMaxPositions(s.riskCfg.MaxStockPositions)
	belowSMA50 := snap.Price < snap.SMA50
	belowSMA200 := snap.Price < snap.SMA200

	if s.riskCfg.BearMarketProtection && belowSMA50 && belowSMA200 {
		if s.riskCfg.BearMarketMode == config.BearModeCash {
			slots = 0
		} else {
			slots = 1
		}
		if s.riskCfg.BearMarketExitPositions {
			s.exitAllOpen(d, ExitBearMarket)
		}
	} else if belowSMA200 {
		slots = slots - 1
		if slots < 1 {
			slots = 1
		}
	}
	s.slots = slots

	if snap.ADX < 15 || slots == 0 || !s.drawdown.CanTrade() {
		return
	}

	universe := s.universeAsOf(d)
	openSet := make(map[string]bool, len(s.open))
	for sym := range s.open {
		openSet[sym] = true
	}

	plan, err := s.portfolio.Build(ctx, portfolio.BuildInput{
		Benchmark:        benchAsOf,
		Universe:         universe,
		AsOf:             d,
		FXRate:           s.fxRate,
		TotalEquity:      s.equityMTM(d),
		AvailableCapital: s.cash,
		OpenPositions:    openSet,
		StockAlloc:       1.0,
	})
	if err != nil {
		return
	}

	var filtered []portfolio.RankedSignal
	for _, sig := range plan.StockSignals {
		if openSet[sig.Symbol] {
			continue
		}
		filtered = append(filtered, sig)
	}
	if len(filtered) > slots {
		filtered = filtered[:slots]
	}
	s.pending = filtered
}

// runTuesday checks carry-over stops, opens new positions up to the
// week's slot count, then re-checks stops on the freshly opened ones.
func (s *Simulator) runTuesday(d time.Time) {
	s.checkStops(d)

	remaining := s.slots - len(s.open)
	opened := make([]string, 0, len(s.pending))
	for _, sig := range s.pending {
		if remaining <= 0 {
			break
		}
		b, ok := barOnDate(s.data[sig.Symbol], d)
		if !ok {
			continue
		}

		entry := b.Open * 1.002
		equity := s.equityMTM(d)
		riskAmountEUR := equity * 0.015 * s.drawdown.RiskMultiplier

		sizing := risk.SizeRiskBased(entry, sig.StopLoss, s.fxRate, riskAmountEUR, equity, s.cash)
		if sizing.Skip {
			continue
		}

		atr := lastValidATR(s.data[sig.Symbol], d)
		pos := &Position{
			Symbol:        sig.Symbol,
			Strategy:      string(sig.Strategy),
			Regime:        regime.Detect(s.benchmark.AsOf(d)).Regime,
			EntryDate:     d,
			EntryWeek:     s.weekIndex,
			EntryPrice:    entry,
			StopLoss:      sig.StopLoss,
			TargetPrice:   sig.TargetPrice,
			Quantity:      sizing.Quantity,
			OriginalQty:   sizing.Quantity,
			RiskAmountEUR: sizing.RiskAmountEUR,
			CapitalEUR:    sizing.PositionValue,
			HighestPrice:  entry,
			ATR:           atr,
		}
		s.cash -= sizing.PositionValue
		s.open[sig.Symbol] = pos
		opened = append(opened, sig.Symbol)
		remaining--
	}

	for _, sym := range opened {
		b, ok := barOnDate(s.data[sym], d)
		if !ok {
			continue
		}
		pos := s.open[sym]
		if b.Low <= pos.StopLoss {
			s.closePosition(sym, d, pos.StopLoss*0.999, ExitStopLoss)
		}
	}
}

// runMidweek applies the trailing-stop ratchet and stop/max-hold exit
// checks shared by Wed, Thu, and Fri.
func (s *Simulator) runMidweek(d time.Time, isFriday bool) {
	symbols := make([]string, 0, len(s.open))
	for sym := range s.open {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)

	for _, sym := range symbols {
		pos, ok := s.open[sym]
		if !ok {
			continue
		}
		b, found := barOnDate(s.data[sym], d)
		if !found {
			continue
		}

		if b.High > pos.HighestPrice {
			pos.HighestPrice = b.High
		}
		profitFromHighPct := (pos.HighestPrice - pos.EntryPrice) / pos.EntryPrice * 100
		if profitFromHighPct >= s.riskCfg.Trailing.TriggerPct {
			pos.TrailingActive = true
			candidate := pos.HighestPrice * (1 - s.riskCfg.Trailing.DistancePct/100)
			floor := pos.EntryPrice * (1 + s.riskCfg.Trailing.MinLockPct/100)
			newStop := math.Max(candidate, floor)
			if newStop > pos.StopLoss {
				pos.StopLoss = newStop
			}
		}

		if b.Low <= pos.StopLoss {
			reason := ExitStopLoss
			if pos.TrailingActive {
				reason = ExitTrailingStop
			}
			exitPrice := pos.StopLoss * (1 - s.riskCfg.ExitSlippagePct/100)
			s.closePosition(sym, d, exitPrice, reason)
			continue
		}

		if isFriday && s.weekIndex-pos.EntryWeek >= s.riskCfg.MaxHoldWeeks {
			s.closePosition(sym, d, b.Close, ExitMaxHold)
		}
	}
}

func (s *Simulator) exitAllOpen(d time.Time, reason ExitReason) {
	symbols := make([]string, 0, len(s.open))
	for sym := range s.open {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)
	for _, sym := range symbols {
		b, ok := barOnDate(s.data[sym], d)
		price := s.open[sym].EntryPrice
		if ok {
			price = b.Close
		}
		s.closePosition(sym, d, price, reason)
	}
}

func (s *Simulator) forceCloseAll(end time.Time) {
	symbols := make([]string, 0, len(s.open))
	for sym := range s.open {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)
	for _, sym := range symbols {
		series := s.data[sym]
		price := s.open[sym].EntryPrice
		if last, ok := series.AsOf(end).Last(); ok {
			price = last.Close
		}
		s.closePosition(sym, end, price, ExitForcedClose)
	}
}

// checkStops runs the stop check alone (used for Tuesday's carry-over
// pass, before any new positions are opened that day).
func (s *Simulator) checkStops(d time.Time) {
	symbols := make([]string, 0, len(s.open))
	for sym := range s.open {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)

	for _, sym := range symbols {
		pos := s.open[sym]
		b, ok := barOnDate(s.data[sym], d)
		if !ok {
			continue
		}
		if b.Low <= pos.StopLoss {
			reason := ExitStopLoss
			if pos.TrailingActive {
				reason = ExitTrailingStop
			}
			exitPrice := pos.StopLoss * (1 - s.riskCfg.ExitSlippagePct/100)
			s.closePosition(sym, d, exitPrice, reason)
		}
	}
}

func (s *Simulator) closePosition(symbol string, d time.Time, exitPrice float64, reason ExitReason) {
	pos, ok := s.open[symbol]
	if !ok {
		return
	}
	delete(s.open, symbol)

	pnlUSD := (exitPrice - pos.EntryPrice) * float64(pos.Quantity)
	pnlEUR := pnlUSD*s.fxRate - s.riskCfg.CommissionPerTrade
	proceeds := exitPrice*float64(pos.Quantity)*s.fxRate - s.riskCfg.CommissionPerTrade
	s.cash += proceeds

	rMultiple := 0.0
	if pos.RiskAmountEUR > 0 {
		rMultiple = pnlEUR / pos.RiskAmountEUR
	}

	s.trades = append(s.trades, TradeOutcome{
		Symbol:     symbol,
		Strategy:   pos.Strategy,
		Regime:     pos.Regime,
		EntryDate:  pos.EntryDate,
		ExitDate:   d,
		EntryPrice: pos.EntryPrice,
		ExitPrice:  exitPrice,
		Quantity:   pos.Quantity,
		ExitReason: reason,
		PnLUSD:     pnlUSD,
		PnLEUR:     pnlEUR,
		RMultiple:  rMultiple,
	})

	s.drawdown = s.drawdown.RecordTradeOutcome(pnlEUR > 0, s.riskCfg.MaxStockPositions)
}

// equityMTM marks every open position to market as of d and adds cash.
func (s *Simulator) equityMTM(d time.Time) float64 {
	total := s.cash
	for sym, pos := range s.open {
		price := pos.EntryPrice
		if b, ok := barOnDate(s.data[sym], d); ok {
			price = b.Close
		}
		total += price * float64(pos.Quantity) * s.fxRate
	}
	return total
}

// universeAsOf slices every symbol's history to the as-of date, omitting
// symbols with no data yet on that date.
func (s *Simulator) universeAsOf(d time.Time) map[string]bar.Series {
	out := make(map[string]bar.Series, len(s.data))
	for sym, series := range s.data {
		sliced := series.AsOf(d)
		if sliced.Len() > 0 {
			out[sym] = sliced
		}
	}
	return out
}

// barOnDate finds the bar matching date exactly within a sorted Series.
func barOnDate(series bar.Series, date time.Time) (bar.Bar, bool) {
	bars := series.Bars
	i := sort.Search(len(bars), func(i int) bool { return !bars[i].Timestamp.Before(date) })
	if i < len(bars) && bars[i].Timestamp.Equal(date) {
		return bars[i], true
	}
	return bar.Bar{}, false
}

func lastValidATR(series bar.Series, asOf time.Time) float64 {
	sliced := series.AsOf(asOf)
	if sliced.Len() == 0 {
		return 0
	}
	atrSeries := indicator.ATR(sliced.Bars, 14)
	for i := len(atrSeries) - 1; i >= 0; i-- {
		if !math.IsNaN(atrSeries[i]) {
			return atrSeries[i]
		}
	}
	return 0
}
