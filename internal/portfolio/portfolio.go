// Package portfolio implements the Portfolio Manager: it composes the
// regime detector, the three strategies, and the risk manager into a
// single ranked, diversified, sized trading plan.
package portfolio

import (
	"context"
	"sort"
	"time"

	"github.com/nitinkhare/swingdss/internal/bar"
	"github.com/nitinkhare/swingdss/internal/config"
	"github.com/nitinkhare/swingdss/internal/indicator"
	"github.com/nitinkhare/swingdss/internal/regime"
	"github.com/nitinkhare/swingdss/internal/risk"
	"github.com/nitinkhare/swingdss/internal/strategy"
)

// etfExclusionSet is the hard-coded set of broad-market ETFs excluded
// from strategy evaluation — the strategies trade single names, not the
// benchmarks they're measured against.
var etfExclusionSet = map[string]bool{
	"SPY": true, "QQQ": true, "IWM": true, "DIA": true, "VOO": true,
}

// SectorMap is a static symbol -> sector lookup, with sub-sectors broken
// out for tightly correlated groups so the diversity filter doesn't let
// concentration hide behind a single broad sector label.
type SectorMap map[string]string

// CapitalAllocation splits total capital into the stock sleeve and cash
// reserve per the configured stock_alloc.
type CapitalAllocation struct {
	Stock float64
	Cash  float64
	Total float64
}

// Plan is the Portfolio Manager's deliverable output.
type Plan struct {
	Regime           regime.Snapshot
	PrimaryStrategy  strategy.Tag
	StockSignals     []RankedSignal
	CapitalAllocation CapitalAllocation
}

// RankedSignal pairs a strategy signal with its portfolio-level score.
type RankedSignal struct {
	strategy.Signal
	RegimeBoost float64
	Score       float64
}

// Manager orchestrates the regime detector, strategies, risk manager, and
// sector-diversity filter into a single plan.
type Manager struct {
	strategies []strategy.Strategy
	risk       *risk.Manager
	sectors    SectorMap
	filters    config.FilterConfig
	riskCfg    config.RiskConfig
}

// NewManager creates a Portfolio Manager running the canonical three
// strategies.
func NewManager(riskMgr *risk.Manager, sectors SectorMap, filters config.FilterConfig, riskCfg config.RiskConfig) *Manager {
	return &Manager{
		strategies: []strategy.Strategy{
			strategy.NewMomentumStrategy(),
			strategy.NewMeanReversionStrategy(),
			strategy.NewBreakoutStrategy(),
		},
		risk:    riskMgr,
		sectors: sectors,
		filters: filters,
		riskCfg: riskCfg,
	}
}

// primaryStrategyFor maps a regime to its primary strategy tag.
func primaryStrategyFor(r regime.Regime) strategy.Tag {
	switch r {
	case regime.RegimeTrending, regime.RegimeStrongTrend:
		return strategy.Momentum
	case regime.RegimeBreakout:
		return strategy.Breakout
	default:
		return strategy.MeanReversion
	}
}

// BuildInput bundles everything Build needs for one as-of date.
type BuildInput struct {
	Benchmark        bar.Series
	Universe         map[string]bar.Series // symbol -> as-of series, ETFs already excluded is not required
	AsOf             time.Time
	FXRate           float64
	TotalEquity      float64
	AvailableCapital float64
	OpenPositions    map[string]bool // symbols currently held, for dedup with sector concentration
	StockAlloc       float64
}

// Build runs the full §4.8 pipeline and returns a ranked, diversified,
// sized Portfolio Plan.
func (m *Manager) Build(ctx context.Context, in BuildInput) (Plan, error) {
	snapshot := regime.Detect(in.Benchmark)
	primary := primaryStrategyFor(snapshot.Regime)

	candidates := m.runStrategies(in, snapshot, primary)
	candidates = dedupeBySymbol(candidates)
	candidates = dropHighNATR(candidates, 8.0)
	sortByScore(candidates)

	accepted := m.applySectorDiversity(candidates, in)
	if len(accepted) > m.riskCfg.MaxStockPositions {
		accepted = accepted[:m.riskCfg.MaxStockPositions]
	}

	accepted = m.resize(accepted, in)

	total := in.TotalEquity
	plan := Plan{
		Regime:          snapshot,
		PrimaryStrategy: primary,
		StockSignals:    accepted,
		CapitalAllocation: CapitalAllocation{
			Stock: total * in.StockAlloc,
			Cash:  total * (1 - in.StockAlloc),
			Total: total,
		},
	}
	return plan, nil
}

// runStrategies evaluates all three strategies against every symbol in
// the universe (minus the ETF exclusion set), tagging each resulting
// signal with its regime boost.
func (m *Manager) runStrategies(in BuildInput, snapshot regime.Snapshot, primary strategy.Tag) []RankedSignal {
	var out []RankedSignal
	for symbol, series := range in.Universe {
		if etfExclusionSet[symbol] {
			continue
		}
		sIn := strategy.Input{
			Series:    series,
			Benchmark: in.Benchmark,
			Regime:    snapshot,
			AsOf:      in.AsOf,
			FXRate:    in.FXRate,
			Filters:   m.filters,
		}
		for _, strat := range m.strategies {
			sig, ok := strat.Evaluate(sIn)
			if !ok {
				continue
			}
			boost := 1.0
			if strat.ID() == primary {
				boost = 1.2
			}
			out = append(out, RankedSignal{
				Signal:      sig,
				RegimeBoost: boost,
				Score:       sig.Metrics["score"] * boost,
			})
		}
	}
	return out
}

// dedupeBySymbol keeps, per symbol, the candidate with the highest boost
// (ties broken by score).
func dedupeBySymbol(candidates []RankedSignal) []RankedSignal {
	best := make(map[string]RankedSignal, len(candidates))
	for _, c := range candidates {
		existing, ok := best[c.Symbol]
		if !ok || c.RegimeBoost > existing.RegimeBoost ||
			(c.RegimeBoost == existing.RegimeBoost && c.Score > existing.Score) {
			best[c.Symbol] = c
		}
	}
	out := make([]RankedSignal, 0, len(best))
	for _, c := range best {
		out = append(out, c)
	}
	return out
}

// dropHighNATR removes candidates whose NATR exceeds the gap-through-stop
// protection threshold.
func dropHighNATR(candidates []RankedSignal, maxNATR float64) []RankedSignal {
	out := candidates[:0:0]
	for _, c := range candidates {
		if c.Metrics["natr"] > maxNATR {
			continue
		}
		out = append(out, c)
	}
	return out
}

func sortByScore(candidates []RankedSignal) {
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})
}

// applySectorDiversity consumes ranked candidates in order, skipping any
// that would push sector capital concentration past 40% of portfolio
// value or breach the configured max-per-sector count.
func (m *Manager) applySectorDiversity(candidates []RankedSignal, in BuildInput) []RankedSignal {
	sectorCapital := make(map[string]float64)
	sectorCount := make(map[string]int)

	for sym := range in.OpenPositions {
		sector := m.sectors[sym]
		sectorCount[sector]++
	}

	portfolioValue := in.TotalEquity
	maxSectorCapital := portfolioValue * (m.riskCfg.MaxSectorCapitalPct / 100.0)

	var accepted []RankedSignal
	for _, c := range candidates {
		sector := m.sectors[c.Symbol]
		projectedCapital := sectorCapital[sector] + c.EntryPrice*float64(c.PositionSize)
		if projectedCapital > maxSectorCapital {
			continue
		}
		if m.riskCfg.MaxPerSector > 0 && sectorCount[sector]+1 > m.riskCfg.MaxPerSector {
			continue
		}
		sectorCapital[sector] = projectedCapital
		sectorCount[sector]++
		accepted = append(accepted, c)
	}
	return accepted
}

// resize recomputes each accepted signal's position size at the
// configured risk (replacing the strategy's nominal €20 sizing) via the
// risk manager's optimal-stop and sizing pipeline.
func (m *Manager) resize(accepted []RankedSignal, in BuildInput) []RankedSignal {
	out := accepted[:0:0]
	availableCapital := in.AvailableCapital
	for _, c := range accepted {
		sizing := m.risk.Size(c.EntryPrice, c.StopLoss, in.FXRate, in.TotalEquity, availableCapital)
		if sizing.Skip {
			continue
		}
		c.PositionSize = sizing.Quantity
		tradeValueEUR := c.EntryPrice * float64(sizing.Quantity) * in.FXRate
		if ok, _ := risk.PassesTradeEconomics(tradeValueEUR, m.filters.MinTradeValue, m.filters.CommissionEUR); !ok {
			continue
		}
		availableCapital -= tradeValueEUR
		out = append(out, c)
	}
	return out
}

// NATR is a small helper exposed for callers that need a fresh read
// outside the strategy metrics map. It returns the last non-NaN NATR
// value, or 0 when there is none.
func NATR(bars []bar.Bar, period int) float64 {
	series := indicator.NATR(bars, period)
	if len(series) == 0 {
		return 0
	}
	for i := len(series) - 1; i >= 0; i-- {
		if series[i] == series[i] {
			return series[i]
		}
	}
	return 0
}
