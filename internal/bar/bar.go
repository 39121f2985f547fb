// Package bar defines the Time Container: the ordered OHLCV series that
// every downstream component (indicators, strategies, the backtest
// simulator) consumes.
//
// Design rules:
//   - A Bar is value-typed and immutable once constructed.
//   - A Series is sorted strictly increasing by timestamp, no duplicate
//     timestamps, no gaps beyond the exchange's own calendar.
//   - Series supports copy-on-write as-of slicing: callers get their own
//     backing slice, never a view that aliases the original.
package bar

import (
	"fmt"
	"sort"
	"time"
)

// Bar is one trading day of OHLCV data for one symbol.
// Timestamp is always midnight UTC of the trading day.
type Bar struct {
	Timestamp time.Time
	Symbol    string
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    int64
}

// Validate checks the Bar invariants: low <= open, close <= high; low >= 0; volume >= 0.
func (b Bar) Validate() error {
	if b.Low > b.Open || b.Open > b.High {
		return fmt.Errorf("bar %s %s: low %.4f > open %.4f or open > high %.4f", b.Symbol, b.Timestamp, b.Low, b.Open, b.High)
	}
	if b.Low > b.Close || b.Close > b.High {
		return fmt.Errorf("bar %s %s: low %.4f > close %.4f or close > high %.4f", b.Symbol, b.Timestamp, b.Low, b.Close, b.High)
	}
	if b.Low < 0 {
		return fmt.Errorf("bar %s %s: low %.4f < 0", b.Symbol, b.Timestamp, b.Low)
	}
	if b.Volume < 0 {
		return fmt.Errorf("bar %s %s: volume %d < 0", b.Symbol, b.Timestamp, b.Volume)
	}
	return nil
}

// Key returns the (symbol, timestamp) identity used by the Market Store.
func (b Bar) Key() (string, time.Time) {
	return b.Symbol, b.Timestamp
}

// Series is a dense, sorted, gap-free (within a trading week) sequence of
// Bars for a single symbol. Zero value is an empty series.
type Series struct {
	Symbol string
	Bars   []Bar
}

// NewSeries sorts and validates bars for a single symbol, returning an error
// on duplicate timestamps or symbol mismatch. The input slice is copied;
// callers may reuse it afterward.
func NewSeries(symbol string, bars []Bar) (Series, error) {
	out := make([]Bar, len(bars))
	copy(out, bars)
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })

	for i, b := range out {
		if b.Symbol != symbol {
			return Series{}, fmt.Errorf("bar.NewSeries: bar %d has symbol %q, expected %q", i, b.Symbol, symbol)
		}
		if i > 0 && out[i-1].Timestamp.Equal(b.Timestamp) {
			return Series{}, fmt.Errorf("bar.NewSeries: duplicate timestamp %s for %s", b.Timestamp, symbol)
		}
		if err := b.Validate(); err != nil {
			return Series{}, err
		}
	}

	return Series{Symbol: symbol, Bars: out}, nil
}

// Len returns the number of bars in the series.
func (s Series) Len() int { return len(s.Bars) }

// Closes returns the close prices in order, a convenience for indicator code
// that only needs one field.
func (s Series) Closes() []float64 {
	out := make([]float64, len(s.Bars))
	for i, b := range s.Bars {
		out[i] = b.Close
	}
	return out
}

// Last returns the most recent bar and true, or the zero Bar and false if
// the series is empty.
func (s Series) Last() (Bar, bool) {
	if len(s.Bars) == 0 {
		return Bar{}, false
	}
	return s.Bars[len(s.Bars)-1], true
}

// AsOf returns a new Series containing only bars with Timestamp <= asOf.
// The result is a distinct copy; mutating it never affects s.
func (s Series) AsOf(asOf time.Time) Series {
	idx := sort.Search(len(s.Bars), func(i int) bool { return s.Bars[i].Timestamp.After(asOf) })
	out := make([]Bar, idx)
	copy(out, s.Bars[:idx])
	return Series{Symbol: s.Symbol, Bars: out}
}

// Tail returns the last n bars (or fewer if the series is shorter) as a
// distinct copy.
func (s Series) Tail(n int) Series {
	if n <= 0 || len(s.Bars) == 0 {
		return Series{Symbol: s.Symbol}
	}
	start := len(s.Bars) - n
	if start < 0 {
		start = 0
	}
	out := make([]Bar, len(s.Bars)-start)
	copy(out, s.Bars[start:])
	return Series{Symbol: s.Symbol, Bars: out}
}

// Between returns bars with start <= Timestamp <= end as a distinct copy.
func (s Series) Between(start, end time.Time) Series {
	lo := sort.Search(len(s.Bars), func(i int) bool { return !s.Bars[i].Timestamp.Before(start) })
	hi := sort.Search(len(s.Bars), func(i int) bool { return s.Bars[i].Timestamp.After(end) })
	if hi < lo {
		hi = lo
	}
	out := make([]Bar, hi-lo)
	copy(out, s.Bars[lo:hi])
	return Series{Symbol: s.Symbol, Bars: out}
}
