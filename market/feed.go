package market

import (
	"sort"
	"time"
)

// Candle is one day of prices for a symbol. AdjClose is the
// dividend/split-adjusted close and is what valuation and the risk
// monitor consume.
type Candle struct {
	Date     time.Time
	Open     float64
	High     float64
	Low      float64
	Close    float64
	AdjClose float64
	Volume   int64
}

// Feed is the price source the engine consumes. Implementations are
// expected to be read-only during a run; ingestion happens upstream.
type Feed interface {
	// At returns the candle for symbol on date, if one exists.
	At(symbol string, date time.Time) (Candle, bool)

	// LatestDate is the most recent date for which any data exists.
	// The ledger refuses entries dated beyond it.
	LatestDate() time.Time
}

// History is an in-memory Feed, filled by the data layer before a run.
type History struct {
	candles map[string]map[string]Candle // symbol -> yyyy-mm-dd -> candle
	latest  time.Time
}

func NewHistory() *History {
	return &History{candles: make(map[string]map[string]Candle)}
}

// Day truncates t to a civil date in UTC. All ledger and feed dates go
// through this so that time-of-day never affects ordering.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func dayKey(t time.Time) string {
	return Day(t).Format("2006-01-02")
}

func (h *History) Add(symbol string, c Candle) {
	c.Date = Day(c.Date)
	byDay, ok := h.candles[symbol]
	if !ok {
		byDay = make(map[string]Candle)
		h.candles[symbol] = byDay
	}
	byDay[dayKey(c.Date)] = c
	if c.Date.After(h.latest) {
		h.latest = c.Date
	}
}

func (h *History) At(symbol string, date time.Time) (Candle, bool) {
	byDay, ok := h.candles[symbol]
	if !ok {
		return Candle{}, false
	}
	c, ok := byDay[dayKey(date)]
	return c, ok
}

func (h *History) LatestDate() time.Time {
	return h.latest
}

// Dates returns every date with data for symbol, ascending. Backtests
// iterate this to drive the run day by day.
func (h *History) Dates(symbol string) []time.Time {
	byDay := h.candles[symbol]
	out := make([]time.Time, 0, len(byDay))
	for _, c := range byDay {
		out = append(out, c.Date)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}
