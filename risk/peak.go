package risk

import "time"

const peakSchema = `
CREATE TABLE IF NOT EXISTS position_peaks (
	id TEXT PRIMARY KEY,
	symbol TEXT NOT NULL,
	entry_date DATETIME NOT NULL,
	entry_price REAL NOT NULL,
	peak_price REAL NOT NULL,
	peak_date DATETIME NOT NULL,
	active INTEGER NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_peaks_active
	ON position_peaks(symbol) WHERE active = 1;
`

// Peak is the high-water mark of one position since entry. At most one
// active row exists per symbol; closing the position deactivates the
// row, and re-entering creates a fresh one. Rows are never deleted.
type Peak struct {
	ID         string
	Symbol     string
	EntryDate  time.Time
	EntryPrice float64
	PeakPrice  float64
	PeakDate   time.Time
	Active     bool
}

// drawdownFromEntry is the loss fraction relative to the entry price.
func (p Peak) drawdownFromEntry(price float64) float64 {
	return (p.EntryPrice - price) / p.EntryPrice
}

// drawdownFromPeak is the loss fraction relative to the high-water mark.
func (p Peak) drawdownFromPeak(price float64) float64 {
	return (p.PeakPrice - price) / p.PeakPrice
}

// profitFromEntry is the unrealized gain fraction at the peak.
func (p Peak) profitFromEntry() float64 {
	return (p.PeakPrice - p.EntryPrice) / p.EntryPrice
}
