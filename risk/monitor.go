package risk

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/rustyeddy/taxledger/market"
	"github.com/rustyeddy/taxledger/pkg/id"
)

// Action is what the monitor tells the order layer to do.
type Action string

const ActionSell Action = "SELL"

// Signal is an exit instruction with its trigger reason. Mandatory
// signals must not be overridden by downstream scoring.
type Signal struct {
	Action    Action
	Reason    string
	Mandatory bool
}

// Monitor tracks per-symbol peaks and runs the stop-loss / trailing-stop
// state machine. The trailing reference is the running maximum since
// entry, so the stop can only tighten in the position's favor.
//
// Peaks are persisted write-through to SQLite (same file as the ledger
// is fine) and reloaded on open, so a restarted run resumes with its
// high-water marks intact.
type Monitor struct {
	db     *sql.DB
	log    *zap.Logger
	policy Policy

	mu     sync.Mutex
	active map[string]*Peak
}

// Open opens (creating if needed) the peak table at path and loads the
// active peaks.
func Open(path string, policy Policy, logger *zap.Logger) (*Monitor, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := policy.Validate(); err != nil {
		return nil, fmt.Errorf("risk policy: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open peak db: %w", err)
	}
	if _, err := db.Exec(peakSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create peak schema: %w", err)
	}

	m := &Monitor{db: db, log: logger, policy: policy, active: make(map[string]*Peak)}
	if err := m.loadActive(); err != nil {
		db.Close()
		return nil, err
	}
	return m, nil
}

func (m *Monitor) Close() error {
	return m.db.Close()
}

// Initialize opens tracking for a new position: a fresh active peak
// equal to the entry price. The symbol must not already have an active
// peak; close it out first.
func (m *Monitor) Initialize(symbol string, entryDate time.Time, entryPrice float64) error {
	if entryPrice <= 0 {
		return fmt.Errorf("initialize %s: entry price must be positive, got %v", symbol, entryPrice)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.active[symbol]; ok {
		return fmt.Errorf("initialize %s: active peak already exists", symbol)
	}

	p := &Peak{
		ID:         id.New(),
		Symbol:     symbol,
		EntryDate:  market.Day(entryDate),
		EntryPrice: entryPrice,
		PeakPrice:  entryPrice,
		PeakDate:   market.Day(entryDate),
		Active:     true,
	}
	if _, err := m.db.Exec(`
		INSERT INTO position_peaks (id, symbol, entry_date, entry_price, peak_price, peak_date, active)
		VALUES (?, ?, ?, ?, ?, ?, 1)`,
		p.ID, p.Symbol, p.EntryDate, p.EntryPrice, p.PeakPrice, p.PeakDate); err != nil {
		return fmt.Errorf("insert peak: %w", err)
	}

	m.active[symbol] = p
	m.log.Info("peak tracking started",
		zap.String("symbol", symbol),
		zap.Float64("entry_price", entryPrice))
	return nil
}

// Update advances the stored peak if price exceeds it. The peak never
// regresses. Symbols without an open position are ignored: price ticks
// arrive independently of trades.
func (m *Monitor) Update(symbol string, price float64, date time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.active[symbol]
	if !ok || price <= p.PeakPrice {
		return nil
	}

	p.PeakPrice = price
	p.PeakDate = market.Day(date)
	if _, err := m.db.Exec(`UPDATE position_peaks SET peak_price = ?, peak_date = ? WHERE id = ?`,
		p.PeakPrice, p.PeakDate, p.ID); err != nil {
		return fmt.Errorf("update peak %s: %w", p.ID, err)
	}
	return nil
}

// Evaluate runs the state machine for one price observation and
// reports whether an exit signal fired.
//
// Order matters: the hard stop from entry is checked first and is
// mandatory; the trailing stop from the peak only applies once profit
// has exceeded the activation threshold.
func (m *Monitor) Evaluate(symbol string, price float64) (Signal, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.active[symbol]
	if !ok {
		return Signal{}, false
	}

	if dd := p.drawdownFromEntry(price); dd >= m.policy.HardStopPct {
		return Signal{
			Action: ActionSell,
			Reason: fmt.Sprintf("hard stop: %.2f%% below entry %.4f (limit %.2f%%)",
				100*dd, p.EntryPrice, 100*m.policy.HardStopPct),
			Mandatory: true,
		}, true
	}

	if p.profitFromEntry() > m.policy.TrailingActivatePct {
		if dd := p.drawdownFromPeak(price); dd >= m.policy.TrailingStopPct {
			return Signal{
				Action: ActionSell,
				Reason: fmt.Sprintf("trailing stop: %.2f%% below peak %.4f (limit %.2f%%)",
					100*dd, p.PeakPrice, 100*m.policy.TrailingStopPct),
			}, true
		}
	}

	return Signal{}, false
}

// CloseOut deactivates the symbol's peak when the position fully
// closes. The row stays in the table; re-entry goes through Initialize
// and gets a new one.
func (m *Monitor) CloseOut(symbol string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.active[symbol]
	if !ok {
		return fmt.Errorf("close out %s: no active peak", symbol)
	}
	if _, err := m.db.Exec(`UPDATE position_peaks SET active = 0 WHERE id = ?`, p.ID); err != nil {
		return fmt.Errorf("deactivate peak %s: %w", p.ID, err)
	}
	delete(m.active, symbol)
	m.log.Info("peak tracking closed", zap.String("symbol", symbol))
	return nil
}

// ActivePeak returns a copy of the symbol's active peak, if any.
func (m *Monitor) ActivePeak(symbol string) (Peak, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.active[symbol]
	if !ok {
		return Peak{}, false
	}
	return *p, true
}

func (m *Monitor) loadActive() error {
	rows, err := m.db.Query(`
		SELECT id, symbol, entry_date, entry_price, peak_price, peak_date
		FROM position_peaks
		WHERE active = 1`)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		p := &Peak{Active: true}
		if err := rows.Scan(&p.ID, &p.Symbol, &p.EntryDate, &p.EntryPrice, &p.PeakPrice, &p.PeakDate); err != nil {
			return err
		}
		m.active[p.Symbol] = p
	}
	return rows.Err()
}
