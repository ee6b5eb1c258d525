package ledger

import (
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rustyeddy/taxledger/market"
	"github.com/rustyeddy/taxledger/pkg/id"
)

// Store is the append-only ledger. Every mutation goes through Append,
// which gates the whole batch on the invariant checks and commits it in
// one SQL transaction. A materialized View is maintained incrementally
// so position/cash reads do not replay the table; Replay rebuilds the
// same state from scratch and is the oracle the validator and the tests
// use.
//
// Single writer, concurrent readers: Append takes the write lock,
// snapshot reads take the read lock.
type Store struct {
	db  *sql.DB
	log *zap.Logger

	mu      sync.RWMutex
	view    *View
	horizon time.Time // latest date with market data; zero means unset
}

// Open opens (creating if needed) the ledger database at path and seeds
// the materialized view by replaying existing rows. A nil logger is
// replaced with a no-op one.
func Open(path string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open ledger db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create ledger schema: %w", err)
	}

	s := &Store{db: db, log: logger}
	view, err := s.Replay()
	if err != nil {
		db.Close()
		return nil, err
	}
	s.view = view
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// AdvanceHorizon records the most recent date for which market data
// exists. Entries dated beyond it are invariant violations. The horizon
// only moves forward.
func (s *Store) AdvanceHorizon(date time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := market.Day(date)
	if d.After(s.horizon) {
		s.horizon = d
	}
}

// Append commits a batch of entries atomically. On any invariant
// violation nothing is written and the returned error is a *BatchError
// listing every violated check; the caller must not retry the batch
// unchanged.
func (s *Store) Append(batch []Entry) error {
	if len(batch) == 0 {
		return nil
	}

	batchID := id.New()
	for i := range batch {
		batch[i].Date = market.Day(batch[i].Date)
		if batch[i].BatchID == "" {
			batch[i].BatchID = batchID
		}
		if batch[i].RunMode == "" {
			batch[i].RunMode = Production
		}
	}
	// Ledger order is (date, insertion sequence): stable sort keeps the
	// caller's sequence within a date.
	sort.SliceStable(batch, func(i, j int) bool { return batch[i].Date.Before(batch[j].Date) })

	s.mu.Lock()
	defer s.mu.Unlock()

	trial := s.view.Clone()
	if violations := s.checkBatch(trial, batch); len(violations) > 0 {
		s.log.Warn("ledger batch rejected",
			zap.String("batch_id", batchID),
			zap.Int("entries", len(batch)),
			zap.Int("violations", len(violations)))
		return &BatchError{Violations: violations}
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin ledger tx: %w", err)
	}
	for i := range batch {
		res, err := tx.Exec(`
			INSERT INTO ledger_entries
			(date, kind, symbol, quantity, unit_price, fees, tax_paid, cost_basis, batch_id, run_mode)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			batch[i].Date, string(batch[i].Kind), batch[i].Symbol,
			batch[i].Quantity.String(), batch[i].UnitPrice.String(),
			batch[i].Fees.String(), batch[i].TaxPaid.String(),
			batch[i].CostBasis.String(), batch[i].BatchID, string(batch[i].RunMode),
		)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("insert ledger entry: %w", err)
		}
		if batch[i].ID, err = res.LastInsertId(); err != nil {
			tx.Rollback()
			return fmt.Errorf("ledger entry id: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit ledger batch: %w", err)
	}

	s.view = trial
	s.log.Info("ledger batch committed",
		zap.String("batch_id", batchID),
		zap.Int("entries", len(batch)))
	return nil
}

// CashBalance reads the derived cash balance off the materialized view.
func (s *Store) CashBalance() decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.view.Cash()
}

// Position reads net quantity and weighted-average cost off the
// materialized view.
func (s *Store) Position(symbol string) (qty, avgCost decimal.Decimal) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.view.Position(symbol)
}

// Realized reads the cumulative realized gain/loss for symbol.
func (s *Store) Realized(symbol string) decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.view.Realized(symbol)
}

// Symbols lists every traded symbol.
func (s *Store) Symbols() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.view.Symbols()
}

// Replay rebuilds a view from the full table in (date, id) order. It is
// the correctness oracle: the materialized view must always equal its
// result.
func (s *Store) Replay() (*View, error) {
	entries, err := s.scanEntries(`
		SELECT id, date, kind, symbol, quantity, unit_price, fees, tax_paid, cost_basis, batch_id, run_mode
		FROM ledger_entries
		ORDER BY date ASC, id ASC`)
	if err != nil {
		return nil, err
	}

	view := NewView()
	for _, e := range entries {
		if _, err := view.Apply(e); err != nil {
			// Committed rows passed the gate once; failing now means the
			// database was modified outside the store.
			return nil, fmt.Errorf("replay entry %d: %w", e.ID, err)
		}
	}
	return view, nil
}

// Entries returns committed entries with date in [from, to), ledger order.
func (s *Store) Entries(from, to time.Time) ([]Entry, error) {
	return s.scanEntries(`
		SELECT id, date, kind, symbol, quantity, unit_price, fees, tax_paid, cost_basis, batch_id, run_mode
		FROM ledger_entries
		WHERE date >= ? AND date < ?
		ORDER BY date ASC, id ASC`, market.Day(from), market.Day(to))
}

func (s *Store) scanEntries(query string, args ...any) ([]Entry, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e          Entry
			kind, mode string

			qty, price, fees, taxPaid, costBasis string
		)
		if err := rows.Scan(&e.ID, &e.Date, &kind, &e.Symbol,
			&qty, &price, &fees, &taxPaid, &costBasis, &e.BatchID, &mode); err != nil {
			return nil, err
		}
		e.Kind, e.RunMode = Kind(kind), RunMode(mode)
		if e.Quantity, err = decimal.NewFromString(qty); err != nil {
			return nil, fmt.Errorf("entry %d quantity: %w", e.ID, err)
		}
		if e.UnitPrice, err = decimal.NewFromString(price); err != nil {
			return nil, fmt.Errorf("entry %d unit_price: %w", e.ID, err)
		}
		if e.Fees, err = decimal.NewFromString(fees); err != nil {
			return nil, fmt.Errorf("entry %d fees: %w", e.ID, err)
		}
		if e.TaxPaid, err = decimal.NewFromString(taxPaid); err != nil {
			return nil, fmt.Errorf("entry %d tax_paid: %w", e.ID, err)
		}
		if e.CostBasis, err = decimal.NewFromString(costBasis); err != nil {
			return nil, fmt.Errorf("entry %d cost_basis: %w", e.ID, err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
