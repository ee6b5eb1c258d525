package tax

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/rustyeddy/taxledger/market"
	"github.com/rustyeddy/taxledger/pkg/id"
)

const lotSchema = `
CREATE TABLE IF NOT EXISTS loss_lots (
	id TEXT PRIMARY KEY,
	symbol TEXT NOT NULL,
	category TEXT NOT NULL,
	realized_at DATETIME NOT NULL,
	loss_amount TEXT NOT NULL,
	used_amount TEXT NOT NULL,
	expires_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_lots_category_expiry ON loss_lots(category, expires_at, id);
`

// Lot is one carried-forward realized loss ("zainetto" entry). Loss is
// negative; Used grows from zero toward |Loss| as later gains consume
// it. Past ExpiresAt the remainder is permanently unusable.
type Lot struct {
	ID         string
	Symbol     string // audit only; consumption is keyed by category
	Category   Category
	RealizedAt time.Time
	Loss       decimal.Decimal
	Used       decimal.Decimal
	ExpiresAt  time.Time
}

// Remaining is the still-consumable part of the lot.
func (l Lot) Remaining() decimal.Decimal {
	return l.Loss.Neg().Sub(l.Used)
}

// ExpiryFor returns Dec 31 of (realization year + 4), the statutory
// carryforward window.
func ExpiryFor(realizedAt time.Time) time.Time {
	return time.Date(realizedAt.Year()+4, time.December, 31, 0, 0, 0, 0, time.UTC)
}

// LotStore persists loss lots in SQLite. It may share a database file
// with the ledger store; the tables are independent.
type LotStore struct {
	db *sql.DB
}

// OpenLots opens (creating if needed) the loss-lot table at path.
func OpenLots(path string) (*LotStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open lot db: %w", err)
	}
	if _, err := db.Exec(lotSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create lot schema: %w", err)
	}
	return &LotStore{db: db}, nil
}

func (s *LotStore) Close() error {
	return s.db.Close()
}

// Create inserts a new lot for a realized loss. loss must be negative.
func (s *LotStore) Create(symbol string, category Category, realizedAt time.Time, loss decimal.Decimal) (Lot, error) {
	if !loss.IsNegative() {
		return Lot{}, fmt.Errorf("loss lot amount must be negative, got %s", loss)
	}

	lot := Lot{
		ID:         id.New(),
		Symbol:     symbol,
		Category:   category,
		RealizedAt: market.Day(realizedAt),
		Loss:       loss,
		Used:       decimal.Zero,
		ExpiresAt:  ExpiryFor(realizedAt),
	}

	_, err := s.db.Exec(`
		INSERT INTO loss_lots (id, symbol, category, realized_at, loss_amount, used_amount, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		lot.ID, lot.Symbol, string(lot.Category), lot.RealizedAt,
		lot.Loss.String(), lot.Used.String(), lot.ExpiresAt,
	)
	if err != nil {
		return Lot{}, fmt.Errorf("insert loss lot: %w", err)
	}
	return lot, nil
}

// Available sums the remaining loss of every unexpired lot in category
// as of the given date.
func (s *LotStore) Available(category Category, asOf time.Time) (decimal.Decimal, error) {
	lots, err := s.consumable(category, asOf)
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, l := range lots {
		total = total.Add(l.Remaining())
	}
	return total, nil
}

// Consume uses up to amount of carried-forward loss in category,
// oldest expiry first, updating each touched lot's used amount. It
// returns how much was actually consumed, which may be less than
// amount when the pool runs dry. Partial consumption of a lot is
// recorded on that lot.
func (s *LotStore) Consume(category Category, asOf time.Time, amount decimal.Decimal) (decimal.Decimal, error) {
	if !amount.IsPositive() {
		return decimal.Zero, nil
	}

	lots, err := s.consumable(category, asOf)
	if err != nil {
		return decimal.Zero, err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return decimal.Zero, fmt.Errorf("begin lot tx: %w", err)
	}

	consumed := decimal.Zero
	remaining := amount
	for _, l := range lots {
		if !remaining.IsPositive() {
			break
		}
		take := decimal.Min(remaining, l.Remaining())
		if !take.IsPositive() {
			continue
		}
		newUsed := l.Used.Add(take)
		if _, err := tx.Exec(`UPDATE loss_lots SET used_amount = ? WHERE id = ?`,
			newUsed.String(), l.ID); err != nil {
			tx.Rollback()
			return decimal.Zero, fmt.Errorf("update lot %s: %w", l.ID, err)
		}
		consumed = consumed.Add(take)
		remaining = remaining.Sub(take)
	}

	if err := tx.Commit(); err != nil {
		return decimal.Zero, fmt.Errorf("commit lot tx: %w", err)
	}
	return consumed, nil
}

// Lots returns every lot in category (expired ones included), oldest
// expiry first.
func (s *LotStore) Lots(category Category) ([]Lot, error) {
	return s.scanLots(`
		SELECT id, symbol, category, realized_at, loss_amount, used_amount, expires_at
		FROM loss_lots
		WHERE category = ?
		ORDER BY expires_at ASC, id ASC`, string(category))
}

// Get returns one lot by id.
func (s *LotStore) Get(lotID string) (Lot, error) {
	lots, err := s.scanLots(`
		SELECT id, symbol, category, realized_at, loss_amount, used_amount, expires_at
		FROM loss_lots
		WHERE id = ?`, lotID)
	if err != nil {
		return Lot{}, err
	}
	if len(lots) == 0 {
		return Lot{}, fmt.Errorf("loss lot %q not found", lotID)
	}
	return lots[0], nil
}

// consumable lists unexpired, not-fully-used lots in consumption order.
func (s *LotStore) consumable(category Category, asOf time.Time) ([]Lot, error) {
	lots, err := s.scanLots(`
		SELECT id, symbol, category, realized_at, loss_amount, used_amount, expires_at
		FROM loss_lots
		WHERE category = ? AND expires_at >= ?
		ORDER BY expires_at ASC, id ASC`, string(category), market.Day(asOf))
	if err != nil {
		return nil, err
	}
	out := lots[:0]
	for _, l := range lots {
		if l.Remaining().IsPositive() {
			out = append(out, l)
		}
	}
	return out, nil
}

func (s *LotStore) scanLots(query string, args ...any) ([]Lot, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Lot
	for rows.Next() {
		var (
			l          Lot
			category   string
			loss, used string
		)
		if err := rows.Scan(&l.ID, &l.Symbol, &category, &l.RealizedAt, &loss, &used, &l.ExpiresAt); err != nil {
			return nil, err
		}
		l.Category = Category(category)
		if l.Loss, err = decimal.NewFromString(loss); err != nil {
			return nil, fmt.Errorf("lot %s loss_amount: %w", l.ID, err)
		}
		if l.Used, err = decimal.NewFromString(used); err != nil {
			return nil, fmt.Errorf("lot %s used_amount: %w", l.ID, err)
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
