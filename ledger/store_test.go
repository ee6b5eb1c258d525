package ledger

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	path := filepath.Join(t.TempDir(), "ledger.db")
	s, err := Open(path, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	return s
}

func dated(e Entry, date time.Time) Entry {
	e.Date = date
	return e
}

func TestStoreCommitAndReadBack(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)

	batch := []Entry{
		entry(Deposit, "", "1", "10000", "0"),
		entry(Buy, "ACME", "10", "100", "5"),
	}
	require.NoError(t, s.Append(batch))

	assert.True(t, s.CashBalance().Equal(d("8995")), "cash = %s", s.CashBalance())
	qty, avg := s.Position("ACME")
	assert.True(t, qty.Equal(d("10")))
	assert.True(t, avg.Equal(d("100.5")))

	// Entries got ids and a shared batch id.
	assert.Greater(t, batch[1].ID, batch[0].ID)
	assert.NotEmpty(t, batch[0].BatchID)
	assert.Equal(t, batch[0].BatchID, batch[1].BatchID)

	got, err := s.Entries(day(2026, time.March, 1), day(2026, time.March, 3))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, Deposit, got[0].Kind)
	assert.Equal(t, Buy, got[1].Kind)
	assert.True(t, got[1].UnitPrice.Equal(d("100")))
}

func TestStoreRejectsNegativeCash(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	require.NoError(t, s.Append([]Entry{entry(Deposit, "", "1", "100", "0")}))

	err := s.Append([]Entry{entry(Buy, "ACME", "10", "20", "0")})
	be, ok := AsBatchError(err)
	require.True(t, ok, "expected BatchError, got %v", err)
	require.Len(t, be.Violations, 1)
	assert.Equal(t, "NEGATIVE_CASH", be.Violations[0].Code)

	// Nothing committed, view untouched.
	assert.True(t, s.CashBalance().Equal(d("100")))
	got, err := s.Entries(day(2026, time.January, 1), day(2027, time.January, 1))
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestStoreRejectsNegativePosition(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	require.NoError(t, s.Append([]Entry{
		entry(Deposit, "", "1", "1000", "0"),
		entry(Buy, "ACME", "3", "10", "0"),
	}))

	err := s.Append([]Entry{entry(Sell, "ACME", "5", "10", "0")})
	be, ok := AsBatchError(err)
	require.True(t, ok)
	require.Len(t, be.Violations, 1)
	assert.Equal(t, "NEGATIVE_POSITION", be.Violations[0].Code)

	qty, _ := s.Position("ACME")
	assert.True(t, qty.Equal(d("3")))
}

func TestStoreRejectsBeyondDataHorizon(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	require.NoError(t, s.Append([]Entry{entry(Deposit, "", "1", "1000", "0")}))

	s.AdvanceHorizon(day(2026, time.March, 10))

	err := s.Append([]Entry{dated(entry(Buy, "ACME", "1", "10", "0"), day(2026, time.March, 11))})
	be, ok := AsBatchError(err)
	require.True(t, ok)
	require.Len(t, be.Violations, 1)
	assert.Equal(t, "BEYOND_DATA_HORIZON", be.Violations[0].Code)

	// The horizon never moves backwards.
	s.AdvanceHorizon(day(2026, time.March, 1))
	err = s.Append([]Entry{dated(entry(Buy, "ACME", "1", "10", "0"), day(2026, time.March, 11))})
	_, ok = AsBatchError(err)
	assert.True(t, ok)

	// At the horizon is fine.
	require.NoError(t, s.Append([]Entry{dated(entry(Buy, "ACME", "1", "10", "0"), day(2026, time.March, 10))}))
}

func TestStoreRejectsNegativeCostBasis(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	require.NoError(t, s.Append([]Entry{entry(Deposit, "", "1", "1000", "0")}))

	e := entry(Buy, "ACME", "1", "10", "0")
	e.CostBasis = d("-1")
	err := s.Append([]Entry{e})
	be, ok := AsBatchError(err)
	require.True(t, ok)
	require.Len(t, be.Violations, 1)
	assert.Equal(t, "NEGATIVE_COST_BASIS", be.Violations[0].Code)
}

func TestStoreCollectsAllViolations(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	s.AdvanceHorizon(day(2026, time.March, 10))
	require.NoError(t, s.Append([]Entry{entry(Deposit, "", "1", "1000", "0")}))

	err := s.Append([]Entry{
		entry(Sell, "NVDA", "1", "10", "0"),                                 // never held
		dated(entry(Buy, "ACME", "1", "10", "0"), day(2026, time.April, 1)), // beyond horizon
	})
	be, ok := AsBatchError(err)
	require.True(t, ok)

	codes := make([]string, len(be.Violations))
	for i, v := range be.Violations {
		codes[i] = v.Code
	}
	assert.Contains(t, codes, "NEGATIVE_POSITION")
	assert.Contains(t, codes, "BEYOND_DATA_HORIZON")
}

func TestStoreBatchIsAtomic(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	require.NoError(t, s.Append([]Entry{entry(Deposit, "", "1", "1000", "0")}))

	// The deposit in this batch is fine on its own; the bad sell sinks
	// the whole batch anyway.
	err := s.Append([]Entry{
		entry(Deposit, "", "1", "500", "0"),
		entry(Sell, "NVDA", "1", "10", "0"),
	})
	_, ok := AsBatchError(err)
	require.True(t, ok)

	assert.True(t, s.CashBalance().Equal(d("1000")), "cash = %s", s.CashBalance())
}

func TestStoreOrdersBatchByDate(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)

	// Out of order: the sell is dated after the buy but listed first.
	// Ledger order is (date, sequence), so the batch is legal.
	require.NoError(t, s.Append([]Entry{
		dated(entry(Sell, "ACME", "5", "12", "0"), day(2026, time.March, 5)),
		dated(entry(Deposit, "", "1", "1000", "0"), day(2026, time.March, 1)),
		dated(entry(Buy, "ACME", "5", "10", "0"), day(2026, time.March, 2)),
	}))

	qty, _ := s.Position("ACME")
	assert.True(t, qty.IsZero())
	assert.True(t, s.CashBalance().Equal(d("1010")), "cash = %s", s.CashBalance())
}

func TestReplayMatchesViewAndIsDeterministic(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	require.NoError(t, s.Append([]Entry{
		entry(Deposit, "", "1", "10000", "0"),
		entry(Buy, "ACME", "10", "100", "5"),
		entry(Buy, "NVDA", "4", "250", "2"),
	}))
	require.NoError(t, s.Append([]Entry{
		entry(Sell, "ACME", "6", "110", "3"),
		entry(Dividend, "NVDA", "1", "12", "0"),
	}))

	first, err := s.Replay()
	require.NoError(t, err)
	second, err := s.Replay()
	require.NoError(t, err)

	for _, view := range []*View{first, second} {
		assert.True(t, view.Cash().Equal(s.CashBalance()),
			"replay cash %s != view cash %s", view.Cash(), s.CashBalance())
		for _, symbol := range s.Symbols() {
			wantQty, wantAvg := s.Position(symbol)
			gotQty, gotAvg := view.Position(symbol)
			assert.True(t, gotQty.Equal(wantQty), "%s qty", symbol)
			assert.True(t, gotAvg.Equal(wantAvg), "%s avg", symbol)
		}
	}
}

func TestStoreReopenSeedsView(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "ledger.db")
	s, err := Open(path, nil)
	require.NoError(t, err)

	require.NoError(t, s.Append([]Entry{
		entry(Deposit, "", "1", "5000", "0"),
		entry(Buy, "ACME", "10", "100", "0"),
	}))
	require.NoError(t, s.Close())

	s2, err := Open(path, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s2.Close() })

	assert.True(t, s2.CashBalance().Equal(d("4000")))
	qty, avg := s2.Position("ACME")
	assert.True(t, qty.Equal(d("10")))
	assert.True(t, avg.Equal(d("100")))
}

func TestStoreEmptyBatch(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	assert.NoError(t, s.Append(nil))
	assert.True(t, s.CashBalance().Equal(decimal.Zero))
}
