package tax

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func day(y int, m time.Month, dd int) time.Time {
	return time.Date(y, m, dd, 0, 0, 0, 0, time.UTC)
}

var testRegistry = StaticRegistry{
	"ACME":  CategoryShare,
	"GOLD":  CategoryETC,
	"WLDX":  CategoryETF,
	"FUNDX": CategoryFund,
}

func newTestEngine(t *testing.T) (*Engine, *LotStore) {
	t.Helper()

	lots, err := OpenLots(filepath.Join(t.TempDir(), "tax.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = lots.Close() })

	return NewEngine(lots, testRegistry, nil), lots
}

func TestStatutoryRateOnNonOffsettingCategory(t *testing.T) {
	t.Parallel()

	e, _ := newTestEngine(t)

	// A big carryforward pool exists for the fund category, but fund
	// gains can never consume it.
	_, err := e.RecordLoss("FUNDX", day(2025, time.June, 1), d("-10000"))
	require.NoError(t, err)

	res, err := e.CalculateTax(d("500"), "FUNDX", day(2026, time.February, 1))
	require.NoError(t, err)

	assert.True(t, res.TaxDue.Equal(d("130")), "tax due = %s", res.TaxDue)
	assert.True(t, res.Consumed.IsZero())

	// The pool itself is untouched.
	avail, err := e.Available("FUNDX", day(2026, time.February, 1))
	require.NoError(t, err)
	assert.True(t, avail.Equal(d("10000")))
}

func TestOffsetConsumesCarryforward(t *testing.T) {
	t.Parallel()

	e, lots := newTestEngine(t)

	lot, err := e.RecordLoss("ACME", day(2025, time.June, 1), d("-1000"))
	require.NoError(t, err)

	res, err := e.CalculateTax(d("500"), "ACME", day(2026, time.February, 1))
	require.NoError(t, err)

	assert.True(t, res.TaxDue.IsZero(), "tax due = %s", res.TaxDue)
	assert.True(t, res.Consumed.Equal(d("500")))

	got, err := lots.Get(lot.ID)
	require.NoError(t, err)
	assert.True(t, got.Used.Equal(d("500")), "used = %s", got.Used)
	assert.True(t, got.Remaining().Equal(d("500")))
}

func TestOffsetPartialThenTaxRemainder(t *testing.T) {
	t.Parallel()

	e, _ := newTestEngine(t)

	_, err := e.RecordLoss("ACME", day(2025, time.June, 1), d("-300"))
	require.NoError(t, err)

	res, err := e.CalculateTax(d("500"), "ACME", day(2026, time.February, 1))
	require.NoError(t, err)

	assert.True(t, res.Consumed.Equal(d("300")))
	// (500 - 300) * 0.26
	assert.True(t, res.TaxDue.Equal(d("52")), "tax due = %s", res.TaxDue)
}

func TestOffsetOldestExpiryFirst(t *testing.T) {
	t.Parallel()

	e, lots := newTestEngine(t)

	newer, err := e.RecordLoss("ACME", day(2024, time.March, 1), d("-300"))
	require.NoError(t, err)
	older, err := e.RecordLoss("GOLD", day(2022, time.March, 1), d("-300"))
	require.NoError(t, err)

	// GOLD expires 2026, ACME 2028: despite insertion order, GOLD is
	// consumed first. Offset works across symbols within the group.
	res, err := e.CalculateTax(d("400"), "ACME", day(2025, time.June, 1))
	require.NoError(t, err)
	assert.True(t, res.Consumed.Equal(d("400")))
	assert.True(t, res.TaxDue.IsZero())

	gotOlder, err := lots.Get(older.ID)
	require.NoError(t, err)
	assert.True(t, gotOlder.Used.Equal(d("300")), "older used = %s", gotOlder.Used)

	gotNewer, err := lots.Get(newer.ID)
	require.NoError(t, err)
	assert.True(t, gotNewer.Used.Equal(d("100")), "newer used = %s", gotNewer.Used)
}

func TestExpiredLotsAreNotConsumed(t *testing.T) {
	t.Parallel()

	e, _ := newTestEngine(t)

	// Realized 2020, expired 2024-12-31.
	_, err := e.RecordLoss("ACME", day(2020, time.May, 1), d("-1000"))
	require.NoError(t, err)

	res, err := e.CalculateTax(d("500"), "ACME", day(2026, time.February, 1))
	require.NoError(t, err)

	assert.True(t, res.Consumed.IsZero())
	assert.True(t, res.TaxDue.Equal(d("130")))
}

func TestConsumptionNeverExceedsLot(t *testing.T) {
	t.Parallel()

	e, lots := newTestEngine(t)

	lot, err := e.RecordLoss("ACME", day(2025, time.June, 1), d("-1000"))
	require.NoError(t, err)

	res, err := e.CalculateTax(d("2000"), "ACME", day(2026, time.February, 1))
	require.NoError(t, err)

	assert.True(t, res.Consumed.Equal(d("1000")))
	// (2000 - 1000) * 0.26
	assert.True(t, res.TaxDue.Equal(d("260")))

	got, err := lots.Get(lot.ID)
	require.NoError(t, err)
	assert.True(t, got.Used.Equal(got.Loss.Neg()), "used %s exceeds |loss| %s", got.Used, got.Loss.Neg())
	assert.False(t, got.Remaining().IsPositive())
}

func TestUnknownSymbolDefaultsToNonOffsetting(t *testing.T) {
	t.Parallel()

	e, _ := newTestEngine(t)

	_, err := e.RecordLoss("ACME", day(2025, time.June, 1), d("-1000"))
	require.NoError(t, err)

	res, err := e.CalculateTax(d("500"), "MYSTERY", day(2026, time.February, 1))
	require.NoError(t, err)

	assert.True(t, res.TaxDue.Equal(d("130")), "tax due = %s", res.TaxDue)
	assert.True(t, res.Consumed.IsZero())
}

func TestRealizeDispatch(t *testing.T) {
	t.Parallel()

	e, lots := newTestEngine(t)

	res, err := e.Realize(d("-400"), "ACME", day(2026, time.January, 5))
	require.NoError(t, err)
	assert.True(t, res.TaxDue.IsZero())

	created, err := lots.Lots(CategoryShare)
	require.NoError(t, err)
	require.Len(t, created, 1)
	assert.True(t, created[0].Loss.Equal(d("-400")))

	res, err = e.Realize(d("100"), "ACME", day(2026, time.March, 5))
	require.NoError(t, err)
	assert.True(t, res.TaxDue.IsZero())
	assert.True(t, res.Consumed.Equal(d("100")))

	res, err = e.Realize(decimal.Zero, "ACME", day(2026, time.March, 6))
	require.NoError(t, err)
	assert.True(t, res.TaxDue.IsZero())
	assert.True(t, res.Consumed.IsZero())
}
