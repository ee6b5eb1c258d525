// Package pretrade holds the synchronous sufficiency checks the order
// layer must run immediately before mutating the ledger. Both checks
// recompute state by full ledger replay rather than trusting the
// materialized view: they are the last gate before money moves, so they
// use the oracle.
package pretrade

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/rustyeddy/taxledger/ledger"
)

// Validator answers cash/position sufficiency questions. Read-only; a
// rejection is a business result, not an error, and the caller decides
// whether to resize or drop the order. No retries happen here.
type Validator struct {
	store *ledger.Store
}

func New(store *ledger.Store) *Validator {
	return &Validator{store: store}
}

// CheckCashAvailable reports whether the account can pay required, and
// the replayed cash balance either way. A BUY costing more than the
// balance is rejected outright, never queued or partially filled.
func (v *Validator) CheckCashAvailable(required decimal.Decimal) (bool, decimal.Decimal, error) {
	view, err := v.store.Replay()
	if err != nil {
		return false, decimal.Zero, fmt.Errorf("replay for cash check: %w", err)
	}
	balance := view.Cash()
	return balance.GreaterThanOrEqual(required), balance, nil
}

// CheckPositionAvailable reports whether the account holds at least
// requiredQty of symbol, and the replayed held quantity either way.
// A never-traded symbol reports (false, 0) for any positive quantity.
func (v *Validator) CheckPositionAvailable(symbol string, requiredQty decimal.Decimal) (bool, decimal.Decimal, error) {
	view, err := v.store.Replay()
	if err != nil {
		return false, decimal.Zero, fmt.Errorf("replay for position check: %w", err)
	}
	held, _ := view.Position(symbol)
	return held.GreaterThanOrEqual(requiredQty), held, nil
}
