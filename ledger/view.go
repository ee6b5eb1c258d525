package ledger

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// residualEpsilon is the quantity below which a position is considered
// fully closed. Proportional cost reduction on a SELL leaves decimal
// residue from the average-cost division; anything under this threshold
// snaps to exactly zero rather than surfacing as drift.
var residualEpsilon = decimal.NewFromFloat(1e-9)

// ErrOversell is returned when a SELL reaches the cost-basis engine for
// more quantity than the pool holds. The pre-trade validator is supposed
// to reject these upstream; one arriving here means the gate was skipped,
// so it is treated as a hard failure, never silently dropped.
var ErrOversell = fmt.Errorf("sell exceeds held quantity")

// pool is the single blended weighted-average cost pool for one symbol.
// There is deliberately no per-lot breakdown: cost basis is
// total cost / quantity over the whole position.
type pool struct {
	Qty      decimal.Decimal
	Cost     decimal.Decimal // total cost including buy fees
	Realized decimal.Decimal // cumulative realized gain/loss
}

// View is the materialized position/cash state derived from the ledger.
// The store keeps one up to date incrementally; Replay rebuilds one from
// scratch as the correctness oracle.
type View struct {
	cash  decimal.Decimal
	pools map[string]*pool
}

func NewView() *View {
	return &View{cash: decimal.Zero, pools: make(map[string]*pool)}
}

// Clone deep-copies the view so a pending batch can be trial-applied
// without touching committed state.
func (v *View) Clone() *View {
	c := NewView()
	c.cash = v.cash
	for sym, p := range v.pools {
		cp := *p
		c.pools[sym] = &cp
	}
	return c
}

// Apply folds one entry into the view and returns the realized gain for
// SELL entries (zero otherwise).
func (v *View) Apply(e Entry) (decimal.Decimal, error) {
	if !e.Kind.valid() {
		return decimal.Zero, fmt.Errorf("unknown entry kind %q", e.Kind)
	}

	realized := decimal.Zero

	switch e.Kind {
	case Buy:
		p := v.pool(e.Symbol)
		p.Cost = p.Cost.Add(e.Amount()).Add(e.Fees)
		p.Qty = p.Qty.Add(e.Quantity)

	case Sell:
		p, ok := v.pools[e.Symbol]
		if !ok || p.Qty.LessThan(e.Quantity) {
			return decimal.Zero, fmt.Errorf("%w: %s qty %s held %s",
				ErrOversell, e.Symbol, e.Quantity, v.heldQty(e.Symbol))
		}
		avg := p.Cost.Div(p.Qty)
		proceeds := e.Amount().Sub(e.Fees)
		realized = proceeds.Sub(avg.Mul(e.Quantity))

		p.Qty = p.Qty.Sub(e.Quantity)
		p.Cost = p.Cost.Sub(avg.Mul(e.Quantity))
		p.Realized = p.Realized.Add(realized)

		if p.Qty.Abs().LessThan(residualEpsilon) {
			p.Qty = decimal.Zero
			p.Cost = decimal.Zero
		}
	}

	v.cash = v.cash.Add(e.CashEffect())
	return realized, nil
}

func (v *View) pool(symbol string) *pool {
	p, ok := v.pools[symbol]
	if !ok {
		p = &pool{Qty: decimal.Zero, Cost: decimal.Zero, Realized: decimal.Zero}
		v.pools[symbol] = p
	}
	return p
}

func (v *View) heldQty(symbol string) decimal.Decimal {
	if p, ok := v.pools[symbol]; ok {
		return p.Qty
	}
	return decimal.Zero
}

// Cash is the derived cash balance.
func (v *View) Cash() decimal.Decimal {
	return v.cash
}

// Position returns net quantity and weighted-average cost per unit for
// a symbol. A never-traded or fully closed symbol reports (0, 0).
func (v *View) Position(symbol string) (qty, avgCost decimal.Decimal) {
	p, ok := v.pools[symbol]
	if !ok || p.Qty.IsZero() {
		return decimal.Zero, decimal.Zero
	}
	return p.Qty, p.Cost.Div(p.Qty)
}

// Realized is the cumulative realized gain/loss for a symbol.
func (v *View) Realized(symbol string) decimal.Decimal {
	if p, ok := v.pools[symbol]; ok {
		return p.Realized
	}
	return decimal.Zero
}

// Symbols lists every symbol the view has seen a trade for, sorted.
func (v *View) Symbols() []string {
	out := make([]string, 0, len(v.pools))
	for sym := range v.pools {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}
