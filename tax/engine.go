package tax

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Result is the outcome of taxing one realization event.
type Result struct {
	TaxDue      decimal.Decimal
	Consumed    decimal.Decimal // carryforward applied against the gain
	Explanation string
}

// Engine computes capital-gains tax on realization events, consulting
// the loss-carryforward registry where the instrument's category
// permits.
type Engine struct {
	lots     *LotStore
	registry Registry
	log      *zap.Logger
}

func NewEngine(lots *LotStore, registry Registry, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{lots: lots, registry: registry, log: logger}
}

// CategoryOf resolves symbol's tax category. Unknown symbols fall back
// to FUND, the most conservative (non-offsetting) category; this never
// fails, it only warns.
func (e *Engine) CategoryOf(symbol string) Category {
	if c, ok := e.registry.Category(symbol); ok {
		return c
	}
	e.log.Warn("unknown tax category, defaulting to non-offsetting",
		zap.String("symbol", symbol),
		zap.String("category", string(CategoryFund)))
	return CategoryFund
}

// CalculateTax computes the tax due on a positive realized gain.
//
// Offset-eligible categories first consume unexpired carryforward,
// oldest expiry first; the statutory rate applies to what is left.
// Non-offsetting categories pay the full rate no matter how much
// carryforward exists.
func (e *Engine) CalculateTax(gain decimal.Decimal, symbol string, date time.Time) (Result, error) {
	if !gain.IsPositive() {
		return Result{
			TaxDue:      decimal.Zero,
			Consumed:    decimal.Zero,
			Explanation: fmt.Sprintf("no tax: gain %s is not positive", gain),
		}, nil
	}

	category := e.CategoryOf(symbol)

	if !category.CanOffset() {
		due := gain.Mul(StatutoryRate)
		return Result{
			TaxDue:   due,
			Consumed: decimal.Zero,
			Explanation: fmt.Sprintf("category %s cannot offset: %s * %s = %s",
				category, gain, StatutoryRate, due),
		}, nil
	}

	consumed, err := e.lots.Consume(category, date, gain)
	if err != nil {
		return Result{}, fmt.Errorf("consume carryforward: %w", err)
	}

	taxable := decimal.Max(decimal.Zero, gain.Sub(consumed))
	due := taxable.Mul(StatutoryRate)
	return Result{
		TaxDue:   due,
		Consumed: consumed,
		Explanation: fmt.Sprintf("category %s offset %s of %s, taxable %s * %s = %s",
			category, consumed, gain, taxable, StatutoryRate, due),
	}, nil
}

// RecordLoss writes a realized loss into the carryforward registry.
// Losses are recorded for every category, including non-offsetting
// ones, for audit continuity; whether they are ever consumable is the
// category's business.
func (e *Engine) RecordLoss(symbol string, date time.Time, loss decimal.Decimal) (Lot, error) {
	if !loss.IsNegative() {
		return Lot{}, fmt.Errorf("record loss: amount %s is not negative", loss)
	}
	category := e.CategoryOf(symbol)
	lot, err := e.lots.Create(symbol, category, date, loss)
	if err != nil {
		return Lot{}, err
	}
	e.log.Info("loss lot recorded",
		zap.String("lot_id", lot.ID),
		zap.String("symbol", symbol),
		zap.String("category", string(category)),
		zap.String("loss", loss.String()),
		zap.Time("expires_at", lot.ExpiresAt))
	return lot, nil
}

// Realize dispatches one realization event: positive gains are taxed,
// negative ones become loss lots, zero is a no-op.
func (e *Engine) Realize(gain decimal.Decimal, symbol string, date time.Time) (Result, error) {
	if gain.IsNegative() {
		lot, err := e.RecordLoss(symbol, date, gain)
		if err != nil {
			return Result{}, err
		}
		return Result{
			TaxDue:      decimal.Zero,
			Consumed:    decimal.Zero,
			Explanation: fmt.Sprintf("loss %s carried forward as lot %s until %s", gain, lot.ID, lot.ExpiresAt.Format("2006-01-02")),
		}, nil
	}
	return e.CalculateTax(gain, symbol, date)
}

// Available reports the consumable carryforward for symbol's category
// as of date.
func (e *Engine) Available(symbol string, date time.Time) (decimal.Decimal, error) {
	return e.lots.Available(e.CategoryOf(symbol), date)
}
