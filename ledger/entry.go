package ledger

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Kind classifies a ledger entry. The set is closed; anything else is
// rejected at append time.
type Kind string

const (
	Deposit    Kind = "DEPOSIT"
	Withdrawal Kind = "WITHDRAWAL"
	Buy        Kind = "BUY"
	Sell       Kind = "SELL"
	Interest   Kind = "INTEREST"
	Dividend   Kind = "DIVIDEND"
)

func (k Kind) valid() bool {
	switch k {
	case Deposit, Withdrawal, Buy, Sell, Interest, Dividend:
		return true
	}
	return false
}

// RunMode tags entries with the context that produced them so a single
// database can hold production and backtest history side by side.
type RunMode string

const (
	Production RunMode = "PRODUCTION"
	Backtest   RunMode = "BACKTEST"
	Test       RunMode = "TEST"
)

// Entry is one immutable row of the account ledger. Corrections are
// offsetting entries; committed rows are never edited or deleted.
//
// For cash-only kinds (DEPOSIT, WITHDRAWAL, INTEREST, DIVIDEND) the
// convention is Quantity = 1 and UnitPrice = amount, though any
// quantity/price pair with the same product is equivalent.
type Entry struct {
	ID        int64 // assigned by the store on commit
	Date      time.Time
	Kind      Kind
	Symbol    string
	Quantity  decimal.Decimal
	UnitPrice decimal.Decimal
	Fees      decimal.Decimal
	TaxPaid   decimal.Decimal
	CostBasis decimal.Decimal // position cost snapshot supplied by order execution
	BatchID   string
	RunMode   RunMode
}

// Amount is Quantity * UnitPrice, before fees and tax.
func (e Entry) Amount() decimal.Decimal {
	return e.Quantity.Mul(e.UnitPrice)
}

// CashEffect is the signed change this entry makes to the cash balance.
func (e Entry) CashEffect() decimal.Decimal {
	switch e.Kind {
	case Deposit, Interest, Dividend, Sell:
		return e.Amount().Sub(e.Fees).Sub(e.TaxPaid)
	case Withdrawal, Buy:
		return e.Amount().Neg().Sub(e.Fees)
	}
	return decimal.Zero
}

func (e Entry) String() string {
	return fmt.Sprintf("%s %s %s %s@%s", e.Date.Format("2006-01-02"), e.Kind, e.Symbol,
		e.Quantity.String(), e.UnitPrice.String())
}
