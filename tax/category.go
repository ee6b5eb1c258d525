package tax

import "github.com/shopspring/decimal"

// StatutoryRate is the flat capital-gains rate (26%). It is the single
// place the rate is defined; every computation multiplies by this
// constant rather than re-deriving it.
var StatutoryRate = decimal.RequireFromString("0.26")

// Category classifies an instrument for loss-offset purposes.
//
// SHARE and ETC gains may be offset by carried-forward losses of the
// same group. FUND and ETF gains may not: losses on those instruments
// are still written to the registry for audit continuity, but they are
// permanently excluded from compensating gains. That split is statutory
// policy, not a missing feature — do not merge the two pools.
type Category string

const (
	CategoryShare Category = "SHARE"
	CategoryETC   Category = "ETC"
	CategoryETF   Category = "ETF"
	CategoryFund  Category = "FUND"
)

// CanOffset reports whether gains in this category may consume
// carried-forward losses.
func (c Category) CanOffset() bool {
	switch c {
	case CategoryShare, CategoryETC:
		return true
	}
	return false
}

// Registry resolves an instrument symbol to its tax category.
type Registry interface {
	// Category returns the category for symbol and whether the symbol
	// is known at all.
	Category(symbol string) (Category, bool)
}

// StaticRegistry is a map-backed Registry, loaded from configuration.
type StaticRegistry map[string]Category

func (r StaticRegistry) Category(symbol string) (Category, bool) {
	c, ok := r[symbol]
	return c, ok
}
