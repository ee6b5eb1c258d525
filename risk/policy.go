package risk

import "fmt"

// Policy holds the stop thresholds as fractions (0.07 = 7%).
type Policy struct {
	// HardStopPct is the maximum tolerated drawdown from the entry
	// price. Hitting it is a mandatory exit: the signal bypasses any
	// downstream scoring or hold logic.
	HardStopPct float64

	// TrailingActivatePct is the unrealized profit from entry required
	// before the trailing stop arms.
	TrailingActivatePct float64

	// TrailingStopPct is the drawdown from the peak (not the entry)
	// that triggers the trailing stop once armed.
	TrailingStopPct float64
}

// DefaultPolicy mirrors the production settings: 7% hard stop, trailing
// stop armed at +5% and triggered 10% below the peak.
func DefaultPolicy() Policy {
	return Policy{
		HardStopPct:         0.07,
		TrailingActivatePct: 0.05,
		TrailingStopPct:     0.10,
	}
}

// Validate checks the thresholds are usable fractions.
func (p Policy) Validate() error {
	if p.HardStopPct <= 0 || p.HardStopPct >= 1 {
		return fmt.Errorf("hard_stop_pct must be in (0, 1), got %v", p.HardStopPct)
	}
	if p.TrailingActivatePct <= 0 || p.TrailingActivatePct >= 1 {
		return fmt.Errorf("trailing_activate_pct must be in (0, 1), got %v", p.TrailingActivatePct)
	}
	if p.TrailingStopPct <= 0 || p.TrailingStopPct >= 1 {
		return fmt.Errorf("trailing_stop_pct must be in (0, 1), got %v", p.TrailingStopPct)
	}
	return nil
}
