package ledger

import (
	"errors"
	"fmt"
	"strings"
)

// Violation is one failed sanity check. A batch that raises any
// violation is rejected whole; the caller gets the full list, not just
// the first hit.
type Violation struct {
	Code string
	Msg  string
}

// BatchError carries every violation a rejected batch raised.
type BatchError struct {
	Violations []Violation
}

func (e *BatchError) Error() string {
	msgs := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		msgs[i] = v.Code + ": " + v.Msg
	}
	return "batch rejected: " + strings.Join(msgs, "; ")
}

// AsBatchError unwraps err into a *BatchError if it is one.
func AsBatchError(err error) (*BatchError, bool) {
	var be *BatchError
	ok := errors.As(err, &be)
	return be, ok
}

type checkState struct {
	violations []Violation
}

func (c *checkState) add(code, format string, args ...any) {
	c.violations = append(c.violations, Violation{Code: code, Msg: fmt.Sprintf(format, args...)})
}

// checkBatch trial-applies batch (already in ledger order) against a
// clone of the committed view and collects every violated invariant.
// The clone is discarded afterwards, so a failing entry is skipped and
// checking continues to report the rest of the batch too.
func (s *Store) checkBatch(trial *View, batch []Entry) []Violation {
	c := &checkState{}

	for _, e := range batch {
		if !e.Kind.valid() {
			c.add("INVALID_KIND", "entry %s has unknown kind %q", e, e.Kind)
			continue
		}
		if (e.Kind == Buy || e.Kind == Sell) && !e.Quantity.IsPositive() {
			c.add("NONPOSITIVE_QUANTITY", "entry %s has quantity %s", e, e.Quantity)
			continue
		}
		if e.CostBasis.IsNegative() {
			c.add("NEGATIVE_COST_BASIS", "entry %s has cost-basis snapshot %s", e, e.CostBasis)
		}
		if !s.horizon.IsZero() && e.Date.After(s.horizon) {
			c.add("BEYOND_DATA_HORIZON", "entry %s dated after last market data %s",
				e, s.horizon.Format("2006-01-02"))
		}

		cashWasNegative := trial.Cash().IsNegative()
		if _, err := trial.Apply(e); err != nil {
			if errors.Is(err, ErrOversell) {
				c.add("NEGATIVE_POSITION", "entry %s would take %s below zero", e, e.Symbol)
			} else {
				c.add("INVALID_ENTRY", "entry %s: %v", e, err)
			}
			continue
		}
		// Report the first entry that drives cash negative, not every
		// entry after it.
		if trial.Cash().IsNegative() && !cashWasNegative {
			c.add("NEGATIVE_CASH", "entry %s drives cash to %s", e, trial.Cash())
		}
	}

	return c.violations
}
