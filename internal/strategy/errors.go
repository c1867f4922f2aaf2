package strategy

import (
	"errors"
	"fmt"
)

// Category classifies why a recommendation was refused. Every category
// is an expected, recoverable outcome: the market or the inputs make a
// safe recommendation impossible. Internal malfunctions (malformed
// chains, provider bugs) surface as ordinary errors instead.
type Category string

const (
	CategoryNoData      Category = "no-data"
	CategoryLiquidity   Category = "liquidity"
	CategoryPriceSanity Category = "price-inconsistency"
	CategoryBudget      Category = "budget"
	CategoryPolicy      Category = "policy"
)

// RejectionError is the single taxonomy for refused recommendations.
// Callers present Reason to the user and may retry with different
// parameters; they should never treat a rejection as fatal.
type RejectionError struct {
	Category Category
	Reason   string
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("%s: %s", e.Category, e.Reason)
}

func reject(cat Category, format string, args ...any) *RejectionError {
	return &RejectionError{Category: cat, Reason: fmt.Sprintf(format, args...)}
}

// IsRejection reports whether err is a categorized rejection, as
// opposed to an internal malfunction.
func IsRejection(err error) bool {
	var r *RejectionError
	return errors.As(err, &r)
}

// AsRejection returns the rejection wrapped in err, if any.
func AsRejection(err error) (*RejectionError, bool) {
	var r *RejectionError
	if errors.As(err, &r) {
		return r, true
	}
	return nil, false
}
