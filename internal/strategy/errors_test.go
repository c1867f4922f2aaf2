package strategy

import (
	"errors"
	"fmt"
	"testing"
)

func TestRejectionErrorTaxonomy(t *testing.T) {
	base := reject(CategoryBudget, "budget $%.0f cannot cover one contract", 500.0)
	if base.Error() != "budget: budget $500 cannot cover one contract" {
		t.Errorf("unexpected message %q", base.Error())
	}

	wrapped := fmt.Errorf("analyzing SPY: %w", base)
	if !IsRejection(wrapped) {
		t.Error("wrapped rejection not recognized")
	}
	r, ok := AsRejection(wrapped)
	if !ok || r.Category != CategoryBudget {
		t.Errorf("AsRejection = %v, %v", r, ok)
	}

	plain := errors.New("provider exploded")
	if IsRejection(plain) {
		t.Error("plain error misclassified as rejection")
	}
	if _, ok := AsRejection(plain); ok {
		t.Error("AsRejection matched a plain error")
	}
}
