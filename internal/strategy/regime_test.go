package strategy

import (
	"testing"

	"github.com/mlaurent/spreadwright/internal/config"
)

func TestClassifyRegime(t *testing.T) {
	rc := config.Default().Regime

	cases := []struct {
		name     string
		ivRank   float64
		volIndex float64
		want     Regime
	}{
		{"high iv rank alone", 60, 10, RegimeHigh},
		{"high vol index alone", 30, 25, RegimeHigh},
		{"both high", 80, 30, RegimeHigh},
		{"both low", 10, 10, RegimeLow},
		{"low rank but vol not low", 10, 16, RegimeMid},
		{"low vol but rank not low", 30, 10, RegimeMid},
		{"middle of the table", 35, 17, RegimeMid},
		{"high boundaries are strict", 50, 20, RegimeMid},
		{"low boundaries are strict", 20, 15, RegimeMid},
		{"just past high rank", 50.1, 10, RegimeHigh},
		{"just under low pair", 19.9, 14.9, RegimeLow},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ClassifyRegime(tc.ivRank, tc.volIndex, rc); got != tc.want {
				t.Errorf("ClassifyRegime(%v, %v) = %v, want %v", tc.ivRank, tc.volIndex, got, tc.want)
			}
		})
	}
}

func TestRegimeString(t *testing.T) {
	for r, want := range map[Regime]string{RegimeHigh: "high-vol", RegimeLow: "low-vol", RegimeMid: "mid-vol"} {
		if got := r.String(); got != want {
			t.Errorf("Regime(%d).String() = %q, want %q", r, got, want)
		}
	}
}
