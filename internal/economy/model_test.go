package economy

import (
	"testing"
	"time"
)

func TestGameDaySeoulBoundary(t *testing.T) {
	tests := []struct {
		at   time.Time
		want string
	}{
		// 14:59 UTC is still 23:59 in Seoul.
		{time.Date(2026, 3, 1, 14, 59, 0, 0, time.UTC), "2026-03-01"},
		// 15:00 UTC rolls Seoul over to the next day.
		{time.Date(2026, 3, 1, 15, 0, 0, 0, time.UTC), "2026-03-02"},
		{time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), "2026-03-01"},
		{time.Date(2026, 12, 31, 16, 30, 0, 0, time.UTC), "2027-01-01"},
	}
	for _, tc := range tests {
		got := GameDay(tc.at)
		if got.Format("2006-01-02") != tc.want {
			t.Fatalf("at=%s got=%s want=%s", tc.at, got.Format("2006-01-02"), tc.want)
		}
		if got.Location() != time.UTC || got.Hour() != 0 {
			t.Fatalf("game day must be a UTC midnight, got %s", got)
		}
	}
}

func TestSplitFee(t *testing.T) {
	tests := []struct {
		gross   int64
		taxBp   int32
		wantFee int64
	}{
		{gross: 1_000, taxBp: 500, wantFee: 50},
		{gross: 999, taxBp: 500, wantFee: 49},
		{gross: 1, taxBp: 500, wantFee: 0},
		{gross: 1_000, taxBp: 0, wantFee: 0},
		{gross: 1_000, taxBp: 10_000, wantFee: 1_000},
		// Largest gross the listing bounds allow: MaxSaleQty * MaxUnitPrice.
		{gross: MaxSaleQty * MaxUnitPrice, taxBp: 10_000, wantFee: MaxSaleQty * MaxUnitPrice},
		{gross: MaxSaleQty * MaxUnitPrice, taxBp: 500, wantFee: 50_000_000_000_000},
		{gross: MaxSaleQty*MaxUnitPrice - 1, taxBp: 9_999, wantFee: 999_899_999_999_999},
	}
	for _, tc := range tests {
		fee, net := SplitFee(tc.gross, tc.taxBp)
		if fee != tc.wantFee {
			t.Fatalf("gross=%d bp=%d fee=%d want=%d", tc.gross, tc.taxBp, fee, tc.wantFee)
		}
		if fee+net != tc.gross {
			t.Fatalf("gross=%d bp=%d fee+net=%d, money leaked", tc.gross, tc.taxBp, fee+net)
		}
	}
}

func TestNPCPricing(t *testing.T) {
	// Rates are 65% for resources and 95% for items, rounded half away.
	if got := NPCResourcePrice(30); got != 20 {
		t.Fatalf("resource price for base 30: got %d want 20", got)
	}
	if got := NPCResourcePrice(20); got != 13 {
		t.Fatalf("resource price for base 20: got %d want 13", got)
	}
	if got := NPCItemPrice(120); got != 114 {
		t.Fatalf("item price for base 120: got %d want 114", got)
	}

	// The tax truncates instead of rounding.
	if got := NPCItemTax(100); got != 5 {
		t.Fatalf("tax on 100: got %d want 5", got)
	}
	if got := NPCItemTax(99); got != 4 {
		t.Fatalf("tax on 99: got %d want 4", got)
	}
	if got := NPCItemTax(19); got != 0 {
		t.Fatalf("tax on 19: got %d want 0", got)
	}
}

func TestValidateTier(t *testing.T) {
	for tier := 1; tier <= 5; tier++ {
		if err := validateTier(tier); err != nil {
			t.Fatalf("tier %d should be valid: %v", tier, err)
		}
	}
	for _, tier := range []int{0, 6, -1} {
		if err := validateTier(tier); err == nil {
			t.Fatalf("tier %d should fail", tier)
		}
	}
}

func TestValidateTaxBp(t *testing.T) {
	for _, bp := range []int32{0, 500, 10_000} {
		if err := validateTaxBp(bp); err != nil {
			t.Fatalf("bp %d should be valid: %v", bp, err)
		}
	}
	for _, bp := range []int32{-1, 10_001} {
		if err := validateTaxBp(bp); err == nil {
			t.Fatalf("bp %d should fail", bp)
		}
	}
}

func TestClampLimit(t *testing.T) {
	tests := []struct {
		limit, def, max, want int
	}{
		{0, 10, 20, 10},
		{-5, 10, 20, 10},
		{15, 10, 20, 15},
		{25, 10, 20, 20},
	}
	for _, tc := range tests {
		if got := clampLimit(tc.limit, tc.def, tc.max); got != tc.want {
			t.Fatalf("clampLimit(%d,%d,%d)=%d want=%d", tc.limit, tc.def, tc.max, got, tc.want)
		}
	}
}
