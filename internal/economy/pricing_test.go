package economy

import "testing"

func TestRollPrintBootstrap(t *testing.T) {
	got := RollPrint(nil, 200, 5)
	if got.AvgPrice != 200 || got.Volume != 5 || got.EMA != 200 {
		t.Fatalf("bootstrap print: %+v", got)
	}
}

func TestRollPrintFoldsTrade(t *testing.T) {
	prev := DailyPrint{AvgPrice: 100, Volume: 10, EMA: 100}
	got := RollPrint(&prev, 200, 10)
	if got.Volume != 20 {
		t.Fatalf("volume=%d want=20", got.Volume)
	}
	if got.AvgPrice != 150 {
		t.Fatalf("avg=%d want=150", got.AvgPrice)
	}
	// alpha 0.2: 0.2*200 + 0.8*100
	if got.EMA != 120 {
		t.Fatalf("ema=%f want=120", got.EMA)
	}
}

func TestPriceIndexOf(t *testing.T) {
	tests := []struct {
		ema  float64
		base int64
		want float64
	}{
		{120, 100, 1.2},
		{10, 100, 0.5},
		{400, 100, 1.5},
		{2, 0, 1.5}, // base floors at 1
	}
	for _, tc := range tests {
		if got := PriceIndexOf(tc.ema, tc.base); got != tc.want {
			t.Fatalf("ema=%f base=%d got=%f want=%f", tc.ema, tc.base, got, tc.want)
		}
	}
}
