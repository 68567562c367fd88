package economy

import "testing"

func tableSum(table []DropEntry) int64 {
	var sum int64
	for _, e := range table {
		sum += e.Weight
	}
	return sum
}

func TestNormalizeDropAlwaysSums100(t *testing.T) {
	for _, bias := range []string{"", "iron", "wood", "stone", "herb", "water"} {
		table := NormalizeDrop(BaseDrop, bias)
		if got := tableSum(table); got != 100 {
			t.Fatalf("bias=%q sum=%d want=100", bias, got)
		}
	}
}

func TestNormalizeDropBiasShifts(t *testing.T) {
	plain := NormalizeDrop(BaseDrop, "")
	biased := NormalizeDrop(BaseDrop, "herb")

	var plainHerb, biasedHerb int64
	for i := range plain {
		if plain[i].ItemID == "herb" {
			plainHerb = plain[i].Weight
		}
		if biased[i].ItemID == "herb" {
			biasedHerb = biased[i].Weight
		}
	}
	if biasedHerb <= plainHerb {
		t.Fatalf("herb bias did not raise its weight: %d -> %d", plainHerb, biasedHerb)
	}
}

func TestNormalizeDropRemainderGoesFirst(t *testing.T) {
	// iron bias: raw weights 35/25/25/15/10 over 110 round to 32/23/23/14/9,
	// one point over, so the first entry absorbs the -1.
	table := NormalizeDrop(BaseDrop, "iron")
	want := []int64{31, 23, 23, 14, 9}
	for i, e := range table {
		if e.Weight != want[i] {
			t.Fatalf("entry %s weight=%d want=%d", e.ItemID, e.Weight, want[i])
		}
	}
}

func TestDrawDropBuckets(t *testing.T) {
	table := []DropEntry{{"a", 50}, {"b", 30}, {"c", 20}}
	tests := []struct {
		roll int64
		want string
	}{
		{1, "a"}, {50, "a"},
		{51, "b"}, {80, "b"},
		{81, "c"}, {100, "c"},
	}
	for _, tc := range tests {
		if got := DrawDrop(table, tc.roll); got != tc.want {
			t.Fatalf("roll=%d got=%q want=%q", tc.roll, got, tc.want)
		}
	}
	if got := DrawDrop(table, 101); got != "" {
		t.Fatalf("overflow roll should miss, got %q", got)
	}
}
