package economy

import "math"

// DropEntry is one row of a harvest drop table. After normalization Weight is
// a whole percentage and the table sums to exactly 100.
type DropEntry struct {
	ItemID string
	Weight int64
}

// BaseDrop is the unbiased harvest table.
var BaseDrop = []DropEntry{
	{"iron", 25},
	{"wood", 25},
	{"stone", 25},
	{"herb", 15},
	{"water", 10},
}

// NormalizeDrop applies the land's resource bias (+10 flat weight) and
// renormalizes to whole percentages totalling 100. Any rounding remainder is
// absorbed by the FIRST entry; the original always did this, and changing it
// would shift game balance, so the quirk is preserved.
func NormalizeDrop(base []DropEntry, bias string) []DropEntry {
	table := make([]DropEntry, len(base))
	var sum int64
	for i, e := range base {
		w := e.Weight
		if e.ItemID == bias {
			w += 10
		}
		table[i] = DropEntry{ItemID: e.ItemID, Weight: w}
		sum += w
	}
	if sum <= 0 {
		return table
	}
	var total int64
	for i := range table {
		table[i].Weight = int64(math.Round(float64(table[i].Weight*100) / float64(sum)))
		total += table[i].Weight
	}
	if diff := 100 - total; diff != 0 && len(table) > 0 {
		table[0].Weight += diff
	}
	return table
}

// DrawDrop maps a uniform roll in [1,100] onto the cumulative buckets of a
// normalized table. Rolls past the last bucket (possible only with a
// malformed table) return the empty string.
func DrawDrop(table []DropEntry, roll int64) string {
	var acc int64
	for _, e := range table {
		acc += e.Weight
		if roll <= acc {
			return e.ItemID
		}
	}
	return ""
}
