package economy

// DailyPrint is the per-(country, item, day) rollup state updated on every
// settled trade.
type DailyPrint struct {
	AvgPrice int64
	Volume   int64
	EMA      float64
}

// RollPrint folds one executed trade into the day's rollup. A nil previous
// print bootstraps from the trade itself: the first EMA of the day is the
// trade price, not a default.
func RollPrint(prev *DailyPrint, unitPrice, qty int64) DailyPrint {
	if prev == nil {
		return DailyPrint{AvgPrice: unitPrice, Volume: qty, EMA: float64(unitPrice)}
	}
	vol := prev.Volume + qty
	return DailyPrint{
		AvgPrice: (prev.AvgPrice*prev.Volume + unitPrice*qty) / vol,
		Volume:   vol,
		EMA:      EMAAlpha*float64(unitPrice) + (1-EMAAlpha)*prev.EMA,
	}
}

// PriceIndexOf relates the smoothed price to the catalog base price, clamped
// to [0.5, 1.5].
func PriceIndexOf(ema float64, basePrice int64) float64 {
	bp := basePrice
	if bp < 1 {
		bp = 1
	}
	idx := ema / float64(bp)
	if idx < 0.5 {
		return 0.5
	}
	if idx > 1.5 {
		return 1.5
	}
	return idx
}
