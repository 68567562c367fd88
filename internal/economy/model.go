package economy

import (
	"fmt"
	"math"
	"time"
)

const (
	// NPC purchase rates are fixed game policy, not market-discovered.
	NPCResourceRate = 0.65
	NPCItemRate     = 0.95
	NPCItemTaxRate  = 0.05

	EMAAlpha = 0.20

	InitialTreasury    = int64(50_000)
	DefaultMarketTaxBp = 500

	ListingTTL = 72 * time.Hour

	MaxCraftBatch = 100
	MaxSaleQty    = int64(1_000_000)
	MaxUnitPrice  = int64(1_000_000_000)
	MaxBuyQty     = int64(1_000_000_000)
)

const (
	ItemClassResource = "resource"
	ItemClassItem     = "item"
)

const (
	ListingOpen      = "open"
	ListingSold      = "sold"
	ListingExpired   = "expired"
	ListingCancelled = "cancelled"
)

// LandTier describes one land grade: assignment cost (paid by the treasury),
// weekly upkeep, and the daily yield range.
type LandTier struct {
	Price        int64
	UpkeepWeekly int64
	YieldMin     int64
	YieldMax     int64
}

var LandTiers = map[int]LandTier{
	1: {Price: 5_000, UpkeepWeekly: 1_000, YieldMin: 2, YieldMax: 4},
	2: {Price: 15_000, UpkeepWeekly: 3_000, YieldMin: 4, YieldMax: 6},
	3: {Price: 30_000, UpkeepWeekly: 6_000, YieldMin: 6, YieldMax: 9},
	4: {Price: 60_000, UpkeepWeekly: 12_000, YieldMin: 9, YieldMax: 12},
	5: {Price: 120_000, UpkeepWeekly: 25_000, YieldMin: 12, YieldMax: 16},
}

// gameDay is anchored to Seoul midnight, not UTC.
var gameDayLocation = loadGameDayLocation()

func loadGameDayLocation() *time.Location {
	loc, err := time.LoadLocation("Asia/Seoul")
	if err != nil {
		return time.FixedZone("KST", 9*60*60)
	}
	return loc
}

// GameDay truncates an instant to the in-game calendar date.
func GameDay(now time.Time) time.Time {
	y, m, d := now.In(gameDayLocation).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// SplitFee divides a gross amount into the treasury fee and the seller's net.
// fee + net == gross holds for every input. The fee is computed in two terms
// because gross*taxBp overflows int64 at the top of the listing bounds
// (1e15 gross at 10000 bp); splitting on the divisor keeps every
// intermediate small while preserving the exact floor(gross*taxBp/10000).
func SplitFee(gross int64, taxBp int32) (fee, net int64) {
	bp := int64(taxBp)
	fee = gross/10_000*bp + gross%10_000*bp/10_000
	return fee, gross - fee
}

// NPCResourcePrice is the per-unit price the NPC pays for a resource.
func NPCResourcePrice(basePrice int64) int64 {
	return int64(math.Round(float64(basePrice) * NPCResourceRate))
}

// NPCItemPrice is the per-unit price the NPC pays for a crafted item, before tax.
func NPCItemPrice(basePrice int64) int64 {
	return int64(math.Round(float64(basePrice) * NPCItemRate))
}

// NPCItemTax is the treasury's cut of a gross item sale, truncated like the
// original integer arithmetic.
func NPCItemTax(gross int64) int64 {
	return int64(float64(gross) * NPCItemTaxRate)
}

func validateRange(name string, v, lo, hi int64) error {
	if v < lo || v > hi {
		return fmt.Errorf("%w: %s must be between %d and %d", ErrValidation, name, lo, hi)
	}
	return nil
}

func validateTier(tier int) error {
	if _, ok := LandTiers[tier]; !ok {
		return fmt.Errorf("%w: tier must be between 1 and 5", ErrValidation)
	}
	return nil
}

func validateTaxBp(bp int32) error {
	if bp < 0 || bp > 10_000 {
		return fmt.Errorf("%w: market tax must be between 0 and 10000 bp", ErrValidation)
	}
	return nil
}

func clampLimit(limit, def, max int) int {
	if limit <= 0 {
		return def
	}
	if limit > max {
		return max
	}
	return limit
}
