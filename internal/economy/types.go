package economy

import "time"

type CountryView struct {
	CountryID   int64  `json:"country_id"`
	Name        string `json:"name"`
	Treasury    int64  `json:"treasury"`
	MarketTaxBp int32  `json:"market_tax_bp"`
}

type TreasuryEntry struct {
	EntryID   int64     `json:"entry_id"`
	Direction string    `json:"direction"`
	Reason    string    `json:"reason"`
	Amount    int64     `json:"amount"`
	CreatedAt time.Time `json:"created_at"`
}

type LandView struct {
	CountryID    int64  `json:"country_id"`
	ChannelID    int64  `json:"channel_id"`
	Tier         int    `json:"tier"`
	ResourceBias string `json:"resource_bias"`
	YieldMin     int64  `json:"yield_min"`
	YieldMax     int64  `json:"yield_max"`
	UpkeepWeekly int64  `json:"upkeep_weekly"`
	Price        int64  `json:"price"`
	Treasury     int64  `json:"treasury,omitempty"`
}

type DropLine struct {
	ItemID string `json:"item_id"`
	Qty    int64  `json:"qty"`
}

type ClaimResult struct {
	CountryID int64      `json:"country_id"`
	UserID    int64      `json:"user_id"`
	ChannelID int64      `json:"channel_id"`
	Day       string     `json:"day"`
	Streak    int32      `json:"streak"`
	Total     int64      `json:"total"`
	Drops     []DropLine `json:"drops"`
}

type CraftResult struct {
	ProductID string     `json:"product_id"`
	Batches   int64      `json:"batches"`
	Crafted   int64      `json:"crafted"`
	Consumed  []DropLine `json:"consumed"`
}

type NPCSaleResult struct {
	ItemID    string `json:"item_id"`
	Qty       int64  `json:"qty"`
	UnitPrice int64  `json:"unit_price"`
	Gross     int64  `json:"gross"`
	Tax       int64  `json:"tax"`
	Net       int64  `json:"net"`
	Balance   int64  `json:"balance"`
}

type ItemView struct {
	ItemID    string `json:"item_id"`
	Name      string `json:"name"`
	Class     string `json:"class"`
	BasePrice int64  `json:"base_price"`
}

type RecipeView struct {
	ProductID string     `json:"product_id"`
	Name      string     `json:"name"`
	YieldQty  int64      `json:"yield_qty"`
	Active    bool       `json:"active"`
	Inputs    []DropLine `json:"inputs"`
}

type InventoryLine struct {
	ItemID string `json:"item_id"`
	Name   string `json:"name"`
	Class  string `json:"class"`
	Qty    int64  `json:"qty"`
}

type ListingView struct {
	ListingID int64     `json:"listing_id"`
	CountryID int64     `json:"country_id"`
	SellerID  int64     `json:"seller_id"`
	ItemID    string    `json:"item_id"`
	Qty       int64     `json:"qty"`
	UnitPrice int64     `json:"unit_price"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// MarketBoard is the browse view for one item: cheapest listings first plus
// the aggregate depth across every open listing of the item.
type MarketBoard struct {
	ItemID   string        `json:"item_id"`
	Name     string        `json:"name"`
	MinPrice int64         `json:"min_price"`
	TotalQty int64         `json:"total_qty"`
	Listings []ListingView `json:"listings"`
}

type QuoteResult struct {
	Quote Quote  `json:"quote"`
	Token string `json:"token"`
}

type TradeResult struct {
	TradeID          int64  `json:"trade_id"`
	ListingID        int64  `json:"listing_id"`
	ItemID           string `json:"item_id"`
	Qty              int64  `json:"qty"`
	UnitPrice        int64  `json:"unit_price"`
	Gross            int64  `json:"gross"`
	Fee              int64  `json:"fee"`
	Net              int64  `json:"net"`
	ListingRemaining int64  `json:"listing_remaining"`
	ListingStatus    string `json:"listing_status"`
	BuyerBalance     int64  `json:"buyer_balance"`
}

// PriceView reports the latest daily rollup for an item. HasData is false
// when the item has never traded in the country; BasePrice then stands in.
type PriceView struct {
	ItemID     string  `json:"item_id"`
	Name       string  `json:"name"`
	BasePrice  int64   `json:"base_price"`
	HasData    bool    `json:"has_data"`
	Date       string  `json:"date,omitempty"`
	AvgPrice   int64   `json:"avg_price"`
	Volume     int64   `json:"volume"`
	EMAPrice   float64 `json:"ema_price"`
	PriceIndex float64 `json:"price_index"`
}

type TreasuryRank struct {
	Rank      int64  `json:"rank"`
	CountryID int64  `json:"country_id"`
	Name      string `json:"name"`
	Treasury  int64  `json:"treasury"`
}

type BalanceRank struct {
	Rank        int64  `json:"rank"`
	CountryID   int64  `json:"country_id"`
	CountryName string `json:"country_name"`
	UserID      int64  `json:"user_id"`
	Balance     int64  `json:"balance"`
}

type AssignLandInput struct {
	CountryID int64
	ChannelID int64
	Tier      int
}

type ClaimInput struct {
	CountryID int64
	UserID    int64
	ChannelID int64
}

type CraftInput struct {
	CountryID int64
	UserID    int64
	ProductID string
	Batches   int64
}

type NPCSaleInput struct {
	CountryID int64
	UserID    int64
	ItemID    string
	Qty       int64
}

type RegisterListingInput struct {
	CountryID int64
	SellerID  int64
	ItemID    string
	Qty       int64
	UnitPrice int64
}

type QuoteBuyInput struct {
	CountryID int64
	BuyerID   int64
	ListingID int64
	Qty       int64
}
