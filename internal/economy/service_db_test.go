package economy

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"kingdom/internal/db"

	"github.com/jackc/pgx/v5/pgxpool"
)

// newTestService connects to the database named by KINGDOM_TEST_DATABASE_URL,
// runs migrations and wipes all game state. The item and recipe catalogs
// survive the wipe. Tests are skipped when the variable is unset.
func newTestService(t *testing.T) (*Service, *pgxpool.Pool) {
	t.Helper()
	dsn := os.Getenv("KINGDOM_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("KINGDOM_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	if err := db.Migrate(ctx, dsn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	pool, err := db.Connect(ctx, dsn, 10, 1)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(pool.Close)

	_, err = pool.Exec(ctx, `
		TRUNCATE countries, treasury_ledger, users, lands,
		         inventory, listings, trades, price_indices_daily`)
	if err != nil {
		t.Fatalf("truncate: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(pool, logger, NewQuoteSigner("test-secret", time.Minute)), pool
}

func TestEconomyLifecycle(t *testing.T) {
	svc, pool := newTestService(t)
	ctx := context.Background()

	country, err := svc.CreateCountry(ctx, 1, "Avalon")
	if err != nil {
		t.Fatalf("create country: %v", err)
	}
	if country.Treasury != InitialTreasury || country.MarketTaxBp != DefaultMarketTaxBp {
		t.Fatalf("founding state: %+v", country)
	}
	if _, err := svc.CreateCountry(ctx, 1, "Avalon"); !errors.Is(err, ErrCountryExists) {
		t.Fatalf("duplicate found: %v", err)
	}

	land, err := svc.AssignLand(ctx, AssignLandInput{CountryID: 1, ChannelID: 100, Tier: 1})
	if err != nil {
		t.Fatalf("assign land: %v", err)
	}
	if land.Treasury != InitialTreasury-LandTiers[1].Price {
		t.Fatalf("treasury after land: %d", land.Treasury)
	}
	if _, err := svc.AssignLand(ctx, AssignLandInput{CountryID: 1, ChannelID: 100, Tier: 2}); !errors.Is(err, ErrLandTaken) {
		t.Fatalf("duplicate land: %v", err)
	}

	claim, err := svc.Claim(ctx, ClaimInput{CountryID: 1, UserID: 10, ChannelID: 100})
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if claim.Streak != 1 {
		t.Fatalf("first streak: %d", claim.Streak)
	}
	if claim.Total < LandTiers[1].YieldMin || claim.Total > LandTiers[1].YieldMax {
		t.Fatalf("claim total out of range: %d", claim.Total)
	}
	var dropped int64
	for _, d := range claim.Drops {
		dropped += d.Qty
	}
	if dropped != claim.Total {
		t.Fatalf("drops sum %d, total %d", dropped, claim.Total)
	}
	if _, err := svc.Claim(ctx, ClaimInput{CountryID: 1, UserID: 10, ChannelID: 100}); !errors.Is(err, ErrDuplicateClaim) {
		t.Fatalf("second claim same day: %v", err)
	}
	// A stored future claim date must not re-open claiming.
	mustExec(t, pool, `UPDATE users SET last_claim_date = CURRENT_DATE + 2 WHERE country_id = 1 AND user_id = 10`)
	if _, err := svc.Claim(ctx, ClaimInput{CountryID: 1, UserID: 10, ChannelID: 100}); !errors.Is(err, ErrDuplicateClaim) {
		t.Fatalf("claim with future last_claim_date: %v", err)
	}

	// Seller with a stocked inventory, buyer with cash.
	mustExec(t, pool, `INSERT INTO users (country_id, user_id, balance) VALUES (1, 11, 0), (1, 12, 1000)`)
	mustExec(t, pool, `INSERT INTO inventory (country_id, user_id, item_id, qty) VALUES (1, 11, 'iron', 100)`)

	sale, err := svc.SellToNPC(ctx, NPCSaleInput{CountryID: 1, UserID: 11, ItemID: "iron", Qty: 10})
	if err != nil {
		t.Fatalf("npc resource sale: %v", err)
	}
	if sale.UnitPrice != 20 || sale.Gross != 200 || sale.Tax != 0 || sale.Balance != 200 {
		t.Fatalf("npc resource sale: %+v", sale)
	}

	craft, err := svc.Craft(ctx, CraftInput{CountryID: 1, UserID: 11, ProductID: "iron_ingot", Batches: 3})
	if err != nil {
		t.Fatalf("craft: %v", err)
	}
	if craft.Crafted != 3 || len(craft.Consumed) != 1 || craft.Consumed[0].Qty != 9 {
		t.Fatalf("craft: %+v", craft)
	}

	ingotSale, err := svc.SellToNPC(ctx, NPCSaleInput{CountryID: 1, UserID: 11, ItemID: "iron_ingot", Qty: 1})
	if err != nil {
		t.Fatalf("npc item sale: %v", err)
	}
	if ingotSale.UnitPrice != 114 || ingotSale.Tax != 5 || ingotSale.Net != 109 {
		t.Fatalf("npc item sale: %+v", ingotSale)
	}

	// Crafted items stay off the market; they only sell to the NPC.
	if _, err := svc.RegisterListing(ctx, RegisterListingInput{
		CountryID: 1, SellerID: 11, ItemID: "iron_ingot", Qty: 1, UnitPrice: 100,
	}); !errors.Is(err, ErrNotResource) {
		t.Fatalf("listing a crafted item: %v", err)
	}
	if _, err := svc.OpenListings(ctx, 1, "iron_ingot", 10); !errors.Is(err, ErrNotResource) {
		t.Fatalf("browsing a crafted item: %v", err)
	}

	listing, err := svc.RegisterListing(ctx, RegisterListingInput{
		CountryID: 1, SellerID: 11, ItemID: "iron", Qty: 50, UnitPrice: 20,
	})
	if err != nil {
		t.Fatalf("register listing: %v", err)
	}
	if listing.Status != ListingOpen {
		t.Fatalf("listing status: %s", listing.Status)
	}
	// Escrow: 100 - 10 sold - 9 crafted - 50 listed.
	if got := inventoryQty(t, pool, 1, 11, "iron"); got != 31 {
		t.Fatalf("seller iron after escrow: %d", got)
	}

	if _, err := svc.QuoteBuy(ctx, QuoteBuyInput{CountryID: 1, BuyerID: 11, ListingID: listing.ListingID, Qty: 1}); !errors.Is(err, ErrSelfTrade) {
		t.Fatalf("self trade: %v", err)
	}

	quoted, err := svc.QuoteBuy(ctx, QuoteBuyInput{CountryID: 1, BuyerID: 12, ListingID: listing.ListingID, Qty: 10})
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if quoted.Quote.Gross != 200 || quoted.Quote.Fee != 10 || quoted.Quote.Net != 190 {
		t.Fatalf("quote terms: %+v", quoted.Quote)
	}

	if _, err := svc.ConfirmBuy(ctx, 1, 99, quoted.Token); !errors.Is(err, ErrNotQuoteBuyer) {
		t.Fatalf("foreign buyer confirm: %v", err)
	}

	trade, err := svc.ConfirmBuy(ctx, 1, 12, quoted.Token)
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if trade.Gross != 200 || trade.Fee != 10 || trade.Net != 190 {
		t.Fatalf("trade money: %+v", trade)
	}
	if trade.ListingRemaining != 40 || trade.ListingStatus != ListingOpen {
		t.Fatalf("listing after partial fill: %+v", trade)
	}
	if trade.BuyerBalance != 800 {
		t.Fatalf("buyer balance: %d", trade.BuyerBalance)
	}
	if got := inventoryQty(t, pool, 1, 12, "iron"); got != 10 {
		t.Fatalf("buyer iron: %d", got)
	}

	// Conservation: founding treasury minus land price plus npc tax plus market fee.
	after, err := svc.Country(ctx, 1)
	if err != nil {
		t.Fatalf("country: %v", err)
	}
	want := InitialTreasury - LandTiers[1].Price + 5 + 10
	if after.Treasury != want {
		t.Fatalf("treasury: %d want %d", after.Treasury, want)
	}
	var sellerBalance int64
	if err := pool.QueryRow(ctx, `SELECT balance FROM users WHERE country_id = 1 AND user_id = 11`).Scan(&sellerBalance); err != nil {
		t.Fatalf("seller balance: %v", err)
	}
	if sellerBalance != 200+109+190 {
		t.Fatalf("seller balance: %d", sellerBalance)
	}

	price, err := svc.Price(ctx, 1, "iron")
	if err != nil {
		t.Fatalf("price: %v", err)
	}
	if !price.HasData || price.AvgPrice != 20 || price.Volume != 10 {
		t.Fatalf("price print: %+v", price)
	}

	if _, err := svc.CancelListing(ctx, 1, listing.ListingID, 12); !errors.Is(err, ErrNotSeller) {
		t.Fatalf("foreign cancel: %v", err)
	}
	cancelled, err := svc.CancelListing(ctx, 1, listing.ListingID, 11)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.Status != ListingCancelled {
		t.Fatalf("cancel status: %s", cancelled.Status)
	}
	if got := inventoryQty(t, pool, 1, 11, "iron"); got != 71 {
		t.Fatalf("seller iron after refund: %d", got)
	}
}

func TestConcurrentBuySingleWinner(t *testing.T) {
	svc, pool := newTestService(t)
	ctx := context.Background()

	if _, err := svc.CreateCountry(ctx, 3, "Arcadia"); err != nil {
		t.Fatalf("create country: %v", err)
	}
	mustExec(t, pool, `INSERT INTO users (country_id, user_id, balance) VALUES (3, 31, 0), (3, 32, 1000), (3, 33, 1000)`)
	mustExec(t, pool, `INSERT INTO inventory (country_id, user_id, item_id, qty) VALUES (3, 31, 'iron', 10)`)

	listing, err := svc.RegisterListing(ctx, RegisterListingInput{
		CountryID: 3, SellerID: 31, ItemID: "iron", Qty: 10, UnitPrice: 10,
	})
	if err != nil {
		t.Fatalf("register listing: %v", err)
	}

	// Both quotes are valid against the full listing; only one settle can win.
	quotes := make(map[int64]string, 2)
	for _, buyerID := range []int64{32, 33} {
		q, err := svc.QuoteBuy(ctx, QuoteBuyInput{CountryID: 3, BuyerID: buyerID, ListingID: listing.ListingID, Qty: 6})
		if err != nil {
			t.Fatalf("quote buyer %d: %v", buyerID, err)
		}
		quotes[buyerID] = q.Token
	}

	errs := make(chan error, 2)
	var wg sync.WaitGroup
	for _, buyerID := range []int64{32, 33} {
		wg.Add(1)
		go func(buyerID int64) {
			defer wg.Done()
			_, err := svc.ConfirmBuy(ctx, 3, buyerID, quotes[buyerID])
			errs <- err
		}(buyerID)
	}
	wg.Wait()
	close(errs)

	var wins, losses int
	for err := range errs {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, ErrExceedsAvailable):
			losses++
		default:
			t.Fatalf("unexpected settle error: %v", err)
		}
	}
	if wins != 1 || losses != 1 {
		t.Fatalf("wins=%d losses=%d, want exactly one of each", wins, losses)
	}

	after, err := svc.Listing(ctx, 3, listing.ListingID)
	if err != nil {
		t.Fatalf("listing: %v", err)
	}
	if after.Qty != 4 || after.Status != ListingOpen {
		t.Fatalf("listing after race: qty=%d status=%s", after.Qty, after.Status)
	}
}

func TestExpireListingsRefundsEscrow(t *testing.T) {
	svc, pool := newTestService(t)
	ctx := context.Background()

	if _, err := svc.CreateCountry(ctx, 2, "Lemuria"); err != nil {
		t.Fatalf("create country: %v", err)
	}
	mustExec(t, pool, `INSERT INTO users (country_id, user_id, balance) VALUES (2, 21, 0)`)
	mustExec(t, pool, `INSERT INTO inventory (country_id, user_id, item_id, qty) VALUES (2, 21, 'wood', 30)`)

	listing, err := svc.RegisterListing(ctx, RegisterListingInput{
		CountryID: 2, SellerID: 21, ItemID: "wood", Qty: 30, UnitPrice: 15,
	})
	if err != nil {
		t.Fatalf("register listing: %v", err)
	}
	if _, err := pool.Exec(ctx,
		`UPDATE listings SET expires_at = now() - interval '1 hour' WHERE listing_id = $1`,
		listing.ListingID); err != nil {
		t.Fatalf("backdate listing: %v", err)
	}

	swept, err := svc.ExpireListings(ctx)
	if err != nil {
		t.Fatalf("expire: %v", err)
	}
	if swept != 1 {
		t.Fatalf("swept %d listings, want 1", swept)
	}
	expired, err := svc.Listing(ctx, 2, listing.ListingID)
	if err != nil {
		t.Fatalf("listing: %v", err)
	}
	if expired.Status != ListingExpired {
		t.Fatalf("status: %s", expired.Status)
	}
	if got := inventoryQty(t, pool, 2, 21, "wood"); got != 30 {
		t.Fatalf("refunded wood: %d", got)
	}
}

func mustExec(t *testing.T, pool *pgxpool.Pool, sql string) {
	t.Helper()
	if _, err := pool.Exec(context.Background(), sql); err != nil {
		t.Fatalf("exec %q: %v", sql, err)
	}
}

func inventoryQty(t *testing.T, pool *pgxpool.Pool, countryID, userID int64, itemID string) int64 {
	t.Helper()
	var qty int64
	err := pool.QueryRow(context.Background(),
		`SELECT qty FROM inventory WHERE country_id = $1 AND user_id = $2 AND item_id = $3`,
		countryID, userID, itemID).Scan(&qty)
	if err != nil {
		t.Fatalf("inventory qty: %v", err)
	}
	return qty
}
