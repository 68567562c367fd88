package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"kingdom/internal/economy"

	"github.com/fatih/color"
)

var (
	accent  = color.New(color.FgCyan, color.Bold)
	success = color.New(color.FgGreen, color.Bold)
	warn    = color.New(color.FgYellow, color.Bold)
	danger  = color.New(color.FgRed, color.Bold)
	neutral = color.New(color.FgHiWhite)
)

var stdinReader = bufio.NewReader(os.Stdin)

func printSuccess(msg string) { success.Println(msg) }
func printWarn(msg string)    { warn.Println(msg) }
func printInfo(msg string)    { neutral.Println(msg) }

func promptChoice(label string, options []string, fallback string) (string, error) {
	for {
		accent.Printf("%s [%s] (default %s): ", label, strings.Join(options, "/"), fallback)
		raw, err := stdinReader.ReadString('\n')
		if err != nil {
			return "", err
		}
		raw = strings.ToLower(strings.TrimSpace(raw))
		if raw == "" {
			return fallback, nil
		}
		for _, opt := range options {
			if raw == opt {
				return opt, nil
			}
		}
		printWarn("Pick one of: " + strings.Join(options, ", "))
	}
}

func promptInt64(label string, fallback int64) (int64, error) {
	for {
		accent.Printf("%s (default %d): ", label, fallback)
		raw, err := stdinReader.ReadString('\n')
		if err != nil {
			return 0, err
		}
		raw = strings.TrimSpace(raw)
		if raw == "" {
			return fallback, nil
		}
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			printWarn("Enter a whole number.")
			continue
		}
		return v, nil
	}
}

// decodeInto round-trips the generic API payload into a typed view.
func decodeInto[T any](raw any) (T, error) {
	var out T
	body, err := json.Marshal(raw)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return out, err
	}
	return out, nil
}

func comma(v int64) string {
	s := strconv.FormatInt(v, 10)
	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = s[1:]
	}
	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	if n <= 3 {
		return s[:n]
	}
	return s[:n-3] + "..."
}

func renderCountry(raw map[string]any) error {
	c, err := decodeInto[economy.CountryView](raw)
	if err != nil {
		return err
	}
	accent.Printf("\n== COUNTRY ==\n")
	fmt.Printf("%-12s %s\n", "Name", c.Name)
	fmt.Printf("%-12s %s\n", "Treasury", comma(c.Treasury))
	fmt.Printf("%-12s %d bp\n", "Market tax", c.MarketTaxBp)
	return nil
}

func renderTreasuryHistory(raw map[string]any) error {
	payload, err := decodeInto[struct {
		Entries []economy.TreasuryEntry `json:"entries"`
	}](raw)
	if err != nil {
		return err
	}
	accent.Printf("\n== TREASURY HISTORY ==\n")
	if len(payload.Entries) == 0 {
		printInfo("No movements yet.")
		return nil
	}
	fmt.Printf("%-6s %-4s %-20s %14s  %s\n", "ID", "DIR", "REASON", "AMOUNT", "AT")
	for _, e := range payload.Entries {
		fmt.Printf("%-6d %-4s %-20s %14s  %s\n",
			e.EntryID, e.Direction, truncate(e.Reason, 20), comma(e.Amount), e.CreatedAt.Format("2006-01-02 15:04"))
	}
	return nil
}

func renderLand(raw map[string]any) error {
	l, err := decodeInto[economy.LandView](raw)
	if err != nil {
		return err
	}
	accent.Printf("\n== LAND ==\n")
	fmt.Printf("%-10s %d\n", "Channel", l.ChannelID)
	fmt.Printf("%-10s %d\n", "Tier", l.Tier)
	fmt.Printf("%-10s %s\n", "Bias", l.ResourceBias)
	fmt.Printf("%-10s %d-%d per day\n", "Yield", l.YieldMin, l.YieldMax)
	fmt.Printf("%-10s %s\n", "Price", comma(l.Price))
	fmt.Printf("%-10s %s per week\n", "Upkeep", comma(l.UpkeepWeekly))
	return nil
}

func renderLands(raw map[string]any) error {
	payload, err := decodeInto[struct {
		Lands []economy.LandView `json:"lands"`
	}](raw)
	if err != nil {
		return err
	}
	accent.Printf("\n== LANDS ==\n")
	if len(payload.Lands) == 0 {
		printInfo("No lands assigned. Run: kgd land assign TIER")
		return nil
	}
	fmt.Printf("%-20s %-5s %-8s %-12s %s\n", "CHANNEL", "TIER", "BIAS", "YIELD", "UPKEEP/WK")
	for _, l := range payload.Lands {
		fmt.Printf("%-20d %-5d %-8s %3d-%-8d %s\n",
			l.ChannelID, l.Tier, l.ResourceBias, l.YieldMin, l.YieldMax, comma(l.UpkeepWeekly))
	}
	return nil
}

func renderClaim(raw map[string]any) error {
	c, err := decodeInto[economy.ClaimResult](raw)
	if err != nil {
		return err
	}
	accent.Printf("\n== HARVEST %s ==\n", c.Day)
	fmt.Printf("%-8s %d day(s)\n", "Streak", c.Streak)
	fmt.Printf("%-8s %d units\n", "Total", c.Total)
	for _, d := range c.Drops {
		fmt.Printf("  %-12s x%d\n", d.ItemID, d.Qty)
	}
	printSuccess("Harvest claimed.")
	return nil
}

func renderCraft(raw map[string]any) error {
	c, err := decodeInto[economy.CraftResult](raw)
	if err != nil {
		return err
	}
	accent.Printf("\n== CRAFT ==\n")
	fmt.Printf("Made %s x%d (%d batch(es))\n", c.ProductID, c.Crafted, c.Batches)
	for _, in := range c.Consumed {
		fmt.Printf("  used %-12s x%d\n", in.ItemID, in.Qty)
	}
	printSuccess("Crafting complete.")
	return nil
}

func renderNPCSale(raw map[string]any) error {
	s, err := decodeInto[economy.NPCSaleResult](raw)
	if err != nil {
		return err
	}
	accent.Printf("\n== NPC SALE ==\n")
	fmt.Printf("%-12s %s x%d @ %s\n", "Sold", s.ItemID, s.Qty, comma(s.UnitPrice))
	fmt.Printf("%-12s %s\n", "Gross", comma(s.Gross))
	if s.Tax > 0 {
		fmt.Printf("%-12s %s (to treasury)\n", "Tax", comma(s.Tax))
	}
	fmt.Printf("%-12s %s\n", "Net", comma(s.Net))
	fmt.Printf("%-12s %s\n", "Balance", comma(s.Balance))
	return nil
}

func renderInventory(raw map[string]any) error {
	payload, err := decodeInto[struct {
		Inventory []economy.InventoryLine `json:"inventory"`
	}](raw)
	if err != nil {
		return err
	}
	accent.Printf("\n== INVENTORY ==\n")
	if len(payload.Inventory) == 0 {
		printInfo("Empty bag. Claim a harvest first.")
		return nil
	}
	fmt.Printf("%-14s %-10s %10s\n", "ITEM", "CLASS", "QTY")
	for _, line := range payload.Inventory {
		fmt.Printf("%-14s %-10s %10s\n", line.ItemID, line.Class, comma(line.Qty))
	}
	return nil
}

func renderListing(raw map[string]any) error {
	l, err := decodeInto[economy.ListingView](raw)
	if err != nil {
		return err
	}
	accent.Printf("\n== LISTING #%d ==\n", l.ListingID)
	fmt.Printf("%-12s %s\n", "Item", l.ItemID)
	fmt.Printf("%-12s %s\n", "Qty", comma(l.Qty))
	fmt.Printf("%-12s %s\n", "Unit price", comma(l.UnitPrice))
	fmt.Printf("%-12s %s\n", "Status", l.Status)
	fmt.Printf("%-12s %s\n", "Expires", l.ExpiresAt.Format("2006-01-02 15:04"))
	return nil
}

func renderMarketBoard(raw map[string]any) error {
	b, err := decodeInto[economy.MarketBoard](raw)
	if err != nil {
		return err
	}
	accent.Printf("\n== MARKET: %s ==\n", b.ItemID)
	if len(b.Listings) == 0 {
		printInfo("No open listings.")
		return nil
	}
	fmt.Printf("%-12s %s   %-12s %s\n", "Best price", comma(b.MinPrice), "On offer", comma(b.TotalQty))
	fmt.Printf("%-8s %10s %12s  %s\n", "ID", "QTY", "UNIT", "EXPIRES")
	for _, l := range b.Listings {
		fmt.Printf("%-8d %10s %12s  %s\n",
			l.ListingID, comma(l.Qty), comma(l.UnitPrice), l.ExpiresAt.Format("2006-01-02 15:04"))
	}
	return nil
}

// renderQuote prints the quote breakdown and returns the settlement token.
func renderQuote(raw map[string]any) (string, error) {
	q, err := decodeInto[economy.QuoteResult](raw)
	if err != nil {
		return "", err
	}
	accent.Printf("\n== QUOTE ==\n")
	fmt.Printf("%-12s #%d (%s)\n", "Listing", q.Quote.ListingID, q.Quote.ItemID)
	fmt.Printf("%-12s %s @ %s\n", "Buying", comma(q.Quote.Qty), comma(q.Quote.UnitPrice))
	fmt.Printf("%-12s %s\n", "Gross", comma(q.Quote.Gross))
	fmt.Printf("%-12s %s (to treasury)\n", "Fee", comma(q.Quote.Fee))
	fmt.Printf("%-12s %s (to seller)\n", "Net", comma(q.Quote.Net))
	warn.Printf("Quote expires at %s.\n", q.Quote.ExpiresAt.Format("15:04:05"))
	return q.Token, nil
}

func renderTrade(raw map[string]any) error {
	t, err := decodeInto[economy.TradeResult](raw)
	if err != nil {
		return err
	}
	accent.Printf("\n== TRADE #%d ==\n", t.TradeID)
	fmt.Printf("%-12s %s x%d @ %s\n", "Bought", t.ItemID, t.Qty, comma(t.UnitPrice))
	fmt.Printf("%-12s %s\n", "Paid", comma(t.Gross))
	fmt.Printf("%-12s %s\n", "Fee", comma(t.Fee))
	fmt.Printf("%-12s %s (%s left, %s)\n", "Listing", strconv.FormatInt(t.ListingID, 10), comma(t.ListingRemaining), t.ListingStatus)
	fmt.Printf("%-12s %s\n", "Balance", comma(t.BuyerBalance))
	printSuccess("Trade settled.")
	return nil
}

func renderPrice(raw map[string]any) error {
	p, err := decodeInto[economy.PriceView](raw)
	if err != nil {
		return err
	}
	accent.Printf("\n== PRICE: %s ==\n", p.ItemID)
	if !p.HasData {
		printInfo("No trades yet. Showing the base price.")
		fmt.Printf("%-12s %s\n", "Base price", comma(p.BasePrice))
		return nil
	}
	fmt.Printf("%-12s %s\n", "Day", p.Date)
	fmt.Printf("%-12s %s\n", "Avg price", comma(p.AvgPrice))
	fmt.Printf("%-12s %s\n", "Volume", comma(p.Volume))
	fmt.Printf("%-12s %.4f\n", "EMA", p.EMAPrice)
	fmt.Printf("%-12s %.4f\n", "Index", p.PriceIndex)
	return nil
}

func renderPrices(raw map[string]any) error {
	payload, err := decodeInto[struct {
		Prices []economy.PriceView `json:"prices"`
	}](raw)
	if err != nil {
		return err
	}
	accent.Printf("\n== PRICE BOARD ==\n")
	fmt.Printf("%-14s %12s %10s %10s %8s\n", "ITEM", "AVG", "VOLUME", "EMA", "INDEX")
	for _, p := range payload.Prices {
		if !p.HasData {
			fmt.Printf("%-14s %12s %10s %10s %8s\n", p.ItemID, comma(p.BasePrice), "-", "-", "-")
			continue
		}
		fmt.Printf("%-14s %12s %10s %10.2f %8.4f\n",
			p.ItemID, comma(p.AvgPrice), comma(p.Volume), p.EMAPrice, p.PriceIndex)
	}
	return nil
}

func renderItems(raw map[string]any) error {
	payload, err := decodeInto[struct {
		Items []economy.ItemView `json:"items"`
	}](raw)
	if err != nil {
		return err
	}
	accent.Printf("\n== ITEMS ==\n")
	fmt.Printf("%-14s %-20s %-10s %12s\n", "ID", "NAME", "CLASS", "BASE PRICE")
	for _, it := range payload.Items {
		fmt.Printf("%-14s %-20s %-10s %12s\n", it.ItemID, truncate(it.Name, 20), it.Class, comma(it.BasePrice))
	}
	return nil
}

func renderRecipe(raw map[string]any) error {
	r, err := decodeInto[economy.RecipeView](raw)
	if err != nil {
		return err
	}
	accent.Printf("\n== RECIPE: %s ==\n", r.ProductID)
	fmt.Printf("%-8s %d per batch\n", "Yield", r.YieldQty)
	if !r.Active {
		printWarn("This recipe is currently disabled.")
	}
	for _, in := range r.Inputs {
		fmt.Printf("  %-12s x%d\n", in.ItemID, in.Qty)
	}
	return nil
}

func renderRecipes(raw map[string]any) error {
	payload, err := decodeInto[struct {
		Recipes []economy.RecipeView `json:"recipes"`
	}](raw)
	if err != nil {
		return err
	}
	accent.Printf("\n== RECIPES ==\n")
	for _, r := range payload.Recipes {
		parts := make([]string, 0, len(r.Inputs))
		for _, in := range r.Inputs {
			parts = append(parts, fmt.Sprintf("%s x%d", in.ItemID, in.Qty))
		}
		state := ""
		if !r.Active {
			state = "  (disabled)"
		}
		fmt.Printf("%-14s yields %2d from %s%s\n", r.ProductID, r.YieldQty, strings.Join(parts, ", "), state)
	}
	return nil
}

func renderTreasuryRanks(raw map[string]any) error {
	payload, err := decodeInto[struct {
		Rows []economy.TreasuryRank `json:"rows"`
	}](raw)
	if err != nil {
		return err
	}
	accent.Printf("\n== TOP TREASURIES ==\n")
	for i, r := range payload.Rows {
		fmt.Printf("%2d. %-24s %14s\n", i+1, truncate(r.Name, 24), comma(r.Treasury))
	}
	return nil
}

func renderBalanceRanks(raw map[string]any, title string) error {
	payload, err := decodeInto[struct {
		Rows []economy.BalanceRank `json:"rows"`
	}](raw)
	if err != nil {
		return err
	}
	accent.Printf("\n== %s ==\n", title)
	for i, r := range payload.Rows {
		fmt.Printf("%2d. user %-20d %14s\n", i+1, r.UserID, comma(r.Balance))
	}
	return nil
}
