package economy

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
)

// RegisterListing escrows the seller's stock and opens a listing. The stock
// leaves the seller's inventory immediately so the same units cannot back two
// listings.
func (s *Service) RegisterListing(ctx context.Context, in RegisterListingInput) (ListingView, error) {
	var out ListingView
	if err := validateRange("qty", in.Qty, 1, MaxSaleQty); err != nil {
		return out, err
	}
	if err := validateRange("unit price", in.UnitPrice, 1, MaxUnitPrice); err != nil {
		return out, err
	}

	err := s.runSerializable(ctx, func(tx pgx.Tx) error {
		if err := ensureUserTx(ctx, tx, in.CountryID, in.SellerID); err != nil {
			return err
		}
		var class string
		err := tx.QueryRow(ctx, `
			SELECT class FROM items WHERE item_id = $1
		`, in.ItemID).Scan(&class)
		if err == pgx.ErrNoRows {
			return ErrItemNotFound
		}
		if err != nil {
			return err
		}
		// Crafted items only ever sell to the NPC, where the 5% tax applies.
		if class != ItemClassResource {
			return ErrNotResource
		}
		if err := debitInventoryTx(ctx, tx, in.CountryID, in.SellerID, in.ItemID, in.Qty); err != nil {
			return err
		}
		return tx.QueryRow(ctx, `
			INSERT INTO listings (country_id, seller_id, resource_id, qty, unit_price)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING listing_id, created_at, expires_at, status
		`, in.CountryID, in.SellerID, in.ItemID, in.Qty, in.UnitPrice).Scan(
			&out.ListingID, &out.CreatedAt, &out.ExpiresAt, &out.Status,
		)
	})
	if err != nil {
		return ListingView{}, err
	}
	out.CountryID = in.CountryID
	out.SellerID = in.SellerID
	out.ItemID = in.ItemID
	out.Qty = in.Qty
	out.UnitPrice = in.UnitPrice
	s.log.Info("listing registered",
		"country_id", in.CountryID,
		"listing_id", out.ListingID,
		"item_id", in.ItemID,
		"qty", in.Qty,
		"unit_price", in.UnitPrice,
	)
	return out, nil
}

// OpenListings is the market browse view for one item: cheapest first, oldest
// first on price ties, plus depth aggregated over every open listing.
func (s *Service) OpenListings(ctx context.Context, countryID int64, itemID string, limit int) (MarketBoard, error) {
	var out MarketBoard
	if _, err := s.Country(ctx, countryID); err != nil {
		return out, err
	}
	var name, class string
	err := s.db.QueryRow(ctx, `SELECT name, class FROM items WHERE item_id = $1`, itemID).Scan(&name, &class)
	if err == pgx.ErrNoRows {
		return out, ErrItemNotFound
	}
	if err != nil {
		return out, err
	}
	if class != ItemClassResource {
		return out, ErrNotResource
	}
	limit = clampLimit(limit, 10, 20)

	out.ItemID = itemID
	out.Name = name
	err = s.db.QueryRow(ctx, `
		SELECT COALESCE(MIN(unit_price), 0), COALESCE(SUM(qty), 0)
		FROM listings
		WHERE country_id = $1 AND resource_id = $2 AND status = 'open' AND expires_at > now()
	`, countryID, itemID).Scan(&out.MinPrice, &out.TotalQty)
	if err != nil {
		return out, err
	}

	rows, err := s.db.Query(ctx, `
		SELECT listing_id, country_id, seller_id, resource_id, qty, unit_price, status, created_at, expires_at
		FROM listings
		WHERE country_id = $1 AND resource_id = $2 AND status = 'open' AND expires_at > now()
		ORDER BY unit_price ASC, created_at ASC
		LIMIT $3
	`, countryID, itemID, limit)
	if err != nil {
		return out, err
	}
	defer rows.Close()

	for rows.Next() {
		var v ListingView
		if err := rows.Scan(
			&v.ListingID, &v.CountryID, &v.SellerID, &v.ItemID,
			&v.Qty, &v.UnitPrice, &v.Status, &v.CreatedAt, &v.ExpiresAt,
		); err != nil {
			return out, err
		}
		out.Listings = append(out.Listings, v)
	}
	return out, rows.Err()
}

func (s *Service) Listing(ctx context.Context, countryID, listingID int64) (ListingView, error) {
	var out ListingView
	err := s.db.QueryRow(ctx, `
		SELECT listing_id, country_id, seller_id, resource_id, qty, unit_price, status, created_at, expires_at
		FROM listings
		WHERE country_id = $1 AND listing_id = $2
	`, countryID, listingID).Scan(
		&out.ListingID, &out.CountryID, &out.SellerID, &out.ItemID,
		&out.Qty, &out.UnitPrice, &out.Status, &out.CreatedAt, &out.ExpiresAt,
	)
	if err == pgx.ErrNoRows {
		return out, ErrListingNotFound
	}
	return out, err
}

// CancelListing closes an open listing and returns the unsold escrow to the
// seller. Only the seller may cancel.
func (s *Service) CancelListing(ctx context.Context, countryID, listingID, userID int64) (ListingView, error) {
	var out ListingView
	err := s.runSerializable(ctx, func(tx pgx.Tx) error {
		var sellerID, qty int64
		var itemID, status string
		err := tx.QueryRow(ctx, `
			SELECT seller_id, resource_id, qty, unit_price, status, created_at, expires_at
			FROM listings
			WHERE country_id = $1 AND listing_id = $2
			FOR UPDATE
		`, countryID, listingID).Scan(&sellerID, &itemID, &qty, &out.UnitPrice, &status, &out.CreatedAt, &out.ExpiresAt)
		if err == pgx.ErrNoRows {
			return ErrListingNotFound
		}
		if err != nil {
			return err
		}
		if sellerID != userID {
			return ErrNotSeller
		}
		if status != ListingOpen {
			return ErrListingClosed
		}
		if _, err := tx.Exec(ctx, `
			UPDATE listings SET status = 'cancelled' WHERE listing_id = $1
		`, listingID); err != nil {
			return err
		}
		if err := creditInventoryTx(ctx, tx, countryID, sellerID, itemID, qty); err != nil {
			return err
		}
		out.ListingID = listingID
		out.CountryID = countryID
		out.SellerID = sellerID
		out.ItemID = itemID
		out.Qty = qty
		out.Status = ListingCancelled
		return nil
	})
	if err != nil {
		return ListingView{}, err
	}
	s.log.Info("listing cancelled", "country_id", countryID, "listing_id", listingID)
	return out, nil
}

// QuoteBuy prices a purchase against a listing and returns a signed quote
// token. Nothing is locked or reserved; the settle call re-checks everything.
func (s *Service) QuoteBuy(ctx context.Context, in QuoteBuyInput) (QuoteResult, error) {
	var out QuoteResult
	if err := validateRange("qty", in.Qty, 1, MaxBuyQty); err != nil {
		return out, err
	}

	listing, err := s.Listing(ctx, in.CountryID, in.ListingID)
	if err != nil {
		return out, err
	}
	now := s.now()
	if listing.Status != ListingOpen || !listing.ExpiresAt.After(now) {
		return out, ErrListingClosed
	}
	if listing.SellerID == in.BuyerID {
		return out, ErrSelfTrade
	}
	if in.Qty > listing.Qty {
		return out, ErrExceedsAvailable
	}

	country, err := s.Country(ctx, in.CountryID)
	if err != nil {
		return out, err
	}
	gross := listing.UnitPrice * in.Qty
	fee, net := SplitFee(gross, country.MarketTaxBp)

	// A buyer with no user row has an implicit zero balance.
	var balance int64
	err = s.db.QueryRow(ctx, `
		SELECT balance FROM users WHERE country_id = $1 AND user_id = $2
	`, in.CountryID, in.BuyerID).Scan(&balance)
	if err != nil && err != pgx.ErrNoRows {
		return out, err
	}
	if balance < gross {
		return out, ErrInsufficientFunds
	}

	quote, token, err := s.signer.Sign(Quote{
		CountryID: in.CountryID,
		BuyerID:   in.BuyerID,
		ListingID: in.ListingID,
		SellerID:  listing.SellerID,
		ItemID:    listing.ItemID,
		Qty:       in.Qty,
		UnitPrice: listing.UnitPrice,
		Gross:     gross,
		Fee:       fee,
		Net:       net,
	}, now)
	if err != nil {
		return out, err
	}
	return QuoteResult{Quote: quote, Token: token}, nil
}

// CancelQuote abandons a quoted purchase. Quotes hold nothing server-side, so
// cancellation verifies the token and ownership and touches no storage; the
// listing stays exactly as it was.
func (s *Service) CancelQuote(countryID, buyerID int64, token string) (Quote, error) {
	q, err := s.signer.Parse(token)
	if err != nil {
		return Quote{}, err
	}
	if q.CountryID != countryID {
		return Quote{}, ErrQuoteInvalid
	}
	if q.BuyerID != buyerID {
		return Quote{}, ErrNotQuoteBuyer
	}
	return q, nil
}

// ConfirmBuy settles a quoted purchase. The quote only fixes the terms; the
// listing, the buyer's funds and the tax rate are all re-validated under the
// serializable transaction, so a stale quote fails cleanly instead of
// breaking conservation.
func (s *Service) ConfirmBuy(ctx context.Context, countryID, buyerID int64, token string) (TradeResult, error) {
	var out TradeResult
	q, err := s.signer.Parse(token)
	if err != nil {
		return out, err
	}
	if q.CountryID != countryID {
		return out, ErrQuoteInvalid
	}
	if q.BuyerID != buyerID {
		return out, ErrNotQuoteBuyer
	}
	if !q.ExpiresAt.After(s.now()) {
		return out, ErrQuoteExpired
	}

	err = s.runSerializable(ctx, func(tx pgx.Tx) error {
		if err := ensureUserTx(ctx, tx, countryID, buyerID); err != nil {
			return err
		}

		var sellerID, qty, unitPrice int64
		var itemID, status string
		var expiresAt time.Time
		err := tx.QueryRow(ctx, `
			SELECT seller_id, resource_id, qty, unit_price, status, expires_at
			FROM listings
			WHERE country_id = $1 AND listing_id = $2
			FOR UPDATE
		`, countryID, q.ListingID).Scan(&sellerID, &itemID, &qty, &unitPrice, &status, &expiresAt)
		if err == pgx.ErrNoRows {
			return ErrListingNotFound
		}
		if err != nil {
			return err
		}
		if status != ListingOpen || !expiresAt.After(s.now()) {
			return ErrListingClosed
		}
		// Listing terms cannot drift, but a mismatched token is forged or
		// crossed with another listing.
		if sellerID != q.SellerID || itemID != q.ItemID || unitPrice != q.UnitPrice {
			return ErrQuoteInvalid
		}
		if q.Qty > qty {
			return ErrExceedsAvailable
		}

		var buyerBalance int64
		if err := tx.QueryRow(ctx, `
			SELECT balance
			FROM users
			WHERE country_id = $1 AND user_id = $2
			FOR UPDATE
		`, countryID, buyerID).Scan(&buyerBalance); err != nil {
			return err
		}
		if buyerBalance < q.Gross {
			return ErrInsufficientFunds
		}

		if _, err := tx.Exec(ctx, `
			UPDATE users SET balance = balance - $1, updated_at = now()
			WHERE country_id = $2 AND user_id = $3
		`, q.Gross, countryID, buyerID); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `
			UPDATE users SET balance = balance + $1, updated_at = now()
			WHERE country_id = $2 AND user_id = $3
		`, q.Net, countryID, sellerID); err != nil {
			return err
		}
		if err := creditTreasuryTx(ctx, tx, countryID, "market_fee", q.Fee); err != nil {
			return err
		}

		remaining := qty - q.Qty
		nextStatus := ListingOpen
		if remaining == 0 {
			nextStatus = ListingSold
		}
		if _, err := tx.Exec(ctx, `
			UPDATE listings SET qty = $1, status = $2 WHERE listing_id = $3
		`, remaining, nextStatus, q.ListingID); err != nil {
			return err
		}
		if err := creditInventoryTx(ctx, tx, countryID, buyerID, itemID, q.Qty); err != nil {
			return err
		}

		var tradeID int64
		if err := tx.QueryRow(ctx, `
			INSERT INTO trades (country_id, listing_id, buyer_id, seller_id, resource_id, qty, unit_price, fee_paid)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			RETURNING trade_id
		`, countryID, q.ListingID, buyerID, sellerID, itemID, q.Qty, q.UnitPrice, q.Fee).Scan(&tradeID); err != nil {
			return err
		}

		if err := applyTradePrintTx(ctx, tx, countryID, itemID, GameDay(s.now()), q.UnitPrice, q.Qty); err != nil {
			return err
		}

		out = TradeResult{
			TradeID:          tradeID,
			ListingID:        q.ListingID,
			ItemID:           itemID,
			Qty:              q.Qty,
			UnitPrice:        q.UnitPrice,
			Gross:            q.Gross,
			Fee:              q.Fee,
			Net:              q.Net,
			ListingRemaining: remaining,
			ListingStatus:    nextStatus,
			BuyerBalance:     buyerBalance - q.Gross,
		}
		return nil
	})
	if err != nil {
		return TradeResult{}, err
	}
	s.log.Info("trade settled",
		"country_id", countryID,
		"trade_id", out.TradeID,
		"listing_id", out.ListingID,
		"item_id", out.ItemID,
		"qty", out.Qty,
		"gross", out.Gross,
		"fee", out.Fee,
	)
	return out, nil
}

// applyTradePrintTx folds one settled trade into the day's price rollup and
// refreshes the price index off the item's base price.
func applyTradePrintTx(ctx context.Context, tx pgx.Tx, countryID int64, itemID string, day time.Time, unitPrice, qty int64) error {
	var prev *DailyPrint
	var p DailyPrint
	err := tx.QueryRow(ctx, `
		SELECT avg_price, volume, ema_price
		FROM price_indices_daily
		WHERE country_id = $1 AND item_id = $2 AND date = $3
		FOR UPDATE
	`, countryID, itemID, day).Scan(&p.AvgPrice, &p.Volume, &p.EMA)
	if err != nil && err != pgx.ErrNoRows {
		return err
	}
	if err == nil {
		prev = &p
	}

	var basePrice int64
	if err := tx.QueryRow(ctx, `
		SELECT base_price FROM items WHERE item_id = $1
	`, itemID).Scan(&basePrice); err != nil {
		return err
	}

	next := RollPrint(prev, unitPrice, qty)
	index := PriceIndexOf(next.EMA, basePrice)
	_, err = tx.Exec(ctx, `
		INSERT INTO price_indices_daily (country_id, item_id, date, avg_price, volume, ema_price, price_index)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (country_id, item_id, date) DO UPDATE
		SET avg_price = EXCLUDED.avg_price,
		    volume = EXCLUDED.volume,
		    ema_price = EXCLUDED.ema_price,
		    price_index = EXCLUDED.price_index
	`, countryID, itemID, day, next.AvgPrice, next.Volume, next.EMA, index)
	return err
}

// ExpireListings is the sweep the worker runs: every open listing past its
// expiry flips to expired and its escrowed stock goes back to the seller.
func (s *Service) ExpireListings(ctx context.Context) (int, error) {
	var swept int
	err := s.runSerializable(ctx, func(tx pgx.Tx) error {
		swept = 0
		rows, err := tx.Query(ctx, `
			SELECT listing_id, country_id, seller_id, resource_id, qty
			FROM listings
			WHERE status = 'open' AND expires_at <= now()
			ORDER BY listing_id
			FOR UPDATE
		`)
		if err != nil {
			return err
		}
		type expired struct {
			listingID int64
			countryID int64
			sellerID  int64
			itemID    string
			qty       int64
		}
		var items []expired
		for rows.Next() {
			var e expired
			if err := rows.Scan(&e.listingID, &e.countryID, &e.sellerID, &e.itemID, &e.qty); err != nil {
				rows.Close()
				return err
			}
			items = append(items, e)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}

		for _, e := range items {
			if _, err := tx.Exec(ctx, `
				UPDATE listings SET status = 'expired' WHERE listing_id = $1
			`, e.listingID); err != nil {
				return err
			}
			if err := creditInventoryTx(ctx, tx, e.countryID, e.sellerID, e.itemID, e.qty); err != nil {
				return err
			}
			swept++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if swept > 0 {
		s.log.Info("expired listings swept", "count", swept)
	}
	return swept, nil
}
