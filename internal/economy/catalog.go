package economy

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
)

func (s *Service) Items(ctx context.Context) ([]ItemView, error) {
	rows, err := s.db.Query(ctx, `
		SELECT item_id, name, class, base_price
		FROM items
		ORDER BY class, base_price, item_id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ItemView
	for rows.Next() {
		var v ItemView
		if err := rows.Scan(&v.ItemID, &v.Name, &v.Class, &v.BasePrice); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (s *Service) Item(ctx context.Context, itemID string) (ItemView, error) {
	var out ItemView
	err := s.db.QueryRow(ctx, `
		SELECT item_id, name, class, base_price
		FROM items
		WHERE item_id = $1
	`, itemID).Scan(&out.ItemID, &out.Name, &out.Class, &out.BasePrice)
	if err == pgx.ErrNoRows {
		return out, ErrItemNotFound
	}
	return out, err
}

func (s *Service) Recipes(ctx context.Context) ([]RecipeView, error) {
	rows, err := s.db.Query(ctx, `
		SELECT r.product_id, i.name, r.inputs_json, r.yield_qty, r.active_flag
		FROM recipes r
		JOIN items i ON i.item_id = r.product_id
		ORDER BY r.product_id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RecipeView
	for rows.Next() {
		v, err := scanRecipe(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (s *Service) Recipe(ctx context.Context, productID string) (RecipeView, error) {
	row := s.db.QueryRow(ctx, `
		SELECT r.product_id, i.name, r.inputs_json, r.yield_qty, r.active_flag
		FROM recipes r
		JOIN items i ON i.item_id = r.product_id
		WHERE r.product_id = $1
	`, productID)
	v, err := scanRecipe(row)
	if err == pgx.ErrNoRows {
		return RecipeView{}, ErrRecipeNotFound
	}
	return v, err
}

func scanRecipe(row pgx.Row) (RecipeView, error) {
	var v RecipeView
	var inputsJSON []byte
	if err := row.Scan(&v.ProductID, &v.Name, &inputsJSON, &v.YieldQty, &v.Active); err != nil {
		return v, err
	}
	inputs := map[string]int64{}
	if err := json.Unmarshal(inputsJSON, &inputs); err != nil {
		return v, fmt.Errorf("recipe %s: bad inputs: %w", v.ProductID, err)
	}
	itemIDs := make([]string, 0, len(inputs))
	for itemID := range inputs {
		itemIDs = append(itemIDs, itemID)
	}
	sort.Strings(itemIDs)
	for _, itemID := range itemIDs {
		v.Inputs = append(v.Inputs, DropLine{ItemID: itemID, Qty: inputs[itemID]})
	}
	return v, nil
}

func (s *Service) Inventory(ctx context.Context, countryID, userID int64) ([]InventoryLine, error) {
	if _, err := s.Country(ctx, countryID); err != nil {
		return nil, err
	}
	rows, err := s.db.Query(ctx, `
		SELECT inv.item_id, i.name, i.class, inv.qty
		FROM inventory inv
		JOIN items i ON i.item_id = inv.item_id
		WHERE inv.country_id = $1 AND inv.user_id = $2 AND inv.qty > 0
		ORDER BY i.class, inv.item_id
	`, countryID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []InventoryLine
	for rows.Next() {
		var l InventoryLine
		if err := rows.Scan(&l.ItemID, &l.Name, &l.Class, &l.Qty); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// Price reports the latest daily rollup for an item in a country. An item
// with no trade history reports its base price with HasData false.
func (s *Service) Price(ctx context.Context, countryID int64, itemID string) (PriceView, error) {
	var out PriceView
	if _, err := s.Country(ctx, countryID); err != nil {
		return out, err
	}
	item, err := s.Item(ctx, itemID)
	if err != nil {
		return out, err
	}
	out = PriceView{ItemID: item.ItemID, Name: item.Name, BasePrice: item.BasePrice}

	var date time.Time
	err = s.db.QueryRow(ctx, `
		SELECT date, avg_price, volume, ema_price, price_index
		FROM price_indices_daily
		WHERE country_id = $1 AND item_id = $2
		ORDER BY date DESC
		LIMIT 1
	`, countryID, itemID).Scan(&date, &out.AvgPrice, &out.Volume, &out.EMAPrice, &out.PriceIndex)
	if err == pgx.ErrNoRows {
		return out, nil
	}
	if err != nil {
		return PriceView{}, err
	}
	out.HasData = true
	out.Date = date.Format("2006-01-02")
	return out, nil
}

// Prices reports the latest rollup for every cataloged item in a country.
func (s *Service) Prices(ctx context.Context, countryID int64) ([]PriceView, error) {
	if _, err := s.Country(ctx, countryID); err != nil {
		return nil, err
	}
	rows, err := s.db.Query(ctx, `
		SELECT i.item_id, i.name, i.base_price,
		       p.date, p.avg_price, p.volume, p.ema_price, p.price_index
		FROM items i
		LEFT JOIN LATERAL (
			SELECT date, avg_price, volume, ema_price, price_index
			FROM price_indices_daily
			WHERE country_id = $1 AND item_id = i.item_id
			ORDER BY date DESC
			LIMIT 1
		) p ON TRUE
		ORDER BY i.class, i.base_price, i.item_id
	`, countryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PriceView
	for rows.Next() {
		var v PriceView
		var date *time.Time
		var avgPrice, volume *int64
		var ema, index *float64
		if err := rows.Scan(&v.ItemID, &v.Name, &v.BasePrice, &date, &avgPrice, &volume, &ema, &index); err != nil {
			return nil, err
		}
		if date != nil {
			v.HasData = true
			v.Date = date.Format("2006-01-02")
			v.AvgPrice = *avgPrice
			v.Volume = *volume
			v.EMAPrice = *ema
			v.PriceIndex = *index
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
