package economy

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5"
)

// Craft converts recipe inputs into the product, batches at a time. All
// inputs are checked and debited before the product is credited; a missing
// input fails the whole batch and nothing is consumed.
func (s *Service) Craft(ctx context.Context, in CraftInput) (CraftResult, error) {
	var out CraftResult
	if err := validateRange("batches", in.Batches, 1, MaxCraftBatch); err != nil {
		return out, err
	}

	err := s.runSerializable(ctx, func(tx pgx.Tx) error {
		if err := ensureUserTx(ctx, tx, in.CountryID, in.UserID); err != nil {
			return err
		}

		var inputsJSON []byte
		var yieldQty int64
		var active bool
		err := tx.QueryRow(ctx, `
			SELECT inputs_json, yield_qty, active_flag
			FROM recipes
			WHERE product_id = $1
		`, in.ProductID).Scan(&inputsJSON, &yieldQty, &active)
		if err == pgx.ErrNoRows {
			return ErrRecipeNotFound
		}
		if err != nil {
			return err
		}
		if !active {
			return ErrRecipeInactive
		}

		inputs := map[string]int64{}
		if err := json.Unmarshal(inputsJSON, &inputs); err != nil {
			return fmt.Errorf("recipe %s: bad inputs: %w", in.ProductID, err)
		}

		// Inputs are debited in item-id order so concurrent crafts lock
		// inventory rows consistently.
		itemIDs := make([]string, 0, len(inputs))
		for itemID := range inputs {
			itemIDs = append(itemIDs, itemID)
		}
		sort.Strings(itemIDs)

		consumed := make([]DropLine, 0, len(itemIDs))
		for _, itemID := range itemIDs {
			need := inputs[itemID] * in.Batches
			if err := debitInventoryTx(ctx, tx, in.CountryID, in.UserID, itemID, need); err != nil {
				return err
			}
			consumed = append(consumed, DropLine{ItemID: itemID, Qty: need})
		}

		crafted := yieldQty * in.Batches
		if err := creditInventoryTx(ctx, tx, in.CountryID, in.UserID, in.ProductID, crafted); err != nil {
			return err
		}

		out = CraftResult{
			ProductID: in.ProductID,
			Batches:   in.Batches,
			Crafted:   crafted,
			Consumed:  consumed,
		}
		return nil
	})
	if err != nil {
		return CraftResult{}, err
	}
	s.log.Info("craft completed",
		"country_id", in.CountryID,
		"user_id", in.UserID,
		"product_id", in.ProductID,
		"crafted", out.Crafted,
	)
	return out, nil
}
