package economy

import (
	"context"

	"github.com/jackc/pgx/v5"
)

// SellToNPC sells inventory to the fixed-rate NPC buyer. Resources go for
// 65% of base price with the proceeds minted outright; crafted items go for
// 95% of base price with a 5% cut of the gross paid into the treasury.
func (s *Service) SellToNPC(ctx context.Context, in NPCSaleInput) (NPCSaleResult, error) {
	var out NPCSaleResult
	if err := validateRange("qty", in.Qty, 1, MaxSaleQty); err != nil {
		return out, err
	}

	err := s.runSerializable(ctx, func(tx pgx.Tx) error {
		if err := ensureUserTx(ctx, tx, in.CountryID, in.UserID); err != nil {
			return err
		}

		var class string
		var basePrice int64
		err := tx.QueryRow(ctx, `
			SELECT class, base_price
			FROM items
			WHERE item_id = $1
		`, in.ItemID).Scan(&class, &basePrice)
		if err == pgx.ErrNoRows {
			return ErrItemNotFound
		}
		if err != nil {
			return err
		}

		if err := debitInventoryTx(ctx, tx, in.CountryID, in.UserID, in.ItemID, in.Qty); err != nil {
			return err
		}

		var unitPrice, gross, tax int64
		switch class {
		case ItemClassResource:
			unitPrice = NPCResourcePrice(basePrice)
			gross = unitPrice * in.Qty
			// Resource proceeds are minted, not moved. The zero-amount
			// entry keeps the injection visible in the treasury history.
			if err := appendTreasuryEntryTx(ctx, tx, in.CountryID, "in", "npc_resource_buy", 0); err != nil {
				return err
			}
		default:
			unitPrice = NPCItemPrice(basePrice)
			gross = unitPrice * in.Qty
			tax = NPCItemTax(gross)
			if err := creditTreasuryTx(ctx, tx, in.CountryID, "npc_item_tax", tax); err != nil {
				return err
			}
		}
		net := gross - tax

		var balance int64
		if err := tx.QueryRow(ctx, `
			UPDATE users
			SET balance = balance + $1, updated_at = now()
			WHERE country_id = $2 AND user_id = $3
			RETURNING balance
		`, net, in.CountryID, in.UserID).Scan(&balance); err != nil {
			return err
		}

		out = NPCSaleResult{
			ItemID:    in.ItemID,
			Qty:       in.Qty,
			UnitPrice: unitPrice,
			Gross:     gross,
			Tax:       tax,
			Net:       net,
			Balance:   balance,
		}
		return nil
	})
	if err != nil {
		return NPCSaleResult{}, err
	}
	s.log.Info("npc sale",
		"country_id", in.CountryID,
		"user_id", in.UserID,
		"item_id", in.ItemID,
		"qty", in.Qty,
		"net", out.Net,
	)
	return out, nil
}
