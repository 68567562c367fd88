package economy

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// Claim runs the once-per-day harvest on a land. The game day rolls over at
// Seoul midnight; a second claim on the same day is rejected, and a claim on
// the day right after the previous one extends the streak.
func (s *Service) Claim(ctx context.Context, in ClaimInput) (ClaimResult, error) {
	var out ClaimResult

	err := s.runSerializable(ctx, func(tx pgx.Tx) error {
		if err := ensureUserTx(ctx, tx, in.CountryID, in.UserID); err != nil {
			return err
		}

		var bias string
		var yieldMin, yieldMax int64
		err := tx.QueryRow(ctx, `
			SELECT resource_bias, yield_min, yield_max
			FROM lands
			WHERE country_id = $1 AND channel_id = $2
		`, in.CountryID, in.ChannelID).Scan(&bias, &yieldMin, &yieldMax)
		if err == pgx.ErrNoRows {
			return ErrLandNotFound
		}
		if err != nil {
			return err
		}

		var lastClaim *time.Time
		var streak int32
		if err := tx.QueryRow(ctx, `
			SELECT last_claim_date, streak
			FROM users
			WHERE country_id = $1 AND user_id = $2
			FOR UPDATE
		`, in.CountryID, in.UserID).Scan(&lastClaim, &streak); err != nil {
			return err
		}

		day := GameDay(s.now())
		// A recorded claim on or after today blocks the claim; a stored
		// future date (clock skew) must not re-open it.
		if lastClaim != nil && !lastClaim.Before(day) {
			return ErrDuplicateClaim
		}
		if lastClaim != nil && lastClaim.Equal(day.AddDate(0, 0, -1)) {
			streak++
		} else {
			streak = 1
		}

		total := s.randBetween(yieldMin, yieldMax)
		table := NormalizeDrop(BaseDrop, bias)
		tally := make(map[string]int64, len(table))
		for i := int64(0); i < total; i++ {
			if itemID := DrawDrop(table, s.rollD100()); itemID != "" {
				tally[itemID]++
			}
		}

		if _, err := tx.Exec(ctx, `
			UPDATE users
			SET last_claim_date = $1, streak = $2, updated_at = now()
			WHERE country_id = $3 AND user_id = $4
		`, day, streak, in.CountryID, in.UserID); err != nil {
			return err
		}

		// Drops come back in table order so the payload is stable.
		drops := make([]DropLine, 0, len(tally))
		for _, e := range table {
			qty, ok := tally[e.ItemID]
			if !ok {
				continue
			}
			if err := creditInventoryTx(ctx, tx, in.CountryID, in.UserID, e.ItemID, qty); err != nil {
				return err
			}
			drops = append(drops, DropLine{ItemID: e.ItemID, Qty: qty})
		}

		out = ClaimResult{
			CountryID: in.CountryID,
			UserID:    in.UserID,
			ChannelID: in.ChannelID,
			Day:       day.Format("2006-01-02"),
			Streak:    streak,
			Total:     total,
			Drops:     drops,
		}
		return nil
	})
	if err != nil {
		return ClaimResult{}, err
	}
	s.log.Info("harvest claimed",
		"country_id", in.CountryID,
		"user_id", in.UserID,
		"channel_id", in.ChannelID,
		"total", out.Total,
		"streak", out.Streak,
	)
	return out, nil
}

// creditInventoryTx adds qty of an item to a user's stack, creating the row
// on first contact.
func creditInventoryTx(ctx context.Context, tx pgx.Tx, countryID, userID int64, itemID string, qty int64) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO inventory (country_id, user_id, item_id, qty)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (country_id, user_id, item_id) DO UPDATE
		SET qty = inventory.qty + EXCLUDED.qty, updated_at = now()
	`, countryID, userID, itemID, qty)
	return err
}

// debitInventoryTx locks the stack and removes qty, failing if the user does
// not hold enough. The failing item is named in the error.
func debitInventoryTx(ctx context.Context, tx pgx.Tx, countryID, userID int64, itemID string, qty int64) error {
	var held int64
	err := tx.QueryRow(ctx, `
		SELECT qty
		FROM inventory
		WHERE country_id = $1 AND user_id = $2 AND item_id = $3
		FOR UPDATE
	`, countryID, userID, itemID).Scan(&held)
	if err == pgx.ErrNoRows {
		return fmt.Errorf("%w (%s)", ErrInsufficientStock, itemID)
	}
	if err != nil {
		return err
	}
	if held < qty {
		return fmt.Errorf("%w (%s: have %d, need %d)", ErrInsufficientStock, itemID, held, qty)
	}
	_, err = tx.Exec(ctx, `
		UPDATE inventory
		SET qty = qty - $1, updated_at = now()
		WHERE country_id = $2 AND user_id = $3 AND item_id = $4
	`, qty, countryID, userID, itemID)
	return err
}
