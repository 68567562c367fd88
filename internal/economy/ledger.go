package economy

import (
	"context"

	"github.com/jackc/pgx/v5"
)

// appendTreasuryEntryTx records one treasury movement. Entries are append
// only; the treasury column on countries is the running total and every
// change to it lands here in the same transaction.
func appendTreasuryEntryTx(ctx context.Context, tx pgx.Tx, countryID int64, direction, reason string, amount int64) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO treasury_ledger (country_id, direction, reason, amount)
		VALUES ($1, $2, $3, $4)
	`, countryID, direction, reason, amount)
	return err
}

// debitTreasuryTx locks the country row, checks funds and applies the debit
// plus its ledger entry.
func debitTreasuryTx(ctx context.Context, tx pgx.Tx, countryID int64, reason string, amount int64) error {
	var treasury int64
	err := tx.QueryRow(ctx, `
		SELECT treasury
		FROM countries
		WHERE country_id = $1
		FOR UPDATE
	`, countryID).Scan(&treasury)
	if err == pgx.ErrNoRows {
		return ErrCountryNotFound
	}
	if err != nil {
		return err
	}
	if treasury < amount {
		return ErrInsufficientTreasury
	}
	if _, err := tx.Exec(ctx, `
		UPDATE countries
		SET treasury = treasury - $1, updated_at = now()
		WHERE country_id = $2
	`, amount, countryID); err != nil {
		return err
	}
	return appendTreasuryEntryTx(ctx, tx, countryID, "out", reason, amount)
}

// creditTreasuryTx applies a credit plus its ledger entry. A zero amount
// still writes the entry so the activity shows up in the history.
func creditTreasuryTx(ctx context.Context, tx pgx.Tx, countryID int64, reason string, amount int64) error {
	if amount > 0 {
		cmd, err := tx.Exec(ctx, `
			UPDATE countries
			SET treasury = treasury + $1, updated_at = now()
			WHERE country_id = $2
		`, amount, countryID)
		if err != nil {
			return err
		}
		if cmd.RowsAffected() == 0 {
			return ErrCountryNotFound
		}
	}
	return appendTreasuryEntryTx(ctx, tx, countryID, "in", reason, amount)
}
