package economy

import (
	"context"

	"github.com/jackc/pgx/v5"
)

// AssignLand turns a channel into a harvestable land. The tier price is paid
// from the country treasury; the resource bias is drawn once at assignment
// and fixed for the land's lifetime.
func (s *Service) AssignLand(ctx context.Context, in AssignLandInput) (LandView, error) {
	var out LandView
	if err := validateTier(in.Tier); err != nil {
		return out, err
	}
	tier := LandTiers[in.Tier]
	bias := s.pickResourceBias(in.Tier)

	err := s.runSerializable(ctx, func(tx pgx.Tx) error {
		if err := debitTreasuryTx(ctx, tx, in.CountryID, "land_assign", tier.Price); err != nil {
			return err
		}
		cmd, err := tx.Exec(ctx, `
			INSERT INTO lands (country_id, channel_id, tier, resource_bias, yield_min, yield_max, upkeep_weekly)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (country_id, channel_id) DO NOTHING
		`, in.CountryID, in.ChannelID, in.Tier, bias, tier.YieldMin, tier.YieldMax, tier.UpkeepWeekly)
		if err != nil {
			return err
		}
		if cmd.RowsAffected() == 0 {
			return ErrLandTaken
		}
		var treasury int64
		if err := tx.QueryRow(ctx, `
			SELECT treasury FROM countries WHERE country_id = $1
		`, in.CountryID).Scan(&treasury); err != nil {
			return err
		}
		out = LandView{
			CountryID:    in.CountryID,
			ChannelID:    in.ChannelID,
			Tier:         in.Tier,
			ResourceBias: bias,
			YieldMin:     tier.YieldMin,
			YieldMax:     tier.YieldMax,
			UpkeepWeekly: tier.UpkeepWeekly,
			Price:        tier.Price,
			Treasury:     treasury,
		}
		return nil
	})
	if err != nil {
		return LandView{}, err
	}
	s.log.Info("land assigned",
		"country_id", in.CountryID,
		"channel_id", in.ChannelID,
		"tier", in.Tier,
		"bias", bias,
	)
	return out, nil
}

func (s *Service) Land(ctx context.Context, countryID, channelID int64) (LandView, error) {
	var out LandView
	err := s.db.QueryRow(ctx, `
		SELECT country_id, channel_id, tier, resource_bias, yield_min, yield_max, upkeep_weekly
		FROM lands
		WHERE country_id = $1 AND channel_id = $2
	`, countryID, channelID).Scan(
		&out.CountryID, &out.ChannelID, &out.Tier, &out.ResourceBias,
		&out.YieldMin, &out.YieldMax, &out.UpkeepWeekly,
	)
	if err == pgx.ErrNoRows {
		return out, ErrLandNotFound
	}
	if err != nil {
		return out, err
	}
	out.Price = LandTiers[out.Tier].Price
	return out, nil
}

func (s *Service) Lands(ctx context.Context, countryID int64) ([]LandView, error) {
	if _, err := s.Country(ctx, countryID); err != nil {
		return nil, err
	}
	rows, err := s.db.Query(ctx, `
		SELECT country_id, channel_id, tier, resource_bias, yield_min, yield_max, upkeep_weekly
		FROM lands
		WHERE country_id = $1
		ORDER BY channel_id
	`, countryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []LandView
	for rows.Next() {
		var v LandView
		if err := rows.Scan(
			&v.CountryID, &v.ChannelID, &v.Tier, &v.ResourceBias,
			&v.YieldMin, &v.YieldMax, &v.UpkeepWeekly,
		); err != nil {
			return nil, err
		}
		v.Price = LandTiers[v.Tier].Price
		out = append(out, v)
	}
	return out, rows.Err()
}

// pickResourceBias draws the land's favored resource. Base resources carry
// weight 4, rarer ones weight 2 plus the tier, so higher tiers lean toward
// herb and water.
func (s *Service) pickResourceBias(tier int) string {
	type weighted struct {
		itemID string
		weight int64
	}
	pool := []weighted{
		{"iron", 4},
		{"wood", 4},
		{"stone", 4},
		{"herb", 2 + int64(tier)},
		{"water", 2 + int64(tier)},
	}
	var total int64
	for _, w := range pool {
		total += w.weight
	}
	roll := s.randBetween(1, total)
	var acc int64
	for _, w := range pool {
		acc += w.weight
		if roll <= acc {
			return w.itemID
		}
	}
	return pool[0].itemID
}
