package options

import "optionscope/internal/model"

// GroupExpiring groups joined option/leg rows by (tokenId, market), keeping
// only legs with unexercised liquidity. Tokens whose every leg has been
// fully exercised are dropped entirely.
func GroupExpiring(rows []model.OptionLegRow) []model.GroupedOption {
	return group(rows, func(leg model.OptionLeg) bool {
		return leg.RemainingOpen()
	})
}

// GroupExpired groups joined option/leg rows by (tokenId, market), keeping
// only legs whose opening liquidity has not been fully consumed by exercise
// plus settlement. Fully closed tokens are dropped entirely.
func GroupExpired(rows []model.OptionLegRow) []model.GroupedOption {
	return group(rows, func(leg model.OptionLeg) bool {
		return leg.RemainingUnresolved()
	})
}

func group(rows []model.OptionLegRow, keep func(model.OptionLeg) bool) []model.GroupedOption {
	grouped := make(map[string]*model.GroupedOption)
	order := make([]string, 0, len(rows))

	for _, row := range rows {
		if !keep(row.Leg) {
			continue
		}

		key := model.BigIntString(row.TokenID) + "-" + row.Market
		entry := grouped[key]
		if entry == nil {
			entry = &model.GroupedOption{
				TokenID:          row.TokenID,
				Market:           row.Market,
				Owner:            row.Owner,
				CreatedAt:        row.CreatedAt,
				Expiry:           row.Expiry,
				IsCall:           row.IsCall,
				LegCount:         row.LegCount,
				ChainID:          row.ChainID,
				ExerciseDelegate: row.ExerciseDelegate,
			}
			grouped[key] = entry
			order = append(order, key)
		}
		entry.Legs = append(entry.Legs, row.Leg)
	}

	out := make([]model.GroupedOption, 0, len(order))
	for _, key := range order {
		out = append(out, *grouped[key])
	}
	return out
}

// GroupLive groups live-position rows by (tokenId, market). Rows reach this
// function already filtered to legs with live liquidity; paid is
// premiumAmount + protocolFees taken from the first row of each token.
func GroupLive(rows []model.LiveLegRow) []model.LivePosition {
	grouped := make(map[string]*model.LivePosition)
	order := make([]string, 0, len(rows))

	for _, row := range rows {
		key := model.BigIntString(row.TokenID) + "-" + row.Market
		entry := grouped[key]
		if entry == nil {
			paid := sumOrZero(row.PremiumAmount, row.ProtocolFees)
			entry = &model.LivePosition{
				TokenID:   row.TokenID,
				Market:    row.Market,
				CallAsset: row.CallAsset,
				PutAsset:  row.PutAsset,
				IsCall:    row.IsCall,
				Expiry:    row.Expiry,
				CreatedAt: row.CreatedAt,
				Paid:      paid,
				Pool:      row.Pool,
			}
			grouped[key] = entry
			order = append(order, key)
		}

		liquidity := row.LiquidityAtLive
		if liquidity == nil {
			liquidity = bigZero()
		}
		entry.Legs = append(entry.Legs, model.LiveLeg{
			TickLower: row.TickLower,
			TickUpper: row.TickUpper,
			Liquidity: liquidity,
		})
	}

	out := make([]model.LivePosition, 0, len(order))
	for _, key := range order {
		out = append(out, *grouped[key])
	}
	return out
}
