package liquidity

import (
	"fmt"
	"math/big"
	"strings"

	"go.uber.org/zap"

	"optionscope/internal/model"
)

// AggregateByRange groups liquidity positions for one pool by their
// (tickLower, tickUpper) pair and sums the amounts with arbitrary
// precision. Rows with a missing tick or amount are skipped and logged,
// never fatal. Output order follows the first appearance of each range in
// the input, so identical input order yields identical output.
func AggregateByRange(pool string, positions []model.LiquidityPosition, logger *zap.Logger) []model.AggregatedRange {
	if logger == nil {
		logger = zap.NewNop()
	}

	sums := make(map[string]*model.AggregatedRange)
	order := make([]string, 0, len(positions))
	skipped := 0

	for _, position := range positions {
		if !strings.EqualFold(position.Pool, pool) {
			continue
		}
		if position.TickLower == nil || position.TickUpper == nil || position.TotalLiquidity == nil {
			skipped++
			logger.Warn("skip liquidity row with missing fields",
				zap.String("pool", pool),
				zap.Bool("tick_lower_missing", position.TickLower == nil),
				zap.Bool("tick_upper_missing", position.TickUpper == nil),
				zap.Bool("amount_missing", position.TotalLiquidity == nil),
			)
			continue
		}

		key := rangeKey(*position.TickLower, *position.TickUpper)
		entry := sums[key]
		if entry == nil {
			entry = &model.AggregatedRange{
				TickLower: *position.TickLower,
				TickUpper: *position.TickUpper,
				Total:     big.NewInt(0),
			}
			sums[key] = entry
			order = append(order, key)
		}
		entry.Total.Add(entry.Total, position.TotalLiquidity)
	}

	if skipped > 0 {
		logger.Info("liquidity rows skipped", zap.String("pool", pool), zap.Int("skipped", skipped))
	}

	out := make([]model.AggregatedRange, 0, len(order))
	for _, key := range order {
		out = append(out, *sums[key])
	}
	return out
}

func rangeKey(lower, upper int32) string {
	return fmt.Sprintf("%d_%d", lower, upper)
}
