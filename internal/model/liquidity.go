package model

import "math/big"

// LiquidityPosition is one user liquidity contribution on a tick range.
// Tick and amount fields are pointers because indexed rows may carry nulls;
// the aggregator skips such rows instead of failing.
type LiquidityPosition struct {
	Pool           string
	TickLower      *int32
	TickUpper      *int32
	TotalLiquidity *big.Int
}

// AggregatedRange is the summed liquidity for one tick range.
type AggregatedRange struct {
	TickLower int32
	TickUpper int32
	Total     *big.Int
}
