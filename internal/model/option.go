package model

import "math/big"

// OptionLeg is one tick-range liquidity commitment backing an option token.
type OptionLeg struct {
	Handler            string
	Pool               string
	Hook               string
	TickLower          int32
	TickUpper          int32
	Strike             *big.Int
	Index              int32
	LiquidityAtOpen    *big.Int
	LiquidityExercised *big.Int
	LiquiditySettled   *big.Int
	LiquidityAtLive    *big.Int
}

// RemainingOpen reports whether any opening liquidity has not been exercised.
func (l OptionLeg) RemainingOpen() bool {
	open := zeroIfNil(l.LiquidityAtOpen)
	exercised := zeroIfNil(l.LiquidityExercised)
	return open.Cmp(exercised) != 0
}

// RemainingUnresolved reports whether any opening liquidity has been neither
// exercised nor settled.
func (l OptionLeg) RemainingUnresolved() bool {
	open := zeroIfNil(l.LiquidityAtOpen)
	closed := new(big.Int).Add(zeroIfNil(l.LiquidityExercised), zeroIfNil(l.LiquiditySettled))
	return open.Cmp(closed) != 0
}

func zeroIfNil(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return v
}

// OptionLegRow is one joined row from storage: option token attributes,
// a single internal leg, and the owner's delegate flag where the query
// includes the trader account.
type OptionLegRow struct {
	TokenID          *big.Int
	Market           string
	Owner            string
	CreatedAt        int64
	Expiry           int64
	IsCall           bool
	LegCount         int32
	ChainID          uint64
	ExerciseDelegate bool
	Leg              OptionLeg
}

// GroupedOption is the derived per-token view of an option and its
// still-relevant legs.
type GroupedOption struct {
	TokenID          *big.Int
	Market           string
	Owner            string
	CreatedAt        int64
	Expiry           int64
	IsCall           bool
	LegCount         int32
	ChainID          uint64
	ExerciseDelegate bool
	Legs             []OptionLeg
}
