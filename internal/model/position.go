package model

import (
	"encoding/json"
	"math/big"
)

// LiveLegRow is one joined row for the live-positions query: option token,
// market assets, and a single leg with live liquidity.
type LiveLegRow struct {
	TokenID       *big.Int
	Market        string
	CallAsset     string
	PutAsset      string
	IsCall        bool
	Expiry        int64
	CreatedAt     int64
	PremiumAmount *big.Int
	ProtocolFees  *big.Int
	Pool          string
	TickLower     int32
	TickUpper     int32
	LiquidityAtLive *big.Int
	Index         int32
}

// LiveLeg is one leg of a live position after grouping.
type LiveLeg struct {
	TickLower int32
	TickUpper int32
	Liquidity *big.Int
}

// LivePosition is the grouped, pre-valuation view of one live option token.
type LivePosition struct {
	TokenID   *big.Int
	Market    string
	CallAsset string
	PutAsset  string
	IsCall    bool
	Expiry    int64
	CreatedAt int64
	Paid      *big.Int
	Pool      string
	Legs      []LiveLeg
}

// Key identifies a position across the valuation merge.
func (p LivePosition) Key() string {
	return BigIntString(p.TokenID) + "-" + p.Market
}

// PositionView is the response-only aggregate for one live position, with
// every bigint field rendered as a decimal string.
type PositionView struct {
	OptionMarket    string          `json:"optionMarket"`
	CallAsset       string          `json:"callAsset"`
	PutAsset        string          `json:"putAsset"`
	IsCall          bool            `json:"isCall"`
	Value           string          `json:"value"`
	Expiry          int64           `json:"expiry"`
	CreatedAt       int64           `json:"createdAt"`
	Paid            string          `json:"paid"`
	Amount          string          `json:"amount"`
	LiquidityValues []string        `json:"liquidityValues"`
	ExerciseParams  json.RawMessage `json:"exerciseParams"`
}
