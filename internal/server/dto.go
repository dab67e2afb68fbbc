package server

import (
	"strconv"

	"optionscope/internal/model"
)

// internalOptionDTO serializes one option leg with every bigint-typed field
// as a decimal string.
type internalOptionDTO struct {
	Handler            string `json:"handler"`
	Pool               string `json:"pool"`
	Hook               string `json:"hook"`
	LiquidityAtOpen    string `json:"liquidityAtOpen"`
	LiquidityExercised string `json:"liquidityExercised"`
	LiquiditySettled   string `json:"liquiditySettled"`
	LiquidityAtLive    string `json:"liquidityAtLive"`
	Strike             string `json:"strike"`
	Index              string `json:"index"`
	TickLower          string `json:"tickLower"`
	TickUpper          string `json:"tickUpper"`
}

type groupedOptionDTO struct {
	TokenID          string              `json:"tokenId"`
	Market           string              `json:"market"`
	Owner            string              `json:"owner"`
	CreatedAt        int64               `json:"createdAt"`
	Expiry           int64               `json:"expiry"`
	IsCall           bool                `json:"isCall"`
	LegCount         int32               `json:"legCount"`
	ChainID          uint64              `json:"chainId"`
	ExerciseDelegate bool                `json:"exerciseDelegate"`
	InternalOptions  []internalOptionDTO `json:"internalOptions"`
}

func groupedOptionDTOs(grouped []model.GroupedOption) []groupedOptionDTO {
	out := make([]groupedOptionDTO, 0, len(grouped))
	for _, option := range grouped {
		legs := make([]internalOptionDTO, 0, len(option.Legs))
		for _, leg := range option.Legs {
			legs = append(legs, internalOptionDTO{
				Handler:            leg.Handler,
				Pool:               leg.Pool,
				Hook:               leg.Hook,
				LiquidityAtOpen:    model.BigIntString(leg.LiquidityAtOpen),
				LiquidityExercised: model.BigIntString(leg.LiquidityExercised),
				LiquiditySettled:   model.BigIntString(leg.LiquiditySettled),
				LiquidityAtLive:    model.BigIntString(leg.LiquidityAtLive),
				Strike:             model.BigIntString(leg.Strike),
				Index:              strconv.FormatInt(int64(leg.Index), 10),
				TickLower:          strconv.FormatInt(int64(leg.TickLower), 10),
				TickUpper:          strconv.FormatInt(int64(leg.TickUpper), 10),
			})
		}
		out = append(out, groupedOptionDTO{
			TokenID:          model.BigIntString(option.TokenID),
			Market:           option.Market,
			Owner:            option.Owner,
			CreatedAt:        option.CreatedAt,
			Expiry:           option.Expiry,
			IsCall:           option.IsCall,
			LegCount:         option.LegCount,
			ChainID:          option.ChainID,
			ExerciseDelegate: option.ExerciseDelegate,
			InternalOptions:  legs,
		})
	}
	return out
}
