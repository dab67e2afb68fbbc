package model

// OptionMarket is an indexed option market contract.
type OptionMarket struct {
	Address       string `json:"address"`
	ChainID       uint64 `json:"chainId"`
	Name          string `json:"name"`
	Symbol        string `json:"symbol"`
	PrimePool     string `json:"primePool"`
	OptionPricing string `json:"optionPricing"`
	DpFee         string `json:"dpFee"`
	CallAsset     string `json:"callAsset"`
	PutAsset      string `json:"putAsset"`
}

// PoolConfig maps a pool address to its token pair.
type PoolConfig struct {
	Pool    string
	Token0  string
	Token1  string
	ChainID uint64
}

// IVUpdate is one implied-volatility update event for a pricing contract.
type IVUpdate struct {
	Timestamp int64  `json:"timestamp"`
	TTLIV     string `json:"ttlIV"`
}
