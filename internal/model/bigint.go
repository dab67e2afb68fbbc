package model

import (
	"fmt"
	"math/big"
)

// ParseBigInt converts a decimal string from storage into a big.Int.
// Empty input yields zero; malformed input is an error so the caller
// can log it and fall back to zero.
func ParseBigInt(value string) (*big.Int, error) {
	if value == "" {
		return big.NewInt(0), nil
	}
	parsed, ok := new(big.Int).SetString(value, 10)
	if !ok {
		return nil, fmt.Errorf("invalid int: %s", value)
	}
	return parsed, nil
}

// BigIntString renders a big.Int as a decimal string, treating nil as zero.
func BigIntString(value *big.Int) string {
	if value == nil {
		return "0"
	}
	return value.String()
}
