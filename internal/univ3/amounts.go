package univ3

import "math/big"

// q96 is 2^96, one in Q64.96.
var q96 = new(big.Int).Lsh(big.NewInt(1), 96)

// Amount0Delta returns the token0 amount covered by liquidity between two
// sqrt-price bounds. Bounds may be passed in either order; roundUp selects
// ceiling division, matching the AMM's own rounding.
func Amount0Delta(sqrtRatioA, sqrtRatioB, liquidity *big.Int, roundUp bool) *big.Int {
	if sqrtRatioA.Cmp(sqrtRatioB) > 0 {
		sqrtRatioA, sqrtRatioB = sqrtRatioB, sqrtRatioA
	}
	if sqrtRatioA.Sign() <= 0 {
		return big.NewInt(0)
	}

	numerator1 := new(big.Int).Lsh(liquidity, 96)
	numerator2 := new(big.Int).Sub(sqrtRatioB, sqrtRatioA)

	if roundUp {
		return divRoundingUp(mulDivRoundingUp(numerator1, numerator2, sqrtRatioB), sqrtRatioA)
	}
	out := mulDiv(numerator1, numerator2, sqrtRatioB)
	return out.Div(out, sqrtRatioA)
}

// Amount1Delta returns the token1 amount covered by liquidity between two
// sqrt-price bounds. Bounds may be passed in either order.
func Amount1Delta(sqrtRatioA, sqrtRatioB, liquidity *big.Int, roundUp bool) *big.Int {
	if sqrtRatioA.Cmp(sqrtRatioB) > 0 {
		sqrtRatioA, sqrtRatioB = sqrtRatioB, sqrtRatioA
	}

	diff := new(big.Int).Sub(sqrtRatioB, sqrtRatioA)
	if roundUp {
		return mulDivRoundingUp(liquidity, diff, q96)
	}
	return mulDiv(liquidity, diff, q96)
}

func mulDiv(a, b, denom *big.Int) *big.Int {
	out := new(big.Int).Mul(a, b)
	return out.Div(out, denom)
}

func mulDivRoundingUp(a, b, denom *big.Int) *big.Int {
	product := new(big.Int).Mul(a, b)
	out, rem := new(big.Int).DivMod(product, denom, new(big.Int))
	if rem.Sign() > 0 {
		out.Add(out, big.NewInt(1))
	}
	return out
}

func divRoundingUp(a, b *big.Int) *big.Int {
	out, rem := new(big.Int).DivMod(a, b, new(big.Int))
	if rem.Sign() > 0 {
		out.Add(out, big.NewInt(1))
	}
	return out
}
