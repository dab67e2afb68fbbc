package liquidity

import (
	"math/big"
	"testing"

	"optionscope/internal/model"
)

func position(pool string, lower, upper int32, amount int64) model.LiquidityPosition {
	return model.LiquidityPosition{
		Pool:           pool,
		TickLower:      &lower,
		TickUpper:      &upper,
		TotalLiquidity: big.NewInt(amount),
	}
}

func TestAggregateByRange(t *testing.T) {
	pool := "0x00000000000000000000000000000000000000aa"
	positions := []model.LiquidityPosition{
		position(pool, -100, 100, 1000),
		position(pool, -100, 100, 2000),
		position(pool, 200, 300, 50),
	}

	got := AggregateByRange(pool, positions, nil)
	if len(got) != 2 {
		t.Fatalf("expected 2 ranges, got %d", len(got))
	}
	if got[0].TickLower != -100 || got[0].TickUpper != 100 {
		t.Fatalf("unexpected first range: %+v", got[0])
	}
	if got[0].Total.Cmp(big.NewInt(3000)) != 0 {
		t.Fatalf("range (-100,100) sum: got %s, want 3000", got[0].Total)
	}
	if got[1].Total.Cmp(big.NewInt(50)) != 0 {
		t.Fatalf("range (200,300) sum: got %s, want 50", got[1].Total)
	}
}

func TestAggregateByRangeFiltersPool(t *testing.T) {
	pool := "0x00000000000000000000000000000000000000aa"
	other := "0x00000000000000000000000000000000000000bb"
	positions := []model.LiquidityPosition{
		position(pool, -100, 100, 1000),
		position(other, -100, 100, 9999),
	}

	got := AggregateByRange(pool, positions, nil)
	if len(got) != 1 {
		t.Fatalf("expected 1 range, got %d", len(got))
	}
	if got[0].Total.Cmp(big.NewInt(1000)) != 0 {
		t.Fatalf("sum: got %s, want 1000", got[0].Total)
	}
}

func TestAggregateByRangeCaseInsensitivePool(t *testing.T) {
	positions := []model.LiquidityPosition{
		position("0x00000000000000000000000000000000000000AA", -10, 10, 7),
	}

	got := AggregateByRange("0x00000000000000000000000000000000000000aa", positions, nil)
	if len(got) != 1 {
		t.Fatalf("expected pool match to ignore case, got %d ranges", len(got))
	}
}

func TestAggregateByRangeSkipsMissingFields(t *testing.T) {
	pool := "0x00000000000000000000000000000000000000aa"
	lower := int32(-100)
	positions := []model.LiquidityPosition{
		position(pool, -100, 100, 1000),
		{Pool: pool, TickLower: &lower, TickUpper: nil, TotalLiquidity: big.NewInt(5)},
		{Pool: pool, TickLower: &lower, TickUpper: &lower, TotalLiquidity: nil},
	}

	got := AggregateByRange(pool, positions, nil)
	if len(got) != 1 {
		t.Fatalf("expected 1 range after skips, got %d", len(got))
	}
	if got[0].Total.Cmp(big.NewInt(1000)) != 0 {
		t.Fatalf("sum: got %s, want 1000", got[0].Total)
	}
}

func TestAggregateByRangeOrderInvariantSums(t *testing.T) {
	pool := "0x00000000000000000000000000000000000000aa"
	positions := []model.LiquidityPosition{
		position(pool, -100, 100, 1),
		position(pool, 0, 60, 2),
		position(pool, -100, 100, 3),
		position(pool, 0, 60, 4),
		position(pool, -887272, 887272, 5),
	}

	base := AggregateByRange(pool, positions, nil)
	baseSums := make(map[string]string)
	for _, r := range base {
		baseSums[rangeKey(r.TickLower, r.TickUpper)] = r.Total.String()
	}

	permuted := []model.LiquidityPosition{positions[4], positions[2], positions[0], positions[3], positions[1]}
	got := AggregateByRange(pool, permuted, nil)
	if len(got) != len(base) {
		t.Fatalf("range count changed under permutation: %d != %d", len(got), len(base))
	}
	for _, r := range got {
		want, ok := baseSums[rangeKey(r.TickLower, r.TickUpper)]
		if !ok {
			t.Fatalf("unexpected range (%d,%d)", r.TickLower, r.TickUpper)
		}
		if r.Total.String() != want {
			t.Fatalf("range (%d,%d): got %s, want %s", r.TickLower, r.TickUpper, r.Total, want)
		}
	}
}
