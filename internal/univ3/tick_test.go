package univ3

import (
	"errors"
	"math/big"
	"testing"
)

func TestSqrtRatioAtTickBounds(t *testing.T) {
	if _, err := SqrtRatioAtTick(MinTick - 1); !errors.Is(err, ErrTickOutOfRange) {
		t.Fatalf("expected ErrTickOutOfRange below MinTick, got %v", err)
	}
	if _, err := SqrtRatioAtTick(MaxTick + 1); !errors.Is(err, ErrTickOutOfRange) {
		t.Fatalf("expected ErrTickOutOfRange above MaxTick, got %v", err)
	}
}

func TestSqrtRatioAtTickKnownValues(t *testing.T) {
	cases := []struct {
		tick int64
		want *big.Int
	}{
		{MinTick, MinSqrtRatio},
		{0, new(big.Int).Lsh(big.NewInt(1), 96)},
		{MaxTick, MaxSqrtRatio},
	}

	for _, tc := range cases {
		got, err := SqrtRatioAtTick(tc.tick)
		if err != nil {
			t.Fatalf("tick %d: unexpected error: %v", tc.tick, err)
		}
		if got.Cmp(tc.want) != 0 {
			t.Fatalf("tick %d: got %s, want %s", tc.tick, got, tc.want)
		}
	}
}

func TestSqrtRatioAtTickMonotonic(t *testing.T) {
	ticks := []int64{MinTick, -887271, -100000, -100, -1, 0, 1, 100, 100000, 887271, MaxTick}

	prev, err := SqrtRatioAtTick(ticks[0])
	if err != nil {
		t.Fatalf("tick %d: unexpected error: %v", ticks[0], err)
	}
	for _, tick := range ticks[1:] {
		cur, err := SqrtRatioAtTick(tick)
		if err != nil {
			t.Fatalf("tick %d: unexpected error: %v", tick, err)
		}
		if prev.Cmp(cur) >= 0 {
			t.Fatalf("ratio not increasing at tick %d: %s >= %s", tick, prev, cur)
		}
		prev = cur
	}
}

func TestSqrtRatioAtTickDenseMonotonic(t *testing.T) {
	prev, err := SqrtRatioAtTick(-2000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for tick := int64(-1999); tick <= 2000; tick++ {
		cur, err := SqrtRatioAtTick(tick)
		if err != nil {
			t.Fatalf("tick %d: unexpected error: %v", tick, err)
		}
		if prev.Cmp(cur) >= 0 {
			t.Fatalf("ratio not increasing at tick %d", tick)
		}
		prev = cur
	}
}

func TestSqrtRatioAtTickDeterministic(t *testing.T) {
	for _, tick := range []int64{-887272, -12345, 0, 60, 887272} {
		a, err := SqrtRatioAtTick(tick)
		if err != nil {
			t.Fatalf("tick %d: unexpected error: %v", tick, err)
		}
		b, err := SqrtRatioAtTick(tick)
		if err != nil {
			t.Fatalf("tick %d: unexpected error: %v", tick, err)
		}
		if a.Cmp(b) != 0 {
			t.Fatalf("tick %d: non-deterministic result: %s != %s", tick, a, b)
		}
	}
}
