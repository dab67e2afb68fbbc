package options

import (
	"context"
	"math/big"
	"testing"
	"time"

	"optionscope/internal/model"
)

func legRow(tokenID int64, market string, open, exercised, settled int64) model.OptionLegRow {
	return model.OptionLegRow{
		TokenID: big.NewInt(tokenID),
		Market:  market,
		Owner:   "0x1111111111111111111111111111111111111111",
		Expiry:  1700000000,
		ChainID: 10143,
		Leg: model.OptionLeg{
			Pool:               "0x00000000000000000000000000000000000000aa",
			LiquidityAtOpen:    big.NewInt(open),
			LiquidityExercised: big.NewInt(exercised),
			LiquiditySettled:   big.NewInt(settled),
		},
	}
}

func TestGroupExpiringDropsExercisedLegs(t *testing.T) {
	rows := []model.OptionLegRow{
		legRow(1, "0xmarket", 100, 100, 0),
		legRow(1, "0xmarket", 100, 40, 0),
	}

	got := GroupExpiring(rows)
	if len(got) != 1 {
		t.Fatalf("expected 1 token, got %d", len(got))
	}
	if len(got[0].Legs) != 1 {
		t.Fatalf("expected 1 remaining leg, got %d", len(got[0].Legs))
	}
	if got[0].Legs[0].LiquidityExercised.Cmp(big.NewInt(40)) != 0 {
		t.Fatalf("wrong leg kept: %+v", got[0].Legs[0])
	}
}

func TestGroupExpiringDropsFullyExercisedToken(t *testing.T) {
	rows := []model.OptionLegRow{
		legRow(1, "0xmarket", 100, 100, 0),
		legRow(1, "0xmarket", 50, 50, 0),
		legRow(2, "0xmarket", 10, 0, 0),
	}

	got := GroupExpiring(rows)
	if len(got) != 1 {
		t.Fatalf("expected 1 token, got %d", len(got))
	}
	if got[0].TokenID.Int64() != 2 {
		t.Fatalf("wrong token kept: %s", got[0].TokenID)
	}
}

func TestGroupExpiredExcludesFullyClosed(t *testing.T) {
	// 40 exercised + 60 settled == 100 opened: fully closed.
	rows := []model.OptionLegRow{legRow(1, "0xmarket", 100, 40, 60)}

	if got := GroupExpired(rows); len(got) != 0 {
		t.Fatalf("expected fully closed token to be excluded, got %d", len(got))
	}
}

func TestGroupExpiredKeepsPartiallyClosed(t *testing.T) {
	rows := []model.OptionLegRow{legRow(1, "0xmarket", 100, 40, 50)}

	got := GroupExpired(rows)
	if len(got) != 1 {
		t.Fatalf("expected token to be kept, got %d", len(got))
	}
	if len(got[0].Legs) != 1 {
		t.Fatalf("expected the unresolved leg to be present, got %d legs", len(got[0].Legs))
	}
}

func TestGroupExpiredMissingAmountsDefaultToZero(t *testing.T) {
	row := legRow(1, "0xmarket", 0, 0, 0)
	row.Leg.LiquidityAtOpen = nil
	row.Leg.LiquidityExercised = nil
	row.Leg.LiquiditySettled = nil

	// open == exercised + settled == 0: treated as closed, not a crash.
	if got := GroupExpired([]model.OptionLegRow{row}); len(got) != 0 {
		t.Fatalf("expected all-zero leg to be excluded, got %d", len(got))
	}
}

func TestGroupKeysOnTokenAndMarket(t *testing.T) {
	rows := []model.OptionLegRow{
		legRow(1, "0xmarketA", 100, 0, 0),
		legRow(1, "0xmarketB", 100, 0, 0),
	}

	got := GroupExpiring(rows)
	if len(got) != 2 {
		t.Fatalf("same token id on two markets must not merge, got %d groups", len(got))
	}
}

func TestGroupLive(t *testing.T) {
	rows := []model.LiveLegRow{
		{
			TokenID:         big.NewInt(7),
			Market:          "0xmarket",
			CallAsset:       "0xcall",
			PutAsset:        "0xput",
			IsCall:          true,
			PremiumAmount:   big.NewInt(100),
			ProtocolFees:    big.NewInt(5),
			Pool:            "0xpool",
			TickLower:       -100,
			TickUpper:       100,
			LiquidityAtLive: big.NewInt(1000),
		},
		{
			TokenID:         big.NewInt(7),
			Market:          "0xmarket",
			Pool:            "0xpool",
			TickLower:       100,
			TickUpper:       200,
			LiquidityAtLive: big.NewInt(2000),
		},
	}

	got := GroupLive(rows)
	if len(got) != 1 {
		t.Fatalf("expected 1 position, got %d", len(got))
	}
	if got[0].Paid.Cmp(big.NewInt(105)) != 0 {
		t.Fatalf("paid: got %s, want 105", got[0].Paid)
	}
	if len(got[0].Legs) != 2 {
		t.Fatalf("expected 2 legs, got %d", len(got[0].Legs))
	}
	if got[0].Legs[1].Liquidity.Cmp(big.NewInt(2000)) != 0 {
		t.Fatalf("second leg liquidity: got %s", got[0].Legs[1].Liquidity)
	}
}

type fakeStore struct {
	expiring []model.OptionLegRow
	expired  []model.OptionLegRow
	live     []model.LiveLegRow

	expiringAfter int64
	expiringUntil int64
	expiredBefore int64
}

func (f *fakeStore) ExpiringLegRows(_ context.Context, after, until int64) ([]model.OptionLegRow, error) {
	f.expiringAfter = after
	f.expiringUntil = until
	return f.expiring, nil
}

func (f *fakeStore) ExpiredLegRows(_ context.Context, before int64) ([]model.OptionLegRow, error) {
	f.expiredBefore = before
	return f.expired, nil
}

func (f *fakeStore) LiveLegRows(_ context.Context, owner string, chainID uint64, after int64) ([]model.LiveLegRow, error) {
	return f.live, nil
}

func TestCollectExpiringWindow(t *testing.T) {
	store := &fakeStore{expiring: []model.OptionLegRow{legRow(1, "0xmarket", 100, 0, 0)}}
	collector := NewCollector(store, nil)
	now := time.Unix(1700000000, 0)
	collector.Now = func() time.Time { return now }

	got, err := collector.CollectExpiring(context.Background(), 5*time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 token, got %d", len(got))
	}
	if store.expiringAfter != now.Unix() || store.expiringUntil != now.Unix()+300 {
		t.Fatalf("window bounds: got (%d, %d]", store.expiringAfter, store.expiringUntil)
	}
}

func TestCollectExpiredUsesClock(t *testing.T) {
	store := &fakeStore{}
	collector := NewCollector(store, nil)
	collector.Now = func() time.Time { return time.Unix(1234, 0) }

	if _, err := collector.CollectExpired(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if store.expiredBefore != 1234 {
		t.Fatalf("expired cutoff: got %d, want 1234", store.expiredBefore)
	}
}
