package options

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"go.uber.org/zap"

	"optionscope/internal/model"
)

// Store is the read interface over already-indexed option rows. Queries
// return joined token/leg rows; lifecycle filters on expiry and owner are
// pushed into the query, grouping and leg filtering happen here.
type Store interface {
	ExpiringLegRows(ctx context.Context, after, until int64) ([]model.OptionLegRow, error)
	ExpiredLegRows(ctx context.Context, before int64) ([]model.OptionLegRow, error)
	LiveLegRows(ctx context.Context, owner string, chainID uint64, after int64) ([]model.LiveLegRow, error)
}

// Collector joins option tokens with their legs and applies lifecycle
// filters. The clock is injectable so tests control "now".
type Collector struct {
	store  Store
	logger *zap.Logger

	// Now supplies the current time; defaults to time.Now.
	Now func() time.Time
}

func NewCollector(store Store, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Collector{
		store:  store,
		logger: logger,
		Now:    time.Now,
	}
}

// CollectExpiring returns options expiring within the window whose owner
// has delegate exercise enabled, excluding fully exercised tokens and legs.
func (c *Collector) CollectExpiring(ctx context.Context, window time.Duration) ([]model.GroupedOption, error) {
	now := c.Now().Unix()
	rows, err := c.store.ExpiringLegRows(ctx, now, now+int64(window.Seconds()))
	if err != nil {
		return nil, fmt.Errorf("query expiring legs: %w", err)
	}

	grouped := GroupExpiring(rows)
	c.logger.Debug("collected expiring options",
		zap.Int("rows", len(rows)),
		zap.Int("tokens", len(grouped)),
		zap.Int64("window_seconds", int64(window.Seconds())),
	)
	return grouped, nil
}

// CollectExpired returns options past expiry that still have unresolved
// liquidity on at least one leg.
func (c *Collector) CollectExpired(ctx context.Context) ([]model.GroupedOption, error) {
	rows, err := c.store.ExpiredLegRows(ctx, c.Now().Unix())
	if err != nil {
		return nil, fmt.Errorf("query expired legs: %w", err)
	}

	grouped := GroupExpired(rows)
	c.logger.Debug("collected expired options",
		zap.Int("rows", len(rows)),
		zap.Int("tokens", len(grouped)),
	)
	return grouped, nil
}

// CollectLive returns the owner's unexpired positions on a chain that carry
// live liquidity on at least one leg.
func (c *Collector) CollectLive(ctx context.Context, owner string, chainID uint64) ([]model.LivePosition, error) {
	rows, err := c.store.LiveLegRows(ctx, owner, chainID, c.Now().Unix())
	if err != nil {
		return nil, fmt.Errorf("query live legs: %w", err)
	}

	grouped := GroupLive(rows)
	c.logger.Debug("collected live positions",
		zap.String("owner", owner),
		zap.Uint64("chain_id", chainID),
		zap.Int("rows", len(rows)),
		zap.Int("positions", len(grouped)),
	)
	return grouped, nil
}

func sumOrZero(a, b *big.Int) *big.Int {
	out := big.NewInt(0)
	if a != nil {
		out.Add(out, a)
	}
	if b != nil {
		out.Add(out, b)
	}
	return out
}

func bigZero() *big.Int {
	return big.NewInt(0)
}
