package valuation

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"optionscope/internal/model"
	"optionscope/internal/options"
	"optionscope/internal/univ3"
)

// PoolConfigSource supplies token pairs for the pools on a chain.
type PoolConfigSource interface {
	PoolConfigs(ctx context.Context, chainID uint64) ([]model.PoolConfig, error)
}

// PoolResolver looks up a single pool's token pair when no stored config
// exists, e.g. via an on-chain call. Optional.
type PoolResolver interface {
	PoolTokens(ctx context.Context, pool string) (model.PoolConfig, error)
}

// Pipeline derives live position views: grouped positions, per-leg AMM
// amounts, concurrent external valuation, and a merged serializable result.
type Pipeline struct {
	collector *options.Collector
	configs   PoolConfigSource
	client    *Client
	logger    *zap.Logger

	// Resolver, when set, is consulted for pools missing a stored config.
	Resolver PoolResolver
}

func NewPipeline(collector *options.Collector, configs PoolConfigSource, client *Client, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		collector: collector,
		configs:   configs,
		client:    client,
		logger:    logger,
	}
}

// LivePositions produces the final position views for one owner on one
// chain. Valuation calls run concurrently and degrade per position; a
// failing pricing service never hides amount and liquidity data.
func (p *Pipeline) LivePositions(ctx context.Context, owner string, chainID uint64) ([]model.PositionView, error) {
	positions, err := p.collector.CollectLive(ctx, owner, chainID)
	if err != nil {
		return nil, err
	}
	if len(positions) == 0 {
		return []model.PositionView{}, nil
	}

	configs, err := p.configs.PoolConfigs(ctx, chainID)
	if err != nil {
		return nil, fmt.Errorf("query pool configs: %w", err)
	}
	configByPool := make(map[string]model.PoolConfig, len(configs))
	for _, cfg := range configs {
		configByPool[strings.ToLower(cfg.Pool)] = cfg
	}

	amounts := make([]*big.Int, len(positions))
	requests := make([]Request, len(positions))
	for i, position := range positions {
		amounts[i] = p.positionAmount(ctx, position, configByPool)

		legs := make([]RequestLeg, 0, len(position.Legs))
		for _, leg := range position.Legs {
			legs = append(legs, RequestLeg{
				TickLower: leg.TickLower,
				TickUpper: leg.TickUpper,
				Liquidity: model.BigIntString(leg.Liquidity),
			})
		}
		requests[i] = Request{
			Market:          position.Market,
			Pool:            position.Pool,
			TokenID:         model.BigIntString(position.TokenID),
			IsCall:          position.IsCall,
			ChainID:         chainID,
			InternalOptions: legs,
		}
	}

	results := make([]Result, len(requests))
	group, groupCtx := errgroup.WithContext(ctx)
	for i := range requests {
		i := i
		group.Go(func() error {
			results[i] = p.client.FetchValueWithRetry(groupCtx, requests[i])
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	valueByKey := make(map[string]Result, len(results))
	for _, result := range results {
		valueByKey[result.TokenID+"-"+result.Market] = result
	}

	views := make([]model.PositionView, 0, len(positions))
	for i, position := range positions {
		liquidityValues := make([]string, 0, len(position.Legs))
		for _, leg := range position.Legs {
			liquidityValues = append(liquidityValues, model.BigIntString(leg.Liquidity))
		}

		result := valueByKey[position.Key()]
		if result.Value == "" {
			result.Value = "0"
		}

		views = append(views, model.PositionView{
			OptionMarket:    position.Market,
			CallAsset:       position.CallAsset,
			PutAsset:        position.PutAsset,
			IsCall:          position.IsCall,
			Value:           result.Value,
			Expiry:          position.Expiry,
			CreatedAt:       position.CreatedAt,
			Paid:            model.BigIntString(position.Paid),
			Amount:          model.BigIntString(amounts[i]),
			LiquidityValues: liquidityValues,
			ExerciseParams:  result.ExerciseParams,
		})
	}

	return views, nil
}

// positionAmount sums the per-leg token amounts for a position. The pool
// config decides whether the payout asset is token0-denominated; a missing
// config downgrades the amount to zero with a warning instead of failing
// the position.
func (p *Pipeline) positionAmount(ctx context.Context, position model.LivePosition, configByPool map[string]model.PoolConfig) *big.Int {
	total := big.NewInt(0)

	cfg, ok := configByPool[strings.ToLower(position.Pool)]
	if !ok && p.Resolver != nil {
		resolved, err := p.Resolver.PoolTokens(ctx, position.Pool)
		if err != nil {
			p.logger.Warn("pool token resolution failed",
				zap.String("pool", position.Pool),
				zap.Error(err),
			)
		} else {
			configByPool[strings.ToLower(position.Pool)] = resolved
			cfg, ok = resolved, true
		}
	}
	if !ok {
		p.logger.Warn("pool config not found, amount left at zero",
			zap.String("pool", position.Pool),
			zap.String("token_id", model.BigIntString(position.TokenID)),
		)
		return total
	}

	useAmount0 := position.IsCall && strings.EqualFold(position.CallAsset, cfg.Token0)

	for _, leg := range position.Legs {
		lower, err := univ3.SqrtRatioAtTick(int64(leg.TickLower))
		if err != nil {
			p.logger.Warn("skip leg with bad tick", zap.Int32("tick", leg.TickLower), zap.Error(err))
			continue
		}
		upper, err := univ3.SqrtRatioAtTick(int64(leg.TickUpper))
		if err != nil {
			p.logger.Warn("skip leg with bad tick", zap.Int32("tick", leg.TickUpper), zap.Error(err))
			continue
		}

		liquidity := leg.Liquidity
		if liquidity == nil {
			liquidity = big.NewInt(0)
		}

		var amount *big.Int
		if useAmount0 {
			amount = univ3.Amount0Delta(lower, upper, liquidity, true)
		} else {
			amount = univ3.Amount1Delta(lower, upper, liquidity, true)
		}
		total.Add(total, amount)
	}

	return total
}
