package dex

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"optionscope/internal/chain"
	"optionscope/internal/model"
)

// TokenResolver answers pool token0/token1 lookups via eth_call when a
// stored pool config is missing. Pool token pairs are immutable, so results
// are cached for the process lifetime.
type TokenResolver struct {
	client  *chain.Client
	chainID uint64
	logger  *zap.Logger

	mu    sync.RWMutex
	cache map[common.Address]model.PoolConfig
}

func NewTokenResolver(client *chain.Client, chainID uint64, logger *zap.Logger) *TokenResolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TokenResolver{
		client:  client,
		chainID: chainID,
		logger:  logger,
		cache:   make(map[common.Address]model.PoolConfig),
	}
}

// PoolTokens resolves the token pair of one pool address.
func (r *TokenResolver) PoolTokens(ctx context.Context, pool string) (model.PoolConfig, error) {
	if r.client == nil {
		return model.PoolConfig{}, fmt.Errorf("chain client is nil")
	}
	if !common.IsHexAddress(pool) {
		return model.PoolConfig{}, fmt.Errorf("invalid pool address: %s", pool)
	}
	address := common.HexToAddress(pool)

	r.mu.RLock()
	cached, ok := r.cache[address]
	r.mu.RUnlock()
	if ok {
		return cached, nil
	}

	poolABI, err := V3PoolABI()
	if err != nil {
		return model.PoolConfig{}, fmt.Errorf("parse pool abi: %w", err)
	}

	token0, err := r.callAddressMethod(ctx, address, poolABI, "token0")
	if err != nil {
		return model.PoolConfig{}, err
	}
	token1, err := r.callAddressMethod(ctx, address, poolABI, "token1")
	if err != nil {
		return model.PoolConfig{}, err
	}

	cfg := model.PoolConfig{
		Pool:    address.Hex(),
		Token0:  token0.Hex(),
		Token1:  token1.Hex(),
		ChainID: r.chainID,
	}

	r.mu.Lock()
	r.cache[address] = cfg
	r.mu.Unlock()

	r.logger.Debug("resolved pool tokens on chain",
		zap.String("pool", cfg.Pool),
		zap.String("token0", cfg.Token0),
		zap.String("token1", cfg.Token1),
	)
	return cfg, nil
}

func (r *TokenResolver) callAddressMethod(ctx context.Context, pool common.Address, poolABI abi.ABI, method string) (common.Address, error) {
	data, err := poolABI.Pack(method)
	if err != nil {
		return common.Address{}, fmt.Errorf("pack %s: %w", method, err)
	}
	msg := ethereum.CallMsg{To: &pool, Data: data}
	resp, err := r.client.CallContract(ctx, msg, nil)
	if err != nil {
		return common.Address{}, fmt.Errorf("call %s: %w", method, err)
	}
	values, err := poolABI.Unpack(method, resp)
	if err != nil {
		return common.Address{}, fmt.Errorf("unpack %s: %w", method, err)
	}
	return asAddress(values[0])
}

func asAddress(value interface{}) (common.Address, error) {
	switch v := value.(type) {
	case common.Address:
		return v, nil
	case *common.Address:
		return *v, nil
	default:
		return common.Address{}, fmt.Errorf("unsupported address type %T", value)
	}
}
