package postgres

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"optionscope/internal/model"
)

// Store reads indexed option and liquidity rows from Postgres. The indexer
// owns every table; this store only selects snapshots. Numeric columns are
// scanned as text and converted once at this boundary, so a malformed value
// degrades to zero with a warning instead of failing a whole query.
type Store struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

func NewStore(ctx context.Context, dsn string, logger *zap.Logger) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool, logger: logger}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Ping verifies database connectivity for health checks.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

const legRowColumns = `
	t.token_id::text, t.market, t.owner, t.created_at, t.expiry, t.is_call,
	t.leg_count, t.chain_id,
	l.handler, l.pool, l.hook, l.tick_lower, l.tick_upper,
	l.strike::text, l.leg_index,
	l.liquidity_at_open::text, l.liquidity_exercised::text,
	l.liquidity_settled::text, l.liquidity_at_live::text
`

// ExpiringLegRows returns joined token/leg rows for tokens expiring within
// (after, until] whose owner has delegate exercise enabled.
func (s *Store) ExpiringLegRows(ctx context.Context, after, until int64) ([]model.OptionLegRow, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+legRowColumns+`, a.exercise_delegate
		FROM option_tokens t
		JOIN option_legs l ON l.token_id = t.token_id AND l.market = t.market AND l.chain_id = t.chain_id
		JOIN trader_accounts a ON a.owner = t.owner AND a.chain_id = t.chain_id
		WHERE t.expiry > $1 AND t.expiry <= $2 AND a.exercise_delegate = true
		ORDER BY t.expiry, t.token_id, l.leg_index
	`, after, until)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return s.collectLegRows(rows)
}

// ExpiredLegRows returns joined token/leg rows for tokens past expiry.
func (s *Store) ExpiredLegRows(ctx context.Context, before int64) ([]model.OptionLegRow, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+legRowColumns+`, false
		FROM option_tokens t
		JOIN option_legs l ON l.token_id = t.token_id AND l.market = t.market AND l.chain_id = t.chain_id
		WHERE t.expiry < $1
		ORDER BY t.expiry, t.token_id, l.leg_index
	`, before)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return s.collectLegRows(rows)
}

func (s *Store) collectLegRows(rows pgx.Rows) ([]model.OptionLegRow, error) {
	var out []model.OptionLegRow
	for rows.Next() {
		var (
			row                                model.OptionLegRow
			tokenID, strike                    *string
			atOpen, exercised, settled, atLive *string
		)
		if err := rows.Scan(
			&tokenID, &row.Market, &row.Owner, &row.CreatedAt, &row.Expiry, &row.IsCall,
			&row.LegCount, &row.ChainID,
			&row.Leg.Handler, &row.Leg.Pool, &row.Leg.Hook, &row.Leg.TickLower, &row.Leg.TickUpper,
			&strike, &row.Leg.Index,
			&atOpen, &exercised, &settled, &atLive,
			&row.ExerciseDelegate,
		); err != nil {
			return nil, fmt.Errorf("scan option leg row: %w", err)
		}
		row.TokenID = s.bigInt("token_id", tokenID)
		row.Leg.Strike = s.bigInt("strike", strike)
		row.Leg.LiquidityAtOpen = s.bigInt("liquidity_at_open", atOpen)
		row.Leg.LiquidityExercised = s.bigInt("liquidity_exercised", exercised)
		row.Leg.LiquiditySettled = s.bigInt("liquidity_settled", settled)
		row.Leg.LiquidityAtLive = s.bigInt("liquidity_at_live", atLive)
		out = append(out, row)
	}
	return out, rows.Err()
}

// LiveLegRows returns joined token/leg/market rows for unexpired tokens of
// one owner on one chain, restricted to legs that still carry live liquidity.
func (s *Store) LiveLegRows(ctx context.Context, owner string, chainID uint64, after int64) ([]model.LiveLegRow, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT
			t.token_id::text, t.market, m.call_asset, m.put_asset, t.is_call,
			t.expiry, t.created_at,
			t.premium_amount::text, t.protocol_fees::text,
			l.pool, l.tick_lower, l.tick_upper, l.liquidity_at_live::text, l.leg_index
		FROM option_tokens t
		JOIN option_legs l ON l.token_id = t.token_id AND l.market = t.market AND l.chain_id = t.chain_id
		JOIN option_markets m ON lower(m.address) = lower(t.market) AND m.chain_id = t.chain_id
		WHERE lower(t.owner) = lower($1) AND t.chain_id = $2
			AND t.expiry > $3 AND l.liquidity_at_live > 0
		ORDER BY t.created_at, t.token_id, l.leg_index
	`, owner, chainID, after)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.LiveLegRow
	for rows.Next() {
		var (
			row                    model.LiveLegRow
			tokenID, premium, fees *string
			atLive                 *string
		)
		if err := rows.Scan(
			&tokenID, &row.Market, &row.CallAsset, &row.PutAsset, &row.IsCall,
			&row.Expiry, &row.CreatedAt,
			&premium, &fees,
			&row.Pool, &row.TickLower, &row.TickUpper, &atLive, &row.Index,
		); err != nil {
			return nil, fmt.Errorf("scan live leg row: %w", err)
		}
		row.TokenID = s.bigInt("token_id", tokenID)
		row.PremiumAmount = s.bigInt("premium_amount", premium)
		row.ProtocolFees = s.bigInt("protocol_fees", fees)
		row.LiquidityAtLive = s.bigInt("liquidity_at_live", atLive)
		out = append(out, row)
	}
	return out, rows.Err()
}

// PoolConfigs returns the token pairs of every configured pool on a chain.
func (s *Store) PoolConfigs(ctx context.Context, chainID uint64) ([]model.PoolConfig, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT pool, token0, token1, chain_id
		FROM pool_configs
		WHERE chain_id = $1
	`, chainID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.PoolConfig
	for rows.Next() {
		var cfg model.PoolConfig
		if err := rows.Scan(&cfg.Pool, &cfg.Token0, &cfg.Token1, &cfg.ChainID); err != nil {
			return nil, fmt.Errorf("scan pool config: %w", err)
		}
		out = append(out, cfg)
	}
	return out, rows.Err()
}

// LiquidityPositions returns per-user liquidity rows for one pool. Tick and
// amount columns come back nullable; the aggregator decides what to skip.
func (s *Store) LiquidityPositions(ctx context.Context, pool string) ([]model.LiquidityPosition, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT pool, tick_lower, tick_upper, total_liquidity::text
		FROM liquidity_positions
		WHERE lower(pool) = lower($1)
	`, pool)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.LiquidityPosition
	for rows.Next() {
		var (
			position model.LiquidityPosition
			total    *string
		)
		if err := rows.Scan(&position.Pool, &position.TickLower, &position.TickUpper, &total); err != nil {
			return nil, fmt.Errorf("scan liquidity position: %w", err)
		}
		if total != nil {
			position.TotalLiquidity = s.bigInt("total_liquidity", total)
		}
		out = append(out, position)
	}
	return out, rows.Err()
}

// Markets returns every indexed option market.
func (s *Store) Markets(ctx context.Context) ([]model.OptionMarket, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT address, chain_id, name, symbol, prime_pool, option_pricing,
			dp_fee::text, call_asset, put_asset
		FROM option_markets
		ORDER BY chain_id, address
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.OptionMarket
	for rows.Next() {
		market, err := scanMarket(rows)
		if err != nil {
			return nil, fmt.Errorf("scan option market: %w", err)
		}
		out = append(out, market)
	}
	return out, rows.Err()
}

// Market returns one option market by address; found is false when no row
// matches.
func (s *Store) Market(ctx context.Context, address string) (model.OptionMarket, bool, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT address, chain_id, name, symbol, prime_pool, option_pricing,
			dp_fee::text, call_asset, put_asset
		FROM option_markets
		WHERE lower(address) = lower($1)
	`, address)

	market, err := scanMarket(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.OptionMarket{}, false, nil
		}
		return model.OptionMarket{}, false, err
	}
	return market, true, nil
}

func scanMarket(row pgx.Row) (model.OptionMarket, error) {
	var (
		market model.OptionMarket
		dpFee  *string
	)
	if err := row.Scan(
		&market.Address, &market.ChainID, &market.Name, &market.Symbol,
		&market.PrimePool, &market.OptionPricing, &dpFee,
		&market.CallAsset, &market.PutAsset,
	); err != nil {
		return model.OptionMarket{}, err
	}
	if dpFee != nil {
		market.DpFee = *dpFee
	} else {
		market.DpFee = "0"
	}
	return market, nil
}

// IVUpdates returns the most recent implied-volatility updates for a
// market's pricing contract, newest first.
func (s *Store) IVUpdates(ctx context.Context, market string, limit int) ([]model.IVUpdate, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx, `
		SELECT u.updated_at, u.ttl_iv::text
		FROM iv_updates u
		JOIN option_markets m ON lower(m.option_pricing) = lower(u.pricing)
		WHERE lower(m.address) = lower($1)
		ORDER BY u.updated_at DESC
		LIMIT $2
	`, market, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.IVUpdate
	for rows.Next() {
		var (
			update model.IVUpdate
			ttlIV  *string
		)
		if err := rows.Scan(&update.Timestamp, &ttlIV); err != nil {
			return nil, fmt.Errorf("scan iv update: %w", err)
		}
		if ttlIV != nil {
			update.TTLIV = *ttlIV
		} else {
			update.TTLIV = "0"
		}
		out = append(out, update)
	}
	return out, rows.Err()
}

// bigInt converts a nullable numeric-as-text column, downgrading nulls and
// malformed values to zero.
func (s *Store) bigInt(column string, value *string) *big.Int {
	if value == nil {
		return big.NewInt(0)
	}
	parsed, err := model.ParseBigInt(*value)
	if err != nil {
		s.logger.Warn("malformed numeric column, using zero",
			zap.String("column", column),
			zap.String("value", *value),
		)
		return big.NewInt(0)
	}
	return parsed
}
