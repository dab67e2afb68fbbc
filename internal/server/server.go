package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"optionscope/internal/liquidity"
	"optionscope/internal/model"
)

const defaultExpiryWindow = 5 * time.Minute

// Store is the read surface the API needs from Postgres.
type Store interface {
	Ping(ctx context.Context) error
	LiquidityPositions(ctx context.Context, pool string) ([]model.LiquidityPosition, error)
	Markets(ctx context.Context) ([]model.OptionMarket, error)
	Market(ctx context.Context, address string) (model.OptionMarket, bool, error)
	IVUpdates(ctx context.Context, market string, limit int) ([]model.IVUpdate, error)
}

// OptionCollector supplies lifecycle-grouped option tokens.
type OptionCollector interface {
	CollectExpiring(ctx context.Context, window time.Duration) ([]model.GroupedOption, error)
	CollectExpired(ctx context.Context) ([]model.GroupedOption, error)
}

// PositionSource supplies valuation-enriched live position views.
type PositionSource interface {
	LivePositions(ctx context.Context, owner string, chainID uint64) ([]model.PositionView, error)
}

// Server exposes the derived option and liquidity views over HTTP.
type Server struct {
	store     Store
	collector OptionCollector
	positions PositionSource
	logger    *zap.Logger
	router    *mux.Router
}

func NewServer(store Store, collector OptionCollector, positions PositionSource, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		store:     store,
		collector: collector,
		positions: positions,
		logger:    logger,
		router:    mux.NewRouter(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/status", s.handleStatus).Methods("GET")
	s.router.HandleFunc("/pool-liquidity/{pool}", s.handlePoolLiquidity).Methods("GET")
	s.router.HandleFunc("/expiring-options", s.handleExpiringOptions).Methods("GET")
	s.router.HandleFunc("/expiring-options/{minutes}", s.handleExpiringOptions).Methods("GET")
	s.router.HandleFunc("/expired-options", s.handleExpiredOptions).Methods("GET")
	s.router.HandleFunc("/positions", s.handlePositions).Methods("GET")
	s.router.HandleFunc("/markets", s.handleMarkets).Methods("GET")
	s.router.HandleFunc("/market/{address}", s.handleMarket).Methods("GET")
	s.router.HandleFunc("/ivs", s.handleIVs).Methods("GET")
}

// Handler returns the HTTP handler for the API routes.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	database := "ok"
	status := http.StatusOK
	if err := s.store.Ping(r.Context()); err != nil {
		s.logger.Error("database ping failed", zap.Error(err))
		database = "unreachable"
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, map[string]string{
		"status":   "ok",
		"database": database,
	})
}

type tickRangeLiquidity struct {
	TickLower           int32  `json:"tick_lower"`
	TickUpper           int32  `json:"tick_upper"`
	SumOfTotalLiquidity string `json:"sumOfTotalLiquidity"`
}

func (s *Server) handlePoolLiquidity(w http.ResponseWriter, r *http.Request) {
	pool := mux.Vars(r)["pool"]
	if !common.IsHexAddress(pool) {
		writeError(w, http.StatusBadRequest, "invalid pool address", pool)
		return
	}
	address := common.HexToAddress(pool).Hex()

	positions, err := s.store.LiquidityPositions(r.Context(), address)
	if err != nil {
		s.logger.Error("liquidity query failed", zap.String("pool", address), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to fetch liquidity data", err.Error())
		return
	}

	ranges := liquidity.AggregateByRange(address, positions, s.logger)
	out := make([]tickRangeLiquidity, 0, len(ranges))
	for _, aggregated := range ranges {
		out = append(out, tickRangeLiquidity{
			TickLower:           aggregated.TickLower,
			TickUpper:           aggregated.TickUpper,
			SumOfTotalLiquidity: model.BigIntString(aggregated.Total),
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"poolAddress":           address,
		"liquidityByTickRanges": out,
	})
}

func (s *Server) handleExpiringOptions(w http.ResponseWriter, r *http.Request) {
	window := defaultExpiryWindow
	if raw, ok := mux.Vars(r)["minutes"]; ok {
		minutes, err := strconv.Atoi(raw)
		if err != nil || minutes <= 0 {
			writeError(w, http.StatusBadRequest, "minutes must be a positive integer", raw)
			return
		}
		window = time.Duration(minutes) * time.Minute
	}

	grouped, err := s.collector.CollectExpiring(r.Context(), window)
	if err != nil {
		s.logger.Error("expiring options query failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to fetch expiring options", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"options": groupedOptionDTOs(grouped)})
}

func (s *Server) handleExpiredOptions(w http.ResponseWriter, r *http.Request) {
	grouped, err := s.collector.CollectExpired(r.Context())
	if err != nil {
		s.logger.Error("expired options query failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to fetch expired options", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"options": groupedOptionDTOs(grouped)})
}

func (s *Server) handlePositions(w http.ResponseWriter, r *http.Request) {
	address := r.URL.Query().Get("address")
	if address == "" {
		writeError(w, http.StatusBadRequest, "address parameter is required", "")
		return
	}
	if !common.IsHexAddress(address) {
		writeError(w, http.StatusBadRequest, "invalid address", address)
		return
	}
	rawChainID := r.URL.Query().Get("chainId")
	if rawChainID == "" {
		writeError(w, http.StatusBadRequest, "chainId parameter is required", "")
		return
	}
	chainID, err := strconv.ParseUint(rawChainID, 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "chainId must be a positive integer", rawChainID)
		return
	}

	views, err := s.positions.LivePositions(r.Context(), common.HexToAddress(address).Hex(), chainID)
	if err != nil {
		s.logger.Error("positions query failed",
			zap.String("address", address),
			zap.Uint64("chain_id", chainID),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "failed to fetch positions", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"positions": views})
}

func (s *Server) handleMarkets(w http.ResponseWriter, r *http.Request) {
	markets, err := s.store.Markets(r.Context())
	if err != nil {
		s.logger.Error("markets query failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to fetch option markets", err.Error())
		return
	}
	if markets == nil {
		markets = []model.OptionMarket{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"markets":    markets,
		"totalCount": len(markets),
	})
}

type marketWithIV struct {
	model.OptionMarket
	TTLIV *string `json:"ttlIV"`
}

func (s *Server) handleMarket(w http.ResponseWriter, r *http.Request) {
	address := mux.Vars(r)["address"]
	if !common.IsHexAddress(address) {
		writeError(w, http.StatusBadRequest, "invalid market address", address)
		return
	}
	normalized := common.HexToAddress(address).Hex()

	market, found, err := s.store.Market(r.Context(), normalized)
	if err != nil {
		s.logger.Error("market query failed", zap.String("market", normalized), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to fetch option market", err.Error())
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "option market not found", normalized)
		return
	}

	out := marketWithIV{OptionMarket: market}
	if updates, err := s.store.IVUpdates(r.Context(), normalized, 1); err != nil {
		s.logger.Warn("iv lookup failed", zap.String("market", normalized), zap.Error(err))
	} else if len(updates) > 0 {
		out.TTLIV = &updates[0].TTLIV
	}

	writeJSON(w, http.StatusOK, map[string]any{"market": out})
}

func (s *Server) handleIVs(w http.ResponseWriter, r *http.Request) {
	market := r.URL.Query().Get("market")
	if market == "" {
		writeError(w, http.StatusBadRequest, "market parameter is required", "")
		return
	}
	if !common.IsHexAddress(market) {
		writeError(w, http.StatusBadRequest, "invalid market address", market)
		return
	}
	normalized := common.HexToAddress(market).Hex()

	limit := 10
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer", raw)
			return
		}
		limit = parsed
	}

	updates, err := s.store.IVUpdates(r.Context(), normalized, limit)
	if err != nil {
		s.logger.Error("iv updates query failed", zap.String("market", normalized), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to fetch IV updates", err.Error())
		return
	}
	if updates == nil {
		updates = []model.IVUpdate{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"market":    normalized,
		"ivUpdates": updates,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message, detail string) {
	body := map[string]string{"error": message}
	if detail != "" {
		body["message"] = detail
	}
	writeJSON(w, status, body)
}
