package valuation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const (
	defaultTimeout     = 60 * time.Second
	defaultMaxAttempts = 3
	defaultRetryBase   = 500 * time.Millisecond
	// retryFactor scales the backoff delay between attempts: 500ms, 1500ms, ...
	retryFactor = 3
)

// Config controls the pricing endpoint client. Zero fields fall back to
// defaults so callers only set what they need.
type Config struct {
	Endpoint    string
	Timeout     time.Duration
	MaxAttempts int
	RetryBase   time.Duration
}

// Request is the payload sent to the pricing endpoint for one position.
type Request struct {
	Market          string       `json:"market"`
	Pool            string       `json:"pool"`
	TokenID         string       `json:"tokenId"`
	IsCall          bool         `json:"isCall"`
	ChainID         uint64       `json:"chainId"`
	InternalOptions []RequestLeg `json:"internalOptions"`
}

// RequestLeg is one tick-range leg in a valuation request.
type RequestLeg struct {
	TickLower int32  `json:"tickLower"`
	TickUpper int32  `json:"tickUpper"`
	Liquidity string `json:"liquidity"`
}

// Result carries the valuation for one position. Degraded results hold a
// zero value and nil exercise params; Attempts records how many calls were
// made so the retry behavior stays observable.
type Result struct {
	TokenID        string
	Market         string
	Value          string
	ExerciseParams json.RawMessage
	Attempts       int
	Degraded       bool
}

// Client calls the external pricing service. The HTTP client is injected so
// tests can point at a local server; there is no ambient global state.
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *zap.Logger
}

func NewClient(cfg Config, httpClient *http.Client, logger *zap.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = defaultRetryBase
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{cfg: cfg, httpClient: httpClient, logger: logger}
}

// FetchValue issues a single POST to the pricing endpoint with a per-call
// timeout. Transport errors and non-2xx responses are returned as errors.
func (c *Client) FetchValue(ctx context.Context, req Request) (Result, error) {
	if c.cfg.Endpoint == "" {
		return Result{}, fmt.Errorf("pricing endpoint is not configured")
	}

	body, err := json.Marshal(req)
	if err != nil {
		return Result{}, fmt.Errorf("marshal valuation request: %w", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(callCtx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return Result{}, fmt.Errorf("create valuation request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return Result{}, fmt.Errorf("valuation request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, fmt.Errorf("read valuation response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Result{}, fmt.Errorf("valuation HTTP %d: %s", resp.StatusCode, respBody)
	}

	var decoded struct {
		Value          string          `json:"value"`
		ExerciseParams json.RawMessage `json:"exerciseParams"`
	}
	if err := json.Unmarshal(respBody, &decoded); err != nil {
		return Result{}, fmt.Errorf("decode valuation response: %w", err)
	}
	if decoded.Value == "" {
		decoded.Value = "0"
	}

	return Result{
		TokenID:        req.TokenID,
		Market:         req.Market,
		Value:          decoded.Value,
		ExerciseParams: decoded.ExerciseParams,
	}, nil
}

// FetchValueWithRetry retries FetchValue with exponential backoff. It never
// returns an error: when every attempt fails (or the context is cancelled)
// the result degrades to a zero value so one unreachable pricing service
// cannot take down a whole batch.
func (c *Client) FetchValueWithRetry(ctx context.Context, req Request) Result {
	delay := c.cfg.RetryBase

	for attempt := 1; ; attempt++ {
		result, err := c.FetchValue(ctx, req)
		if err == nil {
			result.Attempts = attempt
			return result
		}

		if attempt >= c.cfg.MaxAttempts {
			c.logger.Error("valuation attempts exhausted",
				zap.String("token_id", req.TokenID),
				zap.String("market", req.Market),
				zap.Int("attempts", attempt),
				zap.Error(err),
			)
			return degradedResult(req, attempt)
		}

		c.logger.Warn("valuation retry",
			zap.String("token_id", req.TokenID),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err),
		)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return degradedResult(req, attempt)
		case <-timer.C:
		}
		delay *= retryFactor
	}
}

func degradedResult(req Request, attempts int) Result {
	return Result{
		TokenID:  req.TokenID,
		Market:   req.Market,
		Value:    "0",
		Attempts: attempts,
		Degraded: true,
	}
}
