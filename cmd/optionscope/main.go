package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"optionscope/internal/chain"
	"optionscope/internal/config"
	"optionscope/internal/dex"
	"optionscope/internal/options"
	"optionscope/internal/server"
	"optionscope/internal/storage/postgres"
	"optionscope/internal/valuation"
)

func main() {
	root := &cobra.Command{
		Use:          "optionscope",
		Short:        "Options position valuation and liquidity aggregation service",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		RunE:  runServe,
	}

	serveCmd.Flags().String("listen", ":8080", "HTTP listen address")
	serveCmd.Flags().String("pg-dsn", "", "Postgres DSN")
	serveCmd.Flags().String("rates-api-url", "", "external pricing endpoint URL")
	serveCmd.Flags().Duration("api-timeout", 60*time.Second, "pricing request timeout")
	serveCmd.Flags().Int("max-attempts", 3, "pricing request attempts")
	serveCmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial pricing retry backoff")
	serveCmd.Flags().String("rpc", "", "chain RPC URL for pool token fallback (optional)")
	serveCmd.Flags().Uint64("chain-id", 0, "chain id for the RPC fallback")
	serveCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(serveCmd)

	reportCmd := &cobra.Command{
		Use:   "report",
		Short: "Write an owner's live positions to JSONL",
		RunE:  runReport,
	}

	reportCmd.Flags().String("pg-dsn", "", "Postgres DSN")
	reportCmd.Flags().String("rates-api-url", "", "external pricing endpoint URL")
	reportCmd.Flags().Duration("api-timeout", 60*time.Second, "pricing request timeout")
	reportCmd.Flags().Int("max-attempts", 3, "pricing request attempts")
	reportCmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial pricing retry backoff")
	reportCmd.Flags().String("rpc", "", "chain RPC URL for pool token fallback (optional)")
	reportCmd.Flags().Uint64("chain-id", 0, "chain id to query")
	reportCmd.Flags().String("owner", "", "position owner address")
	reportCmd.Flags().String("out", "./data/positions.jsonl", "output JSONL path")
	reportCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(reportCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadServe(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.PGDSN == "" {
		return fmt.Errorf("pg dsn is required")
	}
	if cfg.RatesAPIURL == "" {
		return fmt.Errorf("rates api url is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := postgres.NewStore(ctx, cfg.PGDSN, logger)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer store.Close()

	collector := options.NewCollector(store, logger)
	client := valuation.NewClient(valuation.Config{
		Endpoint:    cfg.RatesAPIURL,
		Timeout:     cfg.APITimeout,
		MaxAttempts: cfg.MaxAttempts,
		RetryBase:   cfg.RetryBackoff,
	}, nil, logger)
	pipeline := valuation.NewPipeline(collector, store, client, logger)

	if cfg.RPCURL != "" {
		chainClient, err := chain.NewClient(ctx, cfg.RPCURL)
		if err != nil {
			return fmt.Errorf("connect rpc: %w", err)
		}
		defer chainClient.Close()
		pipeline.Resolver = dex.NewTokenResolver(chainClient, cfg.ChainID, logger)
	}

	api := server.NewServer(store, collector, pipeline, logger)
	httpServer := &http.Server{
		Addr:    cfg.Listen,
		Handler: api.Handler(),
	}

	logger.Info("api server start",
		zap.String("listen", cfg.Listen),
		zap.String("rates_api_url", cfg.RatesAPIURL),
		zap.Duration("api_timeout", cfg.APITimeout),
		zap.Int("max_attempts", cfg.MaxAttempts),
		zap.Bool("rpc_fallback", cfg.RPCURL != ""),
	)

	errCh := make(chan error, 1)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	logger.Info("api server stopped")
	return nil
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
