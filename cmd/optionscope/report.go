package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"optionscope/internal/chain"
	"optionscope/internal/config"
	"optionscope/internal/dex"
	"optionscope/internal/options"
	"optionscope/internal/storage"
	"optionscope/internal/storage/postgres"
	"optionscope/internal/valuation"
)

func runReport(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadReport(cfgFile, cmd.Flags())
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
	if !common.IsHexAddress(cfg.Owner) {
		return fmt.Errorf("owner must be a valid address, got %q", cfg.Owner)
	}
	if cfg.ChainID == 0 {
		return fmt.Errorf("chain id is required")
	}
	owner := common.HexToAddress(cfg.Owner).Hex()

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

	views, err := pipeline.LivePositions(ctx, owner, cfg.ChainID)
	if err != nil {
		return fmt.Errorf("collect positions: %w", err)
	}

	sink := storage.NewJsonlSink(cfg.Out)
	if err := sink.PutPositionBatch(views); err != nil {
		return fmt.Errorf("write report: %w", err)
	}

	logger.Info("report written",
		zap.String("owner", owner),
		zap.Uint64("chain_id", cfg.ChainID),
		zap.Int("positions", len(views)),
		zap.String("out", cfg.Out),
	)
	return nil
}
