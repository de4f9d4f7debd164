// Package main is the entry point for the upgradoor API server.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/zaryab2000/decipher-solidity-upgradoor/internal/api"
	"github.com/zaryab2000/decipher-solidity-upgradoor/internal/chainadapter"
	"github.com/zaryab2000/decipher-solidity-upgradoor/internal/config"
	"github.com/zaryab2000/decipher-solidity-upgradoor/internal/engine"
	"github.com/zaryab2000/decipher-solidity-upgradoor/internal/oracleadapter"
)

const version = "0.1.0"

func main() {
	logLevel := slog.LevelInfo
	if os.Getenv("UPGRADOOR_ENV") == "development" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	logger.Info("starting upgradoor API server", "version", version)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	logger.Info("configuration loaded", "env", cfg.Env)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	chain, err := chainadapter.New(ctx, chainadapter.Config{
		RPCEndpoint:       cfg.RPC.Endpoint,
		RequestsPerSecond: cfg.RPC.RequestsPerSecond,
		Burst:             cfg.RPC.Burst,
		DialTimeout:       cfg.RPC.DialTimeout,
	}, logger)
	if err != nil {
		logger.Error("failed to dial chain RPC endpoint", "error", err)
		os.Exit(1)
	}
	defer chain.Close()

	oracle := oracleadapter.NewForgeOracle(oracleadapter.Config{
		ForgeBinary:       cfg.Toolchain.ForgeBinary,
		CommandTimeout:    cfg.Toolchain.CommandTimeout,
		RequestsPerSecond: cfg.Toolchain.RequestsPerSecond,
		Burst:             cfg.Toolchain.Burst,
	}, logger)

	eng := engine.New(chain, oracle, logger)
	srv := api.NewServer(eng, logger)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler:      srv.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		logger.Info("received shutdown signal", "signal", sig)

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", "error", err)
		}
		cancel()
	}()

	logger.Info("HTTP server starting", "port", cfg.Server.HTTPPort)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("HTTP server error", "error", err)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("upgradoor API server shutdown complete")
}
