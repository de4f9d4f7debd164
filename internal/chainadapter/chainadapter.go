// Package chainadapter is the chain adapter (C2): two read-only JSON-RPC
// calls against an EVM node, nothing else. No nonces, gas, signatures, or
// write calls belong here.
package chainadapter

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"golang.org/x/time/rate"

	"github.com/zaryab2000/decipher-solidity-upgradoor/internal/domain"
)

// Adapter reads storage slots and bytecode at a given address over JSON-RPC.
type Adapter struct {
	client  *ethclient.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

// Config configures the rate limit applied to outbound RPC calls.
type Config struct {
	RPCEndpoint        string
	RequestsPerSecond  float64
	Burst              int
	DialTimeout        time.Duration
}

// New dials the RPC endpoint and returns an Adapter guarding it with a
// per-second rate limiter, the way internal/gateway/gateway.go rate-limits
// per route.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Adapter, error) {
	dialCtx := ctx
	if cfg.DialTimeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, cfg.DialTimeout)
		defer cancel()
	}
	client, err := ethclient.DialContext(dialCtx, cfg.RPCEndpoint)
	if err != nil {
		return nil, fmt.Errorf("dial rpc endpoint: %w", err)
	}
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 10
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return &Adapter{
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		logger:  logger.With("component", "chainadapter"),
	}, nil
}

// NewFromClient wraps an already-dialed client, unrated. Used where the
// caller owns the client's lifecycle and connection details — notably tests
// running against go-ethereum's in-process simulated backend.
func NewFromClient(client *ethclient.Client, logger *slog.Logger) *Adapter {
	return &Adapter{
		client:  client,
		limiter: rate.NewLimiter(rate.Inf, 1),
		logger:  logger.With("component", "chainadapter"),
	}
}

// Close releases the underlying RPC connection.
func (a *Adapter) Close() {
	a.client.Close()
}

// ReadStorageSlot returns the 32-byte value of a storage slot at addr, at
// the chain head.
func (a *Adapter) ReadStorageSlot(ctx context.Context, addr domain.Address, slot domain.SlotKey) ([32]byte, error) {
	var out [32]byte
	if err := a.limiter.Wait(ctx); err != nil {
		return out, fmt.Errorf("rate limit wait: %w", err)
	}
	value, err := a.client.StorageAt(ctx, common.Address(addr), common.Hash(slot), nil)
	if err != nil {
		a.logger.Error("storage read failed", "address", domain.Address(addr).String(), "slot", slot.String(), "error", err)
		return out, fmt.Errorf("read storage slot %s at %s: %w", slot.String(), domain.Address(addr).String(), err)
	}
	copy(out[32-len(value):], value)
	return out, nil
}

// ReadCode returns the runtime bytecode at addr, empty if none is deployed.
func (a *Adapter) ReadCode(ctx context.Context, addr domain.Address) ([]byte, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}
	code, err := a.client.CodeAt(ctx, common.Address(addr), nil)
	if err != nil {
		a.logger.Error("code read failed", "address", domain.Address(addr).String(), "error", err)
		return nil, fmt.Errorf("read code at %s: %w", domain.Address(addr).String(), err)
	}
	return code, nil
}
