// Package workflow is the optional Temporal-backed durable front end
// (domain stack §B.5): it runs the same five-stage pipeline
// (probe -> classify -> resolve -> fan-out -> aggregate) as a workflow with
// one activity per stage (one per analyzer in the fan-out), so a long
// `forge build` survives worker restarts. This is an alternate driver of
// the same pipeline, not a replacement for the synchronous engine.Analyze
// entry point; the activities call proxyclass, resolve and analyze directly.
package workflow

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/zaryab2000/decipher-solidity-upgradoor/internal/analyze"
	"github.com/zaryab2000/decipher-solidity-upgradoor/internal/chainadapter"
	"github.com/zaryab2000/decipher-solidity-upgradoor/internal/domain"
	"github.com/zaryab2000/decipher-solidity-upgradoor/internal/oracleadapter"
	"github.com/zaryab2000/decipher-solidity-upgradoor/internal/proxyclass"
	"github.com/zaryab2000/decipher-solidity-upgradoor/internal/resolve"
)

// Deps is the set of external collaborators the activities in this package
// need; it is set once by Configure before the worker starts polling.
// Temporal activities are resolved by function reference at registration
// time, so the dependencies they close over must be package-level rather
// than passed as arguments (arguments must be serializable).
type Deps struct {
	Chain  *chainadapter.Adapter
	Oracle oracleadapter.Oracle
	Logger *slog.Logger
}

var deps *Deps

// Configure sets the package-level dependencies every activity closes
// over. Call once during worker startup, before RegisterWorker.
func Configure(d *Deps) { deps = d }

// ProbeActivity checks that the external toolchain is reachable.
func ProbeActivity(ctx context.Context) error {
	return deps.Oracle.Probe(ctx)
}

// ClassifyResult is ClassifyActivity's serializable return value.
type ClassifyResult struct {
	ProxyInfo *domain.ProxyInfo
	Outcome   domain.AnalyzerOutcome
}

// ClassifyActivity runs the proxy classifier (C3).
func ClassifyActivity(ctx context.Context, proxyAddress domain.Address) (ClassifyResult, error) {
	info, outcome, err := proxyclass.Classify(ctx, deps.Chain, proxyAddress, deps.Logger)
	if err != nil {
		return ClassifyResult{}, err
	}
	return ClassifyResult{ProxyInfo: info, Outcome: outcome}, nil
}

// ResolveActivity runs the resolver (C4).
func ResolveActivity(ctx context.Context, in resolve.Input) (domain.Resolved, error) {
	svc := resolve.New(deps.Oracle, deps.Logger)
	return svc.Resolve(ctx, in)
}

// StorageLayoutActivity runs the storage-layout differ (C5).
func StorageLayoutActivity(ctx context.Context, resolved domain.Resolved) (domain.AnalyzerOutcome, error) {
	return analyze.StorageLayout(resolved.Old.Layout, resolved.New.Layout), nil
}

// ABIDiffActivity runs the interface differ (C6).
func ABIDiffActivity(ctx context.Context, resolved domain.Resolved) (domain.AnalyzerOutcome, error) {
	return analyze.ABIDiff(resolved.Old.ABI, resolved.New.ABI), nil
}

// UpgradeAuthActivity runs the upgrade-auth checker's (C7) active branch.
func UpgradeAuthActivity(ctx context.Context, kind domain.ProxyKind, proxyInfo domain.ProxyInfo, resolved domain.Resolved) (domain.AnalyzerOutcome, error) {
	switch kind {
	case domain.ProxyUUPS:
		return analyze.UpgradeAuthUUPS(resolved.New.AST), nil
	case domain.ProxyTransparent:
		return analyze.UpgradeAuthTransparent(proxyInfo, resolved.New.ABI), nil
	default:
		return domain.AnalyzerOutcome{}, fmt.Errorf("unknown proxy kind %q", kind)
	}
}

// InitializerActivity runs the initializer checker (C8).
func InitializerActivity(ctx context.Context, resolved domain.Resolved) (domain.AnalyzerOutcome, error) {
	return analyze.Initializer(resolved.New.AST), nil
}

// AccessControlActivity runs the access-control differ (C9).
func AccessControlActivity(ctx context.Context, resolved domain.Resolved) (domain.AnalyzerOutcome, error) {
	return analyze.AccessControl(resolved.Old.AST, resolved.New.AST), nil
}

// AggregateRequest is AggregateActivity's serializable argument.
type AggregateRequest struct {
	Outcomes map[domain.AnalyzerName]domain.AnalyzerOutcome
	Gated    bool
}

// AggregateActivity runs the aggregator (C10).
func AggregateActivity(ctx context.Context, req AggregateRequest) (domain.EngineResult, error) {
	return analyze.Aggregate(req.Outcomes, req.Gated), nil
}
