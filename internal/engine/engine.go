// Package engine is the orchestrator (C11): the single entry point the rest
// of the repository calls. It sequences the proxy classifier, the
// resolver, the five-way analyzer fan-out, and the aggregator exactly as
// spec.md §4.8 describes.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/zaryab2000/decipher-solidity-upgradoor/internal/analyze"
	"github.com/zaryab2000/decipher-solidity-upgradoor/internal/chainadapter"
	"github.com/zaryab2000/decipher-solidity-upgradoor/internal/domain"
	"github.com/zaryab2000/decipher-solidity-upgradoor/internal/oracleadapter"
	"github.com/zaryab2000/decipher-solidity-upgradoor/internal/proxyclass"
	"github.com/zaryab2000/decipher-solidity-upgradoor/internal/report"
	"github.com/zaryab2000/decipher-solidity-upgradoor/internal/resolve"
)

// reasonProxyDetectionFailed is the fixed Skipped reason spec.md §4.8 step 2
// and invariant 5 require verbatim.
const reasonProxyDetectionFailed = "proxy-detection-failed"

// Engine wires together the adapters and pure analyzers behind one
// synchronous entry point.
type Engine struct {
	chain    *chainadapter.Adapter
	oracle   oracleadapter.Oracle
	resolver *resolve.Service
	logger   *slog.Logger
}

// New builds an Engine. oracle and chain are the two external collaborators
// spec.md §1 names; nothing else reaches outside the process.
func New(chain *chainadapter.Adapter, oracle oracleadapter.Oracle, logger *slog.Logger) *Engine {
	return &Engine{
		chain:    chain,
		oracle:   oracle,
		resolver: resolve.New(oracle, logger),
		logger:   logger.With("component", "engine"),
	}
}

// Input is the core entry point's single input value (spec.md §6.3).
type Input struct {
	ProxyAddress           domain.Address
	OldImplementationPath  string
	NewImplementationPath  string
	ContractName           string // optional; resolve.Input.ContractName
}

// Analyze runs one full invocation: probe, classify, resolve, fan out, and
// aggregate. It assigns a fresh run ID and renders the Markdown report
// before returning.
func (e *Engine) Analyze(ctx context.Context, in Input) (domain.EngineResult, error) {
	runID := uuid.NewString()
	log := e.logger.With("run_id", runID, "proxy", in.ProxyAddress.String())
	log.Info("analysis started")

	if err := e.oracle.Probe(ctx); err != nil {
		log.Error("toolchain probe failed", "error", err)
		return domain.EngineResult{}, err
	}

	proxyInfo, proxyOutcome, err := proxyclass.Classify(ctx, e.chain, in.ProxyAddress, log)
	if err != nil {
		log.Error("proxy classification aborted", "error", err)
		return domain.EngineResult{}, err
	}

	if proxyInfo == nil {
		log.Warn("proxy classification produced a blocking finding; downstream analyzers skipped")
		outcomes := gatedOutcomes(proxyOutcome)
		result := analyze.Aggregate(outcomes, true)
		result.RunID = runID
		result.ReportMarkdown = report.Render(result)
		return result, nil
	}

	resolved, err := e.resolver.Resolve(ctx, resolve.Input{
		OldPath:      in.OldImplementationPath,
		NewPath:      in.NewImplementationPath,
		ContractName: in.ContractName,
	})
	if err != nil {
		log.Error("resolution aborted", "error", err)
		return domain.EngineResult{}, err
	}

	outcomes := e.fanOut(*proxyInfo, resolved, log)
	outcomes[domain.AnalyzerProxyDetection] = domain.Completed(nil)

	result := analyze.Aggregate(outcomes, false)
	result.RunID = runID
	result.ReportMarkdown = report.Render(result)
	log.Info("analysis complete", "verdict", result.Verdict)
	return result, nil
}

// gatedOutcomes builds the full seven-key analyzer_status map for the
// proxy-gated-incomplete path: proxy-detection carries the blocking
// finding, every other analyzer is Skipped with the fixed reason.
func gatedOutcomes(proxyOutcome domain.AnalyzerOutcome) map[domain.AnalyzerName]domain.AnalyzerOutcome {
	skipped := domain.Skipped(reasonProxyDetectionFailed)
	return map[domain.AnalyzerName]domain.AnalyzerOutcome{
		domain.AnalyzerProxyDetection:    proxyOutcome,
		domain.AnalyzerStorageLayout:     skipped,
		domain.AnalyzerABIDiff:           skipped,
		domain.AnalyzerUUPSSafety:        skipped,
		domain.AnalyzerTransparentSafety: skipped,
		domain.AnalyzerInitializer:       skipped,
		domain.AnalyzerAccessControl:     skipped,
	}
}

// fanOut launches C5-C9 concurrently (the UUPS/Transparent branch of C7 is
// selected by proxyInfo.Kind; the inactive branch is recorded Skipped).
// Any analyzer panic is trapped and recorded as Errored on that analyzer
// alone — spec.md §5's "all-complete-or-all-trapped" guarantee.
func (e *Engine) fanOut(proxyInfo domain.ProxyInfo, resolved domain.Resolved, log *slog.Logger) map[domain.AnalyzerName]domain.AnalyzerOutcome {
	var mu sync.Mutex
	outcomes := make(map[domain.AnalyzerName]domain.AnalyzerOutcome, 6)
	set := func(name domain.AnalyzerName, o domain.AnalyzerOutcome) {
		mu.Lock()
		defer mu.Unlock()
		outcomes[name] = o
	}

	g, _ := errgroup.WithContext(context.Background())

	g.Go(safely(log, domain.AnalyzerStorageLayout, func() domain.AnalyzerOutcome {
		return analyze.StorageLayout(resolved.Old.Layout, resolved.New.Layout)
	}, set))

	g.Go(safely(log, domain.AnalyzerABIDiff, func() domain.AnalyzerOutcome {
		return analyze.ABIDiff(resolved.Old.ABI, resolved.New.ABI)
	}, set))

	g.Go(safely(log, domain.AnalyzerInitializer, func() domain.AnalyzerOutcome {
		return analyze.Initializer(resolved.New.AST)
	}, set))

	g.Go(safely(log, domain.AnalyzerAccessControl, func() domain.AnalyzerOutcome {
		return analyze.AccessControl(resolved.Old.AST, resolved.New.AST)
	}, set))

	switch proxyInfo.Kind {
	case domain.ProxyUUPS:
		g.Go(safely(log, domain.AnalyzerUUPSSafety, func() domain.AnalyzerOutcome {
			return analyze.UpgradeAuthUUPS(resolved.New.AST)
		}, set))
		set(domain.AnalyzerTransparentSafety, domain.Skipped("proxy-type-is-uups"))
	case domain.ProxyTransparent:
		g.Go(safely(log, domain.AnalyzerTransparentSafety, func() domain.AnalyzerOutcome {
			return analyze.UpgradeAuthTransparent(proxyInfo, resolved.New.ABI)
		}, set))
		set(domain.AnalyzerUUPSSafety, domain.Skipped("proxy-type-is-transparent"))
	}

	_ = g.Wait() // analyzer goroutines never return a non-nil error; see safely()
	return outcomes
}

// safely wraps an analyzer in panic recovery, recording the outcome via set
// rather than propagating through the errgroup's error channel — an
// analyzer failure must never cancel its siblings.
func safely(log *slog.Logger, name domain.AnalyzerName, fn func() domain.AnalyzerOutcome, set func(domain.AnalyzerName, domain.AnalyzerOutcome)) func() error {
	return func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				log.Error("analyzer panicked", "analyzer", name, "panic", r)
				set(name, domain.Errored(fmt.Sprintf("panic: %v", r)))
			}
		}()
		set(name, fn())
		return nil
	}
}
