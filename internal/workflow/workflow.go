package workflow

import (
	"time"

	"go.temporal.io/sdk/workflow"

	"github.com/zaryab2000/decipher-solidity-upgradoor/internal/domain"
	"github.com/zaryab2000/decipher-solidity-upgradoor/internal/report"
	"github.com/zaryab2000/decipher-solidity-upgradoor/internal/resolve"
)

const reasonProxyDetectionFailed = "proxy-detection-failed"

// AnalyzeWorkflowInput is AnalyzeUpgradeWorkflow's input.
type AnalyzeWorkflowInput struct {
	RunID                 string
	ProxyAddress          domain.Address
	OldImplementationPath string
	NewImplementationPath string
	ContractName          string
}

// AnalyzeUpgradeWorkflow is a durable alternative driver of the same
// five-stage pipeline engine.Analyze runs synchronously: probe, classify,
// resolve, fan out the five analyzers, aggregate. Using Temporal means a long
// `forge build` inside ResolveActivity survives a worker restart.
func AnalyzeUpgradeWorkflow(ctx workflow.Context, input AnalyzeWorkflowInput) (*domain.EngineResult, error) {
	ao := workflow.ActivityOptions{StartToCloseTimeout: 5 * time.Minute}
	ctx = workflow.WithActivityOptions(ctx, ao)

	if err := workflow.ExecuteActivity(ctx, ProbeActivity).Get(ctx, nil); err != nil {
		return nil, err
	}

	var classifyResult ClassifyResult
	if err := workflow.ExecuteActivity(ctx, ClassifyActivity, input.ProxyAddress).Get(ctx, &classifyResult); err != nil {
		return nil, err
	}

	if classifyResult.ProxyInfo == nil {
		result, err := aggregateAndRender(ctx, gatedOutcomes(classifyResult.Outcome), true, input.RunID)
		if err != nil {
			return nil, err
		}
		return result, nil
	}

	var resolved domain.Resolved
	resolveInput := resolve.Input{
		OldPath:      input.OldImplementationPath,
		NewPath:      input.NewImplementationPath,
		ContractName: input.ContractName,
	}
	if err := workflow.ExecuteActivity(ctx, ResolveActivity, resolveInput).Get(ctx, &resolved); err != nil {
		return nil, err
	}

	storageFuture := workflow.ExecuteActivity(ctx, StorageLayoutActivity, resolved)
	abiFuture := workflow.ExecuteActivity(ctx, ABIDiffActivity, resolved)
	authFuture := workflow.ExecuteActivity(ctx, UpgradeAuthActivity, classifyResult.ProxyInfo.Kind, *classifyResult.ProxyInfo, resolved)
	initFuture := workflow.ExecuteActivity(ctx, InitializerActivity, resolved)
	aclFuture := workflow.ExecuteActivity(ctx, AccessControlActivity, resolved)

	outcomes := map[domain.AnalyzerName]domain.AnalyzerOutcome{
		domain.AnalyzerProxyDetection: domain.Completed(nil),
		domain.AnalyzerStorageLayout:  awaitOutcome(ctx, storageFuture),
		domain.AnalyzerABIDiff:        awaitOutcome(ctx, abiFuture),
		domain.AnalyzerInitializer:    awaitOutcome(ctx, initFuture),
		domain.AnalyzerAccessControl:  awaitOutcome(ctx, aclFuture),
	}
	authOutcome := awaitOutcome(ctx, authFuture)
	if classifyResult.ProxyInfo.Kind == domain.ProxyUUPS {
		outcomes[domain.AnalyzerUUPSSafety] = authOutcome
		outcomes[domain.AnalyzerTransparentSafety] = domain.Skipped("proxy-type-is-uups")
	} else {
		outcomes[domain.AnalyzerTransparentSafety] = authOutcome
		outcomes[domain.AnalyzerUUPSSafety] = domain.Skipped("proxy-type-is-transparent")
	}

	return aggregateAndRender(ctx, outcomes, false, input.RunID)
}

// awaitOutcome blocks on a future and, if the activity itself failed,
// converts that into an Errored outcome rather than letting it fail the
// whole workflow — the same "analyzer failure never aborts siblings"
// contract engine.fanOut enforces via panic recovery.
func awaitOutcome(ctx workflow.Context, f workflow.Future) domain.AnalyzerOutcome {
	var outcome domain.AnalyzerOutcome
	if err := f.Get(ctx, &outcome); err != nil {
		return domain.Errored(err.Error())
	}
	return outcome
}

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

func aggregateAndRender(ctx workflow.Context, outcomes map[domain.AnalyzerName]domain.AnalyzerOutcome, gated bool, runID string) (*domain.EngineResult, error) {
	var result domain.EngineResult
	err := workflow.ExecuteActivity(ctx, AggregateActivity, AggregateRequest{Outcomes: outcomes, Gated: gated}).Get(ctx, &result)
	if err != nil {
		return nil, err
	}
	result.RunID = runID
	result.ReportMarkdown = report.Render(result)
	return &result, nil
}
