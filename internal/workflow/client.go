package workflow

import (
	"context"
	"fmt"

	"go.temporal.io/sdk/client"

	"github.com/zaryab2000/decipher-solidity-upgradoor/internal/config"
	"github.com/zaryab2000/decipher-solidity-upgradoor/internal/domain"
)

// Dial connects to the Temporal frontend described by cfg.
func Dial(cfg config.WorkflowConfig) (client.Client, error) {
	c, err := client.Dial(client.Options{
		HostPort:  fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Namespace: cfg.Namespace,
	})
	if err != nil {
		return nil, fmt.Errorf("dial temporal: %w", err)
	}
	return c, nil
}

// Submit starts AnalyzeUpgradeWorkflow and returns once it's running,
// without waiting for completion — the caller polls or queries separately.
func Submit(ctx context.Context, c client.Client, taskQueue string, input AnalyzeWorkflowInput) (client.WorkflowRun, error) {
	opts := client.StartWorkflowOptions{
		ID:        "analyze-" + input.RunID,
		TaskQueue: taskQueue,
	}
	run, err := c.ExecuteWorkflow(ctx, opts, AnalyzeUpgradeWorkflow, input)
	if err != nil {
		return nil, fmt.Errorf("start analyze workflow: %w", err)
	}
	return run, nil
}

// AwaitResult blocks until the workflow run referenced by run completes and
// returns its EngineResult.
func AwaitResult(ctx context.Context, run client.WorkflowRun) (*domain.EngineResult, error) {
	var result domain.EngineResult
	if err := run.Get(ctx, &result); err != nil {
		return nil, fmt.Errorf("await analyze workflow: %w", err)
	}
	return &result, nil
}
