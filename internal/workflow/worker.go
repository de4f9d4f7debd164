package workflow

import (
	"log/slog"

	"go.temporal.io/sdk/worker"

	"go.temporal.io/sdk/client"
)

// RegisterWorker registers AnalyzeUpgradeWorkflow and its activities on w.
// Configure must be called first so the activities' package-level
// dependencies are set before the worker starts polling.
func RegisterWorker(w worker.Worker, logger *slog.Logger) {
	w.RegisterWorkflow(AnalyzeUpgradeWorkflow)
	w.RegisterActivity(ProbeActivity)
	w.RegisterActivity(ClassifyActivity)
	w.RegisterActivity(ResolveActivity)
	w.RegisterActivity(StorageLayoutActivity)
	w.RegisterActivity(ABIDiffActivity)
	w.RegisterActivity(UpgradeAuthActivity)
	w.RegisterActivity(InitializerActivity)
	w.RegisterActivity(AccessControlActivity)
	w.RegisterActivity(AggregateActivity)
	logger.Info("registered upgrade-analysis workflow and activities")
}

// NewWorker builds a Temporal worker polling taskQueue on c.
func NewWorker(c client.Client, taskQueue string) worker.Worker {
	return worker.New(c, taskQueue, worker.Options{})
}
