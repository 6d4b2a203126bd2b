package workflows

import (
	"time"

	"docrag/internal/activities"
	"docrag/internal/ingest"
	"docrag/internal/models"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

const QueryGetStatus = "GetStatus"

// IngestStatus is the live view exposed through the status query while a
// document is being processed.
type IngestStatus struct {
	DocumentID string `json:"document_id"`
	Stage      string `json:"stage"`
	Status     string `json:"status"`
	FailReason string `json:"fail_reason,omitempty"`
	ChunkCount int    `json:"chunk_count"`
}

type DocumentIngestInput struct {
	DocumentID string `json:"document_id"`
}

// DocumentIngestWorkflow drives one document through the pipeline. The
// heartbeat timeout is the claim lease: if a worker dies mid-run, the server
// re-dispatches the activity to another worker. Provider-level retries happen
// inside the pipeline; the queue only re-runs crashes and infrastructure
// failures, never outcomes the pipeline marked terminal.
func DocumentIngestWorkflow(ctx workflow.Context, input DocumentIngestInput) (ingest.Result, error) {
	status := IngestStatus{DocumentID: input.DocumentID, Stage: "queued", Status: models.StatusPending}
	if err := workflow.SetQueryHandler(ctx, QueryGetStatus, func() (IngestStatus, error) {
		return status, nil
	}); err != nil {
		return ingest.Result{}, err
	}

	ao := workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Minute,
		HeartbeatTimeout:    2 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:        5 * time.Second,
			BackoffCoefficient:     2,
			MaximumInterval:        time.Minute,
			MaximumAttempts:        3,
			NonRetryableErrorTypes: []string{"terminal"},
		},
	}
	ctx = workflow.WithActivityOptions(ctx, ao)

	status.Stage = "processing"
	status.Status = models.StatusProcessing
	var res ingest.Result
	err := workflow.ExecuteActivity(ctx, "ProcessDocumentActivity", activities.ProcessDocumentInput{
		DocumentID: input.DocumentID,
	}).Get(ctx, &res)
	if err != nil {
		status.Stage = "done"
		status.Status = models.StatusFailed
		status.FailReason = err.Error()
		return ingest.Result{}, err
	}

	status.Stage = "done"
	status.Status = res.Status
	status.FailReason = res.FailReason
	status.ChunkCount = res.ChunkCount
	return res, nil
}
