package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/storage"
	executions "cloud.google.com/go/workflows/executions/apiv1"
	"cloud.google.com/go/workflows/executions/apiv1/executionspb"
	"github.com/avast/retry-go/v4"

	"github.com/Lllllllleong/clinicaleventflow/internal/assemble"
	"github.com/Lllllllleong/clinicaleventflow/internal/config"
	"github.com/Lllllllleong/clinicaleventflow/internal/gcp"
	"github.com/Lllllllleong/clinicaleventflow/internal/models"
	"github.com/Lllllllleong/clinicaleventflow/internal/pdf"
	"github.com/Lllllllleong/clinicaleventflow/internal/pipeline"
)

type ExtractorConfig struct {
	ProjectID        string
	OutputBucket     string
	CollectionName   string
	WorkflowID       string
	WorkflowLocation string
	Timeout          time.Duration
}

type ExtractorFunction struct {
	storageClient    *storage.Client
	firestoreClient  *firestore.Client
	executionsClient *executions.Client
	jobs             *gcp.JobStore
	pipeline         *pipeline.Pipeline
	backends         *Backends
	config           ExtractorConfig

	// Replaceable in tests.
	writeObject func(ctx context.Context, objectName string, payload []byte) error
	completeJob func(ctx context.Context, docRef *firestore.DocumentRef, job models.Job) error
}

type GCSEvent struct {
	Bucket string `json:"bucket"`
	Name   string `json:"name"`
}

func NewExtractor(ctx context.Context, cfg *config.Config) (*ExtractorFunction, error) {
	if err := cfg.ValidateService(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	config := ExtractorConfig{
		ProjectID:        cfg.GCP.ProjectID,
		OutputBucket:     cfg.Service.OutputBucket,
		CollectionName:   cfg.Service.Collection,
		WorkflowID:       cfg.Service.WorkflowID,
		WorkflowLocation: cfg.Service.WorkflowLocation,
		Timeout:          cfg.Pipeline.Timeout,
	}

	firestoreClient, err := gcp.NewFirestoreClient(ctx, config.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create firestore client: %w", err)
	}
	storageClient, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create Storage client: %w", err)
	}
	var executionsClient *executions.Client
	if config.WorkflowID != "" {
		executionsClient, err = executions.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to create Workflows Executions client: %w", err)
		}
	}
	p, backends, err := NewPipeline(ctx, cfg, slog.Default())
	if err != nil {
		return nil, fmt.Errorf("failed to build pipeline: %w", err)
	}

	f := &ExtractorFunction{
		storageClient:    storageClient,
		firestoreClient:  firestoreClient,
		executionsClient: executionsClient,
		jobs:             gcp.NewJobStore(firestoreClient, config.CollectionName),
		pipeline:         p,
		backends:         backends,
		config:           config,
	}
	f.writeObject = f.uploadObject
	f.completeJob = f.jobs.Complete
	slog.Info("Event extractor initialized.", "outputBucket", config.OutputBucket, "workflowId", config.WorkflowID)
	return f, nil
}

func (f *ExtractorFunction) Process(ctx context.Context, e GCSEvent) error {
	logCtx := slog.With("gcsBucket", e.Bucket, "gcsObject", e.Name)
	if !isPDF(e.Name) {
		logCtx.Info("Ignoring non-PDF object.")
		return nil
	}
	logCtx.Info("Processing new GCS object.")

	content, err := gcp.ReadObject(ctx, f.storageClient, e.Bucket, e.Name)
	if err != nil {
		logCtx.Error("Failed to download source PDF", "error", err)
		return err
	}

	fileHash := pdf.Hash(content)
	logCtx = logCtx.With("fileHash", fileHash)

	existingRef, existing, err := f.jobs.FindCompleted(ctx, fileHash)
	if err != nil {
		logCtx.Error("Failed to check for duplicate", "error", err)
		return err
	}
	if existingRef != nil {
		logCtx = logCtx.With("existingDocId", existingRef.ID)
		logCtx.Info("Duplicate file detected. Skipping extraction.")
		if needsHandOff(existing, f.executionsClient != nil) {
			return f.triggerWorkflow(ctx, logCtx, existingRef, *existing)
		}
		return nil
	}

	docRef, err := f.jobs.Create(ctx, models.Job{
		FileHash:         fileHash,
		OriginalFilename: e.Name,
		Status:           models.StatusProcessing,
		CreatedAt:        time.Now(),
	})
	if err != nil {
		logCtx.Error("Failed to create job document", "error", err)
		return err
	}
	logCtx = logCtx.With("documentId", docRef.ID)
	logCtx.Info("Created job document in Firestore.")

	doc, err := pdf.Load(content, gcp.GCSURI(e.Bucket, e.Name))
	if err != nil {
		return f.handleError(ctx, logCtx, docRef, "failed to load PDF", err)
	}

	runCtx, cancel := context.WithTimeout(ctx, f.config.Timeout)
	defer cancel()
	res, err := f.pipeline.Run(runCtx, doc)
	if err != nil {
		return f.handleError(ctx, logCtx, docRef, "pipeline run failed", err)
	}

	job, err := f.recordOutcome(ctx, logCtx, docRef, fileHash, e.Name, doc, res)
	if err != nil {
		return f.handleError(ctx, logCtx, docRef, "failed to record run outcome", err)
	}
	logCtx.Info("Events written.", "outputGcsUri", job.OutputGCSUri, "eventCount", job.EventCount, "status", job.Status)

	if f.executionsClient != nil {
		// A failed hand-off leaves the job complete; redelivery retries it.
		if err := f.triggerWorkflow(ctx, logCtx, docRef, job); err != nil {
			return err
		}
		logCtx.Info("Hand-off to workflow complete.")
	}
	return nil
}

// recordOutcome writes the run's events to an object of their own and points the
// job at it, so the recorded counts always describe the stored events.
func (f *ExtractorFunction) recordOutcome(ctx context.Context, logCtx *slog.Logger, docRef *firestore.DocumentRef, fileHash, sourceName string, doc *models.Document, res *pipeline.Result) (models.Job, error) {
	payload, err := assemble.Encode(res.Events)
	if err != nil {
		return models.Job{}, err
	}
	objectName := OutputObjectName(fileHash, res.RunID, sourceName)
	if err := f.writeObject(ctx, objectName, payload); err != nil {
		return models.Job{}, fmt.Errorf("failed to upload events: %w", err)
	}
	logCtx.Debug("Events uploaded.", "gcsObject", objectName, "bytes", len(payload))

	job := completedJob(res, doc, gcp.GCSURI(f.config.OutputBucket, objectName))
	if err := f.completeJob(ctx, docRef, job); err != nil {
		return models.Job{}, err
	}
	return job, nil
}

func (f *ExtractorFunction) uploadObject(ctx context.Context, objectName string, payload []byte) error {
	bucket := f.storageClient.Bucket(f.config.OutputBucket)
	return retry.Do(
		func() error {
			writeCtx, cancel := context.WithTimeout(ctx, 50*time.Second)
			defer cancel()
			// A 412 here means an earlier attempt of this same run already landed.
			return gcp.SaveToGCSAtomically(writeCtx, bucket, objectName, payload, "application/json")
		},
		retry.Context(ctx),
		retry.Attempts(4),
		retry.Delay(time.Second),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			slog.Warn("Upload failed, will retry.", "gcsObject", objectName, "attempt", n+1, "error", err)
		}),
	)
}

func (f *ExtractorFunction) triggerWorkflow(ctx context.Context, logCtx *slog.Logger, docRef *firestore.DocumentRef, job models.Job) error {
	logCtx.Info("Triggering workflow.")
	payloadBytes, err := json.Marshal(models.WorkflowArgument{
		DocumentID:   docRef.ID,
		OutputGCSUri: job.OutputGCSUri,
		EventCount:   job.EventCount,
		Partial:      job.Status == models.StatusCompletedWithGaps,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal workflow payload: %w", err)
	}
	req := &executionspb.CreateExecutionRequest{
		Parent: workflowParent(f.config.ProjectID, f.config.WorkflowLocation, f.config.WorkflowID),
		Execution: &executionspb.Execution{
			Argument: string(payloadBytes),
		},
	}
	execution, err := f.executionsClient.CreateExecution(ctx, req)
	if err != nil {
		logCtx.Error("Failed to trigger workflow execution", "error", err)
		return fmt.Errorf("failed to trigger workflow execution: %w", err)
	}
	if err := f.jobs.SetWorkflowExecution(ctx, docRef, execution.GetName()); err != nil {
		logCtx.Error("Workflow started but the job does not record it", "execution", execution.GetName(), "error", err)
		return err
	}
	return nil
}

func (f *ExtractorFunction) handleError(ctx context.Context, logCtx *slog.Logger, docRef *firestore.DocumentRef, message string, originalErr error) error {
	fullError := fmt.Sprintf("%s: %v", message, originalErr)
	logCtx.Error(message, "error", originalErr)
	if err := f.jobs.UpdateStatus(ctx, docRef, models.StatusFailed, fullError); err != nil {
		logCtx.Error("CRITICAL: Failed to update Firestore status to FAILED after a processing error.", "updateError", err)
	}
	return fmt.Errorf("%s: %w", message, originalErr)
}

// Close releases every client held by the function.
func (f *ExtractorFunction) Close() error {
	var firstErr error
	record := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	record(f.backends.Close())
	if f.executionsClient != nil {
		record(f.executionsClient.Close())
	}
	record(f.firestoreClient.Close())
	record(f.storageClient.Close())
	return firstErr
}

// OutputObjectName groups the runs of one source PDF under its content hash and
// gives every run its own object.
func OutputObjectName(fileHash, runID, sourceName string) string {
	base := path.Base(sourceName)
	base = strings.TrimSuffix(base, path.Ext(base))
	return fmt.Sprintf("%s/%s/%s.events.json", fileHash, runID, base)
}

func completedJob(res *pipeline.Result, doc *models.Document, outputURI string) models.Job {
	job := models.Job{
		Status:       models.StatusCompleted,
		PageCount:    doc.PageCount,
		BatchCount:   len(res.Batches),
		EventCount:   len(res.Events),
		OutputGCSUri: outputURI,
		RunID:        res.RunID,
	}
	if res.Stitched.Partial() {
		job.Status = models.StatusCompletedWithGaps
		for _, b := range res.Stitched.FailedBatches {
			job.FailedPages = append(job.FailedPages, b.PageRange())
		}
	}
	return job
}

// needsHandOff reports whether a completed job still has to be passed to the workflow.
func needsHandOff(job *models.Job, workflowConfigured bool) bool {
	return workflowConfigured && job.WorkflowExecution == ""
}

func isPDF(name string) bool {
	return strings.EqualFold(path.Ext(name), ".pdf")
}

func workflowParent(projectID, location, workflowID string) string {
	return fmt.Sprintf("projects/%s/locations/%s/workflows/%s", projectID, location, workflowID)
}
