package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/storage"

	"github.com/Lllllllleong/clinicaleventflow/internal/config"
	"github.com/Lllllllleong/clinicaleventflow/internal/gcp"
	"github.com/Lllllllleong/clinicaleventflow/internal/models"
)

// ErrMissingDocumentID rejects a report request without a documentId.
var ErrMissingDocumentID = errors.New("documentId is required")

// ReportFunction answers workflow lookups of extraction jobs.
type ReportFunction struct {
	storageClient   *storage.Client
	firestoreClient *firestore.Client
	jobs            *gcp.JobStore
}

func NewReport(ctx context.Context, cfg *config.Config) (*ReportFunction, error) {
	if cfg.GCP.ProjectID == "" || cfg.Service.Collection == "" {
		return nil, fmt.Errorf("gcp.project_id and service.collection must be set")
	}

	firestoreClient, err := gcp.NewFirestoreClient(ctx, cfg.GCP.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create firestore client: %w", err)
	}
	storageClient, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}

	return &ReportFunction{
		storageClient:   storageClient,
		firestoreClient: firestoreClient,
		jobs:            gcp.NewJobStore(firestoreClient, cfg.Service.Collection),
	}, nil
}

// Process loads the job and, when it finished, the events it wrote.
func (f *ReportFunction) Process(ctx context.Context, req *models.ReportRequest) (*models.ReportResponse, error) {
	logCtx := slog.With("documentId", req.DocumentID)
	if req.DocumentID == "" {
		return nil, ErrMissingDocumentID
	}

	job, err := f.jobs.Get(ctx, req.DocumentID)
	if err != nil {
		logCtx.Error("Failed to load job", "error", err)
		return nil, err
	}
	res := reportFor(req.DocumentID, job)
	if !job.Finished() {
		logCtx.Info("Job has not finished.", "status", job.Status)
		return res, nil
	}

	bucket, object, err := gcp.ParseGCSURI(job.OutputGCSUri)
	if err != nil {
		logCtx.Error("Job has an invalid output URI", "error", err)
		return nil, err
	}
	data, err := gcp.ReadObject(ctx, f.storageClient, bucket, object)
	if err != nil {
		logCtx.Error("Failed to read events", "error", err)
		return nil, err
	}
	var out models.ExtractionOutput
	if err := json.Unmarshal(data, &out); err != nil {
		logCtx.Error("Failed to decode events", "error", err)
		return nil, fmt.Errorf("failed to decode %s: %w", job.OutputGCSUri, err)
	}
	res.Events = out.Events

	logCtx.Info("Report ready.", "status", job.Status, "eventCount", len(out.Events))
	return res, nil
}

func (f *ReportFunction) Close() error {
	if err := f.firestoreClient.Close(); err != nil {
		return err
	}
	return f.storageClient.Close()
}

func reportFor(id string, job *models.Job) *models.ReportResponse {
	return &models.ReportResponse{
		DocumentID:   id,
		Status:       job.Status,
		ErrorDetails: job.ErrorDetails,
		PageCount:    job.PageCount,
		EventCount:   job.EventCount,
		FailedPages:  job.FailedPages,
		OutputGCSUri: job.OutputGCSUri,
	}
}
