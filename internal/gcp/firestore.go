package gcp

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/Lllllllleong/clinicaleventflow/internal/models"
)

// NewFirestoreClient creates and returns a new Firestore client for the given project ID.
func NewFirestoreClient(ctx context.Context, projectID string) (*firestore.Client, error) {
	if projectID == "" {
		return nil, fmt.Errorf("projectID must be provided to create a firestore client")
	}

	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create Firestore client: %w", err)
	}

	return client, nil
}

// ErrJobNotFound is returned by Get for an unknown job ID.
var ErrJobNotFound = errors.New("job not found")

// JobStore persists extraction jobs in one Firestore collection.
type JobStore struct {
	client     *firestore.Client
	collection string
}

func NewJobStore(client *firestore.Client, collection string) *JobStore {
	return &JobStore{client: client, collection: collection}
}

// FindCompleted returns a job for fileHash that finished without gaps, or a nil
// reference if none exists.
func (s *JobStore) FindCompleted(ctx context.Context, fileHash string) (*firestore.DocumentRef, *models.Job, error) {
	docs, err := s.client.Collection(s.collection).Where("fileHash", "==", fileHash).Documents(ctx).GetAll()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to query jobs by hash: %w", err)
	}
	for _, doc := range docs {
		var job models.Job
		if err := doc.DataTo(&job); err != nil {
			return nil, nil, fmt.Errorf("failed to decode job %s: %w", doc.Ref.ID, err)
		}
		if job.Clean() {
			return doc.Ref, &job, nil
		}
	}
	return nil, nil, nil
}

// Get loads one job by document ID.
func (s *JobStore) Get(ctx context.Context, id string) (*models.Job, error) {
	snap, err := s.client.Collection(s.collection).Doc(id).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job %s: %w", id, err)
	}
	var job models.Job
	if err := snap.DataTo(&job); err != nil {
		return nil, fmt.Errorf("failed to decode job %s: %w", id, err)
	}
	return &job, nil
}

// Create adds a new job document and returns its reference.
func (s *JobStore) Create(ctx context.Context, job models.Job) (*firestore.DocumentRef, error) {
	docRef, _, err := s.client.Collection(s.collection).Add(ctx, job)
	if err != nil {
		return nil, fmt.Errorf("failed to create job document: %w", err)
	}
	return docRef, nil
}

// UpdateStatus sets the status and, when non-empty, the error details of a job.
func (s *JobStore) UpdateStatus(ctx context.Context, docRef *firestore.DocumentRef, status, errDetails string) error {
	updates := []firestore.Update{
		{Path: "status", Value: status},
	}
	if errDetails != "" {
		updates = append(updates, firestore.Update{Path: "errorDetails", Value: errDetails})
	}
	_, err := docRef.Update(ctx, updates)
	return err
}

// Complete records the outcome of a successful run.
func (s *JobStore) Complete(ctx context.Context, docRef *firestore.DocumentRef, job models.Job) error {
	updates := []firestore.Update{
		{Path: "status", Value: job.Status},
		{Path: "pageCount", Value: job.PageCount},
		{Path: "batchCount", Value: job.BatchCount},
		{Path: "failedPages", Value: job.FailedPages},
		{Path: "eventCount", Value: job.EventCount},
		{Path: "outputGcsUri", Value: job.OutputGCSUri},
		{Path: "runId", Value: job.RunID},
		{Path: "completedAt", Value: firestore.ServerTimestamp},
	}
	if _, err := docRef.Update(ctx, updates); err != nil {
		return fmt.Errorf("failed to update job %s: %w", docRef.ID, err)
	}
	return nil
}

// SetWorkflowExecution records the execution started for a completed job.
func (s *JobStore) SetWorkflowExecution(ctx context.Context, docRef *firestore.DocumentRef, execution string) error {
	if _, err := docRef.Update(ctx, []firestore.Update{{Path: "workflowExecution", Value: execution}}); err != nil {
		return fmt.Errorf("failed to record workflow execution on job %s: %w", docRef.ID, err)
	}
	return nil
}
