package services

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"cloud.google.com/go/firestore"

	"github.com/Lllllllleong/clinicaleventflow/internal/gcp"
	"github.com/Lllllllleong/clinicaleventflow/internal/models"
	"github.com/Lllllllleong/clinicaleventflow/internal/pipeline"
)

func TestOutputObjectName(t *testing.T) {
	tests := []struct {
		source string
		want   string
	}{
		{"case.pdf", "abc/run-1/case.events.json"},
		{"uploads/2024/Case File.PDF", "abc/run-1/Case File.events.json"},
		{"noext", "abc/run-1/noext.events.json"},
	}
	for _, tt := range tests {
		t.Run(tt.source, func(t *testing.T) {
			if got := OutputObjectName("abc", "run-1", tt.source); got != tt.want {
				t.Errorf("OutputObjectName() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIsPDF(t *testing.T) {
	for name, want := range map[string]bool{
		"case.pdf":      true,
		"CASE.PDF":      true,
		"notes.txt":     false,
		"pdf":           false,
		"dir/case.pdf/": false,
	} {
		if got := isPDF(name); got != want {
			t.Errorf("isPDF(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestCompletedJob(t *testing.T) {
	doc := &models.Document{ID: "h", PageCount: 20}
	batches := []models.Batch{{Index: 0, Start: 0, Count: 15}, {Index: 1, Start: 15, Count: 5}}

	t.Run("complete", func(t *testing.T) {
		res := &pipeline.Result{
			RunID:   "run-1",
			Batches: batches,
			Events:  models.EventList{{Date: "07-01-2024"}},
		}
		job := completedJob(res, doc, "gs://out/h/case.events.json")
		if job.Status != models.StatusCompleted {
			t.Errorf("Status = %q, want COMPLETED", job.Status)
		}
		if job.PageCount != 20 || job.BatchCount != 2 || job.EventCount != 1 || job.RunID != "run-1" {
			t.Errorf("completedJob() = %+v", job)
		}
		if len(job.FailedPages) != 0 {
			t.Errorf("FailedPages = %v, want none", job.FailedPages)
		}
	})

	t.Run("with gaps", func(t *testing.T) {
		res := &pipeline.Result{
			Batches:  batches,
			Stitched: models.StitchedText{FailedBatches: []models.Batch{batches[1]}},
		}
		job := completedJob(res, doc, "")
		if job.Status != models.StatusCompletedWithGaps {
			t.Errorf("Status = %q, want COMPLETED_WITH_GAPS", job.Status)
		}
		if len(job.FailedPages) != 1 || job.FailedPages[0] != "16-20" {
			t.Errorf("FailedPages = %v, want [16-20]", job.FailedPages)
		}
	})
}

func TestWorkflowParent(t *testing.T) {
	got := workflowParent("p", "us-central1", "claims")
	if got != "projects/p/locations/us-central1/workflows/claims" {
		t.Errorf("workflowParent() = %q", got)
	}
}

func TestReportFor(t *testing.T) {
	job := &models.Job{
		Status:       models.StatusFailed,
		ErrorDetails: "pipeline run failed: extract stage: model returned free text",
		PageCount:    3,
	}
	res := reportFor("doc-1", job)
	if res.DocumentID != "doc-1" || res.Status != models.StatusFailed || res.ErrorDetails != job.ErrorDetails {
		t.Errorf("reportFor() = %+v", res)
	}
	if res.Events != nil {
		t.Errorf("Events = %v, want nil before completion", res.Events)
	}
}

// memoryBucket keeps the first write of every object, like an If(DoesNotExist) upload.
type memoryBucket struct {
	objects map[string][]byte
}

func (b *memoryBucket) write(ctx context.Context, objectName string, payload []byte) error {
	if _, ok := b.objects[objectName]; !ok {
		b.objects[objectName] = payload
	}
	return nil
}

func newTestExtractor(bucket *memoryBucket, jobs *[]models.Job) *ExtractorFunction {
	return &ExtractorFunction{
		config:      ExtractorConfig{OutputBucket: "events-out"},
		writeObject: bucket.write,
		completeJob: func(ctx context.Context, docRef *firestore.DocumentRef, job models.Job) error {
			*jobs = append(*jobs, job)
			return nil
		},
	}
}

func TestRecordOutcome_RerunRecordsItsOwnEvents(t *testing.T) {
	bucket := &memoryBucket{objects: map[string][]byte{}}
	var jobs []models.Job
	f := newTestExtractor(bucket, &jobs)
	doc := &models.Document{ID: "h", PageCount: 3}
	batches := []models.Batch{{Index: 0, Start: 0, Count: 2}, {Index: 1, Start: 2, Count: 1}}

	runs := []*pipeline.Result{
		{
			RunID:    "run-1",
			Batches:  batches,
			Stitched: models.StitchedText{FailedBatches: batches[1:]},
			Events:   models.EventList{{Date: "07-01-2024", Description: "Admission"}},
		},
		{
			RunID:   "run-2",
			Batches: batches,
			Events: models.EventList{
				{Date: "07-01-2024", Description: "Admission"},
				{Date: "07-03-2024", Description: "Discharge"},
			},
		},
	}
	for _, res := range runs {
		if _, err := f.recordOutcome(context.Background(), slog.Default(), nil, "h", "case.pdf", doc, res); err != nil {
			t.Fatalf("recordOutcome(%s) error = %v", res.RunID, err)
		}
	}

	if len(jobs) != 2 {
		t.Fatalf("recorded %d jobs, want 2", len(jobs))
	}
	if jobs[0].OutputGCSUri == jobs[1].OutputGCSUri {
		t.Fatalf("both runs point at %s", jobs[0].OutputGCSUri)
	}
	for _, job := range jobs {
		_, object, err := gcp.ParseGCSURI(job.OutputGCSUri)
		if err != nil {
			t.Fatalf("ParseGCSURI() error = %v", err)
		}
		var out models.ExtractionOutput
		if err := json.Unmarshal(bucket.objects[object], &out); err != nil {
			t.Fatalf("stored object %s: %v", object, err)
		}
		if len(out.Events) != job.EventCount {
			t.Errorf("job %s records %d events, stored object has %d", job.RunID, job.EventCount, len(out.Events))
		}
	}
	if jobs[1].Status != models.StatusCompleted {
		t.Errorf("rerun Status = %q, want COMPLETED", jobs[1].Status)
	}
}

func TestRecordOutcome_UploadFailure(t *testing.T) {
	var jobs []models.Job
	f := newTestExtractor(&memoryBucket{objects: map[string][]byte{}}, &jobs)
	f.writeObject = func(ctx context.Context, objectName string, payload []byte) error {
		return errors.New("503 backend error")
	}

	res := &pipeline.Result{RunID: "run-1"}
	_, err := f.recordOutcome(context.Background(), slog.Default(), nil, "h", "case.pdf", &models.Document{PageCount: 1}, res)
	if err == nil {
		t.Fatal("recordOutcome() error = nil, want upload failure")
	}
	if len(jobs) != 0 {
		t.Errorf("job completed despite failed upload: %+v", jobs)
	}
}

func TestNeedsHandOff(t *testing.T) {
	tests := []struct {
		name       string
		job        models.Job
		configured bool
		want       bool
	}{
		{"not handed off", models.Job{Status: models.StatusCompleted}, true, true},
		{"already handed off", models.Job{Status: models.StatusCompleted, WorkflowExecution: "executions/1"}, true, false},
		{"no workflow", models.Job{Status: models.StatusCompleted}, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := needsHandOff(&tt.job, tt.configured); got != tt.want {
				t.Errorf("needsHandOff() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestReportProcess_MissingDocumentID(t *testing.T) {
	f := &ReportFunction{}
	_, err := f.Process(context.Background(), &models.ReportRequest{})
	if !errors.Is(err, ErrMissingDocumentID) {
		t.Errorf("Process() error = %v, want ErrMissingDocumentID", err)
	}
}
