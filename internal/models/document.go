package models

import "time"

// Document is a loaded source PDF. It is never mutated after loading.
type Document struct {
	ID        string
	Source    string
	PageCount int
	Content   []byte
}

// Page is one unit of OCR input, addressed by its 0-based index into the owning Document.
type Page struct {
	Index int
}

// Pages returns the ordered page view of the document.
func (d *Document) Pages() []Page {
	pages := make([]Page, d.PageCount)
	for i := range pages {
		pages[i] = Page{Index: i}
	}
	return pages
}

// Job status values written to Firestore.
const (
	StatusProcessing        = "PROCESSING"
	StatusCompleted         = "COMPLETED"
	StatusCompletedWithGaps = "COMPLETED_WITH_GAPS"
	StatusFailed            = "FAILED"
)

// Job represents the record for one extraction run in Firestore.
// It tracks the overall status and metadata of the source file.
type Job struct {
	FileHash          string    `firestore:"fileHash,omitempty"`
	OriginalFilename  string    `firestore:"originalFilename,omitempty"`
	Status            string    `firestore:"status,omitempty"`
	ErrorDetails      string    `firestore:"errorDetails,omitempty"`
	PageCount         int       `firestore:"pageCount,omitempty"`
	BatchCount        int       `firestore:"batchCount,omitempty"`
	FailedPages       []string  `firestore:"failedPages,omitempty"`
	EventCount        int       `firestore:"eventCount"`
	OutputGCSUri      string    `firestore:"outputGcsUri,omitempty"`
	RunID             string    `firestore:"runId,omitempty"` // For traceability
	WorkflowExecution string    `firestore:"workflowExecution,omitempty"`
	CreatedAt         time.Time `firestore:"createdAt,omitempty"`
	CompletedAt       time.Time `firestore:"completedAt,omitempty"`
}

// Finished reports whether the job reached a successful terminal status.
func (j Job) Finished() bool {
	return j.Status == StatusCompleted || j.Status == StatusCompletedWithGaps
}

// Clean reports whether the job finished with every page recognised. Only clean
// jobs are skipped when the same file arrives again.
func (j Job) Clean() bool {
	return j.Status == StatusCompleted
}
