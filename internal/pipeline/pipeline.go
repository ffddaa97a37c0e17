// Package pipeline chains chunking, OCR, stitching, extraction and assembly
// for one document.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Lllllllleong/clinicaleventflow/internal/assemble"
	"github.com/Lllllllleong/clinicaleventflow/internal/chunker"
	"github.com/Lllllllleong/clinicaleventflow/internal/extraction"
	"github.com/Lllllllleong/clinicaleventflow/internal/models"
	"github.com/Lllllllleong/clinicaleventflow/internal/stitch"
)

// ErrEmptyDocument aborts a run over a document with no pages.
var ErrEmptyDocument = errors.New("document has no pages")

// Recognizer is the OCR side of the pipeline, satisfied by *ocr.Client.
type Recognizer interface {
	PageLimit() int
	RecognizeAll(ctx context.Context, doc *models.Document, batches []models.Batch) []models.OCRResult
}

// Extractor is the model side of the pipeline, satisfied by *extraction.Agent.
type Extractor interface {
	Extract(ctx context.Context, record string) (*extraction.Result, error)
}

// Config holds per-pipeline settings.
type Config struct {
	// PageLimit defaults to the recognizer's limit and may not exceed it.
	PageLimit int
	Policy    stitch.Policy
	Separator string
	Logger    *slog.Logger
}

// Pipeline runs documents end to end. It keeps no per-run state.
type Pipeline struct {
	ocr       Recognizer
	agent     Extractor
	stitcher  stitch.Stitcher
	pageLimit int
	logger    *slog.Logger
}

// Result is a completed run.
type Result struct {
	RunID      string
	Batches    []models.Batch
	OCR        []models.OCRResult
	Stitched   models.StitchedText
	Extraction *extraction.Result
	Events     models.EventList
	Warnings   []string
	Duration   time.Duration
}

// New creates a Pipeline.
func New(cfg Config, recognizer Recognizer, agent Extractor) (*Pipeline, error) {
	if recognizer == nil || agent == nil {
		return nil, fmt.Errorf("pipeline requires an OCR client and an extraction agent")
	}

	limit := cfg.PageLimit
	if limit == 0 {
		limit = recognizer.PageLimit()
	}
	if limit < 1 {
		return nil, fmt.Errorf("%w: got %d", chunker.ErrInvalidLimit, limit)
	}
	if limit > recognizer.PageLimit() {
		return nil, fmt.Errorf("page limit %d exceeds the OCR backend limit of %d", limit, recognizer.PageLimit())
	}

	policy := cfg.Policy
	if policy == "" {
		policy = stitch.PolicyGapMarker
	}
	if _, err := stitch.ParsePolicy(string(policy)); err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Pipeline{
		ocr:       recognizer,
		agent:     agent,
		stitcher:  stitch.Stitcher{Policy: policy, Separator: cfg.Separator},
		pageLimit: limit,
		logger:    logger,
	}, nil
}

// Run processes doc. Failed OCR batches become warnings; any other failure is
// returned as a *StageError and the partial result is discarded.
func (p *Pipeline) Run(ctx context.Context, doc *models.Document) (*Result, error) {
	start := time.Now()
	res := &Result{RunID: uuid.NewString()}
	logCtx := p.logger.With("runId", res.RunID, "documentId", doc.ID)
	logCtx.Info("Starting pipeline run.", "source", doc.Source, "pageCount", doc.PageCount, "pageLimit", p.pageLimit)

	if doc.PageCount == 0 {
		return nil, p.abort(logCtx, StageChunk, ErrEmptyDocument)
	}
	batches, err := chunker.Chunk(doc.PageCount, p.pageLimit)
	if err != nil {
		return nil, p.abort(logCtx, StageChunk, err)
	}
	res.Batches = batches
	logCtx.Info("Document chunked.", "batchCount", len(batches))

	res.OCR = p.ocr.RecognizeAll(ctx, doc, batches)
	if err := ctx.Err(); err != nil {
		return nil, p.abort(logCtx, StageOCR, err)
	}

	stitched, err := p.stitcher.Stitch(res.OCR)
	if err != nil {
		return nil, p.abort(logCtx, StageStitch, err)
	}
	res.Stitched = stitched
	for _, r := range res.OCR {
		if !r.Success {
			res.Warnings = append(res.Warnings, fmt.Sprintf("pages %s: OCR failed: %s", r.Batch.PageRange(), r.FailureReason))
		}
	}
	switch {
	case len(stitched.FailedBatches) == len(batches):
		logCtx.Warn("Every OCR batch failed. Extracting from gap markers only.", "failedBatches", len(batches))
	case stitched.Partial():
		logCtx.Warn("Stitched text has gaps.", "failedBatches", len(stitched.FailedBatches), "policy", string(p.stitcher.Policy))
	}

	extracted, err := p.agent.Extract(ctx, stitched.Text)
	if err != nil {
		return nil, p.abort(logCtx, StageExtract, err)
	}
	res.Extraction = extracted

	events, err := assemble.Events(extracted.Arguments)
	if err != nil {
		return nil, p.abort(logCtx, StageAssemble, err)
	}
	res.Events = events
	res.Duration = time.Since(start)

	logCtx.Info("Pipeline run complete.", "eventCount", len(events), "warnings", len(res.Warnings), "duration", res.Duration.String())
	return res, nil
}

func (p *Pipeline) abort(logCtx *slog.Logger, stage Stage, err error) error {
	logCtx.Error("Pipeline run aborted.", "stage", string(stage), "error", err)
	return &StageError{Stage: stage, Err: err}
}
