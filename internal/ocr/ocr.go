// Package ocr runs page batches through the OCR backend.
package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/Lllllllleong/clinicaleventflow/internal/chunker"
	"github.com/Lllllllleong/clinicaleventflow/internal/models"
	"github.com/Lllllllleong/clinicaleventflow/internal/pdf"
)

// Backend recognises the text of one self-contained document payload.
type Backend interface {
	Process(ctx context.Context, content []byte, mimeType string) (string, error)
}

// Splitter cuts a batch's pages out of the document.
type Splitter func(doc *models.Document, b models.Batch) ([]byte, error)

// Config holds the limits applied to OCR calls.
type Config struct {
	PageLimit         int     // hard per-request page ceiling of the backend
	Concurrency       int     // max in-flight requests
	RequestsPerMinute float64 // 0 disables pacing
}

// Client wraps a Backend so that every batch yields exactly one OCRResult.
type Client struct {
	backend Backend
	split   Splitter
	limiter *rate.Limiter
	config  Config
	logger  *slog.Logger
}

// NewClient creates a Client. A nil splitter uses pdf.ExtractBatch.
func NewClient(backend Backend, cfg Config, split Splitter, logger *slog.Logger) *Client {
	if cfg.PageLimit < 1 {
		cfg.PageLimit = chunker.DefaultPageLimit
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if split == nil {
		split = pdf.ExtractBatch
	}
	if logger == nil {
		logger = slog.Default()
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerMinute/60), 1)
	}

	return &Client{
		backend: backend,
		split:   split,
		limiter: limiter,
		config:  cfg,
		logger:  logger,
	}
}

// PageLimit returns the per-request page ceiling this client enforces.
func (c *Client) PageLimit() int {
	return c.config.PageLimit
}

// Recognize sends one batch to the backend. Failures are reported in the result,
// never returned.
func (c *Client) Recognize(ctx context.Context, doc *models.Document, b models.Batch) models.OCRResult {
	start := time.Now()
	fail := func(format string, args ...any) models.OCRResult {
		return models.OCRResult{
			Batch:         b,
			Success:       false,
			FailureReason: fmt.Sprintf(format, args...),
			Duration:      time.Since(start),
		}
	}

	if b.Count > c.config.PageLimit {
		return fail("batch has %d pages, backend limit is %d", b.Count, c.config.PageLimit)
	}

	content, err := c.split(doc, b)
	if err != nil {
		return fail("failed to prepare batch: %v", err)
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fail("rate limiter: %v", err)
		}
	}

	text, err := c.backend.Process(ctx, content, pdf.MIMEType)
	if err != nil {
		return fail("ocr backend: %v", err)
	}

	return models.OCRResult{
		Batch:    b,
		Text:     text,
		Success:  true,
		Duration: time.Since(start),
	}
}

// RecognizeAll recognises every batch, at most Concurrency at a time, and returns
// the results in batch order once all of them have resolved.
func (c *Client) RecognizeAll(ctx context.Context, doc *models.Document, batches []models.Batch) []models.OCRResult {
	results := make([]models.OCRResult, len(batches))

	c.logger.Info("Starting concurrent OCR of batches.", "batchCount", len(batches), "concurrency", c.config.Concurrency)
	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(c.config.Concurrency)

	for i, b := range batches {
		eg.Go(func() error {
			// Each goroutine owns results[i] exclusively.
			if err := gctx.Err(); err != nil {
				results[i] = models.OCRResult{Batch: b, FailureReason: fmt.Sprintf("not attempted: %v", err)}
				return nil
			}
			res := c.Recognize(gctx, doc, b)
			if res.Success {
				c.logger.Info("OCR batch complete.", "batch", b.Index, "pages", b.PageRange(), "chars", len(res.Text), "duration", res.Duration.String())
			} else {
				c.logger.Warn("OCR batch failed.", "batch", b.Index, "pages", b.PageRange(), "error", res.FailureReason)
			}
			results[i] = res
			return nil
		})
	}
	// Workers never return errors; Wait is the join barrier.
	_ = eg.Wait()

	return results
}
