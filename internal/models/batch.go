package models

import (
	"fmt"
	"time"
)

// Batch is a contiguous run of page indices submitted together to the OCR backend.
type Batch struct {
	Index int // position in the batch plan
	Start int // first page index, 0-based
	Count int // number of pages
}

// End returns the exclusive end page index.
func (b Batch) End() int {
	return b.Start + b.Count
}

// Pages returns the page indices covered by the batch.
func (b Batch) Pages() []int {
	pages := make([]int, b.Count)
	for i := range pages {
		pages[i] = b.Start + i
	}
	return pages
}

// PageRange renders the batch as a 1-based, human-facing range ("3" or "3-5").
func (b Batch) PageRange() string {
	if b.Count == 1 {
		return fmt.Sprintf("%d", b.Start+1)
	}
	return fmt.Sprintf("%d-%d", b.Start+1, b.End())
}

// OCRResult is the outcome of recognising one batch. Exactly one exists per batch.
type OCRResult struct {
	Batch         Batch
	Text          string
	Success       bool
	FailureReason string
	Duration      time.Duration
}

// StitchedText is the document-level text assembled from all batch results.
type StitchedText struct {
	Text          string
	FailedBatches []Batch
}

// Partial reports whether any batch is missing from the text.
func (s StitchedText) Partial() bool {
	return len(s.FailedBatches) > 0
}
