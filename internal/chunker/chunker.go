// Package chunker plans how a document's pages are split into OCR requests.
package chunker

import (
	"errors"
	"fmt"

	"github.com/Lllllllleong/clinicaleventflow/internal/models"
)

// DefaultPageLimit is the page ceiling of a single online Document AI request.
const DefaultPageLimit = 15

var (
	ErrInvalidPageCount = errors.New("page count must not be negative")
	ErrInvalidLimit     = errors.New("page limit must be at least 1")
)

// Chunk splits the page range [0, total) into ordered, contiguous batches of at
// most limit pages. A zero-page document yields an empty plan.
func Chunk(total, limit int) ([]models.Batch, error) {
	if total < 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidPageCount, total)
	}
	if limit < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidLimit, limit)
	}

	// Written to stay clear of overflow when limit is near math.MaxInt.
	n := total / limit
	if total%limit != 0 {
		n++
	}
	batches := make([]models.Batch, 0, n)
	for start := 0; start < total; {
		count := min(limit, total-start)
		batches = append(batches, models.Batch{
			Index: len(batches),
			Start: start,
			Count: count,
		})
		start += count
	}
	return batches, nil
}
