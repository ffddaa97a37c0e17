// Package stitch joins per-batch OCR output into one document text.
package stitch

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Lllllllleong/clinicaleventflow/internal/models"
)

// Policy decides how a failed batch is represented in the stitched text.
type Policy string

const (
	// PolicyGapMarker replaces the missing text with an explicit marker.
	PolicyGapMarker Policy = "gap_marker"
	// PolicySkip leaves the missing text out.
	PolicySkip Policy = "skip"
)

// DefaultSeparator is placed between consecutive batch segments.
const DefaultSeparator = "\n\n---\n\n"

var (
	ErrOutOfOrder    = errors.New("ocr results are not in batch order")
	ErrUnknownPolicy = errors.New("unknown degradation policy")
)

// ParsePolicy maps a configured policy name to a Policy. Empty means gap marker.
func ParsePolicy(name string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(name))) {
	case "", PolicyGapMarker:
		return PolicyGapMarker, nil
	case PolicySkip:
		return PolicySkip, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownPolicy, name)
}

// GapMarker is the text substituted for a failed batch under PolicyGapMarker.
func GapMarker(b models.Batch) string {
	if b.Count == 1 {
		return fmt.Sprintf("[OCR GAP: page %s could not be recognised]", b.PageRange())
	}
	return fmt.Sprintf("[OCR GAP: pages %s could not be recognised]", b.PageRange())
}

// Stitcher concatenates OCR results. The zero value uses the gap marker policy
// and DefaultSeparator.
type Stitcher struct {
	Policy    Policy
	Separator string
}

// Stitch joins results in batch order. The results must be exactly one per batch,
// sorted by batch index, and contiguous from page 0; anything else is rejected
// rather than reordered.
func (s Stitcher) Stitch(results []models.OCRResult) (models.StitchedText, error) {
	policy := s.Policy
	if policy == "" {
		policy = PolicyGapMarker
	}
	if policy != PolicyGapMarker && policy != PolicySkip {
		return models.StitchedText{}, fmt.Errorf("%w: %q", ErrUnknownPolicy, policy)
	}
	sep := s.Separator
	if sep == "" {
		sep = DefaultSeparator
	}

	var (
		segments []string
		failed   []models.Batch
		nextPage int
	)
	for i, res := range results {
		if res.Batch.Index != i || res.Batch.Start != nextPage {
			return models.StitchedText{}, fmt.Errorf("%w: position %d holds batch %d starting at page %d", ErrOutOfOrder, i, res.Batch.Index, res.Batch.Start)
		}
		nextPage = res.Batch.End()

		if res.Success {
			segments = append(segments, res.Text)
			continue
		}

		failed = append(failed, res.Batch)
		if policy == PolicyGapMarker {
			segments = append(segments, GapMarker(res.Batch))
		}
	}

	return models.StitchedText{
		Text:          strings.Join(segments, sep),
		FailedBatches: failed,
	}, nil
}
