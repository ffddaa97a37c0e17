// Package pdf loads source PDFs and cuts page batches out of them for OCR.
package pdf

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/Lllllllleong/clinicaleventflow/internal/models"
)

// MIMEType is the content type of every payload produced by this package.
const MIMEType = "application/pdf"

// LoadFile reads a PDF from disk and loads it as a Document.
func LoadFile(path string) (*models.Document, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return Load(content, filepath.Base(path))
}

// Load validates and optimises the PDF, then counts its pages. The document ID is
// the sha256 of the original bytes so the same upload always maps to the same ID.
func Load(content []byte, source string) (*models.Document, error) {
	var optimized bytes.Buffer
	if err := api.Optimize(bytes.NewReader(content), &optimized, relaxedConfig()); err != nil {
		return nil, fmt.Errorf("failed to validate/optimize PDF: %w", err)
	}

	pageCount, err := api.PageCount(bytes.NewReader(optimized.Bytes()), relaxedConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to get page count: %w", err)
	}

	return &models.Document{
		ID:        Hash(content),
		Source:    source,
		PageCount: pageCount,
		Content:   optimized.Bytes(),
	}, nil
}

// ExtractBatch writes the batch's pages into a standalone PDF.
func ExtractBatch(doc *models.Document, b models.Batch) ([]byte, error) {
	if b.Count < 1 || b.Start < 0 || b.End() > doc.PageCount {
		return nil, fmt.Errorf("batch %d (pages %s) outside document of %d pages", b.Index, b.PageRange(), doc.PageCount)
	}

	// pdfcpu page selections are 1-based and inclusive.
	selection := fmt.Sprintf("%d-%d", b.Start+1, b.End())
	var out bytes.Buffer
	if err := api.Trim(bytes.NewReader(doc.Content), &out, []string{selection}, relaxedConfig()); err != nil {
		return nil, fmt.Errorf("failed to extract pages %s: %w", b.PageRange(), err)
	}
	return out.Bytes(), nil
}

// Hash returns the hex sha256 of content.
func Hash(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

func relaxedConfig() *model.Configuration {
	cfg := model.NewDefaultConfiguration()
	cfg.ValidationMode = model.ValidationRelaxed
	return cfg
}
