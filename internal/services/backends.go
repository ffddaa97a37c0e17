package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Lllllllleong/clinicaleventflow/internal/config"
	"github.com/Lllllllleong/clinicaleventflow/internal/extraction"
	"github.com/Lllllllleong/clinicaleventflow/internal/gcp"
	"github.com/Lllllllleong/clinicaleventflow/internal/ocr"
	"github.com/Lllllllleong/clinicaleventflow/internal/pipeline"
	"github.com/Lllllllleong/clinicaleventflow/internal/stitch"
)

// Backends holds the Google clients behind a pipeline.
type Backends struct {
	DocumentAI *gcp.DocumentAIClient
	Vertex     *gcp.VertexClient
}

func (b *Backends) Close() error {
	var errs []error
	if b.DocumentAI != nil {
		errs = append(errs, b.DocumentAI.Close())
	}
	if b.Vertex != nil {
		errs = append(errs, b.Vertex.Close())
	}
	return errors.Join(errs...)
}

// NewPipeline wires Document AI and Vertex AI into a pipeline. The caller must
// Close the returned Backends.
func NewPipeline(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*pipeline.Pipeline, *Backends, error) {
	if logger == nil {
		logger = slog.Default()
	}
	directive, err := cfg.Directive()
	if err != nil {
		return nil, nil, err
	}

	backends := &Backends{}
	backends.DocumentAI, err = gcp.NewDocumentAIClient(ctx, cfg.GCP.ProjectID, cfg.GCP.Location, cfg.OCR.ProcessorID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create OCR backend: %w", err)
	}
	backends.Vertex, err = gcp.NewVertexClient(ctx, cfg.GCP.ProjectID, cfg.GCP.Region, cfg.Model.Name)
	if err != nil {
		_ = backends.Close()
		return nil, nil, fmt.Errorf("failed to create model backend: %w", err)
	}

	ocrClient := ocr.NewClient(backends.DocumentAI, ocr.Config{
		PageLimit:         cfg.OCR.PageLimit,
		Concurrency:       cfg.OCR.Concurrency,
		RequestsPerMinute: cfg.OCR.RequestsPerMinute,
	}, nil, logger)

	agent, err := extraction.NewAgent(backends.Vertex.ExtractorModel, extraction.Config{
		DirectiveTemplate: directive,
		Logger:            logger,
	})
	if err != nil {
		_ = backends.Close()
		return nil, nil, err
	}

	p, err := pipeline.New(pipeline.Config{
		PageLimit: cfg.OCR.PageLimit,
		Policy:    stitch.Policy(cfg.Pipeline.Policy),
		Separator: cfg.Pipeline.Separator,
		Logger:    logger,
	}, ocrClient, agent)
	if err != nil {
		_ = backends.Close()
		return nil, nil, err
	}
	return p, backends, nil
}
