package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/Lllllllleong/clinicaleventflow/internal/assemble"
	"github.com/Lllllllleong/clinicaleventflow/internal/config"
	"github.com/Lllllllleong/clinicaleventflow/internal/pdf"
	"github.com/Lllllllleong/clinicaleventflow/internal/services"
)

var (
	casePDFPath    string
	outputJSONPath string
	failOnGaps     bool
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Extract medical events from a case PDF into a JSON file",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}

		doc, err := pdf.LoadFile(casePDFPath)
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Pipeline.Timeout)
		defer cancel()

		p, backends, err := services.NewPipeline(ctx, cfg, slog.Default())
		if err != nil {
			return err
		}
		defer backends.Close()

		res, err := p.Run(ctx, doc)
		if err != nil {
			return err
		}

		data, err := assemble.Encode(res.Events)
		if err != nil {
			return err
		}
		if err := os.WriteFile(outputJSONPath, data, 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", outputJSONPath, err)
		}

		for _, w := range res.Warnings {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s\n", w)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d events to %s\n", len(res.Events), outputJSONPath)

		if failOnGaps && res.Stitched.Partial() {
			return fmt.Errorf("%d OCR batches failed", len(res.Stitched.FailedBatches))
		}
		return nil
	},
}

func init() {
	extractCmd.Flags().StringVar(&casePDFPath, "path-to-case-pdf", "", "path to the scanned case file (PDF)")
	extractCmd.Flags().StringVar(&outputJSONPath, "path-to-output-json", "", "where to write the extracted events")
	extractCmd.Flags().BoolVar(&failOnGaps, "fail-on-gaps", false, "exit non-zero if any page could not be recognised")
	_ = extractCmd.MarkFlagRequired("path-to-case-pdf")
	_ = extractCmd.MarkFlagRequired("path-to-output-json")
}
