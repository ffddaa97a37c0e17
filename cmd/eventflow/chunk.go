package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Lllllllleong/clinicaleventflow/internal/chunker"
	"github.com/Lllllllleong/clinicaleventflow/internal/pdf"
)

var (
	chunkPages int
	chunkLimit int
	chunkPDF   string
)

var chunkCmd = &cobra.Command{
	Use:   "chunk",
	Short: "Print the OCR batch plan for a page count or a PDF",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		pages := chunkPages
		if chunkPDF != "" {
			doc, err := pdf.LoadFile(chunkPDF)
			if err != nil {
				return err
			}
			pages = doc.PageCount
		}

		batches, err := chunker.Chunk(pages, chunkLimit)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%d pages, limit %d: %d batches\n", pages, chunkLimit, len(batches))
		for _, b := range batches {
			fmt.Fprintf(out, "  batch %d: pages %s\n", b.Index, b.PageRange())
		}
		return nil
	},
}

func init() {
	chunkCmd.Flags().IntVar(&chunkPages, "pages", 0, "number of pages")
	chunkCmd.Flags().StringVar(&chunkPDF, "pdf", "", "read the page count from this PDF instead of --pages")
	chunkCmd.Flags().IntVar(&chunkLimit, "limit", chunker.DefaultPageLimit, "maximum pages per batch")
}
