package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var (
	cfgFile string
	debug   bool
)

var rootCmd = &cobra.Command{
	Use:   "eventflow",
	Short: "Extract a chronological list of medical events from scanned case files",
	Long: `eventflow reads a scanned inpatient case file (PDF), recognises its text with
Document AI in page batches, and asks Gemini to record every medical event
through a single structured tool call.

The result is a JSON document of events, each with a date, description,
medical findings, diagnoses, new orders and follow-up actions.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelInfo
		if debug {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./eventflow.yaml or ~/.eventflow/eventflow.yaml)",
	)
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	rootCmd.AddCommand(extractCmd)
	rootCmd.AddCommand(chunkCmd)
	rootCmd.AddCommand(configCmd)
}
