package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	serverURL string
	outputFmt string
	reviewer  string
)

var rootCmd = &cobra.Command{
	Use:   "reviewctl",
	Short: "CLI for the candidate-list review server",
	Long: `reviewctl drives the reconciliation and review workflow from the terminal:
run matches, inspect comparisons, record decisions, bulk-accept agreements,
approve documents, and export the final record set.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8080", "Review server URL")
	rootCmd.PersistentFlags().StringVarP(&outputFmt, "output", "o", "table", "Output format: table, json, yaml")
	rootCmd.PersistentFlags().StringVar(&reviewer, "reviewer", "", "Reviewer identity (default: from LISTREVIEW_REVIEWER env)")

	rootCmd.AddCommand(documentsCmd)
	rootCmd.AddCommand(matchCmd)
	rootCmd.AddCommand(comparisonsCmd)
	rootCmd.AddCommand(decideCmd)
	rootCmd.AddCommand(bulkAcceptCmd)
	rootCmd.AddCommand(approveCmd)
	rootCmd.AddCommand(failCmd)
	rootCmd.AddCommand(auditCmd)
	rootCmd.AddCommand(disputedCmd)
	rootCmd.AddCommand(exportCmd)
}

// resolvedReviewer returns the effective reviewer identity.
// Priority: --reviewer flag > LISTREVIEW_REVIEWER env var.
func resolvedReviewer() string {
	if reviewer != "" {
		return reviewer
	}
	return os.Getenv("LISTREVIEW_REVIEWER")
}
