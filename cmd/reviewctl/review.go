package main

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strconv"

	"github.com/spf13/cobra"
)

var (
	matchFileA string
	matchFileB string
)

var matchCmd = &cobra.Command{
	Use:   "match <document-id>",
	Short: "Run the matcher on a pair of extraction row files",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rowsA, err := readRows(matchFileA)
		if err != nil {
			return err
		}
		rowsB, err := readRows(matchFileB)
		if err != nil {
			return err
		}

		client := newClient()
		var result struct {
			DocumentID  string            `json:"documentId"`
			Comparisons []json.RawMessage `json:"comparisons"`
		}
		err = client.postJSON("/documents/"+args[0]+"/match", map[string]any{
			"rowsA": rowsA,
			"rowsB": rowsB,
		}, &result)
		if err != nil {
			return fmt.Errorf("match failed: %w", err)
		}

		fmt.Printf("Matched %d comparisons for document %s\n", len(result.Comparisons), result.DocumentID)
		return nil
	},
}

// readRows loads a JSON array of raw extraction rows from disk.
func readRows(path string) ([]json.RawMessage, error) {
	if path == "" {
		return []json.RawMessage{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rows file: %w", err)
	}
	var rows []json.RawMessage
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("parse rows file %s: %w", path, err)
	}
	return rows, nil
}

var (
	comparisonsStatus string
	comparisonsFilter string
)

var comparisonsCmd = &cobra.Command{
	Use:   "comparisons <document-id>",
	Short: "List a document's comparisons with their decisions",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := newClient()

		query := url.Values{}
		if comparisonsStatus != "" {
			query.Set("status", comparisonsStatus)
		}
		if comparisonsFilter != "" {
			query.Set("filter", comparisonsFilter)
		}
		path := "/documents/" + args[0] + "/comparisons"
		if len(query) > 0 {
			path += "?" + query.Encode()
		}

		var result struct {
			Comparisons []struct {
				Comparison struct {
					ID         uint64  `json:"ID"`
					Orgao      string  `json:"Orgao"`
					Ordinal    int     `json:"Ordinal"`
					NameA      string  `json:"NameA"`
					NameB      string  `json:"NameB"`
					Status     string  `json:"Status"`
					Similarity float64 `json:"Similarity"`
				} `json:"comparison"`
				Decision *struct {
					Source     string `json:"Source"`
					FinalValue string `json:"FinalValue"`
					Reviewer   string `json:"Reviewer"`
				} `json:"decision"`
			} `json:"comparisons"`
			TotalSize int `json:"totalSize"`
		}
		if err := client.getJSON(path, &result); err != nil {
			return fmt.Errorf("failed to list comparisons: %w", err)
		}

		if outputFmt == "json" || outputFmt == "yaml" {
			return printOutput(result)
		}

		headers := []string{"ID", "Ord", "Name A", "Name B", "Status", "Similarity", "Decision"}
		rows := make([][]string, 0, len(result.Comparisons))
		for _, c := range result.Comparisons {
			decision := "-"
			if c.Decision != nil {
				decision = c.Decision.Source
				if c.Decision.FinalValue != "" {
					decision += ": " + truncate(c.Decision.FinalValue, 24)
				}
			}
			rows = append(rows, []string{
				strconv.FormatUint(c.Comparison.ID, 10),
				strconv.Itoa(c.Comparison.Ordinal),
				truncate(c.Comparison.NameA, 28),
				truncate(c.Comparison.NameB, 28),
				c.Comparison.Status,
				fmt.Sprintf("%.4f", c.Comparison.Similarity),
				decision,
			})
		}
		printTable(headers, rows)
		fmt.Printf("Total: %d\n", result.TotalSize)
		return nil
	},
}

var (
	decideDocument string
	decideSource   string
	decideValue    string
	decideComment  string
)

var decideCmd = &cobra.Command{
	Use:   "decide <comparison-id>",
	Short: "Record a decision for one comparison",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := newClient()

		var decision map[string]any
		err := client.postJSON("/comparisons/"+args[0]+"/decision", map[string]any{
			"documentId":     decideDocument,
			"selectedSource": decideSource,
			"finalValue":     decideValue,
			"comment":        decideComment,
			"reviewer":       resolvedReviewer(),
		}, &decision)
		if err != nil {
			return fmt.Errorf("decision failed: %w", err)
		}
		return printJSON(decision)
	},
}

var bulkAcceptCmd = &cobra.Command{
	Use:   "bulk-accept <document-id>",
	Short: "Accept every undecided agreement of a document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := newClient()

		var result struct {
			DocumentID string `json:"documentId"`
			Accepted   int    `json:"accepted"`
		}
		if err := client.postJSON("/documents/"+args[0]+"/bulk-accept", map[string]any{}, &result); err != nil {
			return fmt.Errorf("bulk-accept failed: %w", err)
		}

		fmt.Printf("Accepted %d agreements for document %s\n", result.Accepted, result.DocumentID)
		return nil
	},
}

var approveSummary string

var approveCmd = &cobra.Command{
	Use:   "approve <document-id>",
	Short: "Irreversibly approve a document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := newClient()

		var result map[string]any
		err := client.postJSON("/documents/"+args[0]+"/approve", map[string]any{
			"approverId": resolvedReviewer(),
			"summary":    approveSummary,
		}, &result)
		if err != nil {
			return fmt.Errorf("approve failed: %w", err)
		}

		fmt.Printf("Document %s approved\n", args[0])
		return nil
	},
}

var failReason string

var failCmd = &cobra.Command{
	Use:   "fail <document-id>",
	Short: "Move a document to the FAILED terminal state",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := newClient()

		var result map[string]any
		err := client.postJSON("/documents/"+args[0]+"/fail", map[string]any{
			"reason": failReason,
		}, &result)
		if err != nil {
			return fmt.Errorf("fail failed: %w", err)
		}

		fmt.Printf("Document %s marked failed\n", args[0])
		return nil
	},
}

func init() {
	matchCmd.Flags().StringVar(&matchFileA, "rows-a", "", "Path to extractor A's JSON row file")
	matchCmd.Flags().StringVar(&matchFileB, "rows-b", "", "Path to extractor B's JSON row file")
	_ = matchCmd.MarkFlagRequired("rows-a")
	_ = matchCmd.MarkFlagRequired("rows-b")

	comparisonsCmd.Flags().StringVar(&comparisonsStatus, "status", "", "Filter by status (agreement, dispute, missing_from_a, missing_from_b)")
	comparisonsCmd.Flags().StringVar(&comparisonsFilter, "filter", "", `Filter expression, e.g. "similarity < 0.9 and ordinal > 3"`)

	decideCmd.Flags().StringVar(&decideDocument, "document", "", "Owning document id")
	decideCmd.Flags().StringVar(&decideSource, "source", "", "Selected source (extractor_a, extractor_b, manual, accepted_agreement)")
	decideCmd.Flags().StringVar(&decideValue, "value", "", "Final value for manual decisions")
	decideCmd.Flags().StringVar(&decideComment, "comment", "", "Reviewer comment")
	_ = decideCmd.MarkFlagRequired("document")
	_ = decideCmd.MarkFlagRequired("source")

	approveCmd.Flags().StringVar(&approveSummary, "summary", "", "Approval summary for the audit trail")
	failCmd.Flags().StringVar(&failReason, "reason", "", "Failure reason for the audit trail")
}
