package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

type documentInfo struct {
	ID           string `json:"ID"`
	FileName     string `json:"FileName"`
	FileHash     string `json:"FileHash"`
	FileSize     int64  `json:"FileSize"`
	DetectedType string `json:"DetectedType"`
	Status       string `json:"Status"`
	CreatedAt    string `json:"CreatedAt"`
	ApprovedAt   string `json:"ApprovedAt"`
}

var documentsCmd = &cobra.Command{
	Use:   "documents",
	Short: "Manage documents under review",
}

var documentsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List documents, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		client := newClient()

		var result struct {
			Documents []documentInfo `json:"documents"`
			TotalSize int            `json:"totalSize"`
		}
		if err := client.getJSON("/documents", &result); err != nil {
			return fmt.Errorf("failed to list documents: %w", err)
		}

		if outputFmt == "json" || outputFmt == "yaml" {
			return printOutput(result)
		}

		headers := []string{"ID", "File", "Status", "Created"}
		rows := make([][]string, 0, len(result.Documents))
		for _, d := range result.Documents {
			rows = append(rows, []string{
				truncate(d.ID, 36),
				d.FileName,
				d.Status,
				d.CreatedAt,
			})
		}
		printTable(headers, rows)
		fmt.Printf("Total: %d\n", result.TotalSize)
		return nil
	},
}

var documentsGetCmd = &cobra.Command{
	Use:   "get <document-id>",
	Short: "Get document details",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := newClient()

		var doc documentInfo
		if err := client.getJSON("/documents/"+args[0], &doc); err != nil {
			return fmt.Errorf("failed to get document: %w", err)
		}
		return printJSON(doc)
	},
}

var (
	docFileName string
	docFileHash string
	docFileSize int64
	docType     string
)

var documentsCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Register a new document for review",
	RunE: func(cmd *cobra.Command, args []string) error {
		client := newClient()

		var doc documentInfo
		err := client.postJSON("/documents", map[string]any{
			"fileName":     docFileName,
			"fileHash":     docFileHash,
			"fileSize":     docFileSize,
			"detectedType": docType,
		}, &doc)
		if err != nil {
			return fmt.Errorf("failed to create document: %w", err)
		}
		return printJSON(doc)
	},
}

var disputedCmd = &cobra.Command{
	Use:   "disputed",
	Short: "List documents that still contain disputes",
	RunE: func(cmd *cobra.Command, args []string) error {
		client := newClient()

		var result struct {
			Documents []struct {
				DocumentID     string `json:"documentId"`
				FileName       string `json:"fileName"`
				DocumentStatus string `json:"documentStatus"`
				DisputeCount   int64  `json:"disputeCount"`
				LatestActivity string `json:"latestActivity"`
			} `json:"documents"`
			TotalSize int `json:"totalSize"`
		}
		if err := client.getJSON("/documents/disputed", &result); err != nil {
			return fmt.Errorf("failed to list disputed documents: %w", err)
		}

		if outputFmt == "json" || outputFmt == "yaml" {
			return printOutput(result)
		}

		headers := []string{"Document", "File", "Status", "Disputes", "Latest"}
		rows := make([][]string, 0, len(result.Documents))
		for _, d := range result.Documents {
			rows = append(rows, []string{
				truncate(d.DocumentID, 36),
				d.FileName,
				d.DocumentStatus,
				strconv.FormatInt(d.DisputeCount, 10),
				d.LatestActivity,
			})
		}
		printTable(headers, rows)
		fmt.Printf("Total: %d\n", result.TotalSize)
		return nil
	},
}

var auditCmd = &cobra.Command{
	Use:   "audit <document-id>",
	Short: "Show a document's audit trail, newest first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := newClient()

		var result struct {
			Entries []struct {
				ID         string `json:"ID"`
				DocumentID string `json:"DocumentID"`
				ActorID    string `json:"ActorID"`
				Action     string `json:"Action"`
				Summary    string `json:"Summary"`
				CreatedAt  string `json:"CreatedAt"`
			} `json:"entries"`
			TotalSize int `json:"totalSize"`
		}
		if err := client.getJSON("/documents/"+args[0]+"/audit", &result); err != nil {
			return fmt.Errorf("failed to list audit entries: %w", err)
		}

		if outputFmt == "json" || outputFmt == "yaml" {
			return printOutput(result)
		}

		headers := []string{"Action", "Actor", "Summary", "At"}
		rows := make([][]string, 0, len(result.Entries))
		for _, e := range result.Entries {
			rows = append(rows, []string{
				e.Action,
				e.ActorID,
				truncate(e.Summary, 48),
				e.CreatedAt,
			})
		}
		printTable(headers, rows)
		return nil
	},
}

func init() {
	documentsCreateCmd.Flags().StringVar(&docFileName, "file-name", "", "Source file name")
	documentsCreateCmd.Flags().StringVar(&docFileHash, "file-hash", "", "Source file hash")
	documentsCreateCmd.Flags().Int64Var(&docFileSize, "file-size", 0, "Source file size in bytes")
	documentsCreateCmd.Flags().StringVar(&docType, "type", "", "Detected document type")
	_ = documentsCreateCmd.MarkFlagRequired("file-name")

	documentsCmd.AddCommand(documentsListCmd)
	documentsCmd.AddCommand(documentsGetCmd)
	documentsCmd.AddCommand(documentsCreateCmd)
}
