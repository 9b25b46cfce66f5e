package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	exportOut string
	exportQA  bool
)

var exportCmd = &cobra.Command{
	Use:   "export <document-id>",
	Short: "Download a document's final record set as CSV",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := newClient()

		path := "/documents/" + args[0] + "/export"
		if exportQA {
			path += "?format=qa"
		}

		body, err := client.getBytes(path)
		if err != nil {
			return fmt.Errorf("export failed: %w", err)
		}

		if exportOut == "" || exportOut == "-" {
			_, err = os.Stdout.Write(body)
			return err
		}
		if err := os.WriteFile(exportOut, body, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", exportOut, err)
		}
		fmt.Printf("Wrote %d bytes to %s\n", len(body), exportOut)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVarP(&exportOut, "out", "f", "", "Output file (default: stdout)")
	exportCmd.Flags().BoolVar(&exportQA, "qa", false, "Download the QA summary instead of the CSV")
}
