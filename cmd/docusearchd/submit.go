package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/contextd/internal/httpapi"
)

var submitDocID string

var submitCmd = &cobra.Command{
	Use:   "submit [file]",
	Short: "Submit a document for ingestion",
	Long: `Submit a document for ingestion, reading its content from a file or
stdin.

Examples:
  docusearchd submit report.txt
  cat report.txt | docusearchd submit -
  docusearchd submit --doc-id report-2026 report.txt`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSubmit,
}

func init() {
	submitCmd.Flags().StringVar(&submitDocID, "doc-id", "", "document ID (server generates one if omitted)")
}

func runSubmit(cmd *cobra.Command, args []string) error {
	var content []byte
	var err error
	if len(args) == 0 || args[0] == "-" {
		content, err = io.ReadAll(os.Stdin)
	} else {
		content, err = os.ReadFile(args[0])
	}
	if err != nil {
		return fmt.Errorf("reading document content: %w", err)
	}
	if len(content) == 0 {
		return fmt.Errorf("no content to submit")
	}

	var filename string
	if len(args) > 0 && args[0] != "-" {
		filename = filepath.Base(args[0])
	}

	client := newAPIClient(serverURL)
	var resp httpapi.SubmitDocumentResponse
	req := httpapi.SubmitDocumentRequest{DocID: submitDocID, Filename: filename, Content: content}
	if err := client.do("POST", "/api/v1/documents", req, &resp); err != nil {
		return err
	}

	fmt.Printf("doc_id: %s\nstatus: %s\n", resp.DocID, resp.Status)
	return nil
}
