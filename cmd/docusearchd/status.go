package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/contextd/internal/httpapi"
)

var statusCmd = &cobra.Command{
	Use:   "status <doc_id>",
	Short: "Check a document's ingestion status",
	Args:  cobra.ExactArgs(1),
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	client := newAPIClient(serverURL)
	var resp httpapi.DocumentStatusResponse
	if err := client.do("GET", "/api/v1/documents/"+args[0], nil, &resp); err != nil {
		return err
	}

	fmt.Printf("doc_id: %s\nstatus: %s\npages: %d\nchunks: %d\n", resp.DocID, resp.Status, resp.PageCount, resp.ChunkCount)
	if resp.Error != "" {
		fmt.Printf("error: %s\n", resp.Error)
	}
	return nil
}

var deleteCmd = &cobra.Command{
	Use:   "delete <doc_id>",
	Short: "Delete a document and its records",
	Args:  cobra.ExactArgs(1),
	RunE:  runDelete,
}

func runDelete(cmd *cobra.Command, args []string) error {
	client := newAPIClient(serverURL)
	if err := client.do("DELETE", "/api/v1/documents/"+args[0], nil, nil); err != nil {
		return err
	}
	fmt.Printf("deleted %s\n", args[0])
	return nil
}

var structureCmd = &cobra.Command{
	Use:   "structure <doc_id> <page>",
	Short: "Print one page's heading tree and chunk navigation data",
	Args:  cobra.ExactArgs(2),
	RunE:  runStructure,
}

func runStructure(cmd *cobra.Command, args []string) error {
	client := newAPIClient(serverURL)
	var structure map[string]interface{}
	if err := client.do("GET", "/api/v1/documents/"+args[0]+"/pages/"+args[1]+"/structure", nil, &structure); err != nil {
		return err
	}

	headings, _ := structure["headings"].([]interface{})
	chunks, _ := structure["chunks"].([]interface{})
	fmt.Printf("doc_id: %v\nheadings: %d\nchunks: %d\n", structure["doc_id"], len(headings), len(chunks))
	return nil
}
