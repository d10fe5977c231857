package ingestion

import "fmt"

// VisualRecordID derives the vector store record ID for one page's visual
// embedding: "{doc_id}-visual-p{page:04d}". Re-ingesting the same document
// yields the same IDs, so Upsert naturally replaces rather than duplicates.
// Exported so callers that only have a doc_id and page number (e.g. the
// HTTP metadata endpoints) can locate a document's records directly.
func VisualRecordID(docID string, page int) string {
	return fmt.Sprintf("%s-visual-p%04d", docID, page)
}

// TextRecordID derives the vector store record ID for one text chunk:
// "{doc_id}-chunk{chunk_index:04d}".
func TextRecordID(docID string, chunk int) string {
	return fmt.Sprintf("%s-chunk%04d", docID, chunk)
}

func visualRecordID(docID string, page int) string { return VisualRecordID(docID, page) }
func textRecordID(docID string, chunk int) string   { return TextRecordID(docID, chunk) }
