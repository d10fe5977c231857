package httpapi

import (
	"encoding/json"
	"time"

	"github.com/fyrsmithlabs/contextd/internal/domain"
	"github.com/fyrsmithlabs/contextd/internal/search"
	"github.com/fyrsmithlabs/contextd/internal/vectorstore"
)

// SubmitDocumentRequest is the request body for POST /api/v1/documents.
// Content is the raw document bytes, base64-encoded by the JSON transport.
type SubmitDocumentRequest struct {
	DocID    string `json:"doc_id,omitempty"`
	Filename string `json:"filename,omitempty"`
	Content  []byte `json:"content"`
}

// SubmitDocumentResponse is the response body for POST /api/v1/documents.
type SubmitDocumentResponse struct {
	DocID  string `json:"doc_id"`
	Status string `json:"status"`
}

// DocumentStatusResponse is the response body for GET
// /api/v1/documents/{doc_id}.
type DocumentStatusResponse struct {
	DocID      string `json:"doc_id"`
	Status     string `json:"status"`
	PageCount  int    `json:"page_count"`
	ChunkCount int    `json:"chunk_count"`
	Error      string `json:"error,omitempty"`
}

// SearchRequest is the request body for POST /api/v1/search.
type SearchRequest struct {
	Query    string        `json:"query"`
	Mode     string        `json:"search_mode,omitempty"`
	NResults int           `json:"n_results,omitempty"`
	Filters  *FilterFields `json:"filters,omitempty"`
}

// DateRange bounds a timestamp field to [Start, End], either end open.
// Start and End are ISO 8601 dates (e.g. "2024-01-15").
type DateRange struct {
	Start string `json:"start,omitempty"`
	End   string `json:"end,omitempty"`
}

// PageRange bounds the page field to [Min, Max], either end open.
type PageRange struct {
	Min *int `json:"min,omitempty"`
	Max *int `json:"max,omitempty"`
}

// FilterFields is the structured search filter schema: date range on the
// record timestamp, a filename substring, a set of acceptable document
// formats, and a page-number range.
type FilterFields struct {
	DateRange        *DateRange `json:"date_range,omitempty"`
	FilenameContains string     `json:"filename_contains,omitempty"`
	DocTypes         []string   `json:"doc_types,omitempty"`
	PageRange        *PageRange `json:"page_range,omitempty"`
}

// SearchResultItem is one ranked hit in a SearchResponse. Filename,
// Timestamp, SectionPath, ElementType, and BBox are pulled from the record's
// stored metadata rather than carried natively on search.Result, since that's
// where the ingestion pipeline actually wrote them. ChunkID is the record ID
// of a text-collection hit.
type SearchResultItem struct {
	DocID       string               `json:"doc_id"`
	Score       float32              `json:"score"`
	Origin      string               `json:"origin"`
	Page        *int                 `json:"page,omitempty"`
	ChunkID     string               `json:"chunk_id,omitempty"`
	Filename    string               `json:"filename"`
	Timestamp   int64                `json:"timestamp"`
	SectionPath string               `json:"section_path,omitempty"`
	ElementType string               `json:"element_type,omitempty"`
	BBox        *domain.BoundingBox  `json:"bbox,omitempty"`
}

// SearchResponse is the response body for POST /api/v1/search.
type SearchResponse struct {
	Query        string             `json:"query"`
	TotalResults int                `json:"total_results"`
	SearchMode   string             `json:"search_mode"`
	SearchTimeMs float64            `json:"search_time_ms"`
	Results      []SearchResultItem `json:"results"`
	Partial      bool               `json:"partial"`
}

func toSearchResultItems(hits []search.Result) []SearchResultItem {
	items := make([]SearchResultItem, len(hits))
	for i, h := range hits {
		item := SearchResultItem{
			DocID:       h.DocID,
			Score:       h.Score,
			Origin:      string(h.Collection),
			Filename:    stringOrEmpty(h.Metadata["filename"]),
			Timestamp:   toInt64(h.Metadata["timestamp"]),
			SectionPath: stringOrEmpty(h.Metadata["section_path"]),
			ElementType: stringOrEmpty(h.Metadata["element_type"]),
		}
		if h.Collection == vectorstore.CollectionText {
			item.ChunkID = h.RecordID
		}
		page := h.Page
		item.Page = &page
		if raw, ok := h.Metadata["bbox"].(string); ok && raw != "" {
			var bbox domain.BoundingBox
			if err := json.Unmarshal([]byte(raw), &bbox); err == nil {
				item.BBox = &bbox
			}
		}
		items[i] = item
	}
	return items
}

// buildFilter translates the HTTP filter schema into a vectorstore.Filter.
// date_range and page_range become range conditions, filename_contains a
// substring match, and doc_types a membership condition on the stored
// format field. Unparseable date bounds are dropped rather than rejecting
// the whole query.
func buildFilter(f *FilterFields) *vectorstore.Filter {
	if f == nil {
		return nil
	}
	fb := vectorstore.NewFilterBuilder()
	any := false

	if f.DateRange != nil {
		gte := parseISODateUnix(f.DateRange.Start)
		lte := parseISODateUnix(f.DateRange.End)
		if gte != nil || lte != nil {
			fb.Range("timestamp", gte, lte)
			any = true
		}
	}
	if f.FilenameContains != "" {
		fb.Contains("filename", f.FilenameContains)
		any = true
	}
	if len(f.DocTypes) > 0 {
		vals := make([]interface{}, len(f.DocTypes))
		for i, t := range f.DocTypes {
			vals[i] = t
		}
		fb.In("format", vals...)
		any = true
	}
	if f.PageRange != nil && (f.PageRange.Min != nil || f.PageRange.Max != nil) {
		var gte, lte *float64
		if f.PageRange.Min != nil {
			v := float64(*f.PageRange.Min)
			gte = &v
		}
		if f.PageRange.Max != nil {
			v := float64(*f.PageRange.Max)
			lte = &v
		}
		fb.Range("page", gte, lte)
		any = true
	}

	if !any {
		return nil
	}
	built := fb.Build()
	return &built
}

// parseISODateUnix parses an ISO 8601 date (YYYY-MM-DD) into a Unix-second
// timestamp, or returns nil for an empty or unparseable value.
func parseISODateUnix(date string) *float64 {
	if date == "" {
		return nil
	}
	t, err := time.Parse("2006-01-02", date)
	if err != nil {
		return nil
	}
	v := float64(t.Unix())
	return &v
}
