// Package domain holds the data model shared across docusearchd's
// components: documents, pages, chunks, their structural metadata, and the
// embeddings attached to them. Types here cross-reference each other by ID
// (doc_id, chunk_id) rather than embedding full object graphs, so any
// component can load just the piece it needs.
package domain

import "time"

// Embedding is an ordered sequence of unit-normalized D-dimensional
// vectors: the multi-vector ("late interaction") representation of one
// page image or one text chunk. Vectors[0] is the lead vector used for
// Stage-1 ANN shortlisting.
type Embedding struct {
	Vectors [][]float32
}

// Dim returns the per-token dimension, or 0 for an empty embedding.
func (e Embedding) Dim() int {
	if len(e.Vectors) == 0 {
		return 0
	}
	return len(e.Vectors[0])
}

// LeadVector returns the first token's vector, used for ANN shortlisting.
func (e Embedding) LeadVector() []float32 {
	if len(e.Vectors) == 0 {
		return nil
	}
	return e.Vectors[0]
}

// DocStatus is the ingestion lifecycle state of a Document. Transitions are
// forward-only except for the failed/cancelled terminal branches reachable
// from any in-flight state.
type DocStatus string

const (
	DocSubmitted       DocStatus = "submitted"
	DocQueued          DocStatus = "queued"
	DocParsing         DocStatus = "parsing"
	DocEmbeddingVisual DocStatus = "embedding_visual"
	DocEmbeddingText   DocStatus = "embedding_text"
	DocStoring         DocStatus = "storing"
	DocCompleted       DocStatus = "completed"
	DocFailed          DocStatus = "failed"
	DocCancelled       DocStatus = "cancelled"
)

// statusOrder defines the forward-only happy path; index comparison decides
// whether a transition advances the state machine.
var statusOrder = map[DocStatus]int{
	DocSubmitted:       0,
	DocQueued:          1,
	DocParsing:         2,
	DocEmbeddingVisual: 3,
	DocEmbeddingText:   4,
	DocStoring:         5,
	DocCompleted:       6,
}

// CanTransition reports whether moving from s to next is a legal forward
// step, or a transition into one of the terminal failure states (always
// legal from any non-terminal status).
func (s DocStatus) CanTransition(next DocStatus) bool {
	if next == DocFailed || next == DocCancelled {
		return s != DocCompleted && s != DocFailed && s != DocCancelled
	}
	from, fromOK := statusOrder[s]
	to, toOK := statusOrder[next]
	if !fromOK || !toOK {
		return false
	}
	return to == from+1
}

// Terminal reports whether s is a final state with no further transitions.
func (s DocStatus) Terminal() bool {
	return s == DocCompleted || s == DocFailed || s == DocCancelled
}

// BoundingBox locates a region on a rendered page: [x1,y1,x2,y2] in pixels
// relative to the original page image, origin top-left, x1<x2, y1<y2, all
// coordinates within [0,image_width] x [0,image_height].
type BoundingBox struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

// Page is one rendered page of a source document.
type Page struct {
	DocID      string `json:"doc_id"`
	Number     int    `json:"number"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	Filename   string `json:"filename"`
	ImagePath  string `json:"image_path"`
	ThumbPath  string `json:"thumb_path"`
	Format     string `json:"format"`
	Mimetype   string `json:"mimetype"`
	ImageBytes []byte `json:"-"`
}

// TextChunk is one extracted, embeddable span of text from a document,
// carrying its place in the document's heading hierarchy when the parser
// was able to infer one.
type TextChunk struct {
	DocID   string `json:"doc_id"`
	Index   int    `json:"index"`
	Page    int    `json:"page"`
	Text    string `json:"text"`
	Section string `json:"section"`

	// ElementType classifies the chunk's source element: "heading" or
	// "paragraph".
	ElementType string `json:"element_type"`

	// ParentHeading is the title of the nearest preceding heading at or
	// above this chunk, empty if none precedes it.
	ParentHeading      string `json:"parent_heading,omitempty"`
	ParentHeadingLevel int    `json:"parent_heading_level,omitempty"`

	// SectionPath is the dotted outline position of ParentHeading, e.g. "1.2".
	SectionPath string `json:"section_path,omitempty"`

	// IsPageBoundary is true for the first chunk on its page.
	IsPageBoundary bool `json:"is_page_boundary"`

	RelatedTables   []string     `json:"related_tables,omitempty"`
	RelatedPictures []string     `json:"related_pictures,omitempty"`
	BBox            *BoundingBox `json:"bbox,omitempty"`
}

// Heading is one entry in a document's table of contents, cross-linked to
// the chunks whose text falls under it.
type Heading struct {
	Title     string   `json:"title"`
	Level     int      `json:"level"`
	Page      int      `json:"page"`
	ChunkIDs  []string `json:"chunk_ids"`
	Path      string   `json:"path"` // e.g. "1.2.3" section path
}

// ChunkContext carries bidirectional page<->chunk navigation data: which
// chunks fall on a page, and where on the page each chunk's text sits.
type ChunkContext struct {
	ChunkID string      `json:"chunk_id"`
	Page    int         `json:"page"`
	BBox    BoundingBox `json:"bbox"`
}

// DocumentStructure is the decoded form of a document's enhanced metadata:
// its heading tree and chunk navigation data. It is encoded via
// internal/codec's StructureCodec and stored as one flat metadata string,
// never as a nested object, per the vector store's flat-metadata contract.
type DocumentStructure struct {
	DocID    string         `json:"doc_id"`
	Headings []Heading      `json:"headings"`
	Chunks   []ChunkContext `json:"chunks"`
}

// Document is the top-level unit of ingestion and deletion.
type Document struct {
	ID          string    `json:"id"`
	Status      DocStatus `json:"status"`
	PageCount   int       `json:"page_count"`
	ChunkCount  int       `json:"chunk_count"`
	SubmittedAt time.Time `json:"submitted_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	Error       string    `json:"error,omitempty"`
}
