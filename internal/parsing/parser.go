package parsing

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/fyrsmithlabs/contextd/internal/domain"
)

// Config controls how TextParser splits a document into pages and chunks.
type Config struct {
	// ChunksPerPage bounds how many text chunks are grouped under one
	// synthetic page before a new page boundary starts.
	ChunksPerPage int

	// ChunkRunes is the target chunk size in runes. A paragraph longer
	// than ChunkRunes is itself split into ChunkRunes-sized windows.
	ChunkRunes int
}

// ApplyDefaults fills unset fields with their defaults.
func (c *Config) ApplyDefaults() {
	if c.ChunksPerPage == 0 {
		c.ChunksPerPage = 4
	}
	if c.ChunkRunes == 0 {
		c.ChunkRunes = 1000
	}
}

// TextParser implements ingestion.Parser for UTF-8 text content. It
// paragraph-splits the input, recognizes Markdown ATX headings (`#` .. `######`)
// to build a heading outline, windows any oversized paragraph, and groups the
// resulting chunks into synthetic pages.
//
// TextParser has no rasterizer: Page.ImagePath/ThumbPath and bounding boxes
// are left unset (this format has no visual layout to point at), and
// Page.Width reports the synthetic page's rendered-text byte count and
// Page.Height is always 1, in lieu of real pixel dimensions.
type TextParser struct {
	config Config
}

// NewTextParser creates a TextParser with the given config.
func NewTextParser(config Config) *TextParser {
	config.ApplyDefaults()
	return &TextParser{config: config}
}

// paragraphUnit is one paragraph after heading detection, before rune
// windowing.
type paragraphUnit struct {
	text        string
	elementType string // "heading" or "paragraph"
	level       int    // ATX heading level, 0 for paragraphs
	title       string // heading text with the marker stripped
}

// windowUnit is one rune-window, with a back-reference to the paragraphUnit
// (and therefore heading context) it came from.
type windowUnit struct {
	text    string
	unitIdx int
}

// Parse splits content into pages, text chunks, and the document's heading
// outline. docID is attached to every returned Page and TextChunk.
func (p *TextParser) Parse(ctx context.Context, docID, filename string, content []byte) ([]domain.Page, []domain.TextChunk, []domain.Heading, error) {
	if len(content) == 0 {
		return nil, nil, nil, fmt.Errorf("parsing: empty content")
	}
	if !utf8.Valid(content) {
		return nil, nil, nil, fmt.Errorf("parsing: content is not valid UTF-8")
	}

	paragraphs := splitParagraphs(string(content))
	if len(paragraphs) == 0 {
		paragraphs = []string{string(content)}
	}

	units := make([]paragraphUnit, 0, len(paragraphs))
	for _, para := range paragraphs {
		if level, title := atxHeading(para); level > 0 {
			units = append(units, paragraphUnit{text: para, elementType: "heading", level: level, title: title})
			continue
		}
		units = append(units, paragraphUnit{text: para, elementType: "paragraph"})
	}

	// windows parallels units but after rune-windowing oversized paragraphs;
	// each window carries its source unit index so heading context can be
	// looked up per window.
	var windows []windowUnit
	for ui, u := range units {
		if u.elementType == "heading" {
			windows = append(windows, windowUnit{text: u.text, unitIdx: ui})
			continue
		}
		for _, w := range windowRunes(u.text, p.config.ChunkRunes) {
			windows = append(windows, windowUnit{text: w, unitIdx: ui})
		}
	}

	pathCounters := make([]int, 7) // index by heading level 1..6
	var (
		parentHeading string
		parentLevel   int
		sectionPath   string
	)

	chunks := make([]domain.TextChunk, 0, len(windows))
	pageOf := make([]int, len(windows))
	var headings []domain.Heading

	for i, w := range windows {
		page := i / p.config.ChunksPerPage
		pageOf[i] = page

		u := units[w.unitIdx]
		if u.elementType == "heading" {
			pathCounters[u.level]++
			for lvl := u.level + 1; lvl < len(pathCounters); lvl++ {
				pathCounters[lvl] = 0
			}
			sectionPath = joinPath(pathCounters, u.level)
			parentHeading = u.title
			parentLevel = u.level

			headings = append(headings, domain.Heading{
				Title: u.title,
				Level: u.level,
				Page:  page,
				Path:  sectionPath,
			})
		}

		chunks = append(chunks, domain.TextChunk{
			DocID:              docID,
			Index:              i,
			Page:               page,
			Text:               w.text,
			Section:            parentHeading,
			ElementType:        u.elementType,
			ParentHeading:      parentHeading,
			ParentHeadingLevel: parentLevel,
			SectionPath:        sectionPath,
			IsPageBoundary:     i == 0 || pageOf[i-1] != page,
		})
	}

	pageCount := 0
	if len(pageOf) > 0 {
		pageCount = pageOf[len(pageOf)-1] + 1
	}
	format := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
	if format == "" {
		format = "txt"
	}
	pages := make([]domain.Page, pageCount)
	for n := 0; n < pageCount; n++ {
		body := pageBytes(windows, pageOf, n)
		pages[n] = domain.Page{
			DocID:      docID,
			Number:     n,
			Width:      len(body),
			Height:     1,
			Filename:   filename,
			Format:     format,
			Mimetype:   mimetypeForFormat(format),
			ImageBytes: body,
		}
	}

	return pages, chunks, headings, nil
}

func pageBytes(windows []windowUnit, pageOf []int, n int) []byte {
	var buf bytes.Buffer
	for i, w := range windows {
		if pageOf[i] == n {
			buf.WriteString(w.text)
			buf.WriteByte('\n')
		}
	}
	return buf.Bytes()
}

// splitParagraphs splits text on blank lines, trimming whitespace and
// dropping empty results.
func splitParagraphs(text string) []string {
	raw := strings.Split(text, "\n\n")
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		r = strings.TrimSpace(r)
		if r != "" {
			out = append(out, r)
		}
	}
	return out
}

// atxHeading reports whether text is a Markdown ATX heading ("# Title" through
// "###### Title"), returning its level and title text with the marker and
// surrounding whitespace stripped. level is 0 when text is not a heading.
func atxHeading(text string) (level int, title string) {
	trimmed := strings.TrimLeft(text, " \t")
	i := 0
	for i < len(trimmed) && trimmed[i] == '#' {
		i++
	}
	if i == 0 || i > 6 || i >= len(trimmed) || trimmed[i] != ' ' {
		return 0, ""
	}
	return i, strings.TrimSpace(trimmed[i+1:])
}

// joinPath renders the dotted section path ("1.2.3") for the counters active
// through level.
func joinPath(counters []int, level int) string {
	parts := make([]string, 0, level)
	for l := 1; l <= level; l++ {
		if counters[l] == 0 {
			continue
		}
		parts = append(parts, strconv.Itoa(counters[l]))
	}
	return strings.Join(parts, ".")
}

// windowRunes splits text into rune windows of at most size runes each.
func windowRunes(text string, size int) []string {
	runes := []rune(text)
	if len(runes) <= size {
		return []string{text}
	}
	var out []string
	for start := 0; start < len(runes); start += size {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		out = append(out, string(runes[start:end]))
	}
	return out
}

// mimetypeForFormat returns a best-effort MIME type for a lowercase file
// extension (without the leading dot).
func mimetypeForFormat(format string) string {
	switch format {
	case "md", "markdown":
		return "text/markdown"
	case "html", "htm":
		return "text/html"
	case "txt", "":
		return "text/plain"
	default:
		return "text/plain"
	}
}
