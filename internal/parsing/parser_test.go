package parsing

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTextParser_Parse_SplitsParagraphsIntoChunks(t *testing.T) {
	p := NewTextParser(Config{ChunksPerPage: 2, ChunkRunes: 100})
	content := []byte("first paragraph\n\nsecond paragraph\n\nthird paragraph")

	pages, chunks, headings, err := p.Parse(context.Background(), "doc1", "doc1.txt", content)
	require.NoError(t, err)
	require.Len(t, chunks, 3)
	assert.Equal(t, "doc1", chunks[0].DocID)
	assert.Equal(t, 0, chunks[0].Page)
	assert.Equal(t, 0, chunks[1].Page)
	assert.Equal(t, 1, chunks[2].Page)
	assert.Equal(t, "paragraph", chunks[0].ElementType)
	assert.True(t, chunks[0].IsPageBoundary)
	assert.True(t, chunks[2].IsPageBoundary)
	require.Len(t, pages, 2)
	assert.Equal(t, "doc1", pages[0].DocID)
	assert.Equal(t, 0, pages[0].Number)
	assert.Equal(t, 1, pages[1].Number)
	assert.Equal(t, "txt", pages[0].Format)
	assert.Empty(t, headings)
}

func TestTextParser_Parse_WindowsOversizedParagraph(t *testing.T) {
	p := NewTextParser(Config{ChunksPerPage: 10, ChunkRunes: 10})
	content := []byte(strings.Repeat("a", 25))

	_, chunks, _, err := p.Parse(context.Background(), "doc1", "doc1.txt", content)
	require.NoError(t, err)
	require.Len(t, chunks, 3)
	assert.Equal(t, 10, len([]rune(chunks[0].Text)))
	assert.Equal(t, 5, len([]rune(chunks[2].Text)))
}

func TestTextParser_Parse_EmptyContent(t *testing.T) {
	p := NewTextParser(Config{})
	_, _, _, err := p.Parse(context.Background(), "doc1", "doc1.txt", nil)
	assert.Error(t, err)
}

func TestTextParser_Parse_InvalidUTF8(t *testing.T) {
	p := NewTextParser(Config{})
	_, _, _, err := p.Parse(context.Background(), "doc1", "doc1.txt", []byte{0xff, 0xfe, 0xfd})
	assert.Error(t, err)
}

func TestTextParser_Parse_HeadingsBuildOutline(t *testing.T) {
	p := NewTextParser(Config{ChunksPerPage: 10, ChunkRunes: 1000})
	content := []byte("# Introduction\n\nsome body text\n\n## Background\n\nmore body text")

	_, chunks, headings, err := p.Parse(context.Background(), "doc1", "doc1.md", content)
	require.NoError(t, err)
	require.Len(t, headings, 2)
	assert.Equal(t, "Introduction", headings[0].Title)
	assert.Equal(t, 1, headings[0].Level)
	assert.Equal(t, "Background", headings[1].Title)
	assert.Equal(t, 2, headings[1].Level)

	require.Len(t, chunks, 4)
	assert.Equal(t, "heading", chunks[0].ElementType)
	assert.Equal(t, "paragraph", chunks[1].ElementType)
	assert.Equal(t, "Introduction", chunks[1].ParentHeading)
	assert.Equal(t, "Background", chunks[3].ParentHeading)
	assert.Equal(t, 2, chunks[3].ParentHeadingLevel)
}
