// Package parsing provides the default ingestion.Parser implementation:
// it turns a document's raw bytes into rendered pages and extracted text
// chunks. Real page rasterization and format-specific extraction (PDF,
// DOCX, scanned image stacks) are out of scope for this package; it treats
// submitted content as UTF-8 text, splitting it into page-sized and
// chunk-sized windows, and carries the page's raw bytes through as its
// "rendering" so the visual-embedding path has something to embed.
package parsing
