// Package vectorstore provides the narrow two-collection vector store
// contract docusearchd's ingestion and search components use: upsert,
// lead-vector ANN query, batch get, filtered delete, and heartbeat.
//
// # Collections
//
// Exactly two named collections exist: "visual" (one record per rendered
// page) and "text" (one record per extracted chunk). Records in both
// collections store their full multi-vector sequence as an opaque,
// codec-encoded payload field alongside a single lead vector used for ANN
// indexing.
//
// # Metadata
//
// Record metadata is flat: strings, numbers, booleans, and JSON-string
// arrays. Nested structure (headings, chunk cross-links) is encoded via
// internal/codec's StructureCodec into one flat string field, never stored
// as a nested object — the store itself has no concept of document
// structure.
//
// # Usage
//
//	client, err := vectorstore.NewQdrantClient(vectorstore.Config{
//	    Host: "localhost", Port: 6334, VectorSize: 128,
//	})
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Upsert(ctx, vectorstore.CollectionVisual, []vectorstore.Record{...})
package vectorstore
