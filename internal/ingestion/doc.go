// Package ingestion runs documents through docusearchd's ingestion state
// machine: parse, embed (visual and text), enrich metadata, store, and
// finalize. A bounded worker pool processes one document per worker, with
// cooperative cancellation checked at each stage boundary. Submit is
// idempotent by document ID and status lookups are safe for concurrent
// readers while exactly one worker owns a given document's mutations.
package ingestion
