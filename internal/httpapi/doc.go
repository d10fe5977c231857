// Package httpapi exposes docusearchd's ingestion and search operations
// over HTTP: document submission and status, document deletion, search,
// and metadata retrieval (decoded structure and per-page chunk links).
package httpapi
