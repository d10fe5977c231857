// Package search implements docusearchd's two-stage retrieval: an
// approximate lead-vector shortlist per collection followed by an exact
// MaxSim re-rank over decoded multi-vector sequences, merged across
// collections for hybrid queries.
package search
