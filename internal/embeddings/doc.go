// Package embeddings talks to docusearchd's out-of-process multi-vector
// embedding service: one HTTP call per page image or text chunk returns an
// ordered sequence of unit-normalized vectors (the late-interaction
// representation), and ScoreMultiVector computes the exact MaxSim score
// between two such sequences entirely in-process. No model training or
// inference happens inside this package.
package embeddings
