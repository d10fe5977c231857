package embeddings

import "github.com/fyrsmithlabs/contextd/internal/domain"

// maxSim computes the MaxSim late-interaction score between query (n
// vectors) and doc (m vectors), both of dimension d: for every query vector,
// the maximum dot product against any doc vector, summed across query
// vectors. This is the Q*D^T matmul reduced by per-row max and a final sum,
// computed directly against the existing per-vector slices so the inner loop
// performs no per-element allocation.
func maxSim(query, doc domain.Embedding) (float32, error) {
	n := len(query.Vectors)
	m := len(doc.Vectors)
	if n == 0 || m == 0 {
		return 0, ErrEmptyInput
	}
	d := query.Dim()
	if d != doc.Dim() {
		return 0, ErrDimensionMismatch
	}

	var total float32
	for i := 0; i < n; i++ {
		qi := query.Vectors[i]
		var best float32 = -1 << 30
		for j := 0; j < m; j++ {
			dj := doc.Vectors[j]
			var dot float32
			for k := 0; k < d; k++ {
				dot += qi[k] * dj[k]
			}
			if dot > best {
				best = dot
			}
		}
		total += best
	}
	return total, nil
}
