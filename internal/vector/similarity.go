package vector

import "github.com/hyperjump/bookrec/pkg/utils"

// MetricCosine is the only metric supported by this package.
const MetricCosine = "cosine"

// Cosine returns dot(a,b)/(|a||b|). It is 0 when either vector is all zeros
// or the lengths differ.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	return cosineWithNorms(a, b, utils.L2Norm(a), utils.L2Norm(b))
}

// cosineWithNorms avoids recomputing norms that the index keeps per vector.
func cosineWithNorms(a, b []float32, na, nb float64) float64 {
	if na == 0 || nb == 0 {
		return 0
	}
	var d float64
	for i := range a {
		d += float64(a[i]) * float64(b[i])
	}
	return d / (na * nb)
}

// Distance converts a cosine similarity to the distance compared against a
// range radius.
func Distance(similarity float64) float64 {
	return 1 - similarity
}
