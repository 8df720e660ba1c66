// Package vecmath holds the similarity arithmetic shared by the stores.
package vecmath

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Cosine returns the cosine similarity of a and b in [-1,1]. Zero-norm
// vectors yield 0.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	va := toVec(a)
	vb := toVec(b)

	na := mat.Norm(va, 2)
	nb := mat.Norm(vb, 2)
	if na == 0 || nb == 0 {
		return 0
	}

	return mat.Dot(va, vb) / (na * nb)
}

// CosineAll computes cosine similarity of the query against every row of
// embeddings in one matrix multiply. All rows must share the query's
// dimension.
func CosineAll(query []float32, embeddings [][]float32) []float64 {
	n := len(embeddings)
	if n == 0 {
		return nil
	}
	dim := len(query)

	queryVec := make([]float64, dim)
	var queryNorm float64
	for i, v := range query {
		queryVec[i] = float64(v)
		queryNorm += float64(v) * float64(v)
	}
	queryNorm = math.Sqrt(queryNorm)

	rows := make([]float64, n*dim)
	norms := make([]float64, n)
	for i, emb := range embeddings {
		var norm float64
		for j, v := range emb {
			rows[i*dim+j] = float64(v)
			norm += float64(v) * float64(v)
		}
		norms[i] = math.Sqrt(norm)
	}

	var result mat.VecDense
	result.MulVec(mat.NewDense(n, dim, rows), mat.NewVecDense(dim, queryVec))

	scores := make([]float64, n)
	for i := range scores {
		if norms[i] == 0 || queryNorm == 0 {
			continue
		}
		scores[i] = result.AtVec(i) / (norms[i] * queryNorm)
	}
	return scores
}

// Rescale maps a cosine similarity from [-1,1] to [0,1].
func Rescale(cos float64) float64 {
	return (cos + 1.0) * 0.5
}

// Clamp01 bounds v to [0,1].
func Clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

func toVec(v []float32) *mat.VecDense {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return mat.NewVecDense(len(v), out)
}
