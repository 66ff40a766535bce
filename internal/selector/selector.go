// Package selector picks a high-quality, mutually diverse subset of faces.
package selector

import (
	"cmp"
	"slices"
)

// Weights combine quality metrics into an overall score.
type Weights struct {
	Clarity  float64
	Frontal  float64
	Lighting float64
}

// DefaultWeights is the 0.4/0.4/0.2 clarity/frontal/lighting policy.
var DefaultWeights = Weights{Clarity: 0.4, Frontal: 0.4, Lighting: 0.2}

// DefaultThreshold is the minimum Euclidean distance between two selected embeddings.
const DefaultThreshold = 0.6

// Candidate is a scored face eligible for selection.
type Candidate struct {
	FaceID    string
	Embedding []float32
	Clarity   float64
	Frontal   float64
	Lighting  float64
}

// Selected is a chosen candidate with its overall score.
type Selected struct {
	Candidate
	Overall float64
}

// Overall returns the weighted score of c.
func (w Weights) Overall(c Candidate) float64 {
	return w.Clarity*c.Clarity + w.Frontal*c.Frontal + w.Lighting*c.Lighting
}

// Select returns up to k candidates in descending score order such that every
// pair of returned embeddings is at least threshold apart. Candidates with
// equal scores keep their input order.
//
// This is a greedy pass over the score-sorted list, O(k*n) distance checks.
// It is not guaranteed to find the highest-scoring diverse subset.
func Select(cands []Candidate, k int, threshold float64, w Weights) []Selected {
	if k <= 0 || len(cands) == 0 {
		return []Selected{}
	}

	ranked := make([]Selected, len(cands))
	for i, c := range cands {
		ranked[i] = Selected{Candidate: c, Overall: w.Overall(c)}
	}
	slices.SortStableFunc(ranked, func(a, b Selected) int {
		return cmp.Compare(b.Overall, a.Overall)
	})

	out := make([]Selected, 0, min(k, len(ranked)))
	for _, cand := range ranked {
		if len(out) >= k {
			break
		}
		if diverse(cand.Embedding, out, threshold) {
			out = append(out, cand)
		}
	}
	return out
}

func diverse(emb []float32, accepted []Selected, threshold float64) bool {
	for _, a := range accepted {
		if EuclideanDistance(emb, a.Embedding) < threshold {
			return false
		}
	}
	return true
}

// FaceIDs returns the IDs of sel in order.
func FaceIDs(sel []Selected) []string {
	ids := make([]string, len(sel))
	for i, s := range sel {
		ids[i] = s.FaceID
	}
	return ids
}
