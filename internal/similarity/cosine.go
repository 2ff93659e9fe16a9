package similarity

import (
	"sort"

	"gonum.org/v1/gonum/floats"
)

// Cosine returns dot(a,b)/(|a|·|b|). Empty, mismatched or zero-magnitude
// vectors have similarity 0.
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	x, y := widen(a), widen(b)
	na, nb := floats.Norm(x, 2), floats.Norm(y, 2)
	if na == 0 || nb == 0 {
		return 0
	}
	sim := floats.Dot(x, y) / (na * nb)
	// rounding can push identical vectors a hair past 1
	if sim > 1 {
		return 1
	}
	if sim < -1 {
		return -1
	}
	return sim
}

// Max returns the highest similarity between v and any prior vector, and its
// index. The index is -1 when prior is empty.
func Max(prior [][]float32, v []float32) (float64, int) {
	best, idx := 0.0, -1
	for i, p := range prior {
		sim := Cosine(p, v)
		if idx == -1 || sim > best {
			best, idx = sim, i
		}
	}
	return best, idx
}

// IsDuplicate reports whether v reaches threshold against any prior vector.
func IsDuplicate(prior [][]float32, v []float32, threshold float64) bool {
	for _, p := range prior {
		if Cosine(p, v) >= threshold {
			return true
		}
	}
	return false
}

// Candidate pairs a text with its embedding.
type Candidate struct {
	Text   string
	Vector []float32
}

type scored struct {
	text  string
	score float64
}

// Similar returns up to limit candidate texts whose similarity to v reaches
// threshold, most similar first.
func Similar(candidates []Candidate, v []float32, threshold float64, limit int) []string {
	hits := make([]scored, 0, len(candidates))
	for _, c := range candidates {
		if sim := Cosine(c.Vector, v); sim >= threshold {
			hits = append(hits, scored{text: c.Text, score: sim})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].score > hits[j].score })
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	out := make([]string, len(hits))
	for i, h := range hits {
		out[i] = h.text
	}
	return out
}

func widen(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, f := range v {
		out[i] = float64(f)
	}
	return out
}
