package classifier

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/floats"
)

// DefaultNeighbors is the k used when none is configured.
const DefaultNeighbors = 5

// KNN is a distance-weighted k-nearest-neighbour classifier with balanced
// class weights, so rare layout roles are not drowned out by paragraphs.
type KNN struct {
	K           int                `msgpack:"k"`
	Rows        [][]float64        `msgpack:"rows"`
	Labels      []string           `msgpack:"labels"`
	ClassWeight map[string]float64 `msgpack:"class_weight"`
}

// NewKNN returns an unfitted classifier using k neighbours.
func NewKNN(k int) *KNN {
	if k <= 0 {
		k = DefaultNeighbors
	}
	return &KNN{K: k}
}

// Fit memorizes the training rows and computes class weights
// n / (classes * count).
func (m *KNN) Fit(rows [][]float64, labels []string) error {
	if len(rows) == 0 {
		return ErrNoSamples
	}
	if len(rows) != len(labels) {
		return fmt.Errorf("knn: %d rows but %d labels", len(rows), len(labels))
	}
	dim := len(rows[0])
	for i, r := range rows {
		if len(r) != dim {
			return fmt.Errorf("row %d has %d columns, want %d: %w", i, len(r), dim, ErrDimension)
		}
	}

	counts := make(map[string]int)
	for _, l := range labels {
		counts[l]++
	}
	m.ClassWeight = make(map[string]float64, len(counts))
	for l, c := range counts {
		m.ClassWeight[l] = float64(len(labels)) / float64(len(counts)*c)
	}

	m.Rows = make([][]float64, len(rows))
	for i, r := range rows {
		m.Rows[i] = append([]float64(nil), r...)
	}
	m.Labels = append([]string(nil), labels...)
	if m.K <= 0 {
		m.K = DefaultNeighbors
	}
	return nil
}

// Classes returns the distinct training labels in sorted order.
func (m *KNN) Classes() []string {
	classes := make([]string, 0, len(m.ClassWeight))
	for l := range m.ClassWeight {
		classes = append(classes, l)
	}
	sort.Strings(classes)
	return classes
}

type neighbour struct {
	idx  int
	dist float64
}

// Predict labels each row by weighted vote of its nearest training rows.
func (m *KNN) Predict(rows [][]float64) ([]string, error) {
	if len(m.Rows) == 0 {
		return nil, fmt.Errorf("knn: %w", ErrNotFitted)
	}
	dim := len(m.Rows[0])
	k := m.K
	if k > len(m.Rows) {
		k = len(m.Rows)
	}

	out := make([]string, len(rows))
	nbs := make([]neighbour, len(m.Rows))
	for i, q := range rows {
		if len(q) != dim {
			return nil, fmt.Errorf("row %d has %d columns, want %d: %w", i, len(q), dim, ErrDimension)
		}
		for j, r := range m.Rows {
			nbs[j] = neighbour{idx: j, dist: floats.Distance(q, r, 2)}
		}
		sort.Slice(nbs, func(a, b int) bool {
			if nbs[a].dist != nbs[b].dist {
				return nbs[a].dist < nbs[b].dist
			}
			return nbs[a].idx < nbs[b].idx
		})
		out[i] = m.vote(nbs[:k])
	}
	return out, nil
}

func (m *KNN) vote(nbs []neighbour) string {
	votes := make(map[string]float64)
	for _, n := range nbs {
		l := m.Labels[n.idx]
		votes[l] += m.ClassWeight[l] / (n.dist + 1e-9)
	}
	best := ""
	bestScore := -1.0
	for l, s := range votes {
		if s > bestScore || (s == bestScore && l < best) {
			best, bestScore = l, s
		}
	}
	return best
}
