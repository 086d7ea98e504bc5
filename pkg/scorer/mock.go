package scorer

import (
	"context"
	"hash/fnv"
)

// MockScorer provides a deterministic scorer for testing. The score blends
// term overlap with a content-hash jitter so that identical inputs always
// score the same while distinct passages stay distinguishable.
type MockScorer struct {
	cfg Config
}

// NewMockScorer creates a new mock scorer
func NewMockScorer(cfg Config) *MockScorer {
	return &MockScorer{cfg: cfg}
}

// ScoreBatch implements Scorer
func (s *MockScorer) ScoreBatch(ctx context.Context, pairs []Pair) ([]float64, error) {
	scores := make([]float64, len(pairs))
	for i, p := range pairs {
		scores[i] = mockScore(p.Query, p.Passage)
	}
	return scores, nil
}

func mockScore(query, passage string) float64 {
	queryTF := termFrequency(tokenize(query))
	passageTF := termFrequency(tokenize(passage))

	overlap := 0
	for term := range queryTF {
		if passageTF[term] > 0 {
			overlap++
		}
	}
	base := 0.0
	if len(queryTF) > 0 {
		base = float64(overlap) / float64(len(queryTF))
	}

	h := fnv.New32a()
	h.Write([]byte(query))
	h.Write([]byte{0})
	h.Write([]byte(passage))
	jitter := float64(h.Sum32()%1000) / 10000.0

	score := 0.9*base + jitter
	if score > 1.0 {
		score = 1.0
	}
	return score
}

// Close implements Scorer
func (s *MockScorer) Close() error {
	return nil
}
