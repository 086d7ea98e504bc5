package scorer

import (
	"context"
	"math"
	"strings"
)

// LocalScorer scores pairs with cosine similarity of term frequency vectors.
// No external calls; useful as a fallback backend and for development.
type LocalScorer struct {
	cfg Config
}

// NewLocalScorer creates a new local similarity scorer
func NewLocalScorer(cfg Config) *LocalScorer {
	return &LocalScorer{cfg: cfg}
}

// ScoreBatch implements Scorer
func (s *LocalScorer) ScoreBatch(ctx context.Context, pairs []Pair) ([]float64, error) {
	scores := make([]float64, len(pairs))
	for i, p := range pairs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		scores[i] = cosineTextSimilarity(p.Query, p.Passage)
	}
	return scores, nil
}

// cosineTextSimilarity computes cosine similarity between query and passage
// using term frequency vectors
func cosineTextSimilarity(query, passage string) float64 {
	queryTF := termFrequency(tokenize(query))
	passageTF := termFrequency(tokenize(passage))
	if len(queryTF) == 0 || len(passageTF) == 0 {
		return 0.0
	}

	var dot, queryNorm, passageNorm float64
	for term, qf := range queryTF {
		dot += float64(qf) * float64(passageTF[term])
		queryNorm += float64(qf) * float64(qf)
	}
	for _, pf := range passageTF {
		passageNorm += float64(pf) * float64(pf)
	}
	if queryNorm == 0 || passageNorm == 0 {
		return 0.0
	}
	return dot / (math.Sqrt(queryNorm) * math.Sqrt(passageNorm))
}

func tokenize(text string) []string {
	return strings.Fields(strings.ToLower(text))
}

func termFrequency(tokens []string) map[string]int {
	tf := make(map[string]int, len(tokens))
	for _, tok := range tokens {
		tok = strings.Trim(tok, ".,;:!?\"'()[]")
		if tok != "" {
			tf[tok]++
		}
	}
	return tf
}

// Close implements Scorer
func (s *LocalScorer) Close() error {
	return nil
}
