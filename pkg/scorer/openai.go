package scorer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/kaptinlin/jsonrepair"
	openai "github.com/sashabaranov/go-openai"
)

// OpenAIScorer uses a chat model as a relevance judge. The whole batch is
// presented in one prompt and the model returns a JSON array of scores in
// [0, 1], one per pair. Chat models routinely emit slightly malformed JSON,
// so parsing falls back to jsonrepair before giving up.
type OpenAIScorer struct {
	cfg    Config
	client *openai.Client
}

// NewOpenAIScorer creates an LLM-judge scorer
func NewOpenAIScorer(cfg Config) (*OpenAIScorer, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required for OpenAI scorer")
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &OpenAIScorer{
		cfg:    cfg,
		client: openai.NewClientWithConfig(clientCfg),
	}, nil
}

const judgeSystemPrompt = `You are an expert relevance judge. For each numbered (QUERY, PASSAGE) pair, output a relevance score between 0.0 (irrelevant) and 1.0 (highly relevant). Respond with a JSON object of the form {"scores": [s1, s2, ...]} containing exactly one score per pair, in the given order, and nothing else.`

type judgeResponse struct {
	Scores []float64 `json:"scores"`
}

// ScoreBatch scores the whole batch with a single chat completion
func (s *OpenAIScorer) ScoreBatch(ctx context.Context, pairs []Pair) ([]float64, error) {
	if len(pairs) == 0 {
		return []float64{}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       s.cfg.Model,
		Temperature: 0,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: judgeSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: buildJudgePrompt(pairs)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("chat completion returned no choices")
	}

	scores, err := parseJudgeScores(resp.Choices[0].Message.Content)
	if err != nil {
		return nil, err
	}
	if len(scores) != len(pairs) {
		return nil, fmt.Errorf("model returned %d scores for %d pairs", len(scores), len(pairs))
	}
	return scores, nil
}

func buildJudgePrompt(pairs []Pair) string {
	var b strings.Builder
	for i, p := range pairs {
		fmt.Fprintf(&b, "PAIR %d\n<QUERY>\n%s\n</QUERY>\n<PASSAGE>\n%s\n</PASSAGE>\n\n", i+1, p.Query, p.Passage)
	}
	return b.String()
}

// parseJudgeScores extracts the scores array from model output, repairing
// malformed JSON (markdown fences, trailing commas, single quotes) first
func parseJudgeScores(content string) ([]float64, error) {
	content = strings.TrimSpace(content)

	var parsed judgeResponse
	if err := json.Unmarshal([]byte(content), &parsed); err == nil {
		return parsed.Scores, nil
	}

	repaired, err := jsonrepair.JSONRepair(content)
	if err != nil {
		return nil, fmt.Errorf("model output is not valid JSON: %w", err)
	}
	if err := json.Unmarshal([]byte(repaired), &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse repaired model output: %w", err)
	}
	return parsed.Scores, nil
}

// Close cleans up any resources used by the scorer
func (s *OpenAIScorer) Close() error {
	return nil
}
