package scoring

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/oukeidos/mqcomet/internal/gemini"
	"github.com/oukeidos/mqcomet/internal/logger"
	"github.com/oukeidos/mqcomet/internal/openai"
)

// judgeSchema constrains the Responses API output to the judge format.
var judgeSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"scores": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"id":    map[string]any{"type": "integer"},
					"score": map[string]any{"type": "number"},
				},
				"required":             []string{"id", "score"},
				"additionalProperties": false,
			},
		},
	},
	"required":             []string{"scores"},
	"additionalProperties": false,
}

// OpenAI scores with an OpenAI model acting as a judge.
type OpenAI struct {
	Client         *openai.Client
	SourceLanguage string
	TargetLanguage string
	ReferenceFree  bool
}

func (o *OpenAI) Score(ctx context.Context, triples []Triple, batchSize int) ([]float64, error) {
	return scoreBatches(ctx, "openai", triples, batchSize, func(ctx context.Context, batch []Triple) ([]float64, error) {
		payload, err := json.Marshal(judgeRequest(batch, o.SourceLanguage, o.TargetLanguage, o.ReferenceFree))
		if err != nil {
			return nil, fmt.Errorf("failed to marshal judge request: %w", err)
		}
		resp, err := o.Client.Generate(ctx, openai.RequestData{
			Instructions: judgeInstruction,
			Input:        []openai.InputItem{{Type: "message", Role: "user", Content: string(payload)}},
			Text: &openai.TextOptions{Format: &openai.ResponseFormat{
				Type:   "json_schema",
				Name:   "segment_scores",
				Strict: true,
				Schema: judgeSchema,
			}},
		})
		if err != nil {
			return nil, err
		}
		logUsage(o.Client.ModelID(), resp.Usage)
		decoded, err := gemini.DecodeResponse(resp.OutputText())
		if err != nil {
			return nil, err
		}
		return judgeScores(len(batch), decoded.Scores)
	})
}

func logUsage(model string, u openai.Usage) {
	args := []any{"backend", "openai", "model", model,
		"input_tokens", u.InputTokens, "output_tokens", u.OutputTokens, "total_tokens", u.TotalTokens}
	if u.InputDetails != nil {
		args = append(args, "cached_tokens", u.InputDetails.CachedTokens)
	}
	if u.OutputDetails != nil {
		args = append(args, "reasoning_tokens", u.OutputDetails.ReasoningTokens)
	}
	logger.Debug("Judge usage", args...)
}
