package scoring

import (
	"context"

	"github.com/oukeidos/mqcomet/internal/gemini"
	"github.com/oukeidos/mqcomet/internal/logger"
)

// Gemini scores with a Gemini model acting as a judge.
type Gemini struct {
	judge          gemini.Judge
	closer         func() error
	SourceLanguage string
	TargetLanguage string
	ReferenceFree  bool
}

// NewGemini wraps an existing judge client. The system instruction is
// installed here.
func NewGemini(judge gemini.Judge) *Gemini {
	judge.SetSystemInstruction(judgeInstruction)
	g := &Gemini{judge: judge}
	if c, ok := judge.(interface{ Close() error }); ok {
		g.closer = c.Close
	}
	return g
}

func (g *Gemini) Score(ctx context.Context, triples []Triple, batchSize int) ([]float64, error) {
	return scoreBatches(ctx, "gemini", triples, batchSize, func(ctx context.Context, batch []Triple) ([]float64, error) {
		resp, err := g.judge.Judge(ctx, judgeRequest(batch, g.SourceLanguage, g.TargetLanguage, g.ReferenceFree))
		if err != nil {
			return nil, err
		}
		logger.Debug("Judge usage", "backend", "gemini", "model", g.judge.ModelID(),
			"prompt_tokens", resp.Usage.PromptTokenCount,
			"output_tokens", resp.Usage.CandidatesTokenCount,
			"total_tokens", resp.Usage.TotalTokenCount)
		return judgeScores(len(batch), resp.Scores)
	})
}

func (g *Gemini) Close() error {
	if g.closer == nil {
		return nil
	}
	return g.closer()
}
