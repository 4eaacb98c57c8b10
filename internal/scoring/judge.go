package scoring

import (
	"fmt"

	"github.com/oukeidos/mqcomet/internal/apperrors"
	"github.com/oukeidos/mqcomet/internal/gemini"
	"github.com/oukeidos/mqcomet/internal/language"
)

// judgeInstruction is the direct-assessment prompt shared by the LLM
// backends. Scores come back on a 0-100 scale and are normalised to 0-1 so
// they sit on the same axis as COMET.
const judgeInstruction = `You are a professional translation quality evaluator.
You receive a JSON object with "source_language", "target_language" and "items".
Each item has an "id", the "source" text, a machine "translation" and, when available, a human-approved "reference".
Rate every translation for adequacy and fluency on a continuous 0-100 scale:
0 = no meaning preserved, 33 = some meaning preserved, 66 = most meaning preserved with few errors, 100 = perfect meaning and grammar.
When a reference is given, use it as ground truth for meaning but accept valid alternative wordings.
Inline tags and placeholders are part of the text; do not penalise them when they match the source.
Respond with JSON only: {"scores":[{"id":<id>,"score":<number>}]} with exactly one entry per input id.`

// judgeRequest builds the per-batch payload. IDs are positions within the
// batch.
func judgeRequest(batch []Triple, sourceLang, targetLang string, referenceFree bool) gemini.RequestData {
	req := gemini.RequestData{
		SourceLanguage: language.Name(sourceLang),
		TargetLanguage: language.Name(targetLang),
		Items:          make([]gemini.JudgeItem, len(batch)),
	}
	for i, t := range batch {
		req.Items[i] = gemini.JudgeItem{ID: i, Source: t.Source, Translation: t.Hypothesis}
		if !referenceFree {
			req.Items[i].Reference = t.Reference
		}
	}
	return req
}

// judgeScores orders the model's answers by id and maps them to 0-1. Every
// id in [0, n) must appear exactly once.
func judgeScores(n int, scores []gemini.SegmentScore) ([]float64, error) {
	out := make([]float64, n)
	seen := make([]bool, n)
	for _, s := range scores {
		if s.ID < 0 || s.ID >= n {
			return nil, apperrors.Validation(fmt.Errorf("judge returned unknown id %d for batch of %d", s.ID, n))
		}
		if seen[s.ID] {
			return nil, apperrors.Validation(fmt.Errorf("judge returned id %d twice", s.ID))
		}
		seen[s.ID] = true
		out[s.ID] = normalise(s.Score)
	}
	for id, ok := range seen {
		if !ok {
			return nil, apperrors.Validation(fmt.Errorf("judge omitted id %d", id))
		}
	}
	return out, nil
}

func normalise(score float64) float64 {
	switch {
	case score < 0:
		score = 0
	case score > 100:
		score = 100
	}
	return score / 100
}
