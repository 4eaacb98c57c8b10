package scoring

import "context"

// Static scores every triple with the same value. It backs --dry-run and
// tests, and never needs a credential.
type Static struct {
	Value float64
}

func (s Static) Score(ctx context.Context, triples []Triple, batchSize int) ([]float64, error) {
	return scoreBatches(ctx, "static", triples, batchSize, func(_ context.Context, batch []Triple) ([]float64, error) {
		out := make([]float64, len(batch))
		for i := range out {
			out[i] = s.Value
		}
		return out, nil
	})
}
