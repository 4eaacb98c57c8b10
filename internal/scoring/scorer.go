// Package scoring turns (source, hypothesis, reference) triples into
// segment-level quality scores using an external model.
package scoring

import (
	"context"
	"fmt"
	"io"

	"github.com/oukeidos/mqcomet/internal/apperrors"
	"github.com/oukeidos/mqcomet/internal/chunker"
	"github.com/oukeidos/mqcomet/internal/logger"
)

// Triple is one segment to score. Reference is empty for reference-free
// models.
type Triple struct {
	Source     string
	Hypothesis string
	Reference  string
}

// Scorer returns exactly one score per triple, in input order. Batches of at
// most batchSize triples are sent one after another.
type Scorer interface {
	Score(ctx context.Context, triples []Triple, batchSize int) ([]float64, error)
}

// Close releases scorer resources when the backend holds any.
func Close(s Scorer) error {
	if c, ok := s.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

type batchFunc func(ctx context.Context, batch []Triple) ([]float64, error)

// scoreBatches runs fn over consecutive batches and checks every batch came
// back with one score per triple. Transient failures are retried per batch.
func scoreBatches(ctx context.Context, backend string, triples []Triple, batchSize int, fn batchFunc) ([]float64, error) {
	batches := chunker.Split(triples, batchSize)
	scores := make([]float64, 0, len(triples))
	for _, b := range batches {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		got, err := withRetry(ctx, backend, b.Index+1, func() ([]float64, error) {
			return fn(ctx, b.Items)
		})
		if err != nil {
			return nil, fmt.Errorf("%s batch %d/%d: %w", backend, b.Index+1, len(batches), err)
		}
		if len(got) != len(b.Items) {
			return nil, apperrors.New(
				apperrors.KindValidation,
				"Scorer returned a different number of scores than segments sent.",
				fmt.Errorf("%s batch %d: got %d scores for %d segments", backend, b.Index+1, len(got), len(b.Items)),
			)
		}
		scores = append(scores, got...)
		logger.Debug("Scored batch", "backend", backend, "batch", b.Index+1, "batches", len(batches), "rows", len(b.Items))
	}
	return scores, nil
}
