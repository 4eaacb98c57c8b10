package pipeline

import (
	"context"
	"fmt"
	"os"

	"github.com/oukeidos/mqcomet/internal/apperrors"
	"github.com/oukeidos/mqcomet/internal/files"
	"github.com/oukeidos/mqcomet/internal/logger"
	"github.com/oukeidos/mqcomet/internal/report"
	"github.com/oukeidos/mqcomet/internal/scoring"
	"github.com/oukeidos/mqcomet/internal/xliff"
)

// TableResult describes a score-xlsx run.
type TableResult struct {
	OutputPath string
	Backend    string
	Model      string
	Rows       int
	Scored     int
	Skipped    int
	Summary    report.Summary
}

// ScoreTable scores an existing workbook with source, mt and ref columns
// and writes a copy with the score column added. Rows lacking a source or
// mt value, or a ref value when references are used, get no score.
func ScoreTable(ctx context.Context, cfg Config) (*TableResult, error) {
	cfg, err := prepare(cfg)
	if err != nil {
		return nil, err
	}
	if cfg.OutputPath == "" {
		cfg.OutputPath = files.OutputPath(cfg.InputPath, files.TableSuffix, reportExt)
	}
	if err := checkPaths(cfg.InputPath, cfg.OutputPath); err != nil {
		return nil, err
	}

	in, err := os.Open(cfg.InputPath)
	if err != nil {
		return nil, apperrors.InputNotFound(fmt.Sprintf("cannot read %s", cfg.InputPath), err)
	}
	tbl, err := report.OpenTable(in)
	in.Close()
	if err != nil {
		return nil, err
	}
	defer tbl.Close()

	required := []string{"source", "mt", "ref"}
	if cfg.ReferenceFree {
		required = required[:2]
	}
	cols, err := tbl.RequireColumns(required...)
	if err != nil {
		return nil, err
	}

	var (
		triples []scoring.Triple
		rowOf   []int
	)
	for i := 0; i < tbl.Len(); i++ {
		t := scoring.Triple{Source: tbl.Value(i, cols[0]), Hypothesis: tbl.Value(i, cols[1])}
		if !cfg.ReferenceFree {
			t.Reference = tbl.Value(i, cols[2])
		}
		if t.Source == "" || t.Hypothesis == "" || (!cfg.ReferenceFree && t.Reference == "") {
			continue
		}
		triples = append(triples, t)
		rowOf = append(rowOf, i)
	}
	if cfg.MaxSegments > 0 && len(triples) > cfg.MaxSegments {
		logger.Info("Segment cap applied", "rows", len(triples), "max_segments", cfg.MaxSegments)
		triples, rowOf = triples[:cfg.MaxSegments], rowOf[:cfg.MaxSegments]
	}

	res := &TableResult{Backend: cfg.Backend, Model: cfg.Model, Rows: tbl.Len(), Skipped: tbl.Len() - len(triples)}
	logger.Info("Loaded workbook", "path", cfg.InputPath, "sheet", tbl.Sheet(), "rows", res.Rows, "skipped", res.Skipped)

	scores, _, err := score(ctx, cfg, xliff.LanguagePair{}, triples)
	if err != nil {
		return res, err
	}
	byRow := make(map[int]float64, len(scores))
	for i, s := range scores {
		byRow[rowOf[i]] = s
	}
	res.Scored = len(scores)
	res.Summary = report.Summarize(scores)
	logSummary(res.Summary)

	if err := tbl.SetScores(cfg.ScoreColumn, byRow); err != nil {
		return res, err
	}
	data, err := tbl.Bytes()
	if err != nil {
		return res, err
	}
	out, err := writeOutput(cfg, data)
	if err != nil {
		return res, err
	}
	res.OutputPath = out
	logger.Info("Saved results", "path", out, "rows", res.Rows)
	return res, nil
}
