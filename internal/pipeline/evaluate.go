package pipeline

import (
	"context"
	"fmt"

	"github.com/oukeidos/mqcomet/internal/language"
	"github.com/oukeidos/mqcomet/internal/logger"
	"github.com/oukeidos/mqcomet/internal/report"
	"github.com/oukeidos/mqcomet/internal/scoring"
	"github.com/oukeidos/mqcomet/internal/xliff"
)

// Result describes one reporting run. Data holds the rendered workbook.
type Result struct {
	Input            string
	OutputPath       string
	Backend          string
	Model            string
	CredentialSource string
	Languages        xliff.LanguagePair
	Stats            xliff.Stats
	Units            []xliff.Unit
	Scores           []float64
	Summary          report.Summary
	Data             []byte
}

// LanguagePair renders the document's languages for display.
func (r *Result) LanguagePair() string {
	return language.PairLabel(r.Languages.Source, r.Languages.Target)
}

// Stubbed in tests.
var newScorer = scoring.New

// Evaluate scores an extracted document and renders the report in memory.
// Nothing is written to disk.
func Evaluate(ctx context.Context, cfg Config, doc *xliff.Document) (*Result, error) {
	cfg, err := prepare(cfg)
	if err != nil {
		return nil, err
	}

	res := newResult(cfg, doc)
	units := capUnits(doc.Units, cfg.MaxSegments)
	res.Units = units

	scores, source, err := score(ctx, cfg, doc.Languages, toTriples(units, cfg.ReferenceFree))
	if err != nil {
		return res, err
	}
	res.Scores = scores
	res.CredentialSource = source
	res.Summary = report.Summarize(scores)
	logSummary(res.Summary)

	data, err := report.Bytes(res.toReport(cfg.ScoreColumn))
	if err != nil {
		return res, fmt.Errorf("failed to build report: %w", err)
	}
	res.Data = data
	return res, nil
}

// ExtractOnly renders the report with an empty score column.
func ExtractOnly(cfg Config, doc *xliff.Document) (*Result, error) {
	cfg, err := prepare(cfg)
	if err != nil {
		return nil, err
	}
	res := newResult(cfg, doc)
	res.Units = capUnits(doc.Units, cfg.MaxSegments)

	data, err := report.Bytes(res.toReport(cfg.ScoreColumn))
	if err != nil {
		return res, fmt.Errorf("failed to build report: %w", err)
	}
	res.Data = data
	return res, nil
}

func newResult(cfg Config, doc *xliff.Document) *Result {
	logExtraction(doc)
	return &Result{
		Input:     doc.Name,
		Backend:   cfg.Backend,
		Model:     cfg.Model,
		Languages: doc.Languages,
		Stats:     doc.Stats,
	}
}

func (r *Result) toReport(scoreColumn string) *report.Report {
	return &report.Report{
		Input:       r.Input,
		Backend:     r.Backend,
		Model:       r.Model,
		ScoreColumn: scoreColumn,
		Languages:   r.Languages,
		Stats:       r.Stats,
		Units:       r.Units,
		Scores:      r.Scores,
	}
}

func logExtraction(doc *xliff.Document) {
	logger.Info("Extraction finished",
		"file", doc.Name,
		"trans_units", doc.Stats.TransUnits,
		"rows", len(doc.Units),
		"skipped_status", doc.Stats.SkippedStatus,
		"skipped_missing", doc.Stats.SkippedMissing,
	)
	if !doc.Languages.Known() {
		logger.Warn("Document declares no complete language pair", "file", doc.Name, "pair", language.PairLabel(doc.Languages.Source, doc.Languages.Target))
	}
}

func logSummary(s report.Summary) {
	if s.Count == 0 {
		logger.Info("No segments were scored")
		return
	}
	logger.Info("Score summary",
		"scored", s.Count,
		"min", report.FormatScore(s.Min),
		"max", report.FormatScore(s.Max),
		"mean", report.FormatScore(s.Mean),
	)
}

// capUnits keeps the first limit units; limit <= 0 keeps all.
func capUnits(units []xliff.Unit, limit int) []xliff.Unit {
	if limit <= 0 || len(units) <= limit {
		return units
	}
	logger.Info("Segment cap applied", "rows", len(units), "max_segments", limit)
	return units[:limit]
}

func toTriples(units []xliff.Unit, referenceFree bool) []scoring.Triple {
	out := make([]scoring.Triple, len(units))
	for i, u := range units {
		out[i] = scoring.Triple{Source: u.Source, Hypothesis: u.Hypothesis}
		if !referenceFree {
			out[i].Reference = u.Reference
		}
	}
	return out
}

// score resolves the backend credential, builds the scorer and runs it.
// No triples means no scorer is built and no credential is looked up.
func score(ctx context.Context, cfg Config, langs xliff.LanguagePair, triples []scoring.Triple) ([]float64, string, error) {
	if len(triples) == 0 {
		return []float64{}, "", nil
	}

	credential, source, err := resolveCredential(cfg)
	if err != nil {
		return nil, "", err
	}

	scorer, err := newScorer(ctx, scoring.Options{
		Backend:        cfg.Backend,
		Model:          cfg.Model,
		Endpoint:       cfg.Endpoint,
		Credential:     credential,
		SourceLanguage: langs.Source,
		TargetLanguage: langs.Target,
		ReferenceFree:  cfg.ReferenceFree,
		StaticScore:    cfg.StaticScore,
		HTTPClient:     cfg.HTTPClient,
	})
	if err != nil {
		return nil, source, err
	}
	defer func() {
		if err := scoring.Close(scorer); err != nil {
			logger.Warn("Failed to close scorer", "backend", cfg.Backend, "error", err)
		}
	}()

	logger.Info("Starting scoring", "backend", cfg.Backend, "model", cfg.Model, "rows", len(triples), "batch_size", cfg.BatchSize)
	scores, err := scorer.Score(ctx, triples, cfg.BatchSize)
	if err != nil {
		return nil, source, err
	}
	return scores, source, nil
}

// resolveCredential walks the configured chain for the backend's service.
// Backends with an optional credential never prompt for it.
func resolveCredential(cfg Config) (string, string, error) {
	svc, required, ok := scoring.CredentialFor(cfg.Backend)
	if !ok {
		return "", "", nil
	}
	chain := cfg.Credentials
	if !required {
		chain.Prompt = nil
	}
	cred, found, err := chain.Resolve(svc)
	if err != nil {
		return "", "", fmt.Errorf("failed to resolve %s credential: %w", svc.DisplayName(), err)
	}
	if !found {
		logger.Info("No credential found", "service", string(svc), "sources", chain.Sources)
		return "", "", nil
	}
	logger.Info("Using credential", "service", string(svc), "source", cred.Source)
	return cred.Value, cred.Source, nil
}
