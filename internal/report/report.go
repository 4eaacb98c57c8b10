// Package report writes extraction and scoring results as xlsx workbooks.
package report

import (
	"fmt"
	"math"
	"strconv"

	"github.com/xuri/excelize/v2"

	"github.com/oukeidos/mqcomet/internal/language"
	"github.com/oukeidos/mqcomet/internal/xliff"
)

const (
	SheetScores        = "COMET_Scores"
	SheetSummary       = "Summary"
	DefaultScoreColumn = "comet_score"
)

// Report is everything that goes into one output workbook.
type Report struct {
	Input       string
	Backend     string
	Model       string
	ScoreColumn string
	Languages   xliff.LanguagePair
	Stats       xliff.Stats
	Units       []xliff.Unit
	// Scores is parallel to Units. A nil slice leaves the score column
	// empty, as the extract command does.
	Scores []float64
}

// Columns returns the header row of the scores sheet.
func Columns(scoreColumn string) []string {
	if scoreColumn == "" {
		scoreColumn = DefaultScoreColumn
	}
	return []string{
		"trans_unit_id",
		"segmentguid",
		"mt_provider",
		"source",
		"mt",
		"ref",
		"source_language",
		"target_language",
		scoreColumn,
	}
}

// Summary describes a set of scores.
type Summary struct {
	Count int
	Min   float64
	Max   float64
	Mean  float64
}

// Summarize returns min, max and mean. All fields are zero for no scores.
func Summarize(scores []float64) Summary {
	if len(scores) == 0 {
		return Summary{}
	}
	s := Summary{Count: len(scores), Min: math.Inf(1), Max: math.Inf(-1)}
	var sum float64
	for _, v := range scores {
		s.Min = math.Min(s.Min, v)
		s.Max = math.Max(s.Max, v)
		sum += v
	}
	s.Mean = sum / float64(len(scores))
	return s
}

// Build lays out the workbook. The caller owns the returned file and must
// close it.
func Build(r *Report) (*excelize.File, error) {
	if r.Scores != nil && len(r.Scores) != len(r.Units) {
		return nil, fmt.Errorf("report has %d scores for %d units", len(r.Scores), len(r.Units))
	}

	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", SheetScores); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	if err := writeScores(f, r); err != nil {
		_ = f.Close()
		return nil, err
	}
	if err := writeSummary(f, r); err != nil {
		_ = f.Close()
		return nil, err
	}
	if idx, err := f.GetSheetIndex(SheetScores); err == nil {
		f.SetActiveSheet(idx)
	}
	return f, nil
}

// Bytes renders the workbook for r.
func Bytes(r *Report) ([]byte, error) {
	f, err := Build(r)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}

func writeScores(f *excelize.File, r *Report) error {
	const sheet = SheetScores
	if err := writeHeader(f, sheet, Columns(r.ScoreColumn)); err != nil {
		return err
	}

	for i, u := range r.Units {
		row := i + 2
		values := []any{
			u.ID,
			u.SegmentGUID,
			u.MTProvider,
			Truncate(u.Source),
			Truncate(u.Hypothesis),
			Truncate(u.Reference),
			r.Languages.Source,
			r.Languages.Target,
		}
		if r.Scores != nil {
			values = append(values, r.Scores[i])
		}
		cell, _ := excelize.CoordinatesToCellName(1, row)
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return fmt.Errorf("write row %d: %w", row, err)
		}
	}

	return setColWidths(f, sheet, []colWidth{
		{"A", "C", 18},
		{"D", "F", 60},
		{"G", "H", 16},
		{"I", "I", 14},
	})
}

func writeSummary(f *excelize.File, r *Report) error {
	const sheet = SheetSummary
	if _, err := f.NewSheet(sheet); err != nil {
		return fmt.Errorf("create summary sheet: %w", err)
	}
	if err := writeHeader(f, sheet, []string{"field", "value"}); err != nil {
		return err
	}

	sum := Summarize(r.Scores)
	pairs := [][2]any{
		{"input", r.Input},
		{"backend", r.Backend},
		{"model", r.Model},
		{"source_language", r.Languages.Source},
		{"target_language", r.Languages.Target},
		{"language_pair", language.PairLabel(r.Languages.Source, r.Languages.Target)},
		{"trans_units", r.Stats.TransUnits},
		{"skipped_status", r.Stats.SkippedStatus},
		{"skipped_missing", r.Stats.SkippedMissing},
		{"rows", len(r.Units)},
		{"scored", sum.Count},
	}
	if sum.Count > 0 {
		pairs = append(pairs,
			[2]any{"score_min", sum.Min},
			[2]any{"score_max", sum.Max},
			[2]any{"score_mean", sum.Mean},
		)
	}
	for i, p := range pairs {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		row := []any{p[0], p[1]}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write summary %s: %w", p[0], err)
		}
	}
	return setColWidths(f, sheet, []colWidth{{"A", "A", 18}, {"B", "B", 48}})
}

type colWidth struct {
	from, to string
	width    float64
}

func setColWidths(f *excelize.File, sheet string, widths []colWidth) error {
	for _, w := range widths {
		if err := f.SetColWidth(sheet, w.from, w.to, w.width); err != nil {
			return fmt.Errorf("set width of %s columns %s:%s: %w", sheet, w.from, w.to, err)
		}
	}
	return nil
}

// writeHeader writes a bold first row and freezes it.
func writeHeader(f *excelize.File, sheet string, headers []string) error {
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellStr(sheet, cell, h); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
	}
	style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("header style: %w", err)
	}
	last, _ := excelize.CoordinatesToCellName(len(headers), 1)
	if err := f.SetCellStyle(sheet, "A1", last, style); err != nil {
		return fmt.Errorf("header style: %w", err)
	}
	return f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}

// FormatScore renders a score with four decimals, as the CLI prints it.
func FormatScore(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}
