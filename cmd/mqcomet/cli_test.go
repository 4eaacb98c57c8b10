package main

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/oukeidos/mqcomet/internal/config"
	"github.com/oukeidos/mqcomet/internal/prompt"
	"github.com/oukeidos/mqcomet/internal/report"
)

const sampleDoc = `<?xml version="1.0" encoding="utf-8"?>
<xliff version="1.2" xmlns="urn:oasis:names:tc:xliff:document:1.2" xmlns:mq="MQXliff">
<file source-language="en-US" target-language="de-DE"><body>
<trans-unit id="1" mq:status="ManuallyConfirmed">
  <source>Hello</source><target>Hallo</target>
  <mq:insertedmatch matchtype="1" source="MT / EngineA"><target>Hallo MT</target></mq:insertedmatch>
</trans-unit>
<trans-unit id="2" mq:status="PartiallyEdited">
  <source>World</source><target>Welt</target>
  <mq:insertedmatch matchtype="1" source="MT / EngineA"><target>Welt MT</target></mq:insertedmatch>
</trans-unit>
</body></file></xliff>`

// withCLIStubs makes the command non-interactive and config-file free.
func withCLIStubs(t *testing.T, stdin string, interactive bool) {
	t.Helper()
	prevTerminal := isTerminal
	prevConfirmer := newConfirmer
	prevLoad := loadConfig

	isTerminal = func(_ int) bool { return false }
	newConfirmer = func() prompt.Confirmer {
		return prompt.Confirmer{
			In:            strings.NewReader(stdin),
			Out:           io.Discard,
			IsInteractive: func() bool { return interactive },
		}
	}
	loadConfig = func(path string) (*config.Config, error) {
		if path != "" {
			return config.LoadFile(path)
		}
		return config.Default(), nil
	}

	t.Cleanup(func() {
		isTerminal = prevTerminal
		newConfirmer = prevConfirmer
		loadConfig = prevLoad
	})
}

func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func writeSample(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "job.mqxliff")
	if err := os.WriteFile(path, []byte(sampleDoc), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func sheetRows(t *testing.T, path, sheet string) [][]string {
	t.Helper()
	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()
	rows, err := f.GetRows(sheet)
	if err != nil {
		t.Fatal(err)
	}
	return rows
}

func TestEvaluate_DryRunWritesReport(t *testing.T) {
	withCLIStubs(t, "", false)
	input := writeSample(t)

	out, err := executeCommand(t, "--dry-run", input)
	if err != nil {
		t.Fatalf("command failed: %v\n%s", err, out)
	}
	want := filepath.Join(filepath.Dir(input), "job_comet_scores.xlsx")
	if !strings.Contains(out, "Output: "+want) {
		t.Fatalf("output path not reported: %s", out)
	}
	if !strings.Contains(out, "extracted: 1, skipped (status): 1") {
		t.Fatalf("stats not reported: %s", out)
	}
	rows := sheetRows(t, want, report.SheetScores)
	if len(rows) != 2 || rows[1][0] != "1" || rows[1][8] != "0" {
		t.Fatalf("unexpected rows %v", rows)
	}
}

func TestEvaluate_SubcommandAndOutputFlag(t *testing.T) {
	withCLIStubs(t, "", false)
	input := writeSample(t)
	output := filepath.Join(t.TempDir(), "custom.xlsx")

	if out, err := executeCommand(t, "evaluate", "--dry-run", "-o", output, "--score-column", "qe"); err == nil {
		t.Fatalf("expected missing input error, got output %s", out)
	}
	out, err := executeCommand(t, "evaluate", "--dry-run", "-o", output, "--score-column", "qe", input)
	if err != nil {
		t.Fatalf("command failed: %v\n%s", err, out)
	}
	rows := sheetRows(t, output, report.SheetScores)
	if rows[0][8] != "qe" {
		t.Fatalf("score column header = %q", rows[0][8])
	}
}

func TestEvaluate_ExistingOutputNonInteractive(t *testing.T) {
	withCLIStubs(t, "", false)
	input := writeSample(t)
	existing := filepath.Join(filepath.Dir(input), "job_comet_scores.xlsx")
	if err := os.WriteFile(existing, []byte("keep"), 0644); err != nil {
		t.Fatal(err)
	}

	out, err := executeCommand(t, "--dry-run", input)
	if err != nil {
		t.Fatalf("command failed: %v\n%s", err, out)
	}
	if data, _ := os.ReadFile(existing); string(data) != "keep" {
		t.Fatalf("existing output was replaced")
	}
	if !strings.Contains(out, "job_comet_scores_1.xlsx") {
		t.Fatalf("expected sibling output path, got %s", out)
	}

	if _, err := executeCommand(t, "--dry-run", "--yes", input); err != nil {
		t.Fatalf("overwrite failed: %v", err)
	}
	if data, _ := os.ReadFile(existing); string(data) == "keep" {
		t.Fatalf("--yes did not replace the existing output")
	}
}

func TestEvaluate_AsksForPathWhenInteractive(t *testing.T) {
	input := writeSample(t)
	withCLIStubs(t, "\""+input+"\"\n", true)

	out, err := executeCommand(t, "--dry-run")
	if err != nil {
		t.Fatalf("command failed: %v\n%s", err, out)
	}
	if _, err := os.Stat(filepath.Join(filepath.Dir(input), "job_comet_scores.xlsx")); err != nil {
		t.Fatalf("report not written: %v", err)
	}
}

func TestEvaluate_NoArgsShowsHelp(t *testing.T) {
	withCLIStubs(t, "", false)

	out, err := executeCommand(t)
	if err != nil {
		t.Fatalf("expected help, got error %v", err)
	}
	if !strings.Contains(out, "mqcomet <input.mqxliff> [flags]") {
		t.Fatalf("expected usage, got: %s", out)
	}
}

func TestEvaluate_MissingCredentialFails(t *testing.T) {
	withCLIStubs(t, "", false)
	t.Setenv("OPENAI_API_KEY", "")
	input := writeSample(t)

	_, err := executeCommand(t, "--backend", "openai", "--token-source", "env", input)
	if err == nil {
		t.Fatal("expected an error without an OpenAI credential")
	}
	if _, statErr := os.Stat(filepath.Join(filepath.Dir(input), "job_comet_scores.xlsx")); !os.IsNotExist(statErr) {
		t.Fatalf("no report should be written when scoring is unavailable")
	}
}

func TestBuildConfig_FlagsOverrideFile(t *testing.T) {
	withCLIStubs(t, "", false)
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := "backend: comet\nmodel: Unbabel/XCOMET-XL\nendpoint: https://comet.example/score\nbatch_size: 16\nmax_segments: 50\n"
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	fileCfg, err := config.LoadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		args    []string
		backend string
		model   string
		batch   int
		max     int
	}{
		{"file only", nil, "comet", "Unbabel/XCOMET-XL", 16, 50},
		{"batch flag", []string{"--batch-size", "3"}, "comet", "Unbabel/XCOMET-XL", 3, 50},
		{"backend switch drops file model", []string{"--backend", "gemini"}, "gemini", "", 16, 50},
		{"same backend keeps model", []string{"--backend", "comet"}, "comet", "Unbabel/XCOMET-XL", 16, 50},
		{"dry run", []string{"--dry-run", "--max-segments", "2"}, "static", "", 16, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := newEvaluateCmd()
			if err := cmd.ParseFlags(tt.args); err != nil {
				t.Fatal(err)
			}
			opts := evaluateOptions{}
			opts.scoring.backend, _ = cmd.Flags().GetString("backend")
			opts.scoring.batchSize, _ = cmd.Flags().GetInt("batch-size")
			opts.scoring.maxSegments, _ = cmd.Flags().GetInt("max-segments")
			opts.scoring.dryRun, _ = cmd.Flags().GetBool("dry-run")

			cfg := buildConfig(cmd, "in.mqxliff", &opts.out, &opts.scoring, fileCfg)
			if cfg.Backend != tt.backend || cfg.Model != tt.model || cfg.BatchSize != tt.batch || cfg.MaxSegments != tt.max {
				t.Fatalf("got backend=%q model=%q batch=%d max=%d", cfg.Backend, cfg.Model, cfg.BatchSize, cfg.MaxSegments)
			}
			if cfg.Credentials.Prompt != nil {
				t.Fatalf("prompt must be disabled without a terminal")
			}
		})
	}
}

func TestExtract_WritesUnscoredReport(t *testing.T) {
	withCLIStubs(t, "", false)
	input := writeSample(t)

	out, err := executeCommand(t, "extract", input)
	if err != nil {
		t.Fatalf("command failed: %v\n%s", err, out)
	}
	rows := sheetRows(t, filepath.Join(filepath.Dir(input), "job_comet_scores.xlsx"), report.SheetScores)
	if len(rows) != 2 || len(rows[1]) > 8 {
		t.Fatalf("expected one unscored row, got %v", rows)
	}
}

func TestScoreXLSX(t *testing.T) {
	withCLIStubs(t, "", false)
	dir := t.TempDir()
	input := filepath.Join(dir, "table.xlsx")
	f := excelize.NewFile()
	for i, row := range [][]any{
		{"source", "mt", "ref"},
		{"Hello", "Hallo", "Hallo"},
		{"World", "", "Welt"},
	} {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow("Sheet1", cell, &row); err != nil {
			t.Fatal(err)
		}
	}
	if err := f.SaveAs(input); err != nil {
		t.Fatal(err)
	}
	f.Close()

	out, err := executeCommand(t, "score-xlsx", "--dry-run", input)
	if err != nil {
		t.Fatalf("command failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Rows: 2, scored: 1, skipped: 1") {
		t.Fatalf("unexpected summary: %s", out)
	}
	rows := sheetRows(t, filepath.Join(dir, "table_with_scores.xlsx"), "Sheet1")
	if rows[0][3] != report.DefaultScoreColumn || rows[1][3] != "0" {
		t.Fatalf("unexpected rows %v", rows)
	}
}

func TestModels(t *testing.T) {
	out, err := executeCommand(t, "models", "--backend", "comet")
	if err != nil {
		t.Fatalf("command failed: %v", err)
	}
	if !strings.Contains(out, "Unbabel/wmt22-comet-da") || !strings.Contains(out, "reference-free") {
		t.Fatalf("unexpected listing: %s", out)
	}
	if strings.Contains(out, "gemini-") {
		t.Fatalf("backend filter ignored: %s", out)
	}
	if _, err := executeCommand(t, "models", "--backend", "bleu"); err == nil {
		t.Fatalf("expected unknown backend error")
	}
}

func TestOverwriteFlag_AcceptsYesAndShorthand(t *testing.T) {
	withCLIStubs(t, "", false)
	for _, args := range [][]string{{"-y"}, {"--yes"}, {"extract", "-y"}, {"score-xlsx", "--yes"}} {
		out, err := executeCommand(t, args...)
		if err == nil {
			t.Fatalf("%v: expected missing input error", args)
		}
		if strings.Contains(out, "unknown shorthand flag: 'y'") || strings.Contains(out, "unknown flag: --yes") {
			t.Fatalf("%v: expected --yes/-y to be parsed, got output: %s", args, out)
		}
	}
}
