package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/oukeidos/mqcomet/internal/files"
	"github.com/oukeidos/mqcomet/internal/logger"
	"github.com/oukeidos/mqcomet/internal/xliff"
)

const reportExt = ".xlsx"

// Run executes the full reporting flow for one file on disk: extract,
// score, merge and write the workbook.
func Run(ctx context.Context, cfg Config) (*Result, error) {
	return runFile(cfg, func(cfg Config, doc *xliff.Document) (*Result, error) {
		return Evaluate(ctx, cfg, doc)
	})
}

// RunExtract writes the workbook without scoring.
func RunExtract(cfg Config) (*Result, error) {
	return runFile(cfg, ExtractOnly)
}

func runFile(cfg Config, build func(Config, *xliff.Document) (*Result, error)) (*Result, error) {
	if cfg.OutputPath == "" {
		cfg.OutputPath = files.OutputPath(cfg.InputPath, files.ReportSuffix, reportExt)
	}
	if err := checkPaths(cfg.InputPath, cfg.OutputPath); err != nil {
		return nil, err
	}
	if !xliff.HasKnownExtension(cfg.InputPath) {
		logger.Warn("Input does not have a memoQ bilingual extension; trying anyway", "path", cfg.InputPath)
	}

	doc, err := xliff.ParseFile(cfg.InputPath)
	if err != nil {
		return nil, err
	}
	res, err := build(cfg, doc)
	if err != nil {
		return res, err
	}

	out, err := writeOutput(cfg, res.Data)
	if err != nil {
		return res, err
	}
	res.OutputPath = out
	logger.Info("Saved results", "path", out, "rows", len(res.Units))
	return res, nil
}

// checkPaths rejects an output that would replace the input or follow a
// symlink.
func checkPaths(inputPath, outputPath string) error {
	absIn, err := filepath.Abs(inputPath)
	if err != nil {
		return fmt.Errorf("failed to resolve input path: %w", err)
	}
	absOut, err := filepath.Abs(outputPath)
	if err != nil {
		return fmt.Errorf("failed to resolve output path: %w", err)
	}
	if absIn == absOut {
		return fmt.Errorf("input and output files are the same (%s)", absIn)
	}
	if inInfo, err := os.Stat(absIn); err == nil {
		if outInfo, err := os.Stat(absOut); err == nil && os.SameFile(inInfo, outInfo) {
			return fmt.Errorf("input and output files are the same (%s)", absIn)
		}
	}
	return files.RejectSymlinkPath(outputPath)
}

// writeOutput replaces an existing file only when Overwrite is set or the
// user confirms; otherwise the data lands on a free sibling path.
func writeOutput(cfg Config, data []byte) (string, error) {
	path := cfg.OutputPath
	_, statErr := os.Stat(path)
	switch {
	case statErr == nil:
		overwrite := cfg.Overwrite
		if !overwrite && cfg.OnConfirmOverwrite != nil {
			ok, err := cfg.OnConfirmOverwrite(path)
			if err != nil {
				return "", fmt.Errorf("overwrite confirmation failed: %w", err)
			}
			overwrite = ok
		}
		if overwrite {
			logger.Info("Overwriting output file", "path", path)
			if err := files.AtomicWrite(path, data, 0644); err != nil {
				return "", fmt.Errorf("failed to save output file: %w", err)
			}
			return path, nil
		}
	case !os.IsNotExist(statErr):
		return "", fmt.Errorf("failed to stat output path: %w", statErr)
	}

	written, err := files.WriteExclusive(path, data, 0644)
	if err != nil {
		return "", fmt.Errorf("failed to save output file: %w", err)
	}
	if written != path {
		logger.Warn("Output path adjusted to avoid overwrite", "original", path, "effective", written)
	}
	return written, nil
}
