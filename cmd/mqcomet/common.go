package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/oukeidos/mqcomet/internal/auth"
	"github.com/oukeidos/mqcomet/internal/cleanup"
	"github.com/oukeidos/mqcomet/internal/config"
	"github.com/oukeidos/mqcomet/internal/files"
	"github.com/oukeidos/mqcomet/internal/logger"
	"github.com/oukeidos/mqcomet/internal/metadata"
	"github.com/oukeidos/mqcomet/internal/pipeline"
	"github.com/oukeidos/mqcomet/internal/prompt"
	"github.com/oukeidos/mqcomet/internal/report"
)

// Stubbed in tests.
var (
	isTerminal   = term.IsTerminal
	promptForKey = auth.PromptForAPIKey
	keyStatus    = auth.Status
	saveKey      = auth.SaveKey
	deleteKey    = auth.DeleteKey
	loadConfig   = config.Load
	newConfirmer = prompt.DefaultConfirmer
)

// outputOptions are shared by every command that writes a workbook.
type outputOptions struct {
	output      string
	yes         bool
	scoreColumn string
	configPath  string
	logFilePath string
	debug       bool
}

// scoringOptions are shared by the commands that call a scorer.
type scoringOptions struct {
	backend       string
	model         string
	endpoint      string
	batchSize     int
	maxSegments   int
	tokenSources  []string
	referenceFree bool
	dryRun        bool
}

func addOutputFlags(cmd *cobra.Command, opts *outputOptions) {
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "Output xlsx path (default: next to the input)")
	cmd.Flags().BoolVarP(&opts.yes, "yes", "y", false, "Overwrite output file without asking")
	cmd.Flags().StringVar(&opts.scoreColumn, "score-column", report.DefaultScoreColumn, "Name of the score column")
	cmd.Flags().StringVar(&opts.configPath, "config", "", "Path to a YAML config file (default: ~/.mqcomet/config.yaml)")
	cmd.Flags().StringVar(&opts.logFilePath, "log-file", "", "Path to save machine-readable JSONL logs")
	cmd.Flags().BoolVar(&opts.debug, "debug", false, "Enable debug logging")
}

func addScoringFlags(cmd *cobra.Command, opts *scoringOptions) {
	cmd.Flags().StringVar(&opts.backend, "backend", metadata.BackendComet, "Scoring backend (comet, gemini, openai, static)")
	cmd.Flags().StringVar(&opts.model, "model", "", "Model name (default depends on the backend; see 'mqcomet models')")
	cmd.Flags().StringVar(&opts.endpoint, "endpoint", "", "Scoring endpoint URL (comet and openai backends)")
	cmd.Flags().IntVar(&opts.batchSize, "batch-size", config.DefaultBatchSize, fmt.Sprintf("Segments per scoring request (%d-%d)", pipeline.MinBatchSize, pipeline.MaxBatchSize))
	cmd.Flags().IntVar(&opts.maxSegments, "max-segments", 0, "Score at most this many segments (0 = all)")
	cmd.Flags().StringSliceVar(&opts.tokenSources, "token-source", nil, "Credential lookup order (explicit, keychain, env, dotenv, prompt)")
	cmd.Flags().BoolVar(&opts.referenceFree, "reference-free", false, "Score without references (quality estimation models)")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "Use the static scorer instead of calling a backend")
}

// loadSettings reads the config file and installs the logger. The log file
// flag wins over the file's log_file.
func loadSettings(opts *outputOptions) (*config.Config, error) {
	fileCfg, err := loadConfig(opts.configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	logPath := opts.logFilePath
	if logPath == "" {
		logPath = fileCfg.LogFile
	}
	if err := initLogging(opts.debug, logPath); err != nil {
		return nil, err
	}
	return fileCfg, nil
}

func initLogging(debug bool, logFilePath string) error {
	logLevel := logger.LevelInfo
	if debug {
		logLevel = logger.LevelDebug
	}
	var logFileW io.Writer
	if logFilePath != "" {
		if err := files.RejectSymlinkPath(logFilePath); err != nil {
			return err
		}
		f, err := os.OpenFile(logFilePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		cleanup.Register(f.Close)
		logFileW = f
	}
	logger.Init(logLevel, logFileW)
	return nil
}

// buildConfig layers built-in defaults, the config file and explicitly set
// flags, in that order.
func buildConfig(cmd *cobra.Command, input string, out *outputOptions, sc *scoringOptions, fileCfg *config.Config) pipeline.Config {
	flags := cmd.Flags()
	cfg := pipeline.Config{
		InputPath:     input,
		OutputPath:    out.output,
		Backend:       fileCfg.Backend,
		Model:         fileCfg.Model,
		Endpoint:      fileCfg.Endpoint,
		BatchSize:     fileCfg.BatchSize,
		MaxSegments:   fileCfg.MaxSegments,
		ScoreColumn:   fileCfg.ScoreColumn,
		ReferenceFree: fileCfg.ReferenceFree,
		Credentials: auth.Chain{
			Sources:    fileCfg.TokenSources,
			DotenvPath: fileCfg.Dotenv,
		},
		Overwrite: out.yes,
	}
	if flags.Changed("score-column") {
		cfg.ScoreColumn = out.scoreColumn
	}

	confirmer := newConfirmer()
	cfg.OnConfirmOverwrite = func(path string) (bool, error) {
		return confirmer.ConfirmOverwrite(path, out.yes)
	}

	if sc == nil {
		return cfg
	}
	if flags.Changed("backend") && sc.backend != cfg.Backend {
		cfg.Backend = sc.backend
		cfg.Model = ""
		cfg.Endpoint = ""
	}
	if flags.Changed("model") {
		cfg.Model = sc.model
	}
	if flags.Changed("endpoint") {
		cfg.Endpoint = sc.endpoint
	}
	if flags.Changed("batch-size") {
		cfg.BatchSize = sc.batchSize
	}
	if flags.Changed("max-segments") {
		cfg.MaxSegments = sc.maxSegments
	}
	if flags.Changed("token-source") {
		cfg.Credentials.Sources = sc.tokenSources
	}
	if flags.Changed("reference-free") {
		cfg.ReferenceFree = sc.referenceFree
	}
	if sc.dryRun {
		cfg.Backend = metadata.BackendStatic
		cfg.Model = ""
		cfg.Endpoint = ""
	}
	if isTerminal(int(os.Stdin.Fd())) {
		cfg.Credentials.Prompt = promptForKey
	}
	return cfg
}

// resolveInput returns the single positional argument, or asks for it on an
// interactive terminal.
func resolveInput(cmd *cobra.Command, args []string, label string) (string, error) {
	if len(args) > 0 {
		return prompt.CleanPath(args[0]), nil
	}
	confirmer := newConfirmer()
	path, err := confirmer.AskPath(label)
	if err != nil {
		_ = cmd.Usage()
		return "", fmt.Errorf("input file is required: %w", err)
	}
	return path, nil
}

func interactiveStdin() bool {
	c := newConfirmer()
	return c.IsInteractive != nil && c.IsInteractive()
}

func signalContext() (context.Context, func()) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			logger.Warn("Cancellation requested")
			cancel()
		case <-ctx.Done():
		}
	}()
	stop := func() {
		signal.Stop(sigCh)
		cancel()
	}
	return ctx, stop
}

func printResult(w io.Writer, res *pipeline.Result) {
	fmt.Fprintln(w, "\n--- Report ---")
	fmt.Fprintf(w, "Output: %s\n", res.OutputPath)
	fmt.Fprintf(w, "Languages: %s\n", res.LanguagePair())
	fmt.Fprintf(w, "Trans-units: %d, extracted: %d, skipped (status): %d, skipped (no MT match): %d\n",
		res.Stats.TransUnits, len(res.Units), res.Stats.SkippedStatus, res.Stats.SkippedMissing)
	printSummary(w, res.Backend, res.Model, res.Summary)
}

func printSummary(w io.Writer, backend, model string, s report.Summary) {
	if s.Count == 0 {
		return
	}
	fmt.Fprintf(w, "Backend: %s (%s)\n", backend, model)
	fmt.Fprintf(w, "Scores: n=%d min=%s max=%s mean=%s\n",
		s.Count, report.FormatScore(s.Min), report.FormatScore(s.Max), report.FormatScore(s.Mean))
}
