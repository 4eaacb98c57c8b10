package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/oukeidos/mqcomet/internal/logger"
	"github.com/oukeidos/mqcomet/internal/pipeline"
)

type evaluateOptions struct {
	out     outputOptions
	scoring scoringOptions
}

func addEvaluateFlags(cmd *cobra.Command, opts *evaluateOptions) {
	addOutputFlags(cmd, &opts.out)
	addScoringFlags(cmd, &opts.scoring)
}

func newEvaluateCmd() *cobra.Command {
	opts := evaluateOptions{}
	cmd := &cobra.Command{
		Use:   "evaluate <input.mqxliff>",
		Short: "Extract, score and write the xlsx report (default command)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEvaluate(cmd, args, &opts)
		},
		SilenceUsage: true,
	}
	cmd.SetUsageTemplate(subcommandUsageTemplate)
	addEvaluateFlags(cmd, &opts)
	return cmd
}

func runEvaluate(cmd *cobra.Command, args []string, opts *evaluateOptions) error {
	if len(args) == 0 && !hasAnyFlagSet(cmd) && !interactiveStdin() {
		return cmd.Help()
	}
	input, err := resolveInput(cmd, args, "Path to the .mqxliff file: ")
	if err != nil {
		return err
	}
	fileCfg, err := loadSettings(&opts.out)
	if err != nil {
		return err
	}
	cfg := buildConfig(cmd, input, &opts.out, &opts.scoring, fileCfg)

	ctx, stop := signalContext()
	defer stop()
	res, err := pipeline.Run(ctx, cfg)
	if err != nil {
		if ctx.Err() != nil {
			logger.Warn("Evaluation canceled", "error", err)
			return fmt.Errorf("evaluation canceled")
		}
		return err
	}
	printResult(cmd.OutOrStdout(), res)
	return nil
}

func newExtractCmd() *cobra.Command {
	opts := outputOptions{}
	cmd := &cobra.Command{
		Use:   "extract <input.mqxliff>",
		Short: "Write the extracted segments without scoring them",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input, err := resolveInput(cmd, args, "Path to the .mqxliff file: ")
			if err != nil {
				return err
			}
			fileCfg, err := loadSettings(&opts)
			if err != nil {
				return err
			}
			res, err := pipeline.RunExtract(buildConfig(cmd, input, &opts, nil, fileCfg))
			if err != nil {
				return err
			}
			printResult(cmd.OutOrStdout(), res)
			return nil
		},
		SilenceUsage: true,
	}
	cmd.SetUsageTemplate(subcommandUsageTemplate)
	addOutputFlags(cmd, &opts)
	return cmd
}

func newScoreTableCmd() *cobra.Command {
	opts := evaluateOptions{}
	cmd := &cobra.Command{
		Use:   "score-xlsx <input.xlsx>",
		Short: "Score an existing workbook with source, mt and ref columns",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input, err := resolveInput(cmd, args, "Path to the .xlsx file: ")
			if err != nil {
				return err
			}
			fileCfg, err := loadSettings(&opts.out)
			if err != nil {
				return err
			}
			cfg := buildConfig(cmd, input, &opts.out, &opts.scoring, fileCfg)

			ctx, stop := signalContext()
			defer stop()
			res, err := pipeline.ScoreTable(ctx, cfg)
			if err != nil {
				if ctx.Err() != nil {
					logger.Warn("Scoring canceled", "error", err)
					return fmt.Errorf("scoring canceled")
				}
				return err
			}
			w := cmd.OutOrStdout()
			fmt.Fprintln(w, "\n--- Report ---")
			fmt.Fprintf(w, "Output: %s\n", res.OutputPath)
			fmt.Fprintf(w, "Rows: %d, scored: %d, skipped: %d\n", res.Rows, res.Scored, res.Skipped)
			printSummary(w, res.Backend, res.Model, res.Summary)
			return nil
		},
		SilenceUsage: true,
	}
	cmd.SetUsageTemplate(subcommandUsageTemplate)
	addEvaluateFlags(cmd, &opts)
	return cmd
}
