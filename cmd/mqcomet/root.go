package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/oukeidos/mqcomet/internal/cleanup"
	"github.com/oukeidos/mqcomet/internal/version"
)

func execute() {
	cmd := newRootCmd()
	err := cmd.Execute()
	if cleanupErr := cleanup.RunAll(); cleanupErr != nil {
		fmt.Fprintln(os.Stderr, cleanupErr)
		if err == nil {
			err = cleanupErr
		}
	}
	if err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := evaluateOptions{}

	cmd := &cobra.Command{
		Use:   "mqcomet",
		Short: "Score machine translation in memoQ bilingual files",
		Long: "mqcomet extracts manually confirmed segments that carry a machine translation\n" +
			"match from a memoQ XLIFF file, scores them and writes an xlsx report.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 && isSubcommand(cmd, args[0]) {
				_ = cmd.Usage()
				return fmt.Errorf("unknown command %q for %q", args[0], cmd.CommandPath())
			}
			return runEvaluate(cmd, args, &opts)
		},
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
	}

	cmd.Version = version.Info()
	cmd.SetVersionTemplate("{{.Version}}\n")
	cmd.SetUsageTemplate(rootUsageTemplate)

	addEvaluateFlags(cmd, &opts)

	cmd.AddCommand(
		newAboutCmd(),
		newEvaluateCmd(),
		newExtractCmd(),
		newScoreTableCmd(),
		newModelsCmd(),
		newEnvCmd(),
	)

	cmd.InitDefaultCompletionCmd()
	for _, sub := range cmd.Commands() {
		if sub.Name() == "completion" {
			sub.SetUsageTemplate(subcommandUsageTemplate)
			break
		}
	}

	return cmd
}

func hasAnyFlagSet(cmd *cobra.Command) bool {
	changed := false
	cmd.Flags().Visit(func(_ *pflag.Flag) {
		changed = true
	})
	return changed
}

func isSubcommand(cmd *cobra.Command, name string) bool {
	for _, c := range cmd.Commands() {
		if c.Name() == name {
			return true
		}
	}
	return false
}

func newAboutCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "about",
		Short: "Show a short description",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "mqcomet: MT quality reports for memoQ bilingual files")
			fmt.Fprintln(out, version.Info())
		},
	}
	cmd.SetUsageTemplate(subcommandUsageTemplate)
	return cmd
}
