package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/oukeidos/mqcomet/internal/auth"
)

type envOptions struct {
	service string
	dotenv  string
}

func newEnvCmd() *cobra.Command {
	opts := envOptions{}
	cmd := &cobra.Command{
		Use:   "env",
		Short: "Manage scorer credentials in the OS keychain",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEnvStatus(cmd, &opts)
		},
	}

	cmd.SetUsageTemplate(subcommandUsageTemplate)
	cmd.PersistentFlags().StringVar(&opts.service, "service", string(auth.ServiceHF), "Service to manage (hf, gemini or openai)")
	cmd.PersistentFlags().StringVar(&opts.dotenv, "dotenv", ".env", "Path of the .env file checked by status")

	cmd.AddCommand(
		newEnvSetupCmd(&opts),
		newEnvDeleteCmd(&opts),
		newEnvStatusCmd(&opts),
	)
	return cmd
}

func newEnvSetupCmd(opts *envOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Save a credential to the keychain (prompt only)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEnvSetup(cmd, opts)
		},
	}
	cmd.SetUsageTemplate(subcommandUsageTemplate)
	return cmd
}

func newEnvDeleteCmd(opts *envOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete a credential from the keychain",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEnvDelete(cmd, opts)
		},
	}
	cmd.SetUsageTemplate(subcommandUsageTemplate)
	return cmd
}

func newEnvStatusCmd(opts *envOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show where a credential is available (default if no action given)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEnvStatus(cmd, opts)
		},
	}
	cmd.SetUsageTemplate(subcommandUsageTemplate)
	return cmd
}

func runEnvSetup(cmd *cobra.Command, opts *envOptions) error {
	svc, err := auth.ParseService(opts.service)
	if err != nil {
		return err
	}
	if !isTerminal(int(os.Stdin.Fd())) {
		return fmt.Errorf("env setup needs an interactive terminal")
	}
	entered, err := promptForKey(fmt.Sprintf("%s credential: ", svc.DisplayName()))
	if err != nil {
		return fmt.Errorf("error reading key: %w", err)
	}
	key := strings.TrimSpace(entered)
	if key == "" {
		return fmt.Errorf("a credential is required for setup")
	}
	if err := saveKey(svc, key); err != nil {
		return fmt.Errorf("error saving key: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Saved %s credential to keychain.\n", svc.DisplayName())
	return nil
}

func runEnvDelete(cmd *cobra.Command, opts *envOptions) error {
	svc, err := auth.ParseService(opts.service)
	if err != nil {
		return err
	}
	if err := deleteKey(svc); err != nil {
		return fmt.Errorf("error deleting key: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s credential from keychain.\n", svc.DisplayName())
	return nil
}

func runEnvStatus(cmd *cobra.Command, opts *envOptions) error {
	svc, err := auth.ParseService(opts.service)
	if err != nil {
		return err
	}
	found := keyStatus(svc, opts.dotenv)
	if len(found) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "%s credential: Not Found (keychain empty, %s not set, not in %s)\n",
			svc.DisplayName(), svc.EnvVar(), opts.dotenv)
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s credential: Found (sources=%s)\n", svc.DisplayName(), strings.Join(found, ", "))
	return nil
}
