package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/oukeidos/mqcomet/internal/metadata"
)

func newModelsCmd() *cobra.Command {
	var backend string
	cmd := &cobra.Command{
		Use:   "models",
		Short: "List known scoring models",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if backend != "" && !metadata.IsBackend(backend) {
				return fmt.Errorf("unknown backend %q", backend)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Known Models:")
			for _, m := range metadata.ModelsFor(backend) {
				mode := "needs ref"
				if m.ReferenceFree {
					mode = "reference-free"
				}
				def := ""
				if metadata.DefaultModel(m.Backend) == m.ID {
					def = " (default)"
				}
				fmt.Fprintf(out, "  %-7s %-32s %-15s %s%s\n", m.Backend, m.ID, mode, m.Label, def)
			}
			return nil
		},
	}
	cmd.SetUsageTemplate(subcommandUsageTemplate)
	cmd.Flags().StringVar(&backend, "backend", "", "Only list models of this backend")
	return cmd
}
