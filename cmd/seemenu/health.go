package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func healthCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check that the menu analysis backend is reachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.analyzer().Health(cmd.Context()); err != nil {
				return fmt.Errorf("backend %s is unhealthy: %w", opts.apiURL, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "backend %s is healthy\n", opts.apiURL)
			return nil
		},
	}
}
