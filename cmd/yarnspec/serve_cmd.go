package main

import (
	"context"
	"errors"

	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Answer completion requests over stdin/stdout",
		Long: `Serve completion requests for one host session.

Each input line is a JSON request:   {"id": 1, "cwd": "/path/to/project"}
Each output line is the response:    {"id": 1, "spec": {"name": "yarn", ...}}
or, when resolution fails:           {"id": 1, "error": "..."}

Scripts are cached for the whole session while requests stay inside the same
workspace root.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(dir)
			if err != nil {
				return err
			}
			err = s.Serve(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout())
			// Interrupted by a signal.
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}

	cmd.Flags().StringVarP(&dir, "dir", "C", "", "starting directory (default current directory)")
	return cmd
}
