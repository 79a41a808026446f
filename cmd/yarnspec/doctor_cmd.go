package main

import (
	"fmt"

	"github.com/atinylittleshell/yarnspec/internal/bash"
	"github.com/atinylittleshell/yarnspec/internal/core"
	"github.com/atinylittleshell/yarnspec/internal/doctor"
	"github.com/atinylittleshell/yarnspec/internal/styles"
	"github.com/spf13/cobra"
)

func newDoctorCmd() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check that Yarn supports workspace script discovery here",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			shell, err := bash.NewShell(bash.Options{
				Dir:         dir,
				KillTimeout: cfg.KillTimeout,
				Logger:      logger,
			})
			if err != nil {
				return err
			}

			results, err := doctor.Run(cmd.Context(), shell, cfg.YarnBinary)
			if err != nil {
				return err
			}
			results = append([]doctor.Result{doctor.CheckDataDir(core.DataDir())}, results...)

			out := cmd.OutOrStdout()
			for _, r := range results {
				mark := styles.OK("ok  ")
				if !r.OK {
					mark = styles.ERROR("fail")
				}
				fmt.Fprintf(out, "%s %s %s\n", mark, r.Name, styles.DIM(r.Detail))
			}

			if !doctor.Healthy(results) {
				return fmt.Errorf("some checks failed")
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&dir, "dir", "C", "", "directory to check (default current directory)")
	return cmd
}
