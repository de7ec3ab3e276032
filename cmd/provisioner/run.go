package main

import (
	"fmt"

	"github.com/felixgeelhaar/provisioner/internal/app"
	"github.com/felixgeelhaar/provisioner/internal/domain/provision"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run [manifest]",
	Short: "Install every missing manifest entry",
	Long: `Run checks the manifest against the environment and installs what is
missing, one entry at a time and in manifest order.

A failed entry does not stop the remaining ones. Binaries are looked up on
PATH after installing; one that cannot be found is reported as failed.
The exit code is 0 only when no entry failed.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	a, path, err := setup(cmd, args)
	if err != nil {
		return err
	}

	report, err := a.Run(cmd.Context(), path)
	if err != nil {
		return fmt.Errorf("run aborted: %w", err)
	}

	if jsonOutput {
		if err := app.WriteJSON(cmd.OutOrStdout(), report); err != nil {
			return err
		}
	} else {
		a.PrintResults(report)
	}

	if report.Status != provision.StatusOK {
		return &exitError{
			code: report.ExitCode(),
			msg:  fmt.Sprintf("%d of %d entries failed", report.Summary.Failed, report.Summary.Total),
		}
	}
	return nil
}
