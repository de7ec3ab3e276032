package main

import (
	"fmt"

	"github.com/felixgeelhaar/provisioner/internal/app"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate [manifest]",
	Short: "Check a manifest without touching the environment",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	a, path, err := setup(cmd, args)
	if err != nil {
		return err
	}

	result, err := a.Validate(path)
	if err != nil {
		return fmt.Errorf("validate failed: %w", err)
	}

	if jsonOutput {
		if err := app.WriteJSON(cmd.OutOrStdout(), result); err != nil {
			return err
		}
	} else {
		a.PrintValidation(result)
	}

	if !result.Valid() {
		return &exitError{code: 1, msg: fmt.Sprintf("manifest has %d errors", len(result.Errors))}
	}
	return nil
}
