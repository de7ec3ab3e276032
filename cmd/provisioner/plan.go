package main

import (
	"fmt"

	"github.com/felixgeelhaar/provisioner/internal/app"
	"github.com/spf13/cobra"
)

var planCmd = &cobra.Command{
	Use:   "plan [manifest]",
	Short: "Show what provisioner would install",
	Long: `Plan loads the manifest and shows what would be installed.

This command:
1. Loads and validates the manifest
2. Checks every entry against the local environment
3. Lists the entries that are missing (without installing anything)`,
	Args: cobra.MaximumNArgs(1),
	RunE: runPlan,
}

func init() {
	rootCmd.AddCommand(planCmd)
}

// planOutput is the JSON form of a plan.
type planOutput struct {
	Manifest  string   `json:"manifest"`
	Install   []string `json:"install"`
	Satisfied []string `json:"satisfied"`
}

func runPlan(cmd *cobra.Command, args []string) error {
	a, path, err := setup(cmd, args)
	if err != nil {
		return err
	}

	m, plan, err := a.Plan(cmd.Context(), path)
	if err != nil {
		return fmt.Errorf("plan failed: %w", err)
	}

	if jsonOutput {
		out := planOutput{Manifest: m.Source(), Install: []string{}, Satisfied: []string{}}
		for _, e := range plan.Entries() {
			out.Install = append(out.Install, e.String())
		}
		for _, e := range plan.Satisfied() {
			out.Satisfied = append(out.Satisfied, e.String())
		}
		return app.WriteJSON(cmd.OutOrStdout(), out)
	}

	a.PrintPlan(m, plan)
	return nil
}
