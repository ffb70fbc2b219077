package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stevehiehn/acttest/internal/mockapi"
	"github.com/stevehiehn/acttest/internal/workflow"
)

var (
	validateSteps string
	validateAPI   string
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate step mock and API mock files",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if validateSteps == "" && validateAPI == "" {
			return fmt.Errorf("nothing to validate: pass --mock-steps and/or --mock-api")
		}
		report := map[string]any{"valid": true}
		if validateSteps != "" {
			ms, err := workflow.LoadMockSteps(validateSteps)
			if err == nil {
				err = workflow.Validate(ms)
			}
			if err != nil {
				return err
			}
			report["jobs"] = len(ms)
		}
		if validateAPI != "" {
			mocks, err := mockapi.LoadFile(validateAPI)
			if err != nil {
				return err
			}
			report["mocks"] = len(mocks)
		}

		out := cmd.OutOrStdout()
		if jsonOutput {
			return writeJSON(out, report)
		}
		fmt.Fprintln(out, "Mock files are valid.")
		return nil
	},
}

func init() {
	validateCmd.Flags().StringVar(&validateSteps, "mock-steps", "", "YAML file of step mocks keyed by job")
	validateCmd.Flags().StringVar(&validateAPI, "mock-api", "", "YAML file of HTTP mocks")
	rootCmd.AddCommand(validateCmd)
}
