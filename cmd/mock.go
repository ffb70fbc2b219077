package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/stevehiehn/acttest/internal/workflow"
)

var (
	mockWorkflow  string
	mockStepsFile string
	mockCwd       string
)

var mockCmd = &cobra.Command{
	Use:   "mock",
	Short: "Rewrite workflow steps without running act",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ms, err := workflow.LoadMockSteps(mockStepsFile)
		if err != nil {
			return err
		}
		cwd := mockCwd
		if cwd == "" {
			cwd = "."
		}
		m := workflow.NewStepMocker(mockWorkflow, cwd)
		if err := m.Mock(ms); err != nil {
			return err
		}
		path, err := m.ResolvePath()
		if err != nil {
			return err
		}
		log.Info("mocked workflow steps", zap.String("path", path))

		out := cmd.OutOrStdout()
		if jsonOutput {
			return writeJSON(out, map[string]any{"path": path, "jobs": len(ms)})
		}
		fmt.Fprintf(out, "Mocked %d job(s) in %s\n", len(ms), path)
		return nil
	},
}

func init() {
	mockCmd.Flags().StringVarP(&mockWorkflow, "workflow", "W", "", "Workflow file name")
	mockCmd.Flags().StringVar(&mockStepsFile, "mock-steps", "", "YAML file of step mocks keyed by job")
	mockCmd.Flags().StringVar(&mockCwd, "cwd", "", "Working directory (default current directory)")
	_ = mockCmd.MarkFlagRequired("workflow")
	_ = mockCmd.MarkFlagRequired("mock-steps")
	rootCmd.AddCommand(mockCmd)
}
