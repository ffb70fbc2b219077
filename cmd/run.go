package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stevehiehn/acttest/internal/act"
)

var errRunFailed = errors.New("workflow run failed")

var runFlags actFlags

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run workflows with act and report step results",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, opts, err := runFlags.build()
		if err != nil {
			return err
		}
		if !jsonOutput {
			opts.Stream = cmd.ErrOrStderr()
		}

		var result *act.Result
		f := runFlags
		switch {
		case f.job != "" && f.event != "":
			result, err = a.RunEventAndJob(cmd.Context(), f.event, f.job, opts)
		case f.job != "":
			result, err = a.RunJob(cmd.Context(), f.job, opts)
		default:
			event := f.event
			if event == "" {
				event = "push"
			}
			result, err = a.RunEvent(cmd.Context(), event, opts)
		}
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if jsonOutput {
			if err := writeJSON(out, result); err != nil {
				return err
			}
		} else {
			printSteps(out, result.Steps)
			if result.Success {
				fmt.Fprintf(out, "\n%d step(s) passed.\n", len(result.Steps))
			} else {
				fmt.Fprintf(out, "\nRun failed (act exit code %d).\n", result.ExitCode)
			}
			if result.Artifacts != "" {
				fmt.Fprintf(out, "Artifacts: %s\n", result.Artifacts)
			}
			fmt.Fprintf(out, "Run ID: %s\n", result.RunID)
		}
		if !result.Success {
			return errRunFailed
		}
		return nil
	},
}

func init() {
	runFlags.register(runCmd)
	rootCmd.AddCommand(runCmd)
}
