package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var dryRunFlags actFlags

var dryRunCmd = &cobra.Command{
	Use:   "dry-run",
	Short: "Show the act command a run would execute",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, opts, err := dryRunFlags.build()
		if err != nil {
			return err
		}
		argv := append([]string{cfg.ActBinary}, maskSecrets(a.Plan(dryRunFlags.command(), opts))...)

		out := cmd.OutOrStdout()
		if jsonOutput {
			return writeJSON(out, map[string]any{"cwd": a.Cwd(), "argv": argv})
		}
		fmt.Fprintf(out, "Would run in %s:\n  %s\n", a.Cwd(), strings.Join(argv, " "))
		if opts.MockSteps != nil {
			fmt.Fprintf(out, "Would mock steps in %d job(s).\n", len(opts.MockSteps))
		}
		if len(opts.MockAPI) > 0 {
			fmt.Fprintf(out, "Would start a mock proxy for %d endpoint(s).\n", len(opts.MockAPI))
		}
		return nil
	},
}

func init() {
	dryRunFlags.register(dryRunCmd)
	rootCmd.AddCommand(dryRunCmd)
}

// maskSecrets hides the values of -s arguments.
func maskSecrets(args []string) []string {
	out := make([]string, len(args))
	copy(out, args)
	for i := 1; i < len(out); i++ {
		if out[i-1] != "-s" {
			continue
		}
		if k, _, ok := strings.Cut(out[i], "="); ok {
			out[i] = k + "=***"
		}
	}
	return out
}
