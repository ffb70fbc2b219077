package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var (
	listEvent    string
	listWorkflow string
	listCwd      string
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the jobs act would run",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newAct(listCwd, listWorkflow)
		if err != nil {
			return err
		}
		workflows, err := a.List(cmd.Context(), listEvent, "", "")
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if jsonOutput {
			return writeJSON(out, workflows)
		}
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "JOB ID\tJOB NAME\tWORKFLOW\tFILE\tEVENTS")
		for _, w := range workflows {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", w.JobID, w.JobName, w.WorkflowName, w.WorkflowFile, w.Events)
		}
		return tw.Flush()
	},
}

func init() {
	listCmd.Flags().StringVarP(&listEvent, "event", "e", "", "Only list jobs triggered by this event")
	listCmd.Flags().StringVarP(&listWorkflow, "workflow", "W", "", "Workflow file or directory")
	listCmd.Flags().StringVar(&listCwd, "cwd", "", "Working directory (default current directory)")
	rootCmd.AddCommand(listCmd)
}
