package cmd

import (
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/stevehiehn/acttest/internal/output"
)

var parseCmd = &cobra.Command{
	Use:   "parse [transcript]",
	Short: "Parse a saved act transcript into step results",
	Long:  "Parse reads act output from a file, or from stdin when no file or \"-\" is given.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var r io.Reader = cmd.InOrStdin()
		if len(args) == 1 && args[0] != "-" {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			r = f
		}
		steps, err := output.ParseReader(r)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if jsonOutput {
			return writeJSON(out, steps)
		}
		printSteps(out, steps)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(parseCmd)
}
