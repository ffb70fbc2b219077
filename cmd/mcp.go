package cmd

import (
	"github.com/spf13/cobra"

	"github.com/stevehiehn/acttest/internal/act"
	"github.com/stevehiehn/acttest/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP stdio server",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s := mcp.NewServer(mcp.Deps{
			NewAct: func(cwd string) (*act.Act, error) {
				return newAct(cwd, "")
			},
			Logger:  log,
			Version: rootCmd.Version,
		})
		return s.Serve(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
