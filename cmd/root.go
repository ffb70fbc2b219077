package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/stevehiehn/acttest/internal/config"
	acterrors "github.com/stevehiehn/acttest/internal/errors"
	"github.com/stevehiehn/acttest/internal/logger"
)

var (
	jsonOutput bool
	cfgFile    string
	verbose    bool
	logLevel   string

	cfg *config.Config
	log = zap.NewNop()
)

// version is set at build time with -ldflags "-X".
var version = "dev"

var rootCmd = &cobra.Command{
	Use:           "acttest",
	Short:         "Test GitHub Actions workflows with act",
	Long:          "acttest runs workflows through act with mocked steps and mocked HTTP APIs, and reports structured step results.",
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("verbose") {
			c.Verbose = verbose
		}
		if logLevel != "" {
			c.Log.Level = logLevel
		} else if c.Verbose {
			c.Log.Level = "debug"
		}
		l, err := logger.New(&logger.Config{Level: c.Log.Level, Format: c.Log.Format, Output: c.Log.Output})
		if err != nil {
			return fmt.Errorf("creating logger: %w", err)
		}
		cfg, log = c, l
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = log.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output raw JSON")
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default ./acttest.yaml or $HOME/.acttest/acttest.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose act output and debug logging")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
}

// Execute runs the root command.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		var rerr *acterrors.RunError
		if errors.As(err, &rerr) && rerr.Hint != "" {
			fmt.Fprintf(os.Stderr, "Hint: %s\n", rerr.Hint)
		}
		stop()
		os.Exit(1)
	}
}
