package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	verbose bool
	quiet   bool

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "annomerge",
	Short: "annomerge - merge OData annotation files",
	Long: `annomerge merges EDMX annotation files into one logical view.

Files are given from lowest to highest priority. For every target, a term
(optionally qualified) defined in a later file replaces the same term from
an earlier file. References from all files are kept in order.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		logger, err = newLogger(verbose, quiet)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Quiet mode (errors only)")

	// Add subcommands
	rootCmd.AddCommand(mergeCmd)
	rootCmd.AddCommand(diagnoseCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(storeCmd)
	rootCmd.AddCommand(versionCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func newLogger(verbose, quiet bool) (*zap.Logger, error) {
	config := zap.NewProductionConfig()
	switch {
	case verbose:
		config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	case quiet:
		config.Level = zap.NewAtomicLevelAt(zapcore.ErrorLevel)
	default:
		config.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	}
	return config.Build()
}

// getLogger returns the command logger, or a no-op logger when the root
// pre-run hook did not run (subcommands executed on their own in tests).
func getLogger() *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
