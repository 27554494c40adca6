// Package cmd wires the qx CLI together.
package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/arin/qx-cli/internal/logging"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	yolo    bool
	verbose bool

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "qx [natural language request]",
	Short: "A natural language CLI assistant",
	Long: `qx translates plain English into shell commands using an AI model,
streaming its answer as it is generated. Commands are shown for review
before anything runs.

Examples:
  qx find all .log files larger than 100mb
  qx "how do I see which process is using port 8080?"
  qx compress this folder

Note: Avoid special shell characters like ? or * in your prompt.
      Use quotes if needed: qx "is slack running?"`,
	RunE:          converse,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		logger, err = logging.New(verbose)
		if err != nil {
			return fmt.Errorf("failed to set up logging: %w", err)
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
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log retry and stream details to stderr")
	rootCmd.Flags().BoolVar(&yolo, "yolo", false, "Run generated commands without confirmation")

	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(explainCmd)
	rootCmd.AddCommand(historyCmd)
}

// SetVersion sets the version string shown by --version.
func SetVersion(v string) {
	rootCmd.Version = v
}

// ExecuteContext is the entry point called from main. The context
// carries process-level cancellation (e.g. Ctrl-C) into the retry loop
// and the stream consumer.
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func joinArgs(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}
