package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/arin/qx-cli/internal/ai"
	"github.com/arin/qx-cli/internal/config"
	"github.com/arin/qx-cli/internal/prompt"
	"github.com/arin/qx-cli/internal/ui"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var explainCmd = &cobra.Command{
	Use:   "explain <command>",
	Short: "Explain a shell command in plain English",
	Long: `Explain what a shell command does, streamed as the model writes it.

Examples:
  qx explain "tar -xzf archive.tar.gz"
  qx explain "find / -name '*.log' -size +100M"
  qx explain "awk '{print $1}' file.txt"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("configuration error: %w", err)
		}

		provider, err := ai.NewOpenAIProvider(ai.OpenAIConfig{
			APIKey:      cfg.APIKey,
			BaseURL:     cfg.BaseURL,
			Model:       cfg.Model,
			MaxTokens:   cfg.MaxTokens,
			Temperature: cfg.Temperature,
		})
		if err != nil {
			return err
		}

		chat := ai.New(provider, chatOptions(cfg), logger.Sugar())
		if err := chat.Append(ai.RoleSystem, prompt.System()); err != nil {
			return err
		}

		shellCmd := strings.Join(args, " ")
		cyan := color.New(color.FgCyan, color.Bold)
		cyan.Fprintf(os.Stderr, "\n  %s\n\n", shellCmd)

		sp := ui.NewSpinner("Thinking...")
		sp.Start()
		defer sp.Stop()
		// The explanation streams into the content field, so the first
		// printed byte clears the spinner.
		chat.SetOutput(sp.StopOnWrite(os.Stdout), os.Stderr)

		if _, err := chat.Send(cmd.Context(), prompt.Explain(shellCmd)); err != nil {
			return fmt.Errorf("explanation failed: %w", err)
		}
		return nil
	},
}
