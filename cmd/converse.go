package cmd

import (
	"bufio"
	"fmt"
	"os"
	"time"

	"github.com/arin/qx-cli/internal/ai"
	"github.com/arin/qx-cli/internal/command"
	"github.com/arin/qx-cli/internal/config"
	"github.com/arin/qx-cli/internal/executor"
	"github.com/arin/qx-cli/internal/history"
	"github.com/arin/qx-cli/internal/prompt"
	"github.com/arin/qx-cli/internal/ui"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// converse runs the main loop: send the prompt, stream the reply, then
// act on whatever the model returned — a command to review and run, an
// answer to read, or an error.
func converse(cmd *cobra.Command, args []string) error {
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

	stdin := bufio.NewScanner(os.Stdin)

	userPrompt := joinArgs(args)
	if userPrompt == "" {
		userPrompt = readLine(stdin, "> Prompt: ")
		if userPrompt == "" {
			return nil
		}
	}

	for {
		resp, err := sendStreaming(cmd, chat, userPrompt)
		if err != nil {
			return err
		}

		if resp.HasError() {
			red := color.New(color.FgRed)
			red.Fprintln(os.Stderr, "The model returned an error:")
			fmt.Fprintln(os.Stderr, *resp.Error)
			return fmt.Errorf("model error")
		}

		if resp.HasCommand() {
			next, done, err := doCommand(stdin, userPrompt, *resp.Command)
			if err != nil {
				return err
			}
			if done {
				return nil
			}
			userPrompt = next
			continue
		}

		// Content-only reply: keep chatting or quit.
		input := readLine(stdin, "[q]uit, or continue chatting: ")
		if input == "" || isQuit(input) {
			return nil
		}
		userPrompt = input
	}
}

// sendStreaming runs one turn with a spinner covering the handshake;
// the spinner stops the moment the stream opens so the live-printed
// content starts on a clean line.
func sendStreaming(cmd *cobra.Command, chat *ai.Chat, userPrompt string) (*ai.Response, error) {
	sp := ui.NewSpinner("Thinking...")
	sp.Start()
	defer sp.Stop()
	chat.OnStreamOpen(sp.Stop)

	return chat.Send(cmd.Context(), userPrompt)
}

// doCommand reviews and optionally runs a model-generated command. It
// returns the next prompt when the user keeps chatting, or done=true
// when the session should end.
func doCommand(stdin *bufio.Scanner, userPrompt, rawCmd string) (next string, done bool, err error) {
	filled, err := command.FillPlaceholders(rawCmd, func(name string) (string, error) {
		return readLine(stdin, fmt.Sprintf("Enter the value for %s: ", name)), nil
	})
	if err != nil {
		return "", false, err
	}

	reviewed, err := command.Review(filled)
	if err != nil {
		// The model's explanation, if any, was already streamed.
		return "", false, fmt.Errorf("unsafe command, not running it")
	}

	cyan := color.New(color.FgCyan, color.Bold)
	cyan.Fprintf(os.Stderr, "Command: `%s`\n", reviewed)

	if yolo {
		return "", true, runCommand(userPrompt, reviewed)
	}

	switch input := readLine(stdin, "[r]un, (e)xplain, (q)uit, or continue chatting: "); input {
	case "", "r", "R", "run":
		return "", true, runCommand(userPrompt, reviewed)
	case "q", "quit", "exit":
		return "", true, nil
	case "e", "ex", "explain":
		return prompt.Explain(reviewed), false, nil
	default:
		userPrompt := readLine(stdin, "\n> Prompt ([q] to quit): ")
		if userPrompt == "" || isQuit(userPrompt) {
			return "", true, nil
		}
		return userPrompt, false, nil
	}
}

func runCommand(userPrompt, cmd string) error {
	err := executor.Run(cmd)
	_ = history.Save(history.Entry{
		Prompt:  userPrompt,
		Command: cmd,
		Success: err == nil,
	})
	if err != nil {
		return fmt.Errorf("command failed: %w", err)
	}
	return nil
}

func chatOptions(cfg *config.Config) ai.Options {
	return ai.Options{
		MaxRetries:     cfg.MaxRetries,
		Timeout:        time.Duration(cfg.TimeoutSecs) * time.Second,
		RetryDelay:     time.Duration(cfg.RetryDelaySecs) * time.Second,
		MaxEmptyChunks: cfg.MaxEmptyChunks,
	}
}

func readLine(stdin *bufio.Scanner, promptText string) string {
	fmt.Fprint(os.Stderr, promptText)
	if !stdin.Scan() {
		return ""
	}
	return stdin.Text()
}

func isQuit(s string) bool {
	switch s {
	case "q", "quit", "exit":
		return true
	}
	return false
}
