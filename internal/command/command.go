// Package command prepares model-generated shell commands for
// execution: filling in user-supplied placeholder values and screening
// for obviously destructive patterns.
package command

import (
	"fmt"
	"regexp"
	"strings"
)

// placeholderPattern matches <name> placeholders the model is
// instructed to emit for user-supplied arguments.
var placeholderPattern = regexp.MustCompile(`<([^<>]+)>`)

// unsafeStrings is a limited, non-exhaustive screen. It doesn't catch
// whitespace or parameter-ordering variations — it only stops some
// simple catastrophic cases. Always review the command before running.
var unsafeStrings = []string{
	"rm -r -f /",
	"rm -rf /",
	"rm -fr /",
	"rm -rf --no-preserve-root",
	"rm -fr --no-preserve-root",
	"rm --no-preserve-root -rf ",
	"rm --no-preserve-root -fr ",
	"> /dev/sda",
	"of=/dev/sda",
	"mkfs.ext2 /dev/sda",
	"mkfs.ext3 /dev/sda",
	"mkfs.ext4 /dev/sda",
	"chmod -R 777 /",
	":(){ :|:& };:",
	"history | ",
	"format c: /q",
	"truncate -s 0",
}

// AskFunc prompts the user for a placeholder's value.
type AskFunc func(name string) (string, error)

// FillPlaceholders replaces each <name> placeholder in command with a
// value obtained from ask. Mismatched angle brackets are rejected
// outright rather than guessed at.
func FillPlaceholders(cmd string, ask AskFunc) (string, error) {
	if strings.Count(cmd, "<") != strings.Count(cmd, ">") {
		return "", fmt.Errorf("mismatched angle brackets in command: %s", cmd)
	}

	var askErr error
	filled := placeholderPattern.ReplaceAllStringFunc(cmd, func(match string) string {
		if askErr != nil {
			return match
		}
		value, err := ask(match)
		if err != nil {
			askErr = err
			return match
		}
		if err := ValidateInput(value); err != nil {
			askErr = err
			return match
		}
		return value
	})
	if askErr != nil {
		return "", askErr
	}
	return filled, nil
}

// ValidateInput rejects placeholder values that would point a command
// at the filesystem root.
func ValidateInput(value string) error {
	if value == "/" || value == "/*" {
		return fmt.Errorf("unsafe input %q", value)
	}
	return nil
}

// Review normalizes the command's whitespace and rejects it if it
// contains a known-unsafe pattern.
func Review(cmd string) (string, error) {
	cmd = strings.Join(strings.Fields(cmd), " ")
	for _, s := range unsafeStrings {
		if strings.Contains(cmd, s) {
			return "", fmt.Errorf("unsafe command: %s", cmd)
		}
	}
	return cmd, nil
}
