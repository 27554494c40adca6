// Package executor handles execution of approved shell commands.
package executor

import (
	"os"
	"os/exec"
	"runtime"
)

// Run executes a shell command with the user's terminal wired through,
// so interactive and long-running commands behave normally. The command
// string is passed to the system shell unmodified.
func Run(command string) error {
	shell, flag := shellAndFlag()

	cmd := exec.Command(shell, flag, command)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Env = os.Environ()
	cmd.Dir, _ = os.Getwd()

	return cmd.Run()
}

func shellAndFlag() (string, string) {
	if runtime.GOOS == "windows" {
		return "powershell", "-Command"
	}
	if shell := os.Getenv("SHELL"); shell != "" {
		return shell, "-c"
	}
	return "/bin/sh", "-c"
}
