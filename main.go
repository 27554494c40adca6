package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/arin/qx-cli/cmd"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	// Ctrl-C cancels the in-flight turn; deferred cleanup still leaves
	// the terminal on a fresh line.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cmd.SetVersion(version)
	if err := cmd.ExecuteContext(ctx); err != nil {
		if ctx.Err() != nil {
			fmt.Fprintln(os.Stderr, "\nInterrupted. Exiting.")
			os.Exit(130)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
