// Package logging constructs the process logger. Output is silent
// unless the user asks for it with --verbose, so debug traces never
// pollute the streamed response.
package logging

import (
	"go.uber.org/zap"
)

// New returns a logger writing to stderr at debug level when verbose is
// set, and a no-op logger otherwise.
func New(verbose bool) (*zap.Logger, error) {
	if !verbose {
		return zap.NewNop(), nil
	}

	cfg := zap.NewDevelopmentConfig()
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	return cfg.Build()
}
