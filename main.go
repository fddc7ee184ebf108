// Package main is the entry point for the subtasker CLI application.
package main

import (
	"fmt"
	"os"

	"github.com/danielolaszy/subtasker/cmd"
	"github.com/danielolaszy/subtasker/internal/logging"
	"github.com/danielolaszy/subtasker/internal/server"
)

// main executes the root command and exits non-zero when it fails.
func main() {
	logging.Debug("starting subtasker", "version", server.Version, "log_level", logging.LevelFromEnv())

	if err := cmd.Execute(); err != nil {
		logging.Error("command execution failed", "error", err)
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
