// Package cli implements the turc commands. `turc serve` runs the
// local daemon; every other command is a thin client for its HTTP API.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var apiFlag string

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "turc",
	Short: "Download manager client",
	Long:  "turc keeps a local registry of downloads on top of the engine daemon. Run `turc serve` once, then add, list and control downloads from any shell.",
}

func init() {
	RootCmd.PersistentFlags().StringVar(&apiFlag, "api", "", "Daemon API base URL (default: $TURC_API or http://127.0.0.1:8642)")
}

func apiBase() string {
	if apiFlag != "" {
		return apiFlag
	}
	if env := os.Getenv("TURC_API"); env != "" {
		return env
	}
	return "http://127.0.0.1:8642"
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}
