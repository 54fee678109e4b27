// Package cmd wires the CLI surface for the connector service.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "n8npipe",
	Short: "OpenWebUI to n8n webhook connector",
	Long:  "Forwards chat messages and session metadata from an OpenWebUI front-end to an n8n workflow webhook and relays back the reply.",
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
