package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version is the connector release, matching the agent descriptor the
// payload carries.
const Version = "1.0.0"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the connector version",
	Run: func(cmd *cobra.Command, args []string) {
		_ = args
		fmt.Printf("n8npipe %s\n", Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
