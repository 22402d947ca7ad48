package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "ribbitd",
	Short: "ribbitd is the Ribbit identity and authorization server",
	Long: `The Ribbit server verifies wallet signatures and Discord identities,
tracks Plague holder status, and issues the session tokens that gate
review writes.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
