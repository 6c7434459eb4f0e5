package cli

import (
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	// Skip config loading so version works anywhere.
	PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
	Run: func(cmd *cobra.Command, _ []string) {
		cmd.Printf("pdf2epub version %s\n", version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
