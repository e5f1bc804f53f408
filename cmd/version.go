package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Asmer72582/upscholar-live/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the uplive version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("uplive " + version.Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
