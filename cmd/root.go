package cmd

import (
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/Asmer72582/upscholar-live/internal/ui"
	"github.com/Asmer72582/upscholar-live/internal/version"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "uplive",
	Short: "Real-time classroom sessions for Upscholar: live audio/video, chat and whiteboard over WebRTC",
	Long: `uplive is the real-time session core of the Upscholar virtual classroom.
It runs the signaling relay that classrooms meet through, and a terminal
client that joins a room, exchanges live media over a direct peer mesh,
and replicates chat and whiteboard strokes to every participant.`,
	Version: version.Version,
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main().
func Execute() {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	go func() {
		<-sig
		os.Exit(0)
	}()

	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	if err := rootCmd.Execute(); err != nil {
		ui.PrintError(err.Error())
		os.Exit(1)
	}
}
