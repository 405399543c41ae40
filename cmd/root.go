package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/BioHazard786/sensorlink/internal/ui"
	"github.com/BioHazard786/sensorlink/internal/version"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "sensorlink",
	Short: "Stream live device orientation and motion between two peers over a shared channel",
	Long: `sensorlink pairs a receiver and a sender on a shared pub/sub channel and streams
live orientation and motion samples from the sender to the receiver.

Start a receiver to get a channel id and share link, then start a sender with that
id or link. Both peers connect to the same broker (see sensorlink-broker).`,
	Version: version.Version,
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		ui.PrintError(err.Error())
		return 1
	}
	return 0
}
