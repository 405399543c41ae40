package cmd

import (
	"github.com/spf13/cobra"

	"github.com/BioHazard786/sensorlink/internal/channel"
	"github.com/BioHazard786/sensorlink/internal/message"
	"github.com/BioHazard786/sensorlink/internal/ui"
)

var receiveFlags connectionFlags

var receiveCmd = &cobra.Command{
	Use:     "receive [channel]",
	Aliases: []string{"r"},
	Short:   "Wait for a sender and display its sensor stream",
	Long: `Open a sensor channel and wait for a sender to pair with it. Without an
argument a fresh channel id is generated; share the printed link or id with
the sending device.

Examples:
  sensorlink receive
  sensorlink receive 3f2a9c7e-0d4b-4c55-9a51-2f0e3b7c1d20
  sensorlink receive --domain localhost:8080 --insecure`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id := channel.Resolve("")
		if len(args) == 1 {
			parsed, err := channel.Parse(args[0])
			if err != nil {
				return err
			}
			id = parsed
		}
		return receive(cmd, id)
	},
}

func receive(cmd *cobra.Command, id channel.ID) error {
	cfg, err := receiveFlags.load()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	peer, err := StartPeer(ctx, cfg, message.RoleReceiver, id)
	if err != nil {
		return err
	}
	peer.Wait(ctx)
	peer.Close()

	ui.PrintInfo("Left channel " + id.String())
	return nil
}

func init() {
	rootCmd.AddCommand(receiveCmd)
	receiveFlags.register(receiveCmd)
}
