package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/BioHazard786/sensorlink/internal/channel"
	"github.com/BioHazard786/sensorlink/internal/device"
	"github.com/BioHazard786/sensorlink/internal/message"
	"github.com/BioHazard786/sensorlink/internal/ui"
)

const (
	sourceSimulated = "simulated"
	sourceReplay    = "replay"
)

var (
	sendFlags    connectionFlags
	flagSource   string
	flagFile     string
	flagRate     int
	flagPace     bool
	flagNoReport bool
)

var sendCmd = &cobra.Command{
	Use:     "send <channel|url>",
	Aliases: []string{"s"},
	Short:   "Pair with a receiver and stream sensor data to it",
	Long: `Join the receiver's channel and stream orientation and motion samples once
paired. Samples come from a simulated device or from a recorded JSON lines
file.

Examples:
  sensorlink send 3f2a9c7e-0d4b-4c55-9a51-2f0e3b7c1d20
  sensorlink send "https://sensorlink.qzz.io/sender?channel=3f2a9c7e"
  sensorlink send abc --source replay --file walk.jsonl --pace`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := channel.Parse(args[0])
		if err != nil {
			return err
		}
		return send(cmd, id)
	},
}

func send(cmd *cobra.Command, id channel.ID) error {
	cfg, err := sendFlags.load()
	if err != nil {
		return err
	}

	source, closeSource, err := openSource()
	if err != nil {
		return err
	}
	defer closeSource()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	peer, err := StartPeer(ctx, cfg, message.RoleSender, id)
	if err != nil {
		return err
	}

	started := time.Now()
	sourceErr := make(chan error, 1)
	go func() {
		sourceErr <- source.Run(ctx, peer.Session)
	}()

	var runErr error
	finished := false
	select {
	case <-ctx.Done():
	case <-peer.UI.Done():
	case runErr = <-sourceErr:
		// Replay finished; keep the UI until the user quits.
		finished = runErr == nil
		if finished {
			peer.Wait(ctx)
		}
	}
	cancel()
	peer.Close()

	stats := peer.Session.Stats()
	if !flagNoReport {
		fmt.Println()
		ui.RenderSenderSummary("Sensor Stream Summary", ui.SenderSummary{
			Channel:  id.String(),
			Duration: time.Since(started),
			Stats:    stats,
		})
	}

	switch {
	case runErr != nil:
	case stats.OrientationPublished+stats.MotionPublished == 0:
		ui.PrintWarning("No sensor data was sent: no receiver paired on " + id.String())
	case flagSource == sourceReplay && !finished:
		ui.PrintWarning("Replay stopped before the end of the recording")
	case finished:
		ui.PrintSuccess("Replay complete")
	}

	return runErr
}

func openSource() (device.Source, func(), error) {
	switch flagSource {
	case sourceSimulated:
		return device.NewSimulated(flagRate), func() {}, nil

	case sourceReplay:
		if flagFile == "" {
			return nil, nil, errors.New("--file is required with --source replay")
		}
		f, err := os.Open(flagFile)
		if err != nil {
			return nil, nil, fmt.Errorf("open recording: %w", err)
		}
		return device.NewReplay(f, flagPace), func() { f.Close() }, nil

	default:
		return nil, nil, fmt.Errorf("unknown source %q (want %s or %s)", flagSource, sourceSimulated, sourceReplay)
	}
}

func init() {
	rootCmd.AddCommand(sendCmd)
	sendFlags.register(sendCmd)

	sendCmd.Flags().StringVar(&flagSource, "source", sourceSimulated, "Sensor source: simulated or replay")
	sendCmd.Flags().StringVarP(&flagFile, "file", "f", "", "Recording to replay (JSON lines)")
	sendCmd.Flags().IntVar(&flagRate, "rate", device.DefaultRate, "Simulated samples per second")
	sendCmd.Flags().BoolVar(&flagPace, "pace", true, "Replay at the recorded speed")
	sendCmd.Flags().BoolVar(&flagNoReport, "no-summary", false, "Skip the summary table on exit")
}
