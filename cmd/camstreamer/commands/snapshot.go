package commands

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/bryanchriswhite/CamStreamer/internal/sensor"
	"github.com/spf13/cobra"
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Capture one frame to a file",
	Long: `Open the configured sensor, capture a single JPEG frame and write it to
a file. Useful to check a camera without starting the server.`,
	Example: `  # Write capture.jpg in the current directory
  camstreamer snapshot

  # Write to stdout
  camstreamer snapshot -o - > frame.jpg`,
	RunE: runSnapshot,
}

var (
	snapshotOutput  string
	snapshotTimeout time.Duration
)

func init() {
	rootCmd.AddCommand(snapshotCmd)

	snapshotCmd.Flags().StringVarP(&snapshotOutput, "output", "o", "capture.jpg", "output file, - for stdout")
	snapshotCmd.Flags().DurationVar(&snapshotTimeout, "timeout", 10*time.Second, "capture timeout")
}

func runSnapshot(cmd *cobra.Command, args []string) error {
	configMgr, err := loadConfig()
	if err != nil {
		return err
	}
	cfg := configMgr.Get()

	cam, err := sensor.Open(cfg.Sensor)
	if err != nil {
		return err
	}
	defer cam.Close()

	ctx, cancel := context.WithTimeout(context.Background(), snapshotTimeout)
	defer cancel()

	var frame []byte
	if err := cam.Capture(ctx, func(jpeg []byte) error {
		frame = append(frame, jpeg...)
		return nil
	}); err != nil {
		return fmt.Errorf("capture failed: %w", err)
	}

	if snapshotOutput == "-" {
		_, err := os.Stdout.Write(frame)
		return err
	}
	if err := os.WriteFile(snapshotOutput, frame, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", snapshotOutput, err)
	}
	fmt.Fprintf(os.Stderr, "Wrote %d bytes to %s\n", len(frame), snapshotOutput)
	return nil
}
