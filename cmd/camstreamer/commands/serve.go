package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/bryanchriswhite/CamStreamer/internal/api"
	"github.com/bryanchriswhite/CamStreamer/internal/config"
	"github.com/bryanchriswhite/CamStreamer/internal/device"
	"github.com/bryanchriswhite/CamStreamer/internal/logger"
	"github.com/bryanchriswhite/CamStreamer/internal/sensor"
	"github.com/bryanchriswhite/CamStreamer/internal/stream"
	"github.com/sourcegraph/conc/pool"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the camera server",
	Long: `Start the capture pipeline and the HTTP server.

Viewers open the stream endpoint (default /mjpeg/1) in a browser or an
<img> tag. The snapshot endpoint (default /jpg) returns one fresh frame and
the control endpoint (default /control) forwards sensor settings.`,
	Example: `  # Start server on default port (8080)
  camstreamer serve

  # Start server on custom port
  camstreamer serve --port 9090

  # Start with specific config file
  camstreamer serve --config /path/to/config.yaml

  # Start with debug logging
  camstreamer serve --log-level debug`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

// loadConfig loads the config file and applies flag overrides
func loadConfig() (*config.Manager, error) {
	configMgr, err := config.NewManager(GetConfigFile())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize config manager: %w", err)
	}

	// Override port from flag if provided
	if viper.IsSet("server_port") {
		if port := viper.GetInt("server_port"); port > 0 {
			configMgr.SetPort(port)
		}
	}

	// Override log level from flag if provided
	if viper.IsSet("log_level") {
		if level := viper.GetString("log_level"); level != "" {
			configMgr.SetLogLevel(level)
		}
	}
	return configMgr, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	configMgr, err := loadConfig()
	if err != nil {
		return err
	}
	cfg := configMgr.Get()
	logger.Init(cfg.LogLevel, cfg.LogPretty)
	log := logger.Get()

	log.Info().
		Str("config", configMgr.GetConfigPath()).
		Str("log_level", cfg.LogLevel).
		Msg("Configuration loaded")

	cam, err := sensor.Open(cfg.Sensor)
	if err != nil {
		return err
	}
	defer cam.Close()

	restarter := device.Process{}
	pipeline := stream.New(cam, cfg.Stream)
	server := api.NewServer(pipeline, cam, *cfg, restarter)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info().
		Int("port", cfg.ServerPort).
		Str("stream", cfg.Endpoints.Stream).
		Str("snapshot", cfg.Endpoints.Snapshot).
		Str("control", cfg.Endpoints.Control).
		Msgf("CamStreamer running on http://localhost:%d", cfg.ServerPort)

	tasks := pool.New().WithContext(ctx).WithCancelOnError().WithFirstError()
	tasks.Go(func(ctx context.Context) error {
		if err := pipeline.Run(ctx); err != nil {
			restarter.Restart(err.Error())
			return err
		}
		return nil
	})
	tasks.Go(func(ctx context.Context) error {
		return server.Start(ctx, cfg.ServerPort)
	})

	err = tasks.Wait()
	log.Info().Msg("Shut down")
	return err
}
