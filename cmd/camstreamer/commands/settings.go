package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/bryanchriswhite/CamStreamer/internal/api"
	"github.com/bryanchriswhite/CamStreamer/internal/sensor"
	"github.com/spf13/cobra"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "List sensor settings accepted by the control endpoint",
	Long: `List the query parameters recognized by the control endpoint.

Each parameter takes an integer and is passed to the sensor driver as is.
Drivers that have no matching control skip the parameter. The reset
parameter restarts the device.`,
	Example: `  # List settings in table format (default)
  camstreamer settings

  # List settings in JSON format
  camstreamer settings --format json`,
	RunE: runSettings,
}

var settingsFormat string

func init() {
	rootCmd.AddCommand(settingsCmd)

	settingsCmd.Flags().StringVarP(&settingsFormat, "format", "f", "table", "output format (table or json)")
}

func runSettings(cmd *cobra.Command, args []string) error {
	configMgr, err := loadConfig()
	if err != nil {
		return err
	}
	control := configMgr.Get().Endpoints.Control

	settings := sensor.Settings()
	names := make([]string, 0, len(settings)+1)
	for _, s := range settings {
		names = append(names, string(s))
	}
	names = append(names, api.ResetParam)

	switch settingsFormat {
	case "json":
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(names)
	case "table":
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "SETTING\tEXAMPLE")
		for _, name := range names {
			fmt.Fprintf(w, "%s\t%s?%s=1\n", name, control, name)
		}
		return w.Flush()
	default:
		return fmt.Errorf("unsupported format: %s (use 'table' or 'json')", settingsFormat)
	}
}
