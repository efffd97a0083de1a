package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/slimstrongarm/industrial-iot-stack-sub002/internal/printer"
	"github.com/slimstrongarm/industrial-iot-stack-sub002/internal/watch"
)

var watchOutput string

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream board events live",
	Long: `Stream board events live.

Shows task creation, claims, status changes, reservations, conflicts and
heartbeats as they happen. Runs until interrupted.

Output Formats:
  default - Human-readable lines with timestamps
  json    - One JSON document per line for piping into other tools

Examples:
  # Watch the board
  brewctl watch

  # Feed events into jq
  brewctl watch --output=json | jq .kind`,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVarP(&watchOutput, "output", "o", "default", "Output format (default or json)")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadStack()
	if err != nil {
		return err
	}

	var format watch.OutputFormat
	switch watchOutput {
	case "default":
		format = watch.OutputFormatDefault
	case "json":
		format = watch.OutputFormatJSON
	default:
		return printer.Error(
			"invalid output format",
			"Valid formats are 'default' and 'json'.",
			nil,
		)
	}

	client, err := boardClient(cfg)
	if err != nil {
		return err
	}
	defer client.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return watch.StreamActivity(ctx, client, format, os.Stdout)
}
